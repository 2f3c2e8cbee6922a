package config

// MatchingConfig carries the tuned constants of the reconciliation engine.
// The day windows and acceptance thresholds were calibrated against live
// plant imports; override them via env only when re-tuning deliberately.
//
// Env overrides (optional):
// - MATCH_SAME_DAY_THRESHOLD_PCT (default 70)
// - MATCH_CROSS_DAY_THRESHOLD_PCT (default 60)
// - MATCH_CANDIDATE_LIMIT (default 50)
// - MATCH_CHUNK_SIZE (default 80)
type MatchingConfig struct {
	// SameDayThreshold accepts a same-calendar-day candidate at a lower bar
	// than cross-day candidates; same-day evidence is strong on its own.
	SameDayThreshold  float64
	CrossDayThreshold float64

	// Day windows per search tier. The automatic matcher widens to ±1 day
	// only; manual assignment trades precision for recall (±3, then ±14
	// with the client filter dropped).
	MatcherDayWindow    int
	ManualDayWindow     int
	ManualWideDayWindow int
	CandidateLimit      int
	ChunkSize           int
	ScoreCeiling        float64
	GroupWorkerLimit    int
}

func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		SameDayThreshold:    float64(intFromEnv("MATCH_SAME_DAY_THRESHOLD_PCT", 70)) / 100,
		CrossDayThreshold:   float64(intFromEnv("MATCH_CROSS_DAY_THRESHOLD_PCT", 60)) / 100,
		MatcherDayWindow:    1,
		ManualDayWindow:     3,
		ManualWideDayWindow: 14,
		CandidateLimit:      intFromEnv("MATCH_CANDIDATE_LIMIT", 50),
		ChunkSize:           intFromEnv("MATCH_CHUNK_SIZE", 80),
		ScoreCeiling:        10,
		GroupWorkerLimit:    intFromEnv("MATCH_GROUP_WORKERS", 4),
	}
}
