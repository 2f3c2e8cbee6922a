package workflow

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dcconcretos/remisiones_backend/appctx"
	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/dcconcretos/remisiones_backend/utils"
	"github.com/sirupsen/logrus"
)

// RecordGroup is a bucket of staging records presumed to belong to the
// same order, keyed deterministically so repeated runs bucket alike.
type RecordGroup struct {
	Key     string
	Records []*models.StagingRemision
}

// RepresentativeDate is the group's calendar date, taken from its first
// record.
func (g *RecordGroup) RepresentativeDate() string {
	if len(g.Records) == 0 {
		return ""
	}
	return g.Records[0].FechaString()
}

// OrderMatch is the accepted pairing of a record group with an order.
// Ephemeral: it is never persisted, only handed to the reconciler.
type OrderMatch struct {
	Order   *models.Order
	Records []*models.StagingRemision
	Score   float64
	Reasons []string
}

// MatchResult partitions the batch into confidently matched groups and
// groups that need a new-order proposal.
type MatchResult struct {
	Matched   []*OrderMatch
	Unmatched []*RecordGroup
}

// GroupKey derives the deterministic bucketing key for a record: the
// externally supplied original order reference when present, otherwise
// client + site + calendar date + the first comma-delimited token of the
// external notes (GENERAL when empty).
func GroupKey(record *models.StagingRemision) string {
	if ref := utils.DereferencePtr(record.OrdenOriginal); strings.TrimSpace(ref) != "" {
		return "orden:" + strings.TrimSpace(ref)
	}
	comment := "GENERAL"
	if parts := strings.SplitN(record.ComentariosExternos, ",", 2); strings.TrimSpace(parts[0]) != "" {
		comment = utils.NormalizeName(parts[0])
	}
	return strings.Join([]string{
		utils.NormalizeName(record.ClienteName),
		utils.NormalizeName(record.ObraName),
		record.FechaString(),
		comment,
	}, "|")
}

// GroupRecords buckets importable records by GroupKey, preserving first-seen
// group order. Excluded and materials-only records never enter a group.
func GroupRecords(records []*models.StagingRemision) []*RecordGroup {
	byKey := make(map[string]*RecordGroup)
	var groups []*RecordGroup
	for _, record := range records {
		if !record.ShouldImport() {
			continue
		}
		key := GroupKey(record)
		group, ok := byKey[key]
		if !ok {
			group = &RecordGroup{Key: key}
			byKey[key] = group
			groups = append(groups, group)
		}
		group.Records = append(group.Records, record)
	}
	return groups
}

// OrderMatcher drives candidate search, the hard recipe gate, scoring and
// threshold-based selection for every record group in a batch.
type OrderMatcher struct {
	search *CandidateSearch
	cfg    *config.MatchingConfig
	logger *logrus.Logger
}

func NewOrderMatcher(search *CandidateSearch, cfg *config.MatchingConfig) *OrderMatcher {
	return &OrderMatcher{search: search, cfg: cfg, logger: config.GetLogger()}
}

// Match buckets the batch and resolves each group concurrently, bounded
// by the configured worker limit. Group order in the result follows the
// input bucketing order regardless of which worker finished first.
func (m *OrderMatcher) Match(ctx context.Context, records []*models.StagingRemision) *MatchResult {
	groups := GroupRecords(records)

	type groupOutcome struct {
		match *OrderMatch
		group *RecordGroup
	}
	outcomes := make([]groupOutcome, len(groups))

	workers := m.cfg.GroupWorkerLimit
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, group := range groups {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, group *RecordGroup) {
			defer wg.Done()
			defer func() { <-sem }()
			if match := m.matchGroup(ctx, group); match != nil {
				outcomes[i] = groupOutcome{match: match}
			} else {
				outcomes[i] = groupOutcome{group: group}
			}
		}(i, group)
	}
	wg.Wait()

	result := &MatchResult{}
	for _, outcome := range outcomes {
		if outcome.match != nil {
			result.Matched = append(result.Matched, outcome.match)
		} else if outcome.group != nil {
			result.Unmatched = append(result.Unmatched, outcome.group)
		}
	}
	return result
}

// matchGroup resolves one group: search, gate, score, select. Returns nil
// when no candidate clears the acceptance thresholds.
func (m *OrderMatcher) matchGroup(ctx context.Context, group *RecordGroup) *OrderMatch {
	if len(group.Records) == 0 {
		return nil
	}
	rep := group.Records[0]
	if utils.DereferencePtr(rep.ClientId) == "" {
		plantId, _ := appctx.GetString(ctx, appctx.ContextKeyPlantId)
		m.logger.WithFields(logrus.Fields{
			"groupKey":  group.Key,
			"rowNumber": rep.RowNumber,
			"plantId":   plantId,
		}).Info("group representative has no client id, skipping automatic match")
		return nil
	}

	candidates := m.search.ForMatcher(ctx, rep)
	if len(candidates) == 0 {
		return nil
	}

	// Hard gate: one gated record failing against a candidate removes
	// that candidate entirely, before any scoring.
	var survivors []*models.Order
	for _, order := range candidates {
		if groupPassesGate(group.Records, order) {
			survivors = append(survivors, order)
		}
	}
	if len(survivors) == 0 {
		return nil
	}

	type scored struct {
		order *models.Order
		eval  CompatibilityScore
	}
	var sameDay, crossDay []scored
	repDate := group.RepresentativeDate()
	for _, order := range survivors {
		eval := ScoreOrderCompatibility(group.Records, order)
		entry := scored{order: order, eval: eval}
		if order.DeliveryDateString() == repDate {
			sameDay = append(sameDay, entry)
		} else {
			crossDay = append(crossDay, entry)
		}
	}
	best := func(entries []scored) *scored {
		if len(entries) == 0 {
			return nil
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].eval.Score > entries[j].eval.Score
		})
		return &entries[0]
	}

	if top := best(sameDay); top != nil && top.eval.Score >= m.cfg.SameDayThreshold {
		return &OrderMatch{Order: top.order, Records: group.Records, Score: top.eval.Score, Reasons: top.eval.Reasons}
	}
	if top := best(crossDay); top != nil && top.eval.Score >= m.cfg.CrossDayThreshold {
		return &OrderMatch{Order: top.order, Records: group.Records, Score: top.eval.Score, Reasons: top.eval.Reasons}
	}
	return nil
}

// groupPassesGate reports whether every recipe-carrying record in the
// group passes the strict gate against the order.
func groupPassesGate(records []*models.StagingRemision, order *models.Order) bool {
	for _, record := range records {
		if utils.DereferencePtr(record.RecipeId) == "" {
			continue
		}
		if !HasStrictRecipeMatch(record, order) {
			return false
		}
	}
	return true
}
