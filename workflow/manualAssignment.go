package workflow

import (
	"context"
	"sort"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/dcconcretos/remisiones_backend/utils"
)

// CompatibleOrder is one ranked option presented to the operator.
type CompatibleOrder struct {
	Order   *models.Order
	Score   float64
	Reasons []string
}

// ManualAssignmentCandidate pairs a record with every order an operator
// could plausibly assign it to, ranked but never auto-selected.
type ManualAssignmentCandidate struct {
	Record            *models.StagingRemision
	CompatibleOrders  []CompatibleOrder
	CurrentAssignment *string
}

// ManualAssignmentFinder is the human-in-the-loop variant of the
// matcher. It widens the search, starts every open order at a visible
// baseline score, and surfaces recipe gate failures as a zero score with
// an explicit reason instead of filtering the order out, so the operator
// can see and override them.
type ManualAssignmentFinder struct {
	search *CandidateSearch
	cfg    *config.MatchingConfig
}

func NewManualAssignmentFinder(search *CandidateSearch, cfg *config.MatchingConfig) *ManualAssignmentFinder {
	return &ManualAssignmentFinder{search: search, cfg: cfg}
}

// FindCompatibleOrders builds one ranked candidate list per importable
// record.
func (f *ManualAssignmentFinder) FindCompatibleOrders(ctx context.Context, records []*models.StagingRemision) []*ManualAssignmentCandidate {
	var candidates []*ManualAssignmentCandidate
	for _, record := range records {
		if !record.ShouldImport() {
			continue
		}
		candidate := &ManualAssignmentCandidate{
			Record:            record,
			CurrentAssignment: record.SuggestedOrderId,
		}
		for _, order := range f.search.ForManualAssignment(ctx, record) {
			candidate.CompatibleOrders = append(candidate.CompatibleOrders, f.evaluate(record, order))
		}
		sort.SliceStable(candidate.CompatibleOrders, func(i, j int) bool {
			return candidate.CompatibleOrders[i].Score > candidate.CompatibleOrders[j].Score
		})
		candidates = append(candidates, candidate)
	}
	return candidates
}

func (f *ManualAssignmentFinder) evaluate(record *models.StagingRemision, order *models.Order) CompatibleOrder {
	if utils.DereferencePtr(record.RecipeId) != "" && !HasStrictRecipeMatch(record, order) {
		return CompatibleOrder{Order: order, Score: 0, Reasons: []string{"Receta no coincide"}}
	}
	eval := ScoreOrderCompatibility([]*models.StagingRemision{record}, order)
	// Baseline point keeps every structurally open order visible even
	// when no factor scored.
	score := (eval.Score*scoreCeiling + 1) / scoreCeiling
	if score > 1 {
		score = 1
	}
	return CompatibleOrder{Order: order, Score: score, Reasons: eval.Reasons}
}

// SearchStagingRecords is the operator's free-text/date/client lookup
// over staging records themselves, independent of matching.
func (f *ManualAssignmentFinder) SearchStagingRecords(ctx context.Context, filters models.StagingSearchFilters) ([]*models.StagingRemision, error) {
	return models.SearchStagingRemisiones(ctx, filters)
}
