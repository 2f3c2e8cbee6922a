package workflow

import (
	"context"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/dcconcretos/remisiones_backend/utils"
)

// ReconcilePlan is the full outcome of one reconciliation run: confident
// matches plus suggestions for everything that could not be matched.
type ReconcilePlan struct {
	Matched     []*OrderMatch
	Suggestions []*OrderSuggestion
}

// ReconcileEngine wires the matcher, grouper, reconciler, duplicate
// analyzer and manual finder behind the three operations the rest of
// the application calls.
type ReconcileEngine struct {
	matcher    *OrderMatcher
	grouper    *OrderGrouper
	reconciler *BulkReconciler
	finder     *ManualAssignmentFinder
	duplicates *DuplicateAnalyzer
}

// NewReconcileEngine builds the production engine over the shared
// database and redis connections.
func NewReconcileEngine(materials MaterialResolver, cfg *config.MatchingConfig) *ReconcileEngine {
	search := NewCandidateSearch(NewOrderSearcher(), cfg)
	return &ReconcileEngine{
		matcher:    NewOrderMatcher(search, cfg),
		grouper:    NewOrderGrouper(),
		reconciler: NewBulkReconciler(NewReconcilerStore(), materials, cfg),
		finder:     NewManualAssignmentFinder(search, cfg),
		duplicates: NewDuplicateAnalyzer(NewHistoryStore()),
	}
}

// NewReconcileEngineWith builds an engine over explicit collaborators.
func NewReconcileEngineWith(matcher *OrderMatcher, grouper *OrderGrouper, reconciler *BulkReconciler, finder *ManualAssignmentFinder, duplicates *DuplicateAnalyzer) *ReconcileEngine {
	return &ReconcileEngine{
		matcher:    matcher,
		grouper:    grouper,
		reconciler: reconciler,
		finder:     finder,
		duplicates: duplicates,
	}
}

// Reconcile matches a batch of staging records against open orders and
// turns everything unmatched into new-order proposals. No group is ever
// silently dropped: every importable record ends up in a match or in a
// suggestion. Structurally invalid records are an input defect: logged
// and skipped, never fatal to the batch.
func (e *ReconcileEngine) Reconcile(ctx context.Context, records []*models.StagingRemision) *ReconcilePlan {
	valid := make([]*models.StagingRemision, 0, len(records))
	logger := config.GetLogger()
	for _, record := range records {
		if err := utils.ValidateStruct(record); err != nil {
			config.LogError(logger, "workflow", "ReconcileEngine.Reconcile", "invalid staging record, skipping", map[string]interface{}{
				"rowNumber":      record.RowNumber,
				"remisionNumber": record.RemisionNumber,
				"fields":         utils.ProcessValidationErrors(err),
			}, err)
			continue
		}
		valid = append(valid, record)
	}

	result := e.matcher.Match(ctx, valid)
	var unmatched []*models.StagingRemision
	for _, group := range result.Unmatched {
		unmatched = append(unmatched, group.Records...)
	}
	return &ReconcilePlan{
		Matched:     result.Matched,
		Suggestions: e.grouper.Group(unmatched, GroupModeNew, nil, nil),
	}
}

// FindCompatibleOrders returns ranked assignment options per record for
// operator review.
func (e *ReconcileEngine) FindCompatibleOrders(ctx context.Context, records []*models.StagingRemision) []*ManualAssignmentCandidate {
	return e.finder.FindCompatibleOrders(ctx, records)
}

// ApplyMatches persists a plan's matches.
func (e *ReconcileEngine) ApplyMatches(ctx context.Context, matches []*OrderMatch, bulkMode bool) []ApplyResult {
	return e.reconciler.ApplyMatches(ctx, matches, bulkMode)
}

// ApplyToOrder persists one group of records against one order.
func (e *ReconcileEngine) ApplyToOrder(ctx context.Context, orderId string, records []*models.StagingRemision, bulkMode bool) ApplyResult {
	return e.reconciler.ApplyToOrder(ctx, orderId, records, bulkMode)
}

// AnalyzeDuplicates reports intervention risk for records whose numbers
// already exist.
func (e *ReconcileEngine) AnalyzeDuplicates(ctx context.Context, records []*models.StagingRemision) []*DuplicateInfo {
	return e.duplicates.Analyze(ctx, records)
}

// GroupSuggestions exposes the grouper for callers that assemble their
// own plans (manual assignments folded into matcher output).
func (e *ReconcileEngine) GroupSuggestions(records []*models.StagingRemision, mode GroupMode, matches []*OrderMatch, manual []*ManualAssignment) []*OrderSuggestion {
	return e.grouper.Group(records, mode, matches, manual)
}

// SearchStagingRecords exposes the operator staging-record lookup.
func (e *ReconcileEngine) SearchStagingRecords(ctx context.Context, filters models.StagingSearchFilters) ([]*models.StagingRemision, error) {
	return e.finder.SearchStagingRecords(ctx, filters)
}
