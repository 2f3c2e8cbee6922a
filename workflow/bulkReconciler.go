package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/dcconcretos/remisiones_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ReconcilerStore is the slice of storage the bulk reconciler mutates
// through. The gorm-backed implementation is the production path; tests
// substitute in-memory fakes.
type ReconcilerStore interface {
	GetOrderWithItems(ctx context.Context, orderId string) (*models.Order, error)
	ExistingRemisionNumbers(ctx context.Context, plantId string, numbers []string) (map[string]string, error)
	RemisionIdsWithMaterials(ctx context.Context, remisionIds []string) (map[string]bool, error)
	InsertRemisiones(ctx context.Context, rows []*models.Remision) error
	UpsertRemisionMaterials(ctx context.Context, rows []*models.RemisionMaterial) error
	SetBulkImportMode(ctx context.Context, enabled bool) error
	RecalculateOrderTotals(ctx context.Context, orderId string) error
}

// MaterialResolver maps external material codes to material ids.
// *models.MaterialLookup satisfies it.
type MaterialResolver interface {
	IdForCode(code string) (string, bool)
}

// GateViolationError aborts an apply call whose records cannot
// structurally attach to the target order. User facing.
type GateViolationError struct {
	OrderId       string
	RecordNumbers []string
}

func (e *GateViolationError) Error() string {
	return fmt.Sprintf("las remisiones [%s] tienen recetas incompatibles con la orden %s",
		strings.Join(e.RecordNumbers, ", "), e.OrderId)
}

// ApplyResult reports one order's apply outcome.
type ApplyResult struct {
	OrderId           string
	Success           bool
	RecordsCreated    int
	DuplicatesSkipped int
	MaterialsCreated  int
	FailedChunks      int
	Err               error
}

// BulkReconciler attaches staging records to orders: dedup by record
// number, derived material rows, per-order serialization, and an
// optional session-scoped bulk mode that defers total recalculation.
type BulkReconciler struct {
	store     ReconcilerStore
	materials MaterialResolver
	cfg       *config.MatchingConfig
	logger    *logrus.Logger

	// lockOrder serializes mutation per order id. Overridable in tests.
	lockOrder func(ctx context.Context, orderId string) (func(), error)
}

func NewBulkReconciler(store ReconcilerStore, materials MaterialResolver, cfg *config.MatchingConfig) *BulkReconciler {
	return &BulkReconciler{
		store:     store,
		materials: materials,
		cfg:       cfg,
		logger:    config.GetLogger(),
		lockOrder: func(ctx context.Context, orderId string) (func(), error) {
			return utils.OrderLock(ctx, orderId, "workflow", "BulkReconciler")
		},
	}
}

// ApplyToOrder attaches the given records to one order. In bulk mode the
// storage session suppresses per-row recalculation for the duration of
// the call and the caller owns the final recomputation.
func (r *BulkReconciler) ApplyToOrder(ctx context.Context, orderId string, records []*models.StagingRemision, bulkMode bool) ApplyResult {
	if bulkMode {
		if err := r.store.SetBulkImportMode(ctx, true); err != nil {
			return ApplyResult{OrderId: orderId, Err: err}
		}
		defer r.disableBulkMode(ctx)
	}
	result := r.applyLocked(ctx, orderId, records)
	if result.Err == nil && !bulkMode {
		if err := r.store.RecalculateOrderTotals(ctx, orderId); err != nil {
			result.Err = err
			result.Success = false
		}
	}
	return result
}

// ApplyMatches applies a whole reconciliation plan. With bulkMode the
// session flag is toggled once around the run and every affected order
// gets exactly one total recomputation at the end, instead of one per
// inserted record.
func (r *BulkReconciler) ApplyMatches(ctx context.Context, matches []*OrderMatch, bulkMode bool) []ApplyResult {
	if bulkMode {
		if err := r.store.SetBulkImportMode(ctx, true); err != nil {
			results := make([]ApplyResult, 0, len(matches))
			for _, match := range matches {
				results = append(results, ApplyResult{OrderId: match.Order.Id, Err: err})
			}
			return results
		}
		defer r.disableBulkMode(ctx)
	}

	results := make([]ApplyResult, 0, len(matches))
	var affected []string
	for _, match := range matches {
		result := r.applyLocked(ctx, match.Order.Id, match.Records)
		if result.Err == nil {
			if bulkMode {
				affected = append(affected, match.Order.Id)
			} else if err := r.store.RecalculateOrderTotals(ctx, match.Order.Id); err != nil {
				result.Err = err
				result.Success = false
			}
		}
		results = append(results, result)
	}

	for _, orderId := range utils.UniqueSlice(affected) {
		if err := r.store.RecalculateOrderTotals(ctx, orderId); err != nil {
			config.LogError(r.logger, "workflow", "BulkReconciler.ApplyMatches", "deferred recalculation failed", map[string]interface{}{"orderId": orderId}, err)
		}
	}
	return results
}

// disableBulkMode runs on every exit path; the session flag must never
// leak into unrelated operations.
func (r *BulkReconciler) disableBulkMode(ctx context.Context) {
	if err := r.store.SetBulkImportMode(ctx, false); err != nil {
		config.LogError(r.logger, "workflow", "BulkReconciler.disableBulkMode", "failed to disable bulk import mode", nil, err)
	}
}

func (r *BulkReconciler) applyLocked(ctx context.Context, orderId string, records []*models.StagingRemision) ApplyResult {
	result := ApplyResult{OrderId: orderId}

	importable := make([]*models.StagingRemision, 0, len(records))
	for _, record := range records {
		if record.ShouldImport() {
			importable = append(importable, record)
		}
	}
	if len(importable) == 0 {
		result.Success = true
		return result
	}

	release, err := r.lockOrder(ctx, orderId)
	if err != nil {
		result.Err = err
		return result
	}
	defer release()

	order, err := r.store.GetOrderWithItems(ctx, orderId)
	if err != nil {
		result.Err = err
		return result
	}

	// Pre-write gate check. One failing record aborts the whole call;
	// partial application is not permitted.
	var offenders []string
	for _, record := range importable {
		if utils.DereferencePtr(record.RecipeId) == "" {
			continue
		}
		if !HasStrictRecipeMatch(record, order) {
			offenders = append(offenders, record.RemisionNumber)
		}
	}
	if len(offenders) > 0 {
		result.Err = &GateViolationError{OrderId: orderId, RecordNumbers: offenders}
		return result
	}

	plantId := importable[0].PlantId
	byNumber := make(map[string]*models.StagingRemision, len(importable))
	var numbers []string
	for _, record := range importable {
		byNumber[record.RemisionNumber] = record
		numbers = append(numbers, record.RemisionNumber)
	}

	existing := make(map[string]string)
	dedupResults := RunChunked(numbers, r.cfg.ChunkSize, func(chunk []string) (map[string]string, error) {
		return r.store.ExistingRemisionNumbers(ctx, plantId, chunk)
	})
	result.FailedChunks += logFailedChunks(dedupResults, "workflow", "BulkReconciler.applyLocked")
	skipped := make(map[string]bool)
	for _, chunkResult := range dedupResults {
		if !chunkResult.Ok {
			// Without a dedup answer these records are dropped from this
			// run; inserts are idempotent by number so a resume picks
			// them up.
			for _, number := range chunkResult.Items {
				skipped[number] = true
			}
			continue
		}
		for number, id := range chunkResult.Data {
			existing[number] = id
		}
	}

	var toInsert []*models.Remision
	remisionIdByNumber := make(map[string]string)
	for _, number := range numbers {
		if skipped[number] {
			continue
		}
		if id, dup := existing[number]; dup {
			result.DuplicatesSkipped++
			remisionIdByNumber[number] = id
			continue
		}
		record := byNumber[number]
		row := &models.Remision{
			Id:               uuid.NewString(),
			OrderId:          orderId,
			RemisionNumber:   record.RemisionNumber,
			Fecha:            record.Fecha,
			HoraCarga:        record.HoraCarga,
			Estatus:          record.Estatus,
			VolumenFabricado: record.VolumenFabricado,
			RecipeId:         record.RecipeId,
			Conductor:        record.Conductor,
			Unidad:           record.Placas,
			PlantId:          plantId,
		}
		toInsert = append(toInsert, row)
		remisionIdByNumber[number] = row.Id
	}
	if len(toInsert) > 0 {
		if err := r.store.InsertRemisiones(ctx, toInsert); err != nil {
			result.Err = err
			return result
		}
		result.RecordsCreated = len(toInsert)
	}

	materialsCreated, failedChunks, err := r.writeMaterialRows(ctx, byNumber, remisionIdByNumber)
	result.FailedChunks += failedChunks
	if err != nil {
		result.Err = err
		return result
	}
	result.MaterialsCreated = materialsCreated
	result.Success = true
	return result
}

// writeMaterialRows derives and persists material consumption for every
// remision that does not already have rows.
func (r *BulkReconciler) writeMaterialRows(ctx context.Context, byNumber map[string]*models.StagingRemision, remisionIdByNumber map[string]string) (int, int, error) {
	var remisionIds []string
	numberById := make(map[string]string)
	for number, id := range remisionIdByNumber {
		remisionIds = append(remisionIds, id)
		numberById[id] = number
	}
	if len(remisionIds) == 0 {
		return 0, 0, nil
	}

	hasMaterials := make(map[string]bool)
	checkResults := RunChunked(remisionIds, r.cfg.ChunkSize, func(chunk []string) (map[string]bool, error) {
		return r.store.RemisionIdsWithMaterials(ctx, chunk)
	})
	failedChunks := logFailedChunks(checkResults, "workflow", "BulkReconciler.writeMaterialRows")
	skipped := make(map[string]bool)
	for _, chunkResult := range checkResults {
		if !chunkResult.Ok {
			for _, id := range chunkResult.Items {
				skipped[id] = true
			}
			continue
		}
		for id := range chunkResult.Data {
			hasMaterials[id] = true
		}
	}

	var rows []*models.RemisionMaterial
	for _, remisionId := range remisionIds {
		if skipped[remisionId] || hasMaterials[remisionId] {
			continue
		}
		record := byNumber[numberById[remisionId]]
		for _, code := range record.MaterialCodes() {
			materialId, ok := r.materials.IdForCode(code)
			if !ok {
				r.logger.WithFields(logrus.Fields{
					"remisionNumber": record.RemisionNumber,
					"materialCode":   code,
				}).Warn("unknown material code, skipping row")
				continue
			}
			teorica, real, ajuste := record.DeriveMaterialQuantities(code)
			if teorica.IsZero() && real.IsZero() && ajuste.IsZero() {
				continue
			}
			rows = append(rows, &models.RemisionMaterial{
				Id:              uuid.NewString(),
				RemisionId:      remisionId,
				MaterialId:      materialId,
				CantidadTeorica: teorica,
				CantidadReal:    real,
				Ajuste:          ajuste,
			})
		}
	}
	if len(rows) == 0 {
		return 0, failedChunks, nil
	}
	if err := r.store.UpsertRemisionMaterials(ctx, rows); err != nil {
		return 0, failedChunks, err
	}
	return len(rows), failedChunks, nil
}
