package workflow

import (
	"context"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/models"
	"gorm.io/gorm"
)

// gormReconcilerStore is the production ReconcilerStore over the shared
// gorm connection.
type gormReconcilerStore struct{}

// NewReconcilerStore returns the database-backed store.
func NewReconcilerStore() ReconcilerStore {
	return gormReconcilerStore{}
}

func (gormReconcilerStore) GetOrderWithItems(ctx context.Context, orderId string) (*models.Order, error) {
	return models.GetOrderWithItems(ctx, orderId)
}

func (gormReconcilerStore) ExistingRemisionNumbers(ctx context.Context, plantId string, numbers []string) (map[string]string, error) {
	return models.ExistingRemisionNumbers(ctx, plantId, numbers)
}

func (gormReconcilerStore) RemisionIdsWithMaterials(ctx context.Context, remisionIds []string) (map[string]bool, error) {
	return models.RemisionIdsWithMaterials(ctx, remisionIds)
}

func (gormReconcilerStore) InsertRemisiones(ctx context.Context, rows []*models.Remision) error {
	return models.InsertRemisiones(ctx, config.GetDB(), rows)
}

func (gormReconcilerStore) UpsertRemisionMaterials(ctx context.Context, rows []*models.RemisionMaterial) error {
	return models.UpsertRemisionMaterials(ctx, config.GetDB(), rows)
}

func (gormReconcilerStore) SetBulkImportMode(ctx context.Context, enabled bool) error {
	return models.SetBulkImportMode(ctx, config.GetDB(), enabled)
}

func (gormReconcilerStore) RecalculateOrderTotals(ctx context.Context, orderId string) error {
	return config.GetDB().Transaction(func(tx *gorm.DB) error {
		return models.RecalculateOrderTotals(ctx, tx, orderId)
	})
}
