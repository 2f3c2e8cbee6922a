package models

import (
	"context"
	"time"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Remision is a persisted delivery record attached to an order.
type Remision struct {
	Id             string    `gorm:"primary_key;size:36" json:"id"`
	OrderId        string    `gorm:"index;size:36;not null" json:"order_id"`
	RemisionNumber string    `gorm:"uniqueIndex:idx_remision_number_plant;size:50;not null" json:"remision_number"`
	Fecha          time.Time `gorm:"type:date;not null" json:"fecha"`
	HoraCarga      string    `gorm:"size:8" json:"hora_carga"`
	Estatus        string    `gorm:"size:50" json:"estatus"`

	VolumenFabricado decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"volumen_fabricado"`
	RecipeId         *string         `gorm:"index;size:36" json:"recipe_id"`
	Conductor        string          `gorm:"size:100" json:"conductor"`
	Unidad           string          `gorm:"size:50" json:"unidad"`

	PlantId   string    `gorm:"uniqueIndex:idx_remision_number_plant;size:36;not null" json:"plant_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Materials []*RemisionMaterial `gorm:"foreignKey:RemisionId" json:"materials"`
}

func (Remision) TableName() string {
	return "remisiones"
}

// RemisionMaterial is one material consumption row for a remision,
// keyed by material so re-applies update in place instead of duplicating.
type RemisionMaterial struct {
	Id         string `gorm:"primary_key;size:36" json:"id"`
	RemisionId string `gorm:"uniqueIndex:idx_remision_material;size:36;not null" json:"remision_id"`
	MaterialId string `gorm:"uniqueIndex:idx_remision_material;size:36;not null" json:"material_id"`

	CantidadTeorica decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cantidad_teorica"`
	CantidadReal    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cantidad_real"`
	Ajuste          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"ajuste"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RemisionMaterial) TableName() string {
	return "remision_materials"
}

// ExistingRemisionNumbers reports which of the given remision numbers
// are already persisted for the plant. Single query; callers drive
// chunking and retry.
func ExistingRemisionNumbers(ctx context.Context, plantId string, numbers []string) (map[string]string, error) {
	db := config.GetDB()
	var rows []*Remision
	err := db.WithContext(ctx).
		Select("id, remision_number").
		Where("plant_id = ? AND remision_number IN ?", plantId, numbers).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.RemisionNumber] = row.Id
	}
	return out, nil
}

// RemisionIdsWithMaterials reports which of the given remision ids
// already have at least one material row. Single query; callers drive
// chunking and retry.
func RemisionIdsWithMaterials(ctx context.Context, remisionIds []string) (map[string]bool, error) {
	db := config.GetDB()
	var ids []string
	err := db.WithContext(ctx).Model(&RemisionMaterial{}).
		Distinct("remision_id").
		Where("remision_id IN ?", remisionIds).
		Pluck("remision_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// InsertRemisiones inserts delivery records, silently skipping rows whose
// (plant_id, remision_number) key already exists. Re-runs are idempotent.
func InsertRemisiones(ctx context.Context, tx *gorm.DB, rows []*Remision) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "plant_id"}, {Name: "remision_number"}},
		DoNothing: true,
	}).Create(&rows).Error
}

// UpsertRemisionMaterials writes material rows idempotently: the
// (remision_id, material_id) key updates quantities in place.
func UpsertRemisionMaterials(ctx context.Context, tx *gorm.DB, rows []*RemisionMaterial) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remision_id"}, {Name: "material_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"cantidad_teorica", "cantidad_real", "ajuste", "updated_at"}),
	}).Create(&rows).Error
}

// SetBulkImportMode toggles session-scoped relaxation of volume triggers
// while a bulk apply runs. The flag lives on the DB session so concurrent
// interactive traffic is unaffected.
func SetBulkImportMode(ctx context.Context, tx *gorm.DB, enabled bool) error {
	value := 0
	if enabled {
		value = 1
	}
	return tx.WithContext(ctx).Exec("SET @bulk_import_mode = ?", value).Error
}

// RemisionHistory summarizes prior activity for duplicate-risk analysis.
type RemisionHistory struct {
	RemisionId        string
	OrderId           string
	OrderNumber       string
	Estatus           string
	VolumenFabricado  decimal.Decimal
	Fecha             time.Time
	HasMaterials      bool
	ReassignmentCount int
	StatusDecisions   int
	HasWasteMaterial  bool
}

// GetRemisionHistory loads the persisted remision (with materials and its
// order) for one remision number, for duplicate analysis. Returns
// ErrorRecordNotFound when the number is unknown.
func GetRemisionHistory(ctx context.Context, plantId, remisionNumber string) (*RemisionHistory, error) {
	db := config.GetDB()
	var rem Remision
	err := db.WithContext(ctx).Preload("Materials").
		Where("plant_id = ? AND remision_number = ?", plantId, remisionNumber).
		First(&rem).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	history := &RemisionHistory{
		RemisionId:       rem.Id,
		OrderId:          rem.OrderId,
		Estatus:          rem.Estatus,
		VolumenFabricado: rem.VolumenFabricado,
		Fecha:            rem.Fecha,
		HasMaterials:     len(rem.Materials) > 0,
	}

	var order Order
	if err := db.WithContext(ctx).Select("id, order_number").Where("id = ?", rem.OrderId).First(&order).Error; err == nil {
		history.OrderNumber = order.OrderNumber
	}

	var events []*RemisionEvent
	if err := db.WithContext(ctx).Where("remision_id = ?", rem.Id).Find(&events).Error; err != nil {
		return nil, err
	}
	for _, ev := range events {
		switch ev.EventType {
		case RemisionEventReassigned:
			history.ReassignmentCount++
		case RemisionEventStatusDecision:
			history.StatusDecisions++
		case RemisionEventWasteMaterial:
			history.HasWasteMaterial = true
		}
	}
	return history, nil
}

type RemisionEventType string

const (
	RemisionEventReassigned     RemisionEventType = "reassigned"
	RemisionEventStatusDecision RemisionEventType = "status_decision"
	RemisionEventWasteMaterial  RemisionEventType = "waste_material"
	RemisionEventVolumeChanged  RemisionEventType = "volume_changed"
	RemisionEventDateChanged    RemisionEventType = "date_changed"
)

// RemisionEvent is an audit row recorded when an operator intervenes on a
// persisted remision. Duplicate analysis weighs these events.
type RemisionEvent struct {
	Id         string            `gorm:"primary_key;size:36" json:"id"`
	RemisionId string            `gorm:"index;size:36;not null" json:"remision_id"`
	EventType  RemisionEventType `gorm:"size:30;not null" json:"event_type"`
	Detail     string            `gorm:"type:text" json:"detail"`
	UserId     *string           `gorm:"size:36" json:"user_id"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (RemisionEvent) TableName() string {
	return "remision_events"
}
