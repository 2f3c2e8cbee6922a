package models

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/sirupsen/logrus"
)

// Material is a plant consumable referenced by code in staging records.
type Material struct {
	Id       string `gorm:"primary_key;size:36" json:"id"`
	Code     string `gorm:"uniqueIndex:idx_material_code_plant;size:100;not null" json:"code"`
	Name     string `gorm:"size:255" json:"name"`
	Unit     string `gorm:"size:20" json:"unit"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	PlantId   string    `gorm:"uniqueIndex:idx_material_code_plant;size:36;not null" json:"plant_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Material) TableName() string {
	return "materials"
}

// Plant is a production site. Every engine run is scoped to one plant.
type Plant struct {
	Id       string `gorm:"primary_key;size:36" json:"id"`
	Code     string `gorm:"uniqueIndex;size:20;not null" json:"code"`
	Name     string `gorm:"size:255" json:"name"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Plant) TableName() string {
	return "plants"
}

// MaterialLookup resolves material codes to ids for one plant, backed by
// a redis snapshot so bulk applies do not issue one query per code.
type MaterialLookup struct {
	plantId string
	logger  *logrus.Logger

	mu     sync.RWMutex
	byCode map[string]string
}

const materialLookupTTL = 10 * time.Minute

func materialLookupKey(plantId string) string {
	return "materialLookup:" + plantId
}

// NewMaterialLookup builds a lookup for the plant and loads the snapshot,
// redis first, database on miss.
func NewMaterialLookup(ctx context.Context, plantId string) (*MaterialLookup, error) {
	lookup := &MaterialLookup{
		plantId: plantId,
		logger:  config.GetLogger(),
	}
	if err := lookup.Refresh(ctx); err != nil {
		return nil, err
	}
	return lookup, nil
}

// Refresh reloads the code-to-id snapshot, preferring the cached copy.
func (l *MaterialLookup) Refresh(ctx context.Context) error {
	cached := make(map[string]string)
	found, err := config.GetRedisObject(materialLookupKey(l.plantId), &cached)
	if err != nil {
		config.LogError(l.logger, "models", "MaterialLookup.Refresh", "redis read failed, falling back to db", map[string]interface{}{"plantId": l.plantId}, err)
	}
	if found && len(cached) > 0 {
		l.mu.Lock()
		l.byCode = cached
		l.mu.Unlock()
		return nil
	}

	db := config.GetDB()
	var materials []*Material
	err = db.WithContext(ctx).
		Select("id, code").
		Where("plant_id = ? AND is_active = true", l.plantId).
		Find(&materials).Error
	if err != nil {
		return err
	}

	byCode := make(map[string]string, len(materials))
	for _, m := range materials {
		byCode[strings.ToUpper(strings.TrimSpace(m.Code))] = m.Id
	}

	l.mu.Lock()
	l.byCode = byCode
	l.mu.Unlock()

	if err := config.SetRedisObject(materialLookupKey(l.plantId), byCode, materialLookupTTL); err != nil {
		config.LogError(l.logger, "models", "MaterialLookup.Refresh", "redis write failed", map[string]interface{}{"plantId": l.plantId}, err)
	}
	return nil
}

// IdForCode resolves a material code to its id. Codes are compared
// case-insensitively and trimmed.
func (l *MaterialLookup) IdForCode(code string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return id, ok
}

// MissingCodes reports which of the given codes have no known material.
func (l *MaterialLookup) MissingCodes(codes []string) []string {
	var missing []string
	for _, code := range codes {
		if _, ok := l.IdForCode(code); !ok {
			missing = append(missing, code)
		}
	}
	return missing
}
