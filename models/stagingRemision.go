package models

import (
	"context"
	"time"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/utils"
	"github.com/shopspring/decimal"
)

// MaterialMap holds per-material-code quantities, stored as a JSON column.
type MaterialMap map[string]decimal.Decimal

// StagingRemision is an externally produced delivery record awaiting
// reconciliation. Fecha and HoraCarga are carried as local calendar
// date/time; the ingestion layer writes them verbatim and nothing in
// this engine re-derives them through UTC-aware parsing.
type StagingRemision struct {
	Id             string    `gorm:"primary_key;size:36" json:"id"`
	SessionId      string    `gorm:"index;size:36" json:"session_id"`
	RowNumber      int       `json:"row_number"`
	OrdenOriginal  *string   `gorm:"size:50" json:"orden_original"`
	Fecha          time.Time `gorm:"type:date;not null" json:"fecha" validate:"required"`
	HoraCarga      string    `gorm:"size:8" json:"hora_carga"`
	RemisionNumber string    `gorm:"index;size:50;not null" json:"remision_number" validate:"required"`
	Estatus        string    `gorm:"size:50" json:"estatus"`

	VolumenFabricado decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"volumen_fabricado" validate:"required"`
	UnitPrice        *decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_price"`

	ClienteCodigo       string `gorm:"size:50" json:"cliente_codigo"`
	ClienteName         string `gorm:"size:255" json:"cliente_name"`
	ObraName            string `gorm:"size:255" json:"obra_name"`
	PuntoEntrega        string `gorm:"size:255" json:"punto_entrega"`
	ComentariosExternos string `gorm:"type:text" json:"comentarios_externos"`
	ComentariosInternos string `gorm:"type:text" json:"comentarios_internos"`
	ProductDescription  string `gorm:"size:255" json:"product_description"`
	RecipeCode          string `gorm:"size:100" json:"recipe_code"`
	Conductor           string `gorm:"size:100" json:"conductor"`
	Placas              string `gorm:"size:50" json:"placas"`

	ClientId           *string `gorm:"index;size:36" json:"client_id"`
	ConstructionSiteId *string `gorm:"size:36" json:"construction_site_id"`
	RecipeId           *string `gorm:"index;size:36" json:"recipe_id"`
	QuoteId            *string `gorm:"size:36" json:"quote_id"`
	QuoteDetailId      *string `gorm:"size:36" json:"quote_detail_id"`

	MaterialsTeorico   MaterialMap `gorm:"serializer:json" json:"materials_teorico"`
	MaterialsReal      MaterialMap `gorm:"serializer:json" json:"materials_real"`
	MaterialsRetrabajo MaterialMap `gorm:"serializer:json" json:"materials_retrabajo"`
	MaterialsManual    MaterialMap `gorm:"serializer:json" json:"materials_manual"`

	IsExcludedFromImport bool              `gorm:"default:false" json:"is_excluded_from_import"`
	DuplicateStrategy    DuplicateStrategy `gorm:"size:20;default:''" json:"duplicate_strategy"`
	SuggestedOrderGroup  string            `gorm:"size:255" json:"suggested_order_group"`
	SuggestedOrderId     *string           `gorm:"size:36" json:"suggested_order_id"`

	PlantId   string    `gorm:"index;size:36;not null" json:"plant_id" validate:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StagingRemision) TableName() string {
	return "staging_remisiones"
}

// ShouldImport reports whether this record may participate in grouping,
// scoring or persistence. Excluded and materials-only duplicates are
// filtered at every entry point, not just once upstream.
func (r *StagingRemision) ShouldImport() bool {
	return !r.IsExcludedFromImport && r.DuplicateStrategy != DuplicateStrategyMaterialsOnly
}

// FechaString is the record's local calendar date as YYYY-MM-DD.
func (r *StagingRemision) FechaString() string {
	return utils.DateString(r.Fecha)
}

// MaterialCodes is the union of codes across the four source maps.
func (r *StagingRemision) MaterialCodes() []string {
	seen := make(map[string]bool)
	var codes []string
	for _, m := range []MaterialMap{r.MaterialsTeorico, r.MaterialsReal, r.MaterialsRetrabajo, r.MaterialsManual} {
		for code := range m {
			if !seen[code] {
				seen[code] = true
				codes = append(codes, code)
			}
		}
	}
	return codes
}

func (r *StagingRemision) materialAt(m MaterialMap, code string) decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	return m[code]
}

// DeriveMaterialQuantities computes the persisted consumption numbers for
// one material code:
//
//	teorica = teorico[code]
//	ajuste  = retrabajo[code] + manual[code]
//	real    = realBase[code] + ajuste
func (r *StagingRemision) DeriveMaterialQuantities(code string) (teorica, real, ajuste decimal.Decimal) {
	teorica = r.materialAt(r.MaterialsTeorico, code)
	ajuste = r.materialAt(r.MaterialsRetrabajo, code).Add(r.materialAt(r.MaterialsManual, code))
	real = r.materialAt(r.MaterialsReal, code).Add(ajuste)
	return teorica, real, ajuste
}

// GetStagingRemisionesBySession loads a session's records in row order.
func GetStagingRemisionesBySession(ctx context.Context, plantId, sessionId string) ([]*StagingRemision, error) {
	db := config.GetDB()
	var rows []*StagingRemision
	err := db.WithContext(ctx).
		Where("plant_id = ? AND session_id = ?", plantId, sessionId).
		Order("row_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SearchStagingRemisiones supports the operator-facing lookup used to
// locate a record to reassign, independent of matching.
type StagingSearchFilters struct {
	SearchTerm string
	ClientId   string
	DateFrom   string // YYYY-MM-DD, inclusive
	DateTo     string
	PlantId    string
	Limit      int
}

func SearchStagingRemisiones(ctx context.Context, filters StagingSearchFilters) ([]*StagingRemision, error) {
	db := config.GetDB()
	limit := filters.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	dbCtx := db.WithContext(ctx).Model(&StagingRemision{})
	if filters.PlantId != "" {
		dbCtx = dbCtx.Where("plant_id = ?", filters.PlantId)
	}
	if filters.SearchTerm != "" {
		pattern := "%" + filters.SearchTerm + "%"
		dbCtx = dbCtx.Where("remision_number LIKE ? OR cliente_name LIKE ? OR obra_name LIKE ?", pattern, pattern, pattern)
	}
	if filters.ClientId != "" {
		dbCtx = dbCtx.Where("client_id = ?", filters.ClientId)
	}
	if filters.DateFrom != "" {
		dbCtx = dbCtx.Where("fecha >= ?", filters.DateFrom)
	}
	if filters.DateTo != "" {
		dbCtx = dbCtx.Where("fecha <= ?", filters.DateTo)
	}

	var rows []*StagingRemision
	if err := dbCtx.Order("fecha DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
