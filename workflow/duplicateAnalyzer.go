package workflow

import (
	"context"
	"errors"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/dcconcretos/remisiones_backend/utils"
	"github.com/sirupsen/logrus"
)

// HistoryStore loads prior activity for a persisted remision number.
type HistoryStore interface {
	GetRemisionHistory(ctx context.Context, plantId, remisionNumber string) (*models.RemisionHistory, error)
}

type gormHistoryStore struct{}

func (gormHistoryStore) GetRemisionHistory(ctx context.Context, plantId, remisionNumber string) (*models.RemisionHistory, error) {
	return models.GetRemisionHistory(ctx, plantId, remisionNumber)
}

// NewHistoryStore returns the database-backed history store.
func NewHistoryStore() HistoryStore {
	return gormHistoryStore{}
}

// DuplicateInfo is the operator-facing verdict for one staging record
// whose number already exists.
type DuplicateInfo struct {
	RemisionNumber      string
	ExistingOrderId     string
	ExistingOrderNumber string
	RiskScore           int
	RiskLevel           models.RiskLevel
	Factors             []string
	SuggestedStrategy   models.DuplicateStrategy
}

// DuplicateAnalyzer weighs the intervention history of an already
// persisted remision to suggest how a re-imported copy should be
// handled.
type DuplicateAnalyzer struct {
	history HistoryStore
	logger  *logrus.Logger
}

func NewDuplicateAnalyzer(history HistoryStore) *DuplicateAnalyzer {
	return &DuplicateAnalyzer{history: history, logger: config.GetLogger()}
}

// Analyze inspects each record whose number is already persisted.
// Records without history are not duplicates and produce no entry; a
// failed lookup is logged and skipped so the batch keeps going.
func (a *DuplicateAnalyzer) Analyze(ctx context.Context, records []*models.StagingRemision) []*DuplicateInfo {
	var infos []*DuplicateInfo
	for _, record := range records {
		history, err := a.history.GetRemisionHistory(ctx, record.PlantId, record.RemisionNumber)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				continue
			}
			config.LogError(a.logger, "workflow", "DuplicateAnalyzer.Analyze", "history lookup failed, skipping record", map[string]interface{}{
				"remisionNumber": record.RemisionNumber,
			}, err)
			continue
		}
		infos = append(infos, a.assess(record, history))
	}
	return infos
}

// assess scores how risky it is to touch the persisted copy. Operator
// interventions weigh heaviest; data drift between the copies weighs
// less.
func (a *DuplicateAnalyzer) assess(record *models.StagingRemision, history *models.RemisionHistory) *DuplicateInfo {
	info := &DuplicateInfo{
		RemisionNumber:      record.RemisionNumber,
		ExistingOrderId:     history.OrderId,
		ExistingOrderNumber: history.OrderNumber,
	}

	if history.StatusDecisions > 0 {
		info.RiskScore += 3
		info.Factors = append(info.Factors, "Decisiones de estatus registradas")
	}
	if history.ReassignmentCount > 0 {
		info.RiskScore += 3
		info.Factors = append(info.Factors, "Reasignaciones previas")
	}
	if history.HasWasteMaterial {
		info.RiskScore += 2
		info.Factors = append(info.Factors, "Material de desperdicio registrado")
	}
	if !record.VolumenFabricado.Equal(history.VolumenFabricado) {
		info.RiskScore += 2
		info.Factors = append(info.Factors, "Volumen difiere del registro existente")
	}
	if record.FechaString() != utils.DateString(history.Fecha) {
		info.RiskScore++
		info.Factors = append(info.Factors, "Fecha difiere del registro existente")
	}
	if !history.HasMaterials {
		info.RiskScore++
		info.Factors = append(info.Factors, "Registro existente sin materiales")
	}

	switch {
	case info.RiskScore <= 2:
		info.RiskLevel = models.RiskLevelLow
	case info.RiskScore <= 5:
		info.RiskLevel = models.RiskLevelMedium
	default:
		info.RiskLevel = models.RiskLevelHigh
	}

	if info.RiskLevel != models.RiskLevelHigh && !history.HasMaterials {
		info.SuggestedStrategy = models.DuplicateStrategyMaterialsOnly
	} else {
		info.SuggestedStrategy = models.DuplicateStrategySkip
	}
	return info
}
