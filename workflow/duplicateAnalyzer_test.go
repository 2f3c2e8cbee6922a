package workflow

import (
	"context"
	"testing"

	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/dcconcretos/remisiones_backend/utils"
	"github.com/shopspring/decimal"
)

type fakeHistoryStore map[string]*models.RemisionHistory

func (f fakeHistoryStore) GetRemisionHistory(_ context.Context, _, remisionNumber string) (*models.RemisionHistory, error) {
	history, ok := f[remisionNumber]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return history, nil
}

func TestAnalyze_UnknownNumbersAreNotDuplicates(t *testing.T) {
	analyzer := NewDuplicateAnalyzer(fakeHistoryStore{})
	record := stagingRecord("r1", "C1", "R1", mayFirst(), 5)
	if infos := analyzer.Analyze(context.Background(), []*models.StagingRemision{record}); len(infos) != 0 {
		t.Fatalf("records without history must produce no verdicts, got %d", len(infos))
	}
}

func TestAnalyze_LowRiskMissingMaterials(t *testing.T) {
	record := stagingRecord("r1", "C1", "R1", mayFirst(), 5)
	history := &models.RemisionHistory{
		RemisionId:       "rem-1",
		OrderId:          "o1",
		OrderNumber:      "ORD-1",
		VolumenFabricado: decimal.NewFromInt(5),
		Fecha:            mayFirst(),
		HasMaterials:     false,
	}
	analyzer := NewDuplicateAnalyzer(fakeHistoryStore{record.RemisionNumber: history})

	infos := analyzer.Analyze(context.Background(), []*models.StagingRemision{record})
	if len(infos) != 1 {
		t.Fatalf("expected one verdict, got %d", len(infos))
	}
	info := infos[0]
	if info.RiskScore != 1 || info.RiskLevel != models.RiskLevelLow {
		t.Fatalf("missing materials alone is low risk, got score=%d level=%s", info.RiskScore, info.RiskLevel)
	}
	if info.SuggestedStrategy != models.DuplicateStrategyMaterialsOnly {
		t.Fatalf("low-risk copy without materials should suggest materials-only, got %s", info.SuggestedStrategy)
	}
}

func TestAnalyze_InterventionsRaiseRisk(t *testing.T) {
	record := stagingRecord("r1", "C1", "R1", mayFirst(), 5)
	history := &models.RemisionHistory{
		RemisionId:        "rem-1",
		OrderId:           "o1",
		VolumenFabricado:  decimal.NewFromInt(8), // differs: +2
		Fecha:             mayFirst().AddDate(0, 0, 1), // differs: +1
		HasMaterials:      true,
		StatusDecisions:   1, // +3
		ReassignmentCount: 2, // +3
	}
	analyzer := NewDuplicateAnalyzer(fakeHistoryStore{record.RemisionNumber: history})

	infos := analyzer.Analyze(context.Background(), []*models.StagingRemision{record})
	info := infos[0]
	if info.RiskScore != 9 || info.RiskLevel != models.RiskLevelHigh {
		t.Fatalf("expected high risk score 9, got score=%d level=%s", info.RiskScore, info.RiskLevel)
	}
	if info.SuggestedStrategy != models.DuplicateStrategySkip {
		t.Fatalf("high-risk duplicates should suggest skip, got %s", info.SuggestedStrategy)
	}
}

func TestAnalyze_MediumRisk(t *testing.T) {
	record := stagingRecord("r1", "C1", "R1", mayFirst(), 5)
	history := &models.RemisionHistory{
		RemisionId:       "rem-1",
		OrderId:          "o1",
		VolumenFabricado: decimal.NewFromInt(8), // +2
		Fecha:            mayFirst(),
		HasMaterials:     false, // +1
	}
	analyzer := NewDuplicateAnalyzer(fakeHistoryStore{record.RemisionNumber: history})

	info := analyzer.Analyze(context.Background(), []*models.StagingRemision{record})[0]
	if info.RiskScore != 3 || info.RiskLevel != models.RiskLevelMedium {
		t.Fatalf("expected medium risk score 3, got score=%d level=%s", info.RiskScore, info.RiskLevel)
	}
}
