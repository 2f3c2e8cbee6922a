package workflow

import (
	"testing"

	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/shopspring/decimal"
)

func TestGroup_NewOrdersMode(t *testing.T) {
	a := stagingRecord("r1", "C1", "", mayFirst(), 4)
	a.ClienteName = "Cliente A"
	a.ObraName = "Torre Norte"
	a.ComentariosExternos = "LOSA 3"
	a.RecipeCode = "FC250"
	b := stagingRecord("r2", "C1", "", mayFirst(), 6)
	b.ClienteName = "Cliente A"
	b.ObraName = "Torre Norte"
	b.ComentariosExternos = "LOSA 3, extra"
	b.RecipeCode = "FC300"

	suggestions := NewOrderGrouper().Group([]*models.StagingRemision{a, b}, GroupModeNew, nil, nil)
	if len(suggestions) != 1 {
		t.Fatalf("expected one suggestion, got %d", len(suggestions))
	}
	s := suggestions[0]
	if s.IsExistingOrder {
		t.Fatal("new-orders mode must never emit existing-order dispositions")
	}
	if !s.TotalVolume.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected aggregated volume 10, got %s", s.TotalVolume)
	}
	if len(s.RecipeCodes) != 2 {
		t.Fatalf("expected union of recipe codes, got %v", s.RecipeCodes)
	}
	if s.SuggestedName != "Torre Norte - LOSA 3 - 2024-05-01" {
		t.Fatalf("unexpected suggested name %q", s.SuggestedName)
	}
}

func TestGroup_MultipleTokensNameFallsBackToCount(t *testing.T) {
	a := stagingRecord("r1", "C1", "", mayFirst(), 4)
	a.ClienteName = "Cliente A"
	a.ObraName = "Torre Norte"
	a.OrdenOriginal = strPtr("OV-9")
	a.ComentariosExternos = "LOSA 3"
	b := stagingRecord("r2", "C1", "", mayFirst(), 6)
	b.ClienteName = "Cliente A"
	b.ObraName = "Torre Norte"
	b.OrdenOriginal = strPtr("OV-9")
	b.ComentariosExternos = "MURO 2"

	suggestions := NewOrderGrouper().Group([]*models.StagingRemision{a, b}, GroupModeNew, nil, nil)
	if len(suggestions) != 1 {
		t.Fatalf("expected one suggestion, got %d", len(suggestions))
	}
	if suggestions[0].SuggestedName != "Torre Norte - 2 elementos - 2024-05-01" {
		t.Fatalf("unexpected suggested name %q", suggestions[0].SuggestedName)
	}
}

func TestGroup_HybridReGatesMatchRecords(t *testing.T) {
	order := openOrder("o1", "C1", mayFirst(), "R1", 10)
	passing := stagingRecord("r1", "C1", "R1", mayFirst(), 5)
	failing := stagingRecord("r2", "C1", "R9", mayFirst(), 5)
	match := &OrderMatch{Order: order, Records: []*models.StagingRemision{passing, failing}, Score: 0.8}

	suggestions := NewOrderGrouper().Group([]*models.StagingRemision{passing, failing}, GroupModeHybrid, []*OrderMatch{match}, nil)

	var existing, proposals []*OrderSuggestion
	for _, s := range suggestions {
		if s.IsExistingOrder {
			existing = append(existing, s)
		} else {
			proposals = append(proposals, s)
		}
	}
	if len(existing) != 1 || len(existing[0].Records) != 1 || existing[0].Records[0].Id != "r1" {
		t.Fatalf("only the gate-passing record may stay on the existing order, got %+v", existing)
	}
	if len(proposals) != 1 || proposals[0].Records[0].Id != "r2" {
		t.Fatalf("the re-gated record must fall back to a new-order proposal, got %+v", proposals)
	}
}

func TestGroup_ExistingModeEmitsLeftovers(t *testing.T) {
	order := openOrder("o1", "C1", mayFirst(), "R1", 10)
	matched := stagingRecord("r1", "C1", "R1", mayFirst(), 5)
	unclaimed := stagingRecord("r2", "C2", "", mayFirst(), 3)
	unclaimed.ClienteName = "Otro Cliente"
	match := &OrderMatch{Order: order, Records: []*models.StagingRemision{matched}, Score: 0.8}

	suggestions := NewOrderGrouper().Group([]*models.StagingRemision{matched, unclaimed}, GroupModeExisting, []*OrderMatch{match}, nil)

	seen := make(map[string]int)
	var proposals int
	for _, s := range suggestions {
		if !s.IsExistingOrder {
			proposals++
		}
		for _, r := range s.Records {
			seen[r.Id]++
		}
	}
	if seen["r2"] != 1 || proposals != 1 {
		t.Fatalf("existing mode must route unclaimed records to a new-order proposal, got seen=%v proposals=%d", seen, proposals)
	}
	if seen["r1"] != 1 {
		t.Fatalf("matched record must keep its single existing-order disposition, got %v", seen)
	}
}

func TestGroup_ManualAssignmentsGetPerfectScore(t *testing.T) {
	record := stagingRecord("r1", "C1", "R1", mayFirst(), 5)
	manual := []*ManualAssignment{{Record: record, OrderId: "o7"}}

	suggestions := NewOrderGrouper().Group([]*models.StagingRemision{record}, GroupModeHybrid, nil, manual)
	if len(suggestions) != 1 {
		t.Fatalf("expected one suggestion, got %d", len(suggestions))
	}
	s := suggestions[0]
	if !s.IsExistingOrder || s.ExistingOrderId == nil || *s.ExistingOrderId != "o7" {
		t.Fatalf("manual assignment must target its order, got %+v", s)
	}
	if s.Score != 1.0 || !hasReason(s.Reasons, "Asignación manual") {
		t.Fatalf("manual assignment must carry a perfect score and fixed reason, got %v %v", s.Score, s.Reasons)
	}
}

func TestGroup_ExclusionInvariant(t *testing.T) {
	excluded := stagingRecord("r1", "C1", "R1", mayFirst(), 5)
	excluded.IsExcludedFromImport = true
	materialsOnly := stagingRecord("r2", "C1", "R1", mayFirst(), 5)
	materialsOnly.DuplicateStrategy = models.DuplicateStrategyMaterialsOnly
	order := openOrder("o1", "C1", mayFirst(), "R1", 10)
	match := &OrderMatch{Order: order, Records: []*models.StagingRemision{excluded}, Score: 0.9}
	manual := []*ManualAssignment{{Record: materialsOnly, OrderId: "o1"}}

	suggestions := NewOrderGrouper().Group([]*models.StagingRemision{excluded, materialsOnly}, GroupModeHybrid, []*OrderMatch{match}, manual)
	for _, s := range suggestions {
		for _, r := range s.Records {
			t.Fatalf("excluded record %s leaked into a suggestion", r.Id)
		}
	}
}

func TestGroup_EveryRecordHasExactlyOneDisposition(t *testing.T) {
	order := openOrder("o1", "C1", mayFirst(), "R1", 10)
	matched := stagingRecord("r1", "C1", "R1", mayFirst(), 5)
	loose := stagingRecord("r2", "C2", "", mayFirst(), 3)
	loose.ClienteName = "Otro Cliente"
	match := &OrderMatch{Order: order, Records: []*models.StagingRemision{matched}, Score: 0.8}

	suggestions := NewOrderGrouper().Group([]*models.StagingRemision{matched, loose}, GroupModeHybrid, []*OrderMatch{match}, nil)
	seen := make(map[string]int)
	for _, s := range suggestions {
		for _, r := range s.Records {
			seen[r.Id]++
		}
	}
	if seen["r1"] != 1 || seen["r2"] != 1 {
		t.Fatalf("each record must appear in exactly one disposition, got %v", seen)
	}
}
