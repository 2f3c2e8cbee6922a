package workflow

import (
	"testing"
	"time"

	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/shopspring/decimal"
)

func mayFirst() time.Time {
	return time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
}

func exactMatchFixtures() (*models.StagingRemision, *models.Order) {
	record := &models.StagingRemision{
		Id:               "rec-1",
		RemisionNumber:   "12345",
		ClientId:         strPtr("C1"),
		RecipeId:         strPtr("R1"),
		Fecha:            mayFirst(),
		VolumenFabricado: decimal.NewFromInt(7),
		PlantId:          "P1",
	}
	item := concreteItem("R1")
	item.Volume = decimal.NewFromInt(8)
	order := &models.Order{
		Id:           "o1",
		ClientId:     "C1",
		DeliveryDate: mayFirst(),
		OrderStatus:  models.OrderStatusCreated,
		Items:        []*models.OrderItem{item},
		PlantId:      "P1",
	}
	return record, order
}

func hasReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}

func TestScoreOrderCompatibility_ExactMatch(t *testing.T) {
	record, order := exactMatchFixtures()
	eval := ScoreOrderCompatibility([]*models.StagingRemision{record}, order)
	if eval.Score < 0.9 {
		t.Fatalf("exact match should score at least 0.9, got %v", eval.Score)
	}
	for _, want := range []string{"Cliente exacto", "Fecha exacta", "Receta exacta (100%)"} {
		if !hasReason(eval.Reasons, want) {
			t.Fatalf("expected reason %q, got %v", want, eval.Reasons)
		}
	}
}

func TestScoreOrderCompatibility_Bounds(t *testing.T) {
	record, order := exactMatchFixtures()
	cases := []struct {
		name    string
		records []*models.StagingRemision
		order   *models.Order
	}{
		{"empty records", nil, order},
		{"exact", []*models.StagingRemision{record}, order},
		{"unrelated", []*models.StagingRemision{{Id: "x", Fecha: mayFirst().AddDate(0, 6, 0)}}, order},
	}
	for _, tc := range cases {
		eval := ScoreOrderCompatibility(tc.records, tc.order)
		if eval.Score < 0 || eval.Score > 1 {
			t.Fatalf("%s: score out of bounds: %v", tc.name, eval.Score)
		}
	}
}

func TestScoreOrderCompatibility_PartialRecipeRatio(t *testing.T) {
	_, order := exactMatchFixtures()
	matching := &models.StagingRemision{Id: "a", ClientId: strPtr("C1"), RecipeId: strPtr("R1"), Fecha: mayFirst()}
	failing := &models.StagingRemision{Id: "b", ClientId: strPtr("C1"), RecipeId: strPtr("R7"), Fecha: mayFirst()}
	eval := ScoreOrderCompatibility([]*models.StagingRemision{matching, failing}, order)
	if hasReason(eval.Reasons, "Receta exacta (100%)") {
		t.Fatalf("half-matching group must not report an exact recipe match: %v", eval.Reasons)
	}
	if !hasReason(eval.Reasons, "Receta parcial (50%)") {
		t.Fatalf("expected partial recipe reason, got %v", eval.Reasons)
	}
}

func TestScoreOrderCompatibility_RelaxedSiteBonus(t *testing.T) {
	record, order := exactMatchFixtures()
	record.ObraName = "Bodega poniente"
	order.ConstructionSite = "Nave industrial 4"
	eval := ScoreOrderCompatibility([]*models.StagingRemision{record}, order)
	if !hasReason(eval.Reasons, "Obra distinta, resto coincide") {
		t.Fatalf("client+date+recipe all strong, expected relaxed site bonus, got %v", eval.Reasons)
	}
}

func TestScoreOrderCompatibility_QuoteLinkage(t *testing.T) {
	record, order := exactMatchFixtures()
	record.QuoteDetailId = strPtr("qd1")
	order.Items[0].QuoteDetailId = strPtr("qd1")
	eval := ScoreOrderCompatibility([]*models.StagingRemision{record}, order)
	if !hasReason(eval.Reasons, "Cotización exacta") {
		t.Fatalf("expected quote linkage reason, got %v", eval.Reasons)
	}
}
