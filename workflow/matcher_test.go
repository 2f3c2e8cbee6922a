package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/shopspring/decimal"
)

// fakeOrderSearcher answers candidate queries from a fixed order list,
// applying the same criteria the database path would.
type fakeOrderSearcher struct {
	orders  []*models.Order
	failAll bool
}

func (f *fakeOrderSearcher) SearchCandidateOrders(_ context.Context, criteria models.CandidateCriteria) ([]*models.Order, error) {
	if f.failAll {
		return nil, errors.New("storage unreachable")
	}
	var out []*models.Order
	for _, order := range f.orders {
		if criteria.ClientId != "" && order.ClientId != criteria.ClientId {
			continue
		}
		if criteria.PlantId != "" && order.PlantId != criteria.PlantId {
			continue
		}
		date := order.DeliveryDateString()
		if criteria.DateFrom != "" && date < criteria.DateFrom {
			continue
		}
		if criteria.DateTo != "" && date > criteria.DateTo {
			continue
		}
		if !order.OrderStatus.IsOpen() || order.CreditStatus != models.CreditStatusApproved {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func testMatcher(orders ...*models.Order) *OrderMatcher {
	cfg := config.DefaultMatchingConfig()
	search := NewCandidateSearch(&fakeOrderSearcher{orders: orders}, cfg)
	return NewOrderMatcher(search, cfg)
}

func openOrder(id, clientId string, date time.Time, recipeId string, volume int64) *models.Order {
	item := concreteItem(recipeId)
	item.Volume = decimal.NewFromInt(volume)
	return &models.Order{
		Id:           id,
		OrderNumber:  "ORD-" + id,
		ClientId:     clientId,
		DeliveryDate: date,
		OrderStatus:  models.OrderStatusValidated,
		CreditStatus: models.CreditStatusApproved,
		PlantId:      "P1",
		Items:        []*models.OrderItem{item},
	}
}

func stagingRecord(id, clientId, recipeId string, date time.Time, volume int64) *models.StagingRemision {
	record := &models.StagingRemision{
		Id:               id,
		RemisionNumber:   "REM-" + id,
		Fecha:            date,
		VolumenFabricado: decimal.NewFromInt(volume),
		PlantId:          "P1",
	}
	if clientId != "" {
		record.ClientId = strPtr(clientId)
	}
	if recipeId != "" {
		record.RecipeId = strPtr(recipeId)
	}
	return record
}

func TestMatch_SameDayAtThreshold(t *testing.T) {
	// client id +3, same day +3, capacity +1 = 7 raw points -> exactly 0.70
	order := openOrder("o1", "C1", mayFirst(), "R1", 10)
	matcher := testMatcher(order)
	record := stagingRecord("r1", "C1", "", mayFirst(), 5)

	result := matcher.Match(context.Background(), []*models.StagingRemision{record})
	if len(result.Matched) != 1 {
		t.Fatalf("score 0.70 on a same-day candidate must be accepted, got %d matches", len(result.Matched))
	}
	if result.Matched[0].Score != 0.70 {
		t.Fatalf("expected score 0.70, got %v", result.Matched[0].Score)
	}
}

func TestMatch_SameDayBelowThreshold(t *testing.T) {
	// client id +3, same day +3 = 6 raw points -> 0.60, under the
	// same-day bar; there is no cross-day candidate to fall back to.
	order := openOrder("o1", "C1", mayFirst(), "R1", 2)
	matcher := testMatcher(order)
	record := stagingRecord("r1", "C1", "", mayFirst(), 5)

	result := matcher.Match(context.Background(), []*models.StagingRemision{record})
	if len(result.Matched) != 0 {
		t.Fatalf("score 0.60 on a same-day candidate must be rejected, got %d matches", len(result.Matched))
	}
	if len(result.Unmatched) != 1 {
		t.Fatalf("rejected group must surface as unmatched, got %d", len(result.Unmatched))
	}
}

func TestMatch_RecipeMismatchBlocksCandidate(t *testing.T) {
	order := openOrder("o1", "C1", mayFirst(), "R2", 10)
	matcher := testMatcher(order)
	record := stagingRecord("r1", "C1", "R1", mayFirst(), 5)

	result := matcher.Match(context.Background(), []*models.StagingRemision{record})
	if len(result.Matched) != 0 {
		t.Fatal("candidate failing the recipe gate must be excluded regardless of other factors")
	}
	if len(result.Unmatched) != 1 {
		t.Fatalf("expected one unmatched group, got %d", len(result.Unmatched))
	}
}

func TestMatch_CrossDayFallback(t *testing.T) {
	// No same-day order; one exists a day later with a matching recipe:
	// client +3, date near +1.5, recipe +3, capacity +1 = 8.5 -> 0.85.
	later := mayFirst().AddDate(0, 0, 1)
	order := openOrder("o1", "C1", later, "R1", 10)
	matcher := testMatcher(order)
	record := stagingRecord("r1", "C1", "R1", mayFirst(), 5)

	result := matcher.Match(context.Background(), []*models.StagingRemision{record})
	if len(result.Matched) != 1 {
		t.Fatalf("cross-day candidate above 0.60 must be accepted, got %d matches", len(result.Matched))
	}
	if result.Matched[0].Order.Id != "o1" {
		t.Fatalf("unexpected order %s", result.Matched[0].Order.Id)
	}
}

func TestMatch_CrossDayBelowThreshold(t *testing.T) {
	// Only a next-day candidate exists and it scores weakly: client +3,
	// date near +1.5 = 4.5 raw -> 0.45, under the cross-day bar. The
	// group must fall through to a new-order proposal.
	later := mayFirst().AddDate(0, 0, 1)
	order := openOrder("o1", "C1", later, "R1", 2)
	matcher := testMatcher(order)
	record := stagingRecord("r1", "C1", "", mayFirst(), 5)

	result := matcher.Match(context.Background(), []*models.StagingRemision{record})
	if len(result.Matched) != 0 {
		t.Fatalf("cross-day candidate below 0.60 must be rejected, got %d matches", len(result.Matched))
	}
	if len(result.Unmatched) != 1 {
		t.Fatalf("rejected group must surface as unmatched, got %d", len(result.Unmatched))
	}
}

func TestMatch_ExclusionInvariant(t *testing.T) {
	order := openOrder("o1", "C1", mayFirst(), "R1", 10)
	matcher := testMatcher(order)

	excluded := stagingRecord("r1", "C1", "R1", mayFirst(), 5)
	excluded.IsExcludedFromImport = true
	materialsOnly := stagingRecord("r2", "C1", "R1", mayFirst(), 5)
	materialsOnly.DuplicateStrategy = models.DuplicateStrategyMaterialsOnly

	result := matcher.Match(context.Background(), []*models.StagingRemision{excluded, materialsOnly})
	if len(result.Matched) != 0 || len(result.Unmatched) != 0 {
		t.Fatal("excluded and materials-only records must never enter matching")
	}
}

func TestMatch_QueryFailureDegradesToUnmatched(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	search := NewCandidateSearch(&fakeOrderSearcher{failAll: true}, cfg)
	matcher := NewOrderMatcher(search, cfg)
	record := stagingRecord("r1", "C1", "R1", mayFirst(), 5)

	result := matcher.Match(context.Background(), []*models.StagingRemision{record})
	if len(result.Unmatched) != 1 {
		t.Fatal("when every tier fails the group must be reported unmatched, not crash the run")
	}
}

func TestGroupKey_PrefersOriginalOrderReference(t *testing.T) {
	a := stagingRecord("r1", "C1", "", mayFirst(), 5)
	a.OrdenOriginal = strPtr("OV-100")
	a.ClienteName = "Cliente A"
	b := stagingRecord("r2", "C2", "", mayFirst().AddDate(0, 0, 3), 5)
	b.OrdenOriginal = strPtr("OV-100")
	b.ClienteName = "Cliente B"
	if GroupKey(a) != GroupKey(b) {
		t.Fatal("records sharing an original order reference must bucket together")
	}
}

func TestGroupKey_DerivedKeyUsesFirstCommentToken(t *testing.T) {
	a := stagingRecord("r1", "C1", "", mayFirst(), 5)
	a.ClienteName = "Cliente A"
	a.ObraName = "Torre Norte"
	a.ComentariosExternos = "LOSA 3, bombeado"
	b := stagingRecord("r2", "C1", "", mayFirst(), 5)
	b.ClienteName = "Cliente A"
	b.ObraName = "Torre Norte"
	b.ComentariosExternos = "LOSA 3, tubería extra"
	c := stagingRecord("r3", "C1", "", mayFirst(), 5)
	c.ClienteName = "Cliente A"
	c.ObraName = "Torre Norte"
	c.ComentariosExternos = "MURO 2"

	if GroupKey(a) != GroupKey(b) {
		t.Fatal("same first comment token must bucket together")
	}
	if GroupKey(a) == GroupKey(c) {
		t.Fatal("different first comment tokens must bucket apart")
	}
}

func TestGroupKey_EmptyCommentsFallsBackToGeneral(t *testing.T) {
	a := stagingRecord("r1", "C1", "", mayFirst(), 5)
	a.ClienteName = "Cliente A"
	b := stagingRecord("r2", "C1", "", mayFirst(), 5)
	b.ClienteName = "Cliente A"
	if GroupKey(a) != GroupKey(b) {
		t.Fatal("records without comments must share the GENERAL bucket")
	}
}
