package workflow

import (
	"testing"

	"github.com/dcconcretos/remisiones_backend/models"
)

func strPtr(s string) *string { return &s }

func concreteItem(recipeId string) *models.OrderItem {
	item := &models.OrderItem{Id: "item-" + recipeId, ProductType: models.OrderItemTypeConcrete}
	if recipeId != "" {
		item.RecipeId = strPtr(recipeId)
	}
	return item
}

func TestHasStrictRecipeMatch_DirectLine(t *testing.T) {
	order := &models.Order{Id: "o1", Items: []*models.OrderItem{concreteItem("R1"), concreteItem("R2")}}
	record := &models.StagingRemision{Id: "r1", RecipeId: strPtr("R2")}
	if !HasStrictRecipeMatch(record, order) {
		t.Fatal("expected direct line recipe to pass the gate")
	}
}

func TestHasStrictRecipeMatch_QuoteLineFallback(t *testing.T) {
	item := &models.OrderItem{
		Id:            "item-q",
		ProductType:   models.OrderItemTypeConcrete,
		QuoteDetailId: strPtr("qd1"),
		QuoteDetail:   &models.QuoteDetail{Id: "qd1", RecipeId: strPtr("R9")},
	}
	order := &models.Order{Id: "o1", Items: []*models.OrderItem{item}}
	record := &models.StagingRemision{Id: "r1", RecipeId: strPtr("R9")}
	if !HasStrictRecipeMatch(record, order) {
		t.Fatal("expected quote-linked recipe to pass the gate")
	}
}

func TestHasStrictRecipeMatch_Mismatch(t *testing.T) {
	order := &models.Order{Id: "o1", Items: []*models.OrderItem{concreteItem("R1")}}
	record := &models.StagingRemision{Id: "r1", RecipeId: strPtr("R2")}
	if HasStrictRecipeMatch(record, order) {
		t.Fatal("expected mismatched recipe to fail the gate")
	}
}

func TestHasStrictRecipeMatch_NoLines(t *testing.T) {
	order := &models.Order{Id: "o1"}
	record := &models.StagingRemision{Id: "r1", RecipeId: strPtr("R1")}
	if HasStrictRecipeMatch(record, order) {
		t.Fatal("expected order without lines to fail the gate")
	}
}

func TestHasStrictRecipeMatch_RecordWithoutRecipe(t *testing.T) {
	order := &models.Order{Id: "o1", Items: []*models.OrderItem{concreteItem("R1")}}
	record := &models.StagingRemision{Id: "r1"}
	if HasStrictRecipeMatch(record, order) {
		t.Fatal("gate itself must fail for a record without a recipe id; exemption is the caller's job")
	}
}

func TestHasStrictRecipeMatch_IgnoresNonConcreteLines(t *testing.T) {
	pump := &models.OrderItem{Id: "p1", ProductType: models.OrderItemTypePumping, RecipeId: strPtr("R1")}
	order := &models.Order{Id: "o1", Items: []*models.OrderItem{pump}}
	record := &models.StagingRemision{Id: "r1", RecipeId: strPtr("R1")}
	if HasStrictRecipeMatch(record, order) {
		t.Fatal("pumping lines must not satisfy the recipe gate")
	}
}
