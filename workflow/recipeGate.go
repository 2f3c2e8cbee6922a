package workflow

import (
	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/dcconcretos/remisiones_backend/utils"
)

// HasStrictRecipeMatch is the hard gate: a delivery record may only
// attach to an order when the record's recipe id equals the recipe id of
// at least one of the order's concrete items. A record with no recipe id,
// or an order with no recipe-linked concrete items, never passes.
func HasStrictRecipeMatch(record *models.StagingRemision, order *models.Order) bool {
	recordRecipe := utils.DereferencePtr(record.RecipeId)
	if recordRecipe == "" {
		return false
	}
	for _, orderRecipe := range order.EffectiveRecipeIds() {
		if orderRecipe == recordRecipe {
			return true
		}
	}
	return false
}
