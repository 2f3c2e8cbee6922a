package workflow

import (
	"fmt"

	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/dcconcretos/remisiones_backend/utils"
	"github.com/shopspring/decimal"
)

// CompatibilityScore is the scored evaluation of one candidate order
// against a group of records. Score is normalized to [0,1]; Reasons carry
// one operator-facing line per contributing factor.
type CompatibilityScore struct {
	Score   float64
	Reasons []string
}

const scoreCeiling = 10.0

// ScoreOrderCompatibility rates how well an order can host a group of
// records. Raw points accumulate per factor and are normalized against a
// fixed ten-point ceiling. Pure: callers pass fully loaded orders.
func ScoreOrderCompatibility(records []*models.StagingRemision, order *models.Order) CompatibilityScore {
	result := CompatibilityScore{}
	if len(records) == 0 {
		return result
	}
	raw := 0.0
	rep := records[0]

	clientPts, clientReason, clientStrong := scoreClient(rep, order)
	raw += clientPts
	if clientReason != "" {
		result.Reasons = append(result.Reasons, clientReason)
	}

	datePts, dateReason := scoreDate(rep, order)
	raw += datePts
	if dateReason != "" {
		result.Reasons = append(result.Reasons, dateReason)
	}
	dateStrong := datePts >= 3

	recipePts, recipeReason := scoreRecipes(records, order)
	raw += recipePts
	if recipeReason != "" {
		result.Reasons = append(result.Reasons, recipeReason)
	}
	recipeStrong := recipePts >= 2.5

	sitePts, siteReason := scoreSite(rep, order, clientStrong && dateStrong && recipeStrong)
	raw += sitePts
	if siteReason != "" {
		result.Reasons = append(result.Reasons, siteReason)
	}

	if quoteLinked(records, order) {
		raw += 1
		result.Reasons = append(result.Reasons, "Cotización exacta")
	}

	if order.OrderStatus == models.OrderStatusCreated {
		raw += 0.5
		result.Reasons = append(result.Reasons, "Orden reciente")
	}

	if hasCapacity(records, order) {
		raw += 1
		result.Reasons = append(result.Reasons, "Capacidad suficiente")
	}

	if raw > scoreCeiling {
		raw = scoreCeiling
	}
	result.Score = raw / scoreCeiling
	return result
}

func scoreClient(rep *models.StagingRemision, order *models.Order) (pts float64, reason string, strong bool) {
	if id := utils.DereferencePtr(rep.ClientId); id != "" && id == order.ClientId {
		return 3, "Cliente exacto", true
	}
	sim := NameSimilarity(rep.ClienteName, order.ClientName)
	switch {
	case sim > 0.8:
		return 2.5, "Cliente muy similar", true
	case sim > 0.6:
		return 2, "Cliente similar", false
	case sim > 0.4:
		return 1, "Cliente parcialmente similar", false
	}
	return 0, "", false
}

func scoreSite(rep *models.StagingRemision, order *models.Order, relaxed bool) (float64, string) {
	if id := utils.DereferencePtr(rep.ConstructionSiteId); id != "" && utils.DereferencePtr(order.ConstructionSiteId) == id {
		return 2, "Obra exacta"
	}
	sim := NameSimilarity(rep.ObraName, order.ConstructionSite)
	switch {
	case sim > 0.8:
		return 1.8, "Obra muy similar"
	case sim > 0.6:
		return 1.5, "Obra similar"
	case sim > 0.4:
		return 1, "Obra parcialmente similar"
	}
	// Site names from the external system often diverge lexically even
	// when they denote the same physical site; when client, date and
	// recipe all match strongly the divergence is forgiven.
	if relaxed {
		return 1, "Obra distinta, resto coincide"
	}
	return 0, ""
}

func scoreDate(rep *models.StagingRemision, order *models.Order) (float64, string) {
	recordDate := rep.FechaString()
	orderDate := order.DeliveryDateString()
	if recordDate == orderDate {
		return 3, "Fecha exacta"
	}
	switch days := utils.DaysBetween(recordDate, orderDate); {
	case days <= 1:
		return 1.5, "Fecha próxima"
	case days <= 2:
		return 0.8, "Fecha cercana"
	case days <= 30:
		return 0.5, "Fecha distante"
	}
	return 0, ""
}

// scoreRecipes rates the fraction of recipe-carrying records that pass
// the strict gate. Records without a recipe id are exempt.
func scoreRecipes(records []*models.StagingRemision, order *models.Order) (float64, string) {
	withRecipe := 0
	matched := 0
	for _, record := range records {
		if utils.DereferencePtr(record.RecipeId) == "" {
			continue
		}
		withRecipe++
		if HasStrictRecipeMatch(record, order) {
			matched++
		}
	}
	if withRecipe == 0 {
		return 0, ""
	}
	ratio := float64(matched) / float64(withRecipe)
	switch {
	case ratio >= 1:
		return 3, "Receta exacta (100%)"
	case ratio >= 0.8:
		return 2.5, fmt.Sprintf("Receta compatible (%.0f%%)", ratio*100)
	case ratio > 0:
		return 1, fmt.Sprintf("Receta parcial (%.0f%%)", ratio*100)
	}
	return 0, ""
}

func quoteLinked(records []*models.StagingRemision, order *models.Order) bool {
	lineQuoteDetails := make(map[string]bool)
	for _, item := range order.Items {
		if id := utils.DereferencePtr(item.QuoteDetailId); id != "" {
			lineQuoteDetails[id] = true
		}
	}
	for _, record := range records {
		if id := utils.DereferencePtr(record.QuoteDetailId); id != "" && lineQuoteDetails[id] {
			return true
		}
	}
	return false
}

func hasCapacity(records []*models.StagingRemision, order *models.Order) bool {
	needed := utils.SumDecimals(records, func(r *models.StagingRemision) decimal.Decimal {
		return r.VolumenFabricado
	})
	ordered := utils.SumDecimals(order.Items, func(i *models.OrderItem) decimal.Decimal {
		if i.ProductType == models.OrderItemTypeConcrete {
			return i.Volume
		}
		return decimal.Zero
	})
	return ordered.GreaterThanOrEqual(needed)
}
