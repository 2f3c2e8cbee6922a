package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dcconcretos/remisiones_backend/appctx"
	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/dcconcretos/remisiones_backend/utils"
	"github.com/dcconcretos/remisiones_backend/workflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func main() {
	plantID := flag.String("plant-id", "", "Required: plant id (uuid)")
	sessionID := flag.String("session-id", "", "Required: staging session id (uuid)")
	apply := flag.Bool("apply", false, "Persist matched groups (default is a dry run that only prints the plan)")
	bulk := flag.Bool("bulk", true, "Use bulk import mode when applying (defers per-order recalculation)")
	createProposals := flag.Bool("create-proposals", false, "Also persist new-order proposals as orders (implies --apply)")
	flag.Parse()

	if strings.TrimSpace(*plantID) == "" || strings.TrimSpace(*sessionID) == "" {
		fmt.Fprintln(os.Stderr, "--plant-id and --session-id are required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if *apply || *createProposals {
		// The per-order apply lock lives in redis; dry runs don't need it.
		config.ConnectRedisWithRetry()
	}

	ctx := appctx.Set(context.Background(), appctx.ContextKeyPlantId, *plantID)
	ctx = appctx.Set(ctx, appctx.ContextKeySessionId, *sessionID)
	ctx = appctx.Set(ctx, appctx.ContextKeyCorrelationId, uuid.NewString())

	if err := utils.ValidateResourceId[models.Plant](ctx, "", *plantID); err != nil {
		fmt.Fprintf(os.Stderr, "unknown plant %s: %v\n", *plantID, err)
		os.Exit(1)
	}

	records, err := models.GetStagingRemisionesBySession(ctx, *plantID, *sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load staging records: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("no staging records for session")
		return
	}

	materials, err := models.NewMaterialLookup(ctx, *plantID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load material lookup: %v\n", err)
		os.Exit(1)
	}

	var allCodes []string
	for _, record := range records {
		allCodes = append(allCodes, record.MaterialCodes()...)
	}
	if missing := materials.MissingCodes(allCodes); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d material codes have no catalog entry and will be skipped: %s\n",
			len(missing), strings.Join(missing, ", "))
	}

	engine := workflow.NewReconcileEngine(materials, config.DefaultMatchingConfig())

	duplicates := engine.AnalyzeDuplicates(ctx, records)
	for _, dup := range duplicates {
		fmt.Printf("duplicate %s -> order %s risk=%s strategy=%s factors=%s\n",
			dup.RemisionNumber, dup.ExistingOrderNumber, dup.RiskLevel, dup.SuggestedStrategy,
			strings.Join(dup.Factors, "; "))
	}

	plan := engine.Reconcile(ctx, records)
	fmt.Printf("records=%d matched_groups=%d new_order_suggestions=%d\n",
		len(records), len(plan.Matched), len(plan.Suggestions))
	for _, match := range plan.Matched {
		fmt.Printf("match order=%s score=%.2f records=%d reasons=%s\n",
			match.Order.OrderNumber, match.Score, len(match.Records),
			strings.Join(match.Reasons, "; "))
	}
	for _, suggestion := range plan.Suggestions {
		fmt.Printf("suggest new order %q records=%d volume=%s recipes=%s\n",
			suggestion.SuggestedName, len(suggestion.Records),
			suggestion.TotalVolume.String(), strings.Join(suggestion.RecipeCodes, ","))
	}

	if !*apply && !*createProposals {
		fmt.Println("dry run, nothing applied (pass --apply to persist)")
		return
	}

	results := engine.ApplyMatches(ctx, plan.Matched, *bulk)
	exitCode := 0
	for _, result := range results {
		if result.Err != nil {
			exitCode = 1
			fmt.Fprintf(os.Stderr, "order %s: apply failed: %v\n", result.OrderId, result.Err)
			continue
		}
		fmt.Printf("order %s: created=%d duplicates_skipped=%d materials=%d failed_chunks=%d\n",
			result.OrderId, result.RecordsCreated, result.DuplicatesSkipped,
			result.MaterialsCreated, result.FailedChunks)
	}

	if *createProposals {
		for _, suggestion := range plan.Suggestions {
			order, items := buildProposedOrder(*plantID, suggestion)
			if err := models.CreateOrderWithItems(ctx, order, items); err != nil {
				exitCode = 1
				fmt.Fprintf(os.Stderr, "proposal %q: create failed: %v\n", suggestion.SuggestedName, err)
				continue
			}
			result := engine.ApplyToOrder(ctx, order.Id, suggestion.Records, *bulk)
			if result.Err != nil {
				exitCode = 1
				fmt.Fprintf(os.Stderr, "proposal %q: apply failed: %v\n", suggestion.SuggestedName, result.Err)
				continue
			}
			fmt.Printf("created order %s (%q): records=%d materials=%d\n",
				order.OrderNumber, suggestion.SuggestedName, result.RecordsCreated, result.MaterialsCreated)
		}
	}
	os.Exit(exitCode)
}

// buildProposedOrder turns a new-order suggestion into a persistable
// order with one concrete line per distinct recipe in the group.
func buildProposedOrder(plantID string, suggestion *workflow.OrderSuggestion) (*models.Order, []*models.OrderItem) {
	rep := suggestion.Records[0]
	order := &models.Order{
		Id:                 uuid.NewString(),
		OrderNumber:        "PROP-" + rep.RemisionNumber,
		ClientName:         rep.ClienteName,
		ConstructionSiteId: suggestion.ConstructionSiteId,
		ConstructionSite:   rep.ObraName,
		DeliveryDate:       rep.Fecha,
		DeliveryTime:       rep.HoraCarga,
		OrderStatus:        models.OrderStatusCreated,
		CreditStatus:       models.CreditStatusApproved,
		ElementDescription: suggestion.SuggestedName,
		PlantId:            plantID,
	}
	if suggestion.ClientId != nil {
		order.ClientId = *suggestion.ClientId
	}

	type line struct {
		recipeId string
		volume   decimal.Decimal
		price    *decimal.Decimal
		desc     string
	}
	byRecipe := make(map[string]*line)
	var recipeOrder []string
	for _, record := range suggestion.Records {
		recipeId := ""
		if record.RecipeId != nil {
			recipeId = *record.RecipeId
		}
		entry, ok := byRecipe[recipeId]
		if !ok {
			entry = &line{recipeId: recipeId, desc: record.ProductDescription}
			byRecipe[recipeId] = entry
			recipeOrder = append(recipeOrder, recipeId)
		}
		entry.volume = entry.volume.Add(record.VolumenFabricado)
		if entry.price == nil && record.UnitPrice != nil {
			entry.price = record.UnitPrice
		}
	}

	var items []*models.OrderItem
	for _, recipeId := range recipeOrder {
		entry := byRecipe[recipeId]
		item := &models.OrderItem{
			Id:                 uuid.NewString(),
			OrderId:            order.Id,
			ProductType:        models.OrderItemTypeConcrete,
			ProductDescription: entry.desc,
			Volume:             entry.volume,
		}
		if entry.recipeId != "" {
			item.RecipeId = &entry.recipeId
		}
		if entry.price != nil {
			item.UnitPrice = *entry.price
			item.TotalPrice = entry.price.Mul(entry.volume)
		}
		items = append(items, item)
	}
	return order, items
}
