package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/models"
	"gorm.io/gorm"
)

// Recomputes delivered volumes and amounts for orders whose remisiones
// were applied in bulk mode, or repairs totals after manual data fixes.
func main() {
	plantID := flag.String("plant-id", "", "Required unless --order-id is given: plant id (uuid)")
	orderID := flag.String("order-id", "", "Optional: recalculate a single order")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing orders and continue")
	flag.Parse()

	if strings.TrimSpace(*orderID) == "" && strings.TrimSpace(*plantID) == "" {
		fmt.Fprintln(os.Stderr, "--plant-id or --order-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := context.Background()
	var orderIds []string
	if strings.TrimSpace(*orderID) != "" {
		orderIds = []string{strings.TrimSpace(*orderID)}
	} else {
		err := db.WithContext(ctx).Model(&models.Order{}).
			Where("plant_id = ? AND order_status IN ?", *plantID, models.OpenOrderStatuses()).
			Pluck("id", &orderIds).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list orders: %v\n", err)
			os.Exit(1)
		}
	}

	failed := 0
	for _, id := range orderIds {
		err := db.Transaction(func(tx *gorm.DB) error {
			return models.RecalculateOrderTotals(ctx, tx, id)
		})
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "order %s: %v\n", id, err)
			if !*continueOnError {
				os.Exit(1)
			}
			continue
		}
		fmt.Printf("order %s: totals recalculated\n", id)
	}
	fmt.Printf("done: %d orders, %d failed\n", len(orderIds), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
