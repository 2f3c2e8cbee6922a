package models

import (
	"context"
	"time"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Order is a commercial ready-mix order that delivery records are
// reconciled against.
type Order struct {
	Id                 string       `gorm:"primary_key;size:36" json:"id"`
	OrderNumber        string       `gorm:"index;size:50;not null" json:"order_number"`
	ClientId           string       `gorm:"index;size:36;not null" json:"client_id"`
	ClientName         string       `gorm:"size:255" json:"client_name"`
	ConstructionSiteId *string      `gorm:"size:36" json:"construction_site_id"`
	ConstructionSite   string       `gorm:"size:255" json:"construction_site"`
	QuoteId            *string      `gorm:"size:36" json:"quote_id"`
	DeliveryDate       time.Time    `gorm:"type:date;not null;index" json:"delivery_date"`
	DeliveryTime       string       `gorm:"size:8" json:"delivery_time"`
	OrderStatus        OrderStatus  `gorm:"size:20;not null;default:'created'" json:"order_status"`
	CreditStatus       CreditStatus `gorm:"size:20;not null;default:'pending'" json:"credit_status"`

	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	InvoiceAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"invoice_amount"`

	ElementDescription  string `gorm:"size:255" json:"element_description"`
	SpecialRequirements string `gorm:"type:text" json:"special_requirements"`

	PlantId   string    `gorm:"index;size:36;not null" json:"plant_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Items []*OrderItem `gorm:"foreignKey:OrderId" json:"items"`
}

func (Order) TableName() string {
	return "orders"
}

// DeliveryDateString is the order's local calendar date as YYYY-MM-DD.
func (o *Order) DeliveryDateString() string {
	return utils.DateString(o.DeliveryDate)
}

type OrderItemType string

const (
	OrderItemTypeConcrete   OrderItemType = "concrete"
	OrderItemTypePumping    OrderItemType = "pumping"
	OrderItemTypeEmptyTruck OrderItemType = "empty_truck"
)

// OrderItem is one product line of an order. Concrete lines carry the
// recipe linkage that the hard gate checks against.
type OrderItem struct {
	Id                 string        `gorm:"primary_key;size:36" json:"id"`
	OrderId            string        `gorm:"index;size:36;not null" json:"order_id"`
	ProductType        OrderItemType `gorm:"size:20;not null;default:'concrete'" json:"product_type"`
	RecipeId           *string       `gorm:"index;size:36" json:"recipe_id"`
	QuoteDetailId      *string       `gorm:"size:36" json:"quote_detail_id"`
	ProductDescription string        `gorm:"size:255" json:"product_description"`

	Volume                  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"volume"`
	UnitPrice               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TotalPrice              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	ConcreteVolumeDelivered decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"concrete_volume_delivered"`
	PumpVolumeDelivered     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pump_volume_delivered"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	QuoteDetail *QuoteDetail `gorm:"foreignKey:QuoteDetailId" json:"quote_detail"`
}

// EffectiveRecipeId is the line's recipe id, read directly or through the
// linked quote detail when the line only carries a quote reference.
func (i *OrderItem) EffectiveRecipeId() string {
	if id := utils.DereferencePtr(i.RecipeId); id != "" {
		return id
	}
	if i.QuoteDetail != nil {
		return utils.DereferencePtr(i.QuoteDetail.RecipeId)
	}
	return ""
}

func (OrderItem) TableName() string {
	return "order_items"
}

// QuoteDetail links a priced recipe to a client quote. Used by the scorer
// for the quote-linkage bonus and by order creation for pricing.
type QuoteDetail struct {
	Id         string          `gorm:"primary_key;size:36" json:"id"`
	QuoteId    string          `gorm:"index;size:36;not null" json:"quote_id"`
	RecipeId   *string         `gorm:"index;size:36" json:"recipe_id"`
	FinalPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"final_price"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (QuoteDetail) TableName() string {
	return "quote_details"
}

// EffectiveRecipeIds returns the distinct non-empty recipe ids across an
// order's concrete items, resolving quote-linked lines. Normalization to
// string form happens here, at the query boundary, so the matching layer
// compares plain strings only.
func (o *Order) EffectiveRecipeIds() []string {
	var ids []string
	for _, item := range o.Items {
		if item.ProductType != OrderItemTypeConcrete {
			continue
		}
		if id := item.EffectiveRecipeId(); id != "" {
			ids = append(ids, id)
		}
	}
	return utils.UniqueSlice(ids)
}

// CandidateCriteria narrows the open-order search that feeds matching.
// Dates are inclusive YYYY-MM-DD bounds on delivery_date.
type CandidateCriteria struct {
	PlantId     string
	ClientId    string
	DateFrom    string
	DateTo      string
	OrderNumber string
	Statuses    []OrderStatus
	Limit       int
}

// SearchCandidateOrders finds open, credit-approved orders matching the
// criteria, items preloaded. Only statuses from OpenOrderStatuses are
// ever considered unless the criteria names its own set.
func SearchCandidateOrders(ctx context.Context, criteria CandidateCriteria) ([]*Order, error) {
	db := config.GetDB()

	statuses := criteria.Statuses
	if len(statuses) == 0 {
		statuses = OpenOrderStatuses()
	}
	limit := criteria.Limit
	if limit <= 0 {
		limit = 50
	}

	dbCtx := db.WithContext(ctx).Model(&Order{}).
		Where("order_status IN ?", statuses).
		Where("credit_status = ?", CreditStatusApproved)
	if criteria.PlantId != "" {
		dbCtx = dbCtx.Where("plant_id = ?", criteria.PlantId)
	}
	if criteria.ClientId != "" {
		dbCtx = dbCtx.Where("client_id = ?", criteria.ClientId)
	}
	if criteria.OrderNumber != "" {
		dbCtx = dbCtx.Where("order_number = ?", criteria.OrderNumber)
	}
	if criteria.DateFrom != "" {
		dbCtx = dbCtx.Where("delivery_date >= ?", criteria.DateFrom)
	}
	if criteria.DateTo != "" {
		dbCtx = dbCtx.Where("delivery_date <= ?", criteria.DateTo)
	}

	var orders []*Order
	err := dbCtx.Preload("Items").Preload("Items.QuoteDetail").
		Order("delivery_date ASC, order_number ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrderWithItems loads a single order with its items preloaded.
func GetOrderWithItems(ctx context.Context, orderId string) (*Order, error) {
	db := config.GetDB()
	var order Order
	err := db.WithContext(ctx).Preload("Items").Preload("Items.QuoteDetail").
		Where("id = ?", orderId).
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &order, nil
}

// RecalculateOrderTotals recomputes an order's delivered volumes and
// amounts from its persisted remisiones and items. Concrete item lines
// accumulate delivered volume proportionally by recipe; pumping lines
// accumulate total delivered volume.
func RecalculateOrderTotals(ctx context.Context, tx *gorm.DB, orderId string) error {
	var order Order
	err := tx.WithContext(ctx).Preload("Items").Preload("Items.QuoteDetail").
		Where("id = ?", orderId).
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorRecordNotFound
		}
		return err
	}

	var remisiones []*Remision
	if err := tx.WithContext(ctx).Where("order_id = ?", orderId).Find(&remisiones).Error; err != nil {
		return err
	}

	totalAmount := applyDeliveredTotals(order.Items, remisiones)
	for _, item := range order.Items {
		err := tx.WithContext(ctx).Model(&OrderItem{}).
			Where("id = ?", item.Id).
			Updates(map[string]interface{}{
				"concrete_volume_delivered": item.ConcreteVolumeDelivered,
				"pump_volume_delivered":     item.PumpVolumeDelivered,
				"total_price":               item.TotalPrice,
			}).Error
		if err != nil {
			return err
		}
	}

	return tx.WithContext(ctx).Model(&Order{}).
		Where("id = ?", orderId).
		Updates(map[string]interface{}{
			"total_amount":   totalAmount,
			"invoice_amount": totalAmount,
		}).Error
}

// applyDeliveredTotals recomputes each item's delivered volume and price
// from the given remisiones, in place, and returns the new order total.
// Concrete lines accumulate by their effective recipe id, so quote-linked
// lines without a direct recipe are credited through the quote detail.
// Pumping lines accumulate the total delivered volume. Cancelled
// remisiones never count.
func applyDeliveredTotals(items []*OrderItem, remisiones []*Remision) decimal.Decimal {
	deliveredByRecipe := make(map[string]decimal.Decimal)
	totalDelivered := decimal.Zero
	for _, rem := range remisiones {
		if rem.Estatus == string(RemisionStatusCancelado) {
			continue
		}
		totalDelivered = totalDelivered.Add(rem.VolumenFabricado)
		recipeId := utils.DereferencePtr(rem.RecipeId)
		deliveredByRecipe[recipeId] = deliveredByRecipe[recipeId].Add(rem.VolumenFabricado)
	}

	totalAmount := decimal.Zero
	for _, item := range items {
		switch item.ProductType {
		case OrderItemTypeConcrete:
			item.ConcreteVolumeDelivered = deliveredByRecipe[item.EffectiveRecipeId()]
		case OrderItemTypePumping:
			item.PumpVolumeDelivered = totalDelivered
		}
		delivered := item.ConcreteVolumeDelivered
		if item.ProductType == OrderItemTypePumping {
			delivered = item.PumpVolumeDelivered
		}
		item.TotalPrice = item.UnitPrice.Mul(delivered)
		totalAmount = totalAmount.Add(item.TotalPrice)
	}
	return totalAmount
}

// CreateOrderWithItems inserts a new order and its item lines in one
// transaction. Used when a group resolves to a brand new order.
func CreateOrderWithItems(ctx context.Context, order *Order, items []*OrderItem) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(order).Error; err != nil {
			return err
		}
		for _, item := range items {
			item.OrderId = order.Id
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
