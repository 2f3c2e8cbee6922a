package workflow

import (
	"fmt"
	"strings"

	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/dcconcretos/remisiones_backend/utils"
	"github.com/shopspring/decimal"
)

type GroupMode string

const (
	GroupModeNew      GroupMode = "new"
	GroupModeExisting GroupMode = "existing"
	GroupModeHybrid   GroupMode = "hybrid"
)

// OrderSuggestion is one disposition in the reconciliation plan: either
// an update to an existing order or a proposal for a brand-new one,
// never both.
type OrderSuggestion struct {
	GroupKey           string
	ClientId           *string
	ConstructionSiteId *string
	DateFrom           string
	DateTo             string
	Records            []*models.StagingRemision
	TotalVolume        decimal.Decimal
	RecipeCodes        []string
	SuggestedName      string
	ExistingOrderId    *string
	IsExistingOrder    bool
	Score              float64
	Reasons            []string
}

// ManualAssignment is an operator's explicit record-to-order decision,
// which bypasses scoring entirely.
type ManualAssignment struct {
	Record  *models.StagingRemision
	OrderId string
}

// OrderGrouper turns matcher output, manual decisions and leftover
// records into a deduplicated list of order suggestions.
type OrderGrouper struct{}

func NewOrderGrouper() *OrderGrouper {
	return &OrderGrouper{}
}

// Group assembles suggestions for the requested mode. Excluded and
// materials-only records are re-filtered at entry even though upstream
// already filters them. In hybrid and existing modes every match's
// records are re-checked through the strict gate against the order's
// actual lines; records that fail, and records no match or manual
// assignment claimed, fall back to the new-order path so nothing is
// dropped from the plan.
func (g *OrderGrouper) Group(records []*models.StagingRemision, mode GroupMode, matches []*OrderMatch, manual []*ManualAssignment) []*OrderSuggestion {
	importable := make([]*models.StagingRemision, 0, len(records))
	for _, record := range records {
		if record.ShouldImport() {
			importable = append(importable, record)
		}
	}

	if mode == GroupModeNew {
		return g.newOrderSuggestions(importable)
	}

	var suggestions []*OrderSuggestion
	assigned := make(map[string]bool)

	for _, match := range matches {
		var kept []*models.StagingRemision
		for _, record := range match.Records {
			if !record.ShouldImport() {
				continue
			}
			if utils.DereferencePtr(record.RecipeId) != "" && !HasStrictRecipeMatch(record, match.Order) {
				continue
			}
			kept = append(kept, record)
			assigned[record.Id] = true
		}
		if len(kept) == 0 {
			continue
		}
		suggestion := g.buildSuggestion(kept)
		suggestion.GroupKey = "order:" + match.Order.Id
		suggestion.ExistingOrderId = &match.Order.Id
		suggestion.IsExistingOrder = true
		suggestion.Score = match.Score
		suggestion.Reasons = match.Reasons
		suggestions = append(suggestions, suggestion)
	}

	byOrder := make(map[string][]*models.StagingRemision)
	var orderIds []string
	for _, assignment := range manual {
		record := assignment.Record
		if record == nil || !record.ShouldImport() || assigned[record.Id] {
			continue
		}
		if _, seen := byOrder[assignment.OrderId]; !seen {
			orderIds = append(orderIds, assignment.OrderId)
		}
		byOrder[assignment.OrderId] = append(byOrder[assignment.OrderId], record)
		assigned[record.Id] = true
	}
	for _, orderId := range orderIds {
		suggestion := g.buildSuggestion(byOrder[orderId])
		id := orderId
		suggestion.GroupKey = "order:" + orderId
		suggestion.ExistingOrderId = &id
		suggestion.IsExistingOrder = true
		suggestion.Score = 1.0
		suggestion.Reasons = []string{"Asignación manual"}
		suggestions = append(suggestions, suggestion)
	}

	var leftovers []*models.StagingRemision
	for _, record := range importable {
		if !assigned[record.Id] {
			leftovers = append(leftovers, record)
		}
	}
	suggestions = append(suggestions, g.newOrderSuggestions(leftovers)...)
	return suggestions
}

func (g *OrderGrouper) newOrderSuggestions(records []*models.StagingRemision) []*OrderSuggestion {
	var suggestions []*OrderSuggestion
	for _, group := range GroupRecords(records) {
		suggestion := g.buildSuggestion(group.Records)
		suggestion.GroupKey = group.Key
		suggestion.SuggestedName = suggestedName(group.Records)
		suggestions = append(suggestions, suggestion)
	}
	return suggestions
}

func (g *OrderGrouper) buildSuggestion(records []*models.StagingRemision) *OrderSuggestion {
	suggestion := &OrderSuggestion{Records: records}
	var recipeCodes []string
	for _, record := range records {
		suggestion.TotalVolume = suggestion.TotalVolume.Add(record.VolumenFabricado)
		if record.RecipeCode != "" {
			recipeCodes = append(recipeCodes, record.RecipeCode)
		}
		date := record.FechaString()
		if suggestion.DateFrom == "" || date < suggestion.DateFrom {
			suggestion.DateFrom = date
		}
		if date > suggestion.DateTo {
			suggestion.DateTo = date
		}
		if suggestion.ClientId == nil && record.ClientId != nil {
			suggestion.ClientId = record.ClientId
		}
		if suggestion.ConstructionSiteId == nil && record.ConstructionSiteId != nil {
			suggestion.ConstructionSiteId = record.ConstructionSiteId
		}
	}
	suggestion.RecipeCodes = utils.UniqueSlice(recipeCodes)
	return suggestion
}

// suggestedName builds the operator-facing display name for a proposed
// order: site plus the first notable free-text token plus date, or an
// element count when the group spans several distinct tokens.
func suggestedName(records []*models.StagingRemision) string {
	if len(records) == 0 {
		return ""
	}
	rep := records[0]
	tokens := make(map[string]bool)
	for _, record := range records {
		token := firstCommentToken(record.ComentariosExternos)
		if token != "" {
			tokens[token] = true
		}
	}
	element := firstCommentToken(rep.ComentariosExternos)
	if len(tokens) > 1 {
		element = fmt.Sprintf("%d elementos", len(tokens))
	}
	parts := []string{}
	if site := strings.TrimSpace(rep.ObraName); site != "" {
		parts = append(parts, site)
	}
	if element != "" {
		parts = append(parts, element)
	}
	parts = append(parts, rep.FechaString())
	return strings.Join(parts, " - ")
}

func firstCommentToken(comments string) string {
	token := strings.TrimSpace(strings.SplitN(comments, ",", 2)[0])
	return token
}
