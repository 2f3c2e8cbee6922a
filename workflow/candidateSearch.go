package workflow

import (
	"context"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/models"
	"github.com/dcconcretos/remisiones_backend/utils"
	"github.com/sirupsen/logrus"
)

// OrderSearcher is the slice of the order store the search tiers need.
type OrderSearcher interface {
	SearchCandidateOrders(ctx context.Context, criteria models.CandidateCriteria) ([]*models.Order, error)
}

// gormOrderSearcher backs OrderSearcher with the shared gorm connection.
type gormOrderSearcher struct{}

func (gormOrderSearcher) SearchCandidateOrders(ctx context.Context, criteria models.CandidateCriteria) ([]*models.Order, error) {
	return models.SearchCandidateOrders(ctx, criteria)
}

// NewOrderSearcher returns the database-backed searcher.
func NewOrderSearcher() OrderSearcher {
	return gormOrderSearcher{}
}

// CandidateSearch finds plausible host orders for a record group using a
// tiered widening strategy. Each tier only runs when the previous one
// returned nothing; a failed tier is logged and treated as empty so the
// wider tiers still get their chance.
type CandidateSearch struct {
	store  OrderSearcher
	cfg    *config.MatchingConfig
	logger *logrus.Logger
}

func NewCandidateSearch(store OrderSearcher, cfg *config.MatchingConfig) *CandidateSearch {
	return &CandidateSearch{store: store, cfg: cfg, logger: config.GetLogger()}
}

type searchTier struct {
	name     string
	criteria models.CandidateCriteria
}

// ForMatcher runs the automatic matcher's narrow tiers: same client on
// the record's calendar day, then the same client within the matcher day
// window. There is no any-client fallback here; low-confidence widening
// belongs to the manual workflow.
func (s *CandidateSearch) ForMatcher(ctx context.Context, rep *models.StagingRemision) []*models.Order {
	clientId := utils.DereferencePtr(rep.ClientId)
	if clientId == "" {
		return nil
	}
	date := rep.FechaString()
	tiers := []searchTier{
		{
			name: "same_client_same_day",
			criteria: models.CandidateCriteria{
				PlantId:  rep.PlantId,
				ClientId: clientId,
				DateFrom: date,
				DateTo:   date,
				Limit:    s.cfg.CandidateLimit,
			},
		},
		{
			name: "same_client_day_window",
			criteria: models.CandidateCriteria{
				PlantId:  rep.PlantId,
				ClientId: clientId,
				DateFrom: utils.AddDays(date, -s.cfg.MatcherDayWindow),
				DateTo:   utils.AddDays(date, s.cfg.MatcherDayWindow),
				Limit:    s.cfg.CandidateLimit,
			},
		},
	}
	return s.run(ctx, tiers)
}

// ForManualAssignment runs the operator-facing tiers, which trade
// precision for recall: same client same day, same client within the
// manual window, then any client within the wide window.
func (s *CandidateSearch) ForManualAssignment(ctx context.Context, rep *models.StagingRemision) []*models.Order {
	clientId := utils.DereferencePtr(rep.ClientId)
	date := rep.FechaString()
	var tiers []searchTier
	if clientId != "" {
		tiers = append(tiers,
			searchTier{
				name: "same_client_same_day",
				criteria: models.CandidateCriteria{
					PlantId:  rep.PlantId,
					ClientId: clientId,
					DateFrom: date,
					DateTo:   date,
					Limit:    s.cfg.CandidateLimit,
				},
			},
			searchTier{
				name: "same_client_day_window",
				criteria: models.CandidateCriteria{
					PlantId:  rep.PlantId,
					ClientId: clientId,
					DateFrom: utils.AddDays(date, -s.cfg.ManualDayWindow),
					DateTo:   utils.AddDays(date, s.cfg.ManualDayWindow),
					Limit:    s.cfg.CandidateLimit,
				},
			},
		)
	}
	tiers = append(tiers, searchTier{
		name: "any_client_wide_window",
		criteria: models.CandidateCriteria{
			PlantId:  rep.PlantId,
			DateFrom: utils.AddDays(date, -s.cfg.ManualWideDayWindow),
			DateTo:   utils.AddDays(date, s.cfg.ManualWideDayWindow),
			Limit:    s.cfg.CandidateLimit,
		},
	})
	return s.run(ctx, tiers)
}

func (s *CandidateSearch) run(ctx context.Context, tiers []searchTier) []*models.Order {
	for _, tier := range tiers {
		orders, err := s.store.SearchCandidateOrders(ctx, tier.criteria)
		if err != nil {
			config.LogError(s.logger, "workflow", "CandidateSearch.run", "tier query failed, treating as empty", map[string]interface{}{
				"tier":     tier.name,
				"plantId":  tier.criteria.PlantId,
				"clientId": tier.criteria.ClientId,
			}, err)
			continue
		}
		if len(orders) > 0 {
			return orders
		}
	}
	return nil
}
