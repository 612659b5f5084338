package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"engage-rewards-service/internal/cache"
	"engage-rewards-service/internal/repository"
	"engage-rewards-service/internal/reward/commission"
)

const dashboardCacheTTL = 60 * time.Second

// AmbassadorDashboard is the composed reporting view for one
// ambassador. MonthlyEarnings projects the country's month-to-date ad
// revenue through the live commission rate; TotalEarnings is the
// lifetime credited amount.
type AmbassadorDashboard struct {
	UserID           uuid.UUID `json:"user_id"`
	Country          *string   `json:"country"`
	CommissionRate   float64   `json:"commission_rate"`
	TierMinReferrals int       `json:"tier_min_referrals"`
	TotalReferrals   int       `json:"total_referrals"`
	TotalEarnings    float64   `json:"total_earnings"`
	MonthlyRevenue   float64   `json:"monthly_revenue"`
	MonthlyEarnings  float64   `json:"monthly_earnings"`
	CountryRank      int       `json:"country_rank"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// DashboardService composes the ambassador dashboard. It performs no
// writes. Results are cached briefly in Redis; a cache outage degrades
// to live computation.
type DashboardService struct {
	ambassadorRepo *repository.AmbassadorRepository
	metricsRepo    *repository.MetricsRepository
	redis          *cache.Redis
	now            func() time.Time
}

// NewDashboardService creates a new DashboardService instance. The
// Redis handle may be nil, which disables caching.
func NewDashboardService(
	ambassadorRepo *repository.AmbassadorRepository,
	metricsRepo *repository.MetricsRepository,
	redis *cache.Redis,
) *DashboardService {
	return &DashboardService{
		ambassadorRepo: ambassadorRepo,
		metricsRepo:    metricsRepo,
		redis:          redis,
		now:            time.Now,
	}
}

// WithClock swaps the time source, for tests pinned to a month.
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	s.now = now
	return s
}

func dashboardCacheKey(userID uuid.UUID) string {
	return "dashboard:ambassador:" + userID.String()
}

// Dashboard builds the view for one ambassador: live tier rate,
// month-to-date earnings from the country's ad revenue, and the
// ambassador's rank among active same-country peers.
func (s *DashboardService) Dashboard(ctx context.Context, userID uuid.UUID) (*AmbassadorDashboard, error) {
	if s.redis != nil {
		var cached AmbassadorDashboard
		err := s.redis.GetJSON(ctx, dashboardCacheKey(userID), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Debug().Err(err).Str("user_id", userID.String()).Msg("Dashboard cache read failed")
		}
	}

	ambassador, err := s.ambassadorRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAmbassadorNotFound) {
			return nil, ErrNotAmbassador
		}
		return nil, err
	}
	if !ambassador.IsActive {
		return nil, ErrNotAmbassador
	}

	tiers, err := s.ambassadorRepo.ListTiers(ctx, true)
	if err != nil {
		return nil, err
	}

	var rate float64
	var tierThreshold int
	if tier, ok := commission.CurrentTier(tiers, ambassador.TotalReferrals); ok {
		rate = commission.RateFor(tier, ambassador.Country)
		tierThreshold = tier.MinReferrals
	} else {
		log.Warn().Msg("No active commission tiers configured, dashboard rate is 0")
	}

	now := s.now()
	var revenue float64
	if ambassador.Country != nil {
		revenue, err = s.metricsRepo.MonthRevenue(ctx, *ambassador.Country, now)
		if err != nil {
			return nil, err
		}
	}

	rank, err := s.ambassadorRepo.CountryRank(ctx, ambassador.Country, ambassador.TotalEarnings)
	if err != nil {
		return nil, err
	}

	dashboard := &AmbassadorDashboard{
		UserID:           ambassador.UserID,
		Country:          ambassador.Country,
		CommissionRate:   rate,
		TierMinReferrals: tierThreshold,
		TotalReferrals:   ambassador.TotalReferrals,
		TotalEarnings:    ambassador.TotalEarnings,
		MonthlyRevenue:   revenue,
		MonthlyEarnings:  revenue * rate / 100,
		CountryRank:      rank,
		GeneratedAt:      now,
	}

	if s.redis != nil {
		if err := s.redis.SetJSON(ctx, dashboardCacheKey(userID), dashboard, dashboardCacheTTL); err != nil {
			log.Debug().Err(err).Str("user_id", userID.String()).Msg("Dashboard cache write failed")
		}
	}
	return dashboard, nil
}

// LeaderboardRow is one ambassador's standing on the country board.
type LeaderboardRow struct {
	UserID        uuid.UUID `json:"user_id"`
	Rank          int       `json:"rank"`
	TotalEarnings float64   `json:"total_earnings"`
	Referrals     int       `json:"referrals"`
}

// Leaderboard lists the top active ambassadors for a country by
// lifetime earnings.
func (s *DashboardService) Leaderboard(ctx context.Context, country *string, limit int) ([]LeaderboardRow, error) {
	ambassadors, err := s.ambassadorRepo.ListByCountry(ctx, country, limit)
	if err != nil {
		return nil, err
	}

	rows := make([]LeaderboardRow, 0, len(ambassadors))
	for i, a := range ambassadors {
		rows = append(rows, LeaderboardRow{
			UserID:        a.UserID,
			Rank:          i + 1,
			TotalEarnings: a.TotalEarnings,
			Referrals:     a.TotalReferrals,
		})
	}
	return rows, nil
}
