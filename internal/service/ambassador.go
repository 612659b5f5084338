package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"engage-rewards-service/internal/model"
	"engage-rewards-service/internal/pkg/db"
	"engage-rewards-service/internal/repository"
	"engage-rewards-service/internal/reward/commission"
)

// Ambassador program errors.
var (
	ErrAlreadyAmbassador  = errors.New("user is already enrolled as an ambassador")
	ErrNotAmbassador      = errors.New("user is not an enrolled ambassador")
	ErrInvalidTier        = errors.New("tier needs a non-negative threshold and rates between 0 and 100")
	ErrDuplicateThreshold = errors.New("a tier with this referral threshold already exists")
)

// AmbassadorService manages the referral program: enrollment,
// referral recording with its points bonus, commission crediting, and
// the admin-owned tier table. The cached per-ambassador rate is only a
// display hint; the active tier set is authoritative whenever a rate
// is needed.
type AmbassadorService struct {
	pool           *pgxpool.Pool
	ambassadorRepo *repository.AmbassadorRepository
	profileRepo    *repository.ProfileRepository
	ledgerRepo     *repository.LedgerRepository
	authz          *Authorizer
	referralBonus  int64
}

// NewAmbassadorService creates a new AmbassadorService instance.
func NewAmbassadorService(
	pool *pgxpool.Pool,
	ambassadorRepo *repository.AmbassadorRepository,
	profileRepo *repository.ProfileRepository,
	ledgerRepo *repository.LedgerRepository,
	authz *Authorizer,
	referralBonus int64,
) *AmbassadorService {
	return &AmbassadorService{
		pool:           pool,
		ambassadorRepo: ambassadorRepo,
		profileRepo:    profileRepo,
		ledgerRepo:     ledgerRepo,
		authz:          authz,
		referralBonus:  referralBonus,
	}
}

// CurrentRate resolves a referral count and country against the live
// active tier set. The second return is false when no active tiers
// exist, in which case the rate is 0.
func (s *AmbassadorService) CurrentRate(ctx context.Context, referralCount int, country *string) (float64, bool, error) {
	tiers, err := s.ambassadorRepo.ListTiers(ctx, true)
	if err != nil {
		return 0, false, err
	}
	tier, ok := commission.CurrentTier(tiers, referralCount)
	if !ok {
		return 0, false, nil
	}
	return commission.RateFor(tier, country), true, nil
}

// Enroll adds a user to the ambassador program, flipping their role
// and seeding the cached rate from the live tiers. Admin only.
func (s *AmbassadorService) Enroll(ctx context.Context, actorID, userID uuid.UUID) (*model.Ambassador, error) {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "ambassador.enroll")
	if err != nil {
		return nil, err
	}

	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	rate, ok, err := s.CurrentRate(ctx, 0, profile.Country)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn().Msg("No active commission tiers configured, enrolling at rate 0")
	}

	ambassador, err := s.ambassadorRepo.Enroll(ctx, userID, profile.Country, rate)
	if err != nil {
		if errors.Is(err, repository.ErrAmbassadorExists) {
			return nil, ErrAlreadyAmbassador
		}
		return nil, err
	}

	if err := s.profileRepo.UpdateRole(ctx, userID, model.RoleAmbassador); err != nil {
		return nil, fmt.Errorf("failed to set ambassador role: %w", err)
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("user_id", userID.String()).
		Str("operation", "ambassador.enroll").
		Msg("Admin operation executed")
	return ambassador, nil
}

// SetActive suspends or resumes an ambassador. Deactivation reverts
// the role to user but keeps the record and earnings history. Admin
// only.
func (s *AmbassadorService) SetActive(ctx context.Context, actorID, userID uuid.UUID, active bool) error {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "ambassador.set_active")
	if err != nil {
		return err
	}

	if err := s.ambassadorRepo.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, repository.ErrAmbassadorNotFound) {
			return ErrNotAmbassador
		}
		return err
	}

	role := model.RoleUser
	if active {
		role = model.RoleAmbassador
	}
	if err := s.profileRepo.UpdateRole(ctx, userID, role); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("user_id", userID.String()).
		Bool("active", active).
		Str("operation", "ambassador.set_active").
		Msg("Admin operation executed")
	return nil
}

// RecordReferral counts a signup against its referring ambassador:
// the counter increments, the cached rate refreshes against the live
// tiers, and the configured points bonus is credited, all in one
// transaction. Inactive ambassadors accumulate nothing.
func (s *AmbassadorService) RecordReferral(ctx context.Context, ambassadorID uuid.UUID) (*model.Ambassador, error) {
	current, err := s.ambassadorRepo.GetByUserID(ctx, ambassadorID)
	if err != nil {
		if errors.Is(err, repository.ErrAmbassadorNotFound) {
			return nil, ErrNotAmbassador
		}
		return nil, err
	}
	if !current.IsActive {
		return nil, ErrNotAmbassador
	}

	rate, _, err := s.CurrentRate(ctx, current.TotalReferrals+1, current.Country)
	if err != nil {
		return nil, err
	}

	var updated *model.Ambassador
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		updated, err = s.ambassadorRepo.RecordReferralTx(ctx, tx, ambassadorID, rate)
		if err != nil {
			if errors.Is(err, repository.ErrAmbassadorNotFound) {
				return ErrNotAmbassador
			}
			return err
		}

		if s.referralBonus > 0 {
			if _, err := s.profileRepo.CreditPointsTx(ctx, tx, ambassadorID, s.referralBonus); err != nil {
				return err
			}
			desc := "Referral signup bonus"
			if _, err := s.ledgerRepo.InsertTx(ctx, tx, ambassadorID, s.referralBonus, model.EntryReferralBonus, &desc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("ambassador_id", ambassadorID.String()).
		Int("total_referrals", updated.TotalReferrals).
		Msg("Referral recorded")
	return updated, nil
}

// CreditCommission adds to an ambassador's lifetime earnings, as
// computed by the monthly commission run. Admin only; the mutation is
// attributable through the structured log.
func (s *AmbassadorService) CreditCommission(ctx context.Context, actorID, userID uuid.UUID, amount float64) (*model.Ambassador, error) {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "ambassador.credit_commission")
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var updated *model.Ambassador
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		updated, err = s.ambassadorRepo.AddEarningsTx(ctx, tx, userID, amount)
		if errors.Is(err, repository.ErrAmbassadorNotFound) {
			return ErrNotAmbassador
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("user_id", userID.String()).
		Float64("amount", amount).
		Str("operation", "ambassador.credit_commission").
		Msg("Admin operation executed")
	return updated, nil
}

// ListTiers returns the tier table. Non-admin callers see only active
// tiers.
func (s *AmbassadorService) ListTiers(ctx context.Context, activeOnly bool) ([]model.CommissionTier, error) {
	return s.ambassadorRepo.ListTiers(ctx, activeOnly)
}

func validateTier(minReferrals int, globalRate float64, countryRates map[string]float64) (map[string]float64, error) {
	if minReferrals < 0 || globalRate < 0 || globalRate > 100 {
		return nil, ErrInvalidTier
	}
	normalized := make(map[string]float64, len(countryRates))
	for country, rate := range countryRates {
		if rate < 0 || rate > 100 {
			return nil, ErrInvalidTier
		}
		code := model.NormalizeCountry(country)
		if code == "" {
			return nil, ErrInvalidTier
		}
		normalized[code] = rate
	}
	return normalized, nil
}

// CreateTier adds a commission tier. Admin only.
func (s *AmbassadorService) CreateTier(ctx context.Context, actorID uuid.UUID, minReferrals int, globalRate float64, countryRates map[string]float64) (*model.CommissionTier, error) {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "ambassador.tier.create")
	if err != nil {
		return nil, err
	}

	normalized, err := validateTier(minReferrals, globalRate, countryRates)
	if err != nil {
		return nil, err
	}

	tier, err := s.ambassadorRepo.CreateTier(ctx, minReferrals, globalRate, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateTier) {
			return nil, ErrDuplicateThreshold
		}
		return nil, err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("tier_id", tier.ID.String()).
		Int("min_referrals", minReferrals).
		Str("operation", "ambassador.tier.create").
		Msg("Admin operation executed")
	return tier, nil
}

// UpdateTier replaces a tier's threshold and rates. Admin only.
func (s *AmbassadorService) UpdateTier(ctx context.Context, actorID, tierID uuid.UUID, minReferrals int, globalRate float64, countryRates map[string]float64) (*model.CommissionTier, error) {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "ambassador.tier.update")
	if err != nil {
		return nil, err
	}

	normalized, err := validateTier(minReferrals, globalRate, countryRates)
	if err != nil {
		return nil, err
	}

	tier, err := s.ambassadorRepo.UpdateTier(ctx, tierID, minReferrals, globalRate, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrTierNotFound) {
			return nil, ErrNotFound
		}
		if errors.Is(err, repository.ErrDuplicateTier) {
			return nil, ErrDuplicateThreshold
		}
		return nil, err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("tier_id", tierID.String()).
		Str("operation", "ambassador.tier.update").
		Msg("Admin operation executed")
	return tier, nil
}

// SetTierActive includes or excludes a tier from rate resolution.
// Admin only.
func (s *AmbassadorService) SetTierActive(ctx context.Context, actorID, tierID uuid.UUID, active bool) error {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "ambassador.tier.set_active")
	if err != nil {
		return err
	}

	if err := s.ambassadorRepo.SetTierActive(ctx, tierID, active); err != nil {
		if errors.Is(err, repository.ErrTierNotFound) {
			return ErrNotFound
		}
		if errors.Is(err, repository.ErrDuplicateTier) {
			return ErrDuplicateThreshold
		}
		return err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("tier_id", tierID.String()).
		Bool("active", active).
		Str("operation", "ambassador.tier.set_active").
		Msg("Admin operation executed")
	return nil
}

// DeleteTier removes a tier outright. Admin only.
func (s *AmbassadorService) DeleteTier(ctx context.Context, actorID, tierID uuid.UUID) error {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "ambassador.tier.delete")
	if err != nil {
		return err
	}

	if err := s.ambassadorRepo.DeleteTier(ctx, tierID); err != nil {
		if errors.Is(err, repository.ErrTierNotFound) {
			return ErrNotFound
		}
		return err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("tier_id", tierID.String()).
		Str("operation", "ambassador.tier.delete").
		Msg("Admin operation executed")
	return nil
}
