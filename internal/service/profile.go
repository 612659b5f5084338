package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"engage-rewards-service/internal/model"
	"engage-rewards-service/internal/pkg/db"
	"engage-rewards-service/internal/repository"
)

// Profile errors.
var (
	ErrInvalidUsername = errors.New("username must be 3-32 characters")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrInvalidAmount   = errors.New("amount must be a non-zero value")
	ErrInvalidRole     = errors.New("unknown role")
)

var validRoles = map[model.Role]bool{
	model.RoleUser:       true,
	model.RoleModerator:  true,
	model.RoleAmbassador: true,
	model.RoleAdmin:      true,
}

// ProfileService manages member profiles: registration with referral
// attribution, ledger history, and the admin levers for suspension,
// roles, and manual point corrections.
type ProfileService struct {
	pool        *pgxpool.Pool
	profileRepo *repository.ProfileRepository
	ledgerRepo  *repository.LedgerRepository
	ambassadors *AmbassadorService
	authz       *Authorizer
	now         func() time.Time
}

// NewProfileService creates a new ProfileService instance.
func NewProfileService(
	pool *pgxpool.Pool,
	profileRepo *repository.ProfileRepository,
	ledgerRepo *repository.LedgerRepository,
	ambassadors *AmbassadorService,
	authz *Authorizer,
) *ProfileService {
	return &ProfileService{
		pool:        pool,
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
		ambassadors: ambassadors,
		authz:       authz,
		now:         time.Now,
	}
}

// Register creates a profile. When the signup carries a referrer, the
// referral is recorded against that ambassador; a stale or invalid
// referrer never blocks the signup itself.
func (s *ProfileService) Register(ctx context.Context, username string, country *string, referrerID *uuid.UUID) (*model.Profile, error) {
	if len(username) < 3 || len(username) > 32 {
		return nil, ErrInvalidUsername
	}

	profile, err := s.profileRepo.Create(ctx, username, normalizeCountryPtr(country))
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	if referrerID != nil {
		if _, err := s.ambassadors.RecordReferral(ctx, *referrerID); err != nil {
			log.Warn().
				Err(err).
				Str("user_id", profile.ID.String()).
				Str("referrer_id", referrerID.String()).
				Msg("Referral not recorded")
		}
	}

	log.Info().
		Str("user_id", profile.ID.String()).
		Str("username", username).
		Msg("Profile registered")
	return profile, nil
}

// Get returns a profile by id.
func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return profile, nil
}

// UpdateCountry sets the user's own country, normalized to upper-case.
func (s *ProfileService) UpdateCountry(ctx context.Context, userID uuid.UUID, country *string) error {
	if err := s.profileRepo.UpdateCountry(ctx, userID, normalizeCountryPtr(country)); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return ErrProfileNotFound
		}
		return err
	}
	return nil
}

// Ledger returns a user's point history, newest first.
func (s *ProfileService) Ledger(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.LedgerEntry, error) {
	return s.ledgerRepo.GetByUserID(ctx, userID, limit, offset)
}

// TopEarners returns the recent winners board: the biggest reward
// earners over the trailing window.
func (s *ProfileService) TopEarners(ctx context.Context, window time.Duration, limit int) ([]*repository.EarnerRank, error) {
	since := s.now().Add(-window)
	return s.ledgerRepo.TopEarners(ctx, since, limit)
}

// AdjustPoints applies a manual admin correction. Positive amounts
// credit, negative debit; the debit is refused rather than driving the
// balance negative. Admin only, attributable.
func (s *ProfileService) AdjustPoints(ctx context.Context, actorID, targetID uuid.UUID, amount int64, note *string) (int64, error) {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "profile.adjust_points")
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}

	var balance int64
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		entryType := model.EntryAdminAdd
		if amount > 0 {
			balance, err = s.profileRepo.CreditPointsTx(ctx, tx, targetID, amount)
		} else {
			entryType = model.EntryAdminSub
			balance, err = s.profileRepo.DebitPointsTx(ctx, tx, targetID, -amount)
		}
		if err != nil {
			if errors.Is(err, repository.ErrProfileNotFound) {
				return ErrProfileNotFound
			}
			if errors.Is(err, repository.ErrInsufficientPoints) {
				return ErrInsufficientPoints
			}
			return err
		}

		desc := fmt.Sprintf("Manual adjustment by admin %s", actor.ID)
		if note != nil && *note != "" {
			desc = *note
		}
		_, err = s.ledgerRepo.InsertTx(ctx, tx, targetID, amount, entryType, &desc)
		return err
	})
	if err != nil {
		return 0, err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("target_id", targetID.String()).
		Int64("amount", amount).
		Str("operation", "profile.adjust_points").
		Msg("Admin operation executed")
	return balance, nil
}

// SetSuspended freezes or unfreezes an account. Admin only.
func (s *ProfileService) SetSuspended(ctx context.Context, actorID, targetID uuid.UUID, suspended bool) error {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "profile.set_suspended")
	if err != nil {
		return err
	}

	if err := s.profileRepo.SetSuspended(ctx, targetID, suspended); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return ErrProfileNotFound
		}
		return err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("target_id", targetID.String()).
		Bool("suspended", suspended).
		Str("operation", "profile.set_suspended").
		Msg("Admin operation executed")
	return nil
}

// SetRole changes a profile's role. Admin only; ambassador enrollment
// normally goes through the ambassador service instead.
func (s *ProfileService) SetRole(ctx context.Context, actorID, targetID uuid.UUID, role model.Role) error {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "profile.set_role")
	if err != nil {
		return err
	}
	if !validRoles[role] {
		return ErrInvalidRole
	}

	if err := s.profileRepo.UpdateRole(ctx, targetID, role); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return ErrProfileNotFound
		}
		return err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("target_id", targetID.String()).
		Str("role", string(role)).
		Str("operation", "profile.set_role").
		Msg("Admin operation executed")
	return nil
}

// ListProfiles pages through all profiles for the admin console.
func (s *ProfileService) ListProfiles(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*model.Profile, error) {
	if _, err := s.authz.RequireAdmin(ctx, actorID, "profile.list"); err != nil {
		return nil, err
	}
	return s.profileRepo.List(ctx, limit, offset)
}
