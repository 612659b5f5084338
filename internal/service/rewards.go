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
	"engage-rewards-service/internal/pkg/lock"
	"engage-rewards-service/internal/repository"
	"engage-rewards-service/internal/reward/spin"
	"engage-rewards-service/internal/settings"
)

// Reward cycle errors.
var (
	ErrNotEligible       = errors.New("daily action already claimed for today")
	ErrWatchAdDisabled   = errors.New("rewarded ads are currently unavailable")
	ErrConcurrentRequest = errors.New("another request for this account is in progress")
)

// SpinResult is the outcome of a daily spin.
type SpinResult struct {
	PrizePoints int64
	Label       string
	NewBalance  int64
}

// WatchAdResult is the outcome of a rewarded ad view.
type WatchAdResult struct {
	PointsEarned int64
	NewBalance   int64
}

// RewardService runs the daily reward cycle: one spin, one trivia
// play, and one rewarded ad view per user per UTC day. Eligibility
// resets lazily at UTC midnight; no scheduler is involved. Each grant
// inserts the day's claim marker and credits points in one
// transaction, so an action can never be consumed twice or credited
// without being consumed.
type RewardService struct {
	pool          *pgxpool.Pool
	profileRepo   *repository.ProfileRepository
	ledgerRepo    *repository.LedgerRepository
	claimRepo     *repository.ClaimRepository
	triviaRepo    *repository.TriviaRepository
	wheel         *spin.Wheel
	settings      *settings.Resolver
	authz         *Authorizer
	userLock      *lock.UserLock
	watchAdPoints int64
	now           func() time.Time
}

// NewRewardService creates a new RewardService instance.
func NewRewardService(
	pool *pgxpool.Pool,
	profileRepo *repository.ProfileRepository,
	ledgerRepo *repository.LedgerRepository,
	claimRepo *repository.ClaimRepository,
	triviaRepo *repository.TriviaRepository,
	wheel *spin.Wheel,
	resolver *settings.Resolver,
	authz *Authorizer,
	userLock *lock.UserLock,
	watchAdPoints int64,
) *RewardService {
	return &RewardService{
		pool:          pool,
		profileRepo:   profileRepo,
		ledgerRepo:    ledgerRepo,
		claimRepo:     claimRepo,
		triviaRepo:    triviaRepo,
		wheel:         wheel,
		settings:      resolver,
		authz:         authz,
		userLock:      userLock,
		watchAdPoints: watchAdPoints,
		now:           time.Now,
	}
}

// WithClock swaps the time source, for tests that cross day
// boundaries.
func (s *RewardService) WithClock(now func() time.Time) *RewardService {
	s.now = now
	return s
}

// Status reports which daily actions remain available today and the
// user's current trivia streak.
func (s *RewardService) Status(ctx context.Context, userID uuid.UUID) (*model.CycleStatus, error) {
	day := model.UTCDayOf(s.now())

	claimed, err := s.claimRepo.ClaimedActions(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily claims: %w", err)
	}

	streak, err := s.triviaRepo.GetStreak(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}

	return &model.CycleStatus{
		CanSpin:       !claimed[model.ActionSpin],
		CanPlayTrivia: !claimed[model.ActionTrivia],
		CanWatchAd:    !claimed[model.ActionWatchAd] && s.settings.WatchAdEnabled(ctx),
		TriviaStreak:  streak.Streak,
	}, nil
}

// Spin performs the daily wheel spin: draws a weighted prize, marks
// the spin consumed, and credits the prize, atomically. A spin already
// consumed today fails with ErrNotEligible and mutates nothing.
func (s *RewardService) Spin(ctx context.Context, userID uuid.UUID) (*SpinResult, error) {
	if _, err := s.authz.RequireActive(ctx, userID); err != nil {
		return nil, err
	}

	if !s.userLock.TryLock(userID) {
		return nil, ErrConcurrentRequest
	}
	defer s.userLock.Unlock(userID)

	day := model.UTCDayOf(s.now())
	prize := s.wheel.Spin(nil)

	var result SpinResult
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		claimed, err := s.claimRepo.TryClaimTx(ctx, tx, userID, model.ActionSpin, day)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrNotEligible
		}

		balance, err := s.profileRepo.CreditPointsTx(ctx, tx, userID, prize.Points)
		if err != nil {
			return err
		}

		if prize.Points > 0 {
			desc := "Daily spin prize: " + prize.Label
			if _, err := s.ledgerRepo.InsertTx(ctx, tx, userID, prize.Points, model.EntrySpinPrize, &desc); err != nil {
				return err
			}
		}

		result = SpinResult{PrizePoints: prize.Points, Label: prize.Label, NewBalance: balance}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Int64("prize", result.PrizePoints).
		Msg("Spin prize granted")
	return &result, nil
}

// WatchAd credits the rewarded-ad points and consumes the day's ad
// view. Refused when the ad network is disabled through settings.
func (s *RewardService) WatchAd(ctx context.Context, userID uuid.UUID) (*WatchAdResult, error) {
	if !s.settings.WatchAdEnabled(ctx) {
		return nil, ErrWatchAdDisabled
	}

	if _, err := s.authz.RequireActive(ctx, userID); err != nil {
		return nil, err
	}

	if !s.userLock.TryLock(userID) {
		return nil, ErrConcurrentRequest
	}
	defer s.userLock.Unlock(userID)

	day := model.UTCDayOf(s.now())

	var result WatchAdResult
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		claimed, err := s.claimRepo.TryClaimTx(ctx, tx, userID, model.ActionWatchAd, day)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrNotEligible
		}

		balance, err := s.profileRepo.CreditPointsTx(ctx, tx, userID, s.watchAdPoints)
		if err != nil {
			return err
		}

		desc := "Rewarded ad view"
		if _, err := s.ledgerRepo.InsertTx(ctx, tx, userID, s.watchAdPoints, model.EntryWatchAd, &desc); err != nil {
			return err
		}

		result = WatchAdResult{PointsEarned: s.watchAdPoints, NewBalance: balance}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	return &result, nil
}

// AdClientID exposes the resolved ad network client id for the UI.
func (s *RewardService) AdClientID(ctx context.Context) string {
	return s.settings.AdClientID(ctx)
}
