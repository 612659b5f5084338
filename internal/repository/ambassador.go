package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"engage-rewards-service/internal/model"
)

// Ambassador-related errors.
var (
	ErrAmbassadorNotFound = errors.New("ambassador not found")
	ErrAmbassadorExists   = errors.New("ambassador already enrolled")
	ErrTierNotFound       = errors.New("commission tier not found")
	ErrDuplicateTier      = errors.New("commission tier threshold already in use")
)

const ambassadorColumns = `user_id, country, commission_rate, total_referrals, total_earnings, is_active, enrolled_at, updated_at`

const tierColumns = `id, min_referrals, global_rate, country_rates, is_active, created_at, updated_at`

// AmbassadorRepository handles ambassador records and the commission
// tier table. Ambassador rows are soft-deactivated, never deleted.
type AmbassadorRepository struct {
	pool *pgxpool.Pool
}

// NewAmbassadorRepository creates a new AmbassadorRepository instance.
func NewAmbassadorRepository(pool *pgxpool.Pool) *AmbassadorRepository {
	return &AmbassadorRepository{pool: pool}
}

func scanAmbassador(row pgx.Row) (*model.Ambassador, error) {
	var a model.Ambassador
	err := row.Scan(
		&a.UserID,
		&a.Country,
		&a.CommissionRate,
		&a.TotalReferrals,
		&a.TotalEarnings,
		&a.IsActive,
		&a.EnrolledAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanTier(row pgx.Row) (*model.CommissionTier, error) {
	var t model.CommissionTier
	err := row.Scan(
		&t.ID,
		&t.MinReferrals,
		&t.GlobalRate,
		&t.CountryRates,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Enroll creates an ambassador record with the starting rate already
// resolved from the live tiers.
func (r *AmbassadorRepository) Enroll(ctx context.Context, userID uuid.UUID, country *string, startingRate float64) (*model.Ambassador, error) {
	const query = `
		INSERT INTO ambassadors (user_id, country, commission_rate, total_referrals, total_earnings, is_active, enrolled_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, TRUE, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + ambassadorColumns

	a, err := scanAmbassador(r.pool.QueryRow(ctx, query, userID, country, startingRate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAmbassadorExists
		}
		return nil, fmt.Errorf("failed to enroll ambassador: %w", err)
	}
	return a, nil
}

// GetByUserID retrieves an ambassador record.
func (r *AmbassadorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Ambassador, error) {
	const query = `SELECT ` + ambassadorColumns + ` FROM ambassadors WHERE user_id = $1`

	a, err := scanAmbassador(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAmbassadorNotFound
		}
		return nil, fmt.Errorf("failed to get ambassador: %w", err)
	}
	return a, nil
}

// SetActive flips an ambassador's active flag. Deactivation keeps the
// record and its earnings history.
func (r *AmbassadorRepository) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	const query = `UPDATE ambassadors SET is_active = $2, updated_at = NOW() WHERE user_id = $1`

	result, err := r.pool.Exec(ctx, query, userID, active)
	if err != nil {
		return fmt.Errorf("failed to update ambassador: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAmbassadorNotFound
	}
	return nil
}

// RecordReferralTx increments the referral counter and refreshes the
// cached display rate inside tx, returning the updated record. Only
// active ambassadors accumulate referrals.
func (r *AmbassadorRepository) RecordReferralTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, refreshedRate float64) (*model.Ambassador, error) {
	const query = `
		UPDATE ambassadors
		SET total_referrals = total_referrals + 1, commission_rate = $2, updated_at = NOW()
		WHERE user_id = $1 AND is_active
		RETURNING ` + ambassadorColumns

	a, err := scanAmbassador(tx.QueryRow(ctx, query, userID, refreshedRate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAmbassadorNotFound
		}
		return nil, fmt.Errorf("failed to record referral: %w", err)
	}
	return a, nil
}

// AddEarningsTx credits commission earnings inside tx, alongside the
// referral-bonus ledger entry.
func (r *AmbassadorRepository) AddEarningsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount float64) (*model.Ambassador, error) {
	const query = `
		UPDATE ambassadors
		SET total_earnings = total_earnings + $2, updated_at = NOW()
		WHERE user_id = $1 AND is_active
		RETURNING ` + ambassadorColumns

	a, err := scanAmbassador(tx.QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAmbassadorNotFound
		}
		return nil, fmt.Errorf("failed to add earnings: %w", err)
	}
	return a, nil
}

// CountryRank returns an ambassador's standing among active
// same-country peers: the count with strictly greater earnings, plus 1.
func (r *AmbassadorRepository) CountryRank(ctx context.Context, country *string, earnings float64) (int, error) {
	const query = `
		SELECT COUNT(*) + 1
		FROM ambassadors
		WHERE is_active
		  AND country IS NOT DISTINCT FROM $1
		  AND total_earnings > $2
	`

	var rank int
	if err := r.pool.QueryRow(ctx, query, country, earnings).Scan(&rank); err != nil {
		return 0, fmt.Errorf("failed to compute country rank: %w", err)
	}
	return rank, nil
}

// ListByCountry returns active same-country ambassadors ordered by
// earnings, for the leaderboard view.
func (r *AmbassadorRepository) ListByCountry(ctx context.Context, country *string, limit int) ([]*model.Ambassador, error) {
	const query = `
		SELECT ` + ambassadorColumns + `
		FROM ambassadors
		WHERE is_active AND country IS NOT DISTINCT FROM $1
		ORDER BY total_earnings DESC, user_id ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, country, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ambassadors: %w", err)
	}
	defer rows.Close()

	var ambassadors []*model.Ambassador
	for rows.Next() {
		a, err := scanAmbassador(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ambassador: %w", err)
		}
		ambassadors = append(ambassadors, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ambassadors: %w", err)
	}
	return ambassadors, nil
}

// CreateTier adds a commission tier. Thresholds are unique across
// active tiers, enforced by a partial index.
func (r *AmbassadorRepository) CreateTier(ctx context.Context, minReferrals int, globalRate float64, countryRates map[string]float64) (*model.CommissionTier, error) {
	const query = `
		INSERT INTO commission_tiers (id, min_referrals, global_rate, country_rates, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		ON CONFLICT (min_referrals) WHERE is_active DO NOTHING
		RETURNING ` + tierColumns

	if countryRates == nil {
		countryRates = map[string]float64{}
	}

	t, err := scanTier(r.pool.QueryRow(ctx, query, uuid.New(), minReferrals, globalRate, countryRates))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDuplicateTier
		}
		return nil, fmt.Errorf("failed to create tier: %w", err)
	}
	return t, nil
}

// GetTierByID retrieves a commission tier.
func (r *AmbassadorRepository) GetTierByID(ctx context.Context, id uuid.UUID) (*model.CommissionTier, error) {
	const query = `SELECT ` + tierColumns + ` FROM commission_tiers WHERE id = $1`

	t, err := scanTier(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}
	return t, nil
}

// ListTiers returns tiers in ascending threshold order. With
// activeOnly, deactivated tiers are excluded.
func (r *AmbassadorRepository) ListTiers(ctx context.Context, activeOnly bool) ([]model.CommissionTier, error) {
	const query = `
		SELECT ` + tierColumns + `
		FROM commission_tiers
		WHERE NOT $1 OR is_active
		ORDER BY min_referrals ASC, created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	defer rows.Close()

	var tiers []model.CommissionTier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		tiers = append(tiers, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tiers: %w", err)
	}
	return tiers, nil
}

// UpdateTier replaces a tier's threshold and rates. The update is
// refused when the new threshold collides with another active tier.
func (r *AmbassadorRepository) UpdateTier(ctx context.Context, id uuid.UUID, minReferrals int, globalRate float64, countryRates map[string]float64) (*model.CommissionTier, error) {
	const query = `
		UPDATE commission_tiers t
		SET min_referrals = $2, global_rate = $3, country_rates = $4, updated_at = NOW()
		WHERE t.id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM commission_tiers o
			WHERE o.id <> t.id AND o.is_active AND o.min_referrals = $2
		  )
		RETURNING ` + tierColumns

	if countryRates == nil {
		countryRates = map[string]float64{}
	}

	t, err := scanTier(r.pool.QueryRow(ctx, query, id, minReferrals, globalRate, countryRates))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, exErr := r.tierExists(ctx, id)
			if exErr != nil {
				return nil, exErr
			}
			if exists {
				return nil, ErrDuplicateTier
			}
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("failed to update tier: %w", err)
	}
	return t, nil
}

// SetTierActive flips a tier in or out of rate resolution.
// Reactivation is refused when another active tier already holds the
// same threshold.
func (r *AmbassadorRepository) SetTierActive(ctx context.Context, id uuid.UUID, active bool) error {
	const query = `
		UPDATE commission_tiers t
		SET is_active = $2, updated_at = NOW()
		WHERE t.id = $1
		  AND (NOT $2 OR NOT EXISTS (
			SELECT 1 FROM commission_tiers o
			WHERE o.id <> t.id AND o.is_active AND o.min_referrals = t.min_referrals
		  ))
	`

	result, err := r.pool.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}
	if result.RowsAffected() == 0 {
		exists, exErr := r.tierExists(ctx, id)
		if exErr != nil {
			return exErr
		}
		if exists {
			return ErrDuplicateTier
		}
		return ErrTierNotFound
	}
	return nil
}

// DeleteTier removes a tier outright. Admin callers prefer
// SetTierActive; hard deletion exists for data-entry mistakes.
func (r *AmbassadorRepository) DeleteTier(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM commission_tiers WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete tier: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTierNotFound
	}
	return nil
}

func (r *AmbassadorRepository) tierExists(ctx context.Context, id uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM commission_tiers WHERE id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check tier existence: %w", err)
	}
	return exists, nil
}
