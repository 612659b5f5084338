package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"engage-rewards-service/internal/model"
)

// ClaimRepository tracks which daily reward actions a user has already
// consumed. The (user_id, action, claim_date) primary key is the
// single-use gate: the first insert wins, every concurrent duplicate
// sees zero rows affected.
type ClaimRepository struct {
	pool *pgxpool.Pool
}

// NewClaimRepository creates a new ClaimRepository instance.
func NewClaimRepository(pool *pgxpool.Pool) *ClaimRepository {
	return &ClaimRepository{pool: pool}
}

// TryClaimTx attempts to consume an action for a UTC day inside tx.
// Returns false when the action was already claimed; the caller rolls
// back, leaving nothing mutated.
func (r *ClaimRepository) TryClaimTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, action model.DailyAction, day time.Time) (bool, error) {
	const query = `
		INSERT INTO daily_action_claims (user_id, action, claim_date, claimed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, action, claim_date) DO NOTHING
	`

	result, err := tx.Exec(ctx, query, userID, action, model.UTCDayOf(day))
	if err != nil {
		return false, fmt.Errorf("failed to claim daily action: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// HasClaimed reports whether an action was already consumed on a UTC day.
func (r *ClaimRepository) HasClaimed(ctx context.Context, userID uuid.UUID, action model.DailyAction, day time.Time) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM daily_action_claims
			WHERE user_id = $1 AND action = $2 AND claim_date = $3
		)
	`

	var claimed bool
	err := r.pool.QueryRow(ctx, query, userID, action, model.UTCDayOf(day)).Scan(&claimed)
	if err != nil {
		return false, fmt.Errorf("failed to check daily claim: %w", err)
	}
	return claimed, nil
}

// ClaimedActions returns the set of actions a user has consumed on a
// UTC day, in one query for the cycle status view.
func (r *ClaimRepository) ClaimedActions(ctx context.Context, userID uuid.UUID, day time.Time) (map[model.DailyAction]bool, error) {
	const query = `
		SELECT action FROM daily_action_claims
		WHERE user_id = $1 AND claim_date = $2
	`

	rows, err := r.pool.Query(ctx, query, userID, model.UTCDayOf(day))
	if err != nil {
		return nil, fmt.Errorf("failed to get claimed actions: %w", err)
	}
	defer rows.Close()

	claimed := make(map[model.DailyAction]bool)
	for rows.Next() {
		var action model.DailyAction
		if err := rows.Scan(&action); err != nil {
			return nil, fmt.Errorf("failed to scan claimed action: %w", err)
		}
		claimed[action] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claimed actions: %w", err)
	}
	return claimed, nil
}

// PurgeBefore removes claim markers older than the cutoff day. Old
// markers have no behavioral effect; this just keeps the table small.
func (r *ClaimRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM daily_action_claims WHERE claim_date < $1`

	result, err := r.pool.Exec(ctx, query, model.UTCDayOf(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge old claims: %w", err)
	}
	return result.RowsAffected(), nil
}
