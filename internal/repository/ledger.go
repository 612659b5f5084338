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

// EarnerRank is one row of the recent-winners board.
type EarnerRank struct {
	UserID   uuid.UUID `db:"user_id"`
	Username string    `db:"username"`
	Earned   int64     `db:"earned"`
}

// LedgerRepository handles the points ledger. Every balance change
// lands here in the same transaction that moved the balance.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// InsertTx records a ledger entry inside tx.
func (r *LedgerRepository) InsertTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, entryType string, description *string) (*model.LedgerEntry, error) {
	const query = `
		INSERT INTO points_ledger (user_id, amount, entry_type, description, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, user_id, amount, entry_type, description, created_at
	`

	var entry model.LedgerEntry
	err := tx.QueryRow(ctx, query, userID, amount, entryType, description).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Amount,
		&entry.EntryType,
		&entry.Description,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return &entry, nil
}

// GetByUserID retrieves a user's ledger entries, newest first.
func (r *LedgerRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, user_id, amount, entry_type, description, created_at
		FROM points_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var entry model.LedgerEntry
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Amount,
			&entry.EntryType,
			&entry.Description,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// GetByUserIDAndType retrieves a user's ledger entries of one type.
func (r *LedgerRepository) GetByUserIDAndType(ctx context.Context, userID uuid.UUID, entryType string, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, user_id, amount, entry_type, description, created_at
		FROM points_ledger
		WHERE user_id = $1 AND entry_type = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, userID, entryType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var entry model.LedgerEntry
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Amount,
			&entry.EntryType,
			&entry.Description,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// TopEarners returns the users who earned the most reward points since
// a cutoff, for the recent-winners board. Only reward entry types
// count; redemptions and admin corrections are excluded.
func (r *LedgerRepository) TopEarners(ctx context.Context, since time.Time, limit int) ([]*EarnerRank, error) {
	const query = `
		SELECT l.user_id, p.username, COALESCE(SUM(l.amount), 0) AS earned
		FROM points_ledger l
		JOIN profiles p ON l.user_id = p.id
		WHERE l.entry_type = ANY($1)
		  AND l.created_at >= $2
		GROUP BY l.user_id, p.username
		HAVING SUM(l.amount) > 0
		ORDER BY earned DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, model.RewardEntryTypes(), since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top earners: %w", err)
	}
	defer rows.Close()

	var ranks []*EarnerRank
	for rows.Next() {
		var rank EarnerRank
		if err := rows.Scan(&rank.UserID, &rank.Username, &rank.Earned); err != nil {
			return nil, fmt.Errorf("failed to scan earner rank: %w", err)
		}
		ranks = append(ranks, &rank)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top earners: %w", err)
	}
	return ranks, nil
}

// UserTotalByTypes sums a user's ledger amounts across entry types
// since a cutoff.
func (r *LedgerRepository) UserTotalByTypes(ctx context.Context, userID uuid.UUID, entryTypes []string, since time.Time) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)
		FROM points_ledger
		WHERE user_id = $1
		  AND entry_type = ANY($2)
		  AND created_at >= $3
	`

	var total int64
	if err := r.pool.QueryRow(ctx, query, userID, entryTypes, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return total, nil
}
