// Package repository provides data access layer implementations.
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

// Common errors for repository operations.
var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInsufficientPoints = errors.New("insufficient points")
)

const profileColumns = `id, username, country, role, points, is_suspended, created_at, updated_at`

// ProfileRepository handles profile data persistence. Point balances
// only move through the Tx methods so every change commits together
// with its ledger entry.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository instance.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.Country,
		&p.Role,
		&p.Points,
		&p.IsSuspended,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create creates a new profile with a zero point balance. Usernames
// are unique; a taken name returns ErrUsernameTaken.
func (r *ProfileRepository) Create(ctx context.Context, username string, country *string) (*model.Profile, error) {
	const query = `
		INSERT INTO profiles (id, username, country, role, points, is_suspended, created_at, updated_at)
		VALUES ($1, $2, $3, 'user', 0, FALSE, NOW(), NOW())
		ON CONFLICT (username) DO NOTHING
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query, uuid.New(), username, country))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}

// GetByID retrieves a profile by id.
// Returns ErrProfileNotFound if the profile does not exist.
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetByUsername retrieves a profile by username.
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*model.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE username = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile by username: %w", err)
	}
	return p, nil
}

// List returns profiles ordered by creation time, newest first.
func (r *ProfileRepository) List(ctx context.Context, limit, offset int) ([]*model.Profile, error) {
	const query = `
		SELECT ` + profileColumns + `
		FROM profiles
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}

// UpdateCountry sets a profile's country. The code arrives normalized
// from the service boundary.
func (r *ProfileRepository) UpdateCountry(ctx context.Context, id uuid.UUID, country *string) error {
	const query = `
		UPDATE profiles
		SET country = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, country)
	if err != nil {
		return fmt.Errorf("failed to update country: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// UpdateRole changes a profile's role.
func (r *ProfileRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	const query = `
		UPDATE profiles
		SET role = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, role)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// SetSuspended flips a profile's suspension flag.
func (r *ProfileRepository) SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) error {
	const query = `
		UPDATE profiles
		SET is_suspended = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, suspended)
	if err != nil {
		return fmt.Errorf("failed to update suspension: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// Exists checks if a profile with the given id exists.
func (r *ProfileRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check profile existence: %w", err)
	}
	return exists, nil
}

// GetForUpdateTx reads a profile inside tx with a row lock, so the
// balance read stays valid until commit.
func (r *ProfileRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1 FOR UPDATE`

	p, err := scanProfile(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to lock profile: %w", err)
	}
	return p, nil
}

// CreditPointsTx adds points to a profile inside tx and returns the
// new balance. Amount must be non-negative.
func (r *ProfileRepository) CreditPointsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (int64, error) {
	const query = `
		UPDATE profiles
		SET points = points + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING points
	`

	var balance int64
	err := tx.QueryRow(ctx, query, id, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProfileNotFound
		}
		return 0, fmt.Errorf("failed to credit points: %w", err)
	}
	return balance, nil
}

// DebitPointsTx subtracts points inside tx, guarded so the balance
// never goes negative. Returns ErrInsufficientPoints without touching
// the row when the balance cannot cover the amount.
func (r *ProfileRepository) DebitPointsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (int64, error) {
	const query = `
		UPDATE profiles
		SET points = points - $2, updated_at = NOW()
		WHERE id = $1 AND points >= $2
		RETURNING points
	`

	var balance int64
	err := tx.QueryRow(ctx, query, id, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing profile from a short balance.
			exists, existsErr := existsTx(ctx, tx, id)
			if existsErr != nil {
				return 0, existsErr
			}
			if !exists {
				return 0, ErrProfileNotFound
			}
			return 0, ErrInsufficientPoints
		}
		return 0, fmt.Errorf("failed to debit points: %w", err)
	}
	return balance, nil
}

func existsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check profile existence: %w", err)
	}
	return exists, nil
}
