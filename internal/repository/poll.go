package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"engage-rewards-service/internal/model"
)

// ErrPollNotFound is returned when a poll does not exist.
var ErrPollNotFound = errors.New("poll not found")

const pollColumns = `id, question, options, country, is_active, created_by, created_at, closes_at`

// PollRepository persists community polls and their votes. One vote
// per user per poll, enforced by the votes primary key.
type PollRepository struct {
	pool *pgxpool.Pool
}

// NewPollRepository creates a new PollRepository instance.
func NewPollRepository(pool *pgxpool.Pool) *PollRepository {
	return &PollRepository{pool: pool}
}

func scanPoll(row pgx.Row) (*model.Poll, error) {
	var p model.Poll
	err := row.Scan(
		&p.ID,
		&p.Question,
		&p.Options,
		&p.Country,
		&p.IsActive,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.ClosesAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create stores a new poll.
func (r *PollRepository) Create(ctx context.Context, question string, options []string, country *string, createdBy uuid.UUID, closesAt *time.Time) (*model.Poll, error) {
	const query = `
		INSERT INTO polls (id, question, options, country, is_active, created_by, created_at, closes_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, NOW(), $6)
		RETURNING ` + pollColumns

	p, err := scanPoll(r.pool.QueryRow(ctx, query, uuid.New(), question, options, country, createdBy, closesAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create poll: %w", err)
	}
	return p, nil
}

// GetByID retrieves a poll.
func (r *PollRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Poll, error) {
	const query = `SELECT ` + pollColumns + ` FROM polls WHERE id = $1`

	p, err := scanPoll(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	return p, nil
}

// ListActive returns open polls visible from a country: country-bound
// polls for that country plus global ones. A nil country sees only
// global polls.
func (r *PollRepository) ListActive(ctx context.Context, country *string) ([]*model.Poll, error) {
	const query = `
		SELECT ` + pollColumns + `
		FROM polls
		WHERE is_active
		  AND (closes_at IS NULL OR closes_at > NOW())
		  AND (country IS NULL OR country IS NOT DISTINCT FROM $1)
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, country)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	defer rows.Close()

	var polls []*model.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating polls: %w", err)
	}
	return polls, nil
}

// Close deactivates a poll.
func (r *PollRepository) Close(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE polls SET is_active = FALSE WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to close poll: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPollNotFound
	}
	return nil
}

// Vote records a user's choice. Returns false when the user already
// voted on this poll.
func (r *PollRepository) Vote(ctx context.Context, pollID, userID uuid.UUID, optionIndex int) (bool, error) {
	const query = `
		INSERT INTO poll_votes (poll_id, user_id, option_index, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (poll_id, user_id) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query, pollID, userID, optionIndex)
	if err != nil {
		return false, fmt.Errorf("failed to record vote: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// HasVoted reports whether a user already voted on a poll.
func (r *PollRepository) HasVoted(ctx context.Context, pollID, userID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM poll_votes WHERE poll_id = $1 AND user_id = $2)`

	var voted bool
	if err := r.pool.QueryRow(ctx, query, pollID, userID).Scan(&voted); err != nil {
		return false, fmt.Errorf("failed to check vote: %w", err)
	}
	return voted, nil
}

// Results tallies votes per option, including zero-vote options so the
// slice always covers the full option list.
func (r *PollRepository) Results(ctx context.Context, poll *model.Poll) ([]model.PollResult, error) {
	const query = `
		SELECT option_index, COUNT(*)
		FROM poll_votes
		WHERE poll_id = $1
		GROUP BY option_index
	`

	rows, err := r.pool.Query(ctx, query, poll.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to tally votes: %w", err)
	}
	defer rows.Close()

	results := make([]model.PollResult, len(poll.Options))
	for i := range results {
		results[i].OptionIndex = i
	}

	for rows.Next() {
		var idx int
		var votes int64
		if err := rows.Scan(&idx, &votes); err != nil {
			return nil, fmt.Errorf("failed to scan vote tally: %w", err)
		}
		if idx >= 0 && idx < len(results) {
			results[idx].Votes = votes
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vote tallies: %w", err)
	}
	return results, nil
}
