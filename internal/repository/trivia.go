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

// Trivia-related errors.
var (
	ErrQuestionNotFound = errors.New("trivia question not found")
	ErrSessionNotFound  = errors.New("trivia session not found")
)

const questionColumns = `id, question, options, correct_index, country, is_active, created_at`
const sessionColumns = `id, user_id, question_id, session_date, issued_at, answered_at, selected_index, correct, points_earned`

// TriviaRepository handles trivia questions, daily sessions, and
// streak state.
type TriviaRepository struct {
	pool *pgxpool.Pool
}

// NewTriviaRepository creates a new TriviaRepository instance.
func NewTriviaRepository(pool *pgxpool.Pool) *TriviaRepository {
	return &TriviaRepository{pool: pool}
}

func scanQuestion(row pgx.Row) (*model.TriviaQuestion, error) {
	var q model.TriviaQuestion
	err := row.Scan(
		&q.ID,
		&q.Question,
		&q.Options,
		&q.CorrectIndex,
		&q.Country,
		&q.IsActive,
		&q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func scanSession(row pgx.Row) (*model.TriviaSession, error) {
	var s model.TriviaSession
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.QuestionID,
		&s.SessionDate,
		&s.IssuedAt,
		&s.AnsweredAt,
		&s.SelectedIndex,
		&s.Correct,
		&s.PointsEarned,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateQuestion adds a question to the pool. A nil country puts it in
// the global pool.
func (r *TriviaRepository) CreateQuestion(ctx context.Context, question string, options []string, correctIndex int, country *string) (*model.TriviaQuestion, error) {
	const query = `
		INSERT INTO trivia_questions (id, question, options, correct_index, country, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
		RETURNING ` + questionColumns

	q, err := scanQuestion(r.pool.QueryRow(ctx, query, uuid.New(), question, options, correctIndex, country))
	if err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return q, nil
}

// GetQuestionByID retrieves a question.
func (r *TriviaRepository) GetQuestionByID(ctx context.Context, id uuid.UUID) (*model.TriviaQuestion, error) {
	const query = `SELECT ` + questionColumns + ` FROM trivia_questions WHERE id = $1`

	q, err := scanQuestion(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

// SetQuestionActive flips a question in or out of the pool. Issued
// sessions keep their question either way.
func (r *TriviaRepository) SetQuestionActive(ctx context.Context, id uuid.UUID, active bool) error {
	const query = `UPDATE trivia_questions SET is_active = $2 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// ListQuestions returns questions for content management, newest
// first. A non-nil country filters to that pool.
func (r *TriviaRepository) ListQuestions(ctx context.Context, country *string, limit, offset int) ([]*model.TriviaQuestion, error) {
	const query = `
		SELECT ` + questionColumns + `
		FROM trivia_questions
		WHERE ($1::text IS NULL OR country = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, country, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []*model.TriviaQuestion
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}
	return questions, nil
}

// RandomActiveQuestion draws a question for issuance. With a country,
// country-specific questions are preferred and the global pool is the
// fallback; without one, only the global pool is drawn from. Returns
// ErrQuestionNotFound when the pool is empty.
func (r *TriviaRepository) RandomActiveQuestion(ctx context.Context, country *string) (*model.TriviaQuestion, error) {
	var row pgx.Row
	if country != nil {
		const query = `
			SELECT ` + questionColumns + `
			FROM trivia_questions
			WHERE is_active AND (country = $1 OR country IS NULL)
			ORDER BY (country = $1) DESC NULLS LAST, random()
			LIMIT 1
		`
		row = r.pool.QueryRow(ctx, query, *country)
	} else {
		const query = `
			SELECT ` + questionColumns + `
			FROM trivia_questions
			WHERE is_active AND country IS NULL
			ORDER BY random()
			LIMIT 1
		`
		row = r.pool.QueryRow(ctx, query)
	}

	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to draw question: %w", err)
	}
	return q, nil
}

// GetSessionByUserAndDate retrieves a user's session for a UTC day.
func (r *TriviaRepository) GetSessionByUserAndDate(ctx context.Context, userID uuid.UUID, day time.Time) (*model.TriviaSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM trivia_sessions WHERE user_id = $1 AND session_date = $2`

	s, err := scanSession(r.pool.QueryRow(ctx, query, userID, model.UTCDayOf(day)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// GetOrCreateSession returns the user's session for a UTC day,
// creating one bound to questionID if none exists. The second return
// value is true when a new session was created. A concurrent issue
// race resolves to whichever insert won, so repeated calls always see
// one pending question.
func (r *TriviaRepository) GetOrCreateSession(ctx context.Context, userID, questionID uuid.UUID, day time.Time) (*model.TriviaSession, bool, error) {
	session, err := r.GetSessionByUserAndDate(ctx, userID, day)
	if err == nil {
		return session, false, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, false, err
	}

	const query = `
		INSERT INTO trivia_sessions (id, user_id, question_id, session_date, issued_at, points_earned)
		VALUES ($1, $2, $3, $4, NOW(), 0)
		ON CONFLICT (user_id, session_date) DO NOTHING
		RETURNING ` + sessionColumns

	s, err := scanSession(r.pool.QueryRow(ctx, query, uuid.New(), userID, questionID, model.UTCDayOf(day)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race; the winner's session is the day's session.
			session, err = r.GetSessionByUserAndDate(ctx, userID, day)
			if err != nil {
				return nil, false, err
			}
			return session, false, nil
		}
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}
	return s, true, nil
}

// AnswerSessionTx grades a session inside tx. The answered_at guard
// makes grading single-shot: false means the session was already
// answered and nothing changed.
func (r *TriviaRepository) AnswerSessionTx(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, selectedIndex int, correct bool, pointsEarned int64) (bool, error) {
	const query = `
		UPDATE trivia_sessions
		SET answered_at = NOW(), selected_index = $2, correct = $3, points_earned = $4
		WHERE id = $1 AND answered_at IS NULL
	`

	result, err := tx.Exec(ctx, query, sessionID, selectedIndex, correct, pointsEarned)
	if err != nil {
		return false, fmt.Errorf("failed to grade session: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// GetStreak returns a user's streak state, zero-valued when the user
// has never answered correctly.
func (r *TriviaRepository) GetStreak(ctx context.Context, userID uuid.UUID) (*model.StreakState, error) {
	const query = `
		SELECT user_id, streak, last_correct_date, updated_at
		FROM trivia_streaks
		WHERE user_id = $1
	`

	var s model.StreakState
	err := r.pool.QueryRow(ctx, query, userID).Scan(&s.UserID, &s.Streak, &s.LastCorrectDate, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.StreakState{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	return &s, nil
}

// UpsertStreakTx writes a user's streak state inside tx, in the same
// transaction that grades the answer.
func (r *TriviaRepository) UpsertStreakTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, streak int, lastCorrectDate time.Time) error {
	const query = `
		INSERT INTO trivia_streaks (user_id, streak, last_correct_date, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET streak = $2, last_correct_date = $3, updated_at = NOW()
	`

	_, err := tx.Exec(ctx, query, userID, streak, model.UTCDayOf(lastCorrectDate))
	if err != nil {
		return fmt.Errorf("failed to upsert streak: %w", err)
	}
	return nil
}
