package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"engage-rewards-service/internal/model"
	"engage-rewards-service/internal/pkg/db"
	"engage-rewards-service/internal/pkg/lock"
	"engage-rewards-service/internal/repository"
	"engage-rewards-service/internal/reward/streak"
)

// Trivia errors.
var (
	ErrNoQuestions      = errors.New("no trivia questions available")
	ErrNoIssuedQuestion = errors.New("no trivia question issued for today")
	ErrAlreadySubmitted = errors.New("today's trivia question was already answered")
	ErrQuestionMismatch = errors.New("answer does not match today's issued question")
	ErrInvalidOption    = errors.New("selected option is out of range")
	ErrInvalidQuestion  = errors.New("question needs text, at least two options, and a valid correct index")
)

// QuestionView is an issued question with the answer withheld.
type QuestionView struct {
	QuestionID uuid.UUID `json:"question_id"`
	Question   string    `json:"question"`
	Options    []string  `json:"options"`
	IssuedAt   time.Time `json:"issued_at"`
}

// AnswerResult grades a submission. The correct index is revealed only
// after the answer is recorded.
type AnswerResult struct {
	Correct      bool  `json:"correct"`
	CorrectIndex int   `json:"correct_index"`
	PointsEarned int64 `json:"points_earned"`
	StreakBonus  int64 `json:"streak_bonus"`
	Streak       int   `json:"streak"`
	NewBalance   int64 `json:"new_balance"`
}

// TriviaService runs the daily trivia challenge. Issuing a question
// does not consume the day's action; submitting does, right or wrong.
// A second issue call before submission returns the same pending
// question, so clients cannot re-roll for an easier one.
type TriviaService struct {
	pool        *pgxpool.Pool
	profileRepo *repository.ProfileRepository
	ledgerRepo  *repository.LedgerRepository
	claimRepo   *repository.ClaimRepository
	triviaRepo  *repository.TriviaRepository
	authz       *Authorizer
	userLock    *lock.UserLock
	basePoints  int64
	streakStep  int64
	streakLimit int64
	now         func() time.Time
}

// NewTriviaService creates a new TriviaService instance.
func NewTriviaService(
	pool *pgxpool.Pool,
	profileRepo *repository.ProfileRepository,
	ledgerRepo *repository.LedgerRepository,
	claimRepo *repository.ClaimRepository,
	triviaRepo *repository.TriviaRepository,
	authz *Authorizer,
	userLock *lock.UserLock,
	basePoints, streakStep, streakLimit int64,
) *TriviaService {
	return &TriviaService{
		pool:        pool,
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
		claimRepo:   claimRepo,
		triviaRepo:  triviaRepo,
		authz:       authz,
		userLock:    userLock,
		basePoints:  basePoints,
		streakStep:  streakStep,
		streakLimit: streakLimit,
		now:         time.Now,
	}
}

// WithClock swaps the time source, for tests that cross day
// boundaries.
func (s *TriviaService) WithClock(now func() time.Time) *TriviaService {
	s.now = now
	return s
}

// IssueQuestion returns today's question for the user, creating the
// session on first call. The question pool prefers the user's country
// and falls back to the global pool.
func (s *TriviaService) IssueQuestion(ctx context.Context, userID uuid.UUID) (*QuestionView, error) {
	profile, err := s.authz.RequireActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	day := model.UTCDayOf(s.now())

	claimed, err := s.claimRepo.HasClaimed(ctx, userID, model.ActionTrivia, day)
	if err != nil {
		return nil, fmt.Errorf("failed to check trivia claim: %w", err)
	}
	if claimed {
		return nil, ErrNotEligible
	}

	// A pending session is re-issued unchanged.
	session, err := s.triviaRepo.GetSessionByUserAndDate(ctx, userID, day)
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, err
	}

	if session == nil {
		question, err := s.triviaRepo.RandomActiveQuestion(ctx, profile.Country)
		if err != nil {
			if errors.Is(err, repository.ErrQuestionNotFound) {
				return nil, ErrNoQuestions
			}
			return nil, err
		}

		// A concurrent first call may win the insert; the stored
		// session is authoritative either way.
		session, _, err = s.triviaRepo.GetOrCreateSession(ctx, userID, question.ID, day)
		if err != nil {
			return nil, err
		}
	}

	question, err := s.triviaRepo.GetQuestionByID(ctx, session.QuestionID)
	if err != nil {
		return nil, err
	}

	return &QuestionView{
		QuestionID: question.ID,
		Question:   question.Question,
		Options:    question.Options,
		IssuedAt:   session.IssuedAt,
	}, nil
}

// SubmitAnswer grades today's issued question, consumes the day's
// trivia action, and credits base points plus any streak bonus when
// correct. An incorrect answer consumes the action, earns nothing, and
// leaves the streak untouched.
func (s *TriviaService) SubmitAnswer(ctx context.Context, userID, questionID uuid.UUID, selectedIndex int) (*AnswerResult, error) {
	if _, err := s.authz.RequireActive(ctx, userID); err != nil {
		return nil, err
	}

	if !s.userLock.TryLock(userID) {
		return nil, ErrConcurrentRequest
	}
	defer s.userLock.Unlock(userID)

	day := model.UTCDayOf(s.now())

	session, err := s.triviaRepo.GetSessionByUserAndDate(ctx, userID, day)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrNoIssuedQuestion
		}
		return nil, err
	}
	if session.AnsweredAt != nil {
		return nil, ErrAlreadySubmitted
	}
	if session.QuestionID != questionID {
		return nil, ErrQuestionMismatch
	}

	question, err := s.triviaRepo.GetQuestionByID(ctx, session.QuestionID)
	if err != nil {
		return nil, err
	}
	if selectedIndex < 0 || selectedIndex >= len(question.Options) {
		return nil, ErrInvalidOption
	}

	correct := selectedIndex == question.CorrectIndex

	state, err := s.triviaRepo.GetStreak(ctx, userID)
	if err != nil {
		return nil, err
	}

	newStreak := state.Streak
	var bonus, total int64
	if correct {
		newStreak = streak.Next(state.Streak, state.LastCorrectDate, day)
		bonus = streak.Bonus(newStreak, s.streakStep, s.streakLimit)
		total = s.basePoints + bonus
	}

	var result AnswerResult
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		claimed, err := s.claimRepo.TryClaimTx(ctx, tx, userID, model.ActionTrivia, day)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrAlreadySubmitted
		}

		answered, err := s.triviaRepo.AnswerSessionTx(ctx, tx, session.ID, selectedIndex, correct, total)
		if err != nil {
			return err
		}
		if !answered {
			return ErrAlreadySubmitted
		}

		balance, err := s.profileRepo.CreditPointsTx(ctx, tx, userID, total)
		if err != nil {
			return err
		}

		if correct {
			if err := s.triviaRepo.UpsertStreakTx(ctx, tx, userID, newStreak, day); err != nil {
				return err
			}

			baseDesc := "Correct trivia answer"
			if _, err := s.ledgerRepo.InsertTx(ctx, tx, userID, s.basePoints, model.EntryTriviaBase, &baseDesc); err != nil {
				return err
			}
			if bonus > 0 {
				bonusDesc := fmt.Sprintf("Trivia streak day %d", newStreak)
				if _, err := s.ledgerRepo.InsertTx(ctx, tx, userID, bonus, model.EntryTriviaStreak, &bonusDesc); err != nil {
					return err
				}
			}
		}

		result = AnswerResult{
			Correct:      correct,
			CorrectIndex: question.CorrectIndex,
			PointsEarned: total,
			StreakBonus:  bonus,
			Streak:       newStreak,
			NewBalance:   balance,
		}
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

// CreateQuestion adds a trivia question to a country pool, or the
// global pool when country is nil. Moderator or admin only.
func (s *TriviaService) CreateQuestion(ctx context.Context, actorID uuid.UUID, question string, options []string, correctIndex int, country *string) (*model.TriviaQuestion, error) {
	actor, err := s.authz.RequireModerator(ctx, actorID, "trivia.question.create")
	if err != nil {
		return nil, err
	}

	question = strings.TrimSpace(question)
	if question == "" || len(options) < 2 || correctIndex < 0 || correctIndex >= len(options) {
		return nil, ErrInvalidQuestion
	}
	for _, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return nil, ErrInvalidQuestion
		}
	}
	country = normalizeCountryPtr(country)

	created, err := s.triviaRepo.CreateQuestion(ctx, question, options, correctIndex, country)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("question_id", created.ID.String()).
		Str("operation", "trivia.question.create").
		Msg("Admin operation executed")
	return created, nil
}

// SetQuestionActive flips a question in or out of the pool.
func (s *TriviaService) SetQuestionActive(ctx context.Context, actorID, questionID uuid.UUID, active bool) error {
	actor, err := s.authz.RequireModerator(ctx, actorID, "trivia.question.set_active")
	if err != nil {
		return err
	}

	if err := s.triviaRepo.SetQuestionActive(ctx, questionID, active); err != nil {
		if errors.Is(err, repository.ErrQuestionNotFound) {
			return ErrNotFound
		}
		return err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("question_id", questionID.String()).
		Bool("active", active).
		Str("operation", "trivia.question.set_active").
		Msg("Admin operation executed")
	return nil
}

// ListQuestions returns questions for the admin console, correct
// indexes included.
func (s *TriviaService) ListQuestions(ctx context.Context, actorID uuid.UUID, country *string, limit, offset int) ([]*model.TriviaQuestion, error) {
	if _, err := s.authz.RequireModerator(ctx, actorID, "trivia.question.list"); err != nil {
		return nil, err
	}
	return s.triviaRepo.ListQuestions(ctx, normalizeCountryPtr(country), limit, offset)
}

// normalizeCountryPtr upper-cases a country code and collapses blank
// input to nil (global scope).
func normalizeCountryPtr(country *string) *string {
	if country == nil {
		return nil
	}
	normalized := model.NormalizeCountry(*country)
	if normalized == "" {
		return nil
	}
	return &normalized
}
