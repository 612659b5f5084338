package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"engage-rewards-service/internal/model"
	"engage-rewards-service/internal/repository"
)

// Poll errors.
var (
	ErrInvalidPoll   = errors.New("poll needs a question and at least two options")
	ErrPollClosed    = errors.New("poll is closed")
	ErrAlreadyVoted  = errors.New("already voted in this poll")
	ErrInvalidChoice = errors.New("selected option does not exist")
)

// PollService runs community polls. Voting is one ballot per user per
// poll, enforced by the votes table rather than checked in memory.
type PollService struct {
	pollRepo    *repository.PollRepository
	profileRepo *repository.ProfileRepository
	authz       *Authorizer
	now         func() time.Time
}

// NewPollService creates a new PollService instance.
func NewPollService(
	pollRepo *repository.PollRepository,
	profileRepo *repository.ProfileRepository,
	authz *Authorizer,
) *PollService {
	return &PollService{
		pollRepo:    pollRepo,
		profileRepo: profileRepo,
		authz:       authz,
		now:         time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *PollService) WithClock(now func() time.Time) *PollService {
	s.now = now
	return s
}

// Create publishes a poll. Moderators and admins only.
func (s *PollService) Create(ctx context.Context, actorID uuid.UUID, question string, options []string, country *string, closesAt *time.Time) (*model.Poll, error) {
	actor, err := s.authz.RequireModerator(ctx, actorID, "poll.create")
	if err != nil {
		return nil, err
	}

	question = strings.TrimSpace(question)
	if question == "" || len(options) < 2 {
		return nil, ErrInvalidPoll
	}
	for _, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return nil, ErrInvalidPoll
		}
	}
	if closesAt != nil && !closesAt.After(s.now()) {
		return nil, ErrInvalidPoll
	}

	poll, err := s.pollRepo.Create(ctx, question, options, normalizeCountryPtr(country), actor.ID, closesAt)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("poll_id", poll.ID.String()).
		Str("operation", "poll.create").
		Msg("Admin operation executed")
	return poll, nil
}

// ListActive returns open polls visible to the viewer: global polls
// plus the ones scoped to the viewer's country.
func (s *PollService) ListActive(ctx context.Context, viewerID uuid.UUID) ([]*model.Poll, error) {
	profile, err := s.profileRepo.GetByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return s.pollRepo.ListActive(ctx, profile.Country)
}

// Vote casts the user's ballot for one option.
func (s *PollService) Vote(ctx context.Context, userID, pollID uuid.UUID, optionIndex int) error {
	if _, err := s.authz.RequireActive(ctx, userID); err != nil {
		return err
	}

	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, repository.ErrPollNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !poll.IsActive {
		return ErrPollClosed
	}
	if poll.ClosesAt != nil && !poll.ClosesAt.After(s.now()) {
		return ErrPollClosed
	}
	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		return ErrInvalidChoice
	}

	voted, err := s.pollRepo.Vote(ctx, pollID, userID, optionIndex)
	if err != nil {
		return err
	}
	if !voted {
		return ErrAlreadyVoted
	}
	return nil
}

// PollWithResults pairs a poll with its per-option tallies.
type PollWithResults struct {
	Poll    *model.Poll        `json:"poll"`
	Results []model.PollResult `json:"results"`
	Voted   bool               `json:"voted"`
}

// Results returns the poll's tallies, with every option present even
// at zero votes, plus whether the viewer has voted.
func (s *PollService) Results(ctx context.Context, viewerID, pollID uuid.UUID) (*PollWithResults, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, repository.ErrPollNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	results, err := s.pollRepo.Results(ctx, poll)
	if err != nil {
		return nil, err
	}
	voted, err := s.pollRepo.HasVoted(ctx, pollID, viewerID)
	if err != nil {
		return nil, err
	}

	return &PollWithResults{Poll: poll, Results: results, Voted: voted}, nil
}

// Close ends a poll early. Moderators and admins only.
func (s *PollService) Close(ctx context.Context, actorID, pollID uuid.UUID) error {
	actor, err := s.authz.RequireModerator(ctx, actorID, "poll.close")
	if err != nil {
		return err
	}

	if err := s.pollRepo.Close(ctx, pollID); err != nil {
		if errors.Is(err, repository.ErrPollNotFound) {
			return ErrNotFound
		}
		return err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("poll_id", pollID.String()).
		Str("operation", "poll.close").
		Msg("Admin operation executed")
	return nil
}
