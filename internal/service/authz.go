// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"engage-rewards-service/internal/model"
	"engage-rewards-service/internal/repository"
)

// Authorization and shared lookup errors.
var (
	ErrUnauthorized    = errors.New("operation not permitted for this role")
	ErrActorSuspended  = errors.New("account is suspended")
	ErrProfileNotFound = errors.New("profile not found")
	ErrNotFound        = errors.New("requested resource not found")
)

// Authorizer guards privileged mutations. It fetches the acting
// profile once per request, rejects suspended accounts, and verifies
// role membership. Every caller passes the capability name so denials
// and grants are attributable in the logs.
type Authorizer struct {
	profileRepo *repository.ProfileRepository
}

// NewAuthorizer creates a new Authorizer instance.
func NewAuthorizer(profileRepo *repository.ProfileRepository) *Authorizer {
	return &Authorizer{profileRepo: profileRepo}
}

// Require returns the actor's profile when it holds one of the allowed
// roles and is not suspended.
func (a *Authorizer) Require(ctx context.Context, actorID uuid.UUID, capability string, allowed ...model.Role) (*model.Profile, error) {
	actor, err := a.profileRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to load actor: %w", err)
	}

	if actor.IsSuspended {
		log.Warn().
			Str("actor_id", actorID.String()).
			Str("capability", capability).
			Msg("Suspended account denied")
		return nil, ErrActorSuspended
	}

	for _, role := range allowed {
		if actor.Role == role {
			return actor, nil
		}
	}

	log.Warn().
		Str("actor_id", actorID.String()).
		Str("role", string(actor.Role)).
		Str("capability", capability).
		Msg("Role check denied")
	return nil, ErrUnauthorized
}

// RequireAdmin is shorthand for admin-only capabilities.
func (a *Authorizer) RequireAdmin(ctx context.Context, actorID uuid.UUID, capability string) (*model.Profile, error) {
	return a.Require(ctx, actorID, capability, model.RoleAdmin)
}

// RequireModerator admits moderators and admins.
func (a *Authorizer) RequireModerator(ctx context.Context, actorID uuid.UUID, capability string) (*model.Profile, error) {
	return a.Require(ctx, actorID, capability, model.RoleModerator, model.RoleAdmin)
}

// RequireActive returns any non-suspended profile, for operations open
// to every signed-in user.
func (a *Authorizer) RequireActive(ctx context.Context, actorID uuid.UUID) (*model.Profile, error) {
	actor, err := a.profileRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to load actor: %w", err)
	}
	if actor.IsSuspended {
		return nil, ErrActorSuspended
	}
	return actor, nil
}
