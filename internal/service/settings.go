package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"engage-rewards-service/internal/repository"
)

// ErrInvalidSetting rejects blank setting keys.
var ErrInvalidSetting = errors.New("setting key must not be empty")

// SettingsService manages the remotely-managed platform settings that
// override configured defaults. Admin only.
type SettingsService struct {
	settingsRepo *repository.SettingsRepository
	authz        *Authorizer
}

// NewSettingsService creates a new SettingsService instance.
func NewSettingsService(settingsRepo *repository.SettingsRepository, authz *Authorizer) *SettingsService {
	return &SettingsService{settingsRepo: settingsRepo, authz: authz}
}

// List returns every remote override.
func (s *SettingsService) List(ctx context.Context, actorID uuid.UUID) (map[string]string, error) {
	if _, err := s.authz.RequireAdmin(ctx, actorID, "settings.list"); err != nil {
		return nil, err
	}
	return s.settingsRepo.List(ctx)
}

// Set writes a remote override. It takes effect on the next resolve,
// no restart needed.
func (s *SettingsService) Set(ctx context.Context, actorID uuid.UUID, key, value string) error {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "settings.set")
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidSetting
	}

	if err := s.settingsRepo.Set(ctx, key, value); err != nil {
		return err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("key", key).
		Str("operation", "settings.set").
		Msg("Admin operation executed")
	return nil
}

// Delete removes a remote override so the configured default applies
// again.
func (s *SettingsService) Delete(ctx context.Context, actorID uuid.UUID, key string) error {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "settings.delete")
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidSetting
	}

	if err := s.settingsRepo.Delete(ctx, key); err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			return ErrNotFound
		}
		return err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("key", key).
		Str("operation", "settings.delete").
		Msg("Admin operation executed")
	return nil
}
