package service

import (
	"context"
	"fmt"

	"github.com/microfinlabs/microfin-server/internal/models"
)

// GetTenantSettings returns the acting admin's organization settings.
func (s *DefaultService) GetTenantSettings(ctx context.Context, actorID string) (*models.TenantSettings, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, errForbidden("only admins can manage organization settings")
	}

	settings, err := s.repo.GetTenantSettings(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("error loading settings: %w", err)
	}
	if settings == nil {
		return nil, errNotFound("settings")
	}
	return settings, nil
}

// UpdateTenantSettings applies the fields present in the request,
// leaving the rest as they are.
func (s *DefaultService) UpdateTenantSettings(ctx context.Context, actorID string, req models.UpdateTenantSettingsRequest) (*models.TenantSettings, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, errForbidden("only admins can manage organization settings")
	}

	settings, err := s.repo.GetTenantSettings(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("error loading settings: %w", err)
	}
	if settings == nil {
		return nil, errNotFound("settings")
	}

	if req.Currency != "" {
		settings.Currency = req.Currency
	}
	if req.Configurations != nil {
		settings.Configurations = req.Configurations
	}
	if err := s.repo.UpdateTenantSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("error updating settings: %w", err)
	}
	return settings, nil
}
