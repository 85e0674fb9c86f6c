package service

import (
	"context"
	"fmt"

	"github.com/microfinlabs/microfin-server/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// staffRoles are the roles an admin may assign to a team member.
// Client accounts are created through the portal signup instead.
var staffRoles = map[models.UserRole]bool{
	models.RoleAdmin:       true,
	models.RoleLoanOfficer: true,
	models.RoleTeller:      true,
}

// CreateTeamMember lets an admin add a staff user to their organization.
func (s *DefaultService) CreateTeamMember(ctx context.Context, actorID string, req models.CreateTeamMemberRequest) (*models.User, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, errForbidden("only admins can manage team members")
	}

	role := models.UserRole(req.Role)
	if !staffRoles[role] {
		return nil, errValidation("unsupported team member role %q", req.Role)
	}

	existing, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}
	if existing != nil {
		return nil, errValidation("a user with this email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	member := &models.User{
		TenantID: actor.TenantID,
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     role,
		IsActive: true,
	}
	if err := s.repo.CreateUser(ctx, member); err != nil {
		return nil, fmt.Errorf("error creating team member: %w", err)
	}

	s.logger.Info("team member created",
		zap.String("tenantId", member.TenantID),
		zap.String("role", string(member.Role)))
	return member, nil
}

// ListTeamMembers returns every user in the admin's organization.
func (s *DefaultService) ListTeamMembers(ctx context.Context, actorID string) ([]models.User, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, errForbidden("only admins can manage team members")
	}
	return s.repo.ListUsersByTenant(ctx, actor.TenantID)
}
