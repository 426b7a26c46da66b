package services

import (
	"context"
	"strings"

	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/response"
	"gorm.io/gorm"
)

// RoleService manages custom roles within a space.
type RoleService struct {
	db    *gorm.DB
	roles *SpaceRoleService
}

func NewRoleService(db *gorm.DB, roles *SpaceRoleService) *RoleService {
	return &RoleService{db: db, roles: roles}
}

type CreateRoleRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *RoleService) Create(ctx context.Context, actorID, spaceID string, req *CreateRoleRequest) (*models.Role, error) {
	if _, err := s.roles.RequireMember(ctx, actorID, spaceID, true); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, response.NewInvalidInput("role name is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Role{}).
		Where("space_id = ? AND name = ?", spaceID, name).
		Count(&count).Error; err != nil {
		return nil, dbError(err, "role")
	}
	if count > 0 {
		return nil, response.NewDuplicateData("role %q already exists in this space", name)
	}

	role := &models.Role{SpaceID: spaceID, Name: name, CreatedBy: actorID}
	if err := s.db.WithContext(ctx).Create(role).Error; err != nil {
		return nil, dbError(err, "role")
	}
	return role, nil
}

func (s *RoleService) List(ctx context.Context, actorID, spaceID string) ([]models.Role, error) {
	if _, err := s.roles.RequireMember(ctx, actorID, spaceID, false); err != nil {
		return nil, err
	}

	var roles []models.Role
	if err := s.db.WithContext(ctx).Where("space_id = ?", spaceID).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, dbError(err, "roles")
	}
	return roles, nil
}

// Delete removes a role, its member links and bounty grants.
func (s *RoleService) Delete(ctx context.Context, actorID, spaceID, roleID string) error {
	role, err := s.getInSpace(ctx, spaceID, roleID)
	if err != nil {
		return err
	}
	if _, err := s.roles.RequireMember(ctx, actorID, role.SpaceID, true); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", role.ID).Delete(&models.SpaceRoleToRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", role.ID).Delete(&models.BountyPermission{}).Error; err != nil {
			return err
		}
		return tx.Delete(role).Error
	})
}

// Assign gives userID the role; the user must already be a space member.
func (s *RoleService) Assign(ctx context.Context, actorID, spaceID, roleID, userID string) error {
	role, err := s.getInSpace(ctx, spaceID, roleID)
	if err != nil {
		return err
	}
	if _, err := s.roles.RequireMember(ctx, actorID, role.SpaceID, true); err != nil {
		return err
	}

	member, err := s.roles.ResolveRole(ctx, userID, role.SpaceID)
	if err != nil {
		return err
	}
	if !member.IsMember {
		return response.NewInvalidInput("user is not a member of this space")
	}
	if member.HasRole(role.ID) {
		return response.NewDuplicateData("user already has role %q", role.Name)
	}

	link := &models.SpaceRoleToRole{SpaceRoleID: member.SpaceRoleID, RoleID: role.ID}
	return dbError(s.db.WithContext(ctx).Create(link).Error, "role assignment")
}

func (s *RoleService) Unassign(ctx context.Context, actorID, spaceID, roleID, userID string) error {
	role, err := s.getInSpace(ctx, spaceID, roleID)
	if err != nil {
		return err
	}
	if _, err := s.roles.RequireMember(ctx, actorID, role.SpaceID, true); err != nil {
		return err
	}

	member, err := s.roles.ResolveRole(ctx, userID, role.SpaceID)
	if err != nil {
		return err
	}
	if !member.HasRole(role.ID) {
		return response.NewNotFound("role assignment not found")
	}

	return s.db.WithContext(ctx).
		Where("space_role_id = ? AND role_id = ?", member.SpaceRoleID, role.ID).
		Delete(&models.SpaceRoleToRole{}).Error
}

func (s *RoleService) getInSpace(ctx context.Context, spaceID, roleID string) (*models.Role, error) {
	var role models.Role
	if err := s.db.WithContext(ctx).Where("id = ? AND space_id = ?", roleID, spaceID).First(&role).Error; err != nil {
		return nil, dbError(err, "role")
	}
	return &role, nil
}
