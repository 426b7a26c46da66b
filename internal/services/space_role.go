package services

import (
	"context"
	"errors"

	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/response"
	"gorm.io/gorm"
)

// SpaceMembership is the resolved role of a user in a space.
type SpaceMembership struct {
	UserID      string   `json:"user_id"`
	SpaceID     string   `json:"space_id"`
	IsMember    bool     `json:"is_member"`
	IsAdmin     bool     `json:"is_admin"`
	SpaceRoleID string   `json:"space_role_id,omitempty"`
	RoleIDs     []string `json:"role_ids"`
}

// HasRole reports whether the member holds roleID.
func (m *SpaceMembership) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// SpaceRoleService resolves and manages space memberships.
type SpaceRoleService struct {
	db *gorm.DB
}

func NewSpaceRoleService(db *gorm.DB) *SpaceRoleService {
	return &SpaceRoleService{db: db}
}

// ResolveRole reads the membership row of userID in spaceID. A missing row
// yields IsMember false and no error.
func (s *SpaceRoleService) ResolveRole(ctx context.Context, userID, spaceID string) (*SpaceMembership, error) {
	m := &SpaceMembership{UserID: userID, SpaceID: spaceID, RoleIDs: []string{}}
	if userID == "" || spaceID == "" {
		return m, nil
	}

	var row models.SpaceRole
	err := s.db.WithContext(ctx).
		Preload("SpaceRoleToRoles").
		Where("space_id = ? AND user_id = ?", spaceID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return m, nil
	}
	if err != nil {
		return nil, dbError(err, "space role")
	}

	m.IsMember = true
	m.IsAdmin = row.IsAdmin
	m.SpaceRoleID = row.ID
	for _, link := range row.SpaceRoleToRoles {
		m.RoleIDs = append(m.RoleIDs, link.RoleID)
	}
	return m, nil
}

// RequireMember resolves the membership and fails with an insecure-operation
// error when the user is not a member, or not an admin when adminOnly is set.
func (s *SpaceRoleService) RequireMember(ctx context.Context, userID, spaceID string, adminOnly bool) (*SpaceMembership, error) {
	m, err := s.ResolveRole(ctx, userID, spaceID)
	if err != nil {
		return nil, err
	}
	if !m.IsMember {
		return nil, response.NewInsecureOperation("user is not a member of this space")
	}
	if adminOnly && !m.IsAdmin {
		return nil, response.NewInsecureOperation("only space admins can perform this action")
	}
	return m, nil
}

type AddMemberRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	IsAdmin bool   `json:"is_admin"`
}

// AddMember adds a user to a space; only admins may add members.
func (s *SpaceRoleService) AddMember(ctx context.Context, actorID, spaceID string, req *AddMemberRequest) (*models.SpaceRole, error) {
	if _, err := s.RequireMember(ctx, actorID, spaceID, true); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id").First(&user, "id = ?", req.UserID).Error; err != nil {
		return nil, dbError(err, "user")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.SpaceRole{}).
		Where("space_id = ? AND user_id = ?", spaceID, req.UserID).
		Count(&count).Error; err != nil {
		return nil, dbError(err, "space role")
	}
	if count > 0 {
		return nil, response.NewDuplicateData("user is already a member of this space")
	}

	row := &models.SpaceRole{SpaceID: spaceID, UserID: req.UserID, IsAdmin: req.IsAdmin}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, dbError(err, "space member")
	}
	return row, nil
}

// RemoveMember removes a user and their role links from a space. Admins may
// remove anyone; members may remove themselves. The last admin cannot leave.
func (s *SpaceRoleService) RemoveMember(ctx context.Context, actorID, spaceID, userID string) error {
	actor, err := s.RequireMember(ctx, actorID, spaceID, false)
	if err != nil {
		return err
	}
	if !actor.IsAdmin && actorID != userID {
		return response.NewInsecureOperation("only space admins can remove other members")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.SpaceRole
		if err := tx.Where("space_id = ? AND user_id = ?", spaceID, userID).First(&row).Error; err != nil {
			return dbError(err, "space member")
		}
		if row.IsAdmin {
			if err := ensureAnotherAdmin(tx, spaceID, userID); err != nil {
				return err
			}
		}
		if err := tx.Where("space_role_id = ?", row.ID).Delete(&models.SpaceRoleToRole{}).Error; err != nil {
			return err
		}
		return tx.Delete(&row).Error
	})
}

// SetAdmin toggles the admin flag of a member.
func (s *SpaceRoleService) SetAdmin(ctx context.Context, actorID, spaceID, userID string, isAdmin bool) error {
	if _, err := s.RequireMember(ctx, actorID, spaceID, true); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.SpaceRole
		if err := tx.Where("space_id = ? AND user_id = ?", spaceID, userID).First(&row).Error; err != nil {
			return dbError(err, "space member")
		}
		if row.IsAdmin == isAdmin {
			return nil
		}
		if !isAdmin {
			if err := ensureAnotherAdmin(tx, spaceID, userID); err != nil {
				return err
			}
		}
		return tx.Model(&row).Update("is_admin", isAdmin).Error
	})
}

func ensureAnotherAdmin(tx *gorm.DB, spaceID, userID string) error {
	var admins int64
	if err := tx.Model(&models.SpaceRole{}).
		Where("space_id = ? AND is_admin = ? AND user_id <> ?", spaceID, true, userID).
		Count(&admins).Error; err != nil {
		return err
	}
	if admins == 0 {
		return response.NewInvalidInput("a space needs at least one admin")
	}
	return nil
}

// ListMembers returns the members of a space with their users and roles.
func (s *SpaceRoleService) ListMembers(ctx context.Context, actorID, spaceID string) ([]models.SpaceRole, error) {
	if _, err := s.RequireMember(ctx, actorID, spaceID, false); err != nil {
		return nil, err
	}

	var rows []models.SpaceRole
	if err := s.db.WithContext(ctx).
		Preload("User").
		Preload("SpaceRoleToRoles.Role").
		Where("space_id = ?", spaceID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err, "space members")
	}
	return rows, nil
}
