package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/response"
	"gorm.io/gorm"
)

var spaceDomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,98}[a-z0-9]$`)

type SpaceService struct {
	db    *gorm.DB
	roles *SpaceRoleService
}

func NewSpaceService(db *gorm.DB, roles *SpaceRoleService) *SpaceService {
	return &SpaceService{db: db, roles: roles}
}

type CreateSpaceRequest struct {
	Name   string `json:"name" binding:"required"`
	Domain string `json:"domain" binding:"required"`
}

// Create makes a space and its creator's admin membership in one transaction.
func (s *SpaceService) Create(ctx context.Context, creatorID string, req *CreateSpaceRequest) (*models.Space, error) {
	domain := strings.ToLower(strings.TrimSpace(req.Domain))
	if !spaceDomainPattern.MatchString(domain) {
		return nil, response.NewInvalidInput("invalid space domain: %s", req.Domain)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, response.NewInvalidInput("space name is required")
	}

	space := &models.Space{Name: strings.TrimSpace(req.Name), Domain: domain, CreatedBy: creatorID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Space{}).Where("domain = ?", domain).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return response.NewDuplicateData("space domain %q is taken", domain)
		}
		if err := tx.Create(space).Error; err != nil {
			return dbError(err, "space")
		}
		return tx.Create(&models.SpaceRole{SpaceID: space.ID, UserID: creatorID, IsAdmin: true}).Error
	})
	if err != nil {
		return nil, err
	}
	return space, nil
}

// Get returns a space the user belongs to.
func (s *SpaceService) Get(ctx context.Context, userID, spaceID string) (*models.Space, error) {
	var space models.Space
	if err := s.db.WithContext(ctx).First(&space, "id = ?", spaceID).Error; err != nil {
		return nil, dbError(err, "space")
	}
	if _, err := s.roles.RequireMember(ctx, userID, spaceID, false); err != nil {
		return nil, err
	}
	return &space, nil
}

// ListForUser returns every space the user is a member of.
func (s *SpaceService) ListForUser(ctx context.Context, userID string) ([]models.Space, error) {
	var spaces []models.Space
	if err := s.db.WithContext(ctx).
		Joins("JOIN space_roles ON space_roles.space_id = spaces.id").
		Where("space_roles.user_id = ?", userID).
		Order("spaces.created_at ASC").
		Find(&spaces).Error; err != nil {
		return nil, dbError(err, "spaces")
	}
	return spaces, nil
}
