package services

import (
	"context"
	"strings"

	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/internal/permissions"
	"github.com/charmverse/governance/pkg/response"
	"gorm.io/gorm"
)

// BountyService manages bounties and computes per-user bounty operations.
type BountyService struct {
	db    *gorm.DB
	roles *SpaceRoleService
}

func NewBountyService(db *gorm.DB, roles *SpaceRoleService) *BountyService {
	return &BountyService{db: db, roles: roles}
}

// BountyPermissionInput assigns a level to exactly one of a user, a role, the
// whole space or the public.
type BountyPermissionInput struct {
	Level  string `json:"level" binding:"required"`
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
	Space  bool   `json:"space"`
	Public bool   `json:"public"`
}

type CreateBountyRequest struct {
	Title          string                  `json:"title" binding:"required"`
	Content        string                  `json:"content"`
	RewardAmount   float64                 `json:"reward_amount"`
	RewardToken    string                  `json:"reward_token"`
	MaxSubmissions *int                    `json:"max_submissions"`
	Permissions    []BountyPermissionInput `json:"permissions"`
}

// BountyAccess is the caller's computed view of a bounty.
type BountyAccess struct {
	Operations map[permissions.Operation]bool `json:"operations"`
	Grants     []models.BountyPermission      `json:"grants"`
}

// ComputePermissions unions the operations granted to userID on a bounty.
// Space admins hold every operation, the creator holds the creator level and
// each matching grant adds its level. Non-members only see public grants.
func (s *BountyService) ComputePermissions(ctx context.Context, bountyID, userID string) (permissions.OperationSet, error) {
	bounty, err := s.get(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	return s.computeFor(ctx, bounty, userID)
}

func (s *BountyService) computeFor(ctx context.Context, bounty *models.Bounty, userID string) (permissions.OperationSet, error) {
	member, err := s.roles.ResolveRole(ctx, userID, bounty.SpaceID)
	if err != nil {
		return nil, err
	}
	if member.IsAdmin {
		return permissions.Bounty.Universe(), nil
	}

	var grants []models.BountyPermission
	if err := s.db.WithContext(ctx).Where("bounty_id = ?", bounty.ID).Find(&grants).Error; err != nil {
		return nil, dbError(err, "bounty permissions")
	}

	ops := permissions.NewOperationSet()
	for _, g := range grants {
		if !grantApplies(g, member) {
			continue
		}
		levelOps, err := permissions.Bounty.Operations(permissions.Level(g.Level))
		if err != nil {
			// unknown stored level grants nothing
			continue
		}
		ops = ops.Union(levelOps)
	}

	if member.IsMember && bounty.CreatedBy == userID {
		creatorOps, _ := permissions.Bounty.Operations(permissions.BountyCreator)
		ops = ops.Union(creatorOps)
	}
	return ops, nil
}

func grantApplies(g models.BountyPermission, m *SpaceMembership) bool {
	if g.Public {
		return true
	}
	if !m.IsMember {
		return false
	}
	switch {
	case g.UserID != nil:
		return *g.UserID == m.UserID
	case g.RoleID != nil:
		return m.HasRole(*g.RoleID)
	case g.SpaceID != nil:
		return *g.SpaceID == m.SpaceID
	}
	return false
}

// Create adds a bounty page. Without explicit grants the whole space may submit.
func (s *BountyService) Create(ctx context.Context, actorID, spaceID string, req *CreateBountyRequest) (*models.Bounty, error) {
	member, err := s.roles.RequireMember(ctx, actorID, spaceID, false)
	if err != nil {
		return nil, err
	}
	if !permissions.SpaceOperations(member.IsAdmin).Has(permissions.SpaceCreateBounty) {
		return nil, response.NewInsecureOperation("you cannot create bounties in this space")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, response.NewInvalidInput("bounty title is required")
	}
	if req.RewardAmount < 0 {
		return nil, response.NewInvalidInput("reward amount must not be negative")
	}

	inputs := req.Permissions
	if len(inputs) == 0 {
		inputs = []BountyPermissionInput{{Level: string(permissions.BountySubmitter), Space: true}}
	}
	grants := make([]models.BountyPermission, 0, len(inputs)+1)
	for i := range inputs {
		g, err := newGrant(spaceID, &inputs[i])
		if err != nil {
			return nil, err
		}
		grants = append(grants, *g)
	}
	creatorID := actorID
	grants = append(grants, models.BountyPermission{Level: string(permissions.BountyCreator), UserID: &creatorID})

	bounty := &models.Bounty{
		SpaceID:        spaceID,
		Status:         models.BountyStatusOpen,
		RewardAmount:   req.RewardAmount,
		RewardToken:    req.RewardToken,
		MaxSubmissions: req.MaxSubmissions,
		CreatedBy:      actorID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		page := &models.Page{SpaceID: spaceID, Title: strings.TrimSpace(req.Title), Type: "bounty", Content: req.Content, CreatedBy: actorID}
		if err := tx.Create(page).Error; err != nil {
			return err
		}
		bounty.PageID = page.ID
		if err := tx.Create(bounty).Error; err != nil {
			return err
		}
		for i := range grants {
			grants[i].BountyID = bounty.ID
		}
		return tx.Create(&grants).Error
	})
	if err != nil {
		return nil, dbError(err, "bounty")
	}
	bounty.Permissions = grants
	return bounty, nil
}

func newGrant(spaceID string, in *BountyPermissionInput) (*models.BountyPermission, error) {
	level := permissions.Level(in.Level)
	if !permissions.Bounty.HasLevel(level) {
		return nil, response.NewInvalidInput("unknown bounty permission level: %s", in.Level)
	}

	assignees := 0
	g := &models.BountyPermission{Level: in.Level}
	if in.UserID != "" {
		assignees++
		userID := in.UserID
		g.UserID = &userID
	}
	if in.RoleID != "" {
		assignees++
		roleID := in.RoleID
		g.RoleID = &roleID
	}
	if in.Space {
		assignees++
		sid := spaceID
		g.SpaceID = &sid
	}
	if in.Public {
		assignees++
		g.Public = true
	}
	if assignees != 1 {
		return nil, response.NewInvalidInput("a bounty permission needs exactly one assignee")
	}
	if g.Public && level != permissions.BountyViewer {
		return nil, response.NewInvalidInput("public access is limited to the viewer level")
	}
	return g, nil
}

// GetByID returns a bounty the caller may view.
func (s *BountyService) GetByID(ctx context.Context, actorID, bountyID string) (*models.Bounty, error) {
	bounty, err := s.get(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, bounty, actorID, permissions.BountyView); err != nil {
		return nil, err
	}
	return bounty, nil
}

// ListBySpace returns the space's bounties the caller may view.
func (s *BountyService) ListBySpace(ctx context.Context, actorID, spaceID string) ([]models.Bounty, error) {
	var bounties []models.Bounty
	if err := s.db.WithContext(ctx).Preload("Page").
		Where("space_id = ?", spaceID).
		Order("created_at DESC").
		Find(&bounties).Error; err != nil {
		return nil, dbError(err, "bounties")
	}

	visible := make([]models.Bounty, 0, len(bounties))
	for i := range bounties {
		ops, err := s.computeFor(ctx, &bounties[i], actorID)
		if err != nil {
			return nil, err
		}
		if ops.Has(permissions.BountyView) {
			visible = append(visible, bounties[i])
		}
	}
	return visible, nil
}

// Access returns the caller's operations and the bounty's grants.
func (s *BountyService) Access(ctx context.Context, actorID, bountyID string) (*BountyAccess, error) {
	bounty, err := s.get(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	ops, err := s.computeFor(ctx, bounty, actorID)
	if err != nil {
		return nil, err
	}
	if !ops.Has(permissions.BountyView) {
		return nil, response.NewInsecureOperation("you cannot view this bounty")
	}

	var grants []models.BountyPermission
	if err := s.db.WithContext(ctx).Where("bounty_id = ?", bountyID).Order("created_at ASC").Find(&grants).Error; err != nil {
		return nil, dbError(err, "bounty permissions")
	}
	return &BountyAccess{Operations: ops.Flags(permissions.Bounty.Universe()), Grants: grants}, nil
}

func (s *BountyService) Delete(ctx context.Context, actorID, bountyID string) error {
	bounty, err := s.get(ctx, bountyID)
	if err != nil {
		return err
	}
	if err := s.require(ctx, bounty, actorID, permissions.BountyDelete); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bounty_id = ?", bounty.ID).Delete(&models.BountyPermission{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(bounty).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Page{}, "id = ?", bounty.PageID).Error
	})
}

func (s *BountyService) GrantPermission(ctx context.Context, actorID, bountyID string, in *BountyPermissionInput) (*models.BountyPermission, error) {
	bounty, err := s.get(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, bounty, actorID, permissions.BountyGrantPermissions); err != nil {
		return nil, err
	}

	g, err := newGrant(bounty.SpaceID, in)
	if err != nil {
		return nil, err
	}
	g.BountyID = bounty.ID

	query := s.db.WithContext(ctx).Model(&models.BountyPermission{}).Where("bounty_id = ? AND level = ?", bounty.ID, g.Level)
	switch {
	case g.UserID != nil:
		query = query.Where("user_id = ?", *g.UserID)
	case g.RoleID != nil:
		query = query.Where("role_id = ?", *g.RoleID)
	case g.SpaceID != nil:
		query = query.Where("space_id = ?", *g.SpaceID)
	default:
		query = query.Where("public = ?", true)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, dbError(err, "bounty permission")
	}
	if count > 0 {
		return nil, response.NewDuplicateData("this permission is already granted")
	}

	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return nil, dbError(err, "bounty permission")
	}
	return g, nil
}

func (s *BountyService) RevokePermission(ctx context.Context, actorID, bountyID, permissionID string) error {
	bounty, err := s.get(ctx, bountyID)
	if err != nil {
		return err
	}
	if err := s.require(ctx, bounty, actorID, permissions.BountyGrantPermissions); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Where("id = ? AND bounty_id = ?", permissionID, bounty.ID).Delete(&models.BountyPermission{})
	if result.Error != nil {
		return dbError(result.Error, "bounty permission")
	}
	if result.RowsAffected == 0 {
		return response.NewNotFound("bounty permission not found")
	}
	return nil
}

func (s *BountyService) get(ctx context.Context, bountyID string) (*models.Bounty, error) {
	var bounty models.Bounty
	if err := s.db.WithContext(ctx).Preload("Page").First(&bounty, "id = ?", bountyID).Error; err != nil {
		return nil, dbError(err, "bounty")
	}
	return &bounty, nil
}

func (s *BountyService) require(ctx context.Context, bounty *models.Bounty, userID string, op permissions.Operation) error {
	ops, err := s.computeFor(ctx, bounty, userID)
	if err != nil {
		return err
	}
	if !ops.Has(op) {
		return response.NewInsecureOperation("missing bounty permission: %s", op)
	}
	return nil
}
