package services

import (
	"context"
	"time"

	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/response"
	"gorm.io/gorm"
)

// UserService is the system admin's view of accounts.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type UserListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Username string `form:"username"`
	Role     string `form:"role"`
}

type UserListResponse struct {
	Items    []models.User `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

type UpdateUserRequest struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
	Nickname *string `json:"nickname"`
}

func (s *UserService) List(ctx context.Context, req *UserListRequest) (*UserListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if req.Username != "" {
		query = query.Where("username LIKE ?", "%"+req.Username+"%")
	}
	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, dbError(err, "users")
	}
	var users []models.User
	if err := query.Order("created_at ASC").Offset((req.Page - 1) * req.PageSize).Limit(req.PageSize).Find(&users).Error; err != nil {
		return nil, dbError(err, "users")
	}

	return &UserListResponse{Items: users, Total: total, Page: req.Page, PageSize: req.PageSize}, nil
}

// Update changes role, active flag or nickname. Admins cannot modify their
// own account.
func (s *UserService) Update(ctx context.Context, actorID, id string, req *UpdateUserRequest) (*models.User, error) {
	if actorID == id {
		return nil, response.NewInvalidInput("cannot modify your own account")
	}

	updates := make(map[string]interface{})
	if req.Role != nil {
		if *req.Role != models.UserRoleAdmin && *req.Role != models.UserRoleUser {
			return nil, response.NewInvalidInput("invalid role, must be 'admin' or 'user'")
		}
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Nickname != nil {
		updates["nickname"] = *req.Nickname
	}
	if len(updates) == 0 {
		return nil, response.NewInvalidInput("no fields to update")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "user")
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, dbError(err, "user")
	}
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "user")
	}
	return &user, nil
}

// Delete soft-deletes an account and revokes its refresh tokens.
func (s *UserService) Delete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return response.NewInvalidInput("cannot delete your own account")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			return dbError(err, "user")
		}
		if err := tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", id).
			Update("revoked_at", time.Now()).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
}
