package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmverse/governance/internal/config"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/internal/utils"
	"github.com/charmverse/governance/pkg/logger"
	"github.com/charmverse/governance/pkg/response"
	"gorm.io/gorm"
)

const (
	configAccessTokenHours  = "auth_access_token_expire_hours"
	configRefreshTokenHours = "auth_refresh_token_expire_hours"
)

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
	configSvc *SystemConfigService
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, configSvc *SystemConfigService) *AuthService {
	return &AuthService{
		db:        db,
		jwtConfig: jwtCfg,
		configSvc: configSvc,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"omitempty,email"`
	Nickname string `json:"nickname"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	AccessToken     string       `json:"token"`
	AccessExpireAt  time.Time    `json:"expire_at"`
	RefreshToken    string       `json:"refresh_token"`
	RefreshExpireAt time.Time    `json:"refresh_expire_at"`
	User            *models.User `json:"user"`
}

type RefreshResult struct {
	AccessToken     string    `json:"token"`
	AccessExpireAt  time.Time `json:"expire_at"`
	RefreshToken    string    `json:"refresh_token"`
	RefreshExpireAt time.Time `json:"refresh_expire_at"`
}

// Register creates a regular user account
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, response.NewDuplicateData("username %q is taken", username)
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username: username,
		Password: hashed,
		Email:    req.Email,
		Nickname: req.Nickname,
		Role:     models.UserRoleUser,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, dbError(err, "user")
	}
	return user, nil
}

// Login authenticates a user and issues an access and a refresh token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	user, err := s.localAuth(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	accessHours := s.getAccessTokenExpireHours(ctx)
	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, accessHours)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshRecord, err := s.newRefreshToken(ctx, user.ID, clientIP, userAgent)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(refreshRecord).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.db.WithContext(ctx).Model(user).Update("last_login", now).Error; err != nil {
		logger.Warnf("[Auth] Failed to update last login of %s: %v", user.ID, err)
	}

	return &LoginResult{
		AccessToken:     token,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshRecord.ExpiresAt,
		User:            user,
	}, nil
}

// Refresh rotates a refresh token: the presented one is revoked and linked to its replacement
func (s *AuthService) Refresh(ctx context.Context, refreshToken, clientIP, userAgent string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, response.NewUnauthorized("refresh token required")
	}

	var stored models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("invalid refresh token")
		}
		return nil, err
	}
	if stored.RevokedAt != nil {
		return nil, response.NewUnauthorized("refresh token revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, response.NewUnauthorized("refresh token expired")
	}

	user, err := s.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}

	accessHours := s.getAccessTokenExpireHours(ctx)
	accessToken, err := utils.GenerateToken(user.ID, user.Username, user.Role, accessHours)
	if err != nil {
		return nil, err
	}
	newToken, newRecord, err := s.newRefreshToken(ctx, user.ID, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(newRecord).Error; err != nil {
			return err
		}
		result := tx.Model(&stored).
			Where("revoked_at IS NULL").
			Updates(map[string]interface{}{
				"revoked_at":           now,
				"replaced_by_token_id": newRecord.ID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return response.NewUnauthorized("refresh token revoked")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &RefreshResult{
		AccessToken:     accessToken,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    newToken,
		RefreshExpireAt: newRecord.ExpiresAt,
	}, nil
}

func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
		Update("revoked_at", time.Now()).Error
}

func (s *AuthService) newRefreshToken(ctx context.Context, userID, clientIP, userAgent string) (string, *models.RefreshToken, error) {
	token, hash, err := generateRefreshToken()
	if err != nil {
		return "", nil, err
	}
	hours := s.getRefreshTokenExpireHours(ctx)
	return token, &models.RefreshToken{
		UserID:      userID,
		TokenHash:   hash,
		ExpiresAt:   time.Now().Add(time.Duration(hours) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}, nil
}

func (s *AuthService) getAccessTokenExpireHours(ctx context.Context) int {
	defaultHours := s.jwtConfig.ExpireHour
	hours := s.configSvc.GetInt(ctx, configAccessTokenHours, defaultHours)
	if hours <= 0 {
		return defaultHours
	}
	return hours
}

func (s *AuthService) getRefreshTokenExpireHours(ctx context.Context) int {
	defaultHours := s.jwtConfig.RefreshExpireHour
	if defaultHours <= 0 {
		defaultHours = 720
	}
	hours := s.configSvc.GetInt(ctx, configRefreshTokenHours, defaultHours)
	if hours <= 0 {
		return defaultHours
	}
	return hours
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) localAuth(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("invalid username or password")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, response.NewUnauthorized("invalid username or password")
	}
	return &user, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "user")
	}
	return &user, nil
}

// CreateAdminIfNotExists creates the configured system admin on first boot
func (s *AuthService) CreateAdminIfNotExists(ctx context.Context, admin config.AdminConfig) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword(admin.Password)
	if err != nil {
		return err
	}
	user := models.User{
		Username: admin.Username,
		Password: hashed,
		Email:    admin.Email,
		Nickname: "Administrator",
		Role:     models.UserRoleAdmin,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return err
	}
	logger.Infof("[Auth] Created default admin %q", admin.Username)
	return nil
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return response.NewInvalidInput("incorrect old password")
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(user).Update("password", hashed).Error
}


// SessionConfig holds the token lifetimes currently in effect
type SessionConfig struct {
	AccessTokenExpireHours  int `json:"access_token_expire_hours" binding:"required,min=1,max=720"`
	RefreshTokenExpireHours int `json:"refresh_token_expire_hours" binding:"required,min=1,max=8760"`
}

func (s *AuthService) GetSessionConfig(ctx context.Context) *SessionConfig {
	return &SessionConfig{
		AccessTokenExpireHours:  s.getAccessTokenExpireHours(ctx),
		RefreshTokenExpireHours: s.getRefreshTokenExpireHours(ctx),
	}
}

// UpdateSessionConfig stores new token lifetimes; issued tokens keep theirs
func (s *AuthService) UpdateSessionConfig(ctx context.Context, cfg *SessionConfig) error {
	if cfg.AccessTokenExpireHours <= 0 || cfg.RefreshTokenExpireHours <= 0 {
		return response.NewInvalidInput("token lifetimes must be positive")
	}
	if cfg.RefreshTokenExpireHours < cfg.AccessTokenExpireHours {
		return response.NewInvalidInput("refresh tokens must outlive access tokens")
	}
	if err := s.configSvc.Set(ctx, configAccessTokenHours, strconv.Itoa(cfg.AccessTokenExpireHours)); err != nil {
		return err
	}
	return s.configSvc.Set(ctx, configRefreshTokenHours, strconv.Itoa(cfg.RefreshTokenExpireHours))
}
