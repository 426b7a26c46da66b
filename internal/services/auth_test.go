package services

import (
	"context"
	"testing"
	"time"

	"github.com/charmverse/governance/internal/config"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/internal/utils"
	"github.com/charmverse/governance/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	utils.SetJWTSecret("test-secret")
	db := newTestDB(t)
	return NewAuthService(db, &config.JWTConfig{ExpireHour: 2, RefreshExpireHour: 48}, NewSystemConfigService(db))
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &RegisterRequest{Username: " alice ", Password: "s3cret!", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, models.UserRoleUser, user.Role)
	assert.NotEqual(t, "s3cret!", user.Password)

	_, err = svc.Register(ctx, &RegisterRequest{Username: "alice", Password: "another"})
	assert.ErrorIs(t, err, response.ErrDuplicateData)

	_, err = svc.Login(ctx, &LoginRequest{Username: "alice", Password: "wrong"}, "127.0.0.1", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid username or password")

	result, err := svc.Login(ctx, &LoginRequest{Username: "alice", Password: "s3cret!"}, "127.0.0.1", "test")
	require.NoError(t, err)
	assert.NotEmpty(t, result.RefreshToken)
	assert.True(t, result.RefreshExpireAt.After(result.AccessExpireAt))

	claims, err := utils.ParseToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	stored, err := svc.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)
}

func TestAuth_RefreshRotation(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, &RegisterRequest{Username: "bob", Password: "password"})
	require.NoError(t, err)
	login, err := svc.Login(ctx, &LoginRequest{Username: "bob", Password: "password"}, "", "")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, login.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	_, err = svc.Refresh(ctx, login.RefreshToken, "", "")
	assert.Error(t, err, "a rotated token cannot be reused")
	_, err = svc.Refresh(ctx, "garbage", "", "")
	assert.Error(t, err)
	_, err = svc.Refresh(ctx, "", "", "")
	assert.Error(t, err)

	require.NoError(t, svc.RevokeRefreshToken(ctx, rotated.RefreshToken))
	_, err = svc.Refresh(ctx, rotated.RefreshToken, "", "")
	assert.Error(t, err)
}

func TestAuth_DisabledUserCannotLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, &RegisterRequest{Username: "carol", Password: "password"})
	require.NoError(t, err)
	require.NoError(t, svc.db.Model(user).Update("is_active", false).Error)

	_, err = svc.Login(ctx, &LoginRequest{Username: "carol", Password: "password"}, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestAuth_CreateAdminAndChangePassword(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	admin := config.AdminConfig{Username: "root", Password: "initial"}

	require.NoError(t, svc.CreateAdminIfNotExists(ctx, admin))
	require.NoError(t, svc.CreateAdminIfNotExists(ctx, admin))
	var count int64
	require.NoError(t, svc.db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	login, err := svc.Login(ctx, &LoginRequest{Username: "root", Password: "initial"}, "", "")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, login.User.ID, &ChangePasswordRequest{OldPassword: "nope", NewPassword: "changed"})
	assert.ErrorIs(t, err, response.ErrInvalidInput)
	require.NoError(t, svc.ChangePassword(ctx, login.User.ID, &ChangePasswordRequest{OldPassword: "initial", NewPassword: "changed"}))

	_, err = svc.Login(ctx, &LoginRequest{Username: "root", Password: "changed"}, "", "")
	assert.NoError(t, err)
}

func TestAuth_SessionConfig(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	cfg := svc.GetSessionConfig(ctx)
	assert.Equal(t, 2, cfg.AccessTokenExpireHours)
	assert.Equal(t, 48, cfg.RefreshTokenExpireHours)

	err := svc.UpdateSessionConfig(ctx, &SessionConfig{AccessTokenExpireHours: 10, RefreshTokenExpireHours: 5})
	assert.ErrorIs(t, err, response.ErrInvalidInput)

	require.NoError(t, svc.UpdateSessionConfig(ctx, &SessionConfig{AccessTokenExpireHours: 4, RefreshTokenExpireHours: 96}))
	cfg = svc.GetSessionConfig(ctx)
	assert.Equal(t, 4, cfg.AccessTokenExpireHours)
	assert.Equal(t, 96, cfg.RefreshTokenExpireHours)

	_, err = svc.Register(ctx, &RegisterRequest{Username: "carol", Password: "s3cret!"})
	require.NoError(t, err)
	result, err := svc.Login(ctx, &LoginRequest{Username: "carol", Password: "s3cret!"}, "127.0.0.1", "test")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(96*time.Hour), result.RefreshExpireAt, time.Minute)
}
