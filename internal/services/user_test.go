package services

import (
	"context"
	"testing"
	"time"

	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_List(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "alfred"} {
		createUser(t, db, name)
	}

	resp, err := svc.List(ctx, &UserListRequest{Username: "al"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PageSize)

	resp, err = svc.List(ctx, &UserListRequest{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Total)
	assert.Len(t, resp.Items, 1)
}

func TestUserService_Update(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	admin := createUser(t, db, "admin")
	bob := createUser(t, db, "bob")

	role := models.UserRoleAdmin
	_, err := svc.Update(ctx, admin.ID, admin.ID, &UpdateUserRequest{Role: &role})
	assert.ErrorIs(t, err, response.ErrInvalidInput)

	bad := "owner"
	_, err = svc.Update(ctx, admin.ID, bob.ID, &UpdateUserRequest{Role: &bad})
	assert.ErrorIs(t, err, response.ErrInvalidInput)

	_, err = svc.Update(ctx, admin.ID, bob.ID, &UpdateUserRequest{})
	assert.ErrorIs(t, err, response.ErrInvalidInput)

	_, err = svc.Update(ctx, admin.ID, "missing", &UpdateUserRequest{Role: &role})
	assert.ErrorIs(t, err, response.ErrNotFound)

	inactive := false
	updated, err := svc.Update(ctx, admin.ID, bob.ID, &UpdateUserRequest{Role: &role, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleAdmin, updated.Role)
	assert.False(t, updated.IsActive)
}

func TestUserService_Delete(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	admin := createUser(t, db, "admin")
	bob := createUser(t, db, "bob")
	require.NoError(t, db.Create(&models.RefreshToken{UserID: bob.ID, TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)}).Error)

	assert.ErrorIs(t, svc.Delete(ctx, admin.ID, admin.ID), response.ErrInvalidInput)
	assert.ErrorIs(t, svc.Delete(ctx, admin.ID, "missing"), response.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, admin.ID, bob.ID))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", bob.ID).Count(&count).Error)
	assert.Zero(t, count)

	var token models.RefreshToken
	require.NoError(t, db.First(&token, "user_id = ?", bob.ID).Error)
	assert.NotNil(t, token.RevokedAt)
}
