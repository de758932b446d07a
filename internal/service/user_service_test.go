package service

import (
	"context"
	"testing"

	"bloghub/internal/models"
	"bloghub/internal/repository"
	"bloghub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserService_UpdateProfileKeepsPassword(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "old", models.AccessStatusApproved)
	testutil.CreateUser(t, env.db, "taken", models.AccessStatusApproved)

	name := " New Name "
	email := "New@Example.com"
	updated, err := env.userSvc.UpdateProfile(ctx, UpdateProfileInput{UserID: u.ID, Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "new@example.com", updated.Email)

	stored, err := env.users.GetWithCredentials(ctx, u.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("Password1")))

	taken := "taken@example.com"
	_, err = env.userSvc.UpdateProfile(ctx, UpdateProfileInput{UserID: u.ID, Email: &taken})
	assertCode(t, err, models.CodeConflict)

	blank := "  "
	_, err = env.userSvc.UpdateProfile(ctx, UpdateProfileInput{UserID: u.ID, Name: &blank})
	assertCode(t, err, models.CodeValidation)

	_, err = env.userSvc.UpdateProfile(ctx, UpdateProfileInput{UserID: 999, Name: &name})
	assertCode(t, err, models.CodeNotFound)
}

func TestUserService_UploadProfileImage(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "pictured", models.AccessStatusApproved)

	first, err := env.userSvc.UploadProfileImage(ctx, u.ID, testutil.TinyPNG(t, 40, 40))
	require.NoError(t, err)
	firstPath := first.ProfileImagePath
	assert.NotEmpty(t, firstPath)

	second, err := env.userSvc.UploadProfileImage(ctx, u.ID, testutil.TinyPNG(t, 20, 20))
	require.NoError(t, err)
	assert.NotEqual(t, firstPath, second.ProfileImagePath)
	assert.Equal(t, 1, env.blobs.Len())
	assert.Equal(t, []string{firstPath}, env.blobs.Deleted)

	stored, err := env.users.GetWithCredentials(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ProfileImagePath, stored.ProfileImagePath)
	assert.NotEmpty(t, stored.Password)

	_, err = env.userSvc.UploadProfileImage(ctx, u.ID, []byte("not an image"))
	assertCode(t, err, models.CodeValidation)
}

func TestUserService_ProfileAndAdmin(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice", models.AccessStatusApproved)
	testutil.CreateUser(t, env.db, "bob", models.AccessStatusPending)
	testutil.CreatePost(t, env.db, alice.ID, "Alice writes", models.CategoryTechnology)

	profile, err := env.userSvc.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.Stats.Posts)
	require.Len(t, profile.Posts, 1)

	_, err = env.userSvc.GetProfile(ctx, 999)
	assertCode(t, err, models.CodeNotFound)

	page, err := env.userSvc.ListUsers(ctx, "ALI", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, repository.DefaultPageSize, page.PageSize)
	require.Len(t, page.Users, 1)
	assert.Equal(t, alice.ID, page.Users[0].ID)

	all, err := env.userSvc.ListUsers(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)

	_, err = env.userSvc.SetRole(ctx, alice.ID, "overlord")
	assertCode(t, err, models.CodeValidation)

	promoted, err := env.userSvc.SetRole(ctx, alice.ID, "Moderator")
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, promoted.Role)

	staff, err := env.userSvc.ListStaff(ctx)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, alice.ID, staff[0].ID)
}
