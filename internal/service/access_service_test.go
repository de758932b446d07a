package service

import (
	"context"
	"errors"
	"testing"

	"bloghub/internal/models"
	"bloghub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessService_ApproveCreatesOneUnreadNotice(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "applicant", models.AccessStatusPending)

	approved, err := env.access.Approve(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessStatusApproved, approved.AccessStatus)

	page, err := env.notifications.ListForUser(ctx, u.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Unread)
	assert.False(t, page.Items[0].IsRead)
	assert.Equal(t, approvedTitle, page.Items[0].Notification.Title)
	assert.True(t, page.Items[0].Notification.IsImportant)

	calls := env.publisher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []uint{u.ID}, calls[0].recipients)

	can, err := env.access.CanCreateContent(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, can)
}

func TestAccessService_RequestAccessIsIdempotent(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "legacy", models.AccessStatusNone)

	first, err := env.access.RequestAccess(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessStatusPending, first.Status)
	assert.True(t, first.Changed)

	second, err := env.access.RequestAccess(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessStatusPending, second.Status)
	assert.False(t, second.Changed)
	assert.NotEqual(t, first.Message, second.Message)

	_, err = env.access.Approve(ctx, u.ID)
	require.NoError(t, err)
	third, err := env.access.RequestAccess(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessStatusApproved, third.Status)
	assert.False(t, third.Changed)
}

func TestAccessService_RejectThenApprove(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "maybe", models.AccessStatusPending)

	rejected, err := env.access.Reject(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessStatusRejected, rejected.AccessStatus)

	can, err := env.access.CanCreateContent(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, can)

	_, err = env.access.Approve(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{approvedTitle, rejectedTitle}, env.deliveries(t, u.ID))
}

func TestAccessService_ListPendingAndBackfill(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	testutil.CreateUser(t, env.db, "old1", models.AccessStatusNone)
	testutil.CreateUser(t, env.db, "old2", models.AccessStatusNone)
	testutil.CreateUser(t, env.db, "waiting", models.AccessStatusPending)
	testutil.CreateUser(t, env.db, "member", models.AccessStatusApproved)

	pending, err := env.access.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Total)

	n, err := env.access.BackfillPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = env.access.BackfillPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err = env.access.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending.Users, 3)
}

func TestAccessService_Stubbed(t *testing.T) {
	ctx := context.Background()

	t.Run("missing user", func(t *testing.T) {
		pub := &publisherStub{}
		svc := NewAccessService(&userRepoStub{}, pub)
		_, err := svc.Approve(ctx, 404)
		assertCode(t, err, models.CodeNotFound)
		assert.Empty(t, pub.Calls())
	})

	t.Run("publish failure does not fail the decision", func(t *testing.T) {
		pub := &publisherStub{err: errors.New("redis down")}
		repo := &userRepoStub{
			setAccessStatusFn: func(_ context.Context, id uint, status models.AccessStatus, notice *models.Notification) (*models.User, error) {
				assert.Equal(t, rejectedTitle, notice.Title)
				assert.Equal(t, rejectedMessage, notice.Message)
				return &models.User{ID: id, AccessStatus: status}, nil
			},
		}
		svc := NewAccessService(repo, pub)
		u, err := svc.Reject(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, models.AccessStatusRejected, u.AccessStatus)
		assert.Len(t, pub.Calls(), 1)
	})
}
