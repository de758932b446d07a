package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bloghub/internal/config"
	"bloghub/internal/models"
	"bloghub/internal/service"
	"bloghub/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
}

// newTestServer builds a full server on in-memory SQLite. rdb may be nil.
func newTestServer(t *testing.T, flags string, rdb *redis.Client) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Env:                "test",
		AllowedOrigins:     "http://localhost:5173",
		SessionSecret:      "test-session-secret",
		SessionIdleTimeout: time.Hour,
		SessionMaxAge:      24 * time.Hour,
		PasswordResetTTL:   time.Hour,
		PublicBaseURL:      "http://localhost:8080",
		UploadDir:          t.TempDir(),
		MaxUploadSizeMB:    5,
		FeatureFlags:       flags,
	}
	db := testutil.NewSQLiteDB(t)
	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	return &testEnv{srv: srv, app: srv.NewApp(), db: db}
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) request(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	return doRequest(t, e.app, method, path, body, token)
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func decodeError(t *testing.T, resp *http.Response) models.ErrorResponse {
	t.Helper()
	return decodeJSON[models.ErrorResponse](t, resp)
}

// login signs in a fixture user created with testutil.CreateUser.
func (e *testEnv) login(t *testing.T, u *models.User) string {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": u.Email, "password": "Password1"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeJSON[AuthResponse](t, resp).Token
}

func (e *testEnv) promote(t *testing.T, u *models.User, role models.Role) {
	t.Helper()
	require.NoError(t, e.db.Model(u).Update("role", role).Error)
}

func TestAPI_RegisterLoginFlow(t *testing.T) {
	env := newTestServer(t, "", nil)

	resp := env.request(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name":             "  Dana ",
		"email":            "Dana@Example.com",
		"password":         "Password1",
		"confirm_password": "Password1",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON[UserResponse](t, resp).User
	assert.Equal(t, "Dana", created.Name)
	assert.Equal(t, "dana@example.com", created.Email)
	assert.Equal(t, models.AccessStatusPending, created.AccessStatus)

	resp = env.request(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "dana@example.com", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "DANA@example.com", "password": "Password1"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	auth := decodeJSON[AuthResponse](t, resp)
	assert.Equal(t, cookie.Value, auth.Token)
	assert.Equal(t, created.ID, auth.User.ID)

	resp = env.request(t, http.MethodGet, "/api/auth/me", nil, auth.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dana@example.com", decodeJSON[UserResponse](t, resp).User.Email)

	resp = env.request(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name":             "Other",
		"email":            "dana@example.com",
		"password":         "Password1",
		"confirm_password": "Password1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp).Fields, "email")
}

func TestAPI_LogoutRevokesSession(t *testing.T) {
	_, rdb := newMiniRedis(t)
	env := newTestServer(t, "", rdb)
	u := testutil.CreateUser(t, env.db, "erin", models.AccessStatusApproved)
	token := env.login(t, u)

	resp := env.request(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logged out", decodeJSON[MessageResponse](t, resp).Message)

	resp = env.request(t, http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_ProtectedRoutesNeedSession(t *testing.T) {
	env := newTestServer(t, "", nil)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPost, "/api/posts"},
		{http.MethodPost, "/api/posts/1/like"},
		{http.MethodGet, "/api/dashboard"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodGet, "/api/admin/access-requests"},
		{http.MethodPut, "/api/users/me"},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			resp := env.request(t, r.method, r.path, nil, "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}

	resp := env.request(t, http.MethodGet, "/api/auth/me", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_PostCreationNeedsApproval(t *testing.T) {
	env := newTestServer(t, "", nil)
	pending := testutil.CreateUser(t, env.db, "pat", models.AccessStatusPending)
	admin := testutil.CreateUser(t, env.db, "root", models.AccessStatusApproved)
	env.promote(t, admin, models.RoleAdmin)

	patToken := env.login(t, pending)
	adminToken := env.login(t, admin)
	post := map[string]string{
		"title":    "First trip",
		"content":  "Mountains **everywhere**",
		"tags":     "Travel, hiking",
		"category": "Travel",
	}

	resp := env.request(t, http.MethodPost, "/api/posts", post, patToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Members cannot approve themselves.
	resp = env.request(t, http.MethodPost, fmt.Sprintf("/api/admin/access-requests/%d/approve", pending.ID), nil, patToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/admin/access-requests", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodPost, fmt.Sprintf("/api/admin/access-requests/%d/approve", pending.ID), nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.AccessStatusApproved, decodeJSON[UserResponse](t, resp).User.AccessStatus)

	resp = env.request(t, http.MethodGet, "/api/notifications/unread-count", nil, patToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), decodeJSON[UnreadCountResponse](t, resp).Unread)

	resp = env.request(t, http.MethodPost, "/api/posts", post, patToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "First trip", created["title"])
	assert.Contains(t, created["content_html"], "<strong>everywhere</strong>")

	resp = env.request(t, http.MethodGet, "/api/posts", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	feed := decodeJSON[map[string]any](t, resp)
	assert.EqualValues(t, 1, feed["total"])
}

func TestAPI_LikeAndBookmark(t *testing.T) {
	env := newTestServer(t, "", nil)
	owner := testutil.CreateUser(t, env.db, "owner", models.AccessStatusApproved)
	fan := testutil.CreateUser(t, env.db, "fan", models.AccessStatusNone)
	post := testutil.CreatePost(t, env.db, owner.ID, "Knife skills", models.CategoryCooking)
	fanToken := env.login(t, fan)
	ownerToken := env.login(t, owner)

	likePath := fmt.Sprintf("/api/posts/%d/like", post.ID)
	resp := env.request(t, http.MethodPost, likePath, nil, fanToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	liked := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "on", liked["state"])
	assert.Equal(t, "like", liked["kind"])

	resp = env.request(t, http.MethodGet, "/api/notifications", nil, ownerToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	notes := decodeJSON[map[string]any](t, resp)
	assert.EqualValues(t, 1, notes["total"])

	resp = env.request(t, http.MethodPost, likePath, nil, fanToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "off", decodeJSON[map[string]any](t, resp)["state"])

	resp = env.request(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/bookmark", post.ID), nil, fanToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/bookmarks", nil, fanToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bookmarks := decodeJSON[PostsResponse](t, resp).Posts
	require.Len(t, bookmarks, 1)
	assert.Equal(t, post.ID, bookmarks[0].ID)

	resp = env.request(t, http.MethodPost, "/api/posts/9999/like", nil, fanToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Comments(t *testing.T) {
	env := newTestServer(t, "public_comments=on", nil)
	owner := testutil.CreateUser(t, env.db, "owner", models.AccessStatusApproved)
	post := testutil.CreatePost(t, env.db, owner.ID, "Night sky", models.CategoryWildlife)
	path := fmt.Sprintf("/api/posts/%d/comments", post.ID)

	resp := env.request(t, http.MethodPost, path, map[string]string{"content": "Lovely"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(t, http.MethodPost, path, map[string]string{"author": "visitor", "content": "Lovely"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	comment := decodeJSON[CommentResponse](t, resp).Comment
	assert.Nil(t, comment.UserID)

	ownerToken := env.login(t, owner)
	resp = env.request(t, http.MethodPost, path, map[string]any{
		"content":           "Thanks!",
		"parent_comment_id": comment.ID,
	}, ownerToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reply := decodeJSON[CommentResponse](t, resp).Comment
	require.NotNil(t, reply.UserID)
	assert.Equal(t, owner.ID, *reply.UserID)

	resp = env.request(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeJSON[CommentsResponse](t, resp).Comments, 1)

	resp = env.request(t, http.MethodGet, fmt.Sprintf("/api/comments/%d/replies", comment.ID), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeJSON[CommentsResponse](t, resp).Comments, 1)

	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/comments/%d", comment.ID), nil, ownerToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_AdminNotifications(t *testing.T) {
	env := newTestServer(t, "", nil)
	admin := testutil.CreateUser(t, env.db, "root", models.AccessStatusApproved)
	mod := testutil.CreateUser(t, env.db, "mod", models.AccessStatusApproved)
	member := testutil.CreateUser(t, env.db, "member", models.AccessStatusNone)
	env.promote(t, admin, models.RoleAdmin)
	env.promote(t, mod, models.RoleModerator)
	adminToken := env.login(t, admin)
	modToken := env.login(t, mod)
	memberToken := env.login(t, member)

	resp := env.request(t, http.MethodPost, "/api/admin/notifications",
		map[string]any{"title": "Maintenance", "message": "Down at noon", "is_important": true}, memberToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/admin/notifications",
		map[string]any{"title": "", "message": "Down at noon"}, adminToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/admin/notifications",
		map[string]any{"title": "Maintenance", "message": "Down at noon", "is_important": true}, adminToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	result := decodeJSON[map[string]any](t, resp)
	note := result["notification"].(map[string]any)
	id := uint(note["id"].(float64))
	assert.EqualValues(t, 3, result["recipients"])

	resp = env.request(t, http.MethodGet, "/api/notifications/unread-count", nil, memberToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), decodeJSON[UnreadCountResponse](t, resp).Unread)

	resp = env.request(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", id), nil, memberToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeJSON[MarkReadResponse](t, resp).Changed)
	resp = env.request(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", id), nil, memberToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeJSON[MarkReadResponse](t, resp).Changed)

	deletePath := fmt.Sprintf("/api/admin/notifications/%d", id)
	resp = env.request(t, http.MethodDelete, deletePath, nil, modToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Only admins can delete important notifications", decodeError(t, resp).Error)

	resp = env.request(t, http.MethodDelete, deletePath, nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodDelete, deletePath, nil, adminToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_AdminUsers(t *testing.T) {
	env := newTestServer(t, "", nil)
	admin := testutil.CreateUser(t, env.db, "root", models.AccessStatusApproved)
	mod := testutil.CreateUser(t, env.db, "mod", models.AccessStatusApproved)
	target := testutil.CreateUser(t, env.db, "target", models.AccessStatusApproved)
	env.promote(t, admin, models.RoleAdmin)
	env.promote(t, mod, models.RoleModerator)
	testutil.CreatePost(t, env.db, target.ID, "Old news", models.CategoryNews)
	adminToken := env.login(t, admin)
	modToken := env.login(t, mod)

	rolePath := fmt.Sprintf("/api/admin/users/%d/role", target.ID)
	resp := env.request(t, http.MethodPut, rolePath, SetRoleRequest{Role: "moderator"}, modToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.request(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", admin.ID), SetRoleRequest{Role: "member"}, adminToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(t, http.MethodPut, rolePath, SetRoleRequest{Role: "moderator"}, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.RoleModerator, decodeJSON[UserResponse](t, resp).User.Role)

	resp = env.request(t, http.MethodGet, "/api/admin/staff", nil, modToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeJSON[UsersResponse](t, resp).Users, 3)

	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", mod.ID), nil, modToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", target.ID), nil, modToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deleted := decodeJSON[DeleteUserResponse](t, resp)
	assert.Equal(t, target.ID, deleted.UserID)
	require.NotNil(t, deleted.Summary)
	assert.EqualValues(t, 1, deleted.Summary.Posts)
	assert.EqualValues(t, 1, deleted.Summary.Users)

	resp = env.request(t, http.MethodGet, fmt.Sprintf("/api/users/%d", target.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_AdminDeletePostTwice(t *testing.T) {
	env := newTestServer(t, "", nil)
	admin := testutil.CreateUser(t, env.db, "root", models.AccessStatusApproved)
	author := testutil.CreateUser(t, env.db, "author", models.AccessStatusApproved)
	env.promote(t, admin, models.RoleAdmin)
	post := testutil.CreatePost(t, env.db, author.ID, "Short lived", models.CategoryTravel)
	require.NoError(t, env.db.Create(&models.Like{UserID: admin.ID, PostID: post.ID, LikedAt: time.Now()}).Error)
	token := env.login(t, admin)
	path := fmt.Sprintf("/api/admin/posts/%d", post.ID)

	resp := env.request(t, http.MethodDelete, path, nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decodeJSON[service.DeletePostResult](t, resp)
	require.NotNil(t, first.Summary)
	assert.EqualValues(t, 1, first.Summary.Posts)
	assert.EqualValues(t, 1, first.Summary.Likes)

	resp = env.request(t, http.MethodDelete, path, nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decodeJSON[service.DeletePostResult](t, resp)
	assert.Equal(t, post.ID, second.PostID)
	require.NotNil(t, second.Summary)
	assert.Equal(t, models.CascadeSummary{}, *second.Summary)
}

func TestAPI_FeatureFlags(t *testing.T) {
	env := newTestServer(t, "video_uploads=off", nil)
	admin := testutil.CreateUser(t, env.db, "root", models.AccessStatusApproved)
	env.promote(t, admin, models.RoleAdmin)

	resp := env.request(t, http.MethodGet, "/api/admin/feature-flags", nil, env.login(t, admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	flags := decodeJSON[FeatureFlagsResponse](t, resp)
	assert.Equal(t, "off", flags.Raw["video_uploads"])
	assert.False(t, flags.Enabled["video_uploads"])
	assert.True(t, flags.Enabled["realtime_notifications"])
	assert.False(t, flags.Enabled["public_comments"])
}
