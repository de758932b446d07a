package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bloghub/internal/featureflags"
	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/repository"
	"bloghub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// publisherStub records realtime pushes.
type publisherStub struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

type publishCall struct {
	recipients []uint
	title      string
}

func (p *publisherStub) PublishNotification(_ context.Context, recipients []uint, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{recipients: append([]uint(nil), recipients...), title: n.Title})
	return p.err
}

func (p *publisherStub) Calls() []publishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishCall(nil), p.calls...)
}

// sessionStub issues predictable tokens.
type sessionStub struct {
	issued  []uint
	revoked []string
}

func (s *sessionStub) Issue(_ context.Context, userID uint) (*middleware.Session, error) {
	s.issued = append(s.issued, userID)
	return &middleware.Session{
		Token:     fmt.Sprintf("token-%d", userID),
		ID:        fmt.Sprintf("sid-%d", userID),
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (s *sessionStub) Revoke(_ context.Context, raw string) error {
	s.revoked = append(s.revoked, raw)
	return nil
}

// mailerStub captures outgoing mail.
type mailerStub struct {
	sent []sentMail
	err  error
}

type sentMail struct {
	to, subject, html string
}

func (m *mailerStub) Send(_ context.Context, to, subject, html string) error {
	m.sent = append(m.sent, sentMail{to: to, subject: subject, html: html})
	return m.err
}

// userRepoStub is a stub for repository.UserRepository. Unset functions
// return zero values.
type userRepoStub struct {
	getByIDFn            func(context.Context, uint) (*models.User, error)
	getWithCredentialsFn func(context.Context, uint) (*models.User, error)
	getByEmailFn         func(context.Context, string) (*models.User, error)
	createFn             func(context.Context, *models.User) error
	updateFn             func(context.Context, *models.User) error
	setAccessStatusFn    func(context.Context, uint, models.AccessStatus, *models.Notification) (*models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if s.getByIDFn == nil {
		return nil, models.NewNotFoundError("User", id)
	}
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetWithCredentials(ctx context.Context, id uint) (*models.User, error) {
	if s.getWithCredentialsFn == nil {
		return s.GetByID(ctx, id)
	}
	return s.getWithCredentialsFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.getByEmailFn == nil {
		return nil, nil
	}
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByResetToken(context.Context, string) (*models.User, error) {
	return nil, nil
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) List(context.Context, repository.UserFilter) ([]models.User, int64, error) {
	return nil, 0, nil
}
func (s *userRepoStub) ListStaff(context.Context) ([]models.User, error) {
	return nil, nil
}
func (s *userRepoStub) RequestAccess(context.Context, uint) (*models.User, bool, error) {
	return nil, false, nil
}
func (s *userRepoStub) SetAccessStatus(ctx context.Context, id uint, status models.AccessStatus, notice *models.Notification) (*models.User, error) {
	if s.setAccessStatusFn == nil {
		return nil, models.NewNotFoundError("User", id)
	}
	return s.setAccessStatusFn(ctx, id, status, notice)
}
func (s *userRepoStub) BackfillPending(context.Context) (int64, error) {
	return 0, nil
}
func (s *userRepoStub) SetRole(context.Context, uint, models.Role) error {
	return nil
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	getByIDFn func(context.Context, uint) (*models.BlogPost, error)
	createFn  func(context.Context, *models.BlogPost) error
	updateFn  func(context.Context, *models.BlogPost) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.BlogPost) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.BlogPost, error) {
	if s.getByIDFn == nil {
		return nil, models.NewNotFoundError("Post", id)
	}
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.BlogPost) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) IncrementViews(context.Context, uint) error { return nil }
func (s *postRepoStub) Feed(context.Context, repository.FeedQuery) ([]models.BlogPost, int64, error) {
	return nil, 0, nil
}
func (s *postRepoStub) TopByLikes(context.Context, int) ([]models.BlogPost, error) { return nil, nil }
func (s *postRepoStub) TopPerCategorySince(context.Context, time.Time) ([]models.BlogPost, error) {
	return nil, nil
}
func (s *postRepoStub) ListByUser(context.Context, uint, int) ([]models.BlogPost, error) {
	return nil, nil
}
func (s *postRepoStub) StatsForUser(context.Context, uint) (*repository.PostStats, error) {
	return &repository.PostStats{}, nil
}
func (s *postRepoStub) CategoryCounts(context.Context) ([]repository.CategoryCount, error) {
	return nil, nil
}
func (s *postRepoStub) SetAdminChoice(context.Context, uint, bool) error { return nil }

// senderStub records fan-out requests.
type senderStub struct {
	sent []sentNotification
	err  error
}

type sentNotification struct {
	source   string
	n        *models.Notification
	audience models.Audience
}

func (s *senderStub) Send(_ context.Context, source string, n *models.Notification, audience models.Audience) ([]uint, error) {
	s.sent = append(s.sent, sentNotification{source: source, n: n, audience: audience})
	if s.err != nil {
		return nil, s.err
	}
	return []uint{audience.UserID}, nil
}

// testEnv wires every service against one in-memory database.
type testEnv struct {
	db        *gorm.DB
	blobs     *testutil.MemoryBlobStore
	publisher *publisherStub

	users      repository.UserRepository
	postRepo   repository.PostRepository
	commentRep repository.CommentRepository

	notifications *NotificationService
	access        *AccessService
	engagement    *EngagementService
	moderation    *ModerationService
	media         *MediaService
	posts         *PostService
	comments      *CommentService
	userSvc       *UserService
}

func newTestEnv(t *testing.T, flags string) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	env := &testEnv{
		db:         db,
		blobs:      testutil.NewMemoryBlobStore(),
		publisher:  &publisherStub{},
		users:      repository.NewUserRepository(db),
		postRepo:   repository.NewPostRepository(db),
		commentRep: repository.NewCommentRepository(db),
	}
	engagementRepo := repository.NewEngagementRepository(db)
	manager := featureflags.NewManager(flags)

	env.notifications = NewNotificationService(repository.NewNotificationRepository(db), env.publisher)
	env.access = NewAccessService(env.users, env.publisher)
	env.engagement = NewEngagementService(engagementRepo, env.postRepo, env.users, env.notifications)
	env.moderation = NewModerationService(repository.NewModerationRepository(db), env.blobs)
	env.media = NewMediaService(env.blobs, 5)
	env.posts = NewPostService(env.postRepo, env.commentRep, engagementRepo, env.users, env.media, env.moderation, manager)
	env.comments = NewCommentService(env.commentRep, env.postRepo, env.users, env.notifications, manager)
	env.userSvc = NewUserService(env.users, env.postRepo, env.media)
	return env
}

// deliveries returns the titles of notifications delivered to userID, newest first.
func (e *testEnv) deliveries(t *testing.T, userID uint) []string {
	t.Helper()
	var rows []models.UserNotification
	require.NoError(t, e.db.Preload("Notification").Where("user_id = ?", userID).Order("id DESC").Find(&rows).Error)
	titles := make([]string, 0, len(rows))
	for _, r := range rows {
		titles = append(titles, r.Notification.Title)
	}
	return titles
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
