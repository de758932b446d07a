package service

import (
	"context"
	"fmt"
	"log/slog"

	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/observability"
	"bloghub/internal/repository"
)

// NotificationSender fans a notification out to an audience.
type NotificationSender interface {
	Send(ctx context.Context, source string, n *models.Notification, audience models.Audience) ([]uint, error)
}

type EngagementService struct {
	engagement repository.EngagementRepository
	posts      repository.PostRepository
	users      repository.UserRepository
	notifier   NotificationSender
}

// ToggleResult is the relation state after a toggle.
type ToggleResult struct {
	Kind   models.EngagementKind  `json:"kind"`
	State  models.EngagementState `json:"state"`
	PostID uint                   `json:"post_id"`
}

func NewEngagementService(
	engagement repository.EngagementRepository,
	posts repository.PostRepository,
	users repository.UserRepository,
	notifier NotificationSender,
) *EngagementService {
	return &EngagementService{engagement: engagement, posts: posts, users: users, notifier: notifier}
}

// Toggle flips a like or bookmark. A like turning on notifies the post owner
// unless they liked their own post.
func (s *EngagementService) Toggle(ctx context.Context, kind models.EngagementKind, userID, postID uint) (*ToggleResult, error) {
	state, err := s.engagement.Toggle(ctx, kind, userID, postID)
	if err != nil {
		return nil, err
	}
	observability.EngagementToggles.WithLabelValues(string(kind), string(state)).Inc()

	if kind == models.EngagementLike && state == models.EngagementOn {
		s.notifyLike(ctx, userID, postID)
	}
	return &ToggleResult{Kind: kind, State: state, PostID: postID}, nil
}

func (s *EngagementService) notifyLike(ctx context.Context, likerID, postID uint) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Like notification skipped", slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
		return
	}
	if post.UserID == likerID {
		return
	}

	name := "Someone"
	if liker, err := s.users.GetByID(ctx, likerID); err == nil && liker.Name != "" {
		name = liker.Name
	}
	n := &models.Notification{
		Title:   "New Like",
		Message: fmt.Sprintf("%s liked your post: \"%s\"", name, post.Title),
	}
	if _, err := s.notifier.Send(ctx, SourceLike, n, models.Personal(post.UserID)); err != nil {
		middleware.Logger.WarnContext(ctx, "Like notification failed", slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
	}
}

func (s *EngagementService) ViewerState(ctx context.Context, userID, postID uint) (repository.ViewerState, error) {
	return s.engagement.ViewerState(ctx, userID, postID)
}

// ListBookmarks returns the user's bookmarked posts, most recent first.
func (s *EngagementService) ListBookmarks(ctx context.Context, userID uint) ([]models.BlogPost, error) {
	posts, err := s.engagement.ListBookmarkedPosts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.BlogPost{}
	}
	return posts, nil
}
