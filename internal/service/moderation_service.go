package service

import (
	"context"
	"log/slog"

	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/observability"
	"bloghub/internal/repository"
	"bloghub/internal/storage"
)

// ModerationService runs cascade deletes and cleans up media once the rows
// are gone.
type ModerationService struct {
	repo  repository.ModerationRepository
	blobs storage.BlobStore
}

func NewModerationService(repo repository.ModerationRepository, blobs storage.BlobStore) *ModerationService {
	return &ModerationService{repo: repo, blobs: blobs}
}

// DeletePost removes a post with its comments, likes, bookmarks and media.
// A missing post yields an empty summary.
func (s *ModerationService) DeletePost(ctx context.Context, postID uint) (*models.CascadeSummary, error) {
	sum, err := s.repo.DeletePost(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.finish(ctx, "post", postID, sum)
	return sum, nil
}

// DeleteUser removes a user, everything they own and their deliveries.
func (s *ModerationService) DeleteUser(ctx context.Context, userID uint) (*models.CascadeSummary, error) {
	sum, err := s.repo.DeleteUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.finish(ctx, "user", userID, sum)
	return sum, nil
}

func (s *ModerationService) finish(ctx context.Context, entity string, id uint, sum *models.CascadeSummary) {
	if sum.Empty() {
		return
	}
	for label, n := range map[string]int64{
		"user":         sum.Users,
		"post":         sum.Posts,
		"comment":      sum.Comments,
		"like":         sum.Likes,
		"bookmark":     sum.Bookmarks,
		"notification": sum.Deliveries,
	} {
		if n > 0 {
			observability.CascadeDeletes.WithLabelValues(label).Add(float64(n))
		}
	}

	removeBlobs(ctx, s.blobs, sum.MediaPaths...)

	middleware.Logger.InfoContext(ctx, "Cascade delete completed",
		slog.String("entity", entity),
		slog.Uint64("id", uint64(id)),
		slog.Int64("posts", sum.Posts),
		slog.Int64("comments", sum.Comments),
		slog.Int64("comments_detached", sum.CommentsDetached),
		slog.Int64("likes", sum.Likes),
		slog.Int64("bookmarks", sum.Bookmarks),
		slog.Int64("deliveries", sum.Deliveries),
		slog.Int("media", len(sum.MediaPaths)))
}

// removeBlobs deletes media after the owning rows are committed. Failures
// leave an orphaned file and are only logged.
func removeBlobs(ctx context.Context, blobs storage.BlobStore, paths ...string) {
	if blobs == nil {
		return
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := blobs.Delete(ctx, p); err != nil {
			middleware.Logger.WarnContext(ctx, "Blob delete failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
}
