package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bloghub/internal/featureflags"
	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/repository"
	"bloghub/internal/validation"
)

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	users    repository.UserRepository
	notifier NotificationSender
	flags    *featureflags.Manager
}

// CreateCommentInput is a new comment. UserID 0 is a public comment whose
// author name must be supplied.
type CreateCommentInput struct {
	UserID          uint   `json:"-"`
	PostID          uint   `json:"-"`
	ParentCommentID *uint  `json:"parent_comment_id"`
	Author          string `json:"author" validate:"max=100"`
	Content         string `json:"content" validate:"required,max=10000"`
}

type DeleteCommentResult struct {
	CommentID uint  `json:"comment_id"`
	Removed   int64 `json:"removed"`
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	users repository.UserRepository,
	notifier NotificationSender,
	flags *featureflags.Manager,
) *CommentService {
	return &CommentService{comments: comments, posts: posts, users: users, notifier: notifier, flags: flags}
}

// CreateComment adds a comment or reply and notifies the post owner when
// someone else commented.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	in.Author = strings.TrimSpace(in.Author)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:          in.PostID,
		ParentCommentID: in.ParentCommentID,
		Content:         in.Content,
	}
	if in.UserID != 0 {
		user, err := s.users.GetByID(ctx, in.UserID)
		if err != nil {
			return nil, err
		}
		uid := user.ID
		comment.UserID = &uid
		comment.Author = user.Name
	} else {
		if !s.flags.Enabled(featureflags.PublicComments, 0) {
			return nil, models.NewUnauthenticatedError("Log in to comment")
		}
		if in.Author == "" {
			return nil, models.NewFieldValidationError("author is required", map[string]string{"author": "is required"})
		}
		comment.Author = in.Author
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	s.notifyOwner(ctx, comment)
	return comment, nil
}

func (s *CommentService) notifyOwner(ctx context.Context, c *models.Comment) {
	post, err := s.posts.GetByID(ctx, c.PostID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Comment notification skipped", slog.Uint64("post_id", uint64(c.PostID)), slog.String("error", err.Error()))
		return
	}
	if c.UserID != nil && *c.UserID == post.UserID {
		return
	}
	n := &models.Notification{
		Title:   "New Comment",
		Message: fmt.Sprintf("%s commented on your post: \"%s\"", c.Author, post.Title),
	}
	if _, err := s.notifier.Send(ctx, SourceComment, n, models.Personal(post.UserID)); err != nil {
		middleware.Logger.WarnContext(ctx, "Comment notification failed", slog.Uint64("post_id", uint64(c.PostID)), slog.String("error", err.Error()))
	}
}

func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

func (s *CommentService) ListReplies(ctx context.Context, commentID uint) ([]models.Comment, error) {
	if _, err := s.comments.GetByID(ctx, commentID); err != nil {
		return nil, err
	}
	replies, err := s.comments.ListReplies(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if replies == nil {
		replies = []models.Comment{}
	}
	return replies, nil
}

// DeleteComment removes a comment with all of its replies. Authors may delete
// their own comments; staff may delete any.
func (s *CommentService) DeleteComment(ctx context.Context, actor *models.User, commentID uint) (*DeleteCommentResult, error) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	own := comment.UserID != nil && *comment.UserID == actor.ID
	if !own && !actor.IsStaff() {
		return nil, models.NewUnauthorizedError("You can only delete your own comments")
	}
	removed, err := s.comments.Delete(ctx, commentID)
	if err != nil {
		return nil, err
	}
	return &DeleteCommentResult{CommentID: commentID, Removed: removed}, nil
}
