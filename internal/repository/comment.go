package repository

import (
	"context"
	"time"

	"bloghub/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]models.Comment, error)
	ListReplies(ctx context.Context, parentID uint) ([]models.Comment, error)
	// Delete removes the comment and every reply beneath it, returning the row count.
	Delete(ctx context.Context, id uint) (int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts a comment. A parent must belong to the same post and predate the reply.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := run(ctx, "comments.create", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var posts int64
			if err := tx.Model(&models.BlogPost{}).Where("id = ?", comment.PostID).Count(&posts).Error; err != nil {
				return err
			}
			if posts == 0 {
				return models.NewNotFoundError("Post", comment.PostID)
			}

			comment.ID = 0
			comment.CreatedAt = time.Now()
			if comment.ParentCommentID != nil {
				var parent models.Comment
				if err := tx.First(&parent, *comment.ParentCommentID).Error; err != nil {
					return notFound(err, "Comment", *comment.ParentCommentID)
				}
				if parent.PostID != comment.PostID {
					return models.NewFieldValidationError("Parent comment belongs to another post",
						map[string]string{"parent_comment_id": "must reference a comment on the same post"})
				}
				if !parent.CreatedAt.Before(comment.CreatedAt) {
					return models.NewFieldValidationError("Parent comment must be older than the reply",
						map[string]string{"parent_comment_id": "must reference an earlier comment"})
				}
			}
			return tx.Omit("Replies").Create(comment).Error
		})
	})
	return storeErr(err)
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := run(ctx, "comments.get", func(ctx context.Context) error {
		return notFound(readDB(r.db).WithContext(ctx).First(&comment, id).Error, "Comment", id)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return &comment, nil
}

// ListByPost returns top-level comments, oldest first, each with its direct replies.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := run(ctx, "comments.list_by_post", func(ctx context.Context) error {
		return readDB(r.db).WithContext(ctx).
			Preload("Replies", func(db *gorm.DB) *gorm.DB {
				return db.Order("created_at ASC").Order("id ASC")
			}).
			Where("post_id = ? AND parent_comment_id IS NULL", postID).
			Order("created_at ASC").Order("id ASC").
			Find(&comments).Error
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return comments, nil
}

func (r *commentRepository) ListReplies(ctx context.Context, parentID uint) ([]models.Comment, error) {
	var replies []models.Comment
	err := run(ctx, "comments.list_replies", func(ctx context.Context) error {
		return readDB(r.db).WithContext(ctx).
			Where("parent_comment_id = ?", parentID).
			Order("created_at ASC").Order("id ASC").
			Find(&replies).Error
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return replies, nil
}

// commentSubtree collects ids reachable from roots through parent_comment_id.
func commentSubtree(tx *gorm.DB, roots []uint) ([]uint, error) {
	all := append([]uint(nil), roots...)
	frontier := roots
	for len(frontier) > 0 {
		var next []uint
		if err := tx.Model(&models.Comment{}).Where("parent_comment_id IN ?", frontier).Pluck("id", &next).Error; err != nil {
			return nil, err
		}
		all = append(all, next...)
		frontier = next
	}
	return all, nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) (int64, error) {
	var removed int64
	err := run(ctx, "comments.delete", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ids, err := commentSubtree(tx, []uint{id})
			if err != nil {
				return err
			}
			res := tx.Where("id IN ?", ids).Delete(&models.Comment{})
			removed = res.RowsAffected
			if res.Error != nil {
				return res.Error
			}
			if removed == 0 {
				return models.NewNotFoundError("Comment", id)
			}
			return nil
		})
	})
	if err != nil {
		return 0, storeErr(err)
	}
	return removed, nil
}
