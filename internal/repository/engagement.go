package repository

import (
	"context"
	"time"

	"bloghub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ViewerState is the viewer's relation to a post.
type ViewerState struct {
	Liked      bool `json:"liked"`
	Bookmarked bool `json:"bookmarked"`
}

// EngagementRepository persists likes and bookmarks.
type EngagementRepository interface {
	// Toggle flips the (user, post) relation and reports the resulting state.
	Toggle(ctx context.Context, kind models.EngagementKind, userID, postID uint) (models.EngagementState, error)
	ViewerState(ctx context.Context, userID, postID uint) (ViewerState, error)
	BookmarkedPostIDs(ctx context.Context, userID uint) ([]uint, error)
	ListBookmarkedPosts(ctx context.Context, userID uint) ([]models.BlogPost, error)
}

type engagementRepository struct {
	db *gorm.DB
}

// NewEngagementRepository returns a new EngagementRepository implementation.
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

func engagementRow(kind models.EngagementKind, userID, postID uint) (interface{}, error) {
	now := time.Now()
	switch kind {
	case models.EngagementLike:
		return &models.Like{UserID: userID, PostID: postID, LikedAt: now}, nil
	case models.EngagementBookmark:
		return &models.Bookmark{UserID: userID, PostID: postID, BookmarkedAt: now}, nil
	}
	return nil, models.NewValidationError("unknown engagement kind")
}

// Toggle deletes an existing row or inserts a new one. The insert does nothing
// on a unique-pair conflict, so a concurrent toggle that loses the race sees
// zero affected rows and reports CONFLICT instead of duplicating the pair.
func (r *engagementRepository) Toggle(
	ctx context.Context,
	kind models.EngagementKind,
	userID, postID uint,
) (models.EngagementState, error) {
	var state models.EngagementState
	err := run(ctx, "engagement.toggle", func(ctx context.Context) error {
		row, err := engagementRow(kind, userID, postID)
		if err != nil {
			return err
		}
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var posts int64
			if err := tx.Model(&models.BlogPost{}).Where("id = ?", postID).Count(&posts).Error; err != nil {
				return err
			}
			if posts == 0 {
				return models.NewNotFoundError("Post", postID)
			}

			del := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(row)
			if del.Error != nil {
				return del.Error
			}
			if del.RowsAffected > 0 {
				state = models.EngagementOff
				return nil
			}

			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
			if ins.Error != nil {
				return ins.Error
			}
			if ins.RowsAffected == 0 {
				return models.NewConflictError("engagement changed concurrently, retry the toggle")
			}
			state = models.EngagementOn
			return nil
		})
	})
	if err != nil {
		return "", storeErr(err)
	}
	return state, nil
}

func (r *engagementRepository) ViewerState(ctx context.Context, userID, postID uint) (ViewerState, error) {
	var vs ViewerState
	if userID == 0 {
		return vs, nil
	}
	err := run(ctx, "engagement.viewer_state", func(ctx context.Context) error {
		db := readDB(r.db).WithContext(ctx)
		var likes, bookmarks int64
		if err := db.Model(&models.Like{}).Where("user_id = ? AND post_id = ?", userID, postID).Count(&likes).Error; err != nil {
			return err
		}
		if err := db.Model(&models.Bookmark{}).Where("user_id = ? AND post_id = ?", userID, postID).Count(&bookmarks).Error; err != nil {
			return err
		}
		vs = ViewerState{Liked: likes > 0, Bookmarked: bookmarks > 0}
		return nil
	})
	if err != nil {
		return ViewerState{}, storeErr(err)
	}
	return vs, nil
}

func (r *engagementRepository) BookmarkedPostIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := run(ctx, "engagement.bookmarked_ids", func(ctx context.Context) error {
		ids = nil
		return readDB(r.db).WithContext(ctx).Model(&models.Bookmark{}).
			Where("user_id = ?", userID).Order("post_id").Pluck("post_id", &ids).Error
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return ids, nil
}

// ListBookmarkedPosts returns bookmarked posts, most recently bookmarked first.
func (r *engagementRepository) ListBookmarkedPosts(ctx context.Context, userID uint) ([]models.BlogPost, error) {
	var bookmarks []models.Bookmark
	err := run(ctx, "engagement.list_bookmarks", func(ctx context.Context) error {
		return readDB(r.db).WithContext(ctx).
			Preload("Post").Preload("Post.User").
			Where("user_id = ?", userID).
			Order("bookmarked_at DESC").Order("id DESC").
			Find(&bookmarks).Error
	})
	if err != nil {
		return nil, storeErr(err)
	}
	posts := make([]models.BlogPost, 0, len(bookmarks))
	for _, b := range bookmarks {
		if b.Post != nil {
			posts = append(posts, *b.Post)
		}
	}
	return posts, nil
}
