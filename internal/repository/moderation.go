package repository

import (
	"context"

	"bloghub/internal/cache"
	"bloghub/internal/models"

	"gorm.io/gorm"
)

// ModerationRepository performs the cascading deletes used by owners and staff.
// Each delete runs in one transaction; a missing id yields an empty summary.
type ModerationRepository interface {
	DeletePost(ctx context.Context, id uint) (*models.CascadeSummary, error)
	DeleteUser(ctx context.Context, id uint) (*models.CascadeSummary, error)
}

type moderationRepository struct {
	db *gorm.DB
}

// NewModerationRepository returns a new ModerationRepository implementation.
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

// deletePosts removes posts and their children: comments, likes, bookmarks.
// Media paths are collected for post-commit blob removal.
func deletePosts(tx *gorm.DB, postIDs []uint, sum *models.CascadeSummary) error {
	if len(postIDs) == 0 {
		return nil
	}
	var posts []models.BlogPost
	if err := tx.Select("id", "image_path", "video_path").Where("id IN ?", postIDs).Find(&posts).Error; err != nil {
		return err
	}
	for i := range posts {
		sum.MediaPaths = append(sum.MediaPaths, posts[i].MediaPaths()...)
	}

	res := tx.Where("post_id IN ?", postIDs).Delete(&models.Comment{})
	if res.Error != nil {
		return res.Error
	}
	sum.Comments += res.RowsAffected

	res = tx.Where("post_id IN ?", postIDs).Delete(&models.Like{})
	if res.Error != nil {
		return res.Error
	}
	sum.Likes += res.RowsAffected

	res = tx.Where("post_id IN ?", postIDs).Delete(&models.Bookmark{})
	if res.Error != nil {
		return res.Error
	}
	sum.Bookmarks += res.RowsAffected

	res = tx.Where("id IN ?", postIDs).Delete(&models.BlogPost{})
	if res.Error != nil {
		return res.Error
	}
	sum.Posts += res.RowsAffected
	return nil
}

func (r *moderationRepository) DeletePost(ctx context.Context, id uint) (*models.CascadeSummary, error) {
	var sum models.CascadeSummary
	err := run(ctx, "moderation.delete_post", func(ctx context.Context) error {
		sum = models.CascadeSummary{}
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return deletePosts(tx, []uint{id}, &sum)
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if sum.Posts > 0 {
		cache.InvalidatePostListings(ctx)
	}
	return &sum, nil
}

// DeleteUser removes the user's posts (with their children), the user's own
// likes and bookmarks elsewhere, and their notification deliveries. Comments
// the user wrote on other posts keep their author name but lose the user link.
func (r *moderationRepository) DeleteUser(ctx context.Context, id uint) (*models.CascadeSummary, error) {
	var sum models.CascadeSummary
	err := run(ctx, "moderation.delete_user", func(ctx context.Context) error {
		sum = models.CascadeSummary{}
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var user models.User
			if err := tx.Select("id", "profile_image_path").Where("id = ?", id).Limit(1).Find(&user).Error; err != nil {
				return err
			}
			if user.ID == 0 {
				return nil
			}

			var postIDs []uint
			if err := tx.Model(&models.BlogPost{}).Where("user_id = ?", id).Pluck("id", &postIDs).Error; err != nil {
				return err
			}
			if err := deletePosts(tx, postIDs, &sum); err != nil {
				return err
			}

			res := tx.Where("user_id = ?", id).Delete(&models.Like{})
			if res.Error != nil {
				return res.Error
			}
			sum.Likes += res.RowsAffected

			res = tx.Where("user_id = ?", id).Delete(&models.Bookmark{})
			if res.Error != nil {
				return res.Error
			}
			sum.Bookmarks += res.RowsAffected

			res = tx.Model(&models.Comment{}).Where("user_id = ?", id).Update("user_id", nil)
			if res.Error != nil {
				return res.Error
			}
			sum.CommentsDetached = res.RowsAffected

			res = tx.Where("user_id = ?", id).Delete(&models.UserNotification{})
			if res.Error != nil {
				return res.Error
			}
			sum.Deliveries = res.RowsAffected

			res = tx.Delete(&models.User{}, id)
			if res.Error != nil {
				return res.Error
			}
			sum.Users = res.RowsAffected
			if user.ProfileImagePath != "" {
				sum.MediaPaths = append(sum.MediaPaths, user.ProfileImagePath)
			}
			return nil
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if sum.Users > 0 {
		cache.InvalidateUser(ctx, id)
		cache.InvalidateUnread(ctx, id)
	}
	if sum.Posts > 0 {
		cache.InvalidatePostListings(ctx)
	}
	return &sum, nil
}
