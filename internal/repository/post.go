package repository

import (
	"context"
	"time"

	"bloghub/internal/cache"
	"bloghub/internal/models"

	"gorm.io/gorm"
)

// FeedFilter narrows which posts the feed considers.
type FeedFilter string

const (
	FeedLatest   FeedFilter = "latest"
	FeedTrending FeedFilter = "trending"
	FeedPopular  FeedFilter = "popular"
)

// FeedSort orders feed results.
type FeedSort string

const (
	SortNewest   FeedSort = "newest"
	SortLikes    FeedSort = "likes"
	SortComments FeedSort = "comments"
	SortEditor   FeedSort = "editor"
)

// TrendingWindow is how far back a like counts toward trending.
const TrendingWindow = 7 * 24 * time.Hour

// FeedQuery describes a feed page. Zero values mean no constraint.
type FeedQuery struct {
	Filter   FeedFilter
	Sort     FeedSort
	Category models.Category
	Search   string
	AuthorID uint
	Page     Page
}

// CategoryCount is the number of posts in one category.
type CategoryCount struct {
	Category models.Category `json:"category"`
	Posts    int64           `json:"posts"`
}

// PostStats aggregates a user's authored content.
type PostStats struct {
	Posts         int64 `json:"total_posts"`
	Comments      int64 `json:"total_comments"`
	LikesReceived int64 `json:"total_likes"`
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.BlogPost) error
	GetByID(ctx context.Context, id uint) (*models.BlogPost, error)
	Update(ctx context.Context, post *models.BlogPost) error
	IncrementViews(ctx context.Context, id uint) error
	Feed(ctx context.Context, q FeedQuery) ([]models.BlogPost, int64, error)
	TopByLikes(ctx context.Context, limit int) ([]models.BlogPost, error)
	TopPerCategorySince(ctx context.Context, since time.Time) ([]models.BlogPost, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.BlogPost, error)
	StatsForUser(ctx context.Context, userID uint) (*PostStats, error)
	CategoryCounts(ctx context.Context) ([]CategoryCount, error)
	SetAdminChoice(ctx context.Context, id uint, choice bool) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// withCounts selects the computed likes_count and comments_count columns plus
// recent_likes, the likes at or after since. All aliases may be referenced from ORDER BY.
func withCounts(db *gorm.DB, since time.Time) *gorm.DB {
	return db.Select("blog_posts.*, "+
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = blog_posts.id) AS likes_count, "+
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = blog_posts.id) AS comments_count, "+
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = blog_posts.id AND likes.liked_at >= ?) AS recent_likes", since)
}

func (r *postRepository) Create(ctx context.Context, post *models.BlogPost) error {
	err := run(ctx, "posts.create", func(ctx context.Context) error {
		post.ID = 0
		return r.db.WithContext(ctx).Omit("User").Create(post).Error
	})
	if err != nil {
		return storeErr(err)
	}
	cache.InvalidatePostListings(ctx)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.BlogPost, error) {
	var post models.BlogPost
	err := run(ctx, "posts.get", func(ctx context.Context) error {
		return notFound(withCounts(readDB(r.db).WithContext(ctx).Model(&models.BlogPost{}), time.Now().Add(-TrendingWindow)).
			Preload("User").
			Where("blog_posts.id = ?", id).
			First(&post).Error, "Post", id)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return &post, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.BlogPost) error {
	err := run(ctx, "posts.update", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Model(&models.BlogPost{ID: post.ID}).
			Select("title", "content", "tags", "category", "image_path", "video_path", "updated_at").
			Updates(map[string]interface{}{
				"title":      post.Title,
				"content":    post.Content,
				"tags":       post.Tags,
				"category":   post.Category,
				"image_path": post.ImagePath,
				"video_path": post.VideoPath,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return storeErr(err)
	}
	cache.InvalidatePostListings(ctx)
	return nil
}

func (r *postRepository) IncrementViews(ctx context.Context, id uint) error {
	err := run(ctx, "posts.increment_views", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Model(&models.BlogPost{}).Where("id = ?", id).
			UpdateColumn("views", gorm.Expr("views + ?", 1)).Error
	})
	return storeErr(err)
}

// applyFeedFilters adds the WHERE clauses shared by the page query and its count.
func applyFeedFilters(db *gorm.DB, q FeedQuery, since time.Time) *gorm.DB {
	if q.Category != "" {
		db = db.Where("blog_posts.category = ?", q.Category)
	}
	if q.AuthorID != 0 {
		db = db.Where("blog_posts.user_id = ?", q.AuthorID)
	}
	if q.Search != "" {
		pattern := likePattern(q.Search)
		db = db.Where(`(LOWER(blog_posts.title) LIKE ? ESCAPE '\' OR LOWER(blog_posts.content) LIKE ? ESCAPE '\' OR LOWER(blog_posts.tags) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern)
	}
	if q.Filter == FeedTrending {
		db = db.Where("EXISTS (SELECT 1 FROM likes WHERE likes.post_id = blog_posts.id AND likes.liked_at >= ?)", since)
	}
	return db
}

func applyFeedOrder(db *gorm.DB, q FeedQuery) *gorm.DB {
	switch q.Filter {
	case FeedTrending:
		db = db.Order("recent_likes DESC")
	case FeedPopular:
		db = db.Order("likes_count DESC")
	}
	switch q.Sort {
	case SortLikes:
		db = db.Order("likes_count DESC")
	case SortComments:
		db = db.Order("comments_count DESC")
	case SortEditor:
		db = db.Order("blog_posts.is_admin_choice DESC")
	}
	return db.Order("blog_posts.created_at DESC").Order("blog_posts.id DESC")
}

func (r *postRepository) Feed(ctx context.Context, q FeedQuery) ([]models.BlogPost, int64, error) {
	var (
		posts []models.BlogPost
		total int64
	)
	page := q.Page.normalize()
	since := time.Now().Add(-TrendingWindow)
	err := run(ctx, "posts.feed", func(ctx context.Context) error {
		db := readDB(r.db).WithContext(ctx)
		if err := applyFeedFilters(db.Model(&models.BlogPost{}), q, since).Count(&total).Error; err != nil {
			return err
		}
		base := applyFeedFilters(withCounts(db.Model(&models.BlogPost{}), since).Preload("User"), q, since)
		return applyFeedOrder(base, q).Limit(page.Limit).Offset(page.Offset).Find(&posts).Error
	})
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return posts, total, nil
}

// TopByLikes returns the most liked posts of all time, ignoring posts without likes.
func (r *postRepository) TopByLikes(ctx context.Context, limit int) ([]models.BlogPost, error) {
	var posts []models.BlogPost
	err := run(ctx, "posts.top_by_likes", func(ctx context.Context) error {
		return withCounts(readDB(r.db).WithContext(ctx).Model(&models.BlogPost{}), time.Now().Add(-TrendingWindow)).
			Preload("User").
			Where("EXISTS (SELECT 1 FROM likes WHERE likes.post_id = blog_posts.id)").
			Order("likes_count DESC").Order("blog_posts.id").
			Limit(limit).Find(&posts).Error
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return posts, nil
}

// TopPerCategorySince returns, per category, the post with the most likes at or
// after since. Categories without such likes are absent. Ordered by category.
func (r *postRepository) TopPerCategorySince(ctx context.Context, since time.Time) ([]models.BlogPost, error) {
	var ranked []models.BlogPost
	err := run(ctx, "posts.top_per_category", func(ctx context.Context) error {
		ranked = nil
		return withCounts(readDB(r.db).WithContext(ctx).Model(&models.BlogPost{}), since).
			Preload("User").
			Where("EXISTS (SELECT 1 FROM likes WHERE likes.post_id = blog_posts.id AND likes.liked_at >= ?)", since).
			Order("recent_likes DESC").Order("blog_posts.id").
			Find(&ranked).Error
	})
	if err != nil {
		return nil, storeErr(err)
	}

	best := make(map[models.Category]models.BlogPost)
	for _, p := range ranked {
		if _, seen := best[p.Category]; !seen {
			best[p.Category] = p
		}
	}
	out := make([]models.BlogPost, 0, len(best))
	for _, c := range models.Categories {
		if p, ok := best[c]; ok {
			out = append(out, p)
		}
	}
	if p, ok := best[""]; ok {
		out = append(out, p)
	}
	return out, nil
}

func (r *postRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.BlogPost, error) {
	posts, _, err := r.Feed(ctx, FeedQuery{AuthorID: userID, Page: Page{Limit: limit}})
	return posts, err
}

func (r *postRepository) StatsForUser(ctx context.Context, userID uint) (*PostStats, error) {
	var stats PostStats
	err := run(ctx, "posts.stats_for_user", func(ctx context.Context) error {
		db := readDB(r.db).WithContext(ctx)
		owned := db.Model(&models.BlogPost{}).Select("id").Where("user_id = ?", userID)
		if err := db.Model(&models.BlogPost{}).Where("user_id = ?", userID).Count(&stats.Posts).Error; err != nil {
			return err
		}
		if err := db.Model(&models.Comment{}).Where("post_id IN (?)", owned).Count(&stats.Comments).Error; err != nil {
			return err
		}
		return db.Model(&models.Like{}).Where("post_id IN (?)", owned).Count(&stats.LikesReceived).Error
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return &stats, nil
}

func (r *postRepository) CategoryCounts(ctx context.Context) ([]CategoryCount, error) {
	var counts []CategoryCount
	err := cache.Aside(ctx, cache.CategoryCountsKey(), &counts, cache.CategoryTTL, func() error {
		return run(ctx, "posts.category_counts", func(ctx context.Context) error {
			counts = nil
			return readDB(r.db).WithContext(ctx).Model(&models.BlogPost{}).
				Select("category, COUNT(*) AS posts").
				Where("category <> ''").
				Group("category").Order("category").
				Scan(&counts).Error
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return counts, nil
}

func (r *postRepository) SetAdminChoice(ctx context.Context, id uint, choice bool) error {
	var affected int64
	err := run(ctx, "posts.set_admin_choice", func(ctx context.Context) error {
		res := r.db.WithContext(ctx).Model(&models.BlogPost{}).Where("id = ?", id).
			UpdateColumn("is_admin_choice", choice)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return storeErr(err)
	}
	if affected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidatePostListings(ctx)
	return nil
}
