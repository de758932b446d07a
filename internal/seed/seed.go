// Package seed fills a database with fake blog data for development and demos.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "Password1"

const batchSize = 200

// Options controls how much data a run produces. Presets are YAML files
// with the same keys.
type Options struct {
	Users         int     `yaml:"users"`
	Posts         int     `yaml:"posts"`
	MaxComments   int     `yaml:"max_comments"`
	ReplyRatio    float64 `yaml:"reply_ratio"`
	LikeRatio     float64 `yaml:"like_ratio"`
	BookmarkRatio float64 `yaml:"bookmark_ratio"`
	ApprovedRatio float64 `yaml:"approved_ratio"`
	MaxDays       int     `yaml:"max_days"`
	Welcome       bool    `yaml:"welcome"`
	Clean         bool    `yaml:"clean"`
	// SkipBcrypt stores a cheap hash; only for throwaway databases.
	SkipBcrypt bool  `yaml:"skip_bcrypt"`
	RandSeed   int64 `yaml:"seed"`
}

// DefaultOptions is a small but lively dataset.
func DefaultOptions() Options {
	return Options{
		Users:         25,
		Posts:         120,
		MaxComments:   6,
		ReplyRatio:    0.3,
		LikeRatio:     0.2,
		BookmarkRatio: 0.05,
		ApprovedRatio: 0.6,
		MaxDays:       60,
		Welcome:       true,
	}
}

// Validate rejects option sets that cannot produce a consistent dataset.
func (o Options) Validate() error {
	switch {
	case o.Users < 1:
		return errors.New("users must be at least 1")
	case o.Posts < 0 || o.MaxComments < 0:
		return errors.New("posts and max_comments cannot be negative")
	}
	for name, r := range map[string]float64{
		"reply_ratio":    o.ReplyRatio,
		"like_ratio":     o.LikeRatio,
		"bookmark_ratio": o.BookmarkRatio,
		"approved_ratio": o.ApprovedRatio,
	} {
		if r < 0 || r > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	return nil
}

// LoadPreset reads a YAML preset on top of DefaultOptions.
func LoadPreset(path string) (Options, error) {
	opts := DefaultOptions()
	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read preset: %w", err)
	}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return opts, fmt.Errorf("parse preset %s: %w", path, err)
	}
	return opts, opts.Validate()
}

// Summary counts what a run created.
type Summary struct {
	Users      int
	Approved   int
	Posts      int
	Comments   int
	Likes      int
	Bookmarks  int
	Deliveries int
}

// Seeder persists generated data.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(opts.RandSeed, opts.MaxDays)}
}

// Run creates users, posts, comments, engagement and an optional welcome
// broadcast.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	if err := s.opts.Validate(); err != nil {
		return nil, err
	}
	if s.opts.Clean {
		if err := ClearAll(ctx, s.db); err != nil {
			return nil, err
		}
	}

	sum := &Summary{}
	users, err := s.createUsers(ctx, sum)
	if err != nil {
		return nil, err
	}
	posts, err := s.createPosts(ctx, users, sum)
	if err != nil {
		return nil, err
	}
	if err := s.createComments(ctx, users, posts, sum); err != nil {
		return nil, err
	}
	if err := s.createEngagement(ctx, users, posts, sum); err != nil {
		return nil, err
	}
	if s.opts.Welcome {
		recipients, err := repository.NewNotificationRepository(s.db).Create(ctx, &models.Notification{
			Title:   "Welcome to BlogHub",
			Message: "Request access from your profile to start publishing.",
		}, models.Broadcast(false))
		if err != nil {
			return nil, fmt.Errorf("welcome broadcast: %w", err)
		}
		sum.Deliveries = len(recipients)
	}

	middleware.Logger.InfoContext(ctx, "Seeding finished",
		slog.Int("users", sum.Users),
		slog.Int("approved", sum.Approved),
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
		slog.Int("likes", sum.Likes),
		slog.Int("bookmarks", sum.Bookmarks))
	return sum, nil
}

// ClearAll removes every row the application owns, children first.
func ClearAll(ctx context.Context, db *gorm.DB) error {
	all := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&models.UserNotification{},
		&models.Notification{},
		&models.Like{},
		&models.Bookmark{},
		&models.Comment{},
		&models.BlogPost{},
		&models.User{},
	} {
		if err := all.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	middleware.Logger.InfoContext(ctx, "Cleared existing data")
	return nil
}

func (s *Seeder) passwordHash() (string, error) {
	cost := bcrypt.DefaultCost
	if s.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	return string(hash), nil
}

func (s *Seeder) createUsers(ctx context.Context, sum *Summary) ([]*models.User, error) {
	hash, err := s.passwordHash()
	if err != nil {
		return nil, err
	}
	faker := s.factory.Faker()
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		status := models.AccessStatusApproved
		// The first user always publishes so posts have an author.
		if i > 0 && faker.Float64Range(0, 1) >= s.opts.ApprovedRatio {
			status = []models.AccessStatus{
				models.AccessStatusNone,
				models.AccessStatusPending,
				models.AccessStatusRejected,
			}[faker.Number(0, 2)]
		}
		users = append(users, s.factory.BuildUser(i, hash, status))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(users, batchSize).Error; err != nil {
		return nil, fmt.Errorf("create users: %w", err)
	}
	for _, u := range users {
		if u.CanCreateContent() {
			sum.Approved++
		}
	}
	sum.Users = len(users)
	return users, nil
}

func (s *Seeder) createPosts(ctx context.Context, users []*models.User, sum *Summary) ([]*models.BlogPost, error) {
	var authors []*models.User
	for _, u := range users {
		if u.CanCreateContent() {
			authors = append(authors, u)
		}
	}
	faker := s.factory.Faker()
	posts := make([]*models.BlogPost, 0, s.opts.Posts)
	for i := 0; i < s.opts.Posts; i++ {
		author := authors[faker.Number(0, len(authors)-1)]
		posts = append(posts, s.factory.BuildPost(author, func(p *models.BlogPost) {
			p.IsAdminChoice = faker.Number(1, 20) == 1
		}))
	}
	if len(posts) == 0 {
		return posts, nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(posts, batchSize).Error; err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	sum.Posts = len(posts)
	return posts, nil
}

func (s *Seeder) createComments(ctx context.Context, users []*models.User, posts []*models.BlogPost, sum *Summary) error {
	faker := s.factory.Faker()
	db := s.db.WithContext(ctx)
	for _, post := range posts {
		n := faker.Number(0, s.opts.MaxComments)
		var roots []*models.Comment
		for i := 0; i < n; i++ {
			user := users[faker.Number(0, len(users)-1)]
			var parent *models.Comment
			if len(roots) > 0 && faker.Float64Range(0, 1) < s.opts.ReplyRatio {
				parent = roots[faker.Number(0, len(roots)-1)]
			}
			c := s.factory.BuildComment(user, post, parent)
			// Replies need their parent's id, so comments are inserted one by one.
			if err := db.Create(c).Error; err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
			if parent == nil {
				roots = append(roots, c)
			}
			sum.Comments++
		}
	}
	return nil
}

func (s *Seeder) createEngagement(ctx context.Context, users []*models.User, posts []*models.BlogPost, sum *Summary) error {
	faker := s.factory.Faker()
	var likes []models.Like
	var bookmarks []models.Bookmark
	for _, post := range posts {
		for _, u := range users {
			if faker.Float64Range(0, 1) < s.opts.LikeRatio {
				likes = append(likes, models.Like{UserID: u.ID, PostID: post.ID, LikedAt: s.factory.EngagementTime(post)})
			}
			if faker.Float64Range(0, 1) < s.opts.BookmarkRatio {
				bookmarks = append(bookmarks, models.Bookmark{UserID: u.ID, PostID: post.ID, BookmarkedAt: s.factory.EngagementTime(post)})
			}
		}
	}
	db := s.db.WithContext(ctx)
	if len(likes) > 0 {
		if err := db.CreateInBatches(likes, batchSize).Error; err != nil {
			return fmt.Errorf("create likes: %w", err)
		}
	}
	if len(bookmarks) > 0 {
		if err := db.CreateInBatches(bookmarks, batchSize).Error; err != nil {
			return fmt.Errorf("create bookmarks: %w", err)
		}
	}
	sum.Likes, sum.Bookmarks = len(likes), len(bookmarks)
	return nil
}
