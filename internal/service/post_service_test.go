package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"bloghub/internal/cache"
	"bloghub/internal/featureflags"
	"bloghub/internal/models"
	"bloghub/internal/repository"
	"bloghub/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestPostService_CreatePostRequiresApproval(t *testing.T) {
	ctx := context.Background()
	for _, status := range []models.AccessStatus{models.AccessStatusNone, models.AccessStatusPending, models.AccessStatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			created := false
			users := &userRepoStub{getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
				return &models.User{ID: id, AccessStatus: status}, nil
			}}
			posts := &postRepoStub{createFn: func(context.Context, *models.BlogPost) error {
				created = true
				return nil
			}}
			svc := NewPostService(posts, nil, nil, users, nil, nil, featureflags.NewManager(""))

			_, err := svc.CreatePost(ctx, CreatePostInput{UserID: 1, Title: "T", Content: "C"})
			assertCode(t, err, models.CodeUnauthorized)
			assert.False(t, created)
		})
	}
}

func TestPostService_CreatePostValidation(t *testing.T) {
	ctx := context.Background()
	users := &userRepoStub{getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, AccessStatus: models.AccessStatusApproved}, nil
	}}
	svc := NewPostService(&postRepoStub{}, nil, nil, users, nil, nil, featureflags.NewManager("video_uploads=off"))

	tests := []struct {
		name  string
		input CreatePostInput
		field string
	}{
		{"blank title", CreatePostInput{UserID: 1, Title: "   ", Content: "c"}, "title"},
		{"long title", CreatePostInput{UserID: 1, Title: strings.Repeat("x", 201), Content: "c"}, "title"},
		{"no content", CreatePostInput{UserID: 1, Title: "t"}, "content"},
		{"bad category", CreatePostInput{UserID: 1, Title: "t", Content: "c", Category: "Gardening"}, "category"},
		{"video disabled", CreatePostInput{UserID: 1, Title: "t", Content: "c", Video: tinyMP4()}, "video"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, tt.input)
			assertCode(t, err, models.CodeValidation)
			appErr := err.(*models.AppError)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestPostService_CreateAndGet(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	author := testutil.CreateUser(t, env.db, "writer", models.AccessStatusApproved)
	reader := testutil.CreateUser(t, env.db, "reader", models.AccessStatusApproved)

	created, err := env.posts.CreatePost(ctx, CreatePostInput{
		UserID:   author.ID,
		Title:    "  Markdown  ",
		Content:  "# Heading\n\nSome *text*",
		Tags:     " go, , web ",
		Category: "technology",
		Image:    testutil.TinyPNG(t, 16, 16),
		Video:    tinyMP4(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Markdown", created.Title)
	assert.Equal(t, models.CategoryTechnology, created.Category)
	assert.Equal(t, "go,web", created.Tags)
	assert.Equal(t, []string{"go", "web"}, created.TagList)
	assert.Contains(t, created.ContentHTML, "<h1>Heading</h1>")
	assert.Contains(t, created.ContentHTML, "<em>text</em>")
	assert.NotEmpty(t, created.ImagePath)
	assert.True(t, strings.HasSuffix(created.VideoPath, ".mp4"))
	assert.Equal(t, 2, env.blobs.Len())

	_, err = env.engagement.Toggle(ctx, models.EngagementLike, reader.ID, created.ID)
	require.NoError(t, err)
	_, err = env.comments.CreateComment(ctx, CreateCommentInput{UserID: reader.ID, PostID: created.ID, Content: "Nice"})
	require.NoError(t, err)

	viewed, err := env.posts.GetPost(ctx, created.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, viewed.Views)
	assert.Equal(t, 1, viewed.LikesCount)
	assert.Equal(t, 1, viewed.CommentsCount)
	assert.True(t, viewed.Liked)
	assert.False(t, viewed.Bookmarked)
	require.Len(t, viewed.Comments, 1)
	assert.Equal(t, "reader", viewed.Comments[0].Author)

	anon, err := env.posts.GetPost(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, anon.Views)
	assert.False(t, anon.Liked)

	_, err = env.posts.GetPost(ctx, 9999, 0)
	assertCode(t, err, models.CodeNotFound)
}

func TestPostService_UpdatePost(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "owner", models.AccessStatusApproved)
	stranger := testutil.CreateUser(t, env.db, "stranger", models.AccessStatusApproved)

	created, err := env.posts.CreatePost(ctx, CreatePostInput{
		UserID: owner.ID, Title: "Draft", Content: "v1", Image: testutil.TinyPNG(t, 8, 8),
	})
	require.NoError(t, err)
	oldImage := created.ImagePath

	_, err = env.posts.UpdatePost(ctx, UpdatePostInput{UserID: stranger.ID, PostID: created.ID, Title: strPtr("Hijack")})
	assertCode(t, err, models.CodeUnauthorized)

	_, err = env.posts.UpdatePost(ctx, UpdatePostInput{UserID: owner.ID, PostID: created.ID, Content: strPtr("")})
	assertCode(t, err, models.CodeValidation)

	updated, err := env.posts.UpdatePost(ctx, UpdatePostInput{
		UserID:   owner.ID,
		PostID:   created.ID,
		Title:    strPtr("Final"),
		Category: strPtr("News"),
		Image:    testutil.TinyPNG(t, 12, 12),
	})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "v1", updated.Content)
	assert.Equal(t, models.CategoryNews, updated.Category)
	assert.NotEqual(t, oldImage, updated.ImagePath)
	assert.Equal(t, []string{oldImage}, env.blobs.Deleted)
	_, stillThere := env.blobs.Get(oldImage)
	assert.False(t, stillThere)
	assert.Equal(t, 1, env.blobs.Len())
}

func TestPostService_DeletePost(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "owner", models.AccessStatusApproved)
	stranger := testutil.CreateUser(t, env.db, "stranger", models.AccessStatusApproved)
	post := testutil.CreatePost(t, env.db, owner.ID, "Target", models.CategoryOther)
	other := testutil.CreatePost(t, env.db, owner.ID, "Other", models.CategoryOther)

	_, err := env.posts.DeletePost(ctx, stranger, post.ID)
	assertCode(t, err, models.CodeUnauthorized)

	res, err := env.posts.DeletePost(ctx, owner, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Summary.Posts)

	moderator := &models.User{ID: stranger.ID, Role: models.RoleModerator}
	res, err = env.posts.DeletePost(ctx, moderator, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, res.PostID)

	res, err = env.posts.DeletePost(ctx, owner, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, res.PostID)
	assert.Equal(t, models.CascadeSummary{}, *res.Summary)
}

func TestPostService_Feed(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "author", models.AccessStatusApproved)
	for i := 0; i < 11; i++ {
		testutil.CreatePost(t, env.db, u.ID, "Post", models.CategorySports)
	}
	last := testutil.CreatePost(t, env.db, u.ID, "Last", models.CategoryMovies)
	_, err := env.engagement.Toggle(ctx, models.EngagementBookmark, u.ID, last.ID)
	require.NoError(t, err)

	page, err := env.posts.Feed(ctx, FeedInput{}, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Posts, 10)
	assert.Equal(t, last.ID, page.Posts[0].ID)
	assert.Equal(t, repository.FeedLatest, page.Filter)
	assert.Equal(t, repository.SortNewest, page.Sort)
	assert.Equal(t, []uint{last.ID}, page.BookmarkedIDs)
	assert.Len(t, page.Categories, 2)

	page, err = env.posts.Feed(ctx, FeedInput{Category: "movies", Page: 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Nil(t, page.BookmarkedIDs)

	for _, bad := range []FeedInput{{Filter: "hot"}, {Sort: "random"}, {Category: "Gardening"}} {
		_, err := env.posts.Feed(ctx, bad, 0)
		assertCode(t, err, models.CodeValidation)
	}
}

func TestPostService_TrendingIsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "author", models.AccessStatusApproved)
	fan := testutil.CreateUser(t, env.db, "fan", models.AccessStatusApproved)
	sports := testutil.CreatePost(t, env.db, u.ID, "Match", models.CategorySports)
	movies := testutil.CreatePost(t, env.db, u.ID, "Film", models.CategoryMovies)
	require.NoError(t, env.db.Create(&models.Like{UserID: fan.ID, PostID: sports.ID, LikedAt: time.Now()}).Error)

	first, err := env.posts.Trending(ctx)
	require.NoError(t, err)
	require.Len(t, first.TopLiked, 1)
	assert.Equal(t, sports.ID, first.TopLiked[0].ID)
	require.Len(t, first.WeeklyByCategory, 1)
	assert.True(t, mr.Exists(cache.TrendingKey()))

	require.NoError(t, env.db.Create(&models.Like{UserID: fan.ID, PostID: movies.ID, LikedAt: time.Now()}).Error)
	second, err := env.posts.Trending(ctx)
	require.NoError(t, err)
	assert.Len(t, second.TopLiked, 1)

	mr.Del(cache.TrendingKey())
	third, err := env.posts.Trending(ctx)
	require.NoError(t, err)
	assert.Len(t, third.TopLiked, 2)
}

func TestPostService_DashboardAndAdminChoice(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "author", models.AccessStatusApproved)
	fan := testutil.CreateUser(t, env.db, "fan", models.AccessStatusApproved)
	var last *models.BlogPost
	for i := 0; i < 6; i++ {
		last = testutil.CreatePost(t, env.db, u.ID, "Post", models.CategoryEducation)
	}
	_, err := env.engagement.Toggle(ctx, models.EngagementLike, fan.ID, last.ID)
	require.NoError(t, err)
	_, err = env.engagement.Toggle(ctx, models.EngagementBookmark, u.ID, last.ID)
	require.NoError(t, err)

	dash, err := env.posts.Dashboard(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "author", dash.User.Name)
	assert.Equal(t, int64(6), dash.Stats.Posts)
	assert.Equal(t, int64(1), dash.Stats.LikesReceived)
	assert.Len(t, dash.RecentPosts, 5)
	require.Len(t, dash.Bookmarks, 1)

	picked, err := env.posts.ToggleAdminChoice(ctx, last.ID)
	require.NoError(t, err)
	assert.True(t, picked.IsAdminChoice)
	picked, err = env.posts.ToggleAdminChoice(ctx, last.ID)
	require.NoError(t, err)
	assert.False(t, picked.IsAdminChoice)
}
