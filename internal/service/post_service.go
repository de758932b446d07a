package service

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"bloghub/internal/cache"
	"bloghub/internal/featureflags"
	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/repository"
	"bloghub/internal/storage"
	"bloghub/internal/validation"

	"github.com/yuin/goldmark"
)

const (
	trendingTopLimit = 5
	dashboardRecent  = 5
)

// MediaStore saves and removes uploaded media.
type MediaStore interface {
	SaveImage(ctx context.Context, content []byte, opts ...storage.StoreOption) (string, error)
	SaveVideo(ctx context.Context, content []byte) (string, error)
	Delete(ctx context.Context, path string)
}

// PostDeleter runs the post cascade.
type PostDeleter interface {
	DeletePost(ctx context.Context, postID uint) (*models.CascadeSummary, error)
}

type PostService struct {
	posts      repository.PostRepository
	comments   repository.CommentRepository
	engagement repository.EngagementRepository
	users      repository.UserRepository
	media      MediaStore
	cascade    PostDeleter
	flags      *featureflags.Manager
	markdown   goldmark.Markdown
}

// postFields are the user-editable columns of a post.
type postFields struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content" validate:"required"`
	Tags     string `json:"tags" validate:"max=500"`
	Category string `json:"category" validate:"category"`
}

type CreatePostInput struct {
	UserID   uint
	Title    string
	Content  string
	Tags     string
	Category string
	Image    []byte
	Video    []byte
}

// UpdatePostInput changes only the fields that are set.
type UpdatePostInput struct {
	UserID   uint
	PostID   uint
	Title    *string
	Content  *string
	Tags     *string
	Category *string
	Image    []byte
	Video    []byte
}

type FeedInput struct {
	Filter   string
	Sort     string
	Category string
	Search   string
	AuthorID uint
	Page     int
	PageSize int
}

// PostView is a post as rendered for readers.
type PostView struct {
	models.BlogPost
	ContentHTML string           `json:"content_html"`
	TagList     []string         `json:"tag_list"`
	Liked       bool             `json:"liked"`
	Bookmarked  bool             `json:"bookmarked"`
	Comments    []models.Comment `json:"comments"`
}

type FeedPage struct {
	Posts         []models.BlogPost          `json:"posts"`
	Total         int64                      `json:"total"`
	Page          int                        `json:"page"`
	PageSize      int                        `json:"page_size"`
	TotalPages    int                        `json:"total_pages"`
	Filter        repository.FeedFilter      `json:"filter"`
	Sort          repository.FeedSort        `json:"sort"`
	Category      models.Category            `json:"category,omitempty"`
	Search        string                     `json:"search,omitempty"`
	Categories    []repository.CategoryCount `json:"categories"`
	BookmarkedIDs []uint                     `json:"bookmarked_ids,omitempty"`
}

type Trending struct {
	TopLiked         []models.BlogPost `json:"top_liked"`
	WeeklyByCategory []models.BlogPost `json:"weekly_by_category"`
}

type Dashboard struct {
	User        *models.User          `json:"user"`
	Stats       *repository.PostStats `json:"stats"`
	RecentPosts []models.BlogPost     `json:"recent_posts"`
	Bookmarks   []models.BlogPost     `json:"bookmarks"`
}

type DeletePostResult struct {
	PostID  uint                   `json:"post_id"`
	Summary *models.CascadeSummary `json:"summary"`
}

func NewPostService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	engagement repository.EngagementRepository,
	users repository.UserRepository,
	media MediaStore,
	cascade PostDeleter,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{
		posts:      posts,
		comments:   comments,
		engagement: engagement,
		users:      users,
		media:      media,
		cascade:    cascade,
		flags:      flags,
		markdown:   goldmark.New(),
	}
}

// CreatePost publishes a post for an approved user, storing any media first.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*PostView, error) {
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !user.CanCreateContent() {
		return nil, models.NewUnauthorizedError("Your account must be approved before you can create posts")
	}

	fields := postFields{
		Title:    strings.TrimSpace(in.Title),
		Content:  in.Content,
		Tags:     normalizeTags(in.Tags),
		Category: in.Category,
	}
	if err := validation.Struct(fields); err != nil {
		return nil, err
	}
	category, _ := models.ParseCategory(fields.Category)

	post := &models.BlogPost{
		Title:    fields.Title,
		Content:  fields.Content,
		Tags:     fields.Tags,
		Category: category,
		UserID:   in.UserID,
	}
	if post.ImagePath, post.VideoPath, err = s.saveMedia(ctx, in.UserID, in.Image, in.Video); err != nil {
		return nil, err
	}
	if err := s.posts.Create(ctx, post); err != nil {
		s.discard(ctx, post.ImagePath, post.VideoPath)
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "Post created", slog.Uint64("post_id", uint64(post.ID)))
	return s.view(ctx, post.ID, in.UserID, false)
}

// UpdatePost edits a post. Only its owner may do so; replaced media is
// deleted after the update commits.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*PostView, error) {
	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only update your own posts")
	}

	fields := postFields{Title: post.Title, Content: post.Content, Tags: post.Tags, Category: string(post.Category)}
	if in.Title != nil {
		fields.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		fields.Content = *in.Content
	}
	if in.Tags != nil {
		fields.Tags = normalizeTags(*in.Tags)
	}
	if in.Category != nil {
		fields.Category = *in.Category
	}
	if err := validation.Struct(fields); err != nil {
		return nil, err
	}
	category, _ := models.ParseCategory(fields.Category)

	imagePath, videoPath, err := s.saveMedia(ctx, in.UserID, in.Image, in.Video)
	if err != nil {
		return nil, err
	}
	var replaced []string
	if imagePath != "" {
		replaced = append(replaced, post.ImagePath)
		post.ImagePath = imagePath
	}
	if videoPath != "" {
		replaced = append(replaced, post.VideoPath)
		post.VideoPath = videoPath
	}

	post.Title, post.Content, post.Tags, post.Category = fields.Title, fields.Content, fields.Tags, category
	if err := s.posts.Update(ctx, post); err != nil {
		s.discard(ctx, imagePath, videoPath)
		return nil, err
	}
	s.discard(ctx, replaced...)
	return s.view(ctx, post.ID, in.UserID, false)
}

// DeletePost removes a post with everything attached to it. Owners may delete
// their own posts; staff may delete any. A post that is already gone yields an
// empty summary.
func (s *PostService) DeletePost(ctx context.Context, actor *models.User, postID uint) (*DeletePostResult, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if models.ErrorCode(err) == models.CodeNotFound {
		return &DeletePostResult{PostID: postID, Summary: &models.CascadeSummary{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if post.UserID != actor.ID && !actor.IsStaff() {
		return nil, models.NewUnauthorizedError("You can only delete your own posts")
	}
	sum, err := s.cascade.DeletePost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &DeletePostResult{PostID: postID, Summary: sum}, nil
}

// GetPost counts a view and returns the post with its comment tree and the
// viewer's like/bookmark state. viewerID 0 is an anonymous reader.
func (s *PostService) GetPost(ctx context.Context, postID, viewerID uint) (*PostView, error) {
	if err := s.posts.IncrementViews(ctx, postID); err != nil {
		return nil, err
	}
	return s.view(ctx, postID, viewerID, true)
}

func (s *PostService) view(ctx context.Context, postID, viewerID uint, withComments bool) (*PostView, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	v := &PostView{
		BlogPost:    *post,
		ContentHTML: s.render(post.Content),
		TagList:     post.TagList(),
		Comments:    []models.Comment{},
	}
	if v.TagList == nil {
		v.TagList = []string{}
	}
	if viewerID != 0 {
		state, err := s.engagement.ViewerState(ctx, viewerID, postID)
		if err != nil {
			return nil, err
		}
		v.Liked, v.Bookmarked = state.Liked, state.Bookmarked
	}
	if withComments {
		comments, err := s.comments.ListByPost(ctx, postID)
		if err != nil {
			return nil, err
		}
		if comments != nil {
			v.Comments = comments
		}
	}
	return v, nil
}

// Feed lists posts for the home page.
func (s *PostService) Feed(ctx context.Context, in FeedInput, viewerID uint) (*FeedPage, error) {
	q, err := parseFeedInput(in)
	if err != nil {
		return nil, err
	}
	posts, total, err := s.posts.Feed(ctx, q)
	if err != nil {
		return nil, err
	}
	categories, err := s.posts.CategoryCounts(ctx)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.BlogPost{}
	}
	if categories == nil {
		categories = []repository.CategoryCount{}
	}

	page := &FeedPage{
		Posts:      posts,
		Total:      total,
		Page:       pageOf(q.Page),
		PageSize:   q.Page.Limit,
		TotalPages: int((total + int64(q.Page.Limit) - 1) / int64(q.Page.Limit)),
		Filter:     q.Filter,
		Sort:       q.Sort,
		Category:   q.Category,
		Search:     q.Search,
		Categories: categories,
	}
	if viewerID != 0 {
		if page.BookmarkedIDs, err = s.engagement.BookmarkedPostIDs(ctx, viewerID); err != nil {
			return nil, err
		}
	}
	return page, nil
}

func parseFeedInput(in FeedInput) (repository.FeedQuery, error) {
	q := repository.FeedQuery{
		Filter:   repository.FeedFilter(strings.ToLower(strings.TrimSpace(in.Filter))),
		Sort:     repository.FeedSort(strings.ToLower(strings.TrimSpace(in.Sort))),
		Search:   strings.TrimSpace(in.Search),
		AuthorID: in.AuthorID,
		Page:     pageWindow(in.Page, in.PageSize),
	}
	switch q.Filter {
	case "":
		q.Filter = repository.FeedLatest
	case repository.FeedLatest, repository.FeedTrending, repository.FeedPopular:
	default:
		return q, models.NewFieldValidationError("Invalid filter", map[string]string{"filter": "must be one of: latest trending popular"})
	}
	switch q.Sort {
	case "":
		q.Sort = repository.SortNewest
	case repository.SortNewest, repository.SortLikes, repository.SortComments, repository.SortEditor:
	default:
		return q, models.NewFieldValidationError("Invalid sort", map[string]string{"sort": "must be one of: newest likes comments editor"})
	}
	category, ok := models.ParseCategory(in.Category)
	if !ok {
		return q, models.NewFieldValidationError("Invalid category", map[string]string{"category": "must be one of the known categories"})
	}
	q.Category = category
	return q, nil
}

// Trending returns the five most liked posts and the top post of the last
// week in each category.
func (s *PostService) Trending(ctx context.Context) (*Trending, error) {
	var out Trending
	err := cache.Aside(ctx, cache.TrendingKey(), &out, cache.TrendingTTL, func() error {
		top, err := s.posts.TopByLikes(ctx, trendingTopLimit)
		if err != nil {
			return err
		}
		weekly, err := s.posts.TopPerCategorySince(ctx, time.Now().Add(-repository.TrendingWindow))
		if err != nil {
			return err
		}
		out = Trending{TopLiked: top, WeeklyByCategory: weekly}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.TopLiked == nil {
		out.TopLiked = []models.BlogPost{}
	}
	if out.WeeklyByCategory == nil {
		out.WeeklyByCategory = []models.BlogPost{}
	}
	return &out, nil
}

// Dashboard summarizes the user's own activity.
func (s *PostService) Dashboard(ctx context.Context, userID uint) (*Dashboard, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.posts.StatsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.posts.ListByUser(ctx, userID, dashboardRecent)
	if err != nil {
		return nil, err
	}
	bookmarks, err := s.engagement.ListBookmarkedPosts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []models.BlogPost{}
	}
	if bookmarks == nil {
		bookmarks = []models.BlogPost{}
	}
	return &Dashboard{User: user, Stats: stats, RecentPosts: recent, Bookmarks: bookmarks}, nil
}

// ToggleAdminChoice flips the editor's pick flag.
func (s *PostService) ToggleAdminChoice(ctx context.Context, postID uint) (*models.BlogPost, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.posts.SetAdminChoice(ctx, postID, !post.IsAdminChoice); err != nil {
		return nil, err
	}
	post.IsAdminChoice = !post.IsAdminChoice
	return post, nil
}

func (s *PostService) saveMedia(ctx context.Context, userID uint, image, video []byte) (imagePath, videoPath string, err error) {
	if len(video) > 0 && !s.flags.Enabled(featureflags.VideoUploads, userID) {
		return "", "", models.NewFieldValidationError("Video uploads are disabled", map[string]string{"video": "uploads are disabled"})
	}
	if len(image) > 0 {
		if imagePath, err = s.media.SaveImage(ctx, image); err != nil {
			return "", "", err
		}
	}
	if len(video) > 0 {
		if videoPath, err = s.media.SaveVideo(ctx, video); err != nil {
			s.discard(ctx, imagePath)
			return "", "", err
		}
	}
	return imagePath, videoPath, nil
}

func (s *PostService) discard(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if p != "" {
			s.media.Delete(ctx, p)
		}
	}
}

func (s *PostService) render(content string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(content), &buf); err != nil {
		return ""
	}
	return buf.String()
}

// normalizeTags trims every tag and drops empty ones.
func normalizeTags(raw string) string {
	p := models.BlogPost{Tags: raw}
	return strings.Join(p.TagList(), ",")
}
