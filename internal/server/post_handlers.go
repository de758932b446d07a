package server

import (
	"bloghub/internal/models"
	"bloghub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// PostRequest is the body of create and update. It is accepted as JSON or as
// multipart form data carrying optional "image" and "video" files.
type PostRequest struct {
	Title    *string `json:"title" form:"title"`
	Content  *string `json:"content" form:"content"`
	Tags     *string `json:"tags" form:"tags"`
	Category *string `json:"category" form:"category"`
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func readMedia(c *fiber.Ctx) (image, video []byte, err error) {
	if image, err = formFile(c, "image"); err != nil {
		return nil, nil, err
	}
	if video, err = formFile(c, "video"); err != nil {
		return nil, nil, err
	}
	return image, video, nil
}

// Feed handles GET /api/posts
// @Summary Browse posts
// @Description Filters latest|trending|popular, sorts newest|likes|comments|editor, category and text search, pages of 10
// @Tags posts
// @Produce json
// @Param filter query string false "latest, trending or popular"
// @Param sort query string false "newest, likes, comments or editor"
// @Param category query string false "Category name"
// @Param search query string false "Text search over title, content and tags"
// @Param author query int false "Only posts by this user"
// @Param page query int false "Page number"
// @Success 200 {object} service.FeedPage
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) Feed(c *fiber.Ctx) error {
	page, size := pageParams(c)
	in := service.FeedInput{
		Filter:   c.Query("filter"),
		Sort:     c.Query("sort"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
		AuthorID: uint(max(c.QueryInt("author", 0), 0)),
		Page:     page,
		PageSize: size,
	}
	res, err := s.postService.Feed(c.UserContext(), in, s.optionalUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// GetTrending handles GET /api/posts/trending
// @Summary Trending posts
// @Tags posts
// @Success 200 {object} service.Trending
// @Router /posts/trending [get]
func (s *Server) GetTrending(c *fiber.Ctx) error {
	res, err := s.postService.Trending(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// GetPost handles GET /api/posts/:id
// @Summary Read a post
// @Description Counts a view and returns the comment tree and the caller's like/bookmark state
// @Tags posts
// @Param id path int true "Post ID"
// @Success 200 {object} service.PostView
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	view, err := s.postService.GetPost(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(view)
}

// CreatePost handles POST /api/posts
// @Summary Publish a post
// @Description Requires an approved account
// @Tags posts
// @Security SessionAuth
// @Accept json,mpfd
// @Success 201 {object} service.PostView
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req PostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	image, video, err := readMedia(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	view, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:   currentUserID(c),
		Title:    deref(req.Title),
		Content:  deref(req.Content),
		Tags:     deref(req.Tags),
		Category: deref(req.Category),
		Image:    image,
		Video:    video,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Edit own post
// @Tags posts
// @Security SessionAuth
// @Accept json,mpfd
// @Param id path int true "Post ID"
// @Success 200 {object} service.PostView
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req PostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	image, video, err := readMedia(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	view, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:   currentUserID(c),
		PostID:   id,
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
		Category: req.Category,
		Image:    image,
		Video:    video,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(view)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post with its comments, likes and bookmarks
// @Tags posts
// @Security SessionAuth
// @Param id path int true "Post ID"
// @Success 200 {object} service.DeletePostResult
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	actor, err := s.currentUser(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	res, err := s.postService.DeletePost(c.UserContext(), actor, id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// ToggleLike handles POST /api/posts/:id/like
// @Summary Like or unlike a post
// @Tags engagement
// @Security SessionAuth
// @Param id path int true "Post ID"
// @Success 200 {object} service.ToggleResult
// @Router /posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	return s.toggle(c, models.EngagementLike)
}

// ToggleBookmark handles POST /api/posts/:id/bookmark
// @Summary Bookmark or unbookmark a post
// @Tags engagement
// @Security SessionAuth
// @Param id path int true "Post ID"
// @Success 200 {object} service.ToggleResult
// @Router /posts/{id}/bookmark [post]
func (s *Server) ToggleBookmark(c *fiber.Ctx) error {
	return s.toggle(c, models.EngagementBookmark)
}

func (s *Server) toggle(c *fiber.Ctx, kind models.EngagementKind) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.engagementService.Toggle(c.UserContext(), kind, currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// GetDashboard handles GET /api/dashboard
// @Summary Personal dashboard
// @Tags posts
// @Security SessionAuth
// @Success 200 {object} service.Dashboard
// @Router /dashboard [get]
func (s *Server) GetDashboard(c *fiber.Ctx) error {
	res, err := s.postService.Dashboard(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// ListBookmarks handles GET /api/bookmarks
// @Summary Bookmarked posts
// @Tags engagement
// @Security SessionAuth
// @Success 200 {object} PostsResponse
// @Router /bookmarks [get]
func (s *Server) ListBookmarks(c *fiber.Ctx) error {
	posts, err := s.engagementService.ListBookmarks(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(PostsResponse{Posts: posts})
}
