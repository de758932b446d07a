package server

import (
	"bloghub/internal/models"
	"bloghub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Own profile with post stats
// @Tags users
// @Security SessionAuth
// @Success 200 {object} service.Profile
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.userService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Public profile
// @Tags users
// @Param id path int true "User ID"
// @Success 200 {object} service.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.userService.GetProfile(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Change name or email
// @Tags users
// @Security SessionAuth
// @Accept json
// @Param request body service.UpdateProfileInput true "Fields to change"
// @Success 200 {object} UserResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUserID(c)
	user, err := s.userService.UpdateProfile(c.UserContext(), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(UserResponse{User: user})
}

// UploadProfileImage handles POST /api/users/me/image (multipart field "image").
// @Summary Replace profile picture
// @Tags users
// @Security SessionAuth
// @Accept mpfd
// @Param image formData file true "Image"
// @Success 200 {object} UserResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me/image [post]
func (s *Server) UploadProfileImage(c *fiber.Ctx) error {
	data, err := formFile(c, "image")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	user, err := s.userService.UploadProfileImage(c.UserContext(), currentUserID(c), data)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(UserResponse{User: user})
}

// RequestAccess handles POST /api/access/request
// @Summary Ask an admin for permission to publish
// @Tags access
// @Security SessionAuth
// @Success 200 {object} service.AccessRequestResult
// @Router /access/request [post]
func (s *Server) RequestAccess(c *fiber.Ctx) error {
	res, err := s.accessService.RequestAccess(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}
