package server

import (
	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ForgotPasswordRequest is the body of POST /api/auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create a member account awaiting access approval
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration"
// @Success 201 {object} UserResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	user, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(UserResponse{User: user})
}

// Login handles POST /api/auth/login
// @Summary Log in
// @Description Verify credentials and start a session (cookie and bearer token)
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	res, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	middleware.SetCookie(c, res.Session, s.config.IsProduction())
	return c.JSON(AuthResponse{User: res.User, Token: res.Session.Token, ExpiresAt: res.Session.ExpiresAt})
}

// Logout handles POST /api/auth/logout
// @Summary Log out
// @Tags auth
// @Success 200 {object} MessageResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.authService.Logout(c.UserContext(), middleware.TokenFromRequest(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	middleware.ClearCookie(c, s.config.IsProduction())
	return c.JSON(MessageResponse{Message: "Logged out"})
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Security SessionAuth
// @Success 200 {object} UserResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(UserResponse{User: user})
}

// ForgotPassword handles POST /api/auth/forgot-password
// @Summary Request a password reset link
// @Description Always answers the same message whether or not the email is registered
// @Tags auth
// @Accept json
// @Param request body ForgotPasswordRequest true "Email"
// @Success 200 {object} MessageResponse
// @Router /auth/forgot-password [post]
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	msg, err := s.authService.ForgotPassword(c.UserContext(), req.Email)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(MessageResponse{Message: msg})
}

// ResetPassword handles POST /api/auth/reset-password
// @Summary Reset password with an emailed token
// @Tags auth
// @Accept json
// @Param request body service.ResetPasswordInput true "Token and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/reset-password [post]
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req service.ResetPasswordInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := s.authService.ResetPassword(c.UserContext(), req); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(MessageResponse{Message: "Password has been reset"})
}

// ChangePassword handles PUT /api/auth/password
// @Summary Change password
// @Tags auth
// @Security SessionAuth
// @Accept json
// @Param request body service.ChangePasswordInput true "Current and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/password [put]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req service.ChangePasswordInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUserID(c)
	if err := s.authService.ChangePassword(c.UserContext(), req); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(MessageResponse{Message: "Password updated"})
}
