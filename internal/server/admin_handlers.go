package server

import (
	"bloghub/internal/models"
	"bloghub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListAccessRequests handles GET /api/admin/access-requests
// @Summary Users waiting for approval
// @Tags admin
// @Security SessionAuth
// @Success 200 {object} service.PendingUsers
// @Router /admin/access-requests [get]
func (s *Server) ListAccessRequests(c *fiber.Ctx) error {
	res, err := s.accessService.ListPending(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// ApproveAccess handles POST /api/admin/access-requests/:id/approve
// @Summary Approve a user and notify them
// @Tags admin
// @Security SessionAuth
// @Param id path int true "User ID"
// @Success 200 {object} UserResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/access-requests/{id}/approve [post]
func (s *Server) ApproveAccess(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.accessService.Approve(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(UserResponse{User: user})
}

// RejectAccess handles POST /api/admin/access-requests/:id/reject
func (s *Server) RejectAccess(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.accessService.Reject(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(UserResponse{User: user})
}

// BackfillAccessRequests handles POST /api/admin/access-requests/backfill.
// Users who never asked for access are moved to pending.
func (s *Server) BackfillAccessRequests(c *fiber.Ctx) error {
	n, err := s.accessService.BackfillPending(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(BackfillResponse{Updated: n})
}

// AdminListUsers handles GET /api/admin/users?search=
func (s *Server) AdminListUsers(c *fiber.Ctx) error {
	page, size := pageParams(c)
	res, err := s.userService.ListUsers(c.UserContext(), c.Query("search"), page, size)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

func (s *Server) ListStaff(c *fiber.Ctx) error {
	staff, err := s.userService.ListStaff(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(UsersResponse{Users: staff})
}

// SetUserRole handles PUT /api/admin/users/:id/role (admins only).
// @Summary Change a user's staff role
// @Tags admin
// @Security SessionAuth
// @Param id path int true "User ID"
// @Param request body SetRoleRequest true "member, moderator or admin"
// @Success 200 {object} UserResponse
// @Router /admin/users/{id}/role [put]
func (s *Server) SetUserRole(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req SetRoleRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if id == currentUserID(c) {
		return models.RespondWithAppError(c, models.NewValidationError("You cannot change your own role"))
	}
	user, err := s.userService.SetRole(c.UserContext(), id, req.Role)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(UserResponse{User: user})
}

// AdminDeleteUser handles DELETE /api/admin/users/:id
// @Summary Delete a user with everything they own
// @Tags admin
// @Security SessionAuth
// @Param id path int true "User ID"
// @Success 200 {object} DeleteUserResponse
// @Router /admin/users/{id} [delete]
func (s *Server) AdminDeleteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if id == currentUserID(c) {
		return models.RespondWithAppError(c, models.NewValidationError("You cannot delete your own account"))
	}
	sum, err := s.moderationService.DeleteUser(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(DeleteUserResponse{UserID: id, Summary: sum})
}

// AdminListPosts handles GET /api/admin/posts?search=
func (s *Server) AdminListPosts(c *fiber.Ctx) error {
	page, size := pageParams(c)
	res, err := s.postService.Feed(c.UserContext(), service.FeedInput{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Page:     page,
		PageSize: size,
	}, 0)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// AdminDeletePost handles DELETE /api/admin/posts/:id
func (s *Server) AdminDeletePost(c *fiber.Ctx) error {
	return s.DeletePost(c)
}

// ToggleAdminChoice handles POST /api/admin/posts/:id/admin-choice
// @Summary Flip the editor's pick flag
// @Tags admin
// @Security SessionAuth
// @Param id path int true "Post ID"
// @Success 200 {object} PostResponse
// @Router /admin/posts/{id}/admin-choice [post]
func (s *Server) ToggleAdminChoice(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.ToggleAdminChoice(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(PostResponse{Post: post})
}

// AdminListNotifications handles GET /api/admin/notifications
func (s *Server) AdminListNotifications(c *fiber.Ctx) error {
	page, size := pageParams(c)
	res, err := s.notificationService.List(c.UserContext(), page, size)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// BroadcastNotification handles POST /api/admin/notifications
// @Summary Send a notification to all users or to creators only
// @Tags admin
// @Security SessionAuth
// @Accept json
// @Param request body service.BroadcastInput true "Notification"
// @Success 201 {object} service.BroadcastResult
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/notifications [post]
func (s *Server) BroadcastNotification(c *fiber.Ctx) error {
	var req service.BroadcastInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	res, err := s.notificationService.Broadcast(c.UserContext(), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// ToggleNotificationImportant handles POST /api/admin/notifications/:id/important
func (s *Server) ToggleNotificationImportant(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	n, err := s.notificationService.ToggleImportant(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(NotificationResponse{Notification: n})
}

// DeleteNotification handles DELETE /api/admin/notifications/:id. Important
// notifications can only be removed by admins.
// @Summary Delete a notification and its deliveries
// @Tags admin
// @Security SessionAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/notifications/{id} [delete]
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	actor, err := s.currentUser(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if err := s.notificationService.Delete(c.UserContext(), actor, id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(MessageResponse{Message: "Notification deleted"})
}

// GetFeatureFlags handles GET /api/admin/feature-flags
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(FeatureFlagsResponse{
		Raw:     s.featureFlags.Raw(),
		Enabled: s.featureFlags.Snapshot(currentUserID(c)),
	})
}
