package server

import (
	"bloghub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListNotifications handles GET /api/notifications
// @Summary Own notifications, newest first
// @Tags notifications
// @Security SessionAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} service.NotificationPage
// @Router /notifications [get]
func (s *Server) ListNotifications(c *fiber.Ctx) error {
	page, size := pageParams(c)
	res, err := s.notificationService.ListForUser(c.UserContext(), currentUserID(c), page, size)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// UnreadCount handles GET /api/notifications/unread-count
func (s *Server) UnreadCount(c *fiber.Ctx) error {
	n, err := s.notificationService.UnreadCount(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(UnreadCountResponse{Unread: n})
}

// MarkNotificationRead handles POST /api/notifications/:id/read. Marking an
// already-read or foreign notification is a no-op.
// @Summary Mark one notification read
// @Tags notifications
// @Security SessionAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} MarkReadResponse
// @Router /notifications/{id}/read [post]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	changed, err := s.notificationService.MarkRead(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(MarkReadResponse{NotificationID: id, Changed: changed})
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := s.notificationService.MarkAllRead(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(MarkAllReadResponse{Marked: n})
}
