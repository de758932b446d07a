package server

import (
	"errors"
	"log/slog"

	"bloghub/internal/featureflags"
	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// NotificationsWebSocket handles GET /api/ws/notifications. Each frame sent
// to the client is a notifications.Event for a delivery committed to the
// caller. Must be placed after AuthRequired.
func (s *Server) NotificationsWebSocket() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("Notification socket rejected",
				slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
			reason := "server busy"
			if errors.Is(err, notifications.ErrUserFull) {
				reason = "too many connections"
			}
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason))
			_ = conn.Close()
			return
		}

		// The conn goes back to the pool when this handler returns, so wait
		// for the writer to let go of it.
		go client.WritePump()
		client.ReadPump()
		<-client.Done()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}
		if !s.featureFlags.Enabled(featureflags.RealtimeNotifications, currentUserID(c)) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				&models.AppError{Code: models.CodeNotFound, Message: "Realtime notifications are disabled"})
		}
		return upgrade(c)
	}
}
