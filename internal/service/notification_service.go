package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/observability"
	"bloghub/internal/repository"
)

const maxPageSize = 100

// Notification sources, used as the metrics label for deliveries.
const (
	SourceAccess    = "access"
	SourceBroadcast = "broadcast"
	SourceLike      = "like"
	SourceComment   = "comment"
)

// Publisher pushes a committed notification to its recipients' live connections.
type Publisher interface {
	PublishNotification(ctx context.Context, recipients []uint, n *models.Notification) error
}

// publishCommitted records the deliveries and pushes them in realtime. Push
// failures are logged; the rows are already durable.
func publishCommitted(ctx context.Context, pub Publisher, source string, recipients []uint, n *models.Notification) {
	observability.NotificationDeliveries.WithLabelValues(source).Add(float64(len(recipients)))
	if pub == nil || len(recipients) == 0 {
		return
	}
	if err := pub.PublishNotification(ctx, recipients, n); err != nil {
		middleware.Logger.WarnContext(ctx, "Realtime notification push failed",
			slog.Uint64("notification_id", uint64(n.ID)),
			slog.Int("recipients", len(recipients)),
			slog.String("error", err.Error()))
	}
}

type NotificationService struct {
	repo      repository.NotificationRepository
	publisher Publisher
}

type BroadcastInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Message     string `json:"message" validate:"required"`
	IsImportant bool   `json:"is_important"`
	ForCreators bool   `json:"for_creators"`
}

// BroadcastResult reports an admin broadcast.
type BroadcastResult struct {
	Notification *models.Notification `json:"notification"`
	Recipients   int                  `json:"recipients"`
	Message      string               `json:"message"`
}

// NotificationPage is one page of a user's deliveries.
type NotificationPage struct {
	Items    []models.UserNotification `json:"items"`
	Total    int64                     `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
	Unread   int64                     `json:"unread"`
}

// AdminNotificationPage is one page of sent notifications.
type AdminNotificationPage struct {
	Items    []models.Notification `json:"items"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

func NewNotificationService(repo repository.NotificationRepository, publisher Publisher) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisher}
}

// Send fans n out to audience and pushes it once committed.
func (s *NotificationService) Send(ctx context.Context, source string, n *models.Notification, audience models.Audience) ([]uint, error) {
	recipients, err := s.repo.Create(ctx, n, audience)
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "Notification fanned out",
		slog.String("source", source),
		slog.Uint64("notification_id", uint64(n.ID)),
		slog.Int("recipients", len(recipients)))
	publishCommitted(ctx, s.publisher, source, recipients, n)
	return recipients, nil
}

// Broadcast sends an admin notification to every user or only to creators.
func (s *NotificationService) Broadcast(ctx context.Context, in BroadcastInput) (*BroadcastResult, error) {
	n := &models.Notification{
		Title:       strings.TrimSpace(in.Title),
		Message:     strings.TrimSpace(in.Message),
		IsImportant: in.IsImportant,
	}
	recipients, err := s.Send(ctx, SourceBroadcast, n, models.Broadcast(in.ForCreators))
	if err != nil {
		return nil, err
	}
	audience := "users"
	if in.ForCreators {
		audience = "creators"
	}
	return &BroadcastResult{
		Notification: n,
		Recipients:   len(recipients),
		Message:      fmt.Sprintf("Notification sent successfully to %d %s", len(recipients), audience),
	}, nil
}

func (s *NotificationService) ListForUser(ctx context.Context, userID uint, page, size int) (*NotificationPage, error) {
	p := pageWindow(page, size)
	items, total, err := s.repo.ListForUser(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.UserNotification{}
	}
	return &NotificationPage{Items: items, Total: total, Page: pageOf(p), PageSize: p.Limit, Unread: unread}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// MarkRead marks one delivery read. Unknown or already-read pairs report false.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) (bool, error) {
	return s.repo.MarkRead(ctx, userID, notificationID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) List(ctx context.Context, page, size int) (*AdminNotificationPage, error) {
	p := pageWindow(page, size)
	items, total, err := s.repo.List(ctx, p)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &AdminNotificationPage{Items: items, Total: total, Page: pageOf(p), PageSize: p.Limit}, nil
}

// ToggleImportant flips the important flag.
func (s *NotificationService) ToggleImportant(ctx context.Context, id uint) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repo.SetImportant(ctx, id, !n.IsImportant)
}

// Delete removes a notification and its deliveries. Important notifications
// can only be removed by an admin.
func (s *NotificationService) Delete(ctx context.Context, actor *models.User, id uint) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.IsImportant && !actor.IsAdmin() {
		return models.NewUnauthorizedError("Only admins can delete important notifications")
	}
	recipients, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "Notification deleted",
		slog.Uint64("notification_id", uint64(id)),
		slog.Uint64("actor_id", uint64(actor.ID)),
		slog.Int("deliveries", len(recipients)))
	return nil
}

// pageWindow clamps size to the listing bounds before computing the offset.
func pageWindow(page, size int) repository.Page {
	if size <= 0 || size > maxPageSize {
		size = repository.DefaultPageSize
	}
	return repository.PageNumber(page, size)
}

func pageOf(p repository.Page) int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}
