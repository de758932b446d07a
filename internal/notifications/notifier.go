// Package notifications pushes committed notifications to connected users
// over Redis pub/sub and websockets.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/observability"

	"github.com/redis/go-redis/v9"
)

const userChannelPrefix = "notifications:user:"

// Event is the websocket frame sent to clients.
type Event struct {
	Type    string       `json:"type"`
	Payload EventPayload `json:"payload"`
}

// EventPayload carries the notification content a client renders.
type EventPayload struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	IsImportant bool      `json:"is_important"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewNotificationEvent wraps n for delivery.
func NewNotificationEvent(n *models.Notification) Event {
	return Event{
		Type: "notification",
		Payload: EventPayload{
			ID:          n.ID,
			Title:       n.Title,
			Message:     n.Message,
			IsImportant: n.IsImportant,
			CreatedAt:   n.CreatedAt,
		},
	}
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel extracts the user id from a channel name.
func ParseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishNotification publishes one event per recipient in a single pipeline.
// A nil Redis client makes this a no-op.
func (n *Notifier) PublishNotification(ctx context.Context, recipients []uint, notification *models.Notification) error {
	if n == nil || n.rdb == nil || len(recipients) == 0 {
		return nil
	}
	body, err := json.Marshal(NewNotificationEvent(notification))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = n.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, uid := range recipients {
			p.Publish(ctx, UserChannel(uid), body)
		}
		return nil
	})
	if err != nil {
		observability.NotificationPublishFailures.Inc()
		return fmt.Errorf("publish notification %d: %w", notification.ID, err)
	}
	return nil
}

// StartPatternSubscriber subscribes to pattern `notifications:user:*` and calls onMessage
// for each incoming message until ctx is done.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel string, payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("Panic in notification subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
