package repository

import (
	"context"
	"strings"
	"time"

	"bloghub/internal/cache"
	"bloghub/internal/models"

	"gorm.io/gorm"
)

const deliveryBatchSize = 500

// NotificationRepository persists notifications and their per-recipient deliveries.
type NotificationRepository interface {
	// Create writes n and one delivery per resolved recipient in one transaction.
	Create(ctx context.Context, n *models.Notification, audience models.Audience) ([]uint, error)
	ListForUser(ctx context.Context, userID uint, page Page) ([]models.UserNotification, int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uint) (bool, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	List(ctx context.Context, page Page) ([]models.Notification, int64, error)
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	SetImportant(ctx context.Context, id uint, important bool) (*models.Notification, error)
	// Delete removes a notification with its deliveries and returns the former recipients.
	Delete(ctx context.Context, id uint) ([]uint, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository returns a new NotificationRepository implementation.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// resolveRecipients turns an audience into user ids at the moment of fan-out.
func resolveRecipients(tx *gorm.DB, audience models.Audience) ([]uint, error) {
	var ids []uint
	switch audience.Kind {
	case models.AudiencePersonal:
		if err := tx.Model(&models.User{}).Where("id = ?", audience.UserID).Pluck("id", &ids).Error; err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, models.NewNotFoundError("User", audience.UserID)
		}
	case models.AudienceBroadcast:
		q := tx.Model(&models.User{})
		if audience.CreatorsOnly {
			q = q.Where("id IN (?)", tx.Model(&models.BlogPost{}).Distinct("user_id"))
		}
		if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
			return nil, err
		}
	default:
		return nil, models.NewValidationError("unknown notification audience")
	}
	return ids, nil
}

// deliver is the only writer of UserNotification rows. It must run inside tx.
func deliver(tx *gorm.DB, n *models.Notification, audience models.Audience) ([]uint, error) {
	if strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Message) == "" {
		return nil, models.NewValidationError("Title and message are required")
	}
	recipients, err := resolveRecipients(tx, audience)
	if err != nil {
		return nil, err
	}
	n.IsForCreators = audience.Kind == models.AudienceBroadcast && audience.CreatorsOnly
	if err := tx.Create(n).Error; err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return recipients, nil
	}
	rows := make([]models.UserNotification, 0, len(recipients))
	for _, uid := range recipients {
		rows = append(rows, models.UserNotification{UserID: uid, NotificationID: n.ID})
	}
	if err := tx.CreateInBatches(rows, deliveryBatchSize).Error; err != nil {
		return nil, err
	}
	return recipients, nil
}

func (r *notificationRepository) Create(
	ctx context.Context,
	n *models.Notification,
	audience models.Audience,
) ([]uint, error) {
	var recipients []uint
	err := run(ctx, "notifications.create", func(ctx context.Context) error {
		n.ID = 0
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			recipients, err = deliver(tx, n, audience)
			return err
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	cache.InvalidateUnread(ctx, recipients...)
	return recipients, nil
}

func (r *notificationRepository) ListForUser(
	ctx context.Context,
	userID uint,
	page Page,
) ([]models.UserNotification, int64, error) {
	var (
		items []models.UserNotification
		total int64
	)
	page = page.normalize()
	err := run(ctx, "notifications.list_for_user", func(ctx context.Context) error {
		q := readDB(r.db).WithContext(ctx).Model(&models.UserNotification{}).
			Where("user_id = ?", userID).Session(&gorm.Session{})
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		return q.Preload("Notification").Order("id DESC").
			Limit(page.Limit).Offset(page.Offset).Find(&items).Error
	})
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return items, total, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := cache.Aside(ctx, cache.UnreadCountKey(userID), &count, cache.UnreadCountTTL, func() error {
		return run(ctx, "notifications.unread_count", func(ctx context.Context) error {
			return readDB(r.db).WithContext(ctx).Model(&models.UserNotification{}).
				Where("user_id = ? AND is_read = ?", userID, false).Count(&count).Error
		})
	})
	if err != nil {
		return 0, storeErr(err)
	}
	return count, nil
}

// MarkRead reports whether a delivery flipped to read. A missing or already
// read delivery is a successful no-op.
func (r *notificationRepository) MarkRead(ctx context.Context, userID, notificationID uint) (bool, error) {
	var affected int64
	err := run(ctx, "notifications.mark_read", func(ctx context.Context) error {
		res := r.db.WithContext(ctx).Model(&models.UserNotification{}).
			Where("user_id = ? AND notification_id = ? AND is_read = ?", userID, notificationID, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, storeErr(err)
	}
	if affected > 0 {
		cache.InvalidateUnread(ctx, userID)
	}
	return affected > 0, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	var affected int64
	err := run(ctx, "notifications.mark_all_read", func(ctx context.Context) error {
		res := r.db.WithContext(ctx).Model(&models.UserNotification{}).
			Where("user_id = ? AND is_read = ?", userID, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, storeErr(err)
	}
	cache.InvalidateUnread(ctx, userID)
	return affected, nil
}

func (r *notificationRepository) withRecipientCount(db *gorm.DB) *gorm.DB {
	return db.Select("notifications.*, " +
		"(SELECT COUNT(*) FROM user_notifications WHERE user_notifications.notification_id = notifications.id) AS recipient_count")
}

func (r *notificationRepository) List(ctx context.Context, page Page) ([]models.Notification, int64, error) {
	var (
		items []models.Notification
		total int64
	)
	page = page.normalize()
	err := run(ctx, "notifications.list", func(ctx context.Context) error {
		db := readDB(r.db).WithContext(ctx)
		if err := db.Model(&models.Notification{}).Count(&total).Error; err != nil {
			return err
		}
		return r.withRecipientCount(db.Model(&models.Notification{})).
			Order("notifications.created_at DESC").Order("notifications.id DESC").
			Limit(page.Limit).Offset(page.Offset).Find(&items).Error
	})
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return items, total, nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	err := run(ctx, "notifications.get", func(ctx context.Context) error {
		return notFound(r.withRecipientCount(r.db.WithContext(ctx).Model(&models.Notification{})).
			Where("notifications.id = ?", id).First(&n).Error, "Notification", id)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return &n, nil
}

func (r *notificationRepository) SetImportant(ctx context.Context, id uint, important bool) (*models.Notification, error) {
	var affected int64
	err := run(ctx, "notifications.set_important", func(ctx context.Context) error {
		res := r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("is_important", important)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if affected == 0 {
		return nil, models.NewNotFoundError("Notification", id)
	}
	return r.GetByID(ctx, id)
}

func (r *notificationRepository) Delete(ctx context.Context, id uint) ([]uint, error) {
	var recipients []uint
	err := run(ctx, "notifications.delete", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			recipients = nil
			if err := tx.Model(&models.UserNotification{}).Where("notification_id = ?", id).
				Pluck("user_id", &recipients).Error; err != nil {
				return err
			}
			if err := tx.Where("notification_id = ?", id).Delete(&models.UserNotification{}).Error; err != nil {
				return err
			}
			res := tx.Delete(&models.Notification{}, id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return models.NewNotFoundError("Notification", id)
			}
			return nil
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	cache.InvalidateUnread(ctx, recipients...)
	return recipients, nil
}
