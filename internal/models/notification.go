package models

import "time"

// Notification is immutable content delivered to one or more users.
type Notification struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	Title         string             `gorm:"size:200;not null" json:"title"`
	Message       string             `gorm:"type:text;not null" json:"message"`
	IsImportant   bool               `gorm:"not null;default:false" json:"is_important"`
	IsForCreators bool               `gorm:"not null;default:false" json:"is_for_creators"`
	Deliveries    []UserNotification `gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE" json:"-"`
	// RecipientCount is not persisted; computed for admin listings
	RecipientCount int       `gorm:"->;-:migration" json:"recipient_count,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// UserNotification is one recipient's delivery of a notification.
type UserNotification struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	UserID         uint          `gorm:"not null;uniqueIndex:idx_user_notifications_pair" json:"user_id"`
	NotificationID uint          `gorm:"not null;uniqueIndex:idx_user_notifications_pair;index" json:"notification_id"`
	Notification   *Notification `gorm:"foreignKey:NotificationID" json:"notification,omitempty"`
	IsRead         bool          `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt         *time.Time    `json:"read_at,omitempty"`
}

// AudienceKind selects how fan-out resolves recipients.
type AudienceKind string

const (
	AudiencePersonal  AudienceKind = "personal"
	AudienceBroadcast AudienceKind = "broadcast"
)

// Audience is a recipient selector resolved at fan-out time.
type Audience struct {
	Kind AudienceKind
	// UserID is set for personal audiences.
	UserID uint
	// CreatorsOnly narrows a broadcast to users owning at least one post.
	CreatorsOnly bool
}

// Personal targets exactly one user.
func Personal(userID uint) Audience {
	return Audience{Kind: AudiencePersonal, UserID: userID}
}

// Broadcast targets every user, or only content creators.
func Broadcast(creatorsOnly bool) Audience {
	return Audience{Kind: AudienceBroadcast, CreatorsOnly: creatorsOnly}
}
