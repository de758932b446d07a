package models

import "time"

// Like is a (user, post) pairing. Unliking deletes the row.
type Like struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	UserID  uint      `gorm:"not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	PostID  uint      `gorm:"not null;uniqueIndex:idx_likes_user_post;index" json:"post_id"`
	LikedAt time.Time `gorm:"not null" json:"liked_at"`
}

// Bookmark is a (user, post) pairing with the same toggle semantics as Like.
type Bookmark struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_bookmarks_user_post" json:"user_id"`
	PostID       uint      `gorm:"not null;uniqueIndex:idx_bookmarks_user_post;index" json:"post_id"`
	Post         *BlogPost `gorm:"foreignKey:PostID;constraint:OnDelete:NO ACTION" json:"post,omitempty"`
	BookmarkedAt time.Time `gorm:"not null" json:"bookmarked_at"`
}

// EngagementKind selects the relation a toggle operates on.
type EngagementKind string

const (
	EngagementLike     EngagementKind = "like"
	EngagementBookmark EngagementKind = "bookmark"
)

// EngagementState is the presence of the relation after a toggle.
type EngagementState string

const (
	EngagementOn  EngagementState = "on"
	EngagementOff EngagementState = "off"
)
