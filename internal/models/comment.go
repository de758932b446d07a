package models

import "time"

// Comment belongs to a post and optionally replies to an earlier comment on the same post.
// Author is a display name so anonymous comments need no account.
type Comment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PostID          uint      `gorm:"not null;index" json:"post_id"`
	ParentCommentID *uint     `gorm:"index" json:"parent_comment_id,omitempty"`
	UserID          *uint     `gorm:"index" json:"user_id,omitempty"`
	Author          string    `gorm:"size:100;not null" json:"author"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	Replies         []Comment `gorm:"foreignKey:ParentCommentID" json:"replies,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// IsReply reports whether the comment has a parent.
func (c *Comment) IsReply() bool {
	return c.ParentCommentID != nil
}
