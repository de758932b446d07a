package server

import (
	"time"

	"bloghub/internal/models"
)

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// AuthResponse is returned by login. The token is also set as an HttpOnly cookie.
type AuthResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type UserResponse struct {
	User *models.User `json:"user"`
}

type PostResponse struct {
	Post *models.BlogPost `json:"post"`
}

type CommentResponse struct {
	Comment *models.Comment `json:"comment"`
}

type CommentsResponse struct {
	Comments []models.Comment `json:"comments"`
}

type PostsResponse struct {
	Posts []models.BlogPost `json:"posts"`
}

type UsersResponse struct {
	Users []models.User `json:"users"`
}

// UnreadCountResponse feeds the notification badge.
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

type MarkReadResponse struct {
	NotificationID uint `json:"notification_id"`
	Changed        bool `json:"changed"`
}

type MarkAllReadResponse struct {
	Marked int64 `json:"marked"`
}

type BackfillResponse struct {
	Updated int64 `json:"updated"`
}

type NotificationResponse struct {
	Notification *models.Notification `json:"notification"`
}

type DeleteUserResponse struct {
	UserID  uint                   `json:"user_id"`
	Summary *models.CascadeSummary `json:"summary"`
}

type FeatureFlagsResponse struct {
	Raw     map[string]string `json:"raw"`
	Enabled map[string]bool   `json:"enabled"`
}

// SetRoleRequest is the body of PUT /api/admin/users/:id/role.
type SetRoleRequest struct {
	Role string `json:"role"`
}
