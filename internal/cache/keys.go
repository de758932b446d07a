package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserTTL        = 5 * time.Minute
	TrendingTTL    = 5 * time.Minute
	UnreadCountTTL = time.Minute
	CategoryTTL    = time.Hour
)

const trendingKey = "posts:trending"

func UserKey(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

func TrendingKey() string {
	return trendingKey
}

func CategoryCountsKey() string {
	return "posts:category_counts"
}

func UnreadCountKey(userID uint) string {
	return fmt.Sprintf("notifications:unread:%d", userID)
}

// Invalidate deletes keys; it is a no-op without Redis.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidatePostListings drops cached aggregates that depend on the post set.
func InvalidatePostListings(ctx context.Context) {
	Invalidate(ctx, TrendingKey(), CategoryCountsKey())
}

// InvalidateUnread drops the cached unread counts for userIDs.
func InvalidateUnread(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, UnreadCountKey(id))
	}
	Invalidate(ctx, keys...)
}
