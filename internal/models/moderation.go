package models

// CascadeSummary counts the rows a moderation delete removed.
type CascadeSummary struct {
	Users            int64 `json:"users"`
	Posts            int64 `json:"posts"`
	Comments         int64 `json:"comments"`
	CommentsDetached int64 `json:"comments_detached"`
	Likes            int64 `json:"likes"`
	Bookmarks        int64 `json:"bookmarks"`
	Deliveries       int64 `json:"deliveries"`
	// MediaPaths are blobs to remove once the delete has committed.
	MediaPaths []string `json:"-"`
}

// Empty reports whether nothing was removed.
func (s *CascadeSummary) Empty() bool {
	return s.Users == 0 && s.Posts == 0 && s.Comments == 0 && s.Likes == 0 &&
		s.Bookmarks == 0 && s.Deliveries == 0 && s.CommentsDetached == 0
}
