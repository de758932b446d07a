package models

import (
	"strings"
	"time"
)

// Category is one of the fixed post categories.
type Category string

const (
	CategorySports     Category = "Sports"
	CategoryMovies     Category = "Movies"
	CategoryCooking    Category = "Cooking"
	CategoryTechnology Category = "Technology"
	CategoryEducation  Category = "Education"
	CategoryTravel     Category = "Travel"
	CategoryFashion    Category = "Fashion"
	CategoryNews       Category = "News"
	CategoryWildlife   Category = "Wildlife"
	CategoryOpinion    Category = "Opinion"
	CategoryDailylife  Category = "Dailylife"
	CategoryOther      Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategorySports, CategoryMovies, CategoryCooking, CategoryTechnology,
	CategoryEducation, CategoryTravel, CategoryFashion, CategoryNews,
	CategoryWildlife, CategoryOpinion, CategoryDailylife, CategoryOther,
}

// ParseCategory matches raw case-insensitively. The empty string yields ("", true).
func ParseCategory(raw string) (Category, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", true
	}
	for _, c := range Categories {
		if strings.EqualFold(string(c), raw) {
			return c, true
		}
	}
	return "", false
}

// BlogPost is a post owned by exactly one user.
type BlogPost struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"size:200;not null" json:"title"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	Tags          string    `gorm:"size:500" json:"tags,omitempty"`
	Category      Category  `gorm:"type:varchar(20);index" json:"category,omitempty"`
	ImagePath     string    `json:"image_path,omitempty"`
	VideoPath     string    `json:"video_path,omitempty"`
	IsAdminChoice bool      `gorm:"not null;default:false;index" json:"is_admin_choice"`
	Views         int       `gorm:"not null;default:0" json:"views"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	User          *User     `gorm:"foreignKey:UserID" json:"author,omitempty"`
	Comments      []Comment `gorm:"foreignKey:PostID" json:"-"`
	Likes         []Like    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	// LikesCount is not persisted; computed at query time
	LikesCount int `gorm:"->;-:migration" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int       `gorm:"->;-:migration" json:"comments_count"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TagList splits the comma separated tags.
func (p *BlogPost) TagList() []string {
	if strings.TrimSpace(p.Tags) == "" {
		return nil
	}
	parts := strings.Split(p.Tags, ",")
	out := make([]string, 0, len(parts))
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// MediaPaths returns the stored blob paths referenced by the post.
func (p *BlogPost) MediaPaths() []string {
	var paths []string
	if p.ImagePath != "" {
		paths = append(paths, p.ImagePath)
	}
	if p.VideoPath != "" {
		paths = append(paths, p.VideoPath)
	}
	return paths
}
