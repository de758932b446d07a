package database

import "bloghub/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.BlogPost{},
		&models.Comment{},
		&models.Like{},
		&models.Bookmark{},
		&models.Notification{},
		&models.UserNotification{},
	}
}
