package database

import (
	"context"
	"fmt"
	"log/slog"

	"bloghub/internal/middleware"

	"gorm.io/gorm"
)

// supportingIndexes back the feed and trending queries. They are composite
// and so are not expressible through struct tags on a single field.
var supportingIndexes = []struct {
	name  string
	table string
	sql   string
}{
	{"idx_likes_post_liked_at", "likes", "CREATE INDEX IF NOT EXISTS idx_likes_post_liked_at ON likes (post_id, liked_at)"},
	{"idx_blog_posts_category_created", "blog_posts", "CREATE INDEX IF NOT EXISTS idx_blog_posts_category_created ON blog_posts (category, created_at)"},
	{"idx_user_notifications_unread", "user_notifications", "CREATE INDEX IF NOT EXISTS idx_user_notifications_unread ON user_notifications (user_id, is_read)"},
}

// SchemaStatus reports which managed tables and indexes exist.
type SchemaStatus struct {
	Driver         string
	MissingTables  []string
	MissingIndexes []string
}

// Ready reports whether every managed table and index exists.
func (s *SchemaStatus) Ready() bool {
	return len(s.MissingTables) == 0 && len(s.MissingIndexes) == 0
}

// ApplySchema auto-migrates every persistent model and creates the supporting indexes.
func ApplySchema(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.InfoContext(ctx, "Running GORM AutoMigrate", slog.String("driver", db.Dialector.Name()))
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	for _, idx := range supportingIndexes {
		if err := db.WithContext(ctx).Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	middleware.Logger.InfoContext(ctx, "Database migration completed")
	return nil
}

// GetSchemaStatus inspects the live schema.
func GetSchemaStatus(ctx context.Context, db *gorm.DB) (*SchemaStatus, error) {
	status := &SchemaStatus{Driver: db.Dialector.Name()}
	m := db.WithContext(ctx).Migrator()

	for _, model := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse model: %w", err)
		}
		if !m.HasTable(model) {
			status.MissingTables = append(status.MissingTables, stmt.Schema.Table)
		}
	}
	if len(status.MissingTables) > 0 {
		return status, nil
	}

	for _, idx := range supportingIndexes {
		if !m.HasIndex(idx.table, idx.name) {
			status.MissingIndexes = append(status.MissingIndexes, idx.name)
		}
	}
	return status, nil
}
