// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"testing"

	"bloghub/internal/database"
	"bloghub/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a migrated in-memory SQLite database that lives for the test.
// The pool is pinned to one connection since every :memory: connection is a
// separate database.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.ApplySchema(context.Background(), db))
	return db
}

// CreateUser inserts a user with a bcrypt-hashed "Password1" and the given status.
func CreateUser(t testing.TB, db *gorm.DB, name string, status models.AccessStatus) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Name:         name,
		Email:        name + "@example.com",
		Password:     string(hash),
		AccessStatus: status,
		Role:         models.RoleMember,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost inserts a post owned by userID.
func CreatePost(t testing.TB, db *gorm.DB, userID uint, title string, category models.Category) *models.BlogPost {
	t.Helper()
	p := &models.BlogPost{
		Title:    title,
		Content:  "Body of " + title,
		Category: category,
		UserID:   userID,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
