// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"artenis/internal/database"
	"artenis/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB returns an in-memory database with every persistent model
// migrated. It is closed when the test ends.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateUser inserts an active user with a unique username.
func CreateUser(t *testing.T, db *gorm.DB, mutate ...func(*models.User)) *models.User {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)

	u := &models.User{
		Username:             fmt.Sprintf("user%d", n+1),
		Email:                fmt.Sprintf("user%d@example.com", n+1),
		Password:             "hash",
		FirstName:            "Test",
		LastName:             "User",
		Role:                 models.RoleUser,
		Status:               models.UserStatusActive,
		NotificationsEnabled: true,
	}
	for _, m := range mutate {
		m(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost inserts a published post owned by userID.
func CreatePost(t *testing.T, db *gorm.DB, userID uint, mutate ...func(*models.Post)) *models.Post {
	t.Helper()
	p := &models.Post{
		UserID:        userID,
		Type:          models.PostTypeImage,
		Title:         "Post",
		Description:   "A tattoo",
		Tags:          []string{},
		Styles:        []string{},
		MediaURLs:     []string{"https://cdn.example.com/a.webp"},
		Status:        models.PostStatusPublished,
		AllowComments: true,
		AllowSharing:  true,
		CreatedAt:     time.Now().UTC(),
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
