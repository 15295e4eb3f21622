// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"artenis/internal/cache"
	"artenis/internal/models"

	"gorm.io/gorm"
)

// UserActivity aggregates what a user has produced, as read from posts.
type UserActivity struct {
	Posts      int64
	Likes      int64
	Comments   int64
	LastPostAt *time.Time
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id uint, role models.UserRole) error
	UpdateStatus(ctx context.Context, id uint, status models.UserStatus) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	Search(ctx context.Context, query string, page Page) ([]models.User, int64, error)
	Activity(ctx context.Context, id uint) (*UserActivity, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID is served from the cache. The cached copy carries no password hash,
// so credential checks must go through GetByEmail or GetByUsername.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return mapReadError(readDB(r.db).WithContext(ctx).First(&user, id).Error, "User", id)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := readDB(r.db).WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := readDB(r.db).WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return mapWriteError(r.db.WithContext(ctx).Create(user).Error, "User already exists")
}

// Update saves profile fields. The password column is never written here,
// since users read through the cache carry no hash.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Omit("Password").Save(user).Error; err != nil {
		return mapWriteError(err, "Username or email already taken")
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id uint, role models.UserRole) error {
	return r.updateColumn(ctx, id, "role", role)
}

func (r *userRepository) UpdateStatus(ctx context.Context, id uint, status models.UserStatus) error {
	return r.updateColumn(ctx, id, "status", status)
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.updateColumn(ctx, id, "last_login_at", at)
}

func (r *userRepository) updateColumn(ctx context.Context, id uint, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// Search matches active users by username, first or last name.
func (r *userRepository) Search(ctx context.Context, query string, page Page) ([]models.User, int64, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	q := readDB(r.db).WithContext(ctx).Model(&models.User{}).
		Where("status = ?", models.UserStatusActive).
		Where("LOWER(username) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	if err := page.apply(q.Order("username ASC")).Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

// Activity counts non-deleted posts and the engagement they received.
func (r *userRepository) Activity(ctx context.Context, id uint) (*UserActivity, error) {
	db := readDB(r.db).WithContext(ctx)

	var totals struct {
		Posts    int64
		Likes    int64
		Comments int64
	}
	err := db.Model(&models.Post{}).
		Select("COUNT(*) AS posts, COALESCE(SUM(likes_count), 0) AS likes, COALESCE(SUM(comments_count), 0) AS comments").
		Where("user_id = ? AND status <> ?", id, models.PostStatusDeleted).
		Scan(&totals).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	activity := &UserActivity{Posts: totals.Posts, Likes: totals.Likes, Comments: totals.Comments}
	if totals.Posts == 0 {
		return activity, nil
	}

	var latest []time.Time
	err = db.Model(&models.Post{}).
		Where("user_id = ? AND status <> ?", id, models.PostStatusDeleted).
		Order("created_at DESC").
		Limit(1).
		Pluck("created_at", &latest).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(latest) > 0 {
		activity.LastPostAt = &latest[0]
	}
	return activity, nil
}
