package repository

import (
	"context"

	"artenis/internal/models"

	"gorm.io/gorm"
)

// FollowRepository stores the directed follow graph.
type FollowRepository interface {
	Create(ctx context.Context, followerID, followingID uint) error
	Delete(ctx context.Context, followerID, followingID uint) (bool, error)
	Exists(ctx context.Context, followerID, followingID uint) (bool, error)
	CountFollowers(ctx context.Context, userID uint) (int64, error)
	CountFollowing(ctx context.Context, userID uint) (int64, error)
	ListFollowers(ctx context.Context, userID uint, page Page) ([]models.User, int64, error)
	ListFollowing(ctx context.Context, userID uint, page Page) ([]models.User, int64, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Create(ctx context.Context, followerID, followingID uint) error {
	f := &models.Follow{FollowerID: followerID, FollowingID: followingID}
	return mapWriteError(r.db.WithContext(ctx).Create(f).Error, "Already following this user")
}

// Delete reports whether an edge was removed.
func (r *followRepository) Delete(ctx context.Context, followerID, followingID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followingID uint) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *followRepository) CountFollowers(ctx context.Context, userID uint) (int64, error) {
	return r.count(ctx, "following_id = ?", userID)
}

func (r *followRepository) CountFollowing(ctx context.Context, userID uint) (int64, error) {
	return r.count(ctx, "follower_id = ?", userID)
}

func (r *followRepository) count(ctx context.Context, where string, userID uint) (int64, error) {
	var n int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Follow{}).Where(where, userID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *followRepository) ListFollowers(ctx context.Context, userID uint, page Page) ([]models.User, int64, error) {
	return r.list(ctx, "follows.follower_id", "follows.following_id", userID, page)
}

func (r *followRepository) ListFollowing(ctx context.Context, userID uint, page Page) ([]models.User, int64, error) {
	return r.list(ctx, "follows.following_id", "follows.follower_id", userID, page)
}

// list joins users on joinCol and filters edges by matchCol, newest edge first.
func (r *followRepository) list(ctx context.Context, joinCol, matchCol string, userID uint, page Page) ([]models.User, int64, error) {
	q := readDB(r.db).WithContext(ctx).Model(&models.User{}).
		Joins("JOIN follows ON users.id = "+joinCol).
		Where(matchCol+" = ?", userID).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	if err := page.apply(q.Select("users.*").Order("follows.created_at DESC")).Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}
