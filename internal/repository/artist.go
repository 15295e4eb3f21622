package repository

import (
	"context"

	"artenis/internal/cache"
	"artenis/internal/models"

	"gorm.io/gorm"
)

// ArtistRepository manages artist profiles, keyed by owning user.
type ArtistRepository interface {
	FindByUserID(ctx context.Context, userID uint) (*models.ArtistProfile, error)
	CreateDefault(ctx context.Context, userID uint) (*models.ArtistProfile, error)
	DeleteByUserID(ctx context.Context, userID uint) error
	Update(ctx context.Context, profile *models.ArtistProfile) error
}

type artistRepository struct {
	db *gorm.DB
}

func NewArtistRepository(db *gorm.DB) ArtistRepository {
	return &artistRepository{db: db}
}

func (r *artistRepository) FindByUserID(ctx context.Context, userID uint) (*models.ArtistProfile, error) {
	var profile models.ArtistProfile
	err := cache.Aside(ctx, cache.ArtistKey(userID), &profile, cache.ArtistTTL, func() error {
		err := readDB(r.db).WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
		return mapReadError(err, "ArtistProfile", userID)
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateDefault inserts a pending profile with booking enabled.
func (r *artistRepository) CreateDefault(ctx context.Context, userID uint) (*models.ArtistProfile, error) {
	profile := &models.ArtistProfile{
		UserID:         userID,
		Styles:         []string{},
		Status:         models.ArtistStatusPending,
		BookingEnabled: true,
	}
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return nil, mapWriteError(err, "Artist profile already exists")
	}
	cache.InvalidateArtist(ctx, userID)
	return profile, nil
}

func (r *artistRepository) DeleteByUserID(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.ArtistProfile{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateArtist(ctx, userID)
	return nil
}

func (r *artistRepository) Update(ctx context.Context, profile *models.ArtistProfile) error {
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateArtist(ctx, profile.UserID)
	return nil
}
