package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"artenis/internal/models"
	"artenis/internal/repository"
	"artenis/internal/validation"
)

type ArtistService struct {
	artists repository.ArtistRepository
	users   repository.UserRepository
}

type UpdateArtistInput struct {
	UserID         uint
	BusinessName   *string
	Bio            *string
	Styles         []string
	City           *string
	BookingEnabled *bool
	HourlyRate     *float64
}

func NewArtistService(artists repository.ArtistRepository, users repository.UserRepository) *ArtistService {
	return &ArtistService{artists: artists, users: users}
}

// Get returns the artist profile of userID together with the user.
func (s *ArtistService) Get(ctx context.Context, userID uint) (*models.ArtistProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsArtist() {
		return nil, models.NewNotFoundError("ArtistProfile", userID)
	}
	profile, err := s.artists.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.User = user
	return profile, nil
}

func (s *ArtistService) UpdateMine(ctx context.Context, in UpdateArtistInput) (*models.ArtistProfile, error) {
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsArtist() {
		return nil, models.NewForbiddenError("Only artists have an artist profile")
	}
	profile, err := s.artists.FindByUserID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.BusinessName != nil {
		v := strings.TrimSpace(*in.BusinessName)
		if utf8.RuneCountInString(v) > 100 {
			return nil, models.NewValidationError("Business name too long (max 100 characters)")
		}
		profile.BusinessName = v
	}
	if in.Bio != nil {
		if utf8.RuneCountInString(*in.Bio) > 1000 {
			return nil, models.NewValidationError("Bio too long (max 1000 characters)")
		}
		profile.Bio = *in.Bio
	}
	if in.Styles != nil {
		profile.Styles = validation.NormalizeStyles(in.Styles)
	}
	if in.City != nil {
		profile.City = strings.ToLower(strings.TrimSpace(*in.City))
	}
	if in.BookingEnabled != nil {
		profile.BookingEnabled = *in.BookingEnabled
	}
	if in.HourlyRate != nil {
		if *in.HourlyRate < 0 {
			return nil, models.NewValidationError("Hourly rate cannot be negative")
		}
		rate := *in.HourlyRate
		profile.HourlyRate = &rate
	}

	profile.User = nil
	if err := s.artists.Update(ctx, profile); err != nil {
		return nil, err
	}
	profile.User = user
	return profile, nil
}
