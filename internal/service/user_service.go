package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"artenis/internal/cache"
	"artenis/internal/middleware"
	"artenis/internal/models"
	"artenis/internal/observability"
	"artenis/internal/repository"
	"artenis/internal/reputation"
	"artenis/internal/validation"
)

// ArtistProfiles is the capability role changes need from artist storage.
type ArtistProfiles interface {
	FindByUserID(ctx context.Context, userID uint) (*models.ArtistProfile, error)
	CreateDefault(ctx context.Context, userID uint) (*models.ArtistProfile, error)
	DeleteByUserID(ctx context.Context, userID uint) error
}

type UserService struct {
	users   repository.UserRepository
	follows repository.FollowRepository
	artists ArtistProfiles
	now     clock
}

// UpdateProfileInput holds optional profile changes; nil leaves a field as is.
type UpdateProfileInput struct {
	UserID               uint
	FirstName            *string
	LastName             *string
	Bio                  *string
	Avatar               *string
	Phone                *string
	Interests            []string
	NotificationsEnabled *bool
}

// Eligibility reports whether a user may request the artist role.
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Missing  []string `json:"missing"`
}

func NewUserService(users repository.UserRepository, follows repository.FollowRepository, artists ArtistProfiles) *UserService {
	return &UserService{users: users, follows: follows, artists: artists, now: utcNow}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetProfile returns the public profile with derived counters. viewerID may
// be 0 for anonymous requests.
func (s *UserService) GetProfile(ctx context.Context, id, viewerID uint) (*models.UserProfile, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	profile := &models.UserProfile{User: *user, Completeness: user.ProfileCompleteness()}
	if profile.FollowersCount, err = s.follows.CountFollowers(ctx, id); err != nil {
		return nil, err
	}
	if profile.FollowingCount, err = s.follows.CountFollowing(ctx, id); err != nil {
		return nil, err
	}
	activity, err := s.users.Activity(ctx, id)
	if err != nil {
		return nil, err
	}
	profile.PostsCount = activity.Posts

	if viewerID != 0 && viewerID != id {
		if profile.IsFollowing, err = s.follows.Exists(ctx, viewerID, id); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	const (
		maxNameLen  = 50
		maxBioLen   = 500
		maxPhoneLen = 20
	)

	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		if utf8.RuneCountInString(v) > maxNameLen {
			return nil, models.NewValidationError("First name too long (max 50 characters)")
		}
		user.FirstName = v
	}
	if in.LastName != nil {
		v := strings.TrimSpace(*in.LastName)
		if utf8.RuneCountInString(v) > maxNameLen {
			return nil, models.NewValidationError("Last name too long (max 50 characters)")
		}
		user.LastName = v
	}
	if in.Bio != nil {
		if utf8.RuneCountInString(*in.Bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = *in.Bio
	}
	if in.Avatar != nil {
		user.Avatar = strings.TrimSpace(*in.Avatar)
	}
	if in.Phone != nil {
		v := strings.TrimSpace(*in.Phone)
		if len(v) > maxPhoneLen {
			return nil, models.NewValidationError("Phone too long (max 20 characters)")
		}
		if v != user.Phone {
			user.PhoneVerified = false
		}
		user.Phone = v
	}
	if in.Interests != nil {
		user.Interests = validation.NormalizeTags(in.Interests)
	}
	if in.NotificationsEnabled != nil {
		user.NotificationsEnabled = *in.NotificationsEnabled
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Search(ctx context.Context, query string, p Pagination) (PageResult[models.User], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return PageResult[models.User]{}, models.NewValidationError("Search query is required")
	}
	users, total, err := s.users.Search(ctx, query, p.repoPage())
	if err != nil {
		return PageResult[models.User]{}, err
	}
	return newPageResult(users, total, p), nil
}

// Stats gathers the reputation inputs of a user.
func (s *UserService) Stats(ctx context.Context, user *models.User) (*reputation.Stats, error) {
	activity, err := s.users.Activity(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	followers, err := s.follows.CountFollowers(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	last := user.CreatedAt
	if activity.LastPostAt != nil && activity.LastPostAt.After(last) {
		last = *activity.LastPostAt
	}
	if user.LastLoginAt != nil && user.LastLoginAt.After(last) {
		last = *user.LastLoginAt
	}

	return &reputation.Stats{
		Posts:          activity.Posts,
		Likes:          activity.Likes,
		Comments:       activity.Comments,
		Followers:      followers,
		EmailVerified:  user.EmailVerified,
		PhoneVerified:  user.PhoneVerified,
		PremiumActive:  user.IsPremiumActive(s.now()),
		IsArtist:       user.IsArtist(),
		JoinedAt:       user.CreatedAt,
		LastActivityAt: last,
	}, nil
}

// Reputation computes the snapshot, cached for a few minutes.
func (s *UserService) Reputation(ctx context.Context, id uint) (*reputation.Snapshot, error) {
	var snap reputation.Snapshot
	err := cache.Aside(ctx, cache.ReputationKey(id), &snap, cache.ReputationTTL, func() error {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		stats, err := s.Stats(ctx, user)
		if err != nil {
			return err
		}
		computed, err := reputation.Calculate(id, stats, s.now())
		if err != nil {
			return err
		}
		observability.ReputationComputations.WithLabelValues(strconv.Itoa(computed.Level)).Inc()
		snap = *computed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *UserService) ArtistEligibility(ctx context.Context, id uint) (*Eligibility, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsArtist() {
		return &Eligibility{Eligible: false, Missing: []string{"already an artist"}}, nil
	}
	stats, err := s.Stats(ctx, user)
	if err != nil {
		return nil, err
	}
	missing := reputation.ArtistEligibility(stats, user.ProfileCompleteness().IsComplete, s.now())
	if missing == nil {
		missing = []string{}
	}
	return &Eligibility{Eligible: len(missing) == 0, Missing: missing}, nil
}

// ChangeRole is admin only. Becoming an artist creates a default profile;
// leaving the artist role deletes it.
func (s *UserService) ChangeRole(ctx context.Context, actorID, targetID uint, role models.UserRole) (*models.User, error) {
	if !role.Valid() {
		return nil, models.NewValidationError("Invalid role")
	}
	if err := requireAdmin(ctx, s.users, actorID); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}

	switch {
	case role == models.RoleArtist:
		if _, err := s.artists.FindByUserID(ctx, targetID); err != nil {
			if !models.IsCode(err, models.CodeNotFound) {
				return nil, err
			}
			if _, err := s.artists.CreateDefault(ctx, targetID); err != nil {
				return nil, err
			}
		}
	case user.Role == models.RoleArtist:
		if err := s.artists.DeleteByUserID(ctx, targetID); err != nil {
			return nil, err
		}
	}

	if err := s.users.UpdateRole(ctx, targetID, role); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "user role changed",
		slog.Uint64("user_id", uint64(targetID)),
		slog.String("from", string(user.Role)),
		slog.String("to", string(role)),
		slog.Uint64("actor_id", uint64(actorID)))
	user.Role = role
	return user, nil
}

// Deactivate marks the account inactive. Users may deactivate themselves;
// admins may deactivate anyone.
func (s *UserService) Deactivate(ctx context.Context, actorID, targetID uint) error {
	if actorID != targetID {
		if err := requireAdmin(ctx, s.users, actorID); err != nil {
			return err
		}
	}
	return s.users.UpdateStatus(ctx, targetID, models.UserStatusInactive)
}

func requireAdmin(ctx context.Context, users repository.UserRepository, userID uint) error {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.NewUnauthorizedError("Unknown user")
		}
		return err
	}
	if !user.HasPermission(models.PermAdminister) {
		return models.NewForbiddenError("Admin access required")
	}
	return nil
}
