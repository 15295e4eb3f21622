package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"artenis/internal/models"
	"artenis/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUserService(users *userRepoStub, follows *followRepoStub, artists *artistRepoStub) *UserService {
	svc := NewUserService(users, follows, artists)
	svc.now = fixedClock
	return svc
}

func strPtr(s string) *string { return &s }

func TestUserService_GetProfile(t *testing.T) {
	t.Parallel()
	users := noopUserRepo()
	users.getByIDFn = usersByID(&models.User{ID: 2, Username: "rosa", Email: "rosa@example.com", FirstName: "Rosa"})
	users.activityFn = func(_ context.Context, _ uint) (*repository.UserActivity, error) {
		return &repository.UserActivity{Posts: 4}, nil
	}
	follows := noopFollowRepo()
	follows.countFollowersFn = func(_ context.Context, _ uint) (int64, error) { return 12, nil }
	follows.countFollowingFn = func(_ context.Context, _ uint) (int64, error) { return 3, nil }
	follows.existsFn = func(_ context.Context, follower, following uint) (bool, error) {
		return follower == 9 && following == 2, nil
	}
	svc := newTestUserService(users, follows, noopArtistRepo())

	profile, err := svc.GetProfile(context.Background(), 2, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(12), profile.FollowersCount)
	assert.Equal(t, int64(3), profile.FollowingCount)
	assert.Equal(t, int64(4), profile.PostsCount)
	assert.True(t, profile.IsFollowing)
	assert.False(t, profile.Completeness.IsComplete)
	assert.Contains(t, profile.Completeness.MissingFields, "last_name")

	_, err = svc.GetProfile(context.Background(), 404, 0)
	assertNotFoundError(t, err)
}

func TestUserService_UpdateProfile(t *testing.T) {
	t.Parallel()

	t.Run("bio too long", func(t *testing.T) {
		t.Parallel()
		svc := newTestUserService(noopUserRepo(), noopFollowRepo(), noopArtistRepo())
		_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
			UserID: 1,
			Bio:    strPtr(strings.Repeat("x", 501)),
		})
		assertValidationError(t, err)
	})

	t.Run("phone change resets verification", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		users.getByIDFn = usersByID(&models.User{ID: 1, Phone: "111", PhoneVerified: true, Bio: "keep"})
		var saved *models.User
		users.updateFn = func(_ context.Context, u *models.User) error {
			saved = u
			return nil
		}
		svc := newTestUserService(users, noopFollowRepo(), noopArtistRepo())

		_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
			UserID:    1,
			Phone:     strPtr(" 222 "),
			Interests: []string{" Realismo ", "realismo", "Blackwork "},
		})
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, "222", saved.Phone)
		assert.False(t, saved.PhoneVerified)
		assert.Equal(t, "keep", saved.Bio)
		assert.Equal(t, []string{"realismo", "blackwork"}, saved.Interests)
	})

	t.Run("same phone keeps verification", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		users.getByIDFn = usersByID(&models.User{ID: 1, Phone: "111", PhoneVerified: true})
		svc := newTestUserService(users, noopFollowRepo(), noopArtistRepo())

		user, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, Phone: strPtr("111")})
		require.NoError(t, err)
		assert.True(t, user.PhoneVerified)
	})
}

func TestUserService_SearchRequiresQuery(t *testing.T) {
	t.Parallel()
	users := noopUserRepo()
	users.searchFn = func(_ context.Context, q string, page repository.Page) ([]models.User, int64, error) {
		assert.Equal(t, "ro", q)
		assert.Equal(t, repository.Page{Limit: 10, Offset: 10}, page)
		return []models.User{{ID: 1}}, 11, nil
	}
	svc := newTestUserService(users, noopFollowRepo(), noopArtistRepo())

	_, err := svc.Search(context.Background(), "  ", Pagination{})
	assertValidationError(t, err)

	res, err := svc.Search(context.Background(), " ro ", Pagination{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(11), res.Total)
	assert.Equal(t, 2, res.TotalPages)
	assert.False(t, res.HasNextPage)
}

func TestUserService_Reputation(t *testing.T) {
	t.Parallel()
	lastPost := fixedNow.Add(-24 * time.Hour)
	users := noopUserRepo()
	users.getByIDFn = usersByID(&models.User{
		ID:            5,
		EmailVerified: true,
		CreatedAt:     fixedNow.Add(-10 * 24 * time.Hour),
	})
	users.activityFn = func(_ context.Context, _ uint) (*repository.UserActivity, error) {
		return &repository.UserActivity{Posts: 10, Likes: 20, LastPostAt: &lastPost}, nil
	}
	follows := noopFollowRepo()
	follows.countFollowersFn = func(_ context.Context, _ uint) (int64, error) { return 10, nil }
	svc := newTestUserService(users, follows, noopArtistRepo())

	snap, err := svc.Reputation(context.Background(), 5)
	require.NoError(t, err)
	// 10 posts * 5 + 20 likes + 10 followers * 3 + 50 for a verified email.
	assert.Equal(t, int64(150), snap.Score)
	assert.Equal(t, 2, snap.Level)
	assert.Contains(t, snap.Badges, "email-verified")

	_, err = svc.Reputation(context.Background(), 77)
	assertNotFoundError(t, err)
}

func TestUserService_StatsUsesLatestActivity(t *testing.T) {
	t.Parallel()
	lastPost := fixedNow.Add(-48 * time.Hour)
	lastLogin := fixedNow.Add(-2 * time.Hour)
	users := noopUserRepo()
	users.activityFn = func(_ context.Context, _ uint) (*repository.UserActivity, error) {
		return &repository.UserActivity{LastPostAt: &lastPost}, nil
	}
	svc := newTestUserService(users, noopFollowRepo(), noopArtistRepo())

	stats, err := svc.Stats(context.Background(), &models.User{ID: 1, CreatedAt: fixedNow.AddDate(0, -1, 0), LastLoginAt: &lastLogin})
	require.NoError(t, err)
	assert.Equal(t, lastLogin, stats.LastActivityAt)
}

func TestUserService_ArtistEligibility(t *testing.T) {
	t.Parallel()
	users := noopUserRepo()
	users.getByIDFn = usersByID(
		&models.User{ID: 1, Role: models.RoleArtist},
		&models.User{ID: 2, Role: models.RoleUser, CreatedAt: fixedNow},
	)
	svc := newTestUserService(users, noopFollowRepo(), noopArtistRepo())

	res, err := svc.ArtistEligibility(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, res.Eligible)

	res, err = svc.ArtistEligibility(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Contains(t, res.Missing, "email must be verified")
	assert.Contains(t, res.Missing, "account must be at least 30 days old")
}

func TestUserService_ChangeRole(t *testing.T) {
	t.Parallel()
	admin := &models.User{ID: 1, Role: models.RoleAdmin, Status: models.UserStatusActive}

	t.Run("promote creates artist profile", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		users.getByIDFn = usersByID(admin, &models.User{ID: 2, Role: models.RoleUser})
		var newRole models.UserRole
		users.updateRoleFn = func(_ context.Context, _ uint, r models.UserRole) error {
			newRole = r
			return nil
		}
		artists := noopArtistRepo()
		artists.findByUserIDFn = func(_ context.Context, id uint) (*models.ArtistProfile, error) {
			return nil, models.NewNotFoundError("ArtistProfile", id)
		}
		var created bool
		artists.createDefaultFn = func(_ context.Context, id uint) (*models.ArtistProfile, error) {
			created = true
			return &models.ArtistProfile{UserID: id}, nil
		}
		svc := newTestUserService(users, noopFollowRepo(), artists)

		user, err := svc.ChangeRole(context.Background(), 1, 2, models.RoleArtist)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, models.RoleArtist, newRole)
		assert.Equal(t, models.RoleArtist, user.Role)
	})

	t.Run("demote deletes artist profile", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		users.getByIDFn = usersByID(admin, &models.User{ID: 3, Role: models.RoleArtist})
		artists := noopArtistRepo()
		var deleted uint
		artists.deleteByUserIDFn = func(_ context.Context, id uint) error {
			deleted = id
			return nil
		}
		svc := newTestUserService(users, noopFollowRepo(), artists)

		_, err := svc.ChangeRole(context.Background(), 1, 3, models.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, uint(3), deleted)
	})

	t.Run("non admin forbidden", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		svc := newTestUserService(users, noopFollowRepo(), noopArtistRepo())
		_, err := svc.ChangeRole(context.Background(), 4, 2, models.RoleArtist)
		assertForbiddenError(t, err)
	})

	t.Run("unknown role", func(t *testing.T) {
		t.Parallel()
		svc := newTestUserService(noopUserRepo(), noopFollowRepo(), noopArtistRepo())
		_, err := svc.ChangeRole(context.Background(), 1, 2, models.UserRole("owner"))
		assertValidationError(t, err)
	})
}

func TestUserService_Deactivate(t *testing.T) {
	t.Parallel()
	users := noopUserRepo()
	var status models.UserStatus
	users.updateStatusFn = func(_ context.Context, _ uint, s models.UserStatus) error {
		status = s
		return nil
	}
	svc := newTestUserService(users, noopFollowRepo(), noopArtistRepo())

	require.NoError(t, svc.Deactivate(context.Background(), 6, 6))
	assert.Equal(t, models.UserStatusInactive, status)

	err := svc.Deactivate(context.Background(), 6, 7)
	assertForbiddenError(t, err)
}
