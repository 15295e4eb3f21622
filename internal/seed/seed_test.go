package seed

import (
	"testing"
	"time"

	"artenis/internal/models"
	"artenis/internal/testutil"
	"artenis/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPost_DryRun(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, MaxDays: 30})
	user, err := f.CreateUser()
	require.NoError(t, err)
	assert.NotZero(t, user.ID)

	p := f.BuildPost(user)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, models.PostStatusPublished, p.Status)
	assert.NotEmpty(t, p.MediaURLs)
	assert.Equal(t, models.DeterminePostType(p.MediaURLs), p.Type)
	require.NotNil(t, p.Location)
	assert.NotEmpty(t, p.City, "city column follows the location")
	assert.True(t, validation.ValidateTattooDetails(p.TattooDetails))
	assert.Less(t, time.Since(p.CreatedAt), 31*24*time.Hour)

	for _, style := range p.Styles {
		assert.Contains(t, validation.Styles, style)
	}
}

func TestBuildUser_UsernameIsValid(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, SkipBcrypt: true})
	for i := 0; i < 25; i++ {
		u := f.BuildUser()
		assert.NoError(t, validation.ValidateUsername(u.Username), u.Username)
		assert.NoError(t, validation.ValidateEmail(u.Email), u.Email)
	}
}

func TestSeederRun(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	s := NewSeeder(db, Options{SkipBcrypt: true, MaxDays: 14})

	sum, err := s.Run(Counts{
		Users:               6,
		Artists:             3,
		Posts:               12,
		MaxFollowsPerUser:   3,
		MaxLikesPerPost:     4,
		MaxCommentsPerPost:  2,
		AppointmentsPerUser: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Users)
	assert.Equal(t, 3, sum.Artists)
	assert.Equal(t, 6, sum.Appointments)
	assert.Equal(t, 6, sum.Quotes)

	var users, profiles, posts, likes int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.ArtistProfile{}).Count(&profiles).Error)
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	assert.Equal(t, int64(9), users)
	assert.Equal(t, int64(3), profiles)
	assert.Equal(t, int64(12), posts)
	assert.Equal(t, int64(sum.Likes), likes)

	// denormalized counters match the rows
	var total struct{ Likes, Comments int64 }
	require.NoError(t, db.Model(&models.Post{}).
		Select("COALESCE(SUM(likes_count),0) AS likes, COALESCE(SUM(comments_count),0) AS comments").
		Scan(&total).Error)
	assert.Equal(t, int64(sum.Likes), total.Likes)
	assert.Equal(t, int64(sum.Comments), total.Comments)

	var selfFollows int64
	require.NoError(t, db.Model(&models.Follow{}).Where("follower_id = following_id").Count(&selfFollows).Error)
	assert.Zero(t, selfFollows)

	require.NoError(t, s.ClearAll())
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}
