package repository

import (
	"context"
	"testing"

	"artenis/internal/models"
	"artenis/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtistRepository_DefaultProfileLifecycle(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewArtistRepository(db)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, func(u *models.User) { u.Role = models.RoleArtist })

	_, err := repo.FindByUserID(ctx, u.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	profile, err := repo.CreateDefault(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ArtistStatusPending, profile.Status)
	assert.True(t, profile.BookingEnabled)

	_, err = repo.CreateDefault(ctx, u.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict))

	profile.BusinessName = "Tinta Sur"
	profile.City = "sevilla"
	profile.BookingEnabled = false
	require.NoError(t, repo.Update(ctx, profile))

	got, err := repo.FindByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tinta Sur", got.BusinessName)
	assert.False(t, got.BookingEnabled)

	require.NoError(t, repo.DeleteByUserID(ctx, u.ID))
	_, err = repo.FindByUserID(ctx, u.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
