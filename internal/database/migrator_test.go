package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeMigrations(up2 string) fstest.MapFS {
	return fstest.MapFS{
		"m/000001_studios.up.sql":       {Data: []byte("CREATE TABLE studios (id INTEGER PRIMARY KEY, name TEXT);")},
		"m/000001_studios.down.sql":     {Data: []byte("DROP TABLE studios;")},
		"m/000002_studio_name.up.sql":   {Data: []byte(up2)},
		"m/000002_studio_name.down.sql": {Data: []byte("DROP INDEX idx_studios_name;")},
		"m/README.md":                   {Data: []byte("ignored")},
	}
}

func TestLoadMigrations(t *testing.T) {
	ms, err := LoadMigrations(fakeMigrations("CREATE INDEX idx_studios_name ON studios (name);"), "m")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "000001_studios", ms[0].ID())
	assert.Equal(t, 2, ms[1].Version)
	assert.NotEmpty(t, ms[1].Checksum)

	broken := fakeMigrations("SELECT 1;")
	delete(broken, "m/000002_studio_name.down.sql")
	_, err = LoadMigrations(broken, "m")
	assert.ErrorContains(t, err, "no down script")

	dup := fakeMigrations("SELECT 1;")
	dup["m/0002_other.up.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
	dup["m/0002_other.down.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
	_, err = LoadMigrations(dup, "m")
	assert.ErrorContains(t, err, "version 2")
}

func TestMigratorUpDown(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	ms, err := LoadMigrations(fakeMigrations("CREATE INDEX idx_studios_name ON studios (name);"), "m")
	require.NoError(t, err)
	m := NewMigrator(db, ms)

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, db.Migrator().HasTable("studios"))

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	latest, err := m.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, latest)

	require.NoError(t, m.Down(ctx, 2))
	applied, pending, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	assert.ErrorContains(t, m.Down(ctx, 2), "not been applied")
	assert.ErrorContains(t, m.Down(ctx, 9), "not known")
}

func TestMigratorFailedStepIsNotRecorded(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	ms, err := LoadMigrations(fakeMigrations("CREATE INDEX idx_studios_name ON missing_table (name);"), "m")
	require.NoError(t, err)
	m := NewMigrator(db, ms)

	n, err := m.Up(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n)

	applied, pending, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
	assert.Len(t, pending, 1)
}

func TestMigratorDetectsDrift(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	ms, err := LoadMigrations(fakeMigrations("CREATE INDEX idx_studios_name ON studios (name);"), "m")
	require.NoError(t, err)
	_, err = NewMigrator(db, ms).Up(ctx)
	require.NoError(t, err)

	edited, err := LoadMigrations(fakeMigrations("CREATE INDEX idx_studios_name ON studios (name DESC);"), "m")
	require.NoError(t, err)
	_, _, err = NewMigrator(db, edited).Status(ctx)
	assert.ErrorIs(t, err, ErrMigrationDrift)
	assert.ErrorContains(t, err, "000002_studio_name changed")

	_, _, err = NewMigrator(db, edited[:1]).Status(ctx)
	assert.ErrorIs(t, err, ErrMigrationDrift)
	assert.ErrorContains(t, err, "000002 is applied but unknown")
}
