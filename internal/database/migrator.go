package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"artenis/internal/middleware"

	"gorm.io/gorm"
)

// ErrMigrationDrift means an applied migration no longer matches the file
// it was applied from, or the database knows versions this binary does not.
var ErrMigrationDrift = errors.New("migration drift")

// schemaMigration is one applied version.
type schemaMigration struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255;not null"`
	Checksum  string `gorm:"size:16;not null"`
	AppliedAt time.Time
}

func (schemaMigration) TableName() string { return "schema_migrations" }

// Migrator applies and reverts SQL migrations, recording each version in
// schema_migrations. Every step runs in its own transaction together with
// its bookkeeping row.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
	now        func() time.Time
}

// NewMigrator returns a Migrator over ms, which must be ordered by version.
func NewMigrator(db *gorm.DB, ms []Migration) *Migrator {
	return &Migrator{db: db, migrations: ms, now: func() time.Time { return time.Now().UTC() }}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]schemaMigration, error) {
	var rows []schemaMigration
	if err := m.db.WithContext(ctx).Order("version").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	out := make(map[int]schemaMigration, len(rows))
	for _, r := range rows {
		out[r.Version] = r
	}
	return out, nil
}

// Status splits the known migrations into applied versions and pending
// migrations, failing with ErrMigrationDrift when history disagrees with
// the files.
func (m *Migrator) Status(ctx context.Context) ([]int, []Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := checkDrift(done, m.migrations); err != nil {
		return nil, nil, err
	}

	versions := make([]int, 0, len(done))
	for v := range done {
		versions = append(versions, v)
	}
	sort.Ints(versions)

	var pending []Migration
	for _, mig := range m.migrations {
		if _, ok := done[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	return versions, pending, nil
}

// Up applies every pending migration in version order and reports how many
// ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	_, pending, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	for i, mig := range pending {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.Up).Error; err != nil {
				return err
			}
			return tx.Create(&schemaMigration{
				Version:   mig.Version,
				Name:      mig.Name,
				Checksum:  mig.Checksum,
				AppliedAt: m.now(),
			}).Error
		})
		if err != nil {
			return i, fmt.Errorf("apply %s: %w", mig.ID(), err)
		}
		middleware.Logger.InfoContext(ctx, "migration applied", slog.String("migration", mig.ID()))
	}
	return len(pending), nil
}

// Down reverts one applied version.
func (m *Migrator) Down(ctx context.Context, version int) error {
	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			target = &m.migrations[i]
		}
	}
	if target == nil {
		return fmt.Errorf("migration %d is not known", version)
	}
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("version = ?", version).Delete(&schemaMigration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("migration %d has not been applied", version)
		}
		return tx.Exec(target.Down).Error
	})
	if err != nil {
		return fmt.Errorf("revert %s: %w", target.ID(), err)
	}
	middleware.Logger.InfoContext(ctx, "migration reverted", slog.String("migration", target.ID()))
	return nil
}

// Latest returns the highest applied version, or 0.
func (m *Migrator) Latest(ctx context.Context) (int, error) {
	applied, _, err := m.Status(ctx)
	if err != nil || len(applied) == 0 {
		return 0, err
	}
	return applied[len(applied)-1], nil
}

func checkDrift(done map[int]schemaMigration, known []Migration) error {
	byVersion := make(map[int]Migration, len(known))
	for _, mig := range known {
		byVersion[mig.Version] = mig
	}

	var problems []string
	for v, row := range done {
		mig, ok := byVersion[v]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%06d is applied but unknown", v))
		case row.Checksum != mig.Checksum:
			problems = append(problems, fmt.Sprintf("%s changed after it was applied", mig.ID()))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrMigrationDrift, strings.Join(problems, "; "))
}

// RunMigrations applies the built-in migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	_, err := NewMigrator(db, GetMigrations()).Up(ctx)
	return err
}

// RollbackMigration reverts one built-in migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return NewMigrator(db, GetMigrations()).Down(ctx, version)
}
