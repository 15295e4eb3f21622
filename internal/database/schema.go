package database

import (
	"context"
	"fmt"
	"log/slog"

	"artenis/internal/config"
	"artenis/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values. Model tags cannot express the partial and
// expression indexes the feed and search queries rely on, so those live in
// SQL migrations; hybrid runs AutoMigrate first and then the SQL.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan is what a DB_SCHEMA_MODE asks for.
type SchemaPlan struct {
	Mode        string
	AutoMigrate bool
	SQL         bool
}

// PlanFor resolves mode, defaulting to hybrid.
func PlanFor(mode string) (SchemaPlan, error) {
	switch mode {
	case "", SchemaModeHybrid:
		return SchemaPlan{Mode: SchemaModeHybrid, AutoMigrate: true, SQL: true}, nil
	case SchemaModeSQL:
		return SchemaPlan{Mode: mode, SQL: true}, nil
	case SchemaModeAuto:
		return SchemaPlan{Mode: mode, AutoMigrate: true}, nil
	}
	return SchemaPlan{}, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
}

// SchemaStatus reports the plan and, when SQL migrations are part of it,
// their state.
type SchemaStatus struct {
	SchemaPlan
	Environment       string
	AppliedVersions   []int
	PendingMigrations []Migration
}

// AutoMigrate creates or alters the tables of every persistent model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the database up to date according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanFor(cfg.DBSchemaMode)
	if err != nil {
		return err
	}
	log := middleware.Logger.With(slog.String("mode", plan.Mode), slog.String("env", cfg.Env))

	if plan.AutoMigrate {
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		log.InfoContext(ctx, "models migrated", slog.Int("models", len(PersistentModels())))
	}
	if plan.SQL {
		n, err := NewMigrator(db, GetMigrations()).Up(ctx)
		if err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		log.InfoContext(ctx, "sql migrations done", slog.Int("applied", n))
	}
	return nil
}

// GetSchemaStatus describes what ApplySchema would do without changing the
// schema beyond creating the bookkeeping table.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanFor(cfg.DBSchemaMode)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan, Environment: cfg.Env}
	if !plan.SQL {
		return status, nil
	}

	status.AppliedVersions, status.PendingMigrations, err = NewMigrator(db, GetMigrations()).Status(ctx)
	if err != nil {
		return nil, err
	}
	return status, nil
}
