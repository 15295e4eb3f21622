// Package bootstrap wires the process-wide runtime: database, Redis and the
// development fixtures layered on top of them.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"artenis/internal/cache"
	"artenis/internal/config"
	"artenis/internal/database"
	"artenis/internal/middleware"
	"artenis/internal/models"
	"artenis/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemoData fills an empty database with demo accounts and posts.
	SeedDemoData bool
}

// InitRuntime connects to DB and Redis and runs the development fixtures.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; a nil client disables caching and pub/sub
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	if opts.SeedDemoData {
		if err := seedIfEmpty(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

func isDevelopment(cfg *config.Config) bool {
	return strings.EqualFold(cfg.Env, "development")
}

// seedIfEmpty runs the demo seeder when no post exists yet.
func seedIfEmpty(db *gorm.DB) error {
	var posts int64
	if err := db.Model(&models.Post{}).Count(&posts).Error; err != nil {
		return err
	}
	if posts > 0 {
		return nil
	}
	sum, err := seed.NewSeeder(db, seed.Options{MaxDays: 60}).Run(seed.DefaultCounts)
	if err != nil {
		return err
	}
	middleware.Logger.Info("demo data seeded",
		slog.Int("users", sum.Users),
		slog.Int("artists", sum.Artists),
		slog.Int("posts", sum.Posts))
	return nil
}

// ensureDevAdmin creates or promotes the configured development admin. It
// is a no-op outside development or without DEV_BOOTSTRAP_ADMIN.
func ensureDevAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !isDevelopment(cfg) || !cfg.DevBootstrapAdmin {
		return nil
	}

	username := strings.TrimSpace(cfg.DevAdminUsername)
	if username == "" {
		username = "artenis_admin"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevAdminEmail))
	if email == "" {
		email = "admin@artenis.local"
	}
	if cfg.DevAdminPassword == "" {
		return errors.New("DEV_ADMIN_PASSWORD must be set when DEV_BOOTSTRAP_ADMIN is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.DevAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		var admin models.User
		findErr := tx.Where("email = ?", email).First(&admin).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			admin = models.User{
				Username:             username,
				Email:                email,
				Password:             string(hashedPassword),
				Role:                 models.RoleAdmin,
				Status:               models.UserStatusActive,
				EmailVerified:        true,
				NotificationsEnabled: true,
			}
			return tx.Create(&admin).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&models.User{}).Where("id = ?", admin.ID).Updates(map[string]any{
				"role":     models.RoleAdmin,
				"status":   models.UserStatusActive,
				"password": string(hashedPassword),
			}).Error
		}
	}); err != nil {
		return err
	}

	middleware.Logger.Info("development admin ensured", slog.String("email", email))
	return nil
}
