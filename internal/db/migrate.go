package db

import (
	"errors"
	"fmt"

	"github.com/ikkim/storerating-backend/config"
	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/pkg/logger"
	"github.com/ikkim/storerating-backend/pkg/util"
	"gorm.io/gorm"
)

// Models returns every persisted model in dependency order
func Models() []interface{} {
	return []interface{}{
		&model.Store{},
		&model.User{},
		&model.Rating{},
	}
}

// Migrate runs database migrations on the global connection
func Migrate() error {
	return MigrateDB(DB)
}

// MigrateDB creates or updates the schema on db
func MigrateDB(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// Seed ensures the bootstrap admin exists on the global connection
func Seed(cfg *config.AdminConfig) error {
	_, err := EnsureAdmin(DB, cfg)
	return err
}

// EnsureAdmin creates the bootstrap admin account unless a user with
// that email already exists. Returns true when a user was created.
func EnsureAdmin(db *gorm.DB, cfg *config.AdminConfig) (bool, error) {
	email := model.NormalizeEmail(cfg.Email)
	if email == "" {
		return false, nil
	}

	var existing model.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		logger.Info("Admin user already seeded, skipping...", map[string]interface{}{
			"email": email,
		})
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to look up admin user: %w", err)
	}

	hash, err := util.HashPassword(cfg.Password)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &model.User{
		Name:         cfg.Name,
		Email:        email,
		PasswordHash: hash,
		Address:      cfg.Address,
		Role:         model.RoleAdmin,
	}
	if err := db.Create(admin).Error; err != nil {
		logger.Error("Failed to create admin user", err, map[string]interface{}{
			"email": email,
		})
		return false, err
	}

	logger.Info("Admin user seeded", map[string]interface{}{
		"user_id": admin.ID,
		"email":   email,
	})
	return true, nil
}
