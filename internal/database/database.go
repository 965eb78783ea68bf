package database

import (
	"fmt"
	"time"

	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/internal/database/migrations"
	"github.com/mentorhub/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the database connection with configuration
func InitDB(dbConfig config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dbConfig.URL), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdle)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Migrate brings the schema up to date and applies versioned data
// migrations (badge catalog seed and friends).
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},

		// Ledger and derived account state
		&models.CreditTransaction{},
		&models.CreditSummary{},

		// Badges
		&models.Badge{},
		&models.UserBadge{},

		// Leaderboard snapshots
		&models.LeaderboardEntry{},

		// Referrals
		&models.Referral{},
	); err != nil {
		return err
	}

	return migrations.RunMigrations(db)
}
