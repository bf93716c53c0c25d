package db

import (
	"fmt"
	"time"

	"github.com/windoze95/saltybytes-resolver/internal/config"
	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"github.com/windoze95/saltybytes-resolver/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	connectTimeout    = 1 * time.Minute
	connectRetryDelay = 5 * time.Second
)

// New creates a new database connection and migrates the schema.
func New(cfg *config.Config) (*gorm.DB, error) {
	database, err := connectToDatabaseWithRetry(cfg.EnvVars.DatabaseUrl)
	if err != nil {
		return nil, err
	}
	if err := Migrate(database); err != nil {
		return nil, err
	}
	return database, nil
}

// connectToDatabaseWithRetry connects to the database and retries if necessary.
func connectToDatabaseWithRetry(databaseURL string) (*gorm.DB, error) {
	logger.Get().Info("connecting to database")
	var database *gorm.DB
	var err error

	start := time.Now()
	for {
		database, err = gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
		if err == nil {
			break
		}
		if time.Since(start) > connectTimeout {
			return nil, fmt.Errorf("could not connect to database after %s: %w", connectTimeout, err)
		}
		logger.Get().Warn("could not connect to database, retrying...", zap.Error(err))
		time.Sleep(connectRetryDelay)
	}

	return database, nil
}

// Migrate creates or updates the tables the resolver reads and writes.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.Personalization{},
		&models.Conversation{},
		&models.Message{},
		&models.StoredRecipe{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
