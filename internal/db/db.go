package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sitepilot/internal/config"
	"sitepilot/internal/models"
	console "sitepilot/internal/utils/logger"
)

var DB *gorm.DB
var log = console.New("DB")

// Connect opens the postgres pool, retrying while the database comes up, and migrates the schema.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Warn
	if console.ParseLevel(cfg.LogLevel) == console.LevelDebug {
		logLevel = logger.Info
	}

	log.Info("Connecting to database %s@%s:%d...", cfg.Database.Name, cfg.Database.Host, cfg.Database.Port)
	maxRetries := 5
	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
			Logger:                                   logger.Default.LogMode(logLevel),
			DisableForeignKeyConstraintWhenMigrating: true,
			PrepareStmt:                              true,
			AllowGlobalUpdate:                        false,
			TranslateError:                           true,
		})
		if err == nil {
			log.Success("Connected to database")

			sqlDB, err := DB.DB()
			if err != nil {
				return nil, log.Error("Failed to get underlying *sql.DB instance", err)
			}
			sqlDB.SetMaxOpenConns(100)
			sqlDB.SetMaxIdleConns(10)
			sqlDB.SetConnMaxLifetime(time.Hour)
			sqlDB.SetConnMaxIdleTime(30 * time.Minute)

			if err := Migrate(DB); err != nil {
				return nil, log.Error("Failed to run migrations", err)
			}
			log.Success("Migrations completed")
			return DB, nil
		}
		log.Warn("Failed to connect to database (attempt %d/%d): %v", i+1, maxRetries, err)
		time.Sleep(5 * time.Second)
	}
	return nil, log.Error("Database unavailable", fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, err))
}

// Migrate creates or updates the schema for every persisted model.
func Migrate(conn *gorm.DB) error {
	log.Info("Running migrations...")
	return conn.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&models.User{},
			&models.Project{},
			&models.AppliedChange{},
			&models.Discussion{},
			&models.Message{},
		)
	})
}

func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
