package infra

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"vivuplanner/internal/config"
	"vivuplanner/internal/models/db_models"
)

func InitPostgresql(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("POSTGRES_URL is empty")
	}

	connectionPool, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(connectionPool, true); err != nil {
			return nil, err
		}
		log.Info("database schema migrated")
	}
	return connectionPool, nil
}

// Migrate creates the planner tables. withVector also prepares the pgvector extension and
// the memory snippet table, which only exist on postgres.
func Migrate(db *gorm.DB, withVector bool) error {
	if withVector {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("enable pgvector: %w", err)
		}
	}

	models := []interface{}{
		&db_models.POI{},
		&db_models.Journey{},
		&db_models.JourneyDay{},
		&db_models.JourneyActivity{},
		&db_models.PlanTask{},
	}
	if withVector {
		models = append(models, &db_models.MemorySnippet{})
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func ClosePostgresql(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("get database instance", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("close database connection", zap.Error(err))
	} else {
		log.Info("PostgreSQL database connection closed")
	}
}
