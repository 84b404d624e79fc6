// Package db opens and configures the gorm connection backing the Campaign Store.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/primus-bench/orchestrator/pkg/apperrors"
	"github.com/primus-bench/orchestrator/pkg/config"
	"github.com/primus-bench/orchestrator/pkg/model"
)

// Open connects to Postgres and tunes the pool, mirroring the teacher's InitGormDB.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperrors.New().
			WithKind(apperrors.KindTransient).
			WithCode(apperrors.CodeStoreUnavailable).
			WithMessage("opening database connection").
			WithError(err).Err()
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, apperrors.New().
			WithKind(apperrors.KindTransient).
			WithCode(apperrors.CodeStoreUnavailable).
			WithMessage("retrieving sql.DB handle").
			WithError(err).Err()
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(2 * time.Minute)

	return gdb, nil
}

// Migrate creates or updates the schema for every persisted model.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&model.Campaign{},
		&model.EngineRelease{},
		&model.ReuseRecord{},
	)
}
