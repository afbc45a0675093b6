package database

import (
	"fmt"
	"time"

	"orderstate/src/database/migrations"
	"orderstate/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the store described by config. The returned handle is owned by
// the caller; nothing is kept in package state.
func Open(config Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case DriverPostgres, "":
		dialector = postgres.Open(config.DatabaseURL)
	case DriverSQLite:
		dialector = sqlite.Open(config.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB from gorm: %w", err)
	}

	if config.Driver == DriverSQLite {
		// sqlite allows a single writer; one connection also keeps
		// in-memory databases alive and shared.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(map[string]interface{}{
		"driver": dialector.Name(),
	}).Info("[database] connection established")

	return db, nil
}

// Migrate brings the schema for orders and take-profit levels up to date and imports
// the rows of the previous service's tables once.
func Migrate(db *gorm.DB) error {
	start := time.Now()

	if err := db.AutoMigrate(&migrations.DataMigration{}); err != nil {
		return fmt.Errorf("failed to create data migrations table: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Order{},
		&model.TakeProfit{},
	); err != nil {
		return fmt.Errorf("failed to run schema migrations: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}

	logrus.WithField("took", time.Since(start).String()).Info("[database] migrations completed")

	return nil
}

// OpenAndMigrate is the startup path used by the server and the CLI.
func OpenAndMigrate(config Config) (*gorm.DB, error) {
	db, err := Open(config)
	if err != nil {
		return nil, err
	}
	if !config.AutoMigrate {
		return db, nil
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
