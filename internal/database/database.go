package database

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/albaranes/config"
	"example.com/albaranes/internal/models"
)

// Database holds the write connection and the connection used for reads.
// ReadOnly is the write connection when no replica is configured.
type Database struct {
	Write    *gorm.DB
	ReadOnly *gorm.DB
}

// Connect establishes the database connections and registers persist-time hooks
func Connect(cfg config.DatabaseConfig) (*Database, error) {
	write, err := open(cfg, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	RegisterDeliveryNoteHooks(write, time.Now)

	readOnly := write
	if cfg.ReadOnlyDSN != "" {
		readOnly, err = open(cfg, cfg.ReadOnlyDSN)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to read-only database")
		}
	}

	return &Database{Write: write, ReadOnly: readOnly}, nil
}

func open(cfg config.DatabaseConfig, dsn string) (*gorm.DB, error) {
	logLevel := logger.Error
	if cfg.Debug {
		logLevel = logger.Info
	}

	gormLogger := logger.New(
		&logAdapter{},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get DB instance")
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// EnableQueryTracing installs OpenTelemetry spans on every connection
func (d *Database) EnableQueryTracing() error {
	if err := d.Write.Use(otelgorm.NewPlugin()); err != nil {
		return errors.Wrap(err, "failed to install otelgorm plugin")
	}
	if d.ReadOnly != d.Write {
		if err := d.ReadOnly.Use(otelgorm.NewPlugin(otelgorm.WithDBName("replica"))); err != nil {
			return errors.Wrap(err, "failed to install otelgorm plugin on replica")
		}
	}
	return nil
}

// Close closes every underlying connection
func (d *Database) Close() error {
	for _, db := range []*gorm.DB{d.Write, d.ReadOnly} {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Close(); err != nil {
			return err
		}
		if d.ReadOnly == d.Write {
			break
		}
	}
	return nil
}

// Ping checks the write connection
func (d *Database) Ping() error {
	sqlDB, err := d.Write.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// AutoMigrate runs database migrations
func AutoMigrate(d *Database) error {
	return models.SetupModels(d.Write)
}

// logAdapter routes GORM logs to zerolog
type logAdapter struct{}

func (l *logAdapter) Printf(format string, args ...interface{}) {
	log.Debug().Str("component", "gorm").Msgf(format, args...)
}
