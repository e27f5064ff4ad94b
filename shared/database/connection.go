package database

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"backoffice-backend/shared/config"
	"backoffice-backend/shared/database/models"
)

var DB *gorm.DB

// getLogLevel maps DB_LOG_LEVEL onto the gorm logger.
func getLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func dialector(opts config.DatabaseOptions) (gorm.Dialector, error) {
	switch opts.Driver {
	case "", "postgres":
		return postgres.Open(opts.DSN()), nil
	case "mysql":
		return mysql.Open(opts.DSN()), nil
	default:
		return nil, errors.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// Open connects with the configured driver and pool settings.
func Open(opts config.DatabaseOptions) (*gorm.DB, error) {
	d, err := dialector(opts)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger:         logger.Default.LogMode(getLogLevel(opts.LogLevel)),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get database instance")
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return db, nil
}

// InitDatabase opens the process wide connection and migrates the schema.
func InitDatabase() error {
	cfg := config.GetConfig()
	db, err := Open(cfg.Database)
	if err != nil {
		return err
	}
	DB = db
	logrus.WithField("driver", cfg.Database.Driver).Info("database connection established")

	if err := Migrate(DB); err != nil {
		return errors.Wrap(err, "migration failed")
	}
	return nil
}

// Migrate creates or updates every table. The account log tables share one
// row type and are migrated by name.
func Migrate(db *gorm.DB) error {
	migrator := db.Migrator()
	created := 0
	for _, model := range models.All() {
		if !migrator.HasTable(model) {
			created++
		}
		if err := db.AutoMigrate(model); err != nil {
			return errors.Wrapf(err, "failed to migrate %T", model)
		}
	}
	for _, table := range models.LogTables() {
		if !migrator.HasTable(table) {
			created++
		}
		if err := db.Table(table).AutoMigrate(&models.AccountLog{}); err != nil {
			return errors.Wrapf(err, "failed to migrate %s", table)
		}
	}
	if created > 0 {
		logrus.WithField("tables", created).Info("database migrations completed")
	} else {
		logrus.Debug("database schema is up to date")
	}
	return nil
}

// TableNames lists every table owned by this service, in drop order.
func TableNames(db *gorm.DB) ([]string, error) {
	names := append([]string{}, models.LogTables()...)
	for _, model := range models.All() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, errors.Wrapf(err, "parse %T", model)
		}
		names = append(names, stmt.Schema.Table)
	}
	return names, nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// CloseDatabase closes the database connection
func CloseDatabase() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
