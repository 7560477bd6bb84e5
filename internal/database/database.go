package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/logging"
)

// activeBorrowIndexSQL enforces at most one pending or borrowed record per
// book. Partial indexes share this syntax on SQLite and PostgreSQL.
const activeBorrowIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_borrow_records_active_book
	ON borrow_records(book_id) WHERE status IN ('pending', 'borrowed')`

const sqliteParams = "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"

type Database struct {
	DB     *gorm.DB
	Driver config.DatabaseDriver
}

// NewDatabase opens (and migrates) a SQLite database at dbPath.
func NewDatabase(dbPath string) (*Database, error) {
	return Open(config.Database{Driver: config.DriverSQLite, Path: dbPath})
}

// Open connects using the configured driver, applies migrations and
// configures the connection pool.
func Open(cfg config.Database) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite, "":
		cfg.Driver = config.DriverSQLite
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewGormLogger(cfg.SlowQuery),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if cfg.Driver == config.DriverSQLite {
		// One writer at a time; concurrent requests queue on the pool
		// instead of failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	database := &Database{DB: db, Driver: cfg.Driver}
	if err := database.Migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logging.Default().Info().
		Str("driver", string(cfg.Driver)).
		Str("path", cfg.Path).
		Msg("database initialized")

	return database, nil
}

// Migrate creates or updates every table and the active-borrow index.
func (d *Database) Migrate() error {
	err := d.DB.AutoMigrate(
		&entities.Member{},
		&entities.Author{},
		&entities.Category{},
		&entities.Book{},
		&entities.BorrowRecord{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := d.DB.Exec(activeBorrowIndexSQL).Error; err != nil {
		return fmt.Errorf("failed to create active borrow index: %w", err)
	}
	return nil
}

// Ping checks connectivity within ctx.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsUniqueViolation reports whether err was raised by a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqliteParams
	}
	return path + "?" + sqliteParams
}
