package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DatabaseDriver string

const (
	DriverSQLite   DatabaseDriver = "sqlite"
	DriverPostgres DatabaseDriver = "postgres"
)

type (
	Config struct {
		HTTP
		Database
		Auth
		Lending
		Audit
		Tasks
		Scheduler
		Log
		Global
	}

	HTTP struct {
		Port        int32
		Host        string
		CORSOrigins []string // Allowed origins; empty disables CORS headers
	}
	Database struct {
		Driver          DatabaseDriver
		Path            string // SQLite file path
		DSN             string // PostgreSQL connection string
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
		SlowQuery       time.Duration
	}
	Auth struct {
		JWTSecret       string
		JWTIssuer       string
		TokenExpiry     time.Duration
		SessionLifetime time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS
		CSRFEnabled     bool

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	Lending struct {
		OperationTimeout time.Duration // Upper bound for a single lifecycle transition
		PendingExpiry    time.Duration // Pending requests older than this are rejected; 0 disables
	}
	Audit struct {
		RetentionDays int // Days to keep audit events (default: 90)
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Scheduler struct {
		Enabled               bool
		AuditCleanupSchedule  string // Cron format: "30 3 * * *" = daily at 03:30
		ExpirePendingSchedule string // Cron format: "*/15 * * * *" = every 15 minutes
	}
	Log struct {
		Level  string
		Format string // "json" or "console"
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

// NewConfig loads .env (when present) and reads configuration from the
// environment.
func NewConfig() *Config {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8080)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("cors_origins", "")
	v.SetDefault("shutdown_timeout_in_seconds", 5)

	// Database defaults
	v.SetDefault("database_driver", string(DriverSQLite))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")
	v.SetDefault("database_max_open_conns", 10)
	v.SetDefault("database_max_idle_conns", 5)
	v.SetDefault("database_conn_max_lifetime", "1h")
	v.SetDefault("database_slow_query", "200ms")

	// Auth defaults
	v.SetDefault("auth_jwt_secret", "") // Auto-generated if empty
	v.SetDefault("auth_jwt_issuer", "librarian")
	v.SetDefault("auth_token_expiry", "24h")
	v.SetDefault("auth_session_lifetime", "24h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_csrf_enabled", true)
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	// Lending defaults
	v.SetDefault("lending_operation_timeout", "5s")
	v.SetDefault("lending_pending_expiry", "0")

	v.SetDefault("audit_retention_days", 90)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("scheduler_audit_cleanup", "30 3 * * *")
	v.SetDefault("scheduler_expire_pending", "*/15 * * * *")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	return &Config{
		HTTP: HTTP{
			Port:        v.GetInt32("PORT"),
			Host:        v.GetString("HOST"),
			CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		Database: Database{
			Driver:          DatabaseDriver(strings.ToLower(v.GetString("DATABASE_DRIVER"))),
			Path:            v.GetString("DATABASE_PATH"),
			DSN:             v.GetString("DATABASE_DSN"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
			SlowQuery:       v.GetDuration("DATABASE_SLOW_QUERY"),
		},
		Auth: Auth{
			JWTSecret:        v.GetString("AUTH_JWT_SECRET"),
			JWTIssuer:        v.GetString("AUTH_JWT_ISSUER"),
			TokenExpiry:      v.GetDuration("AUTH_TOKEN_EXPIRY"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			CSRFEnabled:      v.GetBool("AUTH_CSRF_ENABLED"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Lending: Lending{
			OperationTimeout: v.GetDuration("LENDING_OPERATION_TIMEOUT"),
			PendingExpiry:    v.GetDuration("LENDING_PENDING_EXPIRY"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Scheduler: Scheduler{
			Enabled:               v.GetBool("SCHEDULER_ENABLED"),
			AuditCleanupSchedule:  v.GetString("SCHEDULER_AUDIT_CLEANUP"),
			ExpirePendingSchedule: v.GetString("SCHEDULER_EXPIRE_PENDING"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}

// Validate reports configuration that would fail at startup.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("DATABASE_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver))
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", MinJWTSecretLength))
	}
	if c.Auth.TokenExpiry <= 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_EXPIRY must be positive"))
	}
	if c.Lending.OperationTimeout <= 0 {
		errs = append(errs, errors.New("LENDING_OPERATION_TIMEOUT must be positive"))
	}
	if c.Lending.PendingExpiry < 0 {
		errs = append(errs, errors.New("LENDING_PENDING_EXPIRY must not be negative"))
	}

	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
