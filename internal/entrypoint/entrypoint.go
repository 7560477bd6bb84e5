package entrypoint

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	auditrepo "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/database/borrows"
	"github.com/mrlokans/librarian/internal/database/catalog"
	"github.com/mrlokans/librarian/internal/database/members"
	http_controllers "github.com/mrlokans/librarian/internal/http"
	"github.com/mrlokans/librarian/internal/lending"
	"github.com/mrlokans/librarian/internal/logging"
	"github.com/mrlokans/librarian/internal/metrics"
	"github.com/mrlokans/librarian/internal/scheduler"
	"github.com/mrlokans/librarian/internal/tasks"
)

// App holds every long-lived component of the server.
type App struct {
	cfg     *config.Config
	handler http.Handler

	db        *database.Database
	audit     *audit.Service
	limiter   *auth.RateLimiter
	taskQueue *tasks.Client
	scheduler *scheduler.MaintenanceScheduler

	cancelWorkers context.CancelFunc
}

// Build opens the database and wires services, background workers and the
// HTTP handler. Nothing is started until Start.
func Build(cfg *config.Config, version string, reg prometheus.Registerer) (app *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := ensureJWTSecret(cfg); err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app = &App{cfg: cfg, db: db}
	defer func() {
		if err != nil {
			err = multierr.Append(err, app.close())
		}
	}()

	m := metrics.New(reg)
	app.audit = audit.NewService(auditrepo.NewRepository(db.DB))

	memberRepo := members.NewRepository(db.DB)
	catalogRepo := catalog.NewRepository(db.DB)
	lendingService := lending.NewService(
		borrows.NewRepository(db.DB), memberRepo, app.audit, m, cfg.Lending.OperationTimeout,
	)

	tokens := auth.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer, cfg.Auth.TokenExpiry)
	accounts := auth.NewService(memberRepo, tokens, cfg.Auth)

	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQL DB for sessions: %w", err)
	}
	sessions, err := auth.NewSessionManager(sqlDB, db.Driver, cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}
	app.limiter = auth.NewRateLimiter(auth.RateLimitConfigFrom(cfg.Auth))

	var csrfSecret []byte
	if cfg.Auth.CSRFEnabled {
		csrfSecret = deriveKey(cfg.Auth.JWTSecret, "csrf")
	}

	routerCfg := http_controllers.RouterConfig{
		Catalog:        catalogRepo,
		Lending:        lendingService,
		Accounts:       accounts,
		Database:       db,
		AuthMiddleware: auth.NewMiddleware(tokens, sessions),
		SessionManager: sessions,
		RateLimiter:    app.limiter,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		Auditor:        app.audit,
		AuditReader:    app.audit,
		Metrics:        m,
		Version:        version,
	}

	if cfg.Tasks.Enabled {
		app.taskQueue, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize task queue: %w", err)
		}
		app.taskQueue.Register(
			tasks.NewCleanupAuditEventsQueue(app.audit, m),
			tasks.NewExpirePendingRequestsQueue(lendingService, m, m),
		)

		app.scheduler = scheduler.NewMaintenanceScheduler(app.taskQueue, scheduler.MaintenanceJobs(cfg)...)
		routerCfg.TaskQueue = app.taskQueue
		routerCfg.Jobs = app.scheduler
	}

	router := http_controllers.NewRouter(routerCfg)
	app.handler = http_controllers.WithCORS(router, cfg.HTTP.CORSOrigins)

	return app, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Start launches the task workers and, when enabled, the maintenance
// scheduler.
func (a *App) Start(ctx context.Context) error {
	if a.taskQueue == nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancelWorkers = cancel
	a.taskQueue.Start(workerCtx)

	if a.cfg.Scheduler.Enabled {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}
	return nil
}

// Shutdown stops background work, flushes pending audit writes and closes
// every resource. All failures are reported.
func (a *App) Shutdown(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	var err error
	if a.taskQueue != nil {
		if !a.taskQueue.Stop(ctx) {
			err = multierr.Append(err, errors.New("task queue did not stop before the deadline"))
		}
		if a.cancelWorkers != nil {
			a.cancelWorkers()
		}
	}

	a.audit.Wait()
	return multierr.Append(err, a.close())
}

func (a *App) close() error {
	var err error
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.taskQueue != nil {
		err = multierr.Append(err, a.taskQueue.Close())
	}
	if a.db != nil {
		err = multierr.Append(err, a.db.Close())
	}
	return err
}

// Run builds the application and serves HTTP until SIGINT or SIGTERM.
func Run(cfg *config.Config, version string) error {
	log := logging.Default()
	log.Info().Str("version", version).Str("driver", string(cfg.Database.Driver)).Msg("starting librarian")

	app, err := Build(cfg, version, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		return multierr.Append(err, app.Shutdown(context.Background()))
	}

	return Serve(ctx, app.Handler(), cfg, app.Shutdown)
}

// Serve runs an HTTP server until ctx is cancelled, then shuts it down and
// calls onShutdown within the configured timeout.
func Serve(ctx context.Context, handler http.Handler, cfg *config.Config, onShutdown func(context.Context) error) error {
	log := logging.Default()
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case err = <-serveErr:
		if err != nil {
			err = fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info().Dur("timeout", timeout).Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	if onShutdown != nil {
		err = multierr.Append(err, onShutdown(shutdownCtx))
	}

	if err == nil {
		log.Info().Msg("server exited")
	}
	return err
}

// ensureJWTSecret fills an empty signing key with a random one. Tokens then
// do not survive a restart.
func ensureJWTSecret(cfg *config.Config) error {
	if cfg.Auth.JWTSecret != "" {
		return nil
	}

	buf := make([]byte, config.MinJWTSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	cfg.Auth.JWTSecret = hex.EncodeToString(buf)

	logging.Default().Warn().Msg("AUTH_JWT_SECRET is not set; generated an ephemeral secret")
	return nil
}

// deriveKey derives a 32-byte purpose-specific key from secret.
func deriveKey(secret, purpose string) []byte {
	sum := sha256.Sum256([]byte(purpose + ":" + secret))
	return sum[:]
}
