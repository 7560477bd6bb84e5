package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/metrics"
)

// RouterConfig contains all dependencies needed to build the router.
// Optional fields may be nil; the routes they back are then not registered.
type RouterConfig struct {
	// Core dependencies
	Catalog  CatalogStore
	Lending  Lending
	Accounts Accounts
	Database Pinger

	// Authentication
	AuthMiddleware *auth.Middleware
	SessionManager *auth.SessionManager
	RateLimiter    LoginLimiter
	CSRFSecret     []byte // empty disables CSRF protection
	SecureCookies  bool

	// Audit
	Auditor     Auditor
	AuditReader AuditReader

	// Background maintenance
	TaskQueue TaskQueue
	Jobs      JobCatalog

	Metrics *metrics.Metrics

	// Application info
	Version string
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.Use(AccessLogMiddleware())
	router.Use(RecoveryMiddleware())

	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
	}

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())

	// The session must be loaded before CSRF and auth read it
	var sessions SessionStore
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.LoadAndSave())
		sessions = cfg.SessionManager
	}

	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}

	router.Use(cfg.AuthMiddleware.Handler())
	requireAuth := cfg.AuthMiddleware.RequireAuth()
	requireAdmin := cfg.AuthMiddleware.RequireAdmin()

	health := NewHealthController(cfg.Database, cfg.Version)
	members := NewMembersController(cfg.Accounts, sessions, cfg.RateLimiter, cfg.Auditor)
	books := NewBooksController(cfg.Catalog, cfg.Lending, cfg.Auditor)
	borrows := NewBorrowsController(cfg.Lending)

	// Health endpoints
	router.GET("/", health.Welcome)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Status)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Membership
	router.POST("/members", members.Register)
	router.POST("/login", members.Login)
	router.POST("/logout", members.Logout)
	router.GET("/me", requireAuth, members.Me)
	router.GET("/csrf-token", members.CSRFToken)

	// Catalog
	router.GET("/books", books.ListBooks)
	router.POST("/books", requireAdmin, books.CreateBook)
	router.GET("/books/borrow-status", requireAdmin, books.BorrowStatus)
	router.PUT("/books/:id", requireAdmin, books.UpdateBook)
	router.DELETE("/books/:id", requireAdmin, books.DeleteBook)
	router.POST("/books/:id/return", requireAuth, books.ReturnBook)

	router.GET("/authors", books.ListAuthors)
	router.POST("/authors", requireAdmin, books.CreateAuthor)
	router.GET("/categories", books.ListCategories)
	router.POST("/categories", requireAdmin, books.CreateCategory)

	// Borrow lifecycle
	router.POST("/borrow-requests", requireAuth, borrows.RequestBorrow)
	router.GET("/borrow-requests/pending", requireAdmin, borrows.PendingRequests)
	router.POST("/borrow-requests/:id/approve", requireAdmin, borrows.Approve)
	router.POST("/borrow-requests/:id/reject", requireAdmin, borrows.Reject)

	router.GET("/members/:id/active-books", requireAuth, borrows.ActiveBooks)
	router.GET("/members/:id/history", requireAuth, borrows.History)

	// Audit log
	if cfg.AuditReader != nil {
		auditController := NewAuditController(cfg.AuditReader)
		router.GET("/audit-events", requireAdmin, auditController.GetAuditEvents)
	}

	// Task management endpoints
	if cfg.TaskQueue != nil && cfg.Jobs != nil {
		tasksController := NewTasksController(cfg.TaskQueue, cfg.Jobs)
		router.GET("/tasks/jobs", requireAdmin, tasksController.ListJobs)
		router.POST("/tasks/jobs/:name/run", requireAdmin, tasksController.RunJob)
		router.GET("/tasks/:id", requireAdmin, tasksController.GetTaskStatus)
	}

	router.NoRoute(func(c *gin.Context) {
		respondAppError(c, errRouteNotFound)
	})

	return router
}
