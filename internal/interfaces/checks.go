package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/borrows"
	"github.com/mrlokans/librarian/internal/database/catalog"
	"github.com/mrlokans/librarian/internal/database/members"
	"github.com/mrlokans/librarian/internal/http"
	"github.com/mrlokans/librarian/internal/lending"
	"github.com/mrlokans/librarian/internal/metrics"
	"github.com/mrlokans/librarian/internal/scheduler"
	"github.com/mrlokans/librarian/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

var _ http.CatalogStore = (*catalog.Repository)(nil)
var _ http.Pinger = (*database.Database)(nil)

var _ lending.Store = (*borrows.Repository)(nil)
var _ lending.MemberDirectory = (*members.Repository)(nil)
var _ auth.MemberStore = (*members.Repository)(nil)

// =============================================================================
// Services
// =============================================================================

var _ http.Lending = (*lending.Service)(nil)
var _ http.Accounts = (*auth.Service)(nil)
var _ http.SessionStore = (*auth.SessionManager)(nil)
var _ http.LoginLimiter = (*auth.RateLimiter)(nil)

// =============================================================================
// Audit
// =============================================================================

var _ lending.Auditor = (*audit.Service)(nil)
var _ http.Auditor = (*audit.Service)(nil)
var _ http.AuditReader = (*audit.Service)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)

// =============================================================================
// Metrics
// =============================================================================

var _ lending.Recorder = (*metrics.Metrics)(nil)
var _ tasks.Recorder = (*metrics.Metrics)(nil)
var _ tasks.BorrowGauge = (*metrics.Metrics)(nil)

// =============================================================================
// Background Maintenance
// =============================================================================

var _ tasks.PendingExpirer = (*lending.Service)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)
var _ http.TaskQueue = (*tasks.Client)(nil)
var _ http.JobCatalog = (*scheduler.MaintenanceScheduler)(nil)
