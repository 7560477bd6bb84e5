// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - CatalogStore: books, authors and categories (internal/http/stores.go)
//   - lending.Store: borrow records with conditional transitions (internal/lending/service.go)
//   - MemberStore: member registration and lookup (internal/auth/service.go)
//   - MemberDirectory: member existence checks (internal/lending/service.go)
//
// ## Service Interfaces
//
//   - Lending: the borrow lifecycle (internal/http/stores.go)
//   - Accounts: registration and login (internal/http/stores.go)
//   - Auditor / AuditReader: audit trail (internal/http/stores.go)
//
// ## Background Work Interfaces
//
//   - Enqueuer: scheduled task submission (internal/scheduler/maintenance.go)
//   - PendingExpirer, AuditEventCleaner: maintenance task targets (internal/tasks)
//
// # Adding a New Lifecycle Transition
//
//  1. Add a conditional update to borrows.Repository so the transition only
//     applies from the expected status.
//
//  2. Expose it from lending.Service through run, which applies the
//     operation timeout, records metrics and writes the audit event.
//
//  3. Add the method to http.Lending and register a route in router.go.
//
// # Adding a New Maintenance Task
//
//  1. Define the task type and its queue in internal/tasks:
//
//     type ReindexTask struct{}
//
//     func (t ReindexTask) Config() backlite.QueueConfig
//
//  2. Register the queue in entrypoint.Build and add a Job to
//     scheduler.MaintenanceJobs.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
