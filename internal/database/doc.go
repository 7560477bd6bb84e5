// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup (sqlite / postgres), migrations, active-borrow index
//	├── logger.go        # gorm logger backed by zerolog
//	├── members/         # Member registration and lookup
//	├── catalog/         # Books, authors, categories and their joined projections
//	├── borrows/         # Borrow records and conditional status transitions
//	└── audit/           # Audit event storage and retention
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	// Initialize database connection
//	db, err := database.Open(cfg.Database)
//
//	// Create domain-specific repositories
//	catalogRepo := catalog.NewRepository(db.DB)
//	borrowsRepo := borrows.NewRepository(db.DB)
//
//	books, err := catalogRepo.ListBooks(ctx)
//
// # Interface Implementations
//
//   - members.Repository: implements auth.MemberStore
//   - catalog.Repository: implements http.CatalogStore
//   - borrows.Repository: implements lending.Store
//   - audit.Repository: backs audit.Service
//
// # The active-borrow constraint
//
// Migrate creates a partial unique index on borrow_records(book_id) covering
// pending and borrowed records. Inserts that would create a second active
// record for a book fail with a unique violation; IsUniqueViolation detects it
// for both drivers.
package database
