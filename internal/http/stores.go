package http

import (
	"context"
	"net/http"
	"time"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/database/catalog"
	"github.com/mrlokans/librarian/internal/entities"
)

// This file consolidates the interfaces HTTP controllers depend on.
// Each controller takes only what it calls, so tests can pass stubs.

// --- Catalog ---

// CatalogStore provides book, author and category operations.
// Implemented by catalog.Repository.
type CatalogStore interface {
	CreateAuthor(ctx context.Context, name string) (*entities.Author, error)
	ListAuthors(ctx context.Context) ([]entities.Author, error)
	CreateCategory(ctx context.Context, name string) (*entities.Category, error)
	ListCategories(ctx context.Context) ([]entities.Category, error)

	CreateBook(ctx context.Context, in catalog.BookInput) (*entities.Book, error)
	UpdateBook(ctx context.Context, id uint, in catalog.BookInput) (*entities.Book, error)
	DeleteBook(ctx context.Context, id uint) error
	GetBook(ctx context.Context, id uint) (*entities.BookView, error)
	FilterBooks(ctx context.Context, filter entities.BookFilter) ([]entities.BookView, error)
	BorrowStatusReport(ctx context.Context) ([]entities.BookBorrowStatus, error)
}

// --- Lending ---

// Lending runs borrow lifecycle transitions and queries.
// Implemented by lending.Service.
type Lending interface {
	RequestBorrow(ctx context.Context, bookID, memberID uint) (*entities.BorrowRecord, error)
	Approve(ctx context.Context, actorID, recordID uint) (*entities.BorrowRecord, error)
	Reject(ctx context.Context, actorID, recordID uint) (*entities.BorrowRecord, error)
	Return(ctx context.Context, actorID, bookID uint) (*entities.BorrowRecord, error)

	PendingRequests(ctx context.Context) ([]entities.PendingRequestView, error)
	ActiveBorrowsForMember(ctx context.Context, memberID uint) ([]entities.ActiveBorrowView, error)
	HistoryForMember(ctx context.Context, memberID uint) ([]entities.HistoryView, error)
}

// --- Membership ---

// Accounts registers and authenticates members. Implemented by auth.Service.
type Accounts interface {
	Register(ctx context.Context, reg auth.Registration, caller *auth.Principal) (*entities.Member, error)
	Login(ctx context.Context, email, secret string) (*auth.LoginResult, error)
	Member(ctx context.Context, id uint) (*entities.Member, error)
}

// SessionStore starts and ends cookie sessions. Implemented by
// auth.SessionManager.
type SessionStore interface {
	CreateSession(r *http.Request, member *entities.Member) error
	DestroySession(r *http.Request) error
}

// LoginLimiter throttles failed logins. Implemented by auth.RateLimiter.
type LoginLimiter interface {
	Allow(ip, email string) (bool, time.Duration)
	RecordFailure(ip, email string) (bool, time.Duration)
	RecordSuccess(ip, email string)
}

// --- Audit ---

// Auditor records catalog, member and auth events. Implemented by
// audit.Service; writes are asynchronous and never fail a request.
type Auditor interface {
	LogCatalog(ctx context.Context, actorID uint, action, entityType string, entityID uint, description string)
	LogMember(ctx context.Context, actorID uint, action string, memberID uint, description string)
	LogAuth(ctx context.Context, memberID uint, action, ipAddr string, success bool)
}

// AuditReader lists stored audit events.
type AuditReader interface {
	GetEvents(ctx context.Context, q audit.EventQuery) ([]entities.AuditEvent, int64, error)
}

// --- Health ---

// Pinger checks database connectivity. Implemented by database.Database.
type Pinger interface {
	Ping(ctx context.Context) error
}

type nopAuditor struct{}

func (nopAuditor) LogCatalog(context.Context, uint, string, string, uint, string) {}
func (nopAuditor) LogMember(context.Context, uint, string, uint, string)          {}
func (nopAuditor) LogAuth(context.Context, uint, string, string, bool)            {}
