package auth

import (
	"database/sql"
	"encoding/gob"
	"net/http"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entities"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session"

// Session data keys
const (
	SessionKeyMemberID = "member_id"
	SessionKeyRole     = "role"
)

func init() {
	gob.Register(entities.RoleID(0))
}

// SessionManager wraps scs.SessionManager with member-specific accessors.
type SessionManager struct {
	*scs.SessionManager
}

// NewSessionManager creates a session manager. SQLite deployments keep
// sessions in the application database; other drivers use an in-process
// store.
func NewSessionManager(sqlDB *sql.DB, driver config.DatabaseDriver, cfg config.Auth) (*SessionManager, error) {
	sm := scs.New()

	if driver == config.DriverSQLite && sqlDB != nil {
		_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
		if err != nil {
			return nil, err
		}
		sm.Store = sqlite3store.New(sqlDB)
	} else {
		sm.Store = memstore.New()
	}

	sm.Lifetime = cfg.SessionLifetime
	sm.IdleTimeout = cfg.SessionLifetime / 2

	sm.Cookie.Name = SessionCookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm}, nil
}

// CreateSession starts a session for member. The token is renewed first to
// prevent session fixation.
func (sm *SessionManager) CreateSession(r *http.Request, member *entities.Member) error {
	if err := sm.RenewToken(r.Context()); err != nil {
		return err
	}

	sm.Put(r.Context(), SessionKeyMemberID, int(member.ID))
	sm.Put(r.Context(), SessionKeyRole, member.RoleID)
	return nil
}

// DestroySession removes all session data and invalidates the token.
func (sm *SessionManager) DestroySession(r *http.Request) error {
	return sm.Destroy(r.Context())
}

// Principal returns the member stored in the request's session, or nil.
func (sm *SessionManager) Principal(r *http.Request) *Principal {
	memberID := sm.GetInt(r.Context(), SessionKeyMemberID)
	if memberID <= 0 {
		return nil
	}

	role, ok := sm.Get(r.Context(), SessionKeyRole).(entities.RoleID)
	if !ok || !role.Valid() {
		return nil
	}

	return &Principal{
		MemberID: uint(memberID),
		Role:     role,
		Method:   AuthTypeSession,
	}
}
