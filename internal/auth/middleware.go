package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/logging"
)

// ContextKeyPrincipal is the gin context key holding the resolved *Principal.
const ContextKeyPrincipal = "auth_principal"

var (
	ErrAuthRequired = apperr.New(apperr.Unauthorized, "authentication required")
	ErrForbidden    = apperr.New(apperr.Forbidden, "insufficient permissions")
)

// AuthType indicates how the caller was authenticated.
type AuthType string

const (
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	MemberID uint            `json:"id"`
	Role     entities.RoleID `json:"roleId"`
	Method   AuthType        `json:"method"`
}

func (p *Principal) IsAdministrator() bool {
	return p != nil && IsAdministrator(p.Role)
}

// IsAdministrator reports whether role grants catalog and lifecycle
// administration.
func IsAdministrator(role entities.RoleID) bool {
	return role == entities.RoleAdministrator
}

// Middleware resolves the principal of each request.
type Middleware struct {
	tokens   *TokenIssuer
	sessions *SessionManager
}

// NewMiddleware creates the authentication middleware. sessions may be nil,
// in which case only bearer tokens are accepted.
func NewMiddleware(tokens *TokenIssuer, sessions *SessionManager) *Middleware {
	return &Middleware{tokens: tokens, sessions: sessions}
}

// Handler resolves the principal from a bearer token, then from the session.
// Anonymous requests pass through; a malformed or expired token is rejected.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearerToken(c.GetHeader("Authorization")); ok {
			principal, err := m.tokens.Parse(raw)
			if err != nil {
				abortWithError(c, err)
				return
			}
			m.setPrincipal(c, principal)
			c.Next()
			return
		}

		if m.sessions != nil {
			if principal := m.sessions.Principal(c.Request); principal != nil {
				m.setPrincipal(c, principal)
			}
		}
		c.Next()
	}
}

// RequireAuth aborts with 401 when the request carries no principal.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if PrincipalFrom(c) == nil {
			abortWithError(c, ErrAuthRequired)
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts with 401 for anonymous callers and 403 for members
// without the administrator role.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := PrincipalFrom(c)
		if principal == nil {
			abortWithError(c, ErrAuthRequired)
			return
		}
		if !principal.IsAdministrator() {
			abortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func (m *Middleware) setPrincipal(c *gin.Context, principal *Principal) {
	c.Set(ContextKeyPrincipal, principal)
	c.Request = c.Request.WithContext(logging.WithMemberID(c.Request.Context(), principal.MemberID))
}

// PrincipalFrom returns the authenticated caller, or nil.
func PrincipalFrom(c *gin.Context) *Principal {
	if v, exists := c.Get(ContextKeyPrincipal); exists {
		if principal, ok := v.(*Principal); ok {
			return principal
		}
	}
	return nil
}

// MemberID returns the authenticated member's ID, or 0.
func MemberID(c *gin.Context) uint {
	if principal := PrincipalFrom(c); principal != nil {
		return principal.MemberID
	}
	return 0
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// abortWithError renders the same error envelope as the HTTP controllers.
func abortWithError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.AbortWithStatusJSON(apperr.MetadataFor(kind).HTTPStatus, gin.H{
		"status": "error",
		"error":  apperr.PublicMessage(err),
		"code":   string(kind),
	})
}
