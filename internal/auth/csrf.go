package auth

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"

	"github.com/mrlokans/librarian/internal/apperr"
)

// CSRFTokenHeader is the header cookie clients echo the token in.
const CSRFTokenHeader = "X-CSRF-Token"

const contextKeyCSRFToken = "csrf_token"

var ErrCSRFInvalid = apperr.New(apperr.Forbidden, "CSRF token invalid or missing")

// CSRFMiddleware protects requests authenticated by the session cookie.
// Requests with a bearer token and unsafe requests without a
// session cookie skip the check. Safe requests always pass through the
// protector so that cookie clients can obtain a token. trustedOrigins are
// hosts (host[:port]) allowed as cross-origin Origin values.
func CSRFMiddleware(secret []byte, secure bool, trustedOrigins ...string) gin.HandlerFunc {
	protect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteStrictMode),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFTokenHeader),
		csrf.TrustedOrigins(trustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(c *gin.Context) {
		if _, ok := bearerToken(c.GetHeader("Authorization")); ok {
			c.Next()
			return
		}
		if !isSafeMethod(c.Request.Method) && !hasSessionCookie(c.Request) {
			c.Next()
			return
		}

		req := c.Request
		if !secure {
			req = csrf.PlaintextHTTPRequest(req)
		}

		passed := false
		handler := protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Set(contextKeyCSRFToken, csrf.Token(r))
			c.Request = r
			c.Next()
		}))
		handler.ServeHTTP(c.Writer, req)

		if !passed {
			c.Abort()
		}
	}
}

// CSRFToken returns the token generated for this request, or "".
func CSRFToken(c *gin.Context) string {
	if token, exists := c.Get(contextKeyCSRFToken); exists {
		if t, ok := token.(string); ok {
			return t
		}
	}
	return ""
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "error",
		"error":  ErrCSRFInvalid.Message(),
		"code":   string(apperr.Forbidden),
	})
}

func hasSessionCookie(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	return err == nil && cookie.Value != ""
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
