// Package auth provides member credentials, request authentication and the
// administrator check.
//
// Callers authenticate with either an HS256 bearer token minted at login or
// the server-side session cookie started by the same login. The middleware
// resolves a Principal once per request; controllers read it with
// PrincipalFrom and never consult the database for the caller's role.
//
// # Configuration
//
//	AUTH_JWT_SECRET=<32+ chars>     # Random per process if empty
//	AUTH_JWT_ISSUER=librarian
//	AUTH_TOKEN_EXPIRY=24h
//	AUTH_SESSION_LIFETIME=24h
//	AUTH_BCRYPT_COST=12
//	AUTH_SECURE_COOKIES=true        # HTTPS-only cookies
//	AUTH_CSRF_ENABLED=true
//	AUTH_MAX_LOGIN_ATTEMPTS=5
//
// # Usage
//
//	tokens := auth.NewTokenIssuer(secret, cfg.Auth.JWTIssuer, cfg.Auth.TokenExpiry)
//	mw := auth.NewMiddleware(tokens, sessions)
//	router.Use(sessions.LoadAndSave(), mw.Handler())
//	router.POST("/books", mw.RequireAdmin(), books.Create)
package auth
