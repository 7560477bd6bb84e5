package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var csrfSecret = []byte("test-secret-key-32-bytes-long!!!")

func decodeJSON(rr *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(rr.Body.Bytes(), v)
}

func csrfRouter() *gin.Engine {
	router := gin.New()
	router.Use(CSRFMiddleware(csrfSecret, false))
	router.GET("/csrf-token", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"token": CSRFToken(c)})
	})
	router.POST("/books", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestCSRFMiddleware_SkipsAnonymous(t *testing.T) {
	router := csrfRouter()

	req := httptest.NewRequest(http.MethodPost, "/books", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCSRFMiddleware_SkipsBearer(t *testing.T) {
	router := csrfRouter()

	req := httptest.NewRequest(http.MethodPost, "/books", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "abc"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCSRFMiddleware_BlocksSessionWithoutToken(t *testing.T) {
	router := csrfRouter()

	req := httptest.NewRequest(http.MethodPost, "/books", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "abc"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t,
		`{"status":"error","error":"CSRF token invalid or missing","code":"FORBIDDEN"}`,
		rr.Body.String())
}

func TestCSRFMiddleware_AcceptsValidToken(t *testing.T) {
	router := csrfRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/csrf-token", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, decodeJSON(rr, &body))
	require.NotEmpty(t, body.Token)

	req := httptest.NewRequest(http.MethodPost, "/books", nil)
	req.Header.Set(CSRFTokenHeader, body.Token)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "abc"})
	for _, cookie := range rr.Result().Cookies() {
		req.AddCookie(cookie)
	}
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
