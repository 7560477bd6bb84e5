package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/entities"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte(testJWTSecret), "librarian-test", time.Hour)
	member := &entities.Member{ID: 42, RoleID: entities.RoleAdministrator}

	raw, expiresAt, err := issuer.Mint(member)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	principal, err := issuer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, uint(42), principal.MemberID)
	assert.Equal(t, entities.RoleAdministrator, principal.Role)
	assert.Equal(t, AuthTypeBearer, principal.Method)
	assert.True(t, principal.IsAdministrator())
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer([]byte(testJWTSecret), "librarian-test", time.Hour)
	member := &entities.Member{ID: 7, RoleID: entities.RoleMember}

	t.Run("expired", func(t *testing.T) {
		past := NewTokenIssuer([]byte(testJWTSecret), "librarian-test", time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		raw, _, err := past.Mint(member)
		require.NoError(t, err)

		_, err = issuer.Parse(raw)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenIssuer([]byte("another-secret-that-is-long-enough-x"), "librarian-test", time.Hour)
		raw, _, err := other.Mint(member)
		require.NoError(t, err)

		_, err = issuer.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenIssuer([]byte(testJWTSecret), "someone-else", time.Hour)
		raw, _, err := other.Mint(member)
		require.NoError(t, err)

		_, err = issuer.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		claims := Claims{
			Role: entities.RoleAdministrator,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "librarian-test",
				Subject:   "1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = issuer.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
