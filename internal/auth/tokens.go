package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/entities"
)

var (
	ErrInvalidToken = apperr.New(apperr.Unauthorized, "invalid token")
	ErrTokenExpired = apperr.New(apperr.Unauthorized, "token expired")
)

// Claims are the JWT claims of an access token. The subject is the member ID.
type Claims struct {
	Role entities.RoleID `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, issuer string, expiry time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: secret,
		issuer: issuer,
		expiry: expiry,
		now:    time.Now,
	}
}

// Mint issues a token for member and returns it with its expiry time.
func (t *TokenIssuer) Mint(member *entities.Member) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.expiry)

	claims := Claims{
		Role: member.RoleID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   strconv.FormatUint(uint64(member.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies a token and returns the principal it names.
func (t *TokenIssuer) Parse(raw string) (*Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Join(ErrInvalidToken, err)
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	return &Principal{
		MemberID: uint(id),
		Role:     claims.Role,
		Method:   AuthTypeBearer,
	}, nil
}
