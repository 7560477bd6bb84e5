package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr error
	}{
		{name: "short secret is allowed", secret: "s1"},
		{name: "empty secret", secret: "", wantErr: ErrSecretRequired},
		{name: "at maximum length", secret: strings.Repeat("a", 72)},
		{name: "too long", secret: strings.Repeat("a", 73), wantErr: ErrSecretTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashSecret(tt.secret, bcrypt.MinCost)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.secret, hash)
		})
	}
}

func TestCheckSecret(t *testing.T) {
	hash, err := HashSecret("s1", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, CheckSecret("s1", hash))
	assert.ErrorIs(t, CheckSecret("s2", hash), ErrInvalidCredentials)
	assert.ErrorIs(t, CheckSecret("", hash), ErrInvalidCredentials)
}

func TestGenerateSecret(t *testing.T) {
	first, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := GenerateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
