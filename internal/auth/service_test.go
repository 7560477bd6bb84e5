package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/members"
	"github.com/mrlokans/librarian/internal/entities"
)

const testJWTSecret = "test-secret-that-is-long-enough-for-hs256"

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testAuthConfig() config.Auth {
	return config.Auth{
		JWTSecret:       testJWTSecret,
		JWTIssuer:       "librarian-test",
		TokenExpiry:     time.Hour,
		SessionLifetime: time.Hour,
		BcryptCost:      bcrypt.MinCost,
	}
}

func setupService(t *testing.T) *Service {
	t.Helper()
	db := setupTestDB(t)
	cfg := testAuthConfig()
	tokens := NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenExpiry)
	return NewService(members.NewRepository(db.DB), tokens, cfg)
}

func registration(email string, role entities.RoleID) Registration {
	return Registration{
		Name:    "Ursula",
		Surname: "Le Guin",
		Email:   email,
		Secret:  "s1",
		RoleID:  role,
	}
}

func TestService_Register(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	member, err := svc.Register(ctx, registration("a@x.com", 0), nil)
	require.NoError(t, err)

	assert.NotZero(t, member.ID)
	assert.Equal(t, "Ursula Le Guin", member.FullName)
	assert.Equal(t, entities.RoleMember, member.RoleID)
	assert.NotEqual(t, "s1", member.SecretHash)
	assert.NoError(t, CheckSecret("s1", member.SecretHash))
}

func TestService_RegisterValidation(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(r *Registration)
		wantErr error
	}{
		{name: "missing name", mutate: func(r *Registration) { r.Name = " " }, wantErr: ErrNameRequired},
		{name: "missing surname", mutate: func(r *Registration) { r.Surname = "" }, wantErr: ErrNameRequired},
		{name: "missing email", mutate: func(r *Registration) { r.Email = "" }, wantErr: ErrEmailRequired},
		{name: "missing secret", mutate: func(r *Registration) { r.Secret = "" }, wantErr: ErrSecretRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registration("v@x.com", entities.RoleMember)
			tt.mutate(&reg)

			_, err := svc.Register(ctx, reg, nil)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, apperr.Validation, apperr.KindOf(err))
		})
	}
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("dup@x.com", 0), nil)
	require.NoError(t, err)

	_, err = svc.Register(ctx, registration("dup@x.com", 0), nil)
	assert.ErrorIs(t, err, members.ErrEmailTaken)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestService_RegisterOtherRolesAsMember(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	for i, role := range []entities.RoleID{0, 2, 3, 7, -1} {
		member, err := svc.Register(ctx, registration(fmt.Sprintf("r%d@x.com", i), role), nil)
		require.NoError(t, err, "role %d", role)
		assert.Equal(t, entities.RoleMember, member.RoleID, "role %d", role)
	}
}

func TestService_RegisterBootstrapIsExclusive(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	const callers = 6
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(ctx, registration(fmt.Sprintf("boot%d@x.com", i), entities.RoleAdministrator), nil)
		}(i)
	}
	wg.Wait()

	admins := 0
	for _, err := range errs {
		if err == nil {
			admins++
			continue
		}
		assert.ErrorIs(t, err, ErrAdminRequired)
	}
	assert.Equal(t, 1, admins)
}

func TestService_RegisterAdministrator(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	// The first member may bootstrap the administrator role.
	admin, err := svc.Register(ctx, registration("admin@x.com", entities.RoleAdministrator), nil)
	require.NoError(t, err)
	assert.True(t, admin.IsAdministrator())

	t.Run("anonymous caller is forbidden once members exist", func(t *testing.T) {
		_, err := svc.Register(ctx, registration("second@x.com", entities.RoleAdministrator), nil)
		assert.ErrorIs(t, err, ErrAdminRequired)
	})

	t.Run("regular member cannot grant the role", func(t *testing.T) {
		caller := &Principal{MemberID: 99, Role: entities.RoleMember}
		_, err := svc.Register(ctx, registration("third@x.com", entities.RoleAdministrator), caller)
		assert.ErrorIs(t, err, ErrAdminRequired)
	})

	t.Run("administrator can grant the role", func(t *testing.T) {
		caller := &Principal{MemberID: admin.ID, Role: entities.RoleAdministrator}
		member, err := svc.Register(ctx, registration("fourth@x.com", entities.RoleAdministrator), caller)
		require.NoError(t, err)
		assert.Equal(t, entities.RoleAdministrator, member.RoleID)
	})
}

func TestService_CreateAdministrator(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("reader@x.com", 0), nil)
	require.NoError(t, err)

	admin, err := svc.CreateAdministrator(ctx, registration("ops@x.com", entities.RoleMember))
	require.NoError(t, err)
	assert.Equal(t, entities.RoleAdministrator, admin.RoleID)
}

func TestService_Login(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, registration("a@x.com", 0), nil)
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		result, err := svc.Login(ctx, "a@x.com", "s1")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, result.Member.ID)
		assert.NotEmpty(t, result.Token)
		assert.True(t, result.ExpiresAt.After(time.Now()))

		principal, err := svc.tokens.Parse(result.Token)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, principal.MemberID)
		assert.Equal(t, entities.RoleMember, principal.Role)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := svc.Login(ctx, "a@x.com", "s2")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
	})

	t.Run("unknown email is indistinguishable", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@x.com", "s1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, apperr.PublicMessage(ErrInvalidCredentials), apperr.PublicMessage(err))
	})
}

func TestService_Member(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, registration("a@x.com", 0), nil)
	require.NoError(t, err)

	member, err := svc.Member(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", member.Email)

	_, err = svc.Member(ctx, registered.ID+100)
	assert.ErrorIs(t, err, members.ErrMemberNotFound)
}
