package members

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "members.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(db.DB)
}

func newMember(email string) *entities.Member {
	return &entities.Member{
		FullName:   "Ada Lovelace",
		Email:      email,
		SecretHash: "hash",
		RoleID:     entities.RoleMember,
	}
}

func TestRepository_Create(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	member := newMember("ada@example.com")
	require.NoError(t, repo.Create(ctx, member))
	assert.NotZero(t, member.ID)

	t.Run("duplicate email is rejected", func(t *testing.T) {
		err := repo.Create(ctx, newMember("ada@example.com"))
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestRepository_GetByEmail(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	created := newMember("grace@example.com")
	require.NoError(t, repo.Create(ctx, created))

	found, err := repo.GetByEmail(ctx, "grace@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "hash", found.SecretHash)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestRepository_GetByID(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	created := newMember("linus@example.com")
	require.NoError(t, repo.Create(ctx, created))

	found, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "linus@example.com", found.Email)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestRepository_CreateFirst(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	first := newMember("first@example.com")
	first.RoleID = entities.RoleAdministrator
	require.NoError(t, repo.CreateFirst(ctx, first))
	assert.NotZero(t, first.ID)

	second := newMember("second@example.com")
	assert.ErrorIs(t, repo.CreateFirst(ctx, second), ErrNotFirst)
	assert.Zero(t, second.ID)

	_, err := repo.GetByEmail(ctx, "second@example.com")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestRepository_CreateFirstConcurrent(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.CreateFirst(ctx, newMember(fmt.Sprintf("admin%d@example.com", i)))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrNotFirst)
	}
	assert.Equal(t, 1, created)
}

func TestRepository_Exists(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	member := newMember("ken@example.com")
	require.NoError(t, repo.Create(ctx, member))

	exists, err := repo.Exists(ctx, member.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, member.ID+1)
	require.NoError(t, err)
	assert.False(t, exists)
}
