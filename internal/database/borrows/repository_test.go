package borrows

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/catalog"
	"github.com/mrlokans/librarian/internal/database/members"
	"github.com/mrlokans/librarian/internal/entities"
)

type testEnv struct {
	repo   *Repository
	db     *gorm.DB
	member *entities.Member
	books  []*entities.Book
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "borrows.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	catalogRepo := catalog.NewRepository(db.DB)
	author, err := catalogRepo.CreateAuthor(ctx, "Ursula K. Le Guin")
	require.NoError(t, err)
	category, err := catalogRepo.CreateCategory(ctx, "Fantasy")
	require.NoError(t, err)

	env := &testEnv{repo: NewRepository(db.DB), db: db.DB}
	for _, title := range []string{"A Wizard of Earthsea", "The Tombs of Atuan"} {
		book, err := catalogRepo.CreateBook(ctx, catalog.BookInput{Title: title, AuthorID: author.ID, CategoryID: category.ID})
		require.NoError(t, err)
		env.books = append(env.books, book)
	}

	env.member = &entities.Member{FullName: "Ged Sparrowhawk", Email: "ged@example.com", SecretHash: "hash", RoleID: entities.RoleMember}
	require.NoError(t, members.NewRepository(db.DB).Create(ctx, env.member))

	return env
}

func TestRepository_Create(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	record, err := env.repo.Create(ctx, env.books[0].ID, env.member.ID, now)
	require.NoError(t, err)
	assert.NotZero(t, record.ID)
	assert.Equal(t, entities.BorrowStatusPending, record.Status)

	t.Run("second active record is rejected", func(t *testing.T) {
		_, err := env.repo.Create(ctx, env.books[0].ID, env.member.ID, now)
		assert.ErrorIs(t, err, ErrBookUnavailable)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := env.repo.Create(ctx, 999, env.member.ID, now)
		assert.ErrorIs(t, err, catalog.ErrBookNotFound)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := env.repo.Create(ctx, env.books[1].ID, 999, now)
		assert.ErrorIs(t, err, members.ErrMemberNotFound)
	})
}

func TestActiveBorrowIndex(t *testing.T) {
	env := setupTestEnv(t)

	insert := func(status entities.BorrowStatus) error {
		return env.db.Omit("Member", "Book").Create(&entities.BorrowRecord{
			BookID:     env.books[0].ID,
			MemberID:   env.member.ID,
			Status:     status,
			BorrowedAt: time.Now(),
		}).Error
	}

	require.NoError(t, insert(entities.BorrowStatusReturned))
	require.NoError(t, insert(entities.BorrowStatusReturned))
	require.NoError(t, insert(entities.BorrowStatusBorrowed))

	err := insert(entities.BorrowStatusPending)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}

func TestRepository_UpdateStatus(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	record, err := env.repo.Create(ctx, env.books[0].ID, env.member.ID, time.Now())
	require.NoError(t, err)

	updated, err := env.repo.UpdateStatus(ctx, record.ID, entities.BorrowStatusPending, entities.BorrowStatusBorrowed, nil)
	require.NoError(t, err)
	assert.Equal(t, entities.BorrowStatusBorrowed, updated.Status)
	assert.Nil(t, updated.ReturnedAt)

	t.Run("stale from status changes nothing", func(t *testing.T) {
		_, err := env.repo.UpdateStatus(ctx, record.ID, entities.BorrowStatusPending, entities.BorrowStatusBorrowed, nil)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := env.repo.UpdateStatus(ctx, 999, entities.BorrowStatusPending, entities.BorrowStatusBorrowed, nil)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})
}

func TestRepository_UpdateStatusByBook(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	record, err := env.repo.Create(ctx, env.books[0].ID, env.member.ID, time.Now())
	require.NoError(t, err)

	_, err = env.repo.UpdateStatusByBook(ctx, env.books[0].ID, entities.BorrowStatusBorrowed, entities.BorrowStatusReturned, nil)
	assert.ErrorIs(t, err, ErrRecordNotFound, "pending record must not be returned")

	_, err = env.repo.UpdateStatus(ctx, record.ID, entities.BorrowStatusPending, entities.BorrowStatusBorrowed, nil)
	require.NoError(t, err)

	returnedAt := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	returned, err := env.repo.UpdateStatusByBook(ctx, env.books[0].ID, entities.BorrowStatusBorrowed, entities.BorrowStatusReturned, &returnedAt)
	require.NoError(t, err)
	assert.Equal(t, record.ID, returned.ID)
	assert.Equal(t, entities.BorrowStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.True(t, returnedAt.Equal(*returned.ReturnedAt))

	_, err = env.repo.UpdateStatusByBook(ctx, env.books[1].ID, entities.BorrowStatusBorrowed, entities.BorrowStatusReturned, &returnedAt)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRepository_DeleteWithStatus(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	record, err := env.repo.Create(ctx, env.books[0].ID, env.member.ID, time.Now())
	require.NoError(t, err)

	deleted, err := env.repo.DeleteWithStatus(ctx, record.ID, entities.BorrowStatusPending)
	require.NoError(t, err)
	assert.Equal(t, env.books[0].ID, deleted.BookID)

	var remaining int64
	require.NoError(t, env.db.Model(&entities.BorrowRecord{}).Where("id = ?", record.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)

	_, err = env.repo.DeleteWithStatus(ctx, record.ID, entities.BorrowStatusPending)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	t.Run("book can be requested again", func(t *testing.T) {
		_, err := env.repo.Create(ctx, env.books[0].ID, env.member.ID, time.Now())
		assert.NoError(t, err)
	})
}

func TestRepository_Queries(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	first, err := env.repo.Create(ctx, env.books[0].ID, env.member.ID, base)
	require.NoError(t, err)
	second, err := env.repo.Create(ctx, env.books[1].ID, env.member.ID, base.Add(time.Hour))
	require.NoError(t, err)

	pending, err := env.repo.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, "A Wizard of Earthsea", pending[0].Title)
	assert.Equal(t, "Ged Sparrowhawk", pending[0].Member)

	_, err = env.repo.UpdateStatus(ctx, first.ID, entities.BorrowStatusPending, entities.BorrowStatusBorrowed, nil)
	require.NoError(t, err)
	_, err = env.repo.UpdateStatus(ctx, second.ID, entities.BorrowStatusPending, entities.BorrowStatusBorrowed, nil)
	require.NoError(t, err)

	active, err := env.repo.ActiveForMember(ctx, env.member.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, env.books[0].ID, active[0].BookID)

	early := base.Add(24 * time.Hour)
	late := base.Add(48 * time.Hour)
	_, err = env.repo.UpdateStatusByBook(ctx, env.books[0].ID, entities.BorrowStatusBorrowed, entities.BorrowStatusReturned, &early)
	require.NoError(t, err)
	_, err = env.repo.UpdateStatusByBook(ctx, env.books[1].ID, entities.BorrowStatusBorrowed, entities.BorrowStatusReturned, &late)
	require.NoError(t, err)

	history, err := env.repo.HistoryForMember(ctx, env.member.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID, "most recent return first")
	assert.Equal(t, first.ID, history[1].ID)
	assert.True(t, late.Equal(history[0].ReturnedAt))

	active, err = env.repo.ActiveForMember(ctx, env.member.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	counts, err := env.repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[entities.BorrowStatusReturned])
	assert.Zero(t, counts[entities.BorrowStatusPending])
}

func TestRepository_PendingOlderThan(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale, err := env.repo.Create(ctx, env.books[0].ID, env.member.ID, now.Add(-72*time.Hour))
	require.NoError(t, err)
	_, err = env.repo.Create(ctx, env.books[1].ID, env.member.ID, now)
	require.NoError(t, err)

	ids, err := env.repo.PendingOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []uint{stale.ID}, ids)
}
