package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entities"
)

// setupTestDB creates a fresh test database
func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedBookAndMember(t *testing.T, db *Database) (bookID, memberID uint) {
	t.Helper()

	author := entities.Author{Name: "Octavia E. Butler"}
	require.NoError(t, db.DB.Create(&author).Error)
	category := entities.Category{Name: "Science Fiction"}
	require.NoError(t, db.DB.Create(&category).Error)
	book := entities.Book{Title: "Kindred", AuthorID: author.ID, CategoryID: category.ID, PageCount: 264}
	require.NoError(t, db.DB.Omit("Author", "Category").Create(&book).Error)

	member := entities.Member{FullName: "Dana Franklin", Email: "dana@example.com", SecretHash: "x", RoleID: entities.RoleMember}
	require.NoError(t, db.DB.Create(&member).Error)
	return book.ID, member.ID
}

func TestDatabaseInitialization(t *testing.T) {
	t.Run("NewDatabase creates database file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "init.db")

		db, err := NewDatabase(dbPath)
		require.NoError(t, err)
		defer db.Close()

		assert.FileExists(t, dbPath)
		assert.Equal(t, config.DriverSQLite, db.Driver)
	})

	t.Run("Migrate is idempotent", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "idempotent.db")

		db1, err := NewDatabase(dbPath)
		require.NoError(t, err)
		require.NoError(t, db1.Close())

		db2, err := NewDatabase(dbPath)
		require.NoError(t, err)
		defer db2.Close()

		assert.NoError(t, db2.Migrate())
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		_, err := Open(config.Database{Driver: "mysql"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})

	t.Run("Close closes database connection", func(t *testing.T) {
		db := setupTestDB(t)

		require.NoError(t, db.Ping(context.Background()))
		require.NoError(t, db.Close())
		assert.Error(t, db.Ping(context.Background()))
	})
}

func TestActiveBorrowIndex(t *testing.T) {
	db := setupTestDB(t)
	bookID, memberID := seedBookAndMember(t, db)
	now := time.Now()

	first := entities.BorrowRecord{BookID: bookID, MemberID: memberID, Status: entities.BorrowStatusPending, BorrowedAt: now}
	require.NoError(t, db.DB.Omit("Book", "Member").Create(&first).Error)

	t.Run("second active record is a unique violation", func(t *testing.T) {
		second := entities.BorrowRecord{BookID: bookID, MemberID: memberID, Status: entities.BorrowStatusBorrowed, BorrowedAt: now}
		err := db.DB.Omit("Book", "Member").Create(&second).Error
		require.Error(t, err)
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("returned records do not count", func(t *testing.T) {
		returnedAt := now.Add(time.Hour)
		for range 2 {
			returned := entities.BorrowRecord{
				BookID: bookID, MemberID: memberID,
				Status: entities.BorrowStatusReturned, BorrowedAt: now, ReturnedAt: &returnedAt,
			}
			require.NoError(t, db.DB.Omit("Book", "Member").Create(&returned).Error)
		}
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "lib.db?"+sqliteParams, sqliteDSN("lib.db"))
	assert.Equal(t, "file:lib.db?cache=shared&"+sqliteParams, sqliteDSN("file:lib.db?cache=shared"))
}

func TestSeedCatalog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	samples := SampleCatalog()

	created, err := db.SeedCatalog(ctx, samples)
	require.NoError(t, err)
	assert.Equal(t, len(samples), created)

	var books, authors, categories int64
	require.NoError(t, db.DB.Model(&entities.Book{}).Count(&books).Error)
	require.NoError(t, db.DB.Model(&entities.Author{}).Count(&authors).Error)
	require.NoError(t, db.DB.Model(&entities.Category{}).Count(&categories).Error)
	assert.Equal(t, int64(len(samples)), books)
	assert.Less(t, authors, books, "authors are shared between titles")
	assert.Less(t, categories, authors)

	t.Run("non-empty catalog is untouched", func(t *testing.T) {
		created, err := db.SeedCatalog(ctx, samples)
		require.NoError(t, err)
		assert.Zero(t, created)
	})
}
