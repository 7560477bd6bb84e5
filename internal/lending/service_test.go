package lending

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/borrows"
	"github.com/mrlokans/librarian/internal/database/catalog"
	"github.com/mrlokans/librarian/internal/database/members"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/metrics"
)

type testEnv struct {
	svc     *Service
	metrics *metrics.Metrics
	members *members.Repository
	books   []*entities.Book
	reader  *entities.Member
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "lending.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	catalogRepo := catalog.NewRepository(db.DB)
	author, err := catalogRepo.CreateAuthor(ctx, "Stanislaw Lem")
	require.NoError(t, err)
	category, err := catalogRepo.CreateCategory(ctx, "Science Fiction")
	require.NoError(t, err)

	env := &testEnv{
		members: members.NewRepository(db.DB),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	for _, title := range []string{"Solaris", "The Cyberiad"} {
		book, err := catalogRepo.CreateBook(ctx, catalog.BookInput{Title: title, AuthorID: author.ID, CategoryID: category.ID})
		require.NoError(t, err)
		env.books = append(env.books, book)
	}
	env.reader = env.addMember(t, "reader@example.com")

	env.svc = NewService(borrows.NewRepository(db.DB), env.members, nil, env.metrics, time.Second)
	return env
}

func (e *testEnv) addMember(t *testing.T, email string) *entities.Member {
	t.Helper()
	m := &entities.Member{FullName: "Kris Kelvin", Email: email, SecretHash: "hash", RoleID: entities.RoleMember}
	require.NoError(t, e.members.Create(context.Background(), m))
	return m
}

func TestLifecycleTable(t *testing.T) {
	assert.True(t, CanTransition(entities.BorrowStatusPending, entities.BorrowStatusBorrowed))
	assert.True(t, CanTransition(entities.BorrowStatusBorrowed, entities.BorrowStatusReturned))
	assert.False(t, CanTransition(entities.BorrowStatusPending, entities.BorrowStatusReturned))
	assert.False(t, CanTransition(entities.BorrowStatusReturned, entities.BorrowStatusBorrowed))
	assert.False(t, CanTransition(entities.BorrowStatusBorrowed, entities.BorrowStatusPending))

	rule, ok := RuleFor(TransitionReject)
	require.True(t, ok)
	assert.True(t, rule.Removes)

	_, ok = RuleFor("renew")
	assert.False(t, ok)
}

func TestRequestBorrow(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	record, err := env.svc.RequestBorrow(ctx, env.books[0].ID, env.reader.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.BorrowStatusPending, record.Status)
	assert.False(t, record.BorrowedAt.IsZero())

	t.Run("second request conflicts", func(t *testing.T) {
		_, err := env.svc.RequestBorrow(ctx, env.books[0].ID, env.reader.ID)
		assert.ErrorIs(t, err, ErrBookUnavailable)
		assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := env.svc.RequestBorrow(ctx, 999, env.reader.ID)
		assert.ErrorIs(t, err, ErrBookNotFound)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := env.svc.RequestBorrow(ctx, env.books[1].ID, 999)
		assert.ErrorIs(t, err, ErrMemberNotFound)
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(metricsCounter(env, "request", metrics.OutcomeSuccess)))
	assert.Equal(t, 3.0, testutil.ToFloat64(metricsCounter(env, "request", metrics.OutcomeFailure)))
}

func TestRequestBorrow_ConcurrentRequestsForOneBook(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	const requesters = 8
	readers := make([]*entities.Member, requesters)
	for i := range readers {
		readers[i] = env.addMember(t, fmt.Sprintf("reader%d@example.com", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, requesters)
	for i := range readers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.RequestBorrow(ctx, env.books[0].ID, readers[i].ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrBookUnavailable)
	}
	assert.Equal(t, 1, succeeded)

	pending, err := env.svc.PendingRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestApprove(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	record, err := env.svc.RequestBorrow(ctx, env.books[0].ID, env.reader.ID)
	require.NoError(t, err)

	approved, err := env.svc.Approve(ctx, 1, record.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.BorrowStatusBorrowed, approved.Status)

	t.Run("already resolved", func(t *testing.T) {
		_, err := env.svc.Approve(ctx, 1, record.ID)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := env.svc.Approve(ctx, 1, 999)
		assert.ErrorIs(t, err, ErrRequestNotFound)
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	})

	t.Run("borrowed book still unavailable", func(t *testing.T) {
		_, err := env.svc.RequestBorrow(ctx, env.books[0].ID, env.reader.ID)
		assert.ErrorIs(t, err, ErrBookUnavailable)
	})
}

func TestReject(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	record, err := env.svc.RequestBorrow(ctx, env.books[0].ID, env.reader.ID)
	require.NoError(t, err)

	_, err = env.svc.Reject(ctx, 1, record.ID)
	require.NoError(t, err)

	pending, err := env.svc.PendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	t.Run("book is available again", func(t *testing.T) {
		again, err := env.svc.RequestBorrow(ctx, env.books[0].ID, env.reader.ID)
		require.NoError(t, err)

		_, err = env.svc.Approve(ctx, 1, again.ID)
		require.NoError(t, err)

		_, err = env.svc.Reject(ctx, 1, again.ID)
		assert.ErrorIs(t, err, ErrRequestNotFound, "borrowed records cannot be rejected")
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := env.svc.Reject(ctx, 1, 999)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestReturn(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Return(ctx, env.reader.ID, env.books[0].ID)
	assert.ErrorIs(t, err, ErrNotBorrowed)

	record, err := env.svc.RequestBorrow(ctx, env.books[0].ID, env.reader.ID)
	require.NoError(t, err)

	_, err = env.svc.Return(ctx, env.reader.ID, env.books[0].ID)
	assert.ErrorIs(t, err, ErrNotBorrowed, "pending records cannot be returned")

	_, err = env.svc.Approve(ctx, 1, record.ID)
	require.NoError(t, err)

	returned, err := env.svc.Return(ctx, env.reader.ID, env.books[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entities.BorrowStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)

	_, err = env.svc.Return(ctx, env.reader.ID, env.books[0].ID)
	assert.ErrorIs(t, err, ErrNotBorrowed)
}

func TestFullBorrowScenario(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.books[1]

	record, err := env.svc.RequestBorrow(ctx, book.ID, env.reader.ID)
	require.NoError(t, err)
	_, err = env.svc.Approve(ctx, 1, record.ID)
	require.NoError(t, err)

	active, err := env.svc.ActiveBorrowsForMember(ctx, env.reader.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "The Cyberiad", active[0].Title)

	_, err = env.svc.Return(ctx, env.reader.ID, book.ID)
	require.NoError(t, err)

	history, err := env.svc.HistoryForMember(ctx, env.reader.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, book.ID, history[0].BookID)
	assert.False(t, history[0].ReturnedAt.IsZero())

	active, err = env.svc.ActiveBorrowsForMember(ctx, env.reader.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	counts, err := env.svc.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[entities.BorrowStatusReturned])
}

func TestMemberQueries_UnknownMember(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ActiveBorrowsForMember(ctx, 999)
	assert.ErrorIs(t, err, ErrMemberNotFound)

	_, err = env.svc.HistoryForMember(ctx, 999)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestExpireStalePending(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	fresh, err := env.svc.RequestBorrow(ctx, env.books[0].ID, env.reader.ID)
	require.NoError(t, err)

	env.svc.now = func() time.Time { return time.Now().Add(-72 * time.Hour) }
	_, err = env.svc.RequestBorrow(ctx, env.books[1].ID, env.reader.ID)
	require.NoError(t, err)
	env.svc.now = time.Now

	// Only the second request is older than two days.
	expired, err := env.svc.ExpireStalePending(ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	pending, err := env.svc.PendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.ID, pending[0].ID)

	expired, err = env.svc.ExpireStalePending(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, expired, "zero max age disables expiry")
}

// blockingStore waits for cancellation on Create and on the queries.
type blockingStore struct {
	Store
}

func (blockingStore) Create(ctx context.Context, _, _ uint, _ time.Time) (*entities.BorrowRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingStore) Pending(ctx context.Context) ([]entities.PendingRequestView, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingStore) HistoryForMember(ctx context.Context, _ uint) ([]entities.HistoryView, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingStore) CountByStatus(ctx context.Context) (map[entities.BorrowStatus]int64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// blockingDirectory waits for cancellation on Exists.
type blockingDirectory struct{}

func (blockingDirectory) Exists(ctx context.Context, _ uint) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestRequestBorrow_TimeoutIsUnavailable(t *testing.T) {
	svc := NewService(blockingStore{}, nil, nil, nil, 20*time.Millisecond)

	_, err := svc.RequestBorrow(context.Background(), 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, apperr.Unavailable, apperr.KindOf(err))
	assert.True(t, apperr.MetadataFor(apperr.KindOf(err)).Retryable)
}

func TestQueries_TimeoutIsUnavailable(t *testing.T) {
	svc := NewService(blockingStore{}, blockingDirectory{}, nil, nil, 20*time.Millisecond)
	ctx := context.Background()

	queries := map[string]func() error{
		"pending": func() error {
			_, err := svc.PendingRequests(ctx)
			return err
		},
		"active for member": func() error {
			_, err := svc.ActiveBorrowsForMember(ctx, 1)
			return err
		},
		"history for member": func() error {
			_, err := svc.HistoryForMember(ctx, 1)
			return err
		},
		"status counts": func() error {
			_, err := svc.StatusCounts(ctx)
			return err
		},
	}

	for name, run := range queries {
		t.Run(name, func(t *testing.T) {
			err := run()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTimeout)
			assert.Equal(t, apperr.Unavailable, apperr.KindOf(err))
		})
	}
}

func metricsCounter(env *testEnv, transition, outcome string) prometheus.Collector {
	return env.metrics.TransitionCounter(transition, outcome)
}
