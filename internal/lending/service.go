// Package lending implements the borrow lifecycle:
//
//	(none) --request--> pending --approve--> borrowed --return--> returned
//	                       |
//	                       +------reject-----> (deleted)
//
// Every transition and query runs under the configured operation timeout.
// Transitions are also counted in metrics, written to the audit log and
// logged with the request id.
package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/database/borrows"
	"github.com/mrlokans/librarian/internal/database/catalog"
	"github.com/mrlokans/librarian/internal/database/members"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/logging"
)

const DefaultOperationTimeout = 5 * time.Second

var (
	ErrBookUnavailable = borrows.ErrBookUnavailable
	ErrBookNotFound    = catalog.ErrBookNotFound
	ErrMemberNotFound  = members.ErrMemberNotFound
	ErrRequestNotFound = apperr.New(apperr.NotFound, "pending borrow request not found")
	ErrNotBorrowed     = apperr.New(apperr.NotFound, "book is not currently borrowed")
	ErrTimeout         = apperr.New(apperr.Unavailable, "lending operation timed out")
)

// Store persists borrow records. Implemented by borrows.Repository.
type Store interface {
	Create(ctx context.Context, bookID, memberID uint, at time.Time) (*entities.BorrowRecord, error)
	UpdateStatus(ctx context.Context, id uint, from, to entities.BorrowStatus, returnedAt *time.Time) (*entities.BorrowRecord, error)
	UpdateStatusByBook(ctx context.Context, bookID uint, from, to entities.BorrowStatus, returnedAt *time.Time) (*entities.BorrowRecord, error)
	DeleteWithStatus(ctx context.Context, id uint, status entities.BorrowStatus) (*entities.BorrowRecord, error)
	Pending(ctx context.Context) ([]entities.PendingRequestView, error)
	ActiveForMember(ctx context.Context, memberID uint) ([]entities.ActiveBorrowView, error)
	HistoryForMember(ctx context.Context, memberID uint) ([]entities.HistoryView, error)
	PendingOlderThan(ctx context.Context, cutoff time.Time) ([]uint, error)
	CountByStatus(ctx context.Context) (map[entities.BorrowStatus]int64, error)
}

// MemberDirectory answers whether a member exists.
type MemberDirectory interface {
	Exists(ctx context.Context, id uint) (bool, error)
}

// Auditor receives one event per transition attempt.
type Auditor interface {
	LogBorrow(ctx context.Context, actorID uint, action string, recordID, bookID uint, err error)
}

// Recorder counts transition outcomes.
type Recorder interface {
	ObserveTransition(transition string, err error, duration time.Duration)
}

type Service struct {
	store    Store
	members  MemberDirectory
	auditor  Auditor
	recorder Recorder
	timeout  time.Duration
	now      func() time.Time
}

// NewService builds the lifecycle service. auditor and recorder may be nil.
func NewService(store Store, members MemberDirectory, auditor Auditor, recorder Recorder, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	if auditor == nil {
		auditor = nopAuditor{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		store:    store,
		members:  members,
		auditor:  auditor,
		recorder: recorder,
		timeout:  timeout,
		now:      time.Now,
	}
}

// RequestBorrow creates a pending request for bookID on behalf of memberID.
// The book must be available: a pending or borrowed record yields
// ErrBookUnavailable.
func (s *Service) RequestBorrow(ctx context.Context, bookID, memberID uint) (*entities.BorrowRecord, error) {
	return s.run(ctx, TransitionRequest, "borrow_request", memberID, bookID, func(ctx context.Context) (*entities.BorrowRecord, error) {
		return s.store.Create(ctx, bookID, memberID, s.now().UTC())
	})
}

// Approve moves a pending request to borrowed.
func (s *Service) Approve(ctx context.Context, actorID, recordID uint) (*entities.BorrowRecord, error) {
	rule := mustRule(TransitionApprove)
	return s.run(ctx, TransitionApprove, "borrow_approve", actorID, 0, func(ctx context.Context) (*entities.BorrowRecord, error) {
		record, err := s.store.UpdateStatus(ctx, recordID, rule.From, rule.To, nil)
		if errors.Is(err, borrows.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return record, err
	})
}

// Reject deletes a pending request; the book becomes available again.
func (s *Service) Reject(ctx context.Context, actorID, recordID uint) (*entities.BorrowRecord, error) {
	return s.reject(ctx, "borrow_reject", actorID, recordID)
}

// Return closes the borrowed record of bookID and stamps the return date.
func (s *Service) Return(ctx context.Context, actorID, bookID uint) (*entities.BorrowRecord, error) {
	rule := mustRule(TransitionReturn)
	return s.run(ctx, TransitionReturn, "borrow_return", actorID, bookID, func(ctx context.Context) (*entities.BorrowRecord, error) {
		returnedAt := s.now().UTC()
		record, err := s.store.UpdateStatusByBook(ctx, bookID, rule.From, rule.To, &returnedAt)
		if errors.Is(err, borrows.ErrRecordNotFound) {
			return nil, ErrNotBorrowed
		}
		return record, err
	})
}

// ExpireStalePending rejects every pending request older than maxAge and
// returns how many were removed. Requests resolved concurrently are skipped.
func (s *Service) ExpireStalePending(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	cutoff := s.now().UTC().Add(-maxAge)
	ids, err := query(ctx, s.timeout, func(ctx context.Context) ([]uint, error) {
		return s.store.PendingOlderThan(ctx, cutoff)
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		_, err := s.reject(ctx, "borrow_expire", 0, id)
		if errors.Is(err, ErrRequestNotFound) {
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("failed to expire request %d: %w", id, err)
		}
		expired++
	}
	return expired, nil
}

// PendingRequests lists every pending request, oldest first.
func (s *Service) PendingRequests(ctx context.Context) ([]entities.PendingRequestView, error) {
	return query(ctx, s.timeout, s.store.Pending)
}

// ActiveBorrowsForMember lists the books memberID currently holds.
func (s *Service) ActiveBorrowsForMember(ctx context.Context, memberID uint) ([]entities.ActiveBorrowView, error) {
	return query(ctx, s.timeout, func(ctx context.Context) ([]entities.ActiveBorrowView, error) {
		if err := s.requireMember(ctx, memberID); err != nil {
			return nil, err
		}
		return s.store.ActiveForMember(ctx, memberID)
	})
}

// HistoryForMember lists returned records of memberID, latest return first.
func (s *Service) HistoryForMember(ctx context.Context, memberID uint) ([]entities.HistoryView, error) {
	return query(ctx, s.timeout, func(ctx context.Context) ([]entities.HistoryView, error) {
		if err := s.requireMember(ctx, memberID); err != nil {
			return nil, err
		}
		return s.store.HistoryForMember(ctx, memberID)
	})
}

// StatusCounts returns the number of records per status.
func (s *Service) StatusCounts(ctx context.Context) (map[entities.BorrowStatus]int64, error) {
	return query(ctx, s.timeout, s.store.CountByStatus)
}

func (s *Service) reject(ctx context.Context, action string, actorID, recordID uint) (*entities.BorrowRecord, error) {
	rule := mustRule(TransitionReject)
	return s.run(ctx, TransitionReject, action, actorID, 0, func(ctx context.Context) (*entities.BorrowRecord, error) {
		record, err := s.store.DeleteWithStatus(ctx, recordID, rule.From)
		if errors.Is(err, borrows.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return record, err
	})
}

func (s *Service) requireMember(ctx context.Context, memberID uint) error {
	exists, err := s.members.Exists(ctx, memberID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrMemberNotFound
	}
	return nil
}

// run applies the operation timeout and records the outcome of one
// transition.
func (s *Service) run(
	ctx context.Context,
	transition Transition,
	action string,
	actorID, bookID uint,
	op func(context.Context) (*entities.BorrowRecord, error),
) (*entities.BorrowRecord, error) {
	start := time.Now()
	record, err := query(ctx, s.timeout, op)
	s.recorder.ObserveTransition(string(transition), err, time.Since(start))

	var recordID uint
	if record != nil {
		recordID = record.ID
		bookID = record.BookID
	}
	s.auditor.LogBorrow(ctx, actorID, action, recordID, bookID, err)

	log := logging.FromContext(ctx)
	if err != nil {
		event := log.Warn()
		if apperr.KindOf(err) == apperr.Internal {
			event = log.Error()
		}
		event.Err(err).
			Str("transition", string(transition)).
			Uint("actor_id", actorID).
			Uint("book_id", bookID).
			Msg("borrow transition failed")
		return nil, err
	}

	log.Info().
		Str("transition", string(transition)).
		Uint("actor_id", actorID).
		Uint("record_id", recordID).
		Uint("book_id", bookID).
		Str("status", string(record.Status)).
		Msg("borrow transition applied")
	return record, nil
}

// query runs op under timeout. A deadline hit is reported as ErrTimeout
// joined with the underlying error.
func query[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := op(opCtx)
	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		err = errors.Join(ErrTimeout, err)
	}
	return v, err
}

type nopAuditor struct{}

func (nopAuditor) LogBorrow(context.Context, uint, string, uint, uint, error) {}

type nopRecorder struct{}

func (nopRecorder) ObserveTransition(string, error, time.Duration) {}
