package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/logging"
)

// Task names double as backlite queue names and metric labels.
const (
	TaskCleanupAuditEvents    = "cleanup_audit_events"
	TaskExpirePendingRequests = "expire_pending_requests"
)

// Recorder observes task outcomes. Implemented by metrics.Metrics.
type Recorder interface {
	ObserveTask(task string, err error)
}

// BorrowGauge receives the current borrow record count per status.
// Implemented by metrics.Metrics.
type BorrowGauge interface {
	SetBorrowRecords(counts map[string]int64)
}

// PendingExpirer rejects stale pending requests. Implemented by
// lending.Service.
type PendingExpirer interface {
	ExpireStalePending(ctx context.Context, maxAge time.Duration) (int, error)
	StatusCounts(ctx context.Context) (map[entities.BorrowStatus]int64, error)
}

// ExpirePendingRequestsTask rejects pending borrow requests older than
// MaxAge and refreshes the borrow record gauge.
type ExpirePendingRequestsTask struct {
	MaxAge time.Duration `json:"max_age"`
}

func (t ExpirePendingRequestsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        TaskExpirePendingRequests,
		MaxAttempts: 2,
		Backoff:     time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   6 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ExpirePendingRequestsProcessor creates a processor function for
// ExpirePendingRequestsTask. gauge and recorder may be nil.
func ExpirePendingRequestsProcessor(expirer PendingExpirer, gauge BorrowGauge, recorder Recorder) backlite.QueueProcessor[ExpirePendingRequestsTask] {
	return func(ctx context.Context, task ExpirePendingRequestsTask) (err error) {
		defer func() { observe(recorder, TaskExpirePendingRequests, err) }()

		if expirer == nil {
			return fmt.Errorf("pending expirer not configured")
		}

		expired, err := expirer.ExpireStalePending(ctx, task.MaxAge)
		if err != nil {
			return fmt.Errorf("expire pending requests: %w", err)
		}
		if expired > 0 {
			logging.FromContext(ctx).Info().
				Int("expired", expired).
				Dur("max_age", task.MaxAge).
				Msg("expired stale borrow requests")
		}

		if gauge == nil {
			return nil
		}
		counts, err := expirer.StatusCounts(ctx)
		if err != nil {
			return fmt.Errorf("count borrow records: %w", err)
		}
		gauge.SetBorrowRecords(statusLabels(counts))
		return nil
	}
}

// NewExpirePendingRequestsQueue creates a backlite queue for pending request
// expiry.
func NewExpirePendingRequestsQueue(expirer PendingExpirer, gauge BorrowGauge, recorder Recorder) backlite.Queue {
	return backlite.NewQueue(ExpirePendingRequestsProcessor(expirer, gauge, recorder))
}

func statusLabels(counts map[entities.BorrowStatus]int64) map[string]int64 {
	out := map[string]int64{
		string(entities.BorrowStatusPending):  0,
		string(entities.BorrowStatusBorrowed): 0,
		string(entities.BorrowStatusReturned): 0,
	}
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}

func observe(recorder Recorder, task string, err error) {
	if recorder != nil {
		recorder.ObserveTask(task, err)
	}
}
