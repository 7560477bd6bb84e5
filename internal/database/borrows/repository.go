// Package borrows provides database operations for borrow records.
//
// State changes are conditional updates: each one names the status the
// record must currently have, so a stale caller changes zero rows instead of
// overwriting a concurrent transition. The allowed from/to pairs are owned by
// the lending package.
package borrows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/catalog"
	"github.com/mrlokans/librarian/internal/database/members"
	"github.com/mrlokans/librarian/internal/entities"
)

var (
	ErrRecordNotFound  = apperr.New(apperr.NotFound, "borrow record not found")
	ErrBookUnavailable = apperr.New(apperr.Conflict, "book is not available")
)

// Repository handles borrow record database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new borrows repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a pending record for bookID on behalf of memberID.
//
// The existence and availability checks run in the same transaction as the
// insert. Two requests that pass the check concurrently still collide on
// idx_borrow_records_active_book; the loser gets ErrBookUnavailable.
func (r *Repository) Create(ctx context.Context, bookID, memberID uint, at time.Time) (*entities.BorrowRecord, error) {
	record := &entities.BorrowRecord{
		BookID:     bookID,
		MemberID:   memberID,
		Status:     entities.BorrowStatusPending,
		BorrowedAt: at,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.Book{}).Where("id = ?", bookID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return catalog.ErrBookNotFound
		}

		if err := tx.Model(&entities.Member{}).Where("id = ?", memberID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return members.ErrMemberNotFound
		}

		err := tx.Model(&entities.BorrowRecord{}).
			Where("book_id = ? AND status IN ?", bookID, entities.ActiveBorrowStatuses).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrBookUnavailable
		}

		return tx.Omit("Member", "Book").Create(record).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrBookUnavailable
		}
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create borrow record: %w", err)
	}
	return record, nil
}

// UpdateStatus moves record id from one status to another and returns the
// updated record. ErrRecordNotFound means no record with that id is
// currently in status from.
func (r *Repository) UpdateStatus(ctx context.Context, id uint, from, to entities.BorrowStatus, returnedAt *time.Time) (*entities.BorrowRecord, error) {
	var record entities.BorrowRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entities.BorrowRecord{}).
			Where("id = ? AND status = ?", id, from).
			Updates(statusUpdates(to, returnedAt))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return tx.First(&record, id).Error
	})
	if err != nil {
		return nil, wrapError(err, "update borrow record")
	}
	return &record, nil
}

// UpdateStatusByBook moves the record of bookID that is in status from to
// status to. ErrRecordNotFound means the book has no such record.
func (r *Repository) UpdateStatusByBook(ctx context.Context, bookID uint, from, to entities.BorrowStatus, returnedAt *time.Time) (*entities.BorrowRecord, error) {
	var record entities.BorrowRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("book_id = ? AND status = ?", bookID, from).
			Order("id DESC").
			First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		if err != nil {
			return err
		}

		res := tx.Model(&entities.BorrowRecord{}).
			Where("id = ? AND status = ?", record.ID, from).
			Updates(statusUpdates(to, returnedAt))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return tx.First(&record, record.ID).Error
	})
	if err != nil {
		return nil, wrapError(err, "update borrow record")
	}
	return &record, nil
}

// DeleteWithStatus removes record id if it is currently in status and
// returns the removed record.
func (r *Repository) DeleteWithStatus(ctx context.Context, id uint, status entities.BorrowStatus) (*entities.BorrowRecord, error) {
	var record entities.BorrowRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND status = ?", id, status).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		if err != nil {
			return err
		}

		res := tx.Where("id = ? AND status = ?", id, status).Delete(&entities.BorrowRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err, "delete borrow record")
	}
	return &record, nil
}

// Pending lists every pending request with book title and member name,
// oldest first.
func (r *Repository) Pending(ctx context.Context) ([]entities.PendingRequestView, error) {
	views := []entities.PendingRequestView{}
	err := r.db.WithContext(ctx).
		Table("borrow_records").
		Select(`borrow_records.id, borrow_records.book_id, books.title,
			borrow_records.member_id, members.full_name AS member, borrow_records.borrowed_at`).
		Joins("JOIN books ON books.id = borrow_records.book_id").
		Joins("JOIN members ON members.id = borrow_records.member_id").
		Where("borrow_records.status = ?", entities.BorrowStatusPending).
		Order("borrow_records.borrowed_at ASC, borrow_records.id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	return views, nil
}

// ActiveForMember lists the books memberID currently holds.
func (r *Repository) ActiveForMember(ctx context.Context, memberID uint) ([]entities.ActiveBorrowView, error) {
	views := []entities.ActiveBorrowView{}
	err := r.db.WithContext(ctx).
		Table("borrow_records").
		Select("borrow_records.id, borrow_records.book_id, books.title, borrow_records.borrowed_at").
		Joins("JOIN books ON books.id = borrow_records.book_id").
		Where("borrow_records.member_id = ? AND borrow_records.status = ?", memberID, entities.BorrowStatusBorrowed).
		Order("borrow_records.borrowed_at ASC, borrow_records.id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active borrows: %w", err)
	}
	return views, nil
}

// HistoryForMember lists the returned records of memberID, most recent
// return first. Soft-deleted books stay resolvable.
func (r *Repository) HistoryForMember(ctx context.Context, memberID uint) ([]entities.HistoryView, error) {
	views := []entities.HistoryView{}
	err := r.db.WithContext(ctx).
		Table("borrow_records").
		Select(`borrow_records.id, borrow_records.book_id, books.title,
			borrow_records.borrowed_at, borrow_records.returned_at`).
		Joins("JOIN books ON books.id = borrow_records.book_id").
		Where("borrow_records.member_id = ? AND borrow_records.status = ?", memberID, entities.BorrowStatusReturned).
		Order("borrow_records.returned_at DESC, borrow_records.id DESC").
		Scan(&views).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list borrow history: %w", err)
	}
	return views, nil
}

// PendingOlderThan returns the IDs of pending records requested before cutoff.
func (r *Repository) PendingOlderThan(ctx context.Context, cutoff time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&entities.BorrowRecord{}).
		Where("status = ? AND borrowed_at < ?", entities.BorrowStatusPending, cutoff).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending requests: %w", err)
	}
	return ids, nil
}

// CountByStatus returns the number of records per status.
func (r *Repository) CountByStatus(ctx context.Context) (map[entities.BorrowStatus]int64, error) {
	var rows []struct {
		Status entities.BorrowStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&entities.BorrowRecord{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count borrow records: %w", err)
	}

	counts := make(map[entities.BorrowStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func statusUpdates(to entities.BorrowStatus, returnedAt *time.Time) map[string]any {
	updates := map[string]any{"status": to}
	if returnedAt != nil {
		updates["returned_at"] = *returnedAt
	}
	return updates
}

func wrapError(err error, op string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
