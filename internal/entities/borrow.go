package entities

import "time"

// BorrowStatus is the lifecycle state of a borrow record. The set is closed:
// pending, borrowed and returned are the only values persisted.
type BorrowStatus string

const (
	BorrowStatusPending  BorrowStatus = "pending"
	BorrowStatusBorrowed BorrowStatus = "borrowed"
	BorrowStatusReturned BorrowStatus = "returned"
)

// ActiveBorrowStatuses lists the statuses covered by the one-active-record
// per book constraint.
var ActiveBorrowStatuses = []BorrowStatus{BorrowStatusPending, BorrowStatusBorrowed}

type BorrowRecord struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	MemberID   uint         `gorm:"not null;index" json:"memberId"`
	Member     Member       `gorm:"foreignKey:MemberID" json:"-"`
	BookID     uint         `gorm:"not null;index" json:"bookId"`
	Book       Book         `gorm:"foreignKey:BookID" json:"-"`
	Status     BorrowStatus `gorm:"size:20;not null;index" json:"status"`
	BorrowedAt time.Time    `gorm:"not null" json:"borrowedAt"`
	ReturnedAt *time.Time   `json:"returnedAt,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// PendingRequestView is a pending record joined with book and member.
type PendingRequestView struct {
	ID         uint      `json:"id"`
	BookID     uint      `json:"bookId"`
	Title      string    `json:"title"`
	MemberID   uint      `json:"memberId"`
	Member     string    `json:"member"`
	BorrowedAt time.Time `json:"borrowedAt"`
}

// ActiveBorrowView is a borrowed record joined with the book title.
type ActiveBorrowView struct {
	ID         uint      `json:"id"`
	BookID     uint      `json:"bookId"`
	Title      string    `json:"title"`
	BorrowedAt time.Time `json:"borrowedAt"`
}

// HistoryView is a returned record joined with the book title.
type HistoryView struct {
	ID         uint      `json:"id"`
	BookID     uint      `json:"bookId"`
	Title      string    `json:"title"`
	BorrowedAt time.Time `json:"borrowedAt"`
	ReturnedAt time.Time `json:"returnedAt"`
}
