package entities

import (
	"time"

	"gorm.io/gorm"
)

type Author struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:256;not null;index" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null;index" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Book struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Title      string         `gorm:"size:512;not null;index" json:"title"`
	AuthorID   uint           `gorm:"not null;index" json:"authorId"`
	Author     Author         `gorm:"foreignKey:AuthorID" json:"-"`
	CategoryID uint           `gorm:"not null;index" json:"categoryId"`
	Category   Category       `gorm:"foreignKey:CategoryID" json:"-"`
	ISBN       string         `gorm:"size:20;index" json:"isbn"`
	PageCount  int            `json:"pageCount"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// BookView is the joined read projection of a book.
type BookView struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Category  string `json:"category"`
	ISBN      string `json:"isbn"`
	PageCount int    `json:"pageCount"`
}

// BookFilter holds optional substring filters; empty fields are ignored.
type BookFilter struct {
	Title    string
	Author   string
	Category string
}

const (
	// BorrowStatusAvailableLabel is shown in the status report for books
	// without a borrowed record.
	BorrowStatusAvailableLabel = "available"
	// BorrowStatusNoDate is the borrow date placeholder for available books.
	BorrowStatusNoDate = "-"
)

// BookBorrowStatus is one row of the administrator status report.
type BookBorrowStatus struct {
	BookID     uint   `json:"bookId"`
	Title      string `json:"title"`
	Borrower   string `json:"borrower"`
	BorrowedAt string `json:"borrowedAt"`
}
