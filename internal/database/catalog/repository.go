// Package catalog provides database operations for books, authors and
// categories, including the joined read projections.
//
// # Usage
//
//	repo := catalog.NewRepository(db)
//	books, err := repo.FilterBooks(ctx, entities.BookFilter{Author: "tolkien"})
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/entities"
)

var (
	ErrBookNotFound        = apperr.New(apperr.NotFound, "book not found")
	ErrAuthorNotFound      = apperr.New(apperr.NotFound, "author not found")
	ErrCategoryNotFound    = apperr.New(apperr.NotFound, "category not found")
	ErrBookHasActiveBorrow = apperr.New(apperr.Conflict, "book has an active borrow record")
)

const bookViewColumns = `books.id, books.title, authors.name AS author,
	categories.name AS category, books.isbn, books.page_count`

// BookInput carries every mutable book field. Updates overwrite all of them.
type BookInput struct {
	Title      string
	AuthorID   uint
	CategoryID uint
	ISBN       string
	PageCount  int
}

// Repository handles catalog database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// --- Authors ---

func (r *Repository) CreateAuthor(ctx context.Context, name string) (*entities.Author, error) {
	author := &entities.Author{Name: name}
	if err := r.db.WithContext(ctx).Create(author).Error; err != nil {
		return nil, fmt.Errorf("failed to create author: %w", err)
	}
	return author, nil
}

func (r *Repository) ListAuthors(ctx context.Context) ([]entities.Author, error) {
	authors := []entities.Author{}
	err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&authors).Error
	return authors, err
}

// --- Categories ---

func (r *Repository) CreateCategory(ctx context.Context, name string) (*entities.Category, error) {
	category := &entities.Category{Name: name}
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]entities.Category, error) {
	categories := []entities.Category{}
	err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&categories).Error
	return categories, err
}

// --- Books ---

// CreateBook inserts a book after checking its author and category exist.
func (r *Repository) CreateBook(ctx context.Context, in BookInput) (*entities.Book, error) {
	book := &entities.Book{
		Title:      in.Title,
		AuthorID:   in.AuthorID,
		CategoryID: in.CategoryID,
		ISBN:       in.ISBN,
		PageCount:  in.PageCount,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkReferences(tx, in.AuthorID, in.CategoryID); err != nil {
			return err
		}
		return tx.Omit("Author", "Category").Create(book).Error
	})
	if err != nil {
		return nil, translateWriteError(err, "create book")
	}
	return book, nil
}

// UpdateBook overwrites every mutable field of an existing book.
func (r *Repository) UpdateBook(ctx context.Context, id uint, in BookInput) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&book, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		if err := checkReferences(tx, in.AuthorID, in.CategoryID); err != nil {
			return err
		}

		// A map keeps zero values (e.g. page_count = 0) in the UPDATE.
		return tx.Model(&book).Updates(map[string]any{
			"title":       in.Title,
			"author_id":   in.AuthorID,
			"category_id": in.CategoryID,
			"isbn":        in.ISBN,
			"page_count":  in.PageCount,
		}).Error
	})
	if err != nil {
		return nil, translateWriteError(err, "update book")
	}
	return &book, nil
}

// DeleteBook soft-deletes a book. Books with a pending or borrowed record
// cannot be deleted.
func (r *Repository) DeleteBook(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var book entities.Book
		if err := tx.First(&book, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		var active int64
		err := tx.Model(&entities.BorrowRecord{}).
			Where("book_id = ? AND status IN ?", id, entities.ActiveBorrowStatuses).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrBookHasActiveBorrow
		}

		return tx.Delete(&book).Error
	})
	if err != nil {
		return translateWriteError(err, "delete book")
	}
	return nil
}

// GetBook returns the joined projection of one book.
func (r *Repository) GetBook(ctx context.Context, id uint) (*entities.BookView, error) {
	var views []entities.BookView
	err := r.bookViewQuery(ctx).Where("books.id = ?", id).Scan(&views).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if len(views) == 0 {
		return nil, ErrBookNotFound
	}
	return &views[0], nil
}

// ListBooks returns every book joined with its author and category names.
func (r *Repository) ListBooks(ctx context.Context) ([]entities.BookView, error) {
	return r.FilterBooks(ctx, entities.BookFilter{})
}

// FilterBooks applies each non-empty filter as a case-insensitive
// substring match; filters combine with AND.
func (r *Repository) FilterBooks(ctx context.Context, filter entities.BookFilter) ([]entities.BookView, error) {
	query := r.bookViewQuery(ctx)
	if filter.Title != "" {
		query = query.Where(`LOWER(books.title) LIKE LOWER(?) ESCAPE '\'`, likePattern(filter.Title))
	}
	if filter.Author != "" {
		query = query.Where(`LOWER(authors.name) LIKE LOWER(?) ESCAPE '\'`, likePattern(filter.Author))
	}
	if filter.Category != "" {
		query = query.Where(`LOWER(categories.name) LIKE LOWER(?) ESCAPE '\'`, likePattern(filter.Category))
	}

	views := []entities.BookView{}
	if err := query.Order("books.id ASC").Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return views, nil
}

type borrowStatusRow struct {
	BookID     uint
	Title      string
	Borrower   *string
	BorrowedAt *time.Time
}

// BorrowStatusReport lists every book with its current borrower, or the
// "available" label and "-" date when nobody holds it.
func (r *Repository) BorrowStatusReport(ctx context.Context) ([]entities.BookBorrowStatus, error) {
	var rows []borrowStatusRow
	err := r.db.WithContext(ctx).
		Table("books").
		Select(`books.id AS book_id, books.title, members.full_name AS borrower,
			borrow_records.borrowed_at`).
		Joins("LEFT JOIN borrow_records ON borrow_records.book_id = books.id AND borrow_records.status = ?",
			entities.BorrowStatusBorrowed).
		Joins("LEFT JOIN members ON members.id = borrow_records.member_id").
		Where("books.deleted_at IS NULL").
		Order("books.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build borrow status report: %w", err)
	}

	report := make([]entities.BookBorrowStatus, 0, len(rows))
	for _, row := range rows {
		status := entities.BookBorrowStatus{
			BookID:     row.BookID,
			Title:      row.Title,
			Borrower:   entities.BorrowStatusAvailableLabel,
			BorrowedAt: entities.BorrowStatusNoDate,
		}
		if row.Borrower != nil {
			status.Borrower = *row.Borrower
		}
		if row.BorrowedAt != nil {
			status.BorrowedAt = row.BorrowedAt.UTC().Format(time.RFC3339)
		}
		report = append(report, status)
	}
	return report, nil
}

func (r *Repository) bookViewQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("books").
		Select(bookViewColumns).
		Joins("JOIN authors ON authors.id = books.author_id").
		Joins("JOIN categories ON categories.id = books.category_id").
		Where("books.deleted_at IS NULL")
}

func checkReferences(tx *gorm.DB, authorID, categoryID uint) error {
	var count int64
	if err := tx.Model(&entities.Author{}).Where("id = ?", authorID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrAuthorNotFound
	}
	if err := tx.Model(&entities.Category{}).Where("id = ?", categoryID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// translateWriteError passes classified errors through and wraps the rest.
func translateWriteError(err error, op string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return apperr.Wrap(apperr.NotFound, err, "referenced author or category not found")
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
