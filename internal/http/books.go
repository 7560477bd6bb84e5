package http

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/database/catalog"
	"github.com/mrlokans/librarian/internal/entities"
)

// BooksController serves the catalog: books, authors and categories.
type BooksController struct {
	store   CatalogStore
	lending Lending
	auditor Auditor
}

func NewBooksController(store CatalogStore, lending Lending, auditor Auditor) *BooksController {
	if auditor == nil {
		auditor = nopAuditor{}
	}
	return &BooksController{store: store, lending: lending, auditor: auditor}
}

type bookRequest struct {
	Title      string `json:"title" binding:"required,notblank,max=512"`
	AuthorID   uint   `json:"authorId" binding:"required,gt=0"`
	CategoryID uint   `json:"categoryId" binding:"required,gt=0"`
	ISBN       string `json:"isbn" binding:"required,notblank,max=20"`
	PageCount  *int   `json:"pageCount" binding:"required,min=0"`
}

func (r bookRequest) input() catalog.BookInput {
	return catalog.BookInput{
		Title:      strings.TrimSpace(r.Title),
		AuthorID:   r.AuthorID,
		CategoryID: r.CategoryID,
		ISBN:       strings.TrimSpace(r.ISBN),
		PageCount:  *r.PageCount,
	}
}

type nameRequest struct {
	Name string `json:"name" binding:"required,notblank,max=256"`
}

// ListBooks handles GET /books with optional title, author and category
// substring filters.
func (bc *BooksController) ListBooks(c *gin.Context) {
	filter := entities.BookFilter{
		Title:    strings.TrimSpace(c.Query("title")),
		Author:   strings.TrimSpace(c.Query("author")),
		Category: strings.TrimSpace(c.Query("category")),
	}

	books, err := bc.store.FilterBooks(c.Request.Context(), filter)
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, "", books)
}

// CreateBook handles POST /books.
func (bc *BooksController) CreateBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	book, err := bc.store.CreateBook(c.Request.Context(), req.input())
	if err != nil {
		respondAppError(c, err)
		return
	}

	bc.auditor.LogCatalog(c.Request.Context(), auth.MemberID(c), "book_create", "book", book.ID,
		fmt.Sprintf("added %q", book.Title))
	bc.respondBook(c, "book added", book.ID)
}

// UpdateBook handles PUT /books/:id. Every mutable field is overwritten.
func (bc *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	book, err := bc.store.UpdateBook(c.Request.Context(), id, req.input())
	if err != nil {
		respondAppError(c, err)
		return
	}

	bc.auditor.LogCatalog(c.Request.Context(), auth.MemberID(c), "book_update", "book", book.ID,
		fmt.Sprintf("updated %q", book.Title))
	bc.respondBook(c, "book updated", book.ID)
}

// respondBook sends the joined projection of a book just written.
func (bc *BooksController) respondBook(c *gin.Context, message string, id uint) {
	view, err := bc.store.GetBook(c.Request.Context(), id)
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, message, view)
}

// DeleteBook handles DELETE /books/:id.
func (bc *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := bc.store.DeleteBook(c.Request.Context(), id); err != nil {
		respondAppError(c, err)
		return
	}

	bc.auditor.LogCatalog(c.Request.Context(), auth.MemberID(c), "book_delete", "book", id, "deleted book")
	respondOK(c, "book deleted", gin.H{"id": id})
}

// BorrowStatus handles GET /books/borrow-status.
func (bc *BooksController) BorrowStatus(c *gin.Context) {
	report, err := bc.store.BorrowStatusReport(c.Request.Context())
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, "", report)
}

// ReturnBook handles POST /books/:id/return.
func (bc *BooksController) ReturnBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	record, err := bc.lending.Return(c.Request.Context(), auth.MemberID(c), id)
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, "book returned", record)
}

// ListAuthors handles GET /authors.
func (bc *BooksController) ListAuthors(c *gin.Context) {
	authors, err := bc.store.ListAuthors(c.Request.Context())
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, "", authors)
}

// CreateAuthor handles POST /authors.
func (bc *BooksController) CreateAuthor(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	author, err := bc.store.CreateAuthor(c.Request.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		respondAppError(c, err)
		return
	}

	bc.auditor.LogCatalog(c.Request.Context(), auth.MemberID(c), "author_create", "author", author.ID,
		fmt.Sprintf("added author %q", author.Name))
	respondOK(c, "author added", author)
}

// ListCategories handles GET /categories.
func (bc *BooksController) ListCategories(c *gin.Context) {
	categories, err := bc.store.ListCategories(c.Request.Context())
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, "", categories)
}

// CreateCategory handles POST /categories.
func (bc *BooksController) CreateCategory(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	category, err := bc.store.CreateCategory(c.Request.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		respondAppError(c, err)
		return
	}

	bc.auditor.LogCatalog(c.Request.Context(), auth.MemberID(c), "category_create", "category", category.ID,
		fmt.Sprintf("added category %q", category.Name))
	respondOK(c, "category added", category)
}
