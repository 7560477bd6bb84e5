package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
)

// BorrowsController exposes the borrow lifecycle and member-scoped queries.
type BorrowsController struct {
	lending Lending
}

func NewBorrowsController(lending Lending) *BorrowsController {
	return &BorrowsController{lending: lending}
}

type borrowRequest struct {
	BookID   uint `json:"bookId" binding:"required,gt=0"`
	MemberID uint `json:"memberId"`
}

// RequestBorrow handles POST /borrow-requests. Members may only request for
// themselves; administrators may name any member.
func (bc *BorrowsController) RequestBorrow(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	principal := auth.PrincipalFrom(c)
	memberID := req.MemberID
	if memberID == 0 {
		memberID = principal.MemberID
	}
	if memberID != principal.MemberID && !principal.IsAdministrator() {
		respondAppError(c, auth.ErrForbidden)
		return
	}

	record, err := bc.lending.RequestBorrow(c.Request.Context(), req.BookID, memberID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, "borrow request created", record)
}

// PendingRequests handles GET /borrow-requests/pending.
func (bc *BorrowsController) PendingRequests(c *gin.Context) {
	requests, err := bc.lending.PendingRequests(c.Request.Context())
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, "", requests)
}

// Approve handles POST /borrow-requests/:id/approve.
func (bc *BorrowsController) Approve(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	record, err := bc.lending.Approve(c.Request.Context(), auth.MemberID(c), id)
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, "borrow request approved", record)
}

// Reject handles POST /borrow-requests/:id/reject. The request is removed.
func (bc *BorrowsController) Reject(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	record, err := bc.lending.Reject(c.Request.Context(), auth.MemberID(c), id)
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, "borrow request rejected", record)
}

// ActiveBooks handles GET /members/:id/active-books.
func (bc *BorrowsController) ActiveBooks(c *gin.Context) {
	memberID, ok := bc.memberScope(c)
	if !ok {
		return
	}

	books, err := bc.lending.ActiveBorrowsForMember(c.Request.Context(), memberID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, "", books)
}

// History handles GET /members/:id/history.
func (bc *BorrowsController) History(c *gin.Context) {
	memberID, ok := bc.memberScope(c)
	if !ok {
		return
	}

	history, err := bc.lending.HistoryForMember(c.Request.Context(), memberID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, "", history)
}

// memberScope resolves :id and checks the caller is that member or an
// administrator.
func (bc *BorrowsController) memberScope(c *gin.Context) (uint, bool) {
	memberID, ok := parseIDParam(c, "id")
	if !ok {
		return 0, false
	}

	principal := auth.PrincipalFrom(c)
	if principal.MemberID != memberID && !principal.IsAdministrator() {
		respondAppError(c, auth.ErrForbidden)
		return 0, false
	}
	return memberID, true
}
