package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
)

const (
	defaultAuditPageSize = 25
	maxAuditPageSize     = 100
)

var errInvalidEventType = apperr.New(apperr.Validation, "invalid event type")

type AuditController struct {
	events AuditReader
}

func NewAuditController(events AuditReader) *AuditController {
	return &AuditController{events: events}
}

// GetAuditEvents returns paginated audit events as JSON
// GET /audit-events?page=&limit=&type=&memberId=&since=
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", defaultAuditPageSize)

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxAuditPageSize {
		limit = defaultAuditPageSize
	}
	offset := (page - 1) * limit

	q := audit.EventQuery{Limit: limit, Offset: offset}

	if raw := c.Query("type"); raw != "" {
		eventType := entities.AuditEventType(raw)
		if !validEventType(eventType) {
			respondAppError(c, errInvalidEventType)
			return
		}
		q.EventType = eventType
	}
	if raw := c.Query("memberId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondAppError(c, apperr.New(apperr.Validation, "invalid memberId"))
			return
		}
		q.MemberID = uint(id)
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondAppError(c, apperr.New(apperr.Validation, "since must be an RFC 3339 timestamp"))
			return
		}
		q.Since = since
	}

	events, total, err := ac.events.GetEvents(c.Request.Context(), q)
	if err != nil {
		respondAppError(c, err)
		return
	}

	totalPages := (int(total) + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Status:     statusSuccess,
		Data:       events,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    int64(offset+len(events)) < total,
		TotalPages: totalPages,
	})
}

func validEventType(t entities.AuditEventType) bool {
	switch t {
	case entities.AuditEventBorrow, entities.AuditEventCatalog, entities.AuditEventMember, entities.AuditEventAuth:
		return true
	}
	return false
}
