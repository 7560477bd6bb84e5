// Package audit records who changed what: borrow transitions, catalog
// mutations, registrations and logins.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/logging"
)

const maxErrorLength = 500

// Service provides high-level audit logging functionality. A nil *Service
// discards every event.
type Service struct {
	repo     *audit.Repository
	inflight sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event synchronously.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	if s == nil {
		return nil
	}
	if event.RequestID == "" {
		event.RequestID = logging.RequestIDFromContext(ctx)
	}
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background. The write outlives
// request cancellation; Wait blocks until pending writes finish.
func (s *Service) LogAsync(ctx context.Context, event *entities.AuditEvent) {
	if s == nil {
		return
	}
	if event.RequestID == "" {
		event.RequestID = logging.RequestIDFromContext(ctx)
	}

	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.repo.LogEvent(ctx, event); err != nil {
			logging.FromContext(ctx).Error().Err(err).
				Str("action", event.Action).
				Msg("failed to log audit event")
		}
	}()
}

// Wait blocks until every LogAsync write has completed.
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.inflight.Wait()
}

// LogBorrow records a borrow lifecycle transition on record recordID.
func (s *Service) LogBorrow(ctx context.Context, actorID uint, action string, recordID, bookID uint, err error) {
	event := &entities.AuditEvent{
		MemberID:   actorID,
		EventType:  entities.AuditEventBorrow,
		Action:     action,
		EntityType: "borrow_record",
		Status:     entities.AuditStatusSuccess,
	}
	if recordID > 0 {
		event.EntityID = &recordID
	}
	event.Metadata = encodeMetadata(map[string]any{"book_id": bookID})
	markFailure(event, err)

	s.LogAsync(ctx, event)
}

// LogCatalog records a catalog mutation (book, author or category).
func (s *Service) LogCatalog(ctx context.Context, actorID uint, action, entityType string, entityID uint, description string) {
	event := &entities.AuditEvent{
		MemberID:    actorID,
		EventType:   entities.AuditEventCatalog,
		Action:      action,
		Description: truncate(description, maxErrorLength),
		EntityType:  entityType,
		EntityID:    &entityID,
		Status:      entities.AuditStatusSuccess,
	}

	s.LogAsync(ctx, event)
}

// LogMember records a membership change such as a registration.
func (s *Service) LogMember(ctx context.Context, actorID uint, action string, memberID uint, description string) {
	event := &entities.AuditEvent{
		MemberID:    actorID,
		EventType:   entities.AuditEventMember,
		Action:      action,
		Description: truncate(description, maxErrorLength),
		EntityType:  "member",
		EntityID:    &memberID,
		Status:      entities.AuditStatusSuccess,
	}

	s.LogAsync(ctx, event)
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(ctx context.Context, memberID uint, action, ipAddr string, success bool) {
	event := &entities.AuditEvent{
		MemberID:  memberID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		Status:    entities.AuditStatusSuccess,
	}
	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(ctx, event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(ctx context.Context, q audit.EventQuery) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, q)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func markFailure(event *entities.AuditEvent, err error) {
	if err == nil {
		return
	}
	event.Status = entities.AuditStatusFailed
	event.ErrorMsg = truncate(err.Error(), maxErrorLength)
}

func encodeMetadata(metadata map[string]any) string {
	b, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(b)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
