// Package queue carries the session audit trail over RabbitMQ.
package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a session lifecycle event.
type EventType string

const (
	LoginSucceeded       EventType = "login_succeeded"
	LoginFailed          EventType = "login_failed"
	SessionLimitExceeded EventType = "session_limit_exceeded"
	Logout               EventType = "logout"
)

// SessionEvent is one audit record. It never carries secrets or raw tokens.
type SessionEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	TaxID      string    `json:"tax_id,omitempty"`
	TenantID   int64     `json:"tenant_id,omitempty"`
	UserID     int64     `json:"user_id,omitempty"`
	Authority  string    `json:"authority,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ClientIP   string    `json:"client_ip,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewSessionEvent stamps a fresh id and the current UTC time.
func NewSessionEvent(t EventType) SessionEvent {
	return SessionEvent{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}

// Line renders the event as one log line.
func (e SessionEvent) Line() string {
	return fmt.Sprintf("[%s] %s | id=%s | tax_id=%s | tenant_id=%d | user_id=%d | authority=%s | reason=%q | ip=%s\n",
		e.OccurredAt.Format(time.RFC3339), e.Type, e.ID, e.TaxID, e.TenantID, e.UserID, e.Authority, e.Reason, e.ClientIP)
}
