package events

import (
	"time"

	"github.com/spec-kit/direct-line/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
)

// Actor identifies who caused an event. StaffID is nil for citizens and for
// unauthenticated staff actions.
type Actor struct {
	Type    domain.SubjectType `json:"type,omitempty"`
	StaffID *string            `json:"staffId,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticketId"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category   string `json:"category"`
	Location   string `json:"location"`
	ReportedBy string `json:"reportedBy"`
	HasImage   bool   `json:"hasImage"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"oldStatus"`
	NewStatus domain.TicketStatus `json:"newStatus"`
	Category  string              `json:"category"`
}
