package domain

import "time"

// TicketHistory is an immutable audit entry for an accepted status change.
type TicketHistory struct {
	ID        string
	TicketID  string
	OldStatus TicketStatus
	NewStatus TicketStatus
	ChangedBy *string
	CreatedAt time.Time
}
