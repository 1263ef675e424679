package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "Pending"
	TicketStatusDispatched TicketStatus = "Dispatched"
	TicketStatusResolved   TicketStatus = "Resolved"
)

// AnonymousReporter is stored when a citizen leaves the name blank.
const AnonymousReporter = "Anonymous"

// ParseTicketStatus accepts only the closed set of statuses.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	switch status := TicketStatus(raw); status {
	case TicketStatusPending, TicketStatusDispatched, TicketStatusResolved:
		return status, nil
	default:
		return "", fmt.Errorf("unknown ticket status %q", raw)
	}
}

// Ticket is one citizen-submitted issue report.
type Ticket struct {
	ID           string
	Description  string
	Location     string
	Category     string
	Status       TicketStatus
	CreatedAt    time.Time
	DispatchedAt *time.Time
	ResolvedAt   *time.Time
	ReportedBy   string
	Image        *string
}

// Clone returns a deep copy so callers cannot mutate stored timestamps.
func (t Ticket) Clone() Ticket {
	out := t
	if t.DispatchedAt != nil {
		v := *t.DispatchedAt
		out.DispatchedAt = &v
	}
	if t.ResolvedAt != nil {
		v := *t.ResolvedAt
		out.ResolvedAt = &v
	}
	if t.Image != nil {
		v := *t.Image
		out.Image = &v
	}
	return out
}

// FormatTicketID renders a sequence number as a human-readable ticket id, e.g. TICK-007.
func FormatTicketID(n int64) string {
	return fmt.Sprintf("TICK-%03d", n)
}

// ParseTicketNumber extracts the sequence number from an id built by FormatTicketID.
func ParseTicketNumber(id string) (int64, bool) {
	digits, ok := strings.CutPrefix(id, "TICK-")
	if !ok || digits == "" || digits[0] < '0' || digits[0] > '9' {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
