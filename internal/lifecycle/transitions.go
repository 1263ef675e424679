// Package lifecycle holds the ticket status workflow and the dashboard metrics derived from it.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/direct-line/internal/domain"
)

// ErrInvalidTransition is returned when the requested status is not the single valid next state.
var ErrInvalidTransition = errors.New("invalid status transition")

var allowedTransitions = map[domain.TicketStatus]domain.TicketStatus{
	domain.TicketStatusPending:    domain.TicketStatusDispatched,
	domain.TicketStatusDispatched: domain.TicketStatusResolved,
}

// Next returns the only status reachable from current, if any.
func Next(current domain.TicketStatus) (domain.TicketStatus, bool) {
	next, ok := allowedTransitions[current]
	return next, ok
}

// CanTransition reports whether current may move to next.
func CanTransition(current, next domain.TicketStatus) bool {
	candidate, ok := allowedTransitions[current]
	return ok && candidate == next
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status domain.TicketStatus) bool {
	_, ok := allowedTransitions[status]
	return !ok
}

// Advance moves ticket to next and stamps the matching timestamp.
// On error the ticket is left untouched.
func Advance(ticket *domain.Ticket, next domain.TicketStatus, now time.Time) error {
	if ticket == nil {
		return errors.New("nil ticket")
	}
	if !CanTransition(ticket.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ticket.Status, next)
	}
	at := now
	switch next {
	case domain.TicketStatusDispatched:
		ticket.DispatchedAt = &at
	case domain.TicketStatusResolved:
		ticket.ResolvedAt = &at
	}
	ticket.Status = next
	return nil
}

// CheckTimestamps verifies the timestamp invariants for a ticket's current status.
func CheckTimestamps(ticket domain.Ticket) error {
	reachedDispatch := ticket.Status == domain.TicketStatusDispatched || ticket.Status == domain.TicketStatusResolved
	if reachedDispatch != (ticket.DispatchedAt != nil) {
		return fmt.Errorf("ticket %s: dispatchedAt inconsistent with status %s", ticket.ID, ticket.Status)
	}
	if (ticket.Status == domain.TicketStatusResolved) != (ticket.ResolvedAt != nil) {
		return fmt.Errorf("ticket %s: resolvedAt inconsistent with status %s", ticket.ID, ticket.Status)
	}
	if ticket.DispatchedAt != nil && ticket.DispatchedAt.Before(ticket.CreatedAt) {
		return fmt.Errorf("ticket %s: dispatched before creation", ticket.ID)
	}
	if ticket.ResolvedAt != nil && ticket.DispatchedAt != nil && ticket.ResolvedAt.Before(*ticket.DispatchedAt) {
		return fmt.Errorf("ticket %s: resolved before dispatch", ticket.ID)
	}
	return nil
}
