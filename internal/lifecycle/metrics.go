package lifecycle

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/spec-kit/direct-line/internal/domain"
)

// NotAvailable is reported for averages with no samples.
const NotAvailable = "N/A"

// ResolutionHours is a rounded hour count that may be unavailable.
type ResolutionHours struct {
	Hours int64
	Valid bool
}

// String renders the value as shown on the dashboard.
func (r ResolutionHours) String() string {
	if !r.Valid {
		return NotAvailable
	}
	return strconv.FormatInt(r.Hours, 10)
}

// MarshalJSON encodes a number, or "N/A" when no ticket has been resolved.
func (r ResolutionHours) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return json.Marshal(NotAvailable)
	}
	return json.Marshal(r.Hours)
}

// Metrics summarizes a ticket list for the staff dashboard.
type Metrics struct {
	ActiveReports          int                         `json:"activeReports"`
	TotalReports           int                         `json:"totalReports"`
	AvgResolutionTimeHours ResolutionHours             `json:"avgResolutionTimeHours"`
	ByStatus               map[domain.TicketStatus]int `json:"byStatus"`
	ByCategory             map[string]int              `json:"byCategory"`
}

// Tally holds the raw counts behind Metrics. Stores fill it with an
// aggregate query so metrics cover every ticket, not just one listing page.
type Tally struct {
	ByStatus   map[domain.TicketStatus]int
	ByCategory map[string]int
	// Resolved counts Resolved tickets carrying a resolvedAt; ResolutionHours sums their durations.
	Resolved        int
	ResolutionHours float64
}

// NewTally returns an empty tally with every status present.
func NewTally() Tally {
	return Tally{
		ByStatus: map[domain.TicketStatus]int{
			domain.TicketStatusPending:    0,
			domain.TicketStatusDispatched: 0,
			domain.TicketStatusResolved:   0,
		},
		ByCategory: map[string]int{},
	}
}

// Add counts one ticket.
func (t *Tally) Add(ticket domain.Ticket) {
	var hours float64
	resolved := 0
	if ticket.Status == domain.TicketStatusResolved && ticket.ResolvedAt != nil {
		hours = ticket.ResolvedAt.Sub(ticket.CreatedAt).Hours()
		resolved = 1
	}
	t.AddGroup(ticket.Status, ticket.Category, 1, resolved, hours)
}

// AddGroup counts n tickets sharing status and category, resolved of which
// took hours in total to resolve.
func (t *Tally) AddGroup(status domain.TicketStatus, category string, n, resolved int, hours float64) {
	if t.ByStatus == nil {
		t.ByStatus = map[domain.TicketStatus]int{}
	}
	if t.ByCategory == nil {
		t.ByCategory = map[string]int{}
	}
	t.ByStatus[status] += n
	t.ByCategory[category] += n
	t.Resolved += resolved
	t.ResolutionHours += hours
}

// Metrics derives the dashboard figures from the tally.
func (t Tally) Metrics() Metrics {
	m := Metrics{
		ByStatus:   NewTally().ByStatus,
		ByCategory: map[string]int{},
	}
	for status, n := range t.ByStatus {
		m.ByStatus[status] += n
		m.TotalReports += n
		if status != domain.TicketStatusResolved {
			m.ActiveReports += n
		}
	}
	for category, n := range t.ByCategory {
		m.ByCategory[category] = n
	}
	if t.Resolved > 0 {
		m.AvgResolutionTimeHours = ResolutionHours{
			Hours: int64(math.Round(t.ResolutionHours / float64(t.Resolved))),
			Valid: true,
		}
	}
	return m
}

// ComputeMetrics derives dashboard figures from a ticket list; nothing is stored.
func ComputeMetrics(tickets []domain.Ticket) Metrics {
	tally := NewTally()
	for _, ticket := range tickets {
		tally.Add(ticket)
	}
	return tally.Metrics()
}
