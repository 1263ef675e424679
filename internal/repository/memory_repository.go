package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spec-kit/direct-line/internal/domain"
	"github.com/spec-kit/direct-line/internal/lifecycle"
)

// MemoryTicketRepository keeps tickets in process memory. It backs local
// development without a database and the HTTP tests.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	seq     int64
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository returns an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

func (r *MemoryTicketRepository) NextSequence(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *MemoryTicketRepository) HighestSequence(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var highest int64
	for id := range r.tickets {
		if n, ok := domain.ParseTicketNumber(id); ok && n > highest {
			highest = n
		}
	}
	return highest, nil
}

func (r *MemoryTicketRepository) EnsureSequenceAtLeast(ctx context.Context, floor int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if floor > r.seq {
		r.seq = floor
	}
	return nil
}

func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[ticket.ID]; exists {
		return fmt.Errorf("ticket %s: %w", ticket.ID, ErrDuplicate)
	}
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *MemoryTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := ticket.Clone()
	return &out, nil
}

func (r *MemoryTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	result := make([]domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.Category != nil && ticket.Category != *filter.Category {
			continue
		}
		result = append(result, ticket.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if limit := effectiveLimit(filter.Limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryTicketRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.tickets)), nil
}

func (r *MemoryTicketRepository) Tally(ctx context.Context) (lifecycle.Tally, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tally := lifecycle.NewTally()
	for _, ticket := range r.tickets {
		tally.Add(ticket)
	}
	return tally, nil
}

func (r *MemoryTicketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != expected {
		return ErrStatusConflict
	}
	updated := ticket.Clone()
	stored.Status = updated.Status
	stored.DispatchedAt = updated.DispatchedAt
	stored.ResolvedAt = updated.ResolvedAt
	r.tickets[ticket.ID] = stored
	return nil
}

// MemoryTicketHistoryRepository keeps status history in memory.
type MemoryTicketHistoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[string][]domain.TicketHistory
}

// NewMemoryTicketHistoryRepository returns an empty history store.
func NewMemoryTicketHistoryRepository() *MemoryTicketHistoryRepository {
	return &MemoryTicketHistoryRepository{entries: make(map[string][]domain.TicketHistory)}
}

func (r *MemoryTicketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	history.ID = strconv.FormatInt(r.nextID, 10)
	r.entries[history.TicketID] = append(r.entries[history.TicketID], *history)
	return nil
}

func (r *MemoryTicketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.TicketHistory{}, r.entries[ticketID]...), nil
}

// MemoryStaffRepository keeps staff accounts in memory, keyed by id.
type MemoryStaffRepository struct {
	mu    sync.RWMutex
	staff map[string]domain.StaffMember
}

// NewMemoryStaffRepository returns an empty staff store.
func NewMemoryStaffRepository() *MemoryStaffRepository {
	return &MemoryStaffRepository{staff: make(map[string]domain.StaffMember)}
}

func (r *MemoryStaffRepository) Create(ctx context.Context, staff *domain.StaffMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	staff.Email = strings.ToLower(staff.Email)
	for _, existing := range r.staff {
		if existing.Email == staff.Email {
			return ErrDuplicate
		}
	}
	if _, exists := r.staff[staff.ID]; exists {
		return ErrDuplicate
	}
	r.staff[staff.ID] = *staff
	return nil
}

func (r *MemoryStaffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	staff, ok := r.staff[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &staff, nil
}

func (r *MemoryStaffRepository) GetByEmail(ctx context.Context, email string) (*domain.StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = strings.ToLower(email)
	for _, staff := range r.staff {
		if staff.Email == email {
			out := staff
			return &out, nil
		}
	}
	return nil, ErrNotFound
}
