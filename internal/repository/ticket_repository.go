package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/direct-line/internal/domain"
	"github.com/spec-kit/direct-line/internal/lifecycle"
)

// MaxListLimit caps a single ticket listing.
const MaxListLimit = 1000

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict is returned when the stored status no longer matches the expected one.
	ErrStatusConflict = errors.New("ticket status changed concurrently")
	// ErrDuplicate is returned when a record with the same unique key exists.
	ErrDuplicate = errors.New("record already exists")
)

// TicketFilter narrows a ticket listing.
type TicketFilter struct {
	Status   *domain.TicketStatus
	Category *string
	Limit    int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	NextSequence(ctx context.Context) (int64, error)
	// HighestSequence returns the largest number among stored ticket ids, 0 when empty.
	HighestSequence(ctx context.Context) (int64, error)
	// EnsureSequenceAtLeast raises the store's own sequence so NextSequence returns more than floor.
	EnsureSequenceAtLeast(ctx context.Context, floor int64) error
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context) (int64, error)
	// Tally aggregates status, category and resolution figures over every ticket.
	Tally(ctx context.Context) (lifecycle.Tally, error)
	// UpdateStatus persists ticket's status and timestamps only if the stored
	// status still equals expected.
	UpdateStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error
}

func effectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `ticket_id, description, location, category, status, created_at, dispatched_at, resolved_at, reported_by, image_url`

func (r *ticketRepository) NextSequence(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('ticket_number_seq')`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *ticketRepository) HighestSequence(ctx context.Context) (int64, error) {
	const query = `
        SELECT COALESCE(MAX(substring(ticket_id FROM 6)::bigint), 0)
        FROM tickets WHERE ticket_id ~ '^TICK-[0-9]+$'`
	var n int64
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *ticketRepository) EnsureSequenceAtLeast(ctx context.Context, floor int64) error {
	if floor < 1 {
		return nil
	}
	const query = `
        SELECT setval('ticket_number_seq', $1::bigint, true)
        FROM ticket_number_seq
        WHERE $1::bigint > CASE WHEN is_called THEN last_value ELSE last_value - 1 END`
	_, err := r.pool.Exec(ctx, query, floor)
	return err
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (ticket_id) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.Description,
		ticket.Location,
		ticket.Category,
		ticket.Status,
		ticket.CreatedAt,
		ticket.DispatchedAt,
		ticket.ResolvedAt,
		ticket.ReportedBy,
		ticket.Image,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("ticket %s: %w", ticket.ID, ErrDuplicate)
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, ticket_id DESC LIMIT %d`,
		ticketColumns, strings.Join(clauses, " AND "), effectiveLimit(filter.Limit))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *ticketRepository) Tally(ctx context.Context) (lifecycle.Tally, error) {
	const query = `
        SELECT status, category, COUNT(*),
               COUNT(*) FILTER (WHERE status='Resolved' AND resolved_at IS NOT NULL),
               COALESCE(SUM(EXTRACT(EPOCH FROM resolved_at - created_at) / 3600)
                   FILTER (WHERE status='Resolved' AND resolved_at IS NOT NULL), 0)::float8
        FROM tickets GROUP BY status, category`
	tally := lifecycle.NewTally()
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return tally, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status          domain.TicketStatus
			category        string
			count, resolved int64
			hours           float64
		)
		if err := rows.Scan(&status, &category, &count, &resolved, &hours); err != nil {
			return tally, err
		}
		tally.AddGroup(status, category, int(count), int(resolved), hours)
	}
	return tally, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	const query = `
        UPDATE tickets SET status=$1, dispatched_at=$2, resolved_at=$3
        WHERE ticket_id=$4 AND status=$5`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.DispatchedAt,
		ticket.ResolvedAt,
		ticket.ID,
		expected,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, ticket.ID); err != nil {
		return err
	}
	return ErrStatusConflict
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Description,
		&ticket.Location,
		&ticket.Category,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.DispatchedAt,
		&ticket.ResolvedAt,
		&ticket.ReportedBy,
		&ticket.Image,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
