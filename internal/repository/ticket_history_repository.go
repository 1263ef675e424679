package repository

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/direct-line/internal/domain"
)

// TicketHistoryRepository stores status audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds the postgres repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, old_status, new_status, changed_by, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, query,
		history.TicketID,
		history.OldStatus,
		history.NewStatus,
		history.ChangedBy,
		history.CreatedAt,
	).Scan(&id); err != nil {
		return err
	}
	history.ID = strconv.FormatInt(id, 10)
	return nil
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, old_status, new_status, changed_by, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketHistory{}
	for rows.Next() {
		var (
			history domain.TicketHistory
			id      int64
		)
		if err := rows.Scan(
			&id,
			&history.TicketID,
			&history.OldStatus,
			&history.NewStatus,
			&history.ChangedBy,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		history.ID = strconv.FormatInt(id, 10)
		result = append(result, history)
	}
	return result, rows.Err()
}
