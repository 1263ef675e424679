package dto

import (
	"time"

	"github.com/spec-kit/direct-line/internal/classifier"
	"github.com/spec-kit/direct-line/internal/domain"
)

// CreateTicketRequest is accepted as JSON or as multipart form fields.
type CreateTicketRequest struct {
	Description string `json:"description" form:"description" validate:"required,max=2000"`
	Location    string `json:"location" form:"location" validate:"required,max=300"`
	ReportedBy  string `json:"reportedBy" form:"reportedBy" validate:"max=120"`
}

// UpdateStatusRequest payload for PATCH /api/tickets/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Dispatched Resolved"`
}

// TicketResponse is the public ticket shape.
type TicketResponse struct {
	ID           string              `json:"id"`
	Description  string              `json:"description"`
	Location     string              `json:"location"`
	Category     string              `json:"category"`
	Status       domain.TicketStatus `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
	DispatchedAt *time.Time          `json:"dispatchedAt"`
	ResolvedAt   *time.Time          `json:"resolvedAt"`
	ReportedBy   string              `json:"reportedBy"`
	Image        *string             `json:"image"`
}

// TicketHistoryResponse is one accepted status change.
type TicketHistoryResponse struct {
	OldStatus domain.TicketStatus `json:"oldStatus"`
	NewStatus domain.TicketStatus `json:"newStatus"`
	ChangedBy *string             `json:"changedBy"`
	CreatedAt time.Time           `json:"createdAt"`
}

// CategoryResponse describes one classifier category.
type CategoryResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:           ticket.ID,
		Description:  ticket.Description,
		Location:     ticket.Location,
		Category:     ticket.Category,
		Status:       ticket.Status,
		CreatedAt:    ticket.CreatedAt,
		DispatchedAt: ticket.DispatchedAt,
		ResolvedAt:   ticket.ResolvedAt,
		ReportedBy:   ticket.ReportedBy,
		Image:        ticket.Image,
	}
}

// NewTicketListResponse maps tickets in order, never returning nil.
func NewTicketListResponse(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewTicketHistoryResponse maps an audit trail.
func NewTicketHistoryResponse(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, TicketHistoryResponse{
			OldStatus: entry.OldStatus,
			NewStatus: entry.NewStatus,
			ChangedBy: entry.ChangedBy,
			CreatedAt: entry.CreatedAt,
		})
	}
	return out
}

// NewCategoryListResponse maps the classifier table.
func NewCategoryListResponse(categories []classifier.Category) []CategoryResponse {
	out := make([]CategoryResponse, 0, len(categories))
	for _, category := range categories {
		keywords := category.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		out = append(out, CategoryResponse{ID: category.ID, Name: category.Name, Keywords: keywords})
	}
	return out
}
