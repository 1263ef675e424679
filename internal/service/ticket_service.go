package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/direct-line/internal/classifier"
	"github.com/spec-kit/direct-line/internal/domain"
	"github.com/spec-kit/direct-line/internal/events"
	"github.com/spec-kit/direct-line/internal/lifecycle"
	"github.com/spec-kit/direct-line/internal/repository"
	"github.com/spec-kit/direct-line/internal/storage"
	apperrors "github.com/spec-kit/direct-line/pkg/util/errorutil"
)

const maxCreateAttempts = 5

// SequenceSource hands out ticket numbers from outside the ticket store.
type SequenceSource interface {
	Next(ctx context.Context) (int64, error)
}

// sequenceFloor is implemented by sequence sources that can be raised past stored ids.
type sequenceFloor interface {
	EnsureAtLeast(ctx context.Context, floor int64) error
}

// TicketService coordinates ticket submission and the status workflow.
type TicketService struct {
	tickets       repository.TicketRepository
	history       repository.TicketHistoryRepository
	images        storage.ImageStore
	maxImageBytes int64
	sequence      SequenceSource
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	HistoryRepo   repository.TicketHistoryRepository
	Images        storage.ImageStore
	MaxImageBytes int64
	Sequence      SequenceSource
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Clock         func() time.Time
}

// TicketCreateInput describes a citizen submission.
type TicketCreateInput struct {
	Description string
	Location    string
	ReportedBy  string
	Image       *storage.Upload
}

// TicketListFilter describes optional listing filters.
type TicketListFilter struct {
	Status   *domain.TicketStatus
	Category *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		tickets:       deps.TicketRepo,
		history:       deps.HistoryRepo,
		images:        deps.Images,
		maxImageBytes: deps.MaxImageBytes,
		sequence:      deps.Sequence,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
		now:           clock,
	}
}

// CreateTicket classifies and stores a new Pending ticket.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	description := strings.TrimSpace(input.Description)
	location := strings.TrimSpace(input.Location)
	if description == "" || location == "" {
		return nil, apperrors.NewValidationError("description and location required", nil)
	}
	reportedBy := strings.TrimSpace(input.ReportedBy)
	if reportedBy == "" {
		reportedBy = domain.AnonymousReporter
	}

	if input.Image != nil {
		if s.images == nil {
			return nil, apperrors.NewValidationError("image uploads are not enabled", nil)
		}
		if err := input.Image.Validate(s.maxImageBytes); err != nil {
			return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "image"})
		}
	}

	ticket := &domain.Ticket{
		Description: description,
		Location:    location,
		Category:    classifier.Classify(description),
		Status:      domain.TicketStatusPending,
		CreatedAt:   s.now().UTC(),
		ReportedBy:  reportedBy,
	}

	if err := s.insertWithFreshID(ctx, ticket, input.Image); err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("category", ticket.Category))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			Category:   ticket.Category,
			Location:   ticket.Location,
			ReportedBy: ticket.ReportedBy,
			HasImage:   ticket.Image != nil,
		},
	})
	return ticket, nil
}

// insertWithFreshID assigns the next ticket id and stores the ticket. A
// collision with a stored id realigns the sequences and retries; the image is
// uploaded under each attempted id and removed again when that insert fails.
func (s *TicketService) insertWithFreshID(ctx context.Context, ticket *domain.Ticket, image *storage.Upload) error {
	var lastErr error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		if attempt > 0 {
			if _, err := s.AlignSequences(ctx); err != nil {
				return apperrors.NewInternalError(err)
			}
		}
		n, err := s.nextSequence(ctx)
		if err != nil {
			return apperrors.NewInternalError(fmt.Errorf("allocate ticket id: %w", err))
		}
		ticket.ID = domain.FormatTicketID(n)

		stored, err := s.storeImage(ctx, ticket, image)
		if err != nil {
			return apperrors.NewInternalError(err)
		}

		err = s.tickets.Create(ctx, ticket)
		if err == nil {
			return nil
		}
		s.discardImage(ctx, ticket, stored)
		if !errors.Is(err, repository.ErrDuplicate) {
			return apperrors.NewInternalError(err)
		}
		s.logger.Warn("ticket id already taken; retrying", zap.String("ticket_id", ticket.ID))
		lastErr = err
	}
	return apperrors.NewInternalError(lastErr)
}

// AlignSequences raises the store sequence, and the external one when it
// supports it, above the highest ticket id already stored.
func (s *TicketService) AlignSequences(ctx context.Context) (int64, error) {
	highest, err := s.tickets.HighestSequence(ctx)
	if err != nil {
		return 0, fmt.Errorf("read highest ticket id: %w", err)
	}
	if err := s.tickets.EnsureSequenceAtLeast(ctx, highest); err != nil {
		return 0, fmt.Errorf("raise store sequence: %w", err)
	}
	if floor, ok := s.sequence.(sequenceFloor); ok {
		if err := floor.EnsureAtLeast(ctx, highest); err != nil {
			return 0, fmt.Errorf("raise external sequence: %w", err)
		}
	}
	return highest, nil
}

func (s *TicketService) storeImage(ctx context.Context, ticket *domain.Ticket, image *storage.Upload) (*storage.StoredImage, error) {
	ticket.Image = nil
	if image == nil {
		return nil, nil
	}
	if err := image.Rewind(); err != nil {
		return nil, fmt.Errorf("rewind image: %w", err)
	}
	stored, err := s.images.PutTicketImage(ctx, ticket.ID, *image)
	if err != nil {
		return nil, err
	}
	ticket.Image = &stored.URL
	return &stored, nil
}

func (s *TicketService) discardImage(ctx context.Context, ticket *domain.Ticket, stored *storage.StoredImage) {
	ticket.Image = nil
	if stored == nil {
		return
	}
	if err := s.images.RemoveTicketImage(context.WithoutCancel(ctx), stored.Key); err != nil {
		s.logger.Warn("remove orphaned ticket image",
			zap.String("ticket_id", ticket.ID),
			zap.String("key", stored.Key),
			zap.Error(err))
	}
}

func (s *TicketService) nextSequence(ctx context.Context) (int64, error) {
	if s.sequence != nil {
		return s.sequence.Next(ctx)
	}
	return s.tickets.NextSequence(ctx)
}

// ListTickets returns tickets newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		Status:   filter.Status,
		Category: filter.Category,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tickets, nil
}

// GetTicket fetches one ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id)
	}
	return ticket, nil
}

// UpdateStatus advances a ticket one step along Pending -> Dispatched -> Resolved.
// staff is nil when staff authentication is disabled.
func (s *TicketService) UpdateStatus(ctx context.Context, staff *domain.StaffMember, id string, next domain.TicketStatus) (*domain.Ticket, error) {
	current, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id)
	}

	now := s.now().UTC()
	updated := current.Clone()
	if err := lifecycle.Advance(&updated, next, now); err != nil {
		return nil, invalidTransition(err, current.Status, next)
	}

	if err := s.tickets.UpdateStatus(ctx, &updated, current.Status); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			latest, getErr := s.tickets.GetByID(ctx, id)
			if getErr != nil {
				return nil, mapRepoError(getErr, id)
			}
			return nil, invalidTransition(err, latest.Status, next)
		}
		return nil, mapRepoError(err, id)
	}

	var changedBy *string
	actor := events.Actor{}
	if staff != nil {
		staffID := staff.ID
		changedBy = &staffID
		actor = events.Actor{Type: domain.SubjectTypeStaff, StaffID: &staffID}
	}
	if err := s.recordStatusChange(ctx, updated.ID, current.Status, updated.Status, changedBy, now); err != nil {
		s.logger.Error("record status history", zap.String("ticket_id", updated.ID), zap.Error(err))
	}

	s.logger.Info("ticket status changed",
		zap.String("ticket_id", updated.ID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(updated.Status)))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: updated.ID,
		Actor:    actor,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: current.Status,
			NewStatus: updated.Status,
			Category:  updated.Category,
		},
	})
	return &updated, nil
}

// ListHistory returns the status audit trail of a ticket, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, id string) ([]domain.TicketHistory, error) {
	if _, err := s.tickets.GetByID(ctx, id); err != nil {
		return nil, mapRepoError(err, id)
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

// Metrics derives dashboard figures over every stored ticket.
func (s *TicketService) Metrics(ctx context.Context) (lifecycle.Metrics, error) {
	tally, err := s.tickets.Tally(ctx)
	if err != nil {
		return lifecycle.Metrics{}, apperrors.NewInternalError(err)
	}
	return tally.Metrics(), nil
}

func (s *TicketService) recordStatusChange(ctx context.Context, ticketID string, oldStatus, newStatus domain.TicketStatus, changedBy *string, at time.Time) error {
	if s.history == nil {
		return nil
	}
	return s.history.Create(ctx, &domain.TicketHistory{
		TicketID:  ticketID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		ChangedBy: changedBy,
		CreatedAt: at,
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func invalidTransition(err error, current, requested domain.TicketStatus) error {
	details := map[string]any{
		"currentStatus":   current,
		"requestedStatus": requested,
	}
	if lifecycle.IsTerminal(current) {
		details["terminal"] = true
	} else if next, ok := lifecycle.Next(current); ok {
		details["allowedStatus"] = next
	}
	return apperrors.NewInvalidTransition(err, details)
}

func mapRepoError(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return apperrors.NewInternalError(err)
}
