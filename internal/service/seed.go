package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/direct-line/internal/classifier"
	"github.com/spec-kit/direct-line/internal/domain"
	"github.com/spec-kit/direct-line/internal/lifecycle"
)

type demoTicket struct {
	description  string
	location     string
	reportedBy   string
	age          time.Duration
	dispatchedAt time.Duration
	resolvedAt   time.Duration
}

// Offsets are measured back from the seeding time; zero means the step has not happened.
var demoTickets = []demoTicket{
	{
		description: "Large pothole near Tea Lobby Cafe causing traffic issues",
		location:    "Tea Lobby Cafe, Gwalior",
		reportedBy:  "Rajesh Kumar",
		age:         2 * time.Hour,
	},
	{
		description:  "Garbage not collected for 3 days, causing health hazard",
		location:     "Lashkar Area, Gwalior",
		reportedBy:   "Priya Sharma",
		age:          5 * time.Hour,
		dispatchedAt: time.Hour,
	},
	{
		description: "Street light not working for past week",
		location:    "City Center, Gwalior",
		reportedBy:  "Amit Verma",
		age:         8 * time.Hour,
	},
	{
		description:  "Water pipe leaking causing road flooding",
		location:     "Madhav Nagar, Gwalior",
		reportedBy:   "Sunita Gupta",
		age:          24 * time.Hour,
		dispatchedAt: 20 * time.Hour,
		resolvedAt:   12 * time.Hour,
	},
	{
		description: "Broken pavement near school entrance creating danger for children",
		location:    "Model School Road, Gwalior",
		reportedBy:  "Mohan Singh",
		age:         12 * time.Hour,
	},
	{
		description:  "Illegal dumping of construction waste",
		location:     "Residency Area, Gwalior",
		reportedBy:   "Kavita Rao",
		age:          15 * time.Hour,
		dispatchedAt: 3 * time.Hour,
	},
}

// SeedDemo inserts the demo tickets when the store is empty and reports how
// many were written.
func (s *TicketService) SeedDemo(ctx context.Context) (int, error) {
	count, err := s.tickets.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("ticket store not empty; skipping demo seed", zap.Int64("tickets", count))
		return 0, nil
	}

	now := s.now().UTC()
	for i, demo := range demoTickets {
		ticket := buildDemoTicket(demo, now)
		if err := lifecycle.CheckTimestamps(*ticket); err != nil {
			return i, fmt.Errorf("demo ticket %d: %w", i+1, err)
		}
		if err := s.insertWithFreshID(ctx, ticket, nil); err != nil {
			return i, err
		}
		for _, step := range demoHistory(ticket) {
			if err := s.recordStatusChange(ctx, step.TicketID, step.OldStatus, step.NewStatus, nil, step.CreatedAt); err != nil {
				return i + 1, err
			}
		}
	}
	s.logger.Info("demo tickets seeded", zap.Int("tickets", len(demoTickets)))
	return len(demoTickets), nil
}

func buildDemoTicket(demo demoTicket, now time.Time) *domain.Ticket {
	ticket := &domain.Ticket{
		Description: demo.description,
		Location:    demo.location,
		Category:    classifier.Classify(demo.description),
		Status:      domain.TicketStatusPending,
		CreatedAt:   now.Add(-demo.age),
		ReportedBy:  demo.reportedBy,
	}
	if demo.dispatchedAt > 0 {
		at := now.Add(-demo.dispatchedAt)
		ticket.DispatchedAt = &at
		ticket.Status = domain.TicketStatusDispatched
	}
	if demo.resolvedAt > 0 {
		at := now.Add(-demo.resolvedAt)
		ticket.ResolvedAt = &at
		ticket.Status = domain.TicketStatusResolved
	}
	return ticket
}

func demoHistory(ticket *domain.Ticket) []domain.TicketHistory {
	var steps []domain.TicketHistory
	if ticket.DispatchedAt != nil {
		steps = append(steps, domain.TicketHistory{
			TicketID:  ticket.ID,
			OldStatus: domain.TicketStatusPending,
			NewStatus: domain.TicketStatusDispatched,
			CreatedAt: *ticket.DispatchedAt,
		})
	}
	if ticket.ResolvedAt != nil {
		steps = append(steps, domain.TicketHistory{
			TicketID:  ticket.ID,
			OldStatus: domain.TicketStatusDispatched,
			NewStatus: domain.TicketStatusResolved,
			CreatedAt: *ticket.ResolvedAt,
		})
	}
	return steps
}
