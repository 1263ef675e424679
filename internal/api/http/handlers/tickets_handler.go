package handlers

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/direct-line/internal/api/dto"
	"github.com/spec-kit/direct-line/internal/auth"
	"github.com/spec-kit/direct-line/internal/classifier"
	"github.com/spec-kit/direct-line/internal/domain"
	"github.com/spec-kit/direct-line/internal/service"
	"github.com/spec-kit/direct-line/internal/storage"
	apperrors "github.com/spec-kit/direct-line/pkg/util/errorutil"
)

const imageFormField = "image"

// TicketsHandler serves the citizen and dispatcher ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// Root GET /api/.
func (h *TicketsHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "The Direct Line API", "status": "operational"})
}

// CreateTicket POST /api/tickets. Accepts JSON or multipart with an optional image file.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	input := service.TicketCreateInput{
		Description: req.Description,
		Location:    req.Location,
		ReportedBy:  req.ReportedBy,
	}

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.NewValidationError("invalid multipart payload", nil)
		}
		if files := form.File[imageFormField]; len(files) > 0 {
			file, err := files[0].Open()
			if err != nil {
				return apperrors.NewValidationError("unreadable image", map[string]any{"field": imageFormField})
			}
			defer file.Close()
			input.Image = uploadFromHeader(files[0], file)
		}
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewTicketResponse(ticket))
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketListFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketListResponse(tickets))
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// UpdateStatus PATCH /api/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	next, err := domain.ParseTicketStatus(req.Status)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "status"})
	}

	ticket, err := h.service.UpdateStatus(c.UserContext(), auth.StaffFromContext(c), c.Params("id"), next)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// History GET /api/tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	entries, err := h.service.ListHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketHistoryResponse(entries))
}

// Metrics GET /api/metrics.
func (h *TicketsHandler) Metrics(c *fiber.Ctx) error {
	metrics, err := h.service.Metrics(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(metrics)
}

// Categories GET /api/categories.
func (h *TicketsHandler) Categories(c *fiber.Ctx) error {
	return c.JSON(dto.NewCategoryListResponse(classifier.Categories()))
}

func parseTicketListFilter(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := domain.ParseTicketStatus(raw)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), map[string]any{"field": "status"})
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		if !classifier.IsCategory(raw) {
			return filter, apperrors.NewValidationError("unknown category", map[string]any{"field": "category", "value": raw})
		}
		filter.Category = &raw
	}
	return filter, nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

func uploadFromHeader(header *multipart.FileHeader, file multipart.File) *storage.Upload {
	return &storage.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Size:        header.Size,
		Body:        file,
	}
}
