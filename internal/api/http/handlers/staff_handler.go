package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/direct-line/internal/api/dto"
	"github.com/spec-kit/direct-line/internal/service"
	apperrors "github.com/spec-kit/direct-line/pkg/util/errorutil"
)

// StaffHandler exposes staff auth endpoints.
type StaffHandler struct {
	authService *service.AuthService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(authService *service.AuthService) *StaffHandler {
	return &StaffHandler{authService: authService}
}

// Login handles POST /auth/staff/login.
func (h *StaffHandler) Login(c *fiber.Ctx) error {
	var req dto.StaffLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	staff, token, exp, err := h.authService.LoginStaff(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"staff": dto.NewStaffResponse(staff),
		"auth":  dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}
