package dto

import (
	"time"

	"github.com/spec-kit/direct-line/internal/domain"
)

// StaffLoginRequest payload.
type StaffLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries an issued access token.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StaffResponse is the public staff shape.
type StaffResponse struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Email  string           `json:"email"`
	Role   domain.StaffRole `json:"role"`
	Active bool             `json:"active"`
}

// NewStaffResponse maps a staff member without credentials.
func NewStaffResponse(staff *domain.StaffMember) StaffResponse {
	return StaffResponse{
		ID:     staff.ID,
		Name:   staff.Name,
		Email:  staff.Email,
		Role:   staff.Role,
		Active: staff.Active,
	}
}
