package domain

import "time"

// StaffRole enumerates municipal operator roles.
type StaffRole string

const (
	StaffRoleDispatcher StaffRole = "DISPATCHER"
	StaffRoleAdmin      StaffRole = "ADMIN"
)

// StaffMember models a dispatcher or administrator.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
