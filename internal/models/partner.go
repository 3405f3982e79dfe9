package models

import (
	"time"

	"github.com/google/uuid"
)

// StaffRole is the role of a user inside a partner business.
type StaffRole string

const (
	StaffRoleStaff   StaffRole = "staff"
	StaffRoleManager StaffRole = "manager"
	StaffRoleOwner   StaffRole = "owner"
)

// Partner is a business participating in the voucher program.
type Partner struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	SiteURL        string    `json:"site_url,omitempty"`
	TrackingCode   string    `json:"tracking_code"`
	CommissionRate float64   `json:"commission_rate"`
	Category       string    `json:"category,omitempty"`
	City           string    `json:"city,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PartnerStaff links a user to a partner with a staff role.
type PartnerStaff struct {
	ID        uuid.UUID `json:"id"`
	PartnerID uuid.UUID `json:"partner_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      StaffRole `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffMember is PartnerStaff joined with user identity for back-office listings.
type StaffMember struct {
	ID        uuid.UUID `json:"id"`
	PartnerID uuid.UUID `json:"partner_id"`
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      StaffRole `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
