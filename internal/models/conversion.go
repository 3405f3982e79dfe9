package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversionType distinguishes voucher-backed and manually recorded sales.
type ConversionType string

const (
	ConversionPhysical ConversionType = "physical" // via voucher redemption
	ConversionDigital  ConversionType = "digital"  // manual entry for link-driven sales
)

// ConversionStatus is the payout state of a conversion.
type ConversionStatus string

const (
	ConversionPending   ConversionStatus = "pending"
	ConversionConfirmed ConversionStatus = "confirmed"
	ConversionPaid      ConversionStatus = "paid"
)

// Conversion is a recorded monetary event used to compute partner commission.
// Physical conversions reference a redemption; digital ones stand alone.
type Conversion struct {
	ID               uuid.UUID        `json:"id"`
	PartnerID        uuid.UUID        `json:"partner_id"`
	VoucherID        *uuid.UUID       `json:"voucher_id,omitempty"`
	RedemptionID     *uuid.UUID       `json:"redemption_id,omitempty"`
	Type             ConversionType   `json:"type"`
	Amount           float64          `json:"amount"`
	CommissionRate   float64          `json:"commission_rate"`
	CommissionAmount float64          `json:"commission_amount"`
	Status           ConversionStatus `json:"status"`
	ConfirmedAt      *time.Time       `json:"confirmed_at,omitempty"`
	PaidAt           *time.Time       `json:"paid_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// CanTransitionTo reports whether the status may move to next (forward only:
// pending -> confirmed -> paid).
func (s ConversionStatus) CanTransitionTo(next ConversionStatus) bool {
	switch s {
	case ConversionPending:
		return next == ConversionConfirmed
	case ConversionConfirmed:
		return next == ConversionPaid
	}
	return false
}
