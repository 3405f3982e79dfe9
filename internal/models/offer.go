package models

import (
	"time"

	"github.com/google/uuid"
)

// BenefitType is the kind of benefit an offer grants.
type BenefitType string

const (
	BenefitFreeItem   BenefitType = "free_item"
	BenefitPercentOff BenefitType = "percent_off"
	BenefitFixedOff   BenefitType = "fixed_off"
)

// ValidBenefitType reports whether t is a known benefit type.
func ValidBenefitType(t BenefitType) bool {
	switch t {
	case BenefitFreeItem, BenefitPercentOff, BenefitFixedOff:
		return true
	}
	return false
}

// Offer is a partner-defined benefit template vouchers are claimed against.
type Offer struct {
	ID           uuid.UUID   `json:"id"`
	PartnerID    uuid.UUID   `json:"partner_id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	BenefitType  BenefitType `json:"benefit_type"`
	BenefitValue float64     `json:"benefit_value"`
	MinPurchase  *float64    `json:"min_purchase,omitempty"`
	ImageKey     string      `json:"-"`
	ImageURL     string      `json:"image_url,omitempty"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
