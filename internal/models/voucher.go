package models

import (
	"time"

	"github.com/google/uuid"
)

// VoucherStatus is the stored lifecycle state of a voucher.
type VoucherStatus string

const (
	VoucherIssued   VoucherStatus = "issued"
	VoucherRedeemed VoucherStatus = "redeemed"
	VoucherExpired  VoucherStatus = "expired"
)

// Voucher is a single-use, time-limited code entitling its holder to a partner's offer.
type Voucher struct {
	ID         uuid.UUID     `json:"id"`
	Code       string        `json:"code"`
	UserID     uuid.UUID     `json:"user_id"`
	PartnerID  uuid.UUID     `json:"partner_id"`
	OfferID    uuid.UUID     `json:"offer_id"`
	Status     VoucherStatus `json:"status"`
	ExpiresAt  time.Time     `json:"expires_at"`
	RedeemedAt *time.Time    `json:"redeemed_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// EffectiveStatus derives the status as of now. A voucher past its expiry
// instant is expired even if the stored status has not been lazily updated.
func (v *Voucher) EffectiveStatus(now time.Time) VoucherStatus {
	if v.Status == VoucherIssued && now.After(v.ExpiresAt) {
		return VoucherExpired
	}
	return v.Status
}

// VoucherDetail is a voucher joined with partner, offer and holder info for staff lookup.
type VoucherDetail struct {
	Voucher
	PartnerName  string      `json:"partner_name"`
	OfferTitle   string      `json:"offer_title"`
	BenefitType  BenefitType `json:"benefit_type"`
	BenefitValue float64     `json:"benefit_value"`
	MinPurchase  *float64    `json:"min_purchase,omitempty"`
	UserName     string      `json:"user_name"`
	UserEmail    string      `json:"user_email"`
}

// VoucherPublic is the guest-safe redacted view: no holder PII.
type VoucherPublic struct {
	Code        string        `json:"code"`
	Status      VoucherStatus `json:"status"`
	PartnerName string        `json:"partner_name"`
	OfferTitle  string        `json:"offer_title"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Redeemed    bool          `json:"redeemed"`
}

// ToPublic redacts a voucher detail for the unauthenticated lookup.
func (d *VoucherDetail) ToPublic(now time.Time) VoucherPublic {
	status := d.EffectiveStatus(now)
	return VoucherPublic{
		Code:        d.Code,
		Status:      status,
		PartnerName: d.PartnerName,
		OfferTitle:  d.OfferTitle,
		ExpiresAt:   d.ExpiresAt,
		Redeemed:    status == VoucherRedeemed,
	}
}

// Redemption records the one-time, staff-confirmed act of applying a voucher.
type Redemption struct {
	ID               uuid.UUID  `json:"id"`
	VoucherID        uuid.UUID  `json:"voucher_id"`
	StaffUserID      uuid.UUID  `json:"staff_user_id"`
	Amount           *float64   `json:"amount,omitempty"`
	BenefitApplied   string     `json:"benefit_applied,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	CommissionAmount float64    `json:"commission_amount"`
	CreatedAt        time.Time  `json:"created_at"`
}
