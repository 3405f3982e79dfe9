package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for transactional email.
const (
	EmailTypeVoucherClaimed    = "voucher_claimed"
	EmailTypeRedemptionReceipt = "redemption_receipt"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records sent transactional emails.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	PartnerID      *uuid.UUID `json:"partner_id,omitempty"`
	VoucherID      *uuid.UUID `json:"voucher_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
