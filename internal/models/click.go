package models

import (
	"time"

	"github.com/google/uuid"
)

// Click is a tracking-link hit on a partner's redirect URL.
type Click struct {
	ID        uuid.UUID `json:"id"`
	PartnerID uuid.UUID `json:"partner_id"`
	Referrer  string    `json:"referrer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
