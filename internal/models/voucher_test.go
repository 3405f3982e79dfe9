package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := Voucher{Status: VoucherIssued, ExpiresAt: now.Add(time.Minute)}
	if got := v.EffectiveStatus(now); got != VoucherIssued {
		t.Errorf("before expiry = %s, want issued", got)
	}
	v.ExpiresAt = now.Add(-time.Minute)
	if got := v.EffectiveStatus(now); got != VoucherExpired {
		t.Errorf("after expiry = %s, want expired", got)
	}
	// Redeemed stays redeemed even past the expiry instant.
	v.Status = VoucherRedeemed
	if got := v.EffectiveStatus(now); got != VoucherRedeemed {
		t.Errorf("redeemed past expiry = %s, want redeemed", got)
	}
}

func TestToPublicRedactsHolder(t *testing.T) {
	now := time.Now()
	d := VoucherDetail{
		Voucher: Voucher{
			ID: uuid.New(), Code: "BLK-7F3K2A", UserID: uuid.New(),
			Status: VoucherIssued, ExpiresAt: now.Add(time.Hour),
		},
		PartnerName: "Cafe Mika",
		OfferTitle:  "Free espresso",
		UserName:    "Ana Petrova",
		UserEmail:   "ana@example.com",
	}
	pub := d.ToPublic(now)
	raw, err := json.Marshal(pub)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, leak := range []string{"ana@example.com", "Ana Petrova", d.UserID.String()} {
		if strings.Contains(body, leak) {
			t.Errorf("public view leaks %q: %s", leak, body)
		}
	}
	if pub.Code != "BLK-7F3K2A" || pub.PartnerName != "Cafe Mika" {
		t.Errorf("public view missing voucher context: %+v", pub)
	}
	if pub.Redeemed {
		t.Error("issued voucher reported redeemed")
	}
}
