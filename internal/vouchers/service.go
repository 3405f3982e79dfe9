package vouchers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/balkly/backend/config"
	"github.com/balkly/backend/internal/models"
)

// Lifecycle errors surfaced to handlers.
var (
	ErrVoucherNotFound = errors.New("voucher not found")
	ErrVoucherExpired  = errors.New("voucher expired")
	ErrVoucherRedeemed = errors.New("voucher already redeemed")
	ErrWrongPartner    = errors.New("voucher belongs to another partner")
	ErrPartnerNotFound = errors.New("partner not found")
	ErrPartnerInactive = errors.New("partner is not active")
	ErrNoActiveOffer   = errors.New("partner has no active offer")
)

// VoucherStore persists vouchers and performs the atomic redemption transition.
type VoucherStore interface {
	GetDetailByCode(ctx context.Context, code string) (*models.VoucherDetail, error)
	FindActive(ctx context.Context, userID, partnerID uuid.UUID, now time.Time) (*models.Voucher, error)
	ExpireLapsedFor(ctx context.Context, userID, partnerID uuid.UUID, now time.Time) error
	Create(ctx context.Context, v *models.Voucher) error
	// Redeem transitions issued -> redeemed exactly once and records the
	// receipt plus the physical conversion. Returns ErrVoucherNotFound,
	// ErrVoucherExpired or ErrVoucherRedeemed when the transition is refused.
	Redeem(ctx context.Context, p RedeemParams) (*models.Redemption, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.VoucherDetail, error)
}

// PartnerStore resolves partners for claims and commission rates.
type PartnerStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error)
}

// OfferStore resolves offers for claims.
type OfferStore interface {
	GetOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	GetDefaultActiveOffer(ctx context.Context, partnerID uuid.UUID) (*models.Offer, error)
}

// RedeemParams is the atomic redemption write.
type RedeemParams struct {
	VoucherID        uuid.UUID
	PartnerID        uuid.UUID
	StaffUserID      uuid.UUID
	Amount           *float64
	BenefitApplied   string
	Notes            string
	CommissionRate   float64
	CommissionAmount float64
}

// RedeemRequest is the staff-entered transaction detail; all fields optional
// so staff can confirm a redemption without POS amounts.
type RedeemRequest struct {
	Amount         *float64 `json:"amount" binding:"omitempty,gte=0"`
	BenefitApplied string   `json:"benefit_applied"`
	Notes          string   `json:"notes"`
}

// Receipt is returned on successful redemption.
type Receipt struct {
	RedemptionID uuid.UUID `json:"redemption_id"`
	Commission   float64   `json:"commission"`
	Timestamp    time.Time `json:"timestamp"`
}

// Actor is the authenticated caller for staff operations. PartnerID is nil
// for platform admins, who may act on any partner.
type Actor struct {
	UserID    uuid.UUID
	PartnerID *uuid.UUID
	Admin     bool
}

// Service implements the voucher lifecycle over store interfaces.
type Service struct {
	vouchers VoucherStore
	partners PartnerStore
	offers   OfferStore
	cfg      config.VoucherConfig
	now      func() time.Time
}

// NewService creates a voucher service.
func NewService(vouchers VoucherStore, partners PartnerStore, offers OfferStore, cfg config.VoucherConfig) *Service {
	return &Service{
		vouchers: vouchers,
		partners: partners,
		offers:   offers,
		cfg:      cfg,
		now:      time.Now,
	}
}

// VoucherURL returns the share URL embedded in QR payloads and emails.
func (s *Service) VoucherURL(code string) string {
	return s.cfg.PublicBaseURL + "/v/" + code
}

// Claim issues a voucher for (user, partner, offer). A user holds at most one
// active voucher per partner; re-claiming returns the existing one.
func (s *Service) Claim(ctx context.Context, userID, partnerID, offerID uuid.UUID) (v *models.Voucher, existing bool, err error) {
	partner, err := s.partners.GetByID(ctx, partnerID)
	if err != nil {
		return nil, false, err
	}
	if partner == nil {
		return nil, false, ErrPartnerNotFound
	}
	if !partner.Active {
		return nil, false, ErrPartnerInactive
	}

	var offer *models.Offer
	if offerID == uuid.Nil {
		offer, err = s.offers.GetDefaultActiveOffer(ctx, partnerID)
	} else {
		offer, err = s.offers.GetOffer(ctx, offerID)
	}
	if err != nil {
		return nil, false, err
	}
	if offer == nil || !offer.Active || offer.PartnerID != partnerID {
		return nil, false, ErrNoActiveOffer
	}

	now := s.now()
	if cur, err := s.vouchers.FindActive(ctx, userID, partnerID, now); err != nil {
		return nil, false, err
	} else if cur != nil {
		return cur, true, nil
	}

	// A lapsed issued row still occupies the one-active slot until flipped,
	// so clear it here; the insert must not collide with a voucher that is
	// already logically expired.
	if err := s.vouchers.ExpireLapsedFor(ctx, userID, partnerID, now); err != nil {
		return nil, false, err
	}

	code, err := NewCode(s.cfg.CodePrefix)
	if err != nil {
		return nil, false, err
	}
	v = &models.Voucher{
		Code:      code,
		UserID:    userID,
		PartnerID: partnerID,
		OfferID:   offer.ID,
		Status:    models.VoucherIssued,
		ExpiresAt: now.Add(time.Duration(s.cfg.TTLHours) * time.Hour),
	}
	if err := s.vouchers.Create(ctx, v); err != nil {
		// Lost a claim race: the partial unique index admits one issued
		// voucher per (user, partner), so return the winner's row.
		if cur, ferr := s.vouchers.FindActive(ctx, userID, partnerID, now); ferr == nil && cur != nil {
			return cur, true, nil
		}
		return nil, false, err
	}
	return v, false, nil
}

// Lookup resolves a code to its detail with the effective status applied.
// Expiry is judged against server time here, never trusted from the stored row.
func (s *Service) Lookup(ctx context.Context, rawCode string) (*models.VoucherDetail, error) {
	d, err := s.vouchers.GetDetailByCode(ctx, NormalizeCode(rawCode))
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrVoucherNotFound
	}
	d.Status = d.EffectiveStatus(s.now())
	return d, nil
}

// StaffLookup is Lookup gated to staff of the voucher's partner (or admin).
func (s *Service) StaffLookup(ctx context.Context, rawCode string, actor Actor) (*models.VoucherDetail, error) {
	d, err := s.Lookup(ctx, rawCode)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(d, actor); err != nil {
		return nil, err
	}
	return d, nil
}

// Redeem performs the one-time issued -> redeemed transition on behalf of a
// staff actor, computing commission from the partner's current rate. The store
// enforces at-most-once; two racing staff get exactly one receipt between them.
func (s *Service) Redeem(ctx context.Context, rawCode string, actor Actor, req RedeemRequest) (*Receipt, error) {
	d, err := s.vouchers.GetDetailByCode(ctx, NormalizeCode(rawCode))
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrVoucherNotFound
	}
	if err := s.authorize(d, actor); err != nil {
		return nil, err
	}

	partner, err := s.partners.GetByID(ctx, d.PartnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrPartnerNotFound
	}

	commission := 0.0
	if req.Amount != nil {
		commission = round2(*req.Amount * partner.CommissionRate / 100)
	}
	red, err := s.vouchers.Redeem(ctx, RedeemParams{
		VoucherID:        d.ID,
		PartnerID:        d.PartnerID,
		StaffUserID:      actor.UserID,
		Amount:           req.Amount,
		BenefitApplied:   req.BenefitApplied,
		Notes:            req.Notes,
		CommissionRate:   partner.CommissionRate,
		CommissionAmount: commission,
	})
	if err != nil {
		return nil, err
	}
	return &Receipt{
		RedemptionID: red.ID,
		Commission:   red.CommissionAmount,
		Timestamp:    red.CreatedAt,
	}, nil
}

// ListForUser returns the caller's vouchers with effective statuses.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.VoucherDetail, error) {
	list, err := s.vouchers.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range list {
		list[i].Status = list[i].EffectiveStatus(now)
	}
	return list, nil
}

func (s *Service) authorize(d *models.VoucherDetail, actor Actor) error {
	if actor.Admin {
		return nil
	}
	if actor.PartnerID == nil || *actor.PartnerID != d.PartnerID {
		return ErrWrongPartner
	}
	return nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
