package vouchers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/balkly/backend/internal/mailer"
	"github.com/balkly/backend/internal/middleware"
	"github.com/balkly/backend/internal/models"
	"github.com/balkly/backend/pkg/queue"
	"github.com/balkly/backend/pkg/response"
)

const qrSize = 256

// StaffResolver resolves a user's partner staff membership.
type StaffResolver interface {
	GetMembership(ctx context.Context, userID uuid.UUID) (*models.PartnerStaff, error)
}

// Notifier pushes live events to a partner's connected dashboards.
type Notifier interface {
	BroadcastToPartner(partnerID uuid.UUID, event string, payload interface{})
}

// EmailQueue enqueues transactional email jobs.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Handler handles voucher HTTP endpoints.
type Handler struct {
	svc      *Service
	staff    StaffResolver
	emails   EmailQueue
	notifier Notifier
	logger   *zap.Logger
}

// NewHandler creates a vouchers handler. emails and notifier may be nil.
func NewHandler(svc *Service, staff StaffResolver, emails EmailQueue, notifier Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, staff: staff, emails: emails, notifier: notifier, logger: logger}
}

// ClaimRequest is the body for POST /api/v1/vouchers.
type ClaimRequest struct {
	PartnerID uuid.UUID `json:"partner_id" binding:"required"`
	OfferID   uuid.UUID `json:"offer_id"` // optional; defaults to the partner's active offer
}

// Claim handles POST /api/v1/vouchers. Returns the existing active voucher
// (existing: true) instead of minting a duplicate.
func (h *Handler) Claim(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	v, existing, err := h.svc.Claim(c.Request.Context(), userID, req.PartnerID, req.OfferID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !existing {
		h.enqueueClaimedEmail(c, v)
	}
	payload := gin.H{
		"voucher":  v,
		"existing": existing,
		"url":      h.svc.VoucherURL(v.Code),
	}
	if existing {
		response.OK(c, payload)
		return
	}
	response.Created(c, payload)
}

// PublicLookup handles GET /api/v1/vouchers/:code. Guest-safe, redacted.
func (h *Handler) PublicLookup(c *gin.Context) {
	d, err := h.svc.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, d.ToPublic(h.svc.now()))
}

// QR handles GET /api/v1/vouchers/:code/qr. Encodes the share URL as PNG.
func (h *Handler) QR(c *gin.Context) {
	d, err := h.svc.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	png, err := qrcode.Encode(h.svc.VoucherURL(d.Code), qrcode.Medium, qrSize)
	if err != nil {
		response.Internal(c, "failed to render QR")
		return
	}
	c.Data(200, "image/png", png)
}

// ListMine handles GET /api/v1/me/vouchers.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.svc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list vouchers")
		return
	}
	response.OK(c, list)
}

// StaffLookup handles GET /api/v1/staff/vouchers/:code. Full detail for staff
// of the voucher's partner (or admin).
func (h *Handler) StaffLookup(c *gin.Context) {
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	d, err := h.svc.StaffLookup(c.Request.Context(), c.Param("code"), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, d)
}

// Redeem handles POST /api/v1/staff/vouchers/:code/redeem.
func (h *Handler) Redeem(c *gin.Context) {
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	code := c.Param("code")
	receipt, err := h.svc.Redeem(c.Request.Context(), code, actor, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if d, lerr := h.svc.Lookup(c.Request.Context(), code); lerr == nil {
		h.notifyRedemption(d, receipt)
		h.enqueueReceiptEmail(c, d)
	}
	response.OK(c, receipt)
}

// actorFrom builds the staff actor from the JWT claims and, for non-admins,
// the caller's partner membership.
func (h *Handler) actorFrom(c *gin.Context) (Actor, bool) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)

	actor := Actor{UserID: userID, Admin: role == string(models.RoleAdmin)}
	if actor.Admin {
		return actor, true
	}

	m, err := h.staff.GetMembership(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to resolve partner access")
		c.Abort()
		return actor, false
	}
	if m == nil {
		response.Forbidden(c, "staff access required")
		c.Abort()
		return actor, false
	}
	actor.PartnerID = &m.PartnerID
	return actor, true
}

func (h *Handler) enqueueClaimedEmail(c *gin.Context, v *models.Voucher) {
	if h.emails == nil {
		return
	}
	d, err := h.svc.Lookup(c.Request.Context(), v.Code)
	if err != nil {
		return
	}
	subject, body := mailer.VoucherClaimedEmail(d.PartnerName, d.OfferTitle, d.Code, h.svc.VoucherURL(d.Code), d.ExpiresAt)
	err = h.emails.EnqueueEmail(c.Request.Context(), queue.EmailPayload{
		EmailType:      models.EmailTypeVoucherClaimed,
		PartnerID:      &d.PartnerID,
		VoucherID:      &d.ID,
		RecipientEmail: d.UserEmail,
		Subject:        subject,
		BodyHTML:       body,
	})
	if err != nil {
		h.logger.Warn("enqueue claimed email failed", zap.Error(err), zap.String("code", v.Code))
	}
}

func (h *Handler) enqueueReceiptEmail(c *gin.Context, d *models.VoucherDetail) {
	if h.emails == nil || d.RedeemedAt == nil {
		return
	}
	subject, body := mailer.RedemptionReceiptEmail(d.PartnerName, d.OfferTitle, d.Code, *d.RedeemedAt)
	err := h.emails.EnqueueEmail(c.Request.Context(), queue.EmailPayload{
		EmailType:      models.EmailTypeRedemptionReceipt,
		PartnerID:      &d.PartnerID,
		VoucherID:      &d.ID,
		RecipientEmail: d.UserEmail,
		Subject:        subject,
		BodyHTML:       body,
	})
	if err != nil {
		h.logger.Warn("enqueue receipt email failed", zap.Error(err), zap.String("code", d.Code))
	}
}

func (h *Handler) notifyRedemption(d *models.VoucherDetail, receipt *Receipt) {
	if h.notifier == nil {
		return
	}
	h.notifier.BroadcastToPartner(d.PartnerID, "redemption", gin.H{
		"redemption_id": receipt.RedemptionID,
		"code":          d.Code,
		"offer_title":   d.OfferTitle,
		"commission":    receipt.Commission,
		"timestamp":     receipt.Timestamp,
	})
}

// respondError maps lifecycle errors to HTTP responses. Every rejection is a
// single user-facing message; the client never retries automatically.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrVoucherNotFound):
		response.NotFound(c, "voucher not found")
	case errors.Is(err, ErrVoucherRedeemed):
		response.Conflict(c, "voucher already redeemed")
	case errors.Is(err, ErrVoucherExpired):
		response.Conflict(c, "voucher expired")
	case errors.Is(err, ErrWrongPartner):
		response.Forbidden(c, "voucher belongs to another partner")
	case errors.Is(err, ErrPartnerNotFound):
		response.NotFound(c, "partner not found")
	case errors.Is(err, ErrPartnerInactive):
		response.BadRequest(c, "partner is not active")
	case errors.Is(err, ErrNoActiveOffer):
		response.BadRequest(c, "partner has no active offer")
	default:
		h.logger.Error("voucher operation failed", zap.Error(err))
		response.Internal(c, "voucher operation failed")
	}
}
