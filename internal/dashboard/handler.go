package dashboard

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/balkly/backend/internal/partners"
	"github.com/balkly/backend/internal/tracking"
	"github.com/balkly/backend/pkg/redis"
	"github.com/balkly/backend/pkg/response"
)

// ClickCounter counts tracked link clicks for a partner.
type ClickCounter interface {
	CountClicks(ctx context.Context, partnerID uuid.UUID, since time.Time) (int64, error)
}

// Handler handles GET /api/v1/partner/dashboard.
type Handler struct {
	pool   *pgxpool.Pool
	clicks ClickCounter
	redis  *redis.Client
	logger *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(pool *pgxpool.Pool, clicks ClickCounter, rdb *redis.Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pool: pool, clicks: clicks, redis: rdb, logger: logger}
}

// SummaryResponse is the JSON shape for the partner dashboard.
type SummaryResponse struct {
	VouchersIssued      int     `json:"vouchers_issued"`
	VouchersRedeemed    int     `json:"vouchers_redeemed"`
	VouchersActive      int     `json:"vouchers_active"`
	RedemptionRate      float64 `json:"redemption_rate"`
	Clicks30d           int64   `json:"clicks_30d"`
	LiveClicks          *int64  `json:"live_clicks,omitempty"`
	ConversionsPhysical int     `json:"conversions_physical"`
	ConversionsDigital  int     `json:"conversions_digital"`
	PendingCommission   float64 `json:"pending_commission"`
	ConfirmedCommission float64 `json:"confirmed_commission"`
	PaidCommission      float64 `json:"paid_commission"`
	TotalSales          float64 `json:"total_sales"`
}

// Summary handles GET /api/v1/partner/dashboard. Aggregates come straight from
// SQL; the live click counter from Redis is advisory and omitted when down.
func (h *Handler) Summary(c *gin.Context) {
	ctx := c.Request.Context()
	partnerID := partners.PartnerIDFrom(c)

	var out SummaryResponse

	const voucherQ = `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'redeemed'),
		COUNT(*) FILTER (WHERE status = 'issued' AND expires_at > NOW())
		FROM vouchers WHERE partner_id = $1`
	if err := h.pool.QueryRow(ctx, voucherQ, partnerID).
		Scan(&out.VouchersIssued, &out.VouchersRedeemed, &out.VouchersActive); err != nil {
		h.logger.Error("dashboard voucher counts failed", zap.Error(err))
		response.Internal(c, "failed to load voucher counts")
		return
	}
	if out.VouchersIssued > 0 {
		out.RedemptionRate = float64(out.VouchersRedeemed) / float64(out.VouchersIssued) * 100
	}

	since := time.Now().AddDate(0, 0, -30)
	n, err := h.clicks.CountClicks(ctx, partnerID, since)
	if err != nil {
		response.Internal(c, "failed to load click counts")
		return
	}
	out.Clicks30d = n

	const convQ = `SELECT
		COUNT(*) FILTER (WHERE type = 'physical'),
		COUNT(*) FILTER (WHERE type = 'digital'),
		COALESCE(SUM(commission_amount) FILTER (WHERE status = 'pending'), 0),
		COALESCE(SUM(commission_amount) FILTER (WHERE status = 'confirmed'), 0),
		COALESCE(SUM(commission_amount) FILTER (WHERE status = 'paid'), 0),
		COALESCE(SUM(amount), 0)
		FROM conversions WHERE partner_id = $1`
	if err := h.pool.QueryRow(ctx, convQ, partnerID).
		Scan(&out.ConversionsPhysical, &out.ConversionsDigital,
			&out.PendingCommission, &out.ConfirmedCommission, &out.PaidCommission,
			&out.TotalSales); err != nil {
		response.Internal(c, "failed to load conversion totals")
		return
	}

	if h.redis != nil {
		if n, err := h.redis.Get(ctx, tracking.ClickCounterKey(partnerID)).Int64(); err == nil {
			out.LiveClicks = &n
		}
	}

	response.OK(c, out)
}
