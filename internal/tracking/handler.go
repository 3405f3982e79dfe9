package tracking

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/balkly/backend/internal/models"
	"github.com/balkly/backend/pkg/redis"
)

// ClickCounterKey is the Redis key for a partner's rolling click counter.
func ClickCounterKey(partnerID uuid.UUID) string {
	return "clicks:" + partnerID.String()
}

// PartnerResolver resolves partners from tracking codes.
type PartnerResolver interface {
	GetByTrackingCode(ctx context.Context, code string) (*models.Partner, error)
}

// Handler handles tracking-link redirects.
type Handler struct {
	repo        *Repository
	partnerRepo PartnerResolver
	redis       *redis.Client
	fallbackURL string
	logger      *zap.Logger
}

// NewHandler creates a tracking handler. fallbackURL is where unresolvable or
// site-less partners send visitors.
func NewHandler(repo *Repository, partnerRepo PartnerResolver, rdb *redis.Client, fallbackURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, partnerRepo: partnerRepo, redis: rdb, fallbackURL: fallbackURL, logger: logger}
}

// Redirect handles GET /r/:code. Records the click, bumps the live counter and
// 302s to the partner site. A broken tracking link still lands somewhere.
func (h *Handler) Redirect(c *gin.Context) {
	code := c.Param("code")
	partner, err := h.partnerRepo.GetByTrackingCode(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("tracking code lookup failed", zap.Error(err), zap.String("code", code))
	}
	if partner == nil || !partner.Active {
		c.Redirect(http.StatusFound, h.fallbackURL)
		return
	}

	if err := h.repo.RecordClick(c.Request.Context(), partner.ID, c.Request.Referer()); err != nil {
		h.logger.Warn("record click failed", zap.Error(err), zap.String("partner_id", partner.ID.String()))
	}
	if h.redis != nil {
		if err := h.redis.Incr(c.Request.Context(), ClickCounterKey(partner.ID)).Err(); err != nil {
			h.logger.Debug("click counter incr failed", zap.Error(err))
		}
	}

	target := partner.SiteURL
	if target == "" {
		target = h.fallbackURL
	}
	c.Redirect(http.StatusFound, target)
}
