package conversions

import (
	"context"
	"math"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/balkly/backend/internal/models"
	"github.com/balkly/backend/internal/partners"
	"github.com/balkly/backend/pkg/response"
)

// PartnerResolver fetches the partner whose commission rate applies.
type PartnerResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error)
}

// Handler handles conversion HTTP endpoints.
type Handler struct {
	repo        *Repository
	partnerRepo PartnerResolver
	logger      *zap.Logger
}

// NewHandler creates a conversions handler.
func NewHandler(repo *Repository, partnerRepo PartnerResolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, partnerRepo: partnerRepo, logger: logger}
}

// CreateDigitalRequest is the body for POST /partner/conversions. Digital
// conversions are manual entries for sales driven by tracked links; physical
// ones are written by voucher redemption and never through this endpoint.
type CreateDigitalRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// List handles GET /api/v1/partner/conversions. Supports ?status= and ?type= filters.
func (h *Handler) List(c *gin.Context) {
	status := c.Query("status")
	convType := c.Query("type")
	list, err := h.repo.ListByPartner(c.Request.Context(), partners.PartnerIDFrom(c), status, convType)
	if err != nil {
		response.Internal(c, "failed to list conversions")
		return
	}
	response.OK(c, list)
}

// CreateDigital handles POST /api/v1/partner/conversions. The commission rate
// is snapshotted at entry time so later rate changes don't reprice history.
func (h *Handler) CreateDigital(c *gin.Context) {
	var req CreateDigitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	partnerID := partners.PartnerIDFrom(c)
	partner, err := h.partnerRepo.GetByID(c.Request.Context(), partnerID)
	if err != nil || partner == nil {
		response.Internal(c, "failed to resolve partner")
		return
	}

	cv := &models.Conversion{
		PartnerID:        partnerID,
		Type:             models.ConversionDigital,
		Amount:           req.Amount,
		CommissionRate:   partner.CommissionRate,
		CommissionAmount: math.Round(req.Amount*partner.CommissionRate) / 100,
		Status:           models.ConversionPending,
	}
	if err := h.repo.Create(c.Request.Context(), cv); err != nil {
		h.logger.Error("create conversion failed", zap.Error(err))
		response.Internal(c, "failed to record conversion")
		return
	}
	response.Created(c, cv)
}

// UpdateStatusRequest is the body for PATCH /admin/conversions/:id/status.
type UpdateStatusRequest struct {
	Status models.ConversionStatus `json:"status" binding:"required"`
}

// UpdateStatus handles PATCH /api/v1/admin/conversions/:id/status. Transitions
// are forward only: pending -> confirmed -> paid.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid conversion id")
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	cv, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load conversion")
		return
	}
	if cv == nil {
		response.NotFound(c, "conversion not found")
		return
	}
	if !cv.Status.CanTransitionTo(req.Status) {
		response.Conflict(c, "cannot move conversion from "+string(cv.Status)+" to "+string(req.Status))
		return
	}

	updated, err := h.repo.UpdateStatus(c.Request.Context(), id, cv.Status, req.Status)
	if err != nil {
		response.Internal(c, "failed to update conversion")
		return
	}
	if updated == nil {
		// Lost a concurrent transition between read and write.
		response.Conflict(c, "conversion status changed concurrently")
		return
	}
	response.OK(c, updated)
}
