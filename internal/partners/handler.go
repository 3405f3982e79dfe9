package partners

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/balkly/backend/internal/auth"
	"github.com/balkly/backend/internal/models"
	"github.com/balkly/backend/pkg/response"
)

// Handler handles partner HTTP endpoints (public listing, admin CRUD, staff roster).
type Handler struct {
	repo     *Repository
	authRepo *auth.Repository
	logger   *zap.Logger
}

// NewHandler creates a partners handler.
func NewHandler(repo *Repository, authRepo *auth.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, authRepo: authRepo, logger: logger}
}

// ListPublic handles GET /api/v1/partners. Active partners only.
func (h *Handler) ListPublic(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), true)
	if err != nil {
		response.Internal(c, "failed to list partners")
		return
	}
	response.OK(c, list)
}

// CreatePartnerRequest is the body for POST /api/v1/admin/partners.
type CreatePartnerRequest struct {
	Name           string  `json:"name" binding:"required"`
	Slug           string  `json:"slug" binding:"required"`
	SiteURL        string  `json:"site_url"`
	CommissionRate float64 `json:"commission_rate"`
	Category       string  `json:"category"`
	City           string  `json:"city"`
}

// ListAdmin handles GET /api/v1/admin/partners. All partners including inactive.
func (h *Handler) ListAdmin(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), false)
	if err != nil {
		response.Internal(c, "failed to list partners")
		return
	}
	response.OK(c, list)
}

// Create handles POST /api/v1/admin/partners.
func (h *Handler) Create(c *gin.Context) {
	var req CreatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.CommissionRate < 0 || req.CommissionRate > 100 {
		response.BadRequest(c, "commission_rate must be between 0 and 100")
		return
	}

	p := &models.Partner{
		Name:           req.Name,
		Slug:           req.Slug,
		SiteURL:        req.SiteURL,
		TrackingCode:   newTrackingCode(),
		CommissionRate: req.CommissionRate,
		Category:       req.Category,
		City:           req.City,
		Active:         true,
	}
	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		h.logger.Error("create partner failed", zap.Error(err), zap.String("slug", req.Slug))
		response.Internal(c, "failed to create partner")
		return
	}
	response.Created(c, p)
}

// UpdatePartnerRequest is the body for PATCH /api/v1/admin/partners/:id.
type UpdatePartnerRequest struct {
	Name           *string  `json:"name"`
	SiteURL        *string  `json:"site_url"`
	CommissionRate *float64 `json:"commission_rate"`
	Category       *string  `json:"category"`
	City           *string  `json:"city"`
	Active         *bool    `json:"active"`
}

// Update handles PATCH /api/v1/admin/partners/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid partner id")
		return
	}
	p, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load partner")
		return
	}
	if p == nil {
		response.NotFound(c, "partner not found")
		return
	}

	var req UpdatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.SiteURL != nil {
		p.SiteURL = *req.SiteURL
	}
	if req.CommissionRate != nil {
		if *req.CommissionRate < 0 || *req.CommissionRate > 100 {
			response.BadRequest(c, "commission_rate must be between 0 and 100")
			return
		}
		p.CommissionRate = *req.CommissionRate
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.City != nil {
		p.City = *req.City
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := h.repo.Update(c.Request.Context(), p); err != nil {
		h.logger.Error("update partner failed", zap.Error(err), zap.String("partner_id", id.String()))
		response.Internal(c, "failed to update partner")
		return
	}
	response.OK(c, p)
}

// ListStaff handles GET /api/v1/partner/staff.
func (h *Handler) ListStaff(c *gin.Context) {
	list, err := h.repo.ListStaff(c.Request.Context(), PartnerIDFrom(c))
	if err != nil {
		response.Internal(c, "failed to list staff")
		return
	}
	response.OK(c, list)
}

// AddStaffRequest is the body for POST /api/v1/partner/staff.
type AddStaffRequest struct {
	Email string           `json:"email" binding:"required,email"`
	Role  models.StaffRole `json:"role" binding:"required"`
}

// AddStaff handles POST /api/v1/partner/staff. Links an existing platform user by email.
func (h *Handler) AddStaff(c *gin.Context) {
	var req AddStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	switch req.Role {
	case models.StaffRoleStaff, models.StaffRoleManager, models.StaffRoleOwner:
	default:
		response.BadRequest(c, "invalid role")
		return
	}

	user, err := h.authRepo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.NotFound(c, "no user with that email")
		return
	}

	m, err := h.repo.AddStaff(c.Request.Context(), PartnerIDFrom(c), user.ID, req.Role)
	if err != nil {
		response.Conflict(c, "user is already staff of a partner")
		return
	}
	response.Created(c, m)
}

// UpdateStaffRequest is the body for PATCH /api/v1/partner/staff/:id.
type UpdateStaffRequest struct {
	Role models.StaffRole `json:"role" binding:"required"`
}

// UpdateStaff handles PATCH /api/v1/partner/staff/:id.
func (h *Handler) UpdateStaff(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid staff id")
		return
	}
	var req UpdateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	switch req.Role {
	case models.StaffRoleStaff, models.StaffRoleManager, models.StaffRoleOwner:
	default:
		response.BadRequest(c, "invalid role")
		return
	}
	if err := h.repo.UpdateStaffRole(c.Request.Context(), id, PartnerIDFrom(c), req.Role); err != nil {
		response.NotFound(c, "staff member not found")
		return
	}
	response.OK(c, gin.H{"id": id, "role": req.Role})
}

// RemoveStaff handles DELETE /api/v1/partner/staff/:id.
func (h *Handler) RemoveStaff(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid staff id")
		return
	}
	if err := h.repo.RemoveStaff(c.Request.Context(), id, PartnerIDFrom(c)); err != nil {
		response.NotFound(c, "staff member not found")
		return
	}
	response.NoContent(c)
}

func newTrackingCode() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
