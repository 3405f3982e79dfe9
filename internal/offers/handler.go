package offers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/balkly/backend/internal/models"
	"github.com/balkly/backend/internal/partners"
	"github.com/balkly/backend/pkg/response"
	"github.com/balkly/backend/pkg/storage"
)

// Handler handles offer HTTP endpoints.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates an offers handler. s3 may be nil when image storage is not configured.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// CreateOfferRequest is the body for POST /partner/offers.
type CreateOfferRequest struct {
	Title        string             `json:"title" binding:"required"`
	Description  string             `json:"description"`
	BenefitType  models.BenefitType `json:"benefit_type" binding:"required"`
	BenefitValue float64            `json:"benefit_value" binding:"gte=0"`
	MinPurchase  *float64           `json:"min_purchase" binding:"omitempty,gte=0"`
	Active       *bool              `json:"active"`
}

// ListPublic handles GET /api/v1/partners/:id/offers. Active offers only.
func (h *Handler) ListPublic(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid partner id")
		return
	}
	list, err := h.repo.ListByPartner(c.Request.Context(), partnerID, true)
	if err != nil {
		response.Internal(c, "failed to list offers")
		return
	}
	h.fillImageURLs(list)
	response.OK(c, list)
}

// List handles GET /api/v1/partner/offers. All of the caller's partner's offers.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListByPartner(c.Request.Context(), partners.PartnerIDFrom(c), false)
	if err != nil {
		response.Internal(c, "failed to list offers")
		return
	}
	h.fillImageURLs(list)
	response.OK(c, list)
}

// Create handles POST /api/v1/partner/offers.
func (h *Handler) Create(c *gin.Context) {
	var req CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !models.ValidBenefitType(req.BenefitType) {
		response.BadRequest(c, "invalid benefit_type")
		return
	}
	if req.BenefitType == models.BenefitPercentOff && req.BenefitValue > 100 {
		response.BadRequest(c, "benefit_value must be 0-100 for percent_off")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	o := &models.Offer{
		PartnerID:    partners.PartnerIDFrom(c),
		Title:        req.Title,
		Description:  req.Description,
		BenefitType:  req.BenefitType,
		BenefitValue: req.BenefitValue,
		MinPurchase:  req.MinPurchase,
		Active:       active,
	}
	if err := h.repo.Create(c.Request.Context(), o); err != nil {
		h.logger.Error("create offer failed", zap.Error(err))
		response.Internal(c, "failed to create offer")
		return
	}
	response.Created(c, o)
}

// Update handles PATCH /api/v1/partner/offers/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid offer id")
		return
	}
	var u OfferUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if u.BenefitType != nil && !models.ValidBenefitType(*u.BenefitType) {
		response.BadRequest(c, "invalid benefit_type")
		return
	}
	o, err := h.repo.Update(c.Request.Context(), partners.PartnerIDFrom(c), id, u)
	if err != nil {
		response.Internal(c, "failed to update offer")
		return
	}
	if o == nil {
		response.NotFound(c, "offer not found")
		return
	}
	h.fillImageURL(o)
	response.OK(c, o)
}

// Delete handles DELETE /api/v1/partner/offers/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid offer id")
		return
	}
	partnerID := partners.PartnerIDFrom(c)
	o, err := h.repo.GetOffer(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load offer")
		return
	}
	if o == nil || o.PartnerID != partnerID {
		response.NotFound(c, "offer not found")
		return
	}
	if o.ImageKey != "" && h.s3 != nil {
		_ = h.s3.DeleteOfferImage(c.Request.Context(), o.ImageKey)
	}
	if err := h.repo.Delete(c.Request.Context(), partnerID, id); err != nil {
		if err == pgx.ErrNoRows {
			response.NotFound(c, "offer not found")
			return
		}
		response.Internal(c, "failed to delete offer")
		return
	}
	response.NoContent(c)
}

// UploadImage handles POST /api/v1/partner/offers/:id/image. Server-side upload
// to the public offers bucket.
func (h *Handler) UploadImage(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "image storage not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid offer id")
		return
	}
	partnerID := partners.PartnerIDFrom(c)

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	if file.Size > storage.MaxImageFileSize {
		response.BadRequest(c, "file size exceeds 5MB limit")
		return
	}
	if !storage.ValidateImageType(file.Header.Get("Content-Type"), file.Filename) {
		response.BadRequest(c, "invalid file type: only jpg, png and webp allowed")
		return
	}

	contentType := storage.ContentTypeForFilename(file.Filename)
	if ct := file.Header.Get("Content-Type"); ct != "" {
		if _, ok := storage.AllowedImageTypes[ct]; ok {
			contentType = ct
		}
	}

	key := storage.OfferKey(partnerID.String(), file.Filename)
	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	_, err = h.s3.Upload(c.Request.Context(), h.s3.OffersBucket(), key, contentType, rc, file.Size, true)
	if err != nil {
		h.logger.Error("S3 upload failed", zap.Error(err), zap.String("partner_id", partnerID.String()), zap.String("key", key))
		response.Internal(c, "failed to upload file to storage")
		return
	}
	if err := h.repo.SetImageKey(c.Request.Context(), partnerID, id, key); err != nil {
		if err == pgx.ErrNoRows {
			response.NotFound(c, "offer not found")
			return
		}
		response.Internal(c, "failed to record image")
		return
	}

	response.OK(c, gin.H{
		"image_key": key,
		"image_url": h.s3.PublicObjectURL(h.s3.OffersBucket(), key),
	})
}

// GetImage streams the offer image from S3 (proxy). Use when direct S3 URL
// fails (CORS/403).
func (h *Handler) GetImage(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "image storage unavailable")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid offer id")
		return
	}
	o, err := h.repo.GetOffer(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load offer")
		return
	}
	if o == nil || o.ImageKey == "" {
		response.NotFound(c, "offer has no image")
		return
	}
	body, contentType, err := h.s3.GetObjectStream(c.Request.Context(), h.s3.OffersBucket(), o.ImageKey)
	if err != nil {
		h.logger.Warn("offer image get failed", zap.Error(err), zap.String("image_key", o.ImageKey))
		response.NotFound(c, "image not found")
		return
	}
	defer body.Close()
	if contentType != "" {
		c.Header("Content-Type", contentType)
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, body)
}

func (h *Handler) fillImageURLs(list []models.Offer) {
	if h.s3 == nil {
		return
	}
	for i := range list {
		h.fillImageURL(&list[i])
	}
}

func (h *Handler) fillImageURL(o *models.Offer) {
	if h.s3 != nil && o.ImageKey != "" {
		o.ImageURL = h.s3.PublicObjectURL(h.s3.OffersBucket(), o.ImageKey)
	}
}
