package emaillogs

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/balkly/backend/internal/partners"
	"github.com/balkly/backend/pkg/response"
)

// Handler handles GET /api/v1/partner/emails.
type Handler struct {
	repo *Repository
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List returns the caller's partner email delivery history. Supports ?limit=.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	list, err := h.repo.ListByPartner(c.Request.Context(), partners.PartnerIDFrom(c), limit)
	if err != nil {
		response.Internal(c, "failed to list email logs")
		return
	}
	response.OK(c, list)
}
