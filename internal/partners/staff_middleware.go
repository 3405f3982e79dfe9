package partners

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/balkly/backend/internal/middleware"
	"github.com/balkly/backend/internal/models"
	"github.com/balkly/backend/pkg/response"
)

const (
	// ContextPartnerID is the context key for the caller's partner when staff access is enforced.
	ContextPartnerID = "partner_id"
	// ContextStaffRole is the context key for the caller's role within that partner.
	ContextStaffRole = "staff_role"
)

// RequirePartnerStaff validates that the authenticated user is staff of some
// partner and scopes the request to it. Call after JWT. Sets ContextPartnerID
// and ContextStaffRole.
func RequirePartnerStaff(repo *Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		m, err := repo.GetMembership(c.Request.Context(), userID)
		if err != nil {
			response.Internal(c, "failed to resolve partner access")
			c.Abort()
			return
		}
		if m == nil {
			response.Forbidden(c, "not a partner staff member")
			c.Abort()
			return
		}
		c.Set(ContextPartnerID, m.PartnerID)
		c.Set(ContextStaffRole, m.Role)
		c.Next()
	}
}

// RequireStaffRole allows only the given staff roles within the partner.
// Call after RequirePartnerStaff.
func RequireStaffRole(roles ...models.StaffRole) gin.HandlerFunc {
	allowed := make(map[models.StaffRole]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextStaffRole)
		if !ok {
			response.Forbidden(c, "missing partner context")
			c.Abort()
			return
		}
		role, _ := roleVal.(models.StaffRole)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient partner permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// PartnerIDFrom returns the partner scoping set by RequirePartnerStaff.
func PartnerIDFrom(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextPartnerID).(uuid.UUID)
}
