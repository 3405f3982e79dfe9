package partners

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/balkly/backend/internal/models"
)

func staffRouter(role models.StaffRole, required ...models.StaffRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/staff-only",
		func(c *gin.Context) {
			c.Set(ContextPartnerID, uuid.New())
			c.Set(ContextStaffRole, role)
		},
		RequireStaffRole(required...),
		func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRequireStaffRole(t *testing.T) {
	cases := []struct {
		name     string
		role     models.StaffRole
		required []models.StaffRole
		want     int
	}{
		{"owner allowed", models.StaffRoleOwner, []models.StaffRole{models.StaffRoleManager, models.StaffRoleOwner}, http.StatusOK},
		{"manager allowed", models.StaffRoleManager, []models.StaffRole{models.StaffRoleManager, models.StaffRoleOwner}, http.StatusOK},
		{"staff refused", models.StaffRoleStaff, []models.StaffRole{models.StaffRoleManager, models.StaffRoleOwner}, http.StatusForbidden},
		{"staff allowed when listed", models.StaffRoleStaff, []models.StaffRole{models.StaffRoleStaff}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := staffRouter(tc.role, tc.required...)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff-only", nil))
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestRequireStaffRoleWithoutContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/staff-only", RequireStaffRole(models.StaffRoleOwner), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff-only", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}
