package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/balkly/backend/internal/auth"
)

func newTestRouter(jwtSvc *auth.JWTService, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(jwtSvc)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.MustGet(ContextUserID).(uuid.UUID).String(),
			"role":    c.MustGet(ContextUserRole).(string),
		})
	})
	r.GET("/protected", handlers...)
	return r
}

func TestJWTMiddlewareAllowsValidToken(t *testing.T) {
	svc := auth.NewJWTService("test-secret", 1)
	userID := uuid.New()
	token, err := svc.Generate(userID, "u@example.com", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	r := newTestRouter(svc)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestJWTMiddlewareRejectsMissingHeader(t *testing.T) {
	r := newTestRouter(auth.NewJWTService("test-secret", 1))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestJWTMiddlewareRejectsMalformedHeader(t *testing.T) {
	r := newTestRouter(auth.NewJWTService("test-secret", 1))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestJWTMiddlewareRejectsBadToken(t *testing.T) {
	r := newTestRouter(auth.NewJWTService("test-secret", 1))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	svc := auth.NewJWTService("test-secret", 1)
	r := newTestRouter(svc, RequireRole("admin"))

	userToken, _ := svc.Generate(uuid.New(), "u@example.com", "user")
	adminToken, _ := svc.Generate(uuid.New(), "a@example.com", "admin")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("user role: status = %d, want 403", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("admin role: status = %d, want 200", w.Code)
	}
}
