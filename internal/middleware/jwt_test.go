package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/booking-api/internal/models"
	"github.com/slotwise/booking-api/internal/service"
)

type noUserRepo struct{}

func (noUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, sql.ErrNoRows
}
func (noUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return nil, sql.ErrNoRows
}
func (noUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) { return false, nil }
func (noUserRepo) Create(ctx context.Context, user *models.User) error           { return nil }

func newTestRouter(authSvc *service.AuthService, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("", JWT(authSvc))
	if role != "" {
		group = group.Group("", RequireRoles(role))
	}
	group.GET("/protected", func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.JSON(http.StatusOK, gin.H{"userId": claims.UserID})
	})
	return r
}

func newTestAuthService() *service.AuthService {
	return service.NewAuthService(noUserRepo{}, nil, nil, service.AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "booking-api",
	})
}

func mintToken(t *testing.T, role models.UserRole) string {
	t.Helper()
	claims := &models.JWTClaims{
		UserID: "u1",
		Role:   role,
		Email:  "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return signed
}

func TestJWTMissingHeader(t *testing.T) {
	r := newTestRouter(newTestAuthService(), "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMalformedHeader(t *testing.T) {
	r := newTestRouter(newTestAuthService(), "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTValidToken(t *testing.T) {
	authSvc := newTestAuthService()
	r := newTestRouter(authSvc, "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, models.RoleStudent))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u1")
}

func TestRequireRolesForbidsMismatch(t *testing.T) {
	authSvc := newTestAuthService()
	r := newTestRouter(authSvc, models.RoleInstructor)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, models.RoleStudent))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesAllowsMatch(t *testing.T) {
	authSvc := newTestAuthService()
	r := newTestRouter(authSvc, models.RoleInstructor)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, models.RoleInstructor))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
