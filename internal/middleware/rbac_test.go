package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/arkan-dev/bootcamp-api/internal/models"
)

func runRBAC(t *testing.T, claims *models.JWTClaims, paramID string, allowed ...string) (int, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/protected", nil)
	if paramID != "" {
		c.Params = gin.Params{{Key: "id", Value: paramID}}
	}
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}

	passed := false
	RBAC(allowed...)(c)
	if !c.IsAborted() {
		passed = true
	}
	return rec.Code, passed
}

func TestRBACAllowsMatchingRole(t *testing.T) {
	code, passed := runRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, "", "ADMIN")
	assert.True(t, passed)
	assert.Equal(t, http.StatusOK, code)
}

func TestRBACRejectsWrongRole(t *testing.T) {
	code, passed := runRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}, "", "ADMIN")
	assert.False(t, passed)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRBACMissingClaims(t *testing.T) {
	code, passed := runRBAC(t, nil, "", "ADMIN")
	assert.False(t, passed)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRBACSelfAccess(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}

	_, passed := runRBAC(t, claims, "u1", "ADMIN", "SELF")
	assert.True(t, passed)

	code, passed := runRBAC(t, claims, "u2", "ADMIN", "SELF")
	assert.False(t, passed)
	assert.Equal(t, http.StatusForbidden, code)
}
