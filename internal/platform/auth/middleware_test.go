package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func tokenFor(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(exp)},
	}).SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func protectedRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{RequireAuth(testSecret)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "role": p.Role, "staff": p.IsStaff()})
	})
	r.GET("/me", handlers...)
	return r
}

func call(r http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := protectedRouter()
	valid := tokenFor(t, "P1", RoleConsultor, time.Now().Add(time.Hour))

	w := call(r, "Bearer "+valid)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"P1","role":"consultor","staff":true}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer ").Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer "+valid+"x").Code)

	expired := tokenFor(t, "P1", RoleAdmin, time.Now().Add(-time.Minute))
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer "+expired).Code)
}

func TestRequireAuth_RejectsOtherAlgorithms(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "P1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(testSecret)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, call(protectedRouter(), "Bearer "+tok).Code)
}

func TestRequireRole(t *testing.T) {
	r := protectedRouter(AdminOnly())

	admin := tokenFor(t, "A", RoleAdmin, time.Now().Add(time.Hour))
	student := tokenFor(t, "S", RoleEstudiante, time.Now().Add(time.Hour))

	assert.Equal(t, http.StatusOK, call(r, "Bearer "+admin).Code)
	assert.Equal(t, http.StatusForbidden, call(r, "Bearer "+student).Code)
}
