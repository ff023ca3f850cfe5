package categories

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biblioteca-backend/internal/platform/auth"
)

func newTestRouter(repo *memRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(auth.CtxUserIDKey, "U1")
		c.Set(auth.CtxRoleKey, c.GetHeader("X-Test-Role"))
		c.Next()
	})
	RegisterRoutes(r, NewService(repo))
	return r
}

func send(r http.Handler, method, path, role string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Role", role)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CategoryCRUD(t *testing.T) {
	repo := newMemRepo()
	r := newTestRouter(repo)

	rec := send(r, http.MethodPost, "/categories", auth.RoleAdmin, map[string]string{"category_id": "nov", "description": "Novela"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/categories/NOV", rec.Header().Get("Location"))

	// 重複
	rec = send(r, http.MethodPost, "/categories", auth.RoleAdmin, map[string]string{"category_id": "NOV", "description": "Otra"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = send(r, http.MethodGet, "/categories/NOV", auth.RoleEstudiante, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Novela", got.Description)

	rec = send(r, http.MethodPut, "/categories/NOV", auth.RoleAdmin, map[string]string{"description": "Novela juvenil"})
	assert.Equal(t, http.StatusOK, rec.Code)

	repo.used["NOV"] = true
	rec = send(r, http.MethodDelete, "/categories/NOV", auth.RoleAdmin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	repo.used["NOV"] = false
	rec = send(r, http.MethodDelete, "/categories/NOV", auth.RoleAdmin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = send(r, http.MethodGet, "/categories/NOV", auth.RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_WritesNeedAdmin(t *testing.T) {
	r := newTestRouter(newMemRepo())

	for _, role := range []string{auth.RoleConsultor, auth.RoleDocente, auth.RoleEstudiante} {
		rec := send(r, http.MethodPost, "/categories", role, map[string]string{"category_id": "HIS", "description": "Historia"})
		assert.Equal(t, http.StatusForbidden, rec.Code, role)
	}

	rec := send(r, http.MethodGet, "/categories", auth.RoleDocente, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = send(r, http.MethodPost, "/categories", auth.RoleAdmin, map[string]string{"description": "sin id"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
