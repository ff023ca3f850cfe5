package patrons

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"biblioteca-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/patrons/search", auth.Staff(), h.Search)
	r.GET("/patrons/:id", auth.Staff(), h.Get)
}

func (h *Handler) Search(c *gin.Context) {
	res, err := h.svc.Search(c.Request.Context(), c.Query("name"))
	if err != nil {
		code, apiCode, msg := statusOf(err)
		c.JSON(code, gin.H{"error": gin.H{"code": apiCode, "message": msg}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": res})
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		code, apiCode, msg := statusOf(err)
		c.JSON(code, gin.H{"error": gin.H{"code": apiCode, "message": msg}})
		return
	}
	c.JSON(http.StatusOK, res)
}
