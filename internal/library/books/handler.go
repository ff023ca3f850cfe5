package books

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"biblioteca-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 参照（全ロール）
	r.GET("/books", h.ListBooks)
	r.GET("/books/search-available", h.SearchAvailable)
	r.GET("/books/:id", h.GetBook)

	// 登録・ejemplar 管理（admin）
	r.POST("/books", auth.AdminOnly(), h.CreateBook)
	r.POST("/books/:id/copies", auth.AdminOnly(), h.AddCopy)
	r.DELETE("/books/:id/copies/:copy_id", auth.AdminOnly(), h.RemoveCopy)
	r.POST("/books/:id/copies/:copy_id/retire", auth.AdminOnly(), h.RetireCopy)
	r.POST("/books/:id/copies/:copy_id/restore", auth.AdminOnly(), h.RestoreCopy)
}

func (h *Handler) ListBooks(c *gin.Context) {
	f := BookFilter{
		Query:      c.Query("q"),
		CategoryID: c.Query("category_id"),
		Limit:      parseIntDefault(c.Query("limit"), 50),
		Offset:     parseIntDefault(c.Query("offset"), 0),
	}
	if v := c.Query("available"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Available = &b
		}
	}
	res, err := h.svc.ListBooks(c.Request.Context(), f)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) SearchAvailable(c *gin.Context) {
	res, err := h.svc.SearchAvailable(c.Request.Context(), c.Query("name"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": res})
}

func (h *Handler) GetBook(c *gin.Context) {
	res, err := h.svc.GetBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateBook(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateBook(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Location", "/books/"+res.BookID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) AddCopy(c *gin.Context) {
	var req CreateCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.AddCopy(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) RemoveCopy(c *gin.Context) {
	if err := h.svc.RemoveCopy(c.Request.Context(), c.Param("id"), c.Param("copy_id")); err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RetireCopy(c *gin.Context) {
	res, err := h.svc.RetireCopy(c.Request.Context(), c.Param("id"), c.Param("copy_id"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RestoreCopy(c *gin.Context) {
	res, err := h.svc.RestoreCopy(c.Request.Context(), c.Param("id"), c.Param("copy_id"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	if api, ok := err.(*APIError); ok {
		return errorBody(api.Code, api.Message)
	}
	return errorBody(CodeInternal, "error interno")
}
