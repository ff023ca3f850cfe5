package loans

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"biblioteca-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 1. 貸出
	r.POST("/loans", auth.AdminOnly(), h.CreateLoan)
	r.POST("/loans/by-copy", auth.AdminOnly(), h.CreateLoanForCopy)
	r.GET("/loans", auth.Staff(), h.ListAll)
	r.GET("/loans/status/:class", auth.Staff(), h.ListByStatus)
	r.GET("/loans/summary", auth.Staff(), h.Summary)
	r.GET("/loans/search", auth.Staff(), h.SearchByPatron)
	r.GET("/loans/due-soon", auth.Staff(), h.DueSoon)
	r.GET("/loans/mine", h.Mine)
	r.GET("/loans/:id", h.GetLoan)
	r.PUT("/loans/:id/close", auth.AdminOnly(), h.CloseLoan)
	r.POST("/loans/:id/renew", auth.AdminOnly(), h.RenewLoan)

	// 2. 予約
	r.POST("/reservations", h.Reserve)
	r.GET("/reservations", auth.Staff(), h.listReservations("all"))
	r.GET("/reservations/active", auth.Staff(), h.listReservations("active"))
	r.GET("/reservations/expired", auth.Staff(), h.listReservations("expired"))
	r.GET("/reservations/mine", h.myReservations("all"))
	r.GET("/reservations/mine/active", h.myReservations("active"))
	r.GET("/reservations/mine/expired", h.myReservations("expired"))
	r.GET("/reservations/patron/:patron_id", h.PatronReservations)
	r.GET("/reservations/:id", h.GetReservation)
	r.POST("/reservations/:id/activate", auth.AdminOnly(), h.Activate)
	r.POST("/reservations/:id/cancel", h.Cancel)
}

// ---------- handlers ----------

// POST /loans
func (h *Handler) CreateLoan(c *gin.Context) {
	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateLoan(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Location", "/loans/"+res.LoanID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListAll(c *gin.Context) {
	h.respond(c, http.StatusOK)(h.svc.ListByStatusClass(c.Request.Context(), string(ClassAll)))
}

func (h *Handler) ListByStatus(c *gin.Context) {
	h.respond(c, http.StatusOK)(h.svc.ListByStatusClass(c.Request.Context(), c.Param("class")))
}

func (h *Handler) Summary(c *gin.Context) {
	res, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) SearchByPatron(c *gin.Context) {
	h.respond(c, http.StatusOK)(h.svc.SearchByPatronName(c.Request.Context(), c.Query("name")))
}

func (h *Handler) DueSoon(c *gin.Context) {
	days := parseIntDefault(c.Query("days"), defaultDueSoonDays)
	h.respond(c, http.StatusOK)(h.svc.ListDueSoon(c.Request.Context(), days))
}

func (h *Handler) Mine(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	h.respond(c, http.StatusOK)(h.svc.ListByPatron(c.Request.Context(), p.ID))
}

// POST /loans/by-copy
func (h *Handler) CreateLoanForCopy(c *gin.Context) {
	var req CreateCopyLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateLoanForCopy(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Location", "/loans/"+res.LoanID)
	c.JSON(http.StatusCreated, res)
}

// GET /loans/:id  admin/consultor 以外は自分の分だけ
func (h *Handler) GetLoan(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	res, err := h.svc.GetLoanDetail(c.Request.Context(), c.Param("id"))
	if err == nil && !p.IsStaff() && res.Patron.PatronID != p.ID {
		err = ErrForbidden("no puede ver préstamos de otros usuarios")
	}
	h.respondOne(c, http.StatusOK, res, err)
}

func (h *Handler) CloseLoan(c *gin.Context) {
	var req CloseLoanRequest
	// body は省略可
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
			return
		}
	}
	res, err := h.svc.CloseLoan(c.Request.Context(), c.Param("id"), req)
	h.respondOne(c, http.StatusOK, res, err)
}

func (h *Handler) RenewLoan(c *gin.Context) {
	var req RenewLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "new_due_date es obligatorio y debe ser una fecha válida"))
		return
	}
	res, err := h.svc.RenewLoan(c.Request.Context(), c.Param("id"), req)
	h.respondOne(c, http.StatusOK, res, err)
}

// POST /reservations  patron_id 省略時は本人。他人の分は admin のみ
func (h *Handler) Reserve(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	if req.PatronID == "" {
		req.PatronID = p.ID
	}
	if req.PatronID != p.ID && !p.IsAdmin() {
		c.JSON(http.StatusForbidden, errorBody(CodeForbidden, "solo un administrador puede reservar para otro usuario"))
		return
	}
	res, err := h.svc.ReserveBook(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Location", "/reservations/"+res.LoanID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) listReservations(class string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.respond(c, http.StatusOK)(h.svc.ListReservations(c.Request.Context(), class, ""))
	}
}

func (h *Handler) myReservations(class string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		h.respond(c, http.StatusOK)(h.svc.ListReservations(c.Request.Context(), class, p.ID))
	}
}

func (h *Handler) PatronReservations(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	patronID := c.Param("patron_id")
	if !p.IsStaff() && patronID != p.ID {
		c.JSON(http.StatusForbidden, errorBody(CodeForbidden, "no puede ver reservas de otros usuarios"))
		return
	}
	h.respond(c, http.StatusOK)(h.svc.ListReservations(c.Request.Context(), c.DefaultQuery("class", "all"), patronID))
}

func (h *Handler) GetReservation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	res, err := h.svc.GetReservationDetail(c.Request.Context(), c.Param("id"))
	if err == nil && !p.IsStaff() && res.Patron.PatronID != p.ID {
		err = ErrForbidden("no puede ver reservas de otros usuarios")
	}
	h.respondOne(c, http.StatusOK, res, err)
}

func (h *Handler) Activate(c *gin.Context) {
	res, err := h.svc.ActivateReservation(c.Request.Context(), c.Param("id"))
	h.respondOne(c, http.StatusOK, res, err)
}

// POST /reservations/:id/cancel  admin/consultor 以外は自分の予約だけ
func (h *Handler) Cancel(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if !p.IsStaff() {
		cur, err := h.svc.GetLoanDetail(c.Request.Context(), id)
		if err != nil {
			c.JSON(ToHTTPStatus(err), errorFromErr(err))
			return
		}
		if cur.Patron.PatronID != p.ID {
			c.JSON(http.StatusForbidden, errorBody(CodeForbidden, "solo puede cancelar sus propias reservas"))
			return
		}
	}
	res, err := h.svc.CancelReservation(c.Request.Context(), id)
	h.respondOne(c, http.StatusOK, res, err)
}

// ---------- helpers ----------

func principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("UNAUTHENTICATED", "autenticación requerida"))
	}
	return p, ok
}

func (h *Handler) respond(c *gin.Context, status int) func(*LoanListResponse, error) {
	return func(res *LoanListResponse, err error) {
		if err != nil {
			c.JSON(ToHTTPStatus(err), errorFromErr(err))
			return
		}
		c.JSON(status, res)
	}
}

func (h *Handler) respondOne(c *gin.Context, status int, res *LoanResponse, err error) {
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(status, res)
}

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
