package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microfinlabs/microfin-server/internal/models"
	"github.com/microfinlabs/microfin-server/internal/service"
)

// Handler holds the HTTP handlers for the API
type Handler struct {
	service service.Service
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{service: svc}
}

// SetupRoutes registers all API routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/register-organization", h.RegisterOrganization)
		auth.POST("/register-client", h.SignUpClient)
		auth.POST("/login", h.Login)
	}

	protected := router.Group("/api")
	protected.Use(AuthMiddleware())
	{
		protected.POST("/clients", h.CreateClient)
		protected.POST("/loan-products", h.CreateLoanProduct)

		protected.POST("/team/members", h.CreateTeamMember)
		protected.GET("/team/members", h.ListTeamMembers)

		protected.GET("/settings", h.GetTenantSettings)
		protected.PUT("/settings", h.UpdateTenantSettings)

		protected.POST("/loans/apply", h.ApplyForLoan)
		protected.GET("/loans", h.ListLoans)
		protected.GET("/loans/:id", h.GetLoan)
		protected.GET("/loans/:id/schedule", h.GetLoanSchedule)
		protected.POST("/loans/:id/approve", h.ApproveLoan)
		protected.POST("/loans/:id/reject", h.RejectLoan)
		protected.POST("/loans/:id/disburse", h.DisburseLoan)
		protected.POST("/loans/:id/penalties", h.ApplyLatePenalties)

		protected.POST("/repayments", h.RecordRepayment)
		protected.GET("/ledger/entries", h.ListLedgerEntries)
	}
}

func (h *Handler) RegisterOrganization(c *gin.Context) {
	var req models.RegisterOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.service.RegisterOrganization(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) SignUpClient(c *gin.Context) {
	var req models.ClientSignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.service.SignUpClient(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		// Invalid credentials read as unauthorized, not 400; anything
		// else is a server-side failure and maps as usual.
		var validationErr *service.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    "UNAUTHORIZED",
				Message: "Invalid email or password",
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreateClient(c *gin.Context) {
	var req models.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	client, err := h.service.CreateClient(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *Handler) CreateLoanProduct(c *gin.Context) {
	var req models.CreateLoanProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product, err := h.service.CreateLoanProduct(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) CreateTeamMember(c *gin.Context) {
	var req models.CreateTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	member, err := h.service.CreateTeamMember(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (h *Handler) ListTeamMembers(c *gin.Context) {
	members, err := h.service.ListTeamMembers(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TeamMembersResponse{Status: "success", Members: members})
}

func (h *Handler) GetTenantSettings(c *gin.Context) {
	settings, err := h.service.GetTenantSettings(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TenantSettingsResponse{Status: "success", Settings: settings})
}

func (h *Handler) UpdateTenantSettings(c *gin.Context) {
	var req models.UpdateTenantSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	settings, err := h.service.UpdateTenantSettings(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TenantSettingsResponse{Status: "success", Settings: settings})
}

func (h *Handler) ApplyForLoan(c *gin.Context) {
	var req models.LoanApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	loan, err := h.service.ApplyForLoan(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.LoanResponse{Status: "success", Loan: loan})
}

func (h *Handler) GetLoan(c *gin.Context) {
	loan, err := h.service.GetLoan(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.LoanResponse{Status: "success", Loan: loan})
}

func (h *Handler) ListLoans(c *gin.Context) {
	loans, err := h.service.ListLoans(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.LoanListResponse{Status: "success", Loans: loans})
}

func (h *Handler) GetLoanSchedule(c *gin.Context) {
	schedule, err := h.service.GetLoanSchedule(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ScheduleResponse{
		Status:   "success",
		LoanID:   c.Param("id"),
		Schedule: schedule,
	})
}

func (h *Handler) ApproveLoan(c *gin.Context) {
	loan, err := h.service.ApproveLoan(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.LoanResponse{Status: "success", Loan: loan})
}

func (h *Handler) RejectLoan(c *gin.Context) {
	loan, err := h.service.RejectLoan(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.LoanResponse{Status: "success", Loan: loan})
}

func (h *Handler) DisburseLoan(c *gin.Context) {
	loan, err := h.service.DisburseLoan(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.LoanResponse{Status: "success", Loan: loan})
}

func (h *Handler) ApplyLatePenalties(c *gin.Context) {
	flagged, err := h.service.ApplyLatePenalties(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PenaltySweepResponse{
		Status:       "success",
		LoanID:       c.Param("id"),
		LinesFlagged: flagged,
	})
}

func (h *Handler) RecordRepayment(c *gin.Context) {
	var req models.RecordRepaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	txn, err := h.service.RecordRepayment(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.RepaymentResponse{Status: "success", Transaction: txn})
}

func (h *Handler) ListLedgerEntries(c *gin.Context) {
	entries, err := h.service.ListLedgerEntries(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.LedgerEntriesResponse{Status: "success", Entries: entries})
}

// userID returns the authenticated user id set by AuthMiddleware.
func userID(c *gin.Context) string {
	return c.GetString("userId")
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "VALIDATION_ERROR",
		Message: err.Error(),
	})
}

// respondError maps the service error taxonomy to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var forbiddenErr *service.ForbiddenError
	var notFoundErr *service.NotFoundError
	var conflictErr *service.ConflictError
	var configErr *service.ConfigError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "VALIDATION_ERROR",
			Message: validationErr.Message,
		})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Status:  "error",
			Code:    "FORBIDDEN",
			Message: forbiddenErr.Message,
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "NOT_FOUND",
			Message: notFoundErr.Error(),
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:       "error",
			Code:         "CONFLICT",
			Message:      conflictErr.Message,
			CurrentState: conflictErr.CurrentState,
		})
	case errors.As(err, &configErr):
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:  "error",
			Code:    "MISCONFIGURATION",
			Message: configErr.Message,
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:  "error",
			Code:    "INTERNAL_ERROR",
			Message: "An unexpected error occurred",
		})
	}
}
