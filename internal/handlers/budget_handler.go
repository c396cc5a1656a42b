package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService}
}

// AllocationRequest represents one category allocation inside a budget payload.
type AllocationRequest struct {
	CategoryID     *string  `json:"category_id" binding:"omitempty,uuid"`
	CategoryName   string   `json:"category_name" binding:"required,min=1,max=100"`
	Limit          int64    `json:"limit" binding:"required,gt=0"`
	AlertThreshold *float64 `json:"alert_threshold" binding:"omitempty,gt=0,lte=200"`
}

// CreateBudgetRequest represents the request payload for creating a budget.
type CreateBudgetRequest struct {
	Name           string              `json:"name" binding:"required,min=1,max=100"`
	Period         models.BudgetPeriod `json:"period" binding:"required,budget_period"`
	PeriodStart    time.Time           `json:"period_start" binding:"required"`
	PeriodEnd      *time.Time          `json:"period_end"`
	Currency       string              `json:"currency" binding:"required,iso4217"`
	TotalAmount    int64               `json:"total_amount" binding:"required,gt=0"`
	AlertsEnabled  *bool               `json:"alerts_enabled"`
	AlertThreshold *float64            `json:"alert_threshold" binding:"omitempty,gt=0,lte=200"`
	Allocations    []AllocationRequest `json:"allocations" binding:"required,min=1,dive"`
}

// UpdateBudgetRequest represents the request payload for updating a budget.
// Derived usage fields are recalculation output and cannot be set here.
type UpdateBudgetRequest struct {
	Name           string   `json:"name" binding:"omitempty,min=1,max=100"`
	TotalAmount    *int64   `json:"total_amount" binding:"omitempty,gt=0"`
	AlertsEnabled  *bool    `json:"alerts_enabled"`
	AlertThreshold *float64 `json:"alert_threshold" binding:"omitempty,gt=0,lte=200"`
}

// CreateBudget handles the creation of a new budget.
// @Summary     Create a budget
// @Description Create a budget with per-category allocations; named periods derive their end from the start
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} models.Budget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input or period"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	allocations := make([]services.AllocationInput, 0, len(req.Allocations))
	for _, allocation := range req.Allocations {
		allocations = append(allocations, services.AllocationInput{
			CategoryID:     allocation.CategoryID,
			CategoryName:   allocation.CategoryName,
			Limit:          allocation.Limit,
			AlertThreshold: allocation.AlertThreshold,
		})
	}

	alertsEnabled := true
	if req.AlertsEnabled != nil {
		alertsEnabled = *req.AlertsEnabled
	}

	budget, err := h.budgetService.CreateBudget(userID, services.BudgetInput{
		Name:           req.Name,
		Period:         req.Period,
		PeriodStart:    req.PeriodStart,
		PeriodEnd:      req.PeriodEnd,
		Currency:       req.Currency,
		TotalAmount:    req.TotalAmount,
		AlertsEnabled:  alertsEnabled,
		AlertThreshold: req.AlertThreshold,
		Allocations:    allocations,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// GetBudgets handles listing budgets for the authenticated user.
// @Summary     Get budgets
// @Description Get a paginated list of budgets for the authenticated user
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       is_active query bool   false "Filter by active status"
// @Param       period    query string false "Filter by period (monthly/quarterly/yearly/custom)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Budget] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [get]
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	isActive, err := parseBoolQuery(c, "is_active")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var period *models.BudgetPeriod
	if v := c.Query("period"); v != "" {
		p := models.BudgetPeriod(v)
		switch p {
		case models.BudgetPeriodMonthly, models.BudgetPeriodQuarterly,
			models.BudgetPeriodYearly, models.BudgetPeriodCustom:
			period = &p
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be 'monthly', 'quarterly', 'yearly' or 'custom'"))
			return
		}
	}

	result, err := h.budgetService.GetUserBudgets(userID, page, isActive, period)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBudget handles retrieving a specific budget.
// @Summary     Get budget by ID
// @Description Get a specific budget with its allocations
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} models.Budget "Budget details"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.GetBudgetByID(userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// UpdateBudget handles updating an existing budget.
// @Summary     Update budget
// @Description Update a budget's definition fields
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Budget ID"
// @Param       request body UpdateBudgetRequest true "Updated budget details"
// @Success     200 {object} models.Budget "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input or budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [put]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	budget, err := h.budgetService.UpdateBudget(userID, budgetID, req.Name, req.TotalAmount, req.AlertsEnabled, req.AlertThreshold)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// DeleteBudget handles deleting a budget.
// @Summary     Delete budget
// @Description Delete a budget by ID (soft delete)
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} MessageResponse "Budget deleted"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [delete]
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeleteBudget(userID, budgetID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Budget deleted successfully"})
}

// RecalculateBudget handles recomputing a budget's usage from the ledger.
// @Summary     Recalculate budget
// @Description Recompute every allocation's spend, remaining and percentage from the ledger for the budget period
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true  "Budget ID"
// @Param       as_of query string false "Evaluation instant (RFC 3339, default now)"
// @Success     200 {object} models.Budget "Recalculated budget"
// @Failure     400 {object} ErrorResponse "Invalid budget ID or timestamp"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/recalculate [post]
func (h *BudgetHandler) RecalculateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	asOf, err := parseAsOf(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.Recalculate(userID, budgetID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// CheckBudgetAlerts handles evaluating all active budgets for threshold alerts.
// @Summary     Check budget alerts
// @Description Recalculate all active in-period budgets and emit alerts for every over-threshold condition
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       as_of query string false "Evaluation instant (RFC 3339, default now)"
// @Success     200 {object} []models.Alert "Emitted alerts"
// @Failure     400 {object} ErrorResponse "Invalid timestamp"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/alerts [get]
func (h *BudgetHandler) CheckBudgetAlerts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	asOf, err := parseAsOf(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	alerts, err := h.budgetService.CheckAlerts(c.Request.Context(), userID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}
