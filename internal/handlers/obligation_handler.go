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

// ObligationHandler handles recurring obligation requests.
type ObligationHandler struct {
	obligationService services.ObligationServicer
}

// NewObligationHandler creates a new ObligationHandler.
func NewObligationHandler(obligationService services.ObligationServicer) *ObligationHandler {
	return &ObligationHandler{obligationService: obligationService}
}

// CreateObligationRequest represents the request payload for creating a
// recurring obligation.
type CreateObligationRequest struct {
	Name             string                 `json:"name" binding:"required,min=1,max=100"`
	Kind             models.TransactionType `json:"kind" binding:"required,transaction_type"`
	Amount           int64                  `json:"amount" binding:"required,gt=0"`
	CategoryID       *string                `json:"category_id" binding:"omitempty,uuid"`
	CategoryName     string                 `json:"category_name" binding:"max=100"`
	Tags             []string               `json:"tags"`
	PaymentMethod    string                 `json:"payment_method" binding:"max=100"`
	Vendor           string                 `json:"vendor" binding:"max=100"`
	Customer         string                 `json:"customer" binding:"max=100"`
	Frequency        models.Frequency       `json:"frequency" binding:"required,frequency"`
	StartDate        time.Time              `json:"start_date" binding:"required"`
	EndDate          *time.Time             `json:"end_date"`
	DayOfMonth       *int                   `json:"day_of_month" binding:"omitempty,min=1,max=31"`
	DayOfWeek        *int                   `json:"day_of_week" binding:"omitempty,min=0,max=6"`
	AutoProcess      bool                   `json:"auto_process"`
	NotifyBeforeDays int                    `json:"notify_before_days" binding:"omitempty,min=0,max=90"`
}

// UpdateObligationRequest represents the request payload for updating a
// recurring obligation. Absent fields are left unchanged.
type UpdateObligationRequest struct {
	Name             string            `json:"name" binding:"omitempty,min=1,max=100"`
	Amount           *int64            `json:"amount" binding:"omitempty,gt=0"`
	CategoryID       *string           `json:"category_id" binding:"omitempty,uuid"`
	CategoryName     *string           `json:"category_name" binding:"omitempty,max=100"`
	Tags             []string          `json:"tags"`
	PaymentMethod    *string           `json:"payment_method" binding:"omitempty,max=100"`
	Vendor           *string           `json:"vendor" binding:"omitempty,max=100"`
	Customer         *string           `json:"customer" binding:"omitempty,max=100"`
	Frequency        *models.Frequency `json:"frequency" binding:"omitempty,frequency"`
	StartDate        *time.Time        `json:"start_date"`
	EndDate          *time.Time        `json:"end_date"`
	DayOfMonth       *int              `json:"day_of_month" binding:"omitempty,min=1,max=31"`
	DayOfWeek        *int              `json:"day_of_week" binding:"omitempty,min=0,max=6"`
	AutoProcess      *bool             `json:"auto_process"`
	NotifyBeforeDays *int              `json:"notify_before_days" binding:"omitempty,min=0,max=90"`
}

// CreateObligation handles the creation of a new recurring obligation.
// @Summary     Create a recurring obligation
// @Description Create a recurring obligation with a schedule; the first due date is computed from the start date and anchors
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateObligationRequest true "Obligation details"
// @Success     201 {object} models.RecurringObligation "Obligation created"
// @Failure     400 {object} ErrorResponse "Invalid input or schedule"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations [post]
func (h *ObligationHandler) CreateObligation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateObligationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	obligation, err := h.obligationService.CreateObligation(userID, services.ObligationInput{
		Name:             req.Name,
		Kind:             req.Kind,
		Amount:           req.Amount,
		CategoryID:       req.CategoryID,
		CategoryName:     req.CategoryName,
		Tags:             req.Tags,
		PaymentMethod:    req.PaymentMethod,
		Vendor:           req.Vendor,
		Customer:         req.Customer,
		Frequency:        req.Frequency,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		DayOfMonth:       req.DayOfMonth,
		DayOfWeek:        req.DayOfWeek,
		AutoProcess:      req.AutoProcess,
		NotifyBeforeDays: req.NotifyBeforeDays,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"obligation": obligation})
}

// GetObligations handles listing obligations for the authenticated user.
// @Summary     Get obligations
// @Description Get a paginated list of recurring obligations ordered by next due date
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       is_active query bool false "Filter by active status"
// @Param       page      query int  false "Page number (default 1)"
// @Param       page_size query int  false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.RecurringObligation] "Paginated obligations"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations [get]
func (h *ObligationHandler) GetObligations(c *gin.Context) {
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

	result, err := h.obligationService.GetUserObligations(userID, page, isActive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetObligation handles retrieving a specific obligation.
// @Summary     Get obligation by ID
// @Description Get a specific recurring obligation with its execution history
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Success     200 {object} models.RecurringObligation "Obligation details"
// @Failure     400 {object} ErrorResponse "Invalid obligation ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/{id} [get]
func (h *ObligationHandler) GetObligation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligation, err := h.obligationService.GetObligationByID(userID, obligationID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"obligation": obligation})
}

// UpdateObligation handles updating an existing obligation.
// @Summary     Update obligation
// @Description Update an obligation's template or schedule; schedule changes recompute the next due date without revisiting processed occurrences
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Obligation ID"
// @Param       request body UpdateObligationRequest true "Updated obligation details"
// @Success     200 {object} models.RecurringObligation "Updated obligation"
// @Failure     400 {object} ErrorResponse "Invalid input or obligation ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/{id} [put]
func (h *ObligationHandler) UpdateObligation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateObligationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	obligation, err := h.obligationService.UpdateObligation(userID, obligationID, services.ObligationUpdate{
		Name:             req.Name,
		Amount:           req.Amount,
		CategoryID:       req.CategoryID,
		CategoryName:     req.CategoryName,
		Tags:             req.Tags,
		PaymentMethod:    req.PaymentMethod,
		Vendor:           req.Vendor,
		Customer:         req.Customer,
		Frequency:        req.Frequency,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		DayOfMonth:       req.DayOfMonth,
		DayOfWeek:        req.DayOfWeek,
		AutoProcess:      req.AutoProcess,
		NotifyBeforeDays: req.NotifyBeforeDays,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"obligation": obligation})
}

// DeleteObligation handles deleting an obligation.
// @Summary     Delete obligation
// @Description Delete an obligation by ID (soft delete); execution history is kept
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Success     200 {object} MessageResponse "Obligation deleted"
// @Failure     400 {object} ErrorResponse "Invalid obligation ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/{id} [delete]
func (h *ObligationHandler) DeleteObligation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.obligationService.DeleteObligation(userID, obligationID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Obligation deleted successfully"})
}

// PauseObligation handles pausing an obligation.
// @Summary     Pause obligation
// @Description Suspend an obligation's scheduling without touching its due date
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Success     200 {object} models.RecurringObligation "Paused obligation"
// @Failure     400 {object} ErrorResponse "Invalid obligation ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/{id}/pause [post]
func (h *ObligationHandler) PauseObligation(c *gin.Context) {
	h.setPaused(c, h.obligationService.Pause)
}

// ResumeObligation handles resuming a paused obligation.
// @Summary     Resume obligation
// @Description Resume a paused obligation; a past-due date makes it due on the next pass with no catch-up batch
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Success     200 {object} models.RecurringObligation "Resumed obligation"
// @Failure     400 {object} ErrorResponse "Invalid obligation ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/{id}/resume [post]
func (h *ObligationHandler) ResumeObligation(c *gin.Context) {
	h.setPaused(c, h.obligationService.Resume)
}

func (h *ObligationHandler) setPaused(c *gin.Context, op func(userID, obligationID string) (*models.RecurringObligation, error)) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligation, err := op(userID, obligationID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"obligation": obligation})
}

// ProcessObligation handles explicitly processing a single due obligation.
// @Summary     Process obligation
// @Description Process one due obligation now: create the ledger entry and advance the schedule
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true  "Obligation ID"
// @Param       as_of query string false "Evaluation instant (RFC 3339, default now)"
// @Success     200 {object} services.ProcessResult "Processing result"
// @Failure     400 {object} ErrorResponse "Invalid obligation ID or timestamp"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/{id}/process [post]
func (h *ObligationHandler) ProcessObligation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	asOf, err := parseAsOf(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.obligationService.Process(userID, obligationID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// EvaluateObligations handles running one evaluation pass over due obligations.
// @Summary     Evaluate due obligations
// @Description Run one evaluation pass: auto-processing obligations materialize ledger entries, manual ones get a due alert
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       as_of query string false "Evaluation instant (RFC 3339, default now)"
// @Success     200 {object} []services.ProcessResult "Per-obligation results"
// @Failure     400 {object} ErrorResponse "Invalid timestamp"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/evaluate [post]
func (h *ObligationHandler) EvaluateObligations(c *gin.Context) {
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

	results, err := h.obligationService.EvaluateDue(c.Request.Context(), userID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// GetUpcomingReminders handles listing obligations entering their notify window.
// @Summary     Get upcoming obligation reminders
// @Description Emit and return reminders for obligations coming due within their notify window
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       as_of query string false "Evaluation instant (RFC 3339, default now)"
// @Success     200 {object} []models.Alert "Emitted reminders"
// @Failure     400 {object} ErrorResponse "Invalid timestamp"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/reminders [get]
func (h *ObligationHandler) GetUpcomingReminders(c *gin.Context) {
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

	alerts, err := h.obligationService.UpcomingReminders(userID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reminders": alerts})
}
