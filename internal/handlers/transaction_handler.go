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

// TransactionHandler handles ledger entry requests.
type TransactionHandler struct {
	ledgerService services.LedgerServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ledgerService services.LedgerServicer) *TransactionHandler {
	return &TransactionHandler{ledgerService: ledgerService}
}

// CreateTransactionRequest represents the request payload for creating a
// ledger entry.
type CreateTransactionRequest struct {
	CategoryID    *string                  `json:"category_id" binding:"omitempty,uuid"`
	CategoryName  string                   `json:"category_name" binding:"max=100"`
	Type          models.TransactionType   `json:"type" binding:"required,transaction_type"`
	Amount        int64                    `json:"amount" binding:"required,gt=0"`
	Description   string                   `json:"description" binding:"max=255"`
	Date          time.Time                `json:"date" binding:"required"`
	Status        models.TransactionStatus `json:"status" binding:"omitempty,transaction_status"`
	Source        string                   `json:"source" binding:"max=100"`
	PaymentMethod string                   `json:"payment_method" binding:"max=100"`
	Vendor        string                   `json:"vendor" binding:"max=100"`
	Tags          []string                 `json:"tags"`
}

// CreateTransaction handles recording a new ledger entry.
// @Summary     Create a transaction
// @Description Record a new ledger entry
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transaction, err := h.ledgerService.CreateTransaction(userID, services.LedgerEntry{
		CategoryID:    req.CategoryID,
		CategoryName:  req.CategoryName,
		Type:          req.Type,
		Amount:        req.Amount,
		Description:   req.Description,
		Date:          req.Date,
		Status:        req.Status,
		Source:        req.Source,
		PaymentMethod: req.PaymentMethod,
		Vendor:        req.Vendor,
		Tags:          req.Tags,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// GetTransactions handles listing ledger entries for the authenticated user.
// @Summary     Get transactions
// @Description Get a paginated list of ledger entries with optional filters, newest first
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       from_date  query string false "Earliest date (RFC 3339)"
// @Param       to_date    query string false "Latest date (RFC 3339)"
// @Param       type       query string false "Filter by type (income/expense)"
// @Param       status     query string false "Filter by status (completed/pending/cancelled)"
// @Param       category   query string false "Filter by category name"
// @Param       min_amount query int    false "Minimum amount in cents"
// @Param       max_amount query int    false "Maximum amount in cents"
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [get]
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
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

	var query struct {
		FromDate  *time.Time                `form:"from_date" time_format:"2006-01-02T15:04:05Z07:00"`
		ToDate    *time.Time                `form:"to_date" time_format:"2006-01-02T15:04:05Z07:00"`
		Type      *models.TransactionType   `form:"type" binding:"omitempty,transaction_type"`
		Status    *models.TransactionStatus `form:"status" binding:"omitempty,transaction_status"`
		Category  *string                   `form:"category"`
		MinAmount *int64                    `form:"min_amount" binding:"omitempty,gte=0"`
		MaxAmount *int64                    `form:"max_amount" binding:"omitempty,gte=0"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.ledgerService.GetUserTransactions(userID, page, services.TransactionFilter{
		FromDate:     query.FromDate,
		ToDate:       query.ToDate,
		Type:         query.Type,
		Status:       query.Status,
		CategoryName: query.Category,
		MinAmount:    query.MinAmount,
		MaxAmount:    query.MaxAmount,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTransaction handles retrieving a specific ledger entry.
// @Summary     Get transaction by ID
// @Description Get a specific ledger entry by ID
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction details"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.ledgerService.GetTransactionByID(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction handles deleting a ledger entry.
// @Summary     Delete transaction
// @Description Delete a ledger entry by ID (soft delete)
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.ledgerService.DeleteTransaction(userID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}
