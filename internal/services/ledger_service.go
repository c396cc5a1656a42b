package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// ledgerService is the GORM-backed ledger accessor plus the thin transaction
// CRUD surface. The engine only ever consumes it through the LedgerAccessor
// interface.
type ledgerService struct {
	db *gorm.DB
}

// NewLedgerService creates the ledger accessor and transaction service.
func NewLedgerService(db *gorm.DB) LedgerServicer {
	return &ledgerService{db: db}
}

// SumMatching returns the sum of entry amounts matching the filter within the
// date range. Zero time bounds leave that side of the range open.
func (s *ledgerService) SumMatching(userID string, kind models.TransactionType, filter LedgerFilter, from, to time.Time) (int64, error) {
	q := s.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ?", userID, kind)

	if filter.CategoryName != "" {
		q = q.Where("category_name = ?", filter.CategoryName)
	}
	// Inclusive category list takes precedence over the exclusion list.
	if len(filter.Categories) > 0 {
		q = q.Where("category_name IN ?", filter.Categories)
	} else if len(filter.ExcludeCategories) > 0 {
		q = q.Where("category_name NOT IN ?", filter.ExcludeCategories)
	}
	if len(filter.Sources) > 0 {
		q = q.Where("source IN ?", filter.Sources)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ExcludeStatus != "" {
		q = q.Where("status <> ?", filter.ExcludeStatus)
	}
	if !from.IsZero() {
		q = q.Where("date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", to)
	}

	var sum int64
	if err := q.Scan(&sum).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return sum, nil
}

// CreateEntry writes a ledger entry using the given transaction handle so the
// caller controls atomicity.
func (s *ledgerService) CreateEntry(tx *gorm.DB, userID string, entry LedgerEntry) (string, error) {
	status := entry.Status
	if status == "" {
		status = models.TransactionStatusCompleted
	}

	record := &models.Transaction{
		UserID:        userID,
		CategoryID:    entry.CategoryID,
		CategoryName:  entry.CategoryName,
		Type:          entry.Type,
		Amount:        entry.Amount,
		Description:   entry.Description,
		Date:          entry.Date,
		Status:        status,
		Source:        entry.Source,
		PaymentMethod: entry.PaymentMethod,
		Vendor:        entry.Vendor,
		Tags:          models.JoinList(entry.Tags),
		ObligationID:  entry.ObligationID,
	}
	if err := tx.Create(record).Error; err != nil {
		return "", err
	}
	return record.ID, nil
}

// CreateTransaction records a user-entered ledger entry.
func (s *ledgerService) CreateTransaction(userID string, entry LedgerEntry) (*models.Transaction, error) {
	if entry.CategoryID != nil {
		var category models.Category
		if err := s.db.Where("id = ? AND user_id = ?", *entry.CategoryID, userID).First(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrCategoryNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if entry.CategoryName == "" {
			entry.CategoryName = category.Name
		}
	}

	var created *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		id, err := s.CreateEntry(tx, userID, entry)
		if err != nil {
			return err
		}
		return tx.First(&created, "id = ?", id).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return created, nil
}

// GetUserTransactions returns a paginated list of the user's ledger entries
// with optional filters.
func (s *ledgerService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	if filter.FromDate != nil {
		base = base.Where("date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		base = base.Where("date <= ?", *filter.ToDate)
	}
	if filter.Type != nil {
		base = base.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		base = base.Where("status = ?", *filter.Status)
	}
	if filter.CategoryName != nil {
		base = base.Where("category_name = ?", *filter.CategoryName)
	}
	if filter.MinAmount != nil {
		base = base.Where("amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		base = base.Where("amount <= ?", *filter.MaxAmount)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Order("date DESC").Scopes(pagination.Paginate(page)).Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetTransactionByID returns a ledger entry if it belongs to the user.
func (s *ledgerService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// DeleteTransaction soft-deletes a ledger entry.
func (s *ledgerService) DeleteTransaction(userID, transactionID string) error {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(transaction).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
