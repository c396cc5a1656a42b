package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// budgetService implements the budget threshold evaluator.
type budgetService struct {
	db     *gorm.DB
	ledger LedgerAccessor
	alerts AlertSink
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, ledger LedgerAccessor, alerts AlertSink) BudgetServicer {
	return &budgetService{db: db, ledger: ledger, alerts: alerts}
}

// CreateBudget creates a budget with its initial allocation set. For the
// named period kinds the period end is derived from the start; custom
// budgets must provide an explicit end.
func (s *budgetService) CreateBudget(userID string, input BudgetInput) (*models.Budget, error) {
	periodEnd, err := resolvePeriodEnd(input.Period, input.PeriodStart, input.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if input.TotalAmount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Total amount must be positive")
	}
	if len(input.Allocations) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "At least one allocation is required")
	}
	for _, allocation := range input.Allocations {
		if allocation.Limit <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Allocation limits must be positive")
		}
	}

	threshold := models.DefaultAlertThreshold
	if input.AlertThreshold != nil {
		threshold = *input.AlertThreshold
	}

	budget := &models.Budget{
		UserID:         userID,
		Name:           input.Name,
		Period:         input.Period,
		PeriodStart:    input.PeriodStart,
		PeriodEnd:      periodEnd,
		Currency:       input.Currency,
		TotalAmount:    input.TotalAmount,
		AlertsEnabled:  input.AlertsEnabled,
		AlertThreshold: threshold,
		IsActive:       true,
		TotalRemaining: input.TotalAmount,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(budget).Error; err != nil {
			return err
		}
		for _, allocation := range input.Allocations {
			row := models.BudgetAllocation{
				BudgetID:       budget.ID,
				CategoryID:     allocation.CategoryID,
				CategoryName:   allocation.CategoryName,
				Limit:          allocation.Limit,
				AlertThreshold: allocation.AlertThreshold,
				Remaining:      allocation.Limit,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return s.GetBudgetByID(userID, budget.ID)
}

// GetUserBudgets returns a paginated list of budgets with optional filters.
func (s *budgetService) GetUserBudgets(userID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	base := s.db.Model(&models.Budget{}).Where("user_id = ?", userID)
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}
	if period != nil {
		base = base.Where("period = ?", *period)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.Budget
	if err := base.Preload("Allocations").Scopes(pagination.Paginate(page)).Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetBudgetByID returns a budget with its allocations if it belongs to the user.
func (s *budgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	var budget models.Budget
	err := s.db.Preload("Allocations", func(db *gorm.DB) *gorm.DB {
		return db.Order("category_name")
	}).Where("id = ? AND user_id = ?", budgetID, userID).First(&budget).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// UpdateBudget updates a budget's mutable definition fields. Derived usage
// fields are recalculation output and cannot be written here.
func (s *budgetService) UpdateBudget(userID, budgetID string, name string, totalAmount *int64, alertsEnabled *bool, alertThreshold *float64) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != "" {
		updates["name"] = name
	}
	if totalAmount != nil {
		if *totalAmount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Total amount must be positive")
		}
		updates["total_amount"] = *totalAmount
	}
	if alertsEnabled != nil {
		updates["alerts_enabled"] = *alertsEnabled
	}
	if alertThreshold != nil {
		updates["alert_threshold"] = *alertThreshold
	}

	if len(updates) > 0 {
		if err := s.db.Model(budget).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetBudgetByID(userID, budgetID)
}

// DeleteBudget soft-deletes a budget.
func (s *budgetService) DeleteBudget(userID, budgetID string) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(budget).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// Recalculate recomputes every allocation's usage from the ledger for the
// budget period. This is always a full recompute, never an incremental delta,
// so repeated and concurrent calls converge on the same values. On ledger
// failure the previously cached derived values are left intact.
func (s *budgetService) Recalculate(userID, budgetID string, now time.Time) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	type allocationUsage struct {
		id             string
		spent          int64
		remaining      int64
		percentageUsed float64
	}

	usages := make([]allocationUsage, 0, len(budget.Allocations))
	var totalSpent int64
	for _, allocation := range budget.Allocations {
		spent, err := s.ledger.SumMatching(userID, models.TransactionTypeExpense, LedgerFilter{
			CategoryName:  allocation.CategoryName,
			ExcludeStatus: models.TransactionStatusCancelled,
		}, budget.PeriodStart, budget.PeriodEnd)
		if err != nil {
			return nil, err
		}

		remaining := allocation.Limit - spent
		if remaining < 0 {
			remaining = 0
		}
		var percentage float64
		if allocation.Limit > 0 {
			percentage = round2(float64(spent) / float64(allocation.Limit) * 100)
		}
		usages = append(usages, allocationUsage{
			id:             allocation.ID,
			spent:          spent,
			remaining:      remaining,
			percentageUsed: percentage,
		})
		totalSpent += spent
	}

	totalRemaining := budget.TotalAmount - totalSpent
	if totalRemaining < 0 {
		totalRemaining = 0
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, usage := range usages {
			err := tx.Model(&models.BudgetAllocation{}).Where("id = ?", usage.id).Updates(map[string]interface{}{
				"spent":           usage.spent,
				"remaining":       usage.remaining,
				"percentage_used": usage.percentageUsed,
			}).Error
			if err != nil {
				return err
			}
		}
		return tx.Model(budget).Updates(map[string]interface{}{
			"total_spent":        totalSpent,
			"total_remaining":    totalRemaining,
			"last_calculated_at": now,
		}).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return s.GetBudgetByID(userID, budgetID)
}

// CheckAlerts recalculates every active in-period budget for the user and
// emits one alert per over-threshold condition, overall and per category.
// No deduplication happens here: repeated calls emit repeat alerts, and
// suppression policy belongs to the sink.
func (s *budgetService) CheckAlerts(ctx context.Context, userID string, now time.Time) ([]models.Alert, error) {
	var budgets []models.Budget
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("period_start <= ? AND period_end >= ?", now, now).
		Find(&budgets).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	alerts := make([]models.Alert, 0)
	for i := range budgets {
		if ctx.Err() != nil {
			break
		}

		budget, err := s.Recalculate(userID, budgets[i].ID, now)
		if err != nil {
			// One budget's recalculation failure must not abort the pass.
			logger.Get().Errorw("budget recalculation failed during alert check",
				"budget_id", budgets[i].ID, "error", err.Error())
			continue
		}

		if budget.OverThreshold() {
			percentage := round2(float64(budget.TotalSpent) / float64(budget.TotalAmount) * 100)
			alerts = s.emitBudgetAlert(alerts, models.Alert{
				UserID:     userID,
				Kind:       models.AlertKindBudgetOverall,
				EntityID:   budget.ID,
				EntityName: budget.Name,
				Message:    fmt.Sprintf("Budget %s has used %.2f%% of its total", budget.Name, percentage),
				Amount:     budget.TotalSpent,
				Limit:      budget.TotalAmount,
				Percentage: percentage,
			})
		}

		if !budget.AlertsEnabled {
			continue
		}
		for _, allocation := range budget.CategoriesOverThreshold() {
			alerts = s.emitBudgetAlert(alerts, models.Alert{
				UserID:     userID,
				Kind:       models.AlertKindBudgetCategory,
				EntityID:   budget.ID,
				EntityName: budget.Name,
				Category:   allocation.CategoryName,
				Message:    fmt.Sprintf("Category %s has used %.2f%% of its limit in budget %s", allocation.CategoryName, allocation.PercentageUsed, budget.Name),
				Amount:     allocation.Spent,
				Limit:      allocation.Limit,
				Percentage: allocation.PercentageUsed,
			})
		}
	}
	return alerts, nil
}

func (s *budgetService) emitBudgetAlert(alerts []models.Alert, alert models.Alert) []models.Alert {
	if err := s.alerts.Emit(&alert); err != nil {
		logger.Get().Warnw("alert emission failed",
			"budget_id", alert.EntityID, "error", err.Error())
		return alerts
	}
	return append(alerts, alert)
}

// resolvePeriodEnd derives the period end for named period kinds; custom
// periods require an explicit end after the start.
func resolvePeriodEnd(period models.BudgetPeriod, start time.Time, explicit *time.Time) (time.Time, error) {
	switch period {
	case models.BudgetPeriodMonthly:
		return endOfDay(start.AddDate(0, 1, -1)), nil
	case models.BudgetPeriodQuarterly:
		return endOfDay(start.AddDate(0, 3, -1)), nil
	case models.BudgetPeriodYearly:
		return endOfDay(start.AddDate(1, 0, -1)), nil
	case models.BudgetPeriodCustom:
		if explicit == nil {
			return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidPeriod, "Custom budgets require an explicit period end")
		}
		if explicit.Before(start) {
			return time.Time{}, apperrors.ErrInvalidPeriod
		}
		return *explicit, nil
	}
	return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown budget period")
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
