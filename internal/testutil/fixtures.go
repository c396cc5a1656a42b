package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    fmt.Sprintf("user%d@test.com", nextID()),
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Type:   categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction creates a completed ledger entry of the given type
// and amount (in cents) dated at the given time.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID string, txType models.TransactionType, categoryName string, amount int64, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:       userID,
		CategoryName: categoryName,
		Type:         txType,
		Amount:       amount,
		Date:         date,
		Status:       models.TransactionStatusCompleted,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestObligation creates an active monthly obligation anchored on the
// given day, first due at startDate.
func CreateTestObligation(t *testing.T, db *gorm.DB, userID string, startDate time.Time, dayOfMonth int, autoProcess bool) *models.RecurringObligation {
	t.Helper()

	obligation := &models.RecurringObligation{
		UserID:       userID,
		Name:         fmt.Sprintf("Test Obligation %d", nextID()),
		Kind:         models.TransactionTypeExpense,
		Amount:       5000, // $50.00
		CategoryName: "Bills",
		Frequency:    models.FrequencyMonthly,
		StartDate:    startDate,
		DayOfMonth:   &dayOfMonth,
		NextDueDate:  startDate,
		IsActive:     true,
		AutoProcess:  autoProcess,
	}
	if err := db.Create(obligation).Error; err != nil {
		t.Fatalf("failed to create test obligation: %v", err)
	}
	return obligation
}

// CreateTestBudget creates an active monthly budget with one allocation for
// the given category.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID string, periodStart time.Time, categoryName string, limit int64) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		UserID:         userID,
		Name:           fmt.Sprintf("Test Budget %d", nextID()),
		Period:         models.BudgetPeriodMonthly,
		PeriodStart:    periodStart,
		PeriodEnd:      periodStart.AddDate(0, 1, -1),
		Currency:       "USD",
		TotalAmount:    limit,
		AlertsEnabled:  true,
		AlertThreshold: models.DefaultAlertThreshold,
		IsActive:       true,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}

	allocation := &models.BudgetAllocation{
		BudgetID:     budget.ID,
		CategoryName: categoryName,
		Limit:        limit,
		Remaining:    limit,
	}
	if err := db.Create(allocation).Error; err != nil {
		t.Fatalf("failed to create test allocation: %v", err)
	}
	budget.Allocations = []models.BudgetAllocation{*allocation}
	return budget
}

// CreateTestGoal creates a savings goal with the given target (in cents).
func CreateTestGoal(t *testing.T, db *gorm.DB, userID string, targetAmount int64, deadline time.Time) *models.Goal {
	t.Helper()

	goal := &models.Goal{
		UserID:       userID,
		Name:         fmt.Sprintf("Test Goal %d", nextID()),
		Type:         models.GoalTypeSavings,
		TargetAmount: targetAmount,
		Deadline:     deadline,
		Priority:     models.GoalPriorityMedium,
		Status:       models.GoalStatusNotStarted,
	}
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}

// CreateTestMilestone adds a milestone to a goal.
func CreateTestMilestone(t *testing.T, db *gorm.DB, goalID string, name string, targetAmount int64) *models.GoalMilestone {
	t.Helper()

	milestone := &models.GoalMilestone{
		GoalID:       goalID,
		Name:         name,
		TargetAmount: targetAmount,
	}
	if err := db.Create(milestone).Error; err != nil {
		t.Fatalf("failed to create test milestone: %v", err)
	}
	return milestone
}
