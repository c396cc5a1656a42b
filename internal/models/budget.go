package models

import "time"

// BudgetPeriod represents the period kind for a budget.
type BudgetPeriod string

const (
	BudgetPeriodMonthly   BudgetPeriod = "monthly"
	BudgetPeriodQuarterly BudgetPeriod = "quarterly"
	BudgetPeriodYearly    BudgetPeriod = "yearly"
	BudgetPeriodCustom    BudgetPeriod = "custom"
)

// DefaultAlertThreshold is the percentage-of-limit boundary used when a
// budget or allocation does not carry its own.
const DefaultAlertThreshold = 80.0

// Budget is a period-scoped spending plan. TotalSpent, TotalRemaining and
// LastCalculatedAt are a cache written only by recalculation; they are never
// accepted as caller input.
type Budget struct {
	Base
	UserID         string       `gorm:"type:uuid;not null;index" json:"user_id"`
	Name           string       `gorm:"not null" json:"name"`
	Period         BudgetPeriod `gorm:"not null" json:"period"`
	PeriodStart    time.Time    `gorm:"not null" json:"period_start"`
	PeriodEnd      time.Time    `gorm:"not null" json:"period_end"`
	Currency       string       `gorm:"not null" json:"currency"`
	TotalAmount    int64        `gorm:"type:bigint;not null" json:"total_amount"`
	AlertsEnabled  bool         `gorm:"default:true" json:"alerts_enabled"`
	AlertThreshold float64      `gorm:"default:80" json:"alert_threshold"`
	IsActive       bool         `gorm:"default:true" json:"is_active"`

	// Derived by recalculation.
	TotalSpent       int64      `gorm:"type:bigint;default:0" json:"total_spent"`
	TotalRemaining   int64      `gorm:"type:bigint;default:0" json:"total_remaining"`
	LastCalculatedAt *time.Time `json:"last_calculated_at,omitempty"`

	Allocations []BudgetAllocation `gorm:"foreignKey:BudgetID" json:"allocations,omitempty"`
}

// InPeriod reports whether the given instant falls inside the budget window.
func (b *Budget) InPeriod(now time.Time) bool {
	return !now.Before(b.PeriodStart) && !now.After(b.PeriodEnd)
}

// OverThreshold reports whether overall spending has crossed the budget's
// alert threshold. Always false when alerts are disabled.
func (b *Budget) OverThreshold() bool {
	if !b.AlertsEnabled || b.TotalAmount <= 0 {
		return false
	}
	return float64(b.TotalSpent)/float64(b.TotalAmount)*100 >= b.AlertThreshold
}

// CategoriesOverThreshold returns the allocations whose usage has crossed
// their effective alert threshold.
func (b *Budget) CategoriesOverThreshold() []BudgetAllocation {
	var over []BudgetAllocation
	for _, allocation := range b.Allocations {
		if allocation.PercentageUsed >= allocation.EffectiveThreshold(b.AlertThreshold) {
			over = append(over, allocation)
		}
	}
	return over
}

// BudgetAllocation is one category's limit within a budget. Spent, Remaining
// and PercentageUsed are recalculation output only.
type BudgetAllocation struct {
	Base
	BudgetID       string   `gorm:"type:uuid;not null;index" json:"budget_id"`
	CategoryID     *string  `gorm:"type:uuid" json:"category_id,omitempty"`
	CategoryName   string   `gorm:"not null" json:"category_name"`
	Limit          int64    `gorm:"column:limit_amount;type:bigint;not null" json:"limit"`
	AlertThreshold *float64 `json:"alert_threshold,omitempty"`

	// Derived by recalculation.
	Spent          int64   `gorm:"type:bigint;default:0" json:"spent"`
	Remaining      int64   `gorm:"type:bigint;default:0" json:"remaining"`
	PercentageUsed float64 `gorm:"default:0" json:"percentage_used"`
}

// EffectiveThreshold returns the allocation's own alert threshold, falling
// back to the budget-level one.
func (a *BudgetAllocation) EffectiveThreshold(budgetThreshold float64) float64 {
	if a.AlertThreshold != nil {
		return *a.AlertThreshold
	}
	return budgetThreshold
}
