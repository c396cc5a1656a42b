package models

import "time"

// Frequency represents how often a recurring obligation comes due.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiWeekly  Frequency = "bi-weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// ExecutionOutcome records how one processing attempt ended.
type ExecutionOutcome string

const (
	ExecutionOutcomeSuccess ExecutionOutcome = "success"
	ExecutionOutcomeFailed  ExecutionOutcome = "failed"
	ExecutionOutcomeSkipped ExecutionOutcome = "skipped"
)

// RecurringObligation is a recurring income/expense template plus its
// schedule state. NextDueDate only ever moves forward: it is computed once at
// creation and afterwards advanced exclusively by successful processing.
type RecurringObligation struct {
	Base
	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`

	// Template fields mirrored into the ledger entry on processing.
	Name          string          `gorm:"not null" json:"name"`
	Kind          TransactionType `gorm:"not null" json:"kind"`
	Amount        int64           `gorm:"type:bigint;not null" json:"amount"`
	CategoryID    *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	CategoryName  string          `json:"category_name"`
	Tags          string          `json:"tags"`
	PaymentMethod string          `json:"payment_method"`
	Vendor        string          `json:"vendor"`
	Customer      string          `json:"customer"`

	// Schedule.
	Frequency  Frequency  `gorm:"not null" json:"frequency"`
	StartDate  time.Time  `gorm:"not null" json:"start_date"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	DayOfMonth *int       `json:"day_of_month,omitempty"`
	DayOfWeek  *int       `json:"day_of_week,omitempty"`

	// Runtime state.
	NextDueDate       time.Time  `gorm:"not null;index" json:"next_due_date"`
	LastProcessedDate *time.Time `json:"last_processed_date,omitempty"`
	IsActive          bool       `gorm:"default:true" json:"is_active"`
	IsPaused          bool       `gorm:"default:false" json:"is_paused"`
	AutoProcess       bool       `gorm:"default:false" json:"auto_process"`
	NotifyBeforeDays  int        `gorm:"default:0" json:"notify_before_days"`

	// Append-only, ordered by date.
	ExecutionHistory []ObligationExecution `gorm:"foreignKey:ObligationID" json:"execution_history,omitempty"`
}

// IsDueAt reports whether the obligation should be processed at the given
// instant. Inactive and paused obligations are never due, and an obligation
// past its end date stops being due even if processing never deactivated it.
func (o *RecurringObligation) IsDueAt(now time.Time) bool {
	if !o.IsActive || o.IsPaused {
		return false
	}
	if o.NextDueDate.After(now) {
		return false
	}
	if o.EndDate != nil && o.EndDate.Before(now) {
		return false
	}
	return true
}

// ObligationExecution is one row of an obligation's append-only execution
// history.
type ObligationExecution struct {
	Base
	ObligationID   string           `gorm:"type:uuid;not null;index" json:"obligation_id"`
	Date           time.Time        `gorm:"not null" json:"date"`
	Outcome        ExecutionOutcome `gorm:"not null" json:"outcome"`
	CreatedEntryID *string          `gorm:"type:uuid" json:"created_entry_id,omitempty"`
	Error          string           `json:"error,omitempty"`
}
