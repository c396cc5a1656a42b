package models

// AlertKind identifies which engine condition produced an alert.
type AlertKind string

const (
	AlertKindDueObligation  AlertKind = "due-obligation"
	AlertKindBudgetOverall  AlertKind = "budget-overall"
	AlertKindBudgetCategory AlertKind = "budget-category"
	AlertKindGoalReminder   AlertKind = "goal-reminder"
)

// Alert is the structured payload emitted to the alert sink. Formatting and
// delivery belong to the sink; the engine only records the numeric context a
// sink needs to deduplicate or render a message.
type Alert struct {
	Base
	UserID     string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Kind       AlertKind `gorm:"not null" json:"kind"`
	EntityID   string    `gorm:"type:uuid;not null" json:"entity_id"`
	EntityName string    `json:"entity_name"`
	Category   string    `json:"category,omitempty"`
	Message    string    `gorm:"not null" json:"message"`
	Amount     int64     `gorm:"type:bigint" json:"amount"`
	Limit      int64     `gorm:"column:limit_amount;type:bigint" json:"limit"`
	Percentage float64   `json:"percentage"`
}
