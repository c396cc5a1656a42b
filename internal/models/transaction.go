package models

import "time"

// TransactionType represents the kind of ledger entry.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// TransactionStatus represents the settlement state of a ledger entry.
// Cancelled entries are excluded from every aggregate the engine computes.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// SystemGeneratedTag marks ledger entries materialized by the obligation
// scheduler rather than entered by a user.
const SystemGeneratedTag = "system-generated"

// Transaction represents one entry in the ledger. CategoryName is stored
// denormalized because budgets and goal tracking rules filter by name.
type Transaction struct {
	Base
	UserID        string            `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID    *string           `gorm:"type:uuid" json:"category_id,omitempty"`
	CategoryName  string            `gorm:"index" json:"category_name"`
	Type          TransactionType   `gorm:"not null" json:"type"`
	Amount        int64             `gorm:"type:bigint;not null" json:"amount"`
	Description   string            `json:"description"`
	Date          time.Time         `gorm:"not null;index" json:"date"`
	Status        TransactionStatus `gorm:"not null;default:completed" json:"status"`
	Source        string            `json:"source"`
	PaymentMethod string            `json:"payment_method"`
	Vendor        string            `json:"vendor"`
	Tags          string            `json:"tags"`

	// Set when the entry was materialized from a recurring obligation.
	ObligationID *string `gorm:"type:uuid;index" json:"obligation_id,omitempty"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// TagList returns the entry's tags as a slice.
func (t *Transaction) TagList() []string {
	return SplitList(t.Tags)
}
