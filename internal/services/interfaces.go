package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// LedgerFilter narrows which ledger entries a sum covers. Categories and
// ExcludeCategories are mutually exclusive in intent; when both are present
// the inclusive list wins.
type LedgerFilter struct {
	CategoryName      string
	Categories        []string
	ExcludeCategories []string
	Sources           []string
	Status            models.TransactionStatus
	ExcludeStatus     models.TransactionStatus
}

// LedgerEntry holds the fields for a new ledger entry.
type LedgerEntry struct {
	CategoryID    *string
	CategoryName  string
	Type          models.TransactionType
	Amount        int64
	Description   string
	Date          time.Time
	Status        models.TransactionStatus
	Source        string
	PaymentMethod string
	Vendor        string
	Tags          []string
	ObligationID  *string
}

// LedgerAccessor is the engine's view of the transaction ledger: summed
// aggregates for recalculation and entry creation for obligation processing.
// CreateEntry takes the caller's transaction handle so an obligation's ledger
// write commits atomically with its schedule advance.
type LedgerAccessor interface {
	SumMatching(userID string, kind models.TransactionType, filter LedgerFilter, from, to time.Time) (int64, error)
	CreateEntry(tx *gorm.DB, userID string, entry LedgerEntry) (string, error)
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate     *time.Time
	ToDate       *time.Time
	Type         *models.TransactionType
	Status       *models.TransactionStatus
	CategoryName *string
	MinAmount    *int64
	MaxAmount    *int64
}

// TransactionServicer defines the contract for ledger CRUD.
type TransactionServicer interface {
	CreateTransaction(userID string, entry LedgerEntry) (*models.Transaction, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
}

// LedgerServicer combines the engine-facing accessor with the transaction
// CRUD surface; both are served by the same GORM-backed implementation.
type LedgerServicer interface {
	LedgerAccessor
	TransactionServicer
}

// AlertSink receives structured alert payloads from the engine. Delivery and
// suppression policy belong to the sink; the engine only emits.
type AlertSink interface {
	Emit(alert *models.Alert) error
}

// AlertServicer exposes recorded alerts to callers.
type AlertServicer interface {
	AlertSink
	GetUserAlerts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Alert], error)
}

// ObligationInput holds the fields for creating a recurring obligation.
type ObligationInput struct {
	Name             string
	Kind             models.TransactionType
	Amount           int64
	CategoryID       *string
	CategoryName     string
	Tags             []string
	PaymentMethod    string
	Vendor           string
	Customer         string
	Frequency        models.Frequency
	StartDate        time.Time
	EndDate          *time.Time
	DayOfMonth       *int
	DayOfWeek        *int
	AutoProcess      bool
	NotifyBeforeDays int
}

// ObligationUpdate holds the mutable fields of an obligation. Nil pointers
// leave the current value untouched.
type ObligationUpdate struct {
	Name             string
	Amount           *int64
	CategoryID       *string
	CategoryName     *string
	Tags             []string
	PaymentMethod    *string
	Vendor           *string
	Customer         *string
	Frequency        *models.Frequency
	StartDate        *time.Time
	EndDate          *time.Time
	DayOfMonth       *int
	DayOfWeek        *int
	AutoProcess      *bool
	NotifyBeforeDays *int
}

// ProcessOutcome classifies the result of one processing attempt.
type ProcessOutcome string

const (
	// OutcomeProcessed means a ledger entry was created and the schedule advanced.
	OutcomeProcessed ProcessOutcome = "processed"
	// OutcomeFailed means the ledger write failed; the schedule was left
	// unadvanced so the obligation stays due and retries on the next pass.
	OutcomeFailed ProcessOutcome = "failed"
	// OutcomeSkippedNotDue means the obligation was not due at the evaluation
	// instant. No history is recorded.
	OutcomeSkippedNotDue ProcessOutcome = "skipped_not_due"
	// OutcomeSkippedConcurrent means a concurrent processor advanced the
	// schedule first. Benign; no history is recorded by the loser.
	OutcomeSkippedConcurrent ProcessOutcome = "skipped_concurrent"
	// OutcomeAwaitingConfirmation means the obligation is due but requires an
	// explicit process call; a due-obligation alert was emitted instead.
	OutcomeAwaitingConfirmation ProcessOutcome = "awaiting_confirmation"
)

// ProcessResult reports what one evaluation or processing attempt did.
type ProcessResult struct {
	ObligationID   string         `json:"obligation_id"`
	ObligationName string         `json:"obligation_name"`
	Outcome        ProcessOutcome `json:"outcome"`
	CreatedEntryID string         `json:"created_entry_id,omitempty"`
	NextDueDate    *time.Time     `json:"next_due_date,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// ObligationServicer defines the contract for the obligation scheduler.
type ObligationServicer interface {
	CreateObligation(userID string, input ObligationInput) (*models.RecurringObligation, error)
	GetUserObligations(userID string, page pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.RecurringObligation], error)
	GetObligationByID(userID, obligationID string) (*models.RecurringObligation, error)
	UpdateObligation(userID, obligationID string, update ObligationUpdate) (*models.RecurringObligation, error)
	DeleteObligation(userID, obligationID string) error
	Pause(userID, obligationID string) (*models.RecurringObligation, error)
	Resume(userID, obligationID string) (*models.RecurringObligation, error)
	EvaluateDue(ctx context.Context, userID string, now time.Time) ([]ProcessResult, error)
	Process(userID, obligationID string, now time.Time) (*ProcessResult, error)
	UpcomingReminders(userID string, now time.Time) ([]models.Alert, error)
}

// AllocationInput holds one category row of a budget definition. Derived
// usage fields are never part of the input.
type AllocationInput struct {
	CategoryID     *string
	CategoryName   string
	Limit          int64
	AlertThreshold *float64
}

// BudgetInput holds the fields for creating a budget.
type BudgetInput struct {
	Name           string
	Period         models.BudgetPeriod
	PeriodStart    time.Time
	PeriodEnd      *time.Time
	Currency       string
	TotalAmount    int64
	AlertsEnabled  bool
	AlertThreshold *float64
	Allocations    []AllocationInput
}

// BudgetServicer defines the contract for the budget threshold evaluator.
type BudgetServicer interface {
	CreateBudget(userID string, input BudgetInput) (*models.Budget, error)
	GetUserBudgets(userID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	UpdateBudget(userID, budgetID string, name string, totalAmount *int64, alertsEnabled *bool, alertThreshold *float64) (*models.Budget, error)
	DeleteBudget(userID, budgetID string) error
	Recalculate(userID, budgetID string, now time.Time) (*models.Budget, error)
	CheckAlerts(ctx context.Context, userID string, now time.Time) ([]models.Alert, error)
}

// MilestoneInput holds one sub-target of a goal definition.
type MilestoneInput struct {
	Name         string
	TargetAmount int64
	TargetDate   *time.Time
}

// GoalInput holds the fields for creating a goal.
type GoalInput struct {
	Name              string
	Type              models.GoalType
	TargetAmount      int64
	InitialAmount     int64
	Deadline          time.Time
	Priority          models.GoalPriority
	CategoryName      string
	AutoTrack         bool
	TrackCategories   []string
	ExcludeCategories []string
	TrackSources      []string
	Milestones        []MilestoneInput
}

// GoalServicer defines the contract for the goal progress tracker.
type GoalServicer interface {
	CreateGoal(userID string, input GoalInput) (*models.Goal, error)
	GetUserGoals(userID string, page pagination.PageRequest, status *models.GoalStatus) (*pagination.PageResponse[models.Goal], error)
	GetGoalByID(userID, goalID string) (*models.Goal, error)
	DeleteGoal(userID, goalID string) error
	PauseGoal(userID, goalID string) (*models.Goal, error)
	ResumeGoal(userID, goalID string) (*models.Goal, error)
	UpdateProgress(userID, goalID string, delta int64, description string, now time.Time) (*models.Goal, error)
	RecalculateAuto(userID, goalID string, now time.Time) (*models.Goal, error)
	GoalsNeedingAttention(userID string, now time.Time) ([]models.Goal, error)
	CheckGoalReminders(ctx context.Context, userID string, now time.Time) ([]models.Alert, error)
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name string, categoryType models.CategoryType, description, icon, color string) (*models.Category, error)
	GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID, name, description, icon, color string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
}
