package models

import "time"

// GoalType represents what a goal measures.
type GoalType string

const (
	GoalTypeSavings          GoalType = "savings"
	GoalTypeInvestment       GoalType = "investment"
	GoalTypeDebtPayoff       GoalType = "debt_payoff"
	GoalTypeRevenue          GoalType = "revenue"
	GoalTypeExpenseReduction GoalType = "expense_reduction"
	GoalTypeEmergencyFund    GoalType = "emergency_fund"
	GoalTypeCustom           GoalType = "custom"
)

// GoalPriority represents how urgent a goal is.
type GoalPriority string

const (
	GoalPriorityLow      GoalPriority = "low"
	GoalPriorityMedium   GoalPriority = "medium"
	GoalPriorityHigh     GoalPriority = "high"
	GoalPriorityCritical GoalPriority = "critical"
)

// GoalStatus represents a goal's lifecycle state. Except for explicit
// pause/resume it is a pure function of progress against the target.
type GoalStatus string

const (
	GoalStatusNotStarted GoalStatus = "not_started"
	GoalStatusInProgress GoalStatus = "in_progress"
	GoalStatusCompleted  GoalStatus = "completed"
	GoalStatusPaused     GoalStatus = "paused"
	GoalStatusFailed     GoalStatus = "failed"
)

// Goal is a financial target with a deadline. When AutoTrack is set,
// CurrentAmount derives from ledger aggregation under the tracking rules
// instead of manual adjustments.
type Goal struct {
	Base
	UserID        string       `gorm:"type:uuid;not null;index" json:"user_id"`
	Name          string       `gorm:"not null" json:"name"`
	Type          GoalType     `gorm:"not null" json:"type"`
	TargetAmount  int64        `gorm:"type:bigint;not null" json:"target_amount"`
	CurrentAmount int64        `gorm:"type:bigint;default:0" json:"current_amount"`
	Deadline      time.Time    `gorm:"not null" json:"deadline"`
	Priority      GoalPriority `gorm:"default:medium" json:"priority"`
	Status        GoalStatus   `gorm:"default:not_started" json:"status"`
	CompletedDate *time.Time   `json:"completed_date,omitempty"`
	CategoryName  string       `json:"category_name"`

	// Auto-tracking rules, comma-joined lists.
	AutoTrack          bool   `gorm:"default:false" json:"auto_track"`
	TrackCategories    string `json:"track_categories"`
	ExcludeCategories  string `json:"exclude_categories"`
	TrackSources       string `json:"track_sources"`

	Milestones []GoalMilestone `gorm:"foreignKey:GoalID" json:"milestones,omitempty"`
}

// ProgressPercentage returns how far along the goal is, uncapped.
func (g *Goal) ProgressPercentage() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	return float64(g.CurrentAmount) / float64(g.TargetAmount) * 100
}

// NeedsAttention reports whether the goal should trigger a reminder: it is
// overdue, or actual progress trails the schedule-expected progress by more
// than 20 percentage points, or a high-priority goal is under half done with
// under 30 days left. Advisory only; never mutates state.
func (g *Goal) NeedsAttention(now time.Time) bool {
	if g.Status == GoalStatusCompleted {
		return false
	}
	if now.After(g.Deadline) {
		return true
	}

	totalDays := g.Deadline.Sub(g.CreatedAt).Hours() / 24
	if totalDays > 0 {
		daysElapsed := now.Sub(g.CreatedAt).Hours() / 24
		expected := daysElapsed / totalDays * 100
		if expected-g.ProgressPercentage() > 20 {
			return true
		}
	}

	if (g.Priority == GoalPriorityHigh || g.Priority == GoalPriorityCritical) &&
		g.ProgressPercentage() < 50 &&
		g.Deadline.Sub(now) < 30*24*time.Hour {
		return true
	}
	return false
}

// LedgerKind returns which kind of ledger entry feeds this goal when
// auto-tracking: expenses for expense reduction, income for everything else.
func (g *Goal) LedgerKind() TransactionType {
	if g.Type == GoalTypeExpenseReduction {
		return TransactionTypeExpense
	}
	return TransactionTypeIncome
}

// GoalMilestone is a sub-target within a goal. Completion is a one-way
// latch: once cumulative progress reaches TargetAmount the milestone stays
// completed even if progress later drops below it.
type GoalMilestone struct {
	Base
	GoalID        string     `gorm:"type:uuid;not null;index" json:"goal_id"`
	Name          string     `gorm:"not null" json:"name"`
	TargetAmount  int64      `gorm:"type:bigint;not null" json:"target_amount"`
	TargetDate    *time.Time `json:"target_date,omitempty"`
	Completed     bool       `gorm:"default:false" json:"completed"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
}
