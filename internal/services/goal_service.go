package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// goalService implements the goal progress tracker.
type goalService struct {
	db     *gorm.DB
	ledger LedgerAccessor
	alerts AlertSink
}

// NewGoalService creates a new GoalServicer.
func NewGoalService(db *gorm.DB, ledger LedgerAccessor, alerts AlertSink) GoalServicer {
	return &goalService{db: db, ledger: ledger, alerts: alerts}
}

// CreateGoal creates a goal with its milestones. The initial amount is an
// explicit starting point, not necessarily zero; a goal created at or past
// its target starts out completed.
func (s *goalService) CreateGoal(userID string, input GoalInput) (*models.Goal, error) {
	if input.TargetAmount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Target amount must be positive")
	}
	if input.InitialAmount < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Initial amount must not be negative")
	}
	if input.Deadline.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Deadline is required")
	}

	priority := input.Priority
	if priority == "" {
		priority = models.GoalPriorityMedium
	}

	goal := &models.Goal{
		UserID:            userID,
		Name:              input.Name,
		Type:              input.Type,
		TargetAmount:      input.TargetAmount,
		CurrentAmount:     input.InitialAmount,
		Deadline:          input.Deadline,
		Priority:          priority,
		Status:            models.GoalStatusNotStarted,
		CategoryName:      input.CategoryName,
		AutoTrack:         input.AutoTrack,
		TrackCategories:   models.JoinList(input.TrackCategories),
		ExcludeCategories: models.JoinList(input.ExcludeCategories),
		TrackSources:      models.JoinList(input.TrackSources),
	}
	if input.InitialAmount > 0 {
		goal.Status = models.GoalStatusInProgress
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(goal).Error; err != nil {
			return err
		}
		for _, milestone := range input.Milestones {
			row := models.GoalMilestone{
				GoalID:       goal.ID,
				Name:         milestone.Name,
				TargetAmount: milestone.TargetAmount,
				TargetDate:   milestone.TargetDate,
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

	// An initial amount at or past the target completes immediately.
	if goal.CurrentAmount >= goal.TargetAmount {
		return s.UpdateProgress(userID, goal.ID, 0, "initial amount", time.Now())
	}
	return s.GetGoalByID(userID, goal.ID)
}

// GetUserGoals returns a paginated list of goals with an optional status filter.
func (s *goalService) GetUserGoals(userID string, page pagination.PageRequest, status *models.GoalStatus) (*pagination.PageResponse[models.Goal], error) {
	page.Defaults()

	base := s.db.Model(&models.Goal{}).Where("user_id = ?", userID)
	if status != nil {
		base = base.Where("status = ?", *status)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var goals []models.Goal
	if err := base.Preload("Milestones").Order("deadline").Scopes(pagination.Paginate(page)).Find(&goals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(goals, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetGoalByID returns a goal with its milestones if it belongs to the user.
func (s *goalService) GetGoalByID(userID, goalID string) (*models.Goal, error) {
	var goal models.Goal
	err := s.db.Preload("Milestones", func(db *gorm.DB) *gorm.DB {
		return db.Order("target_amount")
	}).Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &goal, nil
}

// DeleteGoal soft-deletes a goal.
func (s *goalService) DeleteGoal(userID, goalID string) error {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(goal).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// PauseGoal explicitly suspends a goal. Completed goals stay completed.
func (s *goalService) PauseGoal(userID, goalID string) (*models.Goal, error) {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return nil, err
	}
	if goal.Status == models.GoalStatusCompleted {
		return goal, nil
	}
	if err := s.db.Model(goal).Update("status", models.GoalStatusPaused).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	goal.Status = models.GoalStatusPaused
	return goal, nil
}

// ResumeGoal returns a paused goal to the status its progress implies.
func (s *goalService) ResumeGoal(userID, goalID string) (*models.Goal, error) {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return nil, err
	}
	if goal.Status != models.GoalStatusPaused {
		return nil, apperrors.ErrGoalNotPaused
	}

	status := models.GoalStatusNotStarted
	if goal.CurrentAmount > 0 {
		status = models.GoalStatusInProgress
	}
	if goal.CurrentAmount >= goal.TargetAmount {
		status = models.GoalStatusCompleted
	}
	if err := s.db.Model(goal).Update("status", status).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	goal.Status = status
	return goal, nil
}

// UpdateProgress applies a manual progress delta, floored at zero. The first
// positive delta moves a fresh goal to in_progress; the first crossing of the
// target completes it and stamps the completion date exactly once. Milestones
// are walked in ascending target order and latch completed the first time
// cumulative progress reaches them.
func (s *goalService) UpdateProgress(userID, goalID string, delta int64, description string, now time.Time) (*models.Goal, error) {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.applyProgress(tx, goal, delta, now)
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("goal progress updated",
		"goal_id", goal.ID,
		"delta", delta,
		"current_amount", goal.CurrentAmount,
		"status", goal.Status,
		"description", description,
	)
	return s.GetGoalByID(userID, goalID)
}

// applyProgress is the single progress path shared by manual updates and
// auto-tracking recalculation, so status and milestone logic exist once.
func (s *goalService) applyProgress(tx *gorm.DB, goal *models.Goal, delta int64, now time.Time) error {
	newAmount := goal.CurrentAmount + delta
	if newAmount < 0 {
		newAmount = 0
	}

	updates := map[string]interface{}{"current_amount": newAmount}
	status := goal.Status
	if status == models.GoalStatusNotStarted && delta > 0 {
		status = models.GoalStatusInProgress
	}
	// Completion is idempotent: re-reaching the target never restamps.
	if newAmount >= goal.TargetAmount && status != models.GoalStatusCompleted {
		status = models.GoalStatusCompleted
		updates["completed_date"] = now
		goal.CompletedDate = &now
	}
	updates["status"] = status

	if err := tx.Model(&models.Goal{}).Where("id = ?", goal.ID).Updates(updates).Error; err != nil {
		return err
	}
	goal.CurrentAmount = newAmount
	goal.Status = status

	// Milestones latch in ascending target order; completed ones are never
	// revisited even if progress later decreases.
	var milestones []models.GoalMilestone
	if err := tx.Where("goal_id = ? AND completed = ?", goal.ID, false).
		Order("target_amount").Find(&milestones).Error; err != nil {
		return err
	}
	for i := range milestones {
		milestone := &milestones[i]
		if milestone.TargetAmount > newAmount {
			break
		}
		err := tx.Model(milestone).Updates(map[string]interface{}{
			"completed":      true,
			"completed_date": now,
		}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// RecalculateAuto recomputes an auto-tracked goal's progress as an absolute
// sum from the ledger under the goal's tracking rules, then feeds the
// difference through the shared progress path so milestone and status logic
// are not duplicated.
func (s *goalService) RecalculateAuto(userID, goalID string, now time.Time) (*models.Goal, error) {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return nil, err
	}
	if !goal.AutoTrack {
		return nil, apperrors.ErrGoalNotAutoTracked
	}

	filter := LedgerFilter{
		Categories:        models.SplitList(goal.TrackCategories),
		ExcludeCategories: models.SplitList(goal.ExcludeCategories),
		Status:            models.TransactionStatusCompleted,
	}
	kind := goal.LedgerKind()
	// The sources rule only applies to income-fed goals.
	if kind == models.TransactionTypeIncome {
		filter.Sources = models.SplitList(goal.TrackSources)
	}

	total, err := s.ledger.SumMatching(userID, kind, filter, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	return s.UpdateProgress(userID, goalID, total-goal.CurrentAmount, "auto-tracking recalculation", now)
}

// GoalsNeedingAttention returns the user's non-completed goals whose
// needs-attention flag is set at the given instant.
func (s *goalService) GoalsNeedingAttention(userID string, now time.Time) ([]models.Goal, error) {
	var goals []models.Goal
	err := s.db.Where("user_id = ? AND status NOT IN ?", userID,
		[]models.GoalStatus{models.GoalStatusCompleted, models.GoalStatusFailed}).
		Find(&goals).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	needing := make([]models.Goal, 0)
	for _, goal := range goals {
		if goal.NeedsAttention(now) {
			needing = append(needing, goal)
		}
	}
	return needing, nil
}

// CheckGoalReminders emits one goal-reminder alert per goal needing attention.
func (s *goalService) CheckGoalReminders(ctx context.Context, userID string, now time.Time) ([]models.Alert, error) {
	goals, err := s.GoalsNeedingAttention(userID, now)
	if err != nil {
		return nil, err
	}

	alerts := make([]models.Alert, 0, len(goals))
	for i := range goals {
		if ctx.Err() != nil {
			break
		}
		goal := &goals[i]
		alert := models.Alert{
			UserID:     userID,
			Kind:       models.AlertKindGoalReminder,
			EntityID:   goal.ID,
			EntityName: goal.Name,
			Category:   goal.CategoryName,
			Message:    fmt.Sprintf("Goal %s needs attention: %.2f%% of target by %s", goal.Name, goal.ProgressPercentage(), goal.Deadline.Format("2006-01-02")),
			Amount:     goal.CurrentAmount,
			Limit:      goal.TargetAmount,
			Percentage: round2(goal.ProgressPercentage()),
		}
		if err := s.alerts.Emit(&alert); err != nil {
			logger.Get().Warnw("alert emission failed",
				"goal_id", goal.ID, "error", err.Error())
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}
