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
	"fintrack/internal/schedule"
)

// errConcurrentAdvance signals that another processor advanced the schedule
// between the due check and the write. The losing caller treats it as a
// benign skip, never as a user-facing error.
var errConcurrentAdvance = errors.New("obligation schedule advanced concurrently")

// obligationService implements the obligation scheduler.
type obligationService struct {
	db     *gorm.DB
	ledger LedgerAccessor
	alerts AlertSink
}

// NewObligationService creates a new ObligationServicer.
func NewObligationService(db *gorm.DB, ledger LedgerAccessor, alerts AlertSink) ObligationServicer {
	return &obligationService{db: db, ledger: ledger, alerts: alerts}
}

// CreateObligation validates the template and schedule, computes the first
// due date, and stores the obligation active and unpaused.
func (s *obligationService) CreateObligation(userID string, input ObligationInput) (*models.RecurringObligation, error) {
	if err := validateSchedule(input.Frequency, input.StartDate, input.EndDate, input.DayOfMonth, input.DayOfWeek); err != nil {
		return nil, err
	}
	if input.Amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Amount must be positive")
	}

	categoryName := input.CategoryName
	if input.CategoryID != nil {
		var category models.Category
		if err := s.db.Where("id = ? AND user_id = ?", *input.CategoryID, userID).First(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrCategoryNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if categoryName == "" {
			categoryName = category.Name
		}
	}

	obligation := &models.RecurringObligation{
		UserID:           userID,
		Name:             input.Name,
		Kind:             input.Kind,
		Amount:           input.Amount,
		CategoryID:       input.CategoryID,
		CategoryName:     categoryName,
		Tags:             models.JoinList(input.Tags),
		PaymentMethod:    input.PaymentMethod,
		Vendor:           input.Vendor,
		Customer:         input.Customer,
		Frequency:        input.Frequency,
		StartDate:        input.StartDate,
		EndDate:          input.EndDate,
		DayOfMonth:       input.DayOfMonth,
		DayOfWeek:        input.DayOfWeek,
		NextDueDate:      schedule.FirstDueDate(input.StartDate, input.Frequency, intOr(input.DayOfMonth, 0), intOr(input.DayOfWeek, -1)),
		IsActive:         true,
		IsPaused:         false,
		AutoProcess:      input.AutoProcess,
		NotifyBeforeDays: input.NotifyBeforeDays,
	}

	if err := s.db.Create(obligation).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return obligation, nil
}

// GetUserObligations returns a paginated list of obligations for the user.
func (s *obligationService) GetUserObligations(userID string, page pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.RecurringObligation], error) {
	page.Defaults()

	base := s.db.Model(&models.RecurringObligation{}).Where("user_id = ?", userID)
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var obligations []models.RecurringObligation
	if err := base.Order("next_due_date").Scopes(pagination.Paginate(page)).Find(&obligations).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(obligations, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetObligationByID returns an obligation with its execution history if it
// belongs to the user.
func (s *obligationService) GetObligationByID(userID, obligationID string) (*models.RecurringObligation, error) {
	var obligation models.RecurringObligation
	err := s.db.Preload("ExecutionHistory", func(db *gorm.DB) *gorm.DB {
		return db.Order("date")
	}).Where("id = ? AND user_id = ?", obligationID, userID).First(&obligation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrObligationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &obligation, nil
}

// UpdateObligation updates template and schedule fields. When schedule fields
// change the next due date is recomputed, but never moved backward past the
// last processed date: the schedule pointer only advances.
func (s *obligationService) UpdateObligation(userID, obligationID string, update ObligationUpdate) (*models.RecurringObligation, error) {
	obligation, err := s.GetObligationByID(userID, obligationID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if update.Name != "" {
		updates["name"] = update.Name
	}
	if update.Amount != nil {
		if *update.Amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Amount must be positive")
		}
		updates["amount"] = *update.Amount
	}
	if update.CategoryID != nil {
		updates["category_id"] = *update.CategoryID
	}
	if update.CategoryName != nil {
		updates["category_name"] = *update.CategoryName
	}
	if update.Tags != nil {
		updates["tags"] = models.JoinList(update.Tags)
	}
	if update.PaymentMethod != nil {
		updates["payment_method"] = *update.PaymentMethod
	}
	if update.Vendor != nil {
		updates["vendor"] = *update.Vendor
	}
	if update.Customer != nil {
		updates["customer"] = *update.Customer
	}
	if update.AutoProcess != nil {
		updates["auto_process"] = *update.AutoProcess
	}
	if update.NotifyBeforeDays != nil {
		updates["notify_before_days"] = *update.NotifyBeforeDays
	}

	scheduleChanged := update.Frequency != nil || update.StartDate != nil ||
		update.DayOfMonth != nil || update.DayOfWeek != nil || update.EndDate != nil

	frequency := obligation.Frequency
	startDate := obligation.StartDate
	endDate := obligation.EndDate
	dayOfMonth := obligation.DayOfMonth
	dayOfWeek := obligation.DayOfWeek
	if update.Frequency != nil {
		frequency = *update.Frequency
	}
	if update.StartDate != nil {
		startDate = *update.StartDate
	}
	if update.EndDate != nil {
		endDate = update.EndDate
	}
	if update.DayOfMonth != nil {
		dayOfMonth = update.DayOfMonth
	}
	if update.DayOfWeek != nil {
		dayOfWeek = update.DayOfWeek
	}

	if scheduleChanged {
		if err := validateSchedule(frequency, startDate, endDate, dayOfMonth, dayOfWeek); err != nil {
			return nil, err
		}
		next := schedule.FirstDueDate(startDate, frequency, intOr(dayOfMonth, 0), intOr(dayOfWeek, -1))
		// Re-anchoring must not resurrect already-processed occurrences.
		if obligation.LastProcessedDate != nil && !next.After(*obligation.LastProcessedDate) {
			next = schedule.NextDueDate(*obligation.LastProcessedDate, frequency, intOr(dayOfMonth, 0))
		}
		updates["frequency"] = frequency
		updates["start_date"] = startDate
		updates["end_date"] = endDate
		updates["day_of_month"] = dayOfMonth
		updates["day_of_week"] = dayOfWeek
		updates["next_due_date"] = next
	}

	if len(updates) > 0 {
		if err := s.db.Model(obligation).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetObligationByID(userID, obligationID)
}

// DeleteObligation soft-deletes an obligation. This is a terminal, explicit
// user action independent of scheduling; execution history rows are kept.
func (s *obligationService) DeleteObligation(userID, obligationID string) error {
	obligation, err := s.GetObligationByID(userID, obligationID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(obligation).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// Pause suspends an obligation without touching its due date. Time does not
// bank while paused: on resume the obligation is simply due again if its
// next due date has already passed, with no catch-up batch.
func (s *obligationService) Pause(userID, obligationID string) (*models.RecurringObligation, error) {
	return s.setPaused(userID, obligationID, true)
}

// Resume reactivates a paused obligation.
func (s *obligationService) Resume(userID, obligationID string) (*models.RecurringObligation, error) {
	return s.setPaused(userID, obligationID, false)
}

func (s *obligationService) setPaused(userID, obligationID string, paused bool) (*models.RecurringObligation, error) {
	obligation, err := s.GetObligationByID(userID, obligationID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(obligation).Update("is_paused", paused).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	obligation.IsPaused = paused
	return obligation, nil
}

// EvaluateDue runs one evaluation pass over the user's due obligations.
// Auto-processing obligations are processed synchronously; the rest get a
// due-obligation alert and wait for explicit confirmation. One obligation's
// failure never aborts the rest of the pass, and cancellation is honored
// between entities so no obligation is left half-updated.
func (s *obligationService) EvaluateDue(ctx context.Context, userID string, now time.Time) ([]ProcessResult, error) {
	var due []models.RecurringObligation
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND is_paused = ? AND next_due_date <= ?", userID, true, false, now).
		Where("end_date IS NULL OR end_date >= ?", now).
		Order("next_due_date").
		Find(&due).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	results := make([]ProcessResult, 0, len(due))
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		obligation := &due[i]

		if !obligation.AutoProcess {
			s.emitDueAlert(obligation, now)
			results = append(results, ProcessResult{
				ObligationID:   obligation.ID,
				ObligationName: obligation.Name,
				Outcome:        OutcomeAwaitingConfirmation,
			})
			continue
		}

		result := s.process(obligation, now)
		results = append(results, *result)
	}
	return results, nil
}

// Process runs one processing attempt for a single obligation.
func (s *obligationService) Process(userID, obligationID string, now time.Time) (*ProcessResult, error) {
	obligation, err := s.GetObligationByID(userID, obligationID)
	if err != nil {
		return nil, err
	}
	return s.process(obligation, now), nil
}

// process re-checks due-ness at the instant of execution, then creates the
// ledger entry, appends the success history row, and advances the schedule in
// one transaction. The advance is a compare-and-set on next_due_date: if a
// concurrent processor already advanced it, the whole transaction rolls back
// and the attempt reports a benign skip, so each due occurrence materializes
// at most one ledger entry.
func (s *obligationService) process(obligation *models.RecurringObligation, now time.Time) *ProcessResult {
	result := &ProcessResult{ObligationID: obligation.ID, ObligationName: obligation.Name}

	if !obligation.IsDueAt(now) {
		result.Outcome = OutcomeSkippedNotDue
		return result
	}

	next := schedule.NextDueDate(obligation.NextDueDate, obligation.Frequency, intOr(obligation.DayOfMonth, 0))
	var entryID string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		tags := append(models.SplitList(obligation.Tags), models.SystemGeneratedTag)
		id, err := s.ledger.CreateEntry(tx, obligation.UserID, LedgerEntry{
			CategoryID:    obligation.CategoryID,
			CategoryName:  obligation.CategoryName,
			Type:          obligation.Kind,
			Amount:        obligation.Amount,
			Description:   obligation.Name,
			Date:          now,
			Status:        models.TransactionStatusCompleted,
			PaymentMethod: obligation.PaymentMethod,
			Vendor:        obligation.Vendor,
			Tags:          tags,
			ObligationID:  &obligation.ID,
		})
		if err != nil {
			return fmt.Errorf("create ledger entry: %w", err)
		}
		entryID = id

		updates := map[string]interface{}{
			"next_due_date":       next,
			"last_processed_date": now,
		}
		// The only automatic deactivation path: the schedule ran past its end.
		if obligation.EndDate != nil && next.After(*obligation.EndDate) {
			updates["is_active"] = false
		}

		res := tx.Model(&models.RecurringObligation{}).
			Where("id = ? AND next_due_date = ?", obligation.ID, obligation.NextDueDate).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errConcurrentAdvance
		}

		execution := models.ObligationExecution{
			ObligationID:   obligation.ID,
			Date:           now,
			Outcome:        models.ExecutionOutcomeSuccess,
			CreatedEntryID: &entryID,
		}
		return tx.Create(&execution).Error
	})

	if errors.Is(err, errConcurrentAdvance) {
		result.Outcome = OutcomeSkippedConcurrent
		return result
	}
	if err != nil {
		// Ledger failure: record the attempt, leave the schedule unadvanced so
		// the obligation stays due and retries on the next pass.
		failure := models.ObligationExecution{
			ObligationID: obligation.ID,
			Date:         now,
			Outcome:      models.ExecutionOutcomeFailed,
			Error:        err.Error(),
		}
		if recErr := s.db.Create(&failure).Error; recErr != nil {
			logger.Get().Errorw("failed to record obligation failure",
				"obligation_id", obligation.ID, "error", recErr.Error())
		}
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		return result
	}

	obligation.NextDueDate = next
	obligation.LastProcessedDate = &now
	if obligation.EndDate != nil && next.After(*obligation.EndDate) {
		obligation.IsActive = false
	}

	result.Outcome = OutcomeProcessed
	result.CreatedEntryID = entryID
	result.NextDueDate = &next
	return result
}

// UpcomingReminders emits a due-obligation alert for every active, unpaused
// obligation coming due within its notify window.
func (s *obligationService) UpcomingReminders(userID string, now time.Time) ([]models.Alert, error) {
	var upcoming []models.RecurringObligation
	err := s.db.
		Where("user_id = ? AND is_active = ? AND is_paused = ? AND notify_before_days > 0", userID, true, false).
		Where("next_due_date > ?", now).
		Find(&upcoming).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	alerts := make([]models.Alert, 0)
	for i := range upcoming {
		obligation := &upcoming[i]
		window := now.AddDate(0, 0, obligation.NotifyBeforeDays)
		if obligation.NextDueDate.After(window) {
			continue
		}
		alert := models.Alert{
			UserID:     obligation.UserID,
			Kind:       models.AlertKindDueObligation,
			EntityID:   obligation.ID,
			EntityName: obligation.Name,
			Category:   obligation.CategoryName,
			Message:    fmt.Sprintf("%s is due on %s", obligation.Name, obligation.NextDueDate.Format("2006-01-02")),
			Amount:     obligation.Amount,
		}
		if err := s.alerts.Emit(&alert); err != nil {
			logger.Get().Warnw("alert emission failed",
				"obligation_id", obligation.ID, "error", err.Error())
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (s *obligationService) emitDueAlert(obligation *models.RecurringObligation, now time.Time) {
	alert := models.Alert{
		UserID:     obligation.UserID,
		Kind:       models.AlertKindDueObligation,
		EntityID:   obligation.ID,
		EntityName: obligation.Name,
		Category:   obligation.CategoryName,
		Message:    fmt.Sprintf("%s is due and awaiting confirmation", obligation.Name),
		Amount:     obligation.Amount,
	}
	if err := s.alerts.Emit(&alert); err != nil {
		logger.Get().Warnw("alert emission failed",
			"obligation_id", obligation.ID, "error", err.Error())
	}
}

// validateSchedule rejects malformed schedules before any state mutation.
func validateSchedule(frequency models.Frequency, startDate time.Time, endDate *time.Time, dayOfMonth, dayOfWeek *int) error {
	switch frequency {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyBiWeekly,
		models.FrequencyMonthly, models.FrequencyQuarterly, models.FrequencyYearly:
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidSchedule, "Unknown frequency")
	}
	if startDate.IsZero() {
		return apperrors.WithMessage(apperrors.ErrInvalidSchedule, "Start date is required")
	}
	if endDate != nil && endDate.Before(startDate) {
		return apperrors.WithMessage(apperrors.ErrInvalidSchedule, "End date must not precede start date")
	}
	if dayOfMonth != nil && (*dayOfMonth < 1 || *dayOfMonth > 31) {
		return apperrors.WithMessage(apperrors.ErrInvalidSchedule, "Day of month must be between 1 and 31")
	}
	if dayOfWeek != nil && (*dayOfWeek < 0 || *dayOfWeek > 6) {
		return apperrors.WithMessage(apperrors.ErrInvalidSchedule, "Day of week must be between 0 and 6")
	}
	return nil
}

// intOr dereferences an optional int with a fallback.
func intOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}
