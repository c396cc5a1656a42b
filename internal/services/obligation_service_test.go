package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/testutil"
)

// captureSink records emitted alerts for assertions.
type captureSink struct {
	alerts []models.Alert
}

func (s *captureSink) Emit(alert *models.Alert) error {
	s.alerts = append(s.alerts, *alert)
	return nil
}

// failingLedger simulates a ledger outage.
type failingLedger struct{}

func (failingLedger) SumMatching(string, models.TransactionType, LedgerFilter, time.Time, time.Time) (int64, error) {
	return 0, errors.New("ledger unavailable")
}

func (failingLedger) CreateEntry(*gorm.DB, string, LedgerEntry) (string, error) {
	return "", errors.New("ledger unavailable")
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newObligationFixture(t *testing.T) (*gorm.DB, ObligationServicer, *captureSink, *models.User) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	sink := &captureSink{}
	svc := NewObligationService(db, NewLedgerService(db), sink)
	user := testutil.CreateTestUser(t, db)
	return db, svc, sink, user
}

func historyCount(t *testing.T, db *gorm.DB, obligationID string) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.ObligationExecution{}).Where("obligation_id = ?", obligationID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count executions: %v", err)
	}
	return count
}

func TestCreateObligation(t *testing.T) {
	t.Run("valid_monthly", func(t *testing.T) {
		_, svc, _, user := newObligationFixture(t)

		dom := 15
		obligation, err := svc.CreateObligation(user.ID, ObligationInput{
			Name:       "Rent",
			Kind:       models.TransactionTypeExpense,
			Amount:     150000,
			Frequency:  models.FrequencyMonthly,
			StartDate:  day(2024, time.January, 15),
			DayOfMonth: &dom,
		})
		testutil.AssertNoError(t, err)

		if !obligation.NextDueDate.Equal(day(2024, time.January, 15)) {
			t.Errorf("expected first due 2024-01-15, got %v", obligation.NextDueDate)
		}
		if !obligation.IsActive || obligation.IsPaused {
			t.Error("expected obligation to start active and unpaused")
		}
	})

	t.Run("anchor_after_start", func(t *testing.T) {
		_, svc, _, user := newObligationFixture(t)

		dom := 10
		obligation, err := svc.CreateObligation(user.ID, ObligationInput{
			Name:       "Subscription",
			Kind:       models.TransactionTypeExpense,
			Amount:     999,
			Frequency:  models.FrequencyMonthly,
			StartDate:  day(2024, time.January, 25),
			DayOfMonth: &dom,
		})
		testutil.AssertNoError(t, err)

		if !obligation.NextDueDate.Equal(day(2024, time.February, 10)) {
			t.Errorf("expected first due 2024-02-10, got %v", obligation.NextDueDate)
		}
	})

	t.Run("invalid_day_of_month", func(t *testing.T) {
		_, svc, _, user := newObligationFixture(t)

		dom := 40
		_, err := svc.CreateObligation(user.ID, ObligationInput{
			Name:       "Bad",
			Kind:       models.TransactionTypeExpense,
			Amount:     1000,
			Frequency:  models.FrequencyMonthly,
			StartDate:  day(2024, time.January, 1),
			DayOfMonth: &dom,
		})
		testutil.AssertAppError(t, err, "INVALID_SCHEDULE")
	})

	t.Run("end_before_start", func(t *testing.T) {
		_, svc, _, user := newObligationFixture(t)

		end := day(2023, time.December, 1)
		_, err := svc.CreateObligation(user.ID, ObligationInput{
			Name:      "Bad",
			Kind:      models.TransactionTypeExpense,
			Amount:    1000,
			Frequency: models.FrequencyWeekly,
			StartDate: day(2024, time.January, 1),
			EndDate:   &end,
		})
		testutil.AssertAppError(t, err, "INVALID_SCHEDULE")
	})

	t.Run("non_positive_amount", func(t *testing.T) {
		_, svc, _, user := newObligationFixture(t)

		_, err := svc.CreateObligation(user.ID, ObligationInput{
			Name:      "Bad",
			Kind:      models.TransactionTypeExpense,
			Amount:    0,
			Frequency: models.FrequencyDaily,
			StartDate: day(2024, time.January, 1),
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestProcess(t *testing.T) {
	t.Run("not_due_appends_no_history", func(t *testing.T) {
		db, svc, _, user := newObligationFixture(t)
		obligation := testutil.CreateTestObligation(t, db, user.ID, day(2024, time.March, 15), 15, true)

		result, err := svc.Process(user.ID, obligation.ID, day(2024, time.March, 1))
		testutil.AssertNoError(t, err)

		if result.Outcome != OutcomeSkippedNotDue {
			t.Errorf("expected skipped_not_due, got %s", result.Outcome)
		}
		if got := historyCount(t, db, obligation.ID); got != 0 {
			t.Errorf("expected no history rows, got %d", got)
		}
	})

	t.Run("due_creates_entry_and_advances", func(t *testing.T) {
		db, svc, _, user := newObligationFixture(t)
		obligation := testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 15), 15, true)

		result, err := svc.Process(user.ID, obligation.ID, day(2024, time.January, 20))
		testutil.AssertNoError(t, err)

		if result.Outcome != OutcomeProcessed {
			t.Fatalf("expected processed, got %s (%s)", result.Outcome, result.Error)
		}
		if result.NextDueDate == nil || !result.NextDueDate.Equal(day(2024, time.February, 15)) {
			t.Errorf("expected next due 2024-02-15, got %v", result.NextDueDate)
		}

		var entry models.Transaction
		if err := db.First(&entry, "id = ?", result.CreatedEntryID).Error; err != nil {
			t.Fatalf("expected ledger entry to exist: %v", err)
		}
		if entry.ObligationID == nil || *entry.ObligationID != obligation.ID {
			t.Error("expected ledger entry to back-reference the obligation")
		}
		tagged := false
		for _, tag := range entry.TagList() {
			if tag == models.SystemGeneratedTag {
				tagged = true
			}
		}
		if !tagged {
			t.Error("expected ledger entry to carry the system-generated tag")
		}

		var executions []models.ObligationExecution
		if err := db.Where("obligation_id = ?", obligation.ID).Find(&executions).Error; err != nil {
			t.Fatalf("failed to load executions: %v", err)
		}
		if len(executions) != 1 || executions[0].Outcome != models.ExecutionOutcomeSuccess {
			t.Fatalf("expected one success execution, got %+v", executions)
		}
	})

	t.Run("sequential_processes_strictly_advance", func(t *testing.T) {
		db, svc, _, user := newObligationFixture(t)
		obligation := testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 15), 15, true)
		now := day(2024, time.February, 20)

		first, err := svc.Process(user.ID, obligation.ID, now)
		testutil.AssertNoError(t, err)
		second, err := svc.Process(user.ID, obligation.ID, now)
		testutil.AssertNoError(t, err)

		if first.Outcome != OutcomeProcessed || second.Outcome != OutcomeProcessed {
			t.Fatalf("expected both processed, got %s and %s", first.Outcome, second.Outcome)
		}
		if !second.NextDueDate.After(*first.NextDueDate) {
			t.Errorf("expected strict advance: first %v, second %v", first.NextDueDate, second.NextDueDate)
		}
	})

	t.Run("past_end_date_deactivates", func(t *testing.T) {
		db, svc, _, user := newObligationFixture(t)
		obligation := testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 15), 15, true)
		end := day(2024, time.February, 1)
		if err := db.Model(obligation).Update("end_date", end).Error; err != nil {
			t.Fatalf("failed to set end date: %v", err)
		}

		result, err := svc.Process(user.ID, obligation.ID, day(2024, time.January, 20))
		testutil.AssertNoError(t, err)
		if result.Outcome != OutcomeProcessed {
			t.Fatalf("expected processed, got %s", result.Outcome)
		}

		updated, err := svc.GetObligationByID(user.ID, obligation.ID)
		testutil.AssertNoError(t, err)
		if updated.IsActive {
			t.Error("expected obligation to deactivate once next due passed its end date")
		}

		results, err := svc.EvaluateDue(context.Background(), user.ID, day(2024, time.March, 1))
		testutil.AssertNoError(t, err)
		for _, r := range results {
			if r.ObligationID == obligation.ID {
				t.Error("deactivated obligation must not appear in due evaluation")
			}
		}
	})

	t.Run("ledger_failure_records_and_retries", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
		svc := NewObligationService(db, failingLedger{}, &captureSink{})
		user := testutil.CreateTestUser(t, db)
		obligation := testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 15), 15, true)

		result, err := svc.Process(user.ID, obligation.ID, day(2024, time.January, 20))
		testutil.AssertNoError(t, err)

		if result.Outcome != OutcomeFailed {
			t.Fatalf("expected failed, got %s", result.Outcome)
		}

		updated, err := svc.GetObligationByID(user.ID, obligation.ID)
		testutil.AssertNoError(t, err)
		if !updated.NextDueDate.Equal(obligation.NextDueDate) {
			t.Error("expected schedule to stay unadvanced after ledger failure")
		}
		if len(updated.ExecutionHistory) != 1 || updated.ExecutionHistory[0].Outcome != models.ExecutionOutcomeFailed {
			t.Fatalf("expected one failed execution, got %+v", updated.ExecutionHistory)
		}

		// Still due: the obligation retries on the next pass.
		if !updated.IsDueAt(day(2024, time.January, 21)) {
			t.Error("expected obligation to remain due for retry")
		}
	})

	t.Run("concurrent_advance_is_benign_skip", func(t *testing.T) {
		db, svc, _, user := newObligationFixture(t)
		obligation := testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 15), 15, true)

		// A concurrent processor advanced the schedule after this caller
		// loaded its snapshot.
		stale, err := svc.GetObligationByID(user.ID, obligation.ID)
		testutil.AssertNoError(t, err)
		err = db.Model(&models.RecurringObligation{}).Where("id = ?", obligation.ID).
			Update("next_due_date", day(2024, time.February, 15)).Error
		testutil.AssertNoError(t, err)

		result := svc.(*obligationService).process(stale, day(2024, time.January, 20))
		if result.Outcome != OutcomeSkippedConcurrent {
			t.Fatalf("expected skipped_concurrent, got %s", result.Outcome)
		}
		if got := historyCount(t, db, obligation.ID); got != 0 {
			t.Errorf("losing processor must not append history, got %d rows", got)
		}

		// The winner's advance stands and the whole attempt rolled back.
		var entries int64
		err = db.Model(&models.Transaction{}).Where("obligation_id = ?", obligation.ID).Count(&entries).Error
		testutil.AssertNoError(t, err)
		if entries != 0 {
			t.Errorf("expected no ledger entries from the losing processor, got %d", entries)
		}
	})
}

func TestEvaluateDue(t *testing.T) {
	t.Run("monthly_catch_up_fires_once_per_pass", func(t *testing.T) {
		db, svc, _, user := newObligationFixture(t)
		obligation := testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 15), 15, true)
		now := day(2024, time.February, 20)

		results, err := svc.EvaluateDue(context.Background(), user.ID, now)
		testutil.AssertNoError(t, err)
		if len(results) != 1 || results[0].Outcome != OutcomeProcessed {
			t.Fatalf("expected one processed result, got %+v", results)
		}
		if !results[0].NextDueDate.Equal(day(2024, time.February, 15)) {
			t.Errorf("expected advance to 2024-02-15, got %v", results[0].NextDueDate)
		}

		// 2024-02-15 <= 2024-02-20, so a second pass at the same timestamp
		// fires again and advances to March.
		results, err = svc.EvaluateDue(context.Background(), user.ID, now)
		testutil.AssertNoError(t, err)
		if len(results) != 1 || results[0].Outcome != OutcomeProcessed {
			t.Fatalf("expected one processed result on second pass, got %+v", results)
		}
		if !results[0].NextDueDate.Equal(day(2024, time.March, 15)) {
			t.Errorf("expected advance to 2024-03-15, got %v", results[0].NextDueDate)
		}

		var entries int64
		err = db.Model(&models.Transaction{}).Where("obligation_id = ?", obligation.ID).Count(&entries).Error
		testutil.AssertNoError(t, err)
		if entries != 2 {
			t.Errorf("expected two ledger entries, got %d", entries)
		}
		if got := historyCount(t, db, obligation.ID); got != 2 {
			t.Errorf("expected history length 2, got %d", got)
		}
	})

	t.Run("manual_obligation_awaits_confirmation", func(t *testing.T) {
		db, svc, sink, user := newObligationFixture(t)
		obligation := testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 15), 15, false)

		results, err := svc.EvaluateDue(context.Background(), user.ID, day(2024, time.January, 20))
		testutil.AssertNoError(t, err)

		if len(results) != 1 || results[0].Outcome != OutcomeAwaitingConfirmation {
			t.Fatalf("expected awaiting_confirmation, got %+v", results)
		}
		if len(sink.alerts) != 1 || sink.alerts[0].Kind != models.AlertKindDueObligation {
			t.Fatalf("expected one due-obligation alert, got %+v", sink.alerts)
		}

		updated, err := svc.GetObligationByID(user.ID, obligation.ID)
		testutil.AssertNoError(t, err)
		if !updated.NextDueDate.Equal(day(2024, time.January, 15)) {
			t.Error("manual obligations must not advance without explicit processing")
		}
		if got := historyCount(t, db, obligation.ID); got != 0 {
			t.Errorf("expected no history for unconfirmed due, got %d", got)
		}
	})

	t.Run("paused_is_excluded_and_resume_has_no_catch_up", func(t *testing.T) {
		db, svc, _, user := newObligationFixture(t)
		obligation := testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 15), 15, true)

		_, err := svc.Pause(user.ID, obligation.ID)
		testutil.AssertNoError(t, err)

		results, err := svc.EvaluateDue(context.Background(), user.ID, day(2024, time.March, 20))
		testutil.AssertNoError(t, err)
		if len(results) != 0 {
			t.Fatalf("paused obligation must not evaluate due, got %+v", results)
		}

		_, err = svc.Resume(user.ID, obligation.ID)
		testutil.AssertNoError(t, err)

		// Months of pause produce exactly one firing per pass, not a batch.
		results, err = svc.EvaluateDue(context.Background(), user.ID, day(2024, time.March, 20))
		testutil.AssertNoError(t, err)
		if len(results) != 1 || results[0].Outcome != OutcomeProcessed {
			t.Fatalf("expected a single processed result after resume, got %+v", results)
		}
		if got := historyCount(t, db, obligation.ID); got != 1 {
			t.Errorf("expected exactly one execution after resume, got %d", got)
		}
	})

	t.Run("failure_does_not_abort_pass", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
		svc := NewObligationService(db, failingLedger{}, &captureSink{})
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 10), 10, true)
		testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 15), 15, true)

		results, err := svc.EvaluateDue(context.Background(), user.ID, day(2024, time.January, 20))
		testutil.AssertNoError(t, err)

		if len(results) != 2 {
			t.Fatalf("expected both obligations evaluated despite failures, got %d", len(results))
		}
		for _, r := range results {
			if r.Outcome != OutcomeFailed {
				t.Errorf("expected failed outcome, got %s", r.Outcome)
			}
		}
	})
}

func TestUpcomingReminders(t *testing.T) {
	db, svc, sink, user := newObligationFixture(t)
	obligation := testutil.CreateTestObligation(t, db, user.ID, day(2024, time.April, 15), 15, true)
	if err := db.Model(obligation).Update("notify_before_days", 7).Error; err != nil {
		t.Fatalf("failed to set notify window: %v", err)
	}

	alerts, err := svc.UpcomingReminders(user.ID, day(2024, time.April, 10))
	testutil.AssertNoError(t, err)
	if len(alerts) != 1 {
		t.Fatalf("expected one reminder inside the notify window, got %d", len(alerts))
	}
	if len(sink.alerts) != 1 {
		t.Fatalf("expected the reminder emitted to the sink, got %d", len(sink.alerts))
	}

	alerts, err = svc.UpcomingReminders(user.ID, day(2024, time.April, 1))
	testutil.AssertNoError(t, err)
	if len(alerts) != 0 {
		t.Errorf("expected no reminder outside the notify window, got %d", len(alerts))
	}
}

func TestObligationCRUD(t *testing.T) {
	t.Run("list_filters_by_active", func(t *testing.T) {
		db, svc, _, user := newObligationFixture(t)
		testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 15), 15, true)
		inactive := testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 15), 15, true)
		if err := db.Model(inactive).Update("is_active", false).Error; err != nil {
			t.Fatalf("failed to deactivate: %v", err)
		}

		page := pagination.PageRequest{Page: 1, PageSize: 20}
		active := true
		result, err := svc.GetUserObligations(user.ID, page, &active)
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 {
			t.Errorf("expected 1 active obligation, got %d", result.TotalItems)
		}
	})

	t.Run("update_reanchors_without_rewinding", func(t *testing.T) {
		db, svc, _, user := newObligationFixture(t)
		obligation := testutil.CreateTestObligation(t, db, user.ID, day(2024, time.January, 15), 15, true)

		_, err := svc.Process(user.ID, obligation.ID, day(2024, time.January, 20))
		testutil.AssertNoError(t, err)

		// Re-anchoring to an earlier day must not revisit the processed
		// January occurrence.
		dom := 5
		start := day(2024, time.January, 5)
		updated, err := svc.UpdateObligation(user.ID, obligation.ID, ObligationUpdate{
			StartDate:  &start,
			DayOfMonth: &dom,
		})
		testutil.AssertNoError(t, err)
		if !updated.NextDueDate.After(day(2024, time.January, 20)) {
			t.Errorf("expected next due after last processing, got %v", updated.NextDueDate)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		_, svc, _, user := newObligationFixture(t)
		_, err := svc.GetObligationByID(user.ID, "00000000-0000-0000-0000-000000000000")
		testutil.AssertAppError(t, err, "OBLIGATION_NOT_FOUND")
	})

	t.Run("other_users_obligation_hidden", func(t *testing.T) {
		db, svc, _, user := newObligationFixture(t)
		other := testutil.CreateTestUser(t, db)
		obligation := testutil.CreateTestObligation(t, db, other.ID, day(2024, time.January, 15), 15, true)

		_, err := svc.GetObligationByID(user.ID, obligation.ID)
		testutil.AssertAppError(t, err, "OBLIGATION_NOT_FOUND")
	})
}
