package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"fintrack/internal/models"
	"fintrack/internal/testutil"
)

func newBudgetFixture(t *testing.T) (*gorm.DB, BudgetServicer, *captureSink, *models.User) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	sink := &captureSink{}
	svc := NewBudgetService(db, NewLedgerService(db), sink)
	user := testutil.CreateTestUser(t, db)
	return db, svc, sink, user
}

func TestCreateBudget(t *testing.T) {
	t.Run("monthly_derives_period_end", func(t *testing.T) {
		_, svc, _, user := newBudgetFixture(t)

		budget, err := svc.CreateBudget(user.ID, BudgetInput{
			Name:        "March",
			Period:      models.BudgetPeriodMonthly,
			PeriodStart: day(2024, time.March, 1),
			Currency:    "USD",
			TotalAmount: 80000,
			Allocations: []AllocationInput{
				{CategoryName: "Groceries", Limit: 50000},
			},
		})
		testutil.AssertNoError(t, err)

		if budget.PeriodEnd.Year() != 2024 || budget.PeriodEnd.Month() != time.March || budget.PeriodEnd.Day() != 31 {
			t.Errorf("expected period end on 2024-03-31, got %v", budget.PeriodEnd)
		}
		if len(budget.Allocations) != 1 || budget.Allocations[0].Remaining != 50000 {
			t.Errorf("expected untouched allocation with full remaining, got %+v", budget.Allocations)
		}
		if budget.AlertThreshold != models.DefaultAlertThreshold {
			t.Errorf("expected default threshold %.0f, got %.2f", models.DefaultAlertThreshold, budget.AlertThreshold)
		}
	})

	t.Run("custom_requires_explicit_end", func(t *testing.T) {
		_, svc, _, user := newBudgetFixture(t)

		_, err := svc.CreateBudget(user.ID, BudgetInput{
			Name:        "Trip",
			Period:      models.BudgetPeriodCustom,
			PeriodStart: day(2024, time.March, 1),
			Currency:    "USD",
			TotalAmount: 10000,
			Allocations: []AllocationInput{{CategoryName: "Travel", Limit: 10000}},
		})
		testutil.AssertAppError(t, err, "INVALID_PERIOD")
	})

	t.Run("custom_end_before_start", func(t *testing.T) {
		_, svc, _, user := newBudgetFixture(t)

		end := day(2024, time.February, 1)
		_, err := svc.CreateBudget(user.ID, BudgetInput{
			Name:        "Trip",
			Period:      models.BudgetPeriodCustom,
			PeriodStart: day(2024, time.March, 1),
			PeriodEnd:   &end,
			Currency:    "USD",
			TotalAmount: 10000,
			Allocations: []AllocationInput{{CategoryName: "Travel", Limit: 10000}},
		})
		testutil.AssertAppError(t, err, "INVALID_PERIOD")
	})

	t.Run("requires_allocations", func(t *testing.T) {
		_, svc, _, user := newBudgetFixture(t)

		_, err := svc.CreateBudget(user.ID, BudgetInput{
			Name:        "Empty",
			Period:      models.BudgetPeriodMonthly,
			PeriodStart: day(2024, time.March, 1),
			Currency:    "USD",
			TotalAmount: 10000,
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestRecalculate(t *testing.T) {
	t.Run("full_recompute_from_ledger", func(t *testing.T) {
		db, svc, _, user := newBudgetFixture(t)

		budget, err := svc.CreateBudget(user.ID, BudgetInput{
			Name:        "March",
			Period:      models.BudgetPeriodMonthly,
			PeriodStart: day(2024, time.March, 1),
			Currency:    "USD",
			TotalAmount: 80000,
			Allocations: []AllocationInput{
				{CategoryName: "Dining", Limit: 30000},
				{CategoryName: "Groceries", Limit: 50000},
			},
		})
		testutil.AssertNoError(t, err)

		testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "Groceries", 30000, day(2024, time.March, 5))
		testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "Groceries", 12000, day(2024, time.March, 18))
		// Overspend in Dining: remaining floors at zero, percentage runs past 100.
		testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "Dining", 45000, day(2024, time.March, 10))
		// Outside the period: ignored.
		testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "Groceries", 99900, day(2024, time.February, 20))
		// Cancelled: ignored.
		cancelled := testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "Groceries", 88800, day(2024, time.March, 12))
		err = db.Model(cancelled).Update("status", models.TransactionStatusCancelled).Error
		testutil.AssertNoError(t, err)

		now := day(2024, time.March, 20)
		recalced, err := svc.Recalculate(user.ID, budget.ID, now)
		testutil.AssertNoError(t, err)

		byCategory := make(map[string]models.BudgetAllocation)
		for _, allocation := range recalced.Allocations {
			byCategory[allocation.CategoryName] = allocation
		}

		groceries := byCategory["Groceries"]
		if groceries.Spent != 42000 || groceries.Remaining != 8000 {
			t.Errorf("expected Groceries spent 42000 remaining 8000, got %d/%d", groceries.Spent, groceries.Remaining)
		}
		if groceries.PercentageUsed != 84.0 {
			t.Errorf("expected Groceries at 84%%, got %.2f", groceries.PercentageUsed)
		}

		dining := byCategory["Dining"]
		if dining.Spent != 45000 {
			t.Errorf("expected Dining spent 45000, got %d", dining.Spent)
		}
		if dining.Remaining != 0 {
			t.Errorf("remaining must never go negative, got %d", dining.Remaining)
		}
		if dining.PercentageUsed != 150.0 {
			t.Errorf("percentage is uncapped, expected 150, got %.2f", dining.PercentageUsed)
		}

		if recalced.TotalSpent != 87000 {
			t.Errorf("expected total spent to equal the sum of allocation spends, got %d", recalced.TotalSpent)
		}
		if recalced.TotalRemaining != 0 {
			t.Errorf("total remaining floors at zero, got %d", recalced.TotalRemaining)
		}
		if recalced.LastCalculatedAt == nil || !recalced.LastCalculatedAt.Equal(now) {
			t.Errorf("expected last calculated at %v, got %v", now, recalced.LastCalculatedAt)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		db, svc, _, user := newBudgetFixture(t)
		budget := testutil.CreateTestBudget(t, db, user.ID, day(2024, time.March, 1), "Groceries", 50000)
		testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "Groceries", 20000, day(2024, time.March, 5))

		first, err := svc.Recalculate(user.ID, budget.ID, day(2024, time.March, 10))
		testutil.AssertNoError(t, err)
		second, err := svc.Recalculate(user.ID, budget.ID, day(2024, time.March, 10))
		testutil.AssertNoError(t, err)

		if first.TotalSpent != second.TotalSpent {
			t.Errorf("repeated recalculation must converge, got %d then %d", first.TotalSpent, second.TotalSpent)
		}
		if first.Allocations[0].Spent != second.Allocations[0].Spent {
			t.Errorf("allocation usage must converge, got %d then %d", first.Allocations[0].Spent, second.Allocations[0].Spent)
		}
	})

	t.Run("income_never_counts", func(t *testing.T) {
		db, svc, _, user := newBudgetFixture(t)
		budget := testutil.CreateTestBudget(t, db, user.ID, day(2024, time.March, 1), "Groceries", 50000)
		testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeIncome, "Groceries", 70000, day(2024, time.March, 5))

		recalced, err := svc.Recalculate(user.ID, budget.ID, day(2024, time.March, 10))
		testutil.AssertNoError(t, err)
		if recalced.TotalSpent != 0 {
			t.Errorf("income entries must not count toward spending, got %d", recalced.TotalSpent)
		}
	})
}

func TestCheckAlerts(t *testing.T) {
	t.Run("over_threshold_emits_overall_and_category", func(t *testing.T) {
		db, svc, sink, user := newBudgetFixture(t)
		budget := testutil.CreateTestBudget(t, db, user.ID, day(2024, time.March, 1), "Groceries", 50000)
		testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "Groceries", 42000, day(2024, time.March, 5))

		alerts, err := svc.CheckAlerts(context.Background(), user.ID, day(2024, time.March, 15))
		testutil.AssertNoError(t, err)

		if len(alerts) != 2 {
			t.Fatalf("expected overall and category alerts at 84%%, got %d: %+v", len(alerts), alerts)
		}
		kinds := map[models.AlertKind]models.Alert{}
		for _, alert := range alerts {
			kinds[alert.Kind] = alert
		}
		overall, ok := kinds[models.AlertKindBudgetOverall]
		if !ok {
			t.Fatal("expected a budget-overall alert")
		}
		if overall.EntityID != budget.ID || overall.Percentage != 84.0 {
			t.Errorf("unexpected overall alert payload: %+v", overall)
		}
		category, ok := kinds[models.AlertKindBudgetCategory]
		if !ok {
			t.Fatal("expected a budget-category alert")
		}
		if category.Category != "Groceries" || category.Amount != 42000 || category.Limit != 50000 {
			t.Errorf("unexpected category alert payload: %+v", category)
		}
		if len(sink.alerts) != 2 {
			t.Errorf("expected both alerts recorded by the sink, got %d", len(sink.alerts))
		}
	})

	t.Run("below_threshold_is_silent", func(t *testing.T) {
		db, svc, sink, user := newBudgetFixture(t)
		testutil.CreateTestBudget(t, db, user.ID, day(2024, time.March, 1), "Groceries", 50000)
		testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "Groceries", 30000, day(2024, time.March, 5))

		alerts, err := svc.CheckAlerts(context.Background(), user.ID, day(2024, time.March, 15))
		testutil.AssertNoError(t, err)
		if len(alerts) != 0 || len(sink.alerts) != 0 {
			t.Errorf("expected no alerts at 60%%, got %+v", alerts)
		}
	})

	t.Run("disabled_alerts_suppress", func(t *testing.T) {
		db, svc, sink, user := newBudgetFixture(t)
		budget := testutil.CreateTestBudget(t, db, user.ID, day(2024, time.March, 1), "Groceries", 50000)
		err := db.Model(budget).Update("alerts_enabled", false).Error
		testutil.AssertNoError(t, err)
		testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "Groceries", 49000, day(2024, time.March, 5))

		alerts, err := svc.CheckAlerts(context.Background(), user.ID, day(2024, time.March, 15))
		testutil.AssertNoError(t, err)
		if len(alerts) != 0 || len(sink.alerts) != 0 {
			t.Errorf("alerts disabled must suppress emission, got %+v", alerts)
		}
	})

	t.Run("out_of_period_budget_skipped", func(t *testing.T) {
		db, svc, _, user := newBudgetFixture(t)
		testutil.CreateTestBudget(t, db, user.ID, day(2024, time.January, 1), "Groceries", 50000)
		testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "Groceries", 49000, day(2024, time.January, 5))

		alerts, err := svc.CheckAlerts(context.Background(), user.ID, day(2024, time.March, 15))
		testutil.AssertNoError(t, err)
		if len(alerts) != 0 {
			t.Errorf("budgets outside their period must not be checked, got %+v", alerts)
		}
	})

	t.Run("repeat_calls_repeat_alerts", func(t *testing.T) {
		db, svc, sink, user := newBudgetFixture(t)
		testutil.CreateTestBudget(t, db, user.ID, day(2024, time.March, 1), "Groceries", 50000)
		testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "Groceries", 42000, day(2024, time.March, 5))

		_, err := svc.CheckAlerts(context.Background(), user.ID, day(2024, time.March, 15))
		testutil.AssertNoError(t, err)
		_, err = svc.CheckAlerts(context.Background(), user.ID, day(2024, time.March, 15))
		testutil.AssertNoError(t, err)

		// Deduplication is the sink's job, not the evaluator's.
		if len(sink.alerts) != 4 {
			t.Errorf("expected repeat emission across passes, got %d alerts", len(sink.alerts))
		}
	})
}
