package schedule

import (
	"testing"
	"time"

	"fintrack/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextDueDateFixedIntervals(t *testing.T) {
	from := date(2024, time.March, 10)

	cases := []struct {
		name string
		freq models.Frequency
		days int
	}{
		{"daily", models.FrequencyDaily, 1},
		{"weekly", models.FrequencyWeekly, 7},
		{"bi_weekly", models.FrequencyBiWeekly, 14},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next := NextDueDate(from, tc.freq, 0)
			if got := int(next.Sub(from).Hours() / 24); got != tc.days {
				t.Errorf("expected interval of %d days, got %d", tc.days, got)
			}
		})
	}
}

func TestNextDueDateMonthly(t *testing.T) {
	t.Run("plain_month_advance", func(t *testing.T) {
		next := NextDueDate(date(2024, time.March, 10), models.FrequencyMonthly, 0)
		if !next.Equal(date(2024, time.April, 10)) {
			t.Errorf("expected 2024-04-10, got %v", next)
		}
	})

	t.Run("day_31_clamps_to_february", func(t *testing.T) {
		next := NextDueDate(date(2024, time.January, 31), models.FrequencyMonthly, 31)
		if !next.Equal(date(2024, time.February, 29)) {
			t.Errorf("expected leap-year 2024-02-29, got %v", next)
		}

		next = NextDueDate(date(2023, time.January, 31), models.FrequencyMonthly, 31)
		if !next.Equal(date(2023, time.February, 28)) {
			t.Errorf("expected 2023-02-28, got %v", next)
		}
	})

	t.Run("anchor_resurfaces_after_short_month", func(t *testing.T) {
		// Clamped to Feb 29, the anchor of 31 still applies in March.
		next := NextDueDate(date(2024, time.February, 29), models.FrequencyMonthly, 31)
		if !next.Equal(date(2024, time.March, 31)) {
			t.Errorf("expected 2024-03-31, got %v", next)
		}
	})

	t.Run("no_overflow_without_anchor", func(t *testing.T) {
		next := NextDueDate(date(2024, time.January, 31), models.FrequencyMonthly, 0)
		if !next.Equal(date(2024, time.February, 29)) {
			t.Errorf("expected 2024-02-29, got %v", next)
		}
	})

	t.Run("year_rollover", func(t *testing.T) {
		next := NextDueDate(date(2024, time.December, 15), models.FrequencyMonthly, 15)
		if !next.Equal(date(2025, time.January, 15)) {
			t.Errorf("expected 2025-01-15, got %v", next)
		}
	})
}

func TestNextDueDateQuarterly(t *testing.T) {
	next := NextDueDate(date(2024, time.January, 15), models.FrequencyQuarterly, 0)
	if !next.Equal(date(2024, time.April, 15)) {
		t.Errorf("expected 2024-04-15, got %v", next)
	}

	// Nov 30 + 3 months lands in February and must clamp.
	next = NextDueDate(date(2023, time.November, 30), models.FrequencyQuarterly, 0)
	if !next.Equal(date(2024, time.February, 29)) {
		t.Errorf("expected 2024-02-29, got %v", next)
	}
}

func TestNextDueDateYearly(t *testing.T) {
	next := NextDueDate(date(2024, time.June, 1), models.FrequencyYearly, 0)
	if !next.Equal(date(2025, time.June, 1)) {
		t.Errorf("expected 2025-06-01, got %v", next)
	}

	// Feb 29 in a leap year clamps to Feb 28 the year after.
	next = NextDueDate(date(2024, time.February, 29), models.FrequencyYearly, 0)
	if !next.Equal(date(2025, time.February, 28)) {
		t.Errorf("expected 2025-02-28, got %v", next)
	}
}

func TestNextDueDateIsPure(t *testing.T) {
	from := date(2024, time.January, 31)
	first := NextDueDate(from, models.FrequencyMonthly, 31)
	second := NextDueDate(from, models.FrequencyMonthly, 31)
	if !first.Equal(second) {
		t.Errorf("same inputs produced %v and %v", first, second)
	}
}

func TestFirstDueDate(t *testing.T) {
	t.Run("defaults_to_start", func(t *testing.T) {
		start := date(2024, time.January, 15)
		if got := FirstDueDate(start, models.FrequencyDaily, 0, -1); !got.Equal(start) {
			t.Errorf("expected start date, got %v", got)
		}
	})

	t.Run("monthly_anchor_on_start_day", func(t *testing.T) {
		start := date(2024, time.January, 15)
		if got := FirstDueDate(start, models.FrequencyMonthly, 15, -1); !got.Equal(start) {
			t.Errorf("expected 2024-01-15, got %v", got)
		}
	})

	t.Run("monthly_anchor_later_in_month", func(t *testing.T) {
		start := date(2024, time.January, 10)
		if got := FirstDueDate(start, models.FrequencyMonthly, 20, -1); !got.Equal(date(2024, time.January, 20)) {
			t.Errorf("expected 2024-01-20, got %v", got)
		}
	})

	t.Run("monthly_anchor_already_passed", func(t *testing.T) {
		start := date(2024, time.January, 25)
		if got := FirstDueDate(start, models.FrequencyMonthly, 10, -1); !got.Equal(date(2024, time.February, 10)) {
			t.Errorf("expected 2024-02-10, got %v", got)
		}
	})

	t.Run("weekly_anchor_next_weekday", func(t *testing.T) {
		// 2024-01-15 is a Monday; anchor on Friday (5).
		start := date(2024, time.January, 15)
		if got := FirstDueDate(start, models.FrequencyWeekly, 0, 5); !got.Equal(date(2024, time.January, 19)) {
			t.Errorf("expected 2024-01-19, got %v", got)
		}
	})

	t.Run("weekly_anchor_same_weekday", func(t *testing.T) {
		start := date(2024, time.January, 15)
		if got := FirstDueDate(start, models.FrequencyWeekly, 0, 1); !got.Equal(start) {
			t.Errorf("expected start Monday, got %v", got)
		}
	})
}

func TestDaysIn(t *testing.T) {
	if got := DaysIn(2024, time.February); got != 29 {
		t.Errorf("expected 29 days in Feb 2024, got %d", got)
	}
	if got := DaysIn(2023, time.February); got != 28 {
		t.Errorf("expected 28 days in Feb 2023, got %d", got)
	}
	if got := DaysIn(2024, time.April); got != 30 {
		t.Errorf("expected 30 days in Apr 2024, got %d", got)
	}
}
