// Package schedule implements the date arithmetic for recurring obligations.
// Every function here is pure: the evaluation time is always passed in by the
// caller and nothing reads the wall clock, so due-date behavior is fully
// deterministic under test.
package schedule

import (
	"time"

	"fintrack/internal/models"
)

// NextDueDate returns the due date following from for the given frequency.
// dayOfMonth (1-31, 0 for none) anchors monthly-style frequencies: the result
// day is clamped to the length of the target month, so an anchor of 31
// resolves to Feb 28/29 rather than overflowing into March.
func NextDueDate(from time.Time, freq models.Frequency, dayOfMonth int) time.Time {
	switch freq {
	case models.FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case models.FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case models.FrequencyBiWeekly:
		return from.AddDate(0, 0, 14)
	case models.FrequencyMonthly:
		return addMonths(from, 1, dayOfMonth)
	case models.FrequencyQuarterly:
		return addMonths(from, 3, dayOfMonth)
	case models.FrequencyYearly:
		return addMonths(from, 12, dayOfMonth)
	}
	return from
}

// FirstDueDate computes the initial due date for an obligation created with
// the given start date. With no anchors the start date itself is first due.
// A monthly dayOfMonth anchor snaps to the first matching (clamped) day on or
// after start; a weekly dayOfWeek anchor (0=Sunday..6=Saturday, -1 for none)
// snaps to the first matching weekday on or after start.
func FirstDueDate(start time.Time, freq models.Frequency, dayOfMonth, dayOfWeek int) time.Time {
	switch freq {
	case models.FrequencyMonthly, models.FrequencyQuarterly, models.FrequencyYearly:
		if dayOfMonth <= 0 {
			return start
		}
		anchored := withDay(start, dayOfMonth)
		if anchored.Before(start) {
			return NextDueDate(anchored, freq, dayOfMonth)
		}
		return anchored
	case models.FrequencyWeekly, models.FrequencyBiWeekly:
		if dayOfWeek < 0 || dayOfWeek > 6 {
			return start
		}
		offset := (dayOfWeek - int(start.Weekday()) + 7) % 7
		return start.AddDate(0, 0, offset)
	}
	return start
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonths advances by whole calendar months, anchoring the result day to
// preferredDay when set (or the source day otherwise) and clamping to the
// target month's length. time.AddDate is avoided because it normalizes
// overflow (Jan 31 + 1 month = Mar 3).
func addMonths(from time.Time, months, preferredDay int) time.Time {
	day := from.Day()
	if preferredDay > 0 {
		day = preferredDay
	}

	first := time.Date(from.Year(), from.Month()+time.Month(months), 1,
		from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
	if max := DaysIn(first.Year(), first.Month()); day > max {
		day = max
	}
	return first.AddDate(0, 0, day-1)
}

// withDay returns t with its day-of-month replaced, clamped to the month.
func withDay(t time.Time, day int) time.Time {
	if max := DaysIn(t.Year(), t.Month()); day > max {
		day = max
	}
	return time.Date(t.Year(), t.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
