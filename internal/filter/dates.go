package filter

import (
	"time"

	"github.com/gridbase/gridbase/internal/coltype"
)

// dateWindow computes the half-open [start, end) interval for a
// relative date operator. Weeks start on Monday; everything is
// evaluated in UTC against the injected clock.
func dateWindow(op coltype.Operator, now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch op {
	case coltype.OpToday:
		return today, today.AddDate(0, 0, 1)
	case coltype.OpYesterday:
		return today.AddDate(0, 0, -1), today
	case coltype.OpThisWeek:
		start := startOfWeek(today)
		return start, start.AddDate(0, 0, 7)
	case coltype.OpLastWeek:
		start := startOfWeek(today).AddDate(0, 0, -7)
		return start, start.AddDate(0, 0, 7)
	case coltype.OpThisMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	case coltype.OpLastMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return start, start.AddDate(0, 1, 0)
	case coltype.OpThisYear:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	case coltype.OpLastYear:
		start := time.Date(now.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	default:
		return time.Time{}, time.Time{}
	}
}

func startOfWeek(day time.Time) time.Time {
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started the previous Monday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// isRelativeDateOp reports whether the operator is one of the
// clock-relative date windows.
func isRelativeDateOp(op coltype.Operator) bool {
	switch op {
	case coltype.OpToday, coltype.OpYesterday, coltype.OpThisWeek, coltype.OpLastWeek,
		coltype.OpThisMonth, coltype.OpLastMonth, coltype.OpThisYear, coltype.OpLastYear:
		return true
	}
	return false
}
