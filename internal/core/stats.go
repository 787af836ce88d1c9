package core

import (
	"math"
	"time"
)

// Statistics are pure functions over an entry snapshot. The reference
// time anchoring "current week" and "current month" is always an explicit
// parameter so the calculations are deterministic in tests.

// TotalEarnings sums earnings over all entries.
func TotalEarnings(entries []Entry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Earnings
	}
	return total
}

// WeekOf returns the inclusive [Sunday, Saturday] calendar-day bounds of
// the week containing ref.
func WeekOf(ref time.Time) (start, end string) {
	s := ref.AddDate(0, 0, -int(ref.Weekday()))
	return DateOf(s), DateOf(s.AddDate(0, 0, 6))
}

// MonthOf returns the inclusive [first, last] calendar-day bounds of the
// month containing ref.
func MonthOf(ref time.Time) (start, end string) {
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	return DateOf(first), DateOf(first.AddDate(0, 1, -1))
}

// WeeklyEarnings sums earnings for entries whose date falls in the week
// containing ref.
func WeeklyEarnings(entries []Entry, ref time.Time) float64 {
	start, end := WeekOf(ref)
	return sumRange(entries, start, end)
}

// MonthlyEarnings sums earnings for entries whose date falls in the month
// containing ref.
func MonthlyEarnings(entries []Entry, ref time.Time) float64 {
	start, end := MonthOf(ref)
	return sumRange(entries, start, end)
}

// EntriesForMonth filters entries to the month containing ref.
func EntriesForMonth(entries []Entry, ref time.Time) []Entry {
	start, end := MonthOf(ref)
	var out []Entry
	for _, e := range entries {
		if e.Date >= start && e.Date <= end {
			out = append(out, e)
		}
	}
	return out
}

// DailyAverage returns the mean unit count per logged day, rounded to the
// nearest integer. Empty input yields 0.
func DailyAverage(entries []Entry) int {
	if len(entries) == 0 {
		return 0
	}
	var total int
	for _, e := range entries {
		total += e.UnitCount
	}
	return int(math.Round(float64(total) / float64(len(entries))))
}

// DistinctMonthsCount counts the distinct (year, month) pairs present.
func DistinctMonthsCount(entries []Entry) int {
	return len(NewMonthIndex(entries))
}

// sumRange sums earnings over the inclusive [start, end] date range.
// Lexicographic comparison is chronological for YYYY-MM-DD strings.
func sumRange(entries []Entry, start, end string) float64 {
	var total float64
	for _, e := range entries {
		if e.Date >= start && e.Date <= end {
			total += e.Earnings
		}
	}
	return total
}
