package core

import "sort"

// WorkStreak returns the length of the run of consecutive calendar days
// ending at the most recent logged day, each day having at least one
// entry. The streak is anchored at the most recent entry, not at today:
// a day without logging yet does not reset it, only a gap between logged
// days does.
func WorkStreak(entries []Entry) int {
	if len(entries) == 0 {
		return 0
	}

	// Multiple entries on one date count as a single day present.
	seen := make(map[string]struct{}, len(entries))
	dates := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Date]; dup {
			continue
		}
		seen[e.Date] = struct{}{}
		dates = append(dates, e.Date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	streak := 1
	anchor := dates[0]
	for _, d := range dates[1:] {
		prev := PrevDay(anchor)
		if prev == "" || d != prev {
			break
		}
		streak++
		anchor = d
	}
	return streak
}
