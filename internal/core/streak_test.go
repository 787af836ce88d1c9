package core

import "testing"

func TestWorkStreak(t *testing.T) {
	cases := []struct {
		name  string
		dates []string
		want  int
	}{
		{"empty", nil, 0},
		{"single", []string{"2024-01-10"}, 1},
		{"three consecutive", []string{"2024-01-10", "2024-01-09", "2024-01-08"}, 3},
		{"gap breaks", []string{"2024-01-10", "2024-01-08"}, 1},
		{"gap mid-run", []string{"2024-01-10", "2024-01-09", "2024-01-07", "2024-01-06"}, 2},
		{"unsorted input", []string{"2024-01-08", "2024-01-10", "2024-01-09"}, 3},
		{"duplicate dates count once", []string{"2024-01-10", "2024-01-10", "2024-01-09"}, 2},
		{"month boundary", []string{"2024-03-01", "2024-02-29", "2024-02-28"}, 3},
		{"year boundary", []string{"2024-01-01", "2023-12-31"}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var entries []Entry
			for _, d := range tc.dates {
				entries = append(entries, Entry{Date: d, UnitCount: 1, Earnings: 0.2})
			}
			if got := WorkStreak(entries); got != tc.want {
				t.Errorf("WorkStreak(%v) = %d, want %d", tc.dates, got, tc.want)
			}
		})
	}
}

// The streak is anchored at the most recent entry, not at the current
// date: a historical run still counts even when nothing was logged today.
func TestWorkStreakIgnoresToday(t *testing.T) {
	entries := []Entry{
		{Date: "2019-06-03"},
		{Date: "2019-06-02"},
		{Date: "2019-06-01"},
	}
	if got := WorkStreak(entries); got != 3 {
		t.Fatalf("historical streak = %d, want 3", got)
	}
}
