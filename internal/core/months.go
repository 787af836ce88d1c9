package core

import (
	"fmt"
	"sort"
	"time"
)

// Month identifies one calendar month present in the entry set.
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// String renders the month as "YYYY-MM".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Before reports chronological order.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Ref returns a reference time on the first day of the month, suitable
// for the month-bounded statistics functions.
func (m Month) Ref() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// MonthIndex is the ascending set of distinct months with at least one
// entry. History navigation is bounded by its first and last elements.
type MonthIndex []Month

// NewMonthIndex derives the index from an entry snapshot. Entries whose
// date does not parse are skipped.
func NewMonthIndex(entries []Entry) MonthIndex {
	seen := make(map[Month]struct{})
	var ix MonthIndex
	for _, e := range entries {
		t, err := ParseDate(e.Date)
		if err != nil {
			continue
		}
		m := Month{Year: t.Year(), Month: t.Month()}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		ix = append(ix, m)
	}
	sort.Slice(ix, func(i, j int) bool { return ix[i].Before(ix[j]) })
	return ix
}

// Earliest returns the oldest indexed month.
func (ix MonthIndex) Earliest() (Month, bool) {
	if len(ix) == 0 {
		return Month{}, false
	}
	return ix[0], true
}

// Latest returns the newest indexed month.
func (ix MonthIndex) Latest() (Month, bool) {
	if len(ix) == 0 {
		return Month{}, false
	}
	return ix[len(ix)-1], true
}

// Contains reports whether m has at least one entry.
func (ix MonthIndex) Contains(m Month) bool {
	for _, v := range ix {
		if v == m {
			return true
		}
	}
	return false
}

// Prev returns the nearest indexed month before m.
func (ix MonthIndex) Prev(m Month) (Month, bool) {
	for i := len(ix) - 1; i >= 0; i-- {
		if ix[i].Before(m) {
			return ix[i], true
		}
	}
	return Month{}, false
}

// Next returns the nearest indexed month after m.
func (ix MonthIndex) Next(m Month) (Month, bool) {
	for _, v := range ix {
		if m.Before(v) {
			return v, true
		}
	}
	return Month{}, false
}
