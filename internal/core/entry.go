package core

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

const (
	// DateLayout is the canonical calendar-day format used as the entry key.
	// Dates are timezone-naive: a plain calendar day, not an instant.
	DateLayout = "2006-01-02"

	// MaxUnitCount bounds sanitized user input. Storage-level validation
	// deliberately does not re-check it; see DESIGN.md.
	MaxUnitCount = 999999
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidCount  = errors.New("invalid unit count")
	ErrInvalidAmount = errors.New("invalid earnings amount")
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Entry is one calendar day's logged production. Date is the unique key;
// the store guarantees at most one entry per date.
type Entry struct {
	Date         string  `json:"date"`
	UnitCount    int     `json:"unitCount"`
	Earnings     float64 `json:"earnings"`
	LastModified int64   `json:"lastModified,omitempty"`
}

// Validate checks the structural invariants shared by save and import.
func (e Entry) Validate() error {
	if !IsDate(e.Date) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, e.Date)
	}
	if e.UnitCount < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCount, e.UnitCount)
	}
	if e.Earnings < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, e.Earnings)
	}
	return nil
}

// EntryPatch is a partial update merged field-by-field against an Entry.
// Nil fields keep their prior values; the fixed schema means unknown
// fields cannot sneak into storage.
type EntryPatch struct {
	UnitCount *int     `json:"unitCount,omitempty"`
	Earnings  *float64 `json:"earnings,omitempty"`
}

// Apply merges the patch into e.
func (p EntryPatch) Apply(e *Entry) {
	if p.UnitCount != nil {
		e.UnitCount = *p.UnitCount
	}
	if p.Earnings != nil {
		e.Earnings = *p.Earnings
	}
}

// IsZero reports whether the patch carries no fields.
func (p EntryPatch) IsZero() bool {
	return p.UnitCount == nil && p.Earnings == nil
}

// IsDate reports whether s is a well-formed YYYY-MM-DD calendar day.
func IsDate(s string) bool {
	return dateRe.MatchString(s)
}

// DateOf renders t as a canonical calendar-day string.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a canonical calendar-day string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// PrevDay returns the calendar day before date, or "" if date is malformed.
func PrevDay(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return ""
	}
	return DateOf(t.AddDate(0, 0, -1))
}
