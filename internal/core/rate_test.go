package core

import (
	"math"
	"testing"
)

func TestRateEarnings(t *testing.T) {
	r := DefaultRate()
	cases := []struct {
		count int
		want  float64
	}{
		{500, 100.00},
		{0, 0},
		{1, 0.20},
		{3, 0.60},
		{999999, 199999.80},
		{-5, 0},      // negative fails closed
		{1000000, 0}, // above the input bound fails closed
	}
	for _, tc := range cases {
		if got := r.Earnings(tc.count); got != tc.want {
			t.Errorf("Earnings(%d) = %v, want %v", tc.count, got, tc.want)
		}
	}
}

func TestSanitizeCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"abc", 0},
		{"12.9", 12},
		{"-3", 0},
		{"", 0},
		{"500", 500},
		{" 42 ", 42},
		{"0", 0},
		{"1000000.9", 1000000}, // sanitized but still invalid; IsValidCount rejects it
	}
	for _, tc := range cases {
		if got := SanitizeCount(tc.in); got != tc.want {
			t.Errorf("SanitizeCount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestIsValidCount(t *testing.T) {
	cases := []struct {
		in   float64
		want bool
	}{
		{0, true},
		{500, true},
		{999999, true},
		{1000000, false},
		{-1, false},
		{math.NaN(), false},
	}
	for _, tc := range cases {
		if got := IsValidCount(tc.in); got != tc.want {
			t.Errorf("IsValidCount(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	r := DefaultRate()
	cases := []struct {
		in   float64
		want string
	}{
		{100, "₱100.00"},
		{0.5, "₱0.50"},
		{0, "₱0.00"},
		{math.NaN(), "₱0.00"},
	}
	for _, tc := range cases {
		if got := r.FormatAmount(tc.in); got != tc.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSettingsRate(t *testing.T) {
	s := DefaultSettings()
	r := s.Rate()
	if r.PerUnit != DefaultRatePerUnit || r.Symbol != "₱" {
		t.Fatalf("default settings rate = %+v", r)
	}

	s.Currency = "EUR"
	s.RatePerUnit = 0.35
	r = s.Rate()
	if r.PerUnit != 0.35 || r.Symbol != "€" {
		t.Fatalf("eur settings rate = %+v", r)
	}

	// A corrupt non-positive rate falls back to the default.
	s.RatePerUnit = 0
	if got := s.Rate().PerUnit; got != DefaultRatePerUnit {
		t.Fatalf("zero rate fallback = %v", got)
	}
}

func TestSettingsPatchApply(t *testing.T) {
	s := DefaultSettings()
	rate := 0.25
	theme := "dark"
	SettingsPatch{RatePerUnit: &rate, Theme: &theme}.Apply(&s)
	if s.RatePerUnit != 0.25 || s.Theme != "dark" {
		t.Fatalf("patched settings = %+v", s)
	}
	if s.Currency != "PHP" || s.DateFormat != "YYYY-MM-DD" {
		t.Fatalf("untouched fields changed: %+v", s)
	}

	bad := -1.0
	SettingsPatch{RatePerUnit: &bad}.Apply(&s)
	if s.RatePerUnit != 0.25 {
		t.Fatalf("negative rate applied: %v", s.RatePerUnit)
	}
}
