package core

// Settings is the small user preference record persisted alongside the
// entries. Fields missing from storage fall back to defaults on read;
// saves merge field-by-field and never replace the whole record.
type Settings struct {
	RatePerUnit float64 `json:"ratePerUnit"`
	Currency    string  `json:"currency"`
	Theme       string  `json:"theme"`
	DateFormat  string  `json:"dateFormat"`
}

// DefaultSettings returns the record lazily created on first read.
func DefaultSettings() Settings {
	return Settings{
		RatePerUnit: DefaultRatePerUnit,
		Currency:    "PHP",
		Theme:       "light",
		DateFormat:  "YYYY-MM-DD",
	}
}

// SettingsPatch is a partial settings update; nil fields keep their
// prior values.
type SettingsPatch struct {
	RatePerUnit *float64 `json:"ratePerUnit,omitempty"`
	Currency    *string  `json:"currency,omitempty"`
	Theme       *string  `json:"theme,omitempty"`
	DateFormat  *string  `json:"dateFormat,omitempty"`
}

// Apply merges the patch into s. A non-positive rate is ignored so a bad
// patch cannot zero out earnings calculations.
func (p SettingsPatch) Apply(s *Settings) {
	if p.RatePerUnit != nil && *p.RatePerUnit > 0 {
		s.RatePerUnit = *p.RatePerUnit
	}
	if p.Currency != nil {
		s.Currency = *p.Currency
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.DateFormat != nil {
		s.DateFormat = *p.DateFormat
	}
}

var currencySymbols = map[string]string{
	"PHP": "₱",
	"EUR": "€",
	"USD": "$",
}

// Rate derives the active piece rate from the settings. Unknown currency
// codes fall back to the code itself as the display prefix.
func (s Settings) Rate() Rate {
	sym, ok := currencySymbols[s.Currency]
	if !ok {
		sym = s.Currency + " "
	}
	per := s.RatePerUnit
	if per <= 0 {
		per = DefaultRatePerUnit
	}
	return Rate{PerUnit: per, Currency: s.Currency, Symbol: sym}
}
