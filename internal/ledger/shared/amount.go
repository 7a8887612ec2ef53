package shared

import (
	"time"

	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance for base-amount balance checks, matching the
// DECIMAL(20,6) column precision.
var Epsilon = decimal.New(1, -6)

// WithinEpsilon reports whether a and b differ by at most Epsilon.
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(Epsilon) <= 0
}

const accountingDateLayout = "2006-01-02"

// ParseAccountingDate parses an ISO YYYY-MM-DD date. Time-of-day input is rejected.
func ParseAccountingDate(s string) (time.Time, error) {
	t, err := time.Parse(accountingDateLayout, s)
	if err != nil {
		return time.Time{}, Validationf("invalid accounting date %q", s)
	}
	return t, nil
}

// FormatAccountingDate renders a date as ISO YYYY-MM-DD.
func FormatAccountingDate(t time.Time) string {
	return t.Format(accountingDateLayout)
}

// FiscalYearOf derives the fiscal year from a date. Years before 1900
// cannot carry sequence scopes and fail with ErrInvalidDate.
func FiscalYearOf(date time.Time) (int, error) {
	year := date.Year()
	if year < 1900 || year > 9999 {
		return 0, ErrInvalidDate
	}
	return year, nil
}
