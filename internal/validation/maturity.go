package validation

import (
	"fmt"
	"time"
)

const maturityLayout = "200601"

// ExpiryDate returns the last trading date for a YYYYMM maturity: the 15th of
// the following month rolled forward to a Friday, minus 30 days.
func ExpiryDate(maturity string) (time.Time, error) {
	month, err := time.Parse(maturityLayout, maturity)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid maturity %q: %w", maturity, err)
	}

	d := time.Date(month.Year(), month.Month()+1, 15, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, -30), nil
}

// Expired reports whether the contract's expiry falls on or before the day
// after now
func Expired(expiry, now time.Time) bool {
	y, m, d := now.Date()
	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
	return !expiry.After(tomorrow)
}
