package fix

import (
	"fmt"
	"time"

	"github.com/quickfixgo/quickfix"
)

// ParseUTCTimestamp parses a FIX UTCTimestamp with second, milli, micro or
// nano precision
func ParseUTCTimestamp(s string) (time.Time, error) {
	var ts quickfix.FIXUTCTimestamp
	if err := ts.Read([]byte(s)); err != nil {
		return time.Time{}, fmt.Errorf("invalid UTC timestamp %q: %w", s, err)
	}
	return ts.Time.UTC(), nil
}

// FormatUTCTimestamp formats t with millisecond precision
func FormatUTCTimestamp(t time.Time) string {
	return string(quickfix.FIXUTCTimestamp{Time: t.UTC(), Precision: quickfix.Millis}.Write())
}
