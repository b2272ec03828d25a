package schedule

import (
	"fmt"
	"strings"
)

// ErrUnknownUnit is returned by ToMillis for any unit string not in the
// canonical table. Unknown units are never silently coerced.
var ErrUnknownUnit = fmt.Errorf("schedule: unknown delay unit")

var unitMillis = map[string]int64{
	"ms": 1, "milliseconds": 1,
	"s": 1000, "sec": 1000, "seconds": 1000,
	"m": 60 * 1000, "min": 60 * 1000, "minutes": 60 * 1000,
	"h": 60 * 60 * 1000, "hours": 60 * 60 * 1000,
	"d": 24 * 60 * 60 * 1000, "days": 24 * 60 * 60 * 1000,
	"w": 7 * 24 * 60 * 60 * 1000, "weeks": 7 * 24 * 60 * 60 * 1000,
}

// ToMillis converts (value, unit) into raw milliseconds using the canonical
// unit table. Unit matching is case-insensitive; unrecognized units are a
// hard error rather than a silent default.
func ToMillis(value int64, unit string) (int64, error) {
	factor, ok := unitMillis[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	return value * factor, nil
}
