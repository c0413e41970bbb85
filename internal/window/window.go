package window

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownUnit is returned for tokens outside year, month, day and hour.
var ErrUnknownUnit = errors.New("unknown time unit")

// Unit is a symbolic retrieval window. Durations are fixed approximations,
// not calendar arithmetic.
type Unit int

const (
	Hour Unit = iota
	Day
	Month
	Year
)

// Units lists every window in ascending length.
var Units = []Unit{Hour, Day, Month, Year}

// ParseUnit accepts exactly "year", "month", "day" or "hour", ignoring case
// and surrounding space.
func ParseUnit(token string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "hour":
		return Hour, nil
	case "day":
		return Day, nil
	case "month":
		return Month, nil
	case "year":
		return Year, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, token)
	}
}

// Seconds returns the fixed length of the window.
func (u Unit) Seconds() int64 {
	switch u {
	case Year:
		return 365 * 86_400
	case Month:
		return 30 * 86_400
	case Day:
		return 86_400
	case Hour:
		return 3_600
	default:
		panic(fmt.Sprintf("window: invalid unit %d", int(u)))
	}
}

// Duration is Seconds as a time.Duration.
func (u Unit) Duration() time.Duration {
	return time.Duration(u.Seconds()) * time.Second
}

// Cutoff is the exclusive lower bound of the window ending at now.
func (u Unit) Cutoff(now time.Time) time.Time {
	return now.Add(-u.Duration())
}

func (u Unit) String() string {
	switch u {
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}
