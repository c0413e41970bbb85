package reading

import (
	"errors"
	"time"

	"water-telemetry/internal/packet"
)

var (
	// ErrInvalidPHTimestamp rejects a packet whose pH timestamp is unrepresentable.
	ErrInvalidPHTimestamp = errors.New("invalid pH timestamp in raw packet")
	// ErrInvalidTDSTimestamp rejects a packet whose TDS timestamp is unrepresentable.
	ErrInvalidTDSTimestamp = errors.New("invalid TDS timestamp in raw packet")
	// ErrInvalidPacketTimestamp rejects a packet whose sent timestamp is unrepresentable.
	ErrInvalidPacketTimestamp = errors.New("invalid packet timestamp")

	errOutOfRange = errors.New("unix timestamp outside representable range")
)

// Calendar bounds (proleptic Gregorian, years -262143..262142) for both the
// UTC instant and its local wall clock.
var (
	minUnix = time.Date(-262143, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	maxUnix = time.Date(262142, time.December, 31, 23, 59, 59, 0, time.UTC).Unix()
)

// Reading is a validated packet with each timestamp resolved in a fixed zone.
// SentTime records when the packet as a whole was complete, which is later
// than or equal to either metric's own time.
type Reading struct {
	PH       float64
	PHTime   time.Time
	TDS      float64
	TDSTime  time.Time
	SentTime time.Time
}

// Validate converts raw into a Reading. Timestamps are checked pH first, then
// TDS, then sent; the first failure is returned.
func Validate(raw packet.Raw, loc *time.Location) (Reading, error) {
	phTime, err := ToZoned(raw.PHTimestamp, loc)
	if err != nil {
		return Reading{}, ErrInvalidPHTimestamp
	}
	tdsTime, err := ToZoned(raw.TDSTimestamp, loc)
	if err != nil {
		return Reading{}, ErrInvalidTDSTimestamp
	}
	sentTime, err := ToZoned(raw.SentTimestamp, loc)
	if err != nil {
		return Reading{}, ErrInvalidPacketTimestamp
	}

	return Reading{
		PH:       raw.PH,
		PHTime:   phTime,
		TDS:      raw.TDS,
		TDSTime:  tdsTime,
		SentTime: sentTime,
	}, nil
}

// ToZoned resolves unix seconds in loc. A unix second names a single instant,
// so the result is the earliest (and only) local time for it.
func ToZoned(sec int64, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if sec < minUnix || sec > maxUnix {
		return time.Time{}, errOutOfRange
	}

	t := time.Unix(sec, 0).In(loc)
	_, offset := t.Zone()
	if wall := sec + int64(offset); wall < minUnix || wall > maxUnix {
		return time.Time{}, errOutOfRange
	}
	return t, nil
}

// Raw converts r back into its wire form. Validate(r.Raw(), loc) reproduces r
// for the zone r was resolved in.
func (r Reading) Raw() packet.Raw {
	return packet.Raw{
		PH:            r.PH,
		PHTimestamp:   r.PHTime.Unix(),
		TDS:           r.TDS,
		TDSTimestamp:  r.TDSTime.Unix(),
		SentTimestamp: r.SentTime.Unix(),
	}
}
