package storage

import (
	"water-telemetry/internal/packet"
	"water-telemetry/internal/reading"
)

// row is the persisted shape of a reading: raw values plus unix seconds.
type row struct {
	PH            float64
	PHTimestamp   int64
	TDS           float64
	TDSTimestamp  int64
	SentTimestamp int64
}

func rowFromReading(r reading.Reading) row {
	return row(r.Raw())
}

func (r row) packet() packet.Raw {
	return packet.Raw(r)
}
