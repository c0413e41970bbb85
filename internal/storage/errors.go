package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates the store has no database handle.
	ErrNotConfigured = errors.New("storage: database not configured")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("storage: store closed")
)

// CorruptionError reports a persisted row whose timestamps no longer convert.
// It is never recoverable: the row is not skipped and not repaired.
type CorruptionError struct {
	PH            float64
	PHTimestamp   int64
	TDS           float64
	TDSTimestamp  int64
	SentTimestamp int64
	Err           error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("storage: corrupt reading row (ph_ts=%d tds_ts=%d sent_ts=%d): %v",
		e.PHTimestamp, e.TDSTimestamp, e.SentTimestamp, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// IsCorruption reports whether err carries a CorruptionError.
func IsCorruption(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}
