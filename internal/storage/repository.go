package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"water-telemetry/internal/reading"
)

const (
	createReadingsSQL = `CREATE TABLE IF NOT EXISTS readings (
        ph             FLOAT8,
        ph_timestamp   BIGINT,
        tds            FLOAT8,
        tds_timestamp  BIGINT,
        sent_timestamp BIGINT
    );`

	insertReadingSQL = `INSERT INTO readings (
        ph,
        ph_timestamp,
        tds,
        tds_timestamp,
        sent_timestamp
    ) VALUES (
        $1,$2,$3,$4,$5
    );`

	listReadingsSinceSQL = `SELECT
        ph,
        ph_timestamp,
        tds,
        tds_timestamp,
        sent_timestamp
    FROM readings
    WHERE sent_timestamp > $1
    ORDER BY sent_timestamp;`

	listRecentReadingsSQL = `SELECT
        ph,
        ph_timestamp,
        tds,
        tds_timestamp,
        sent_timestamp
    FROM readings
    ORDER BY sent_timestamp DESC
    LIMIT $1;`

	countReadingsSQL = `SELECT COUNT(*) FROM readings;`
)

// ReadingStore defines durable, append-only reading persistence.
type ReadingStore interface {
	Insert(ctx context.Context, r reading.Reading) error
	QueryRange(ctx context.Context, cutoff time.Time) ([]reading.Reading, error)
}

// ReadingBrowser exposes listing helpers used by operator commands.
type ReadingBrowser interface {
	ListRecent(ctx context.Context, limit int) ([]reading.Reading, error)
	Count(ctx context.Context) (int64, error)
}

// Store owns the single database handle. Every operation, read or write, runs
// under one mutex, so a query always observes all inserts that returned
// before it started.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	loc     *time.Location
	started time.Time
	closed  bool
}

// NewStore wraps db. Rows are resolved into loc on the way out.
func NewStore(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{db: db, loc: loc, started: time.Now()}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.db == nil {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Uptime reports how long the store has been open.
func (s *Store) Uptime() time.Duration {
	return time.Since(s.started)
}

// Location is the zone returned readings are resolved in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// lock acquires the store mutex and returns the handle, or an error with the
// mutex released.
func (s *Store) lock() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	return s.db, nil
}

// EnsureSchema creates the readings relation if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	db, err := s.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, err := db.ExecContext(ctx, createReadingsSQL); err != nil {
		return fmt.Errorf("create readings table: %w", err)
	}
	return nil
}

// Ping checks the database handle is alive.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	return db.PingContext(ctx)
}

// Insert persists one reading as a single statement.
func (s *Store) Insert(ctx context.Context, r reading.Reading) error {
	db, err := s.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	rec := rowFromReading(r)
	if _, err := db.ExecContext(ctx, insertReadingSQL,
		rec.PH,
		rec.PHTimestamp,
		rec.TDS,
		rec.TDSTimestamp,
		rec.SentTimestamp,
	); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// QueryRange returns every reading sent strictly after cutoff, oldest first.
// A row that fails re-validation aborts the query with a CorruptionError.
func (s *Store) QueryRange(ctx context.Context, cutoff time.Time) ([]reading.Reading, error) {
	db, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	rows, err := db.QueryContext(ctx, listReadingsSinceSQL, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("query readings since: %w", err)
	}
	return s.collect(rows, 0)
}

// ListRecent returns the newest readings, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]reading.Reading, error) {
	db, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	rows, err := db.QueryContext(ctx, listRecentReadingsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent readings: %w", err)
	}
	return s.collect(rows, limit)
}

// Count returns the number of persisted readings.
func (s *Store) Count(ctx context.Context) (int64, error) {
	db, err := s.lock()
	if err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	var count int64
	if err := db.QueryRowContext(ctx, countReadingsSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return count, nil
}

func (s *Store) collect(rows *sql.Rows, capacity int) ([]reading.Reading, error) {
	defer rows.Close()

	readings := make([]reading.Reading, 0, capacity)
	for rows.Next() {
		r, err := s.scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return readings, nil
}

func (s *Store) scanReading(rows *sql.Rows) (reading.Reading, error) {
	var rec row
	if err := rows.Scan(
		&rec.PH,
		&rec.PHTimestamp,
		&rec.TDS,
		&rec.TDSTimestamp,
		&rec.SentTimestamp,
	); err != nil {
		return reading.Reading{}, fmt.Errorf("scan reading: %w", err)
	}

	r, err := reading.Validate(rec.packet(), s.loc)
	if err != nil {
		return reading.Reading{}, &CorruptionError{
			PH:            rec.PH,
			PHTimestamp:   rec.PHTimestamp,
			TDS:           rec.TDS,
			TDSTimestamp:  rec.TDSTimestamp,
			SentTimestamp: rec.SentTimestamp,
			Err:           err,
		}
	}
	return r, nil
}

var (
	_ ReadingStore   = (*Store)(nil)
	_ ReadingBrowser = (*Store)(nil)
)
