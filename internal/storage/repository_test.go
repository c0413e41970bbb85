package storage

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"water-telemetry/internal/config"
	"water-telemetry/internal/reading"
	"water-telemetry/internal/window"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	db, err := OpenDB(ctx, config.DatabaseConfig{Driver: "duckdb"})
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	store := NewStore(db, time.UTC)
	t.Cleanup(func() { _ = store.Close() })

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store
}

func readingAt(sent int64, ph, tds float64) reading.Reading {
	return reading.Reading{
		PH:       ph,
		PHTime:   time.Unix(sent-2, 0).UTC(),
		TDS:      tds,
		TDSTime:  time.Unix(sent-1, 0).UTC(),
		SentTime: time.Unix(sent, 0).UTC(),
	}
}

func TestInsertAndQueryRangeSingleReading(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in, err := reading.Validate(readingAt(1700000005, 7.2, 650.0).Raw(), time.UTC)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := store.Insert(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.QueryRange(ctx, time.Unix(1699999999, 0))
	if err != nil {
		t.Fatalf("query range: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(got))
	}
	if got[0].PH != 7.2 || got[0].TDS != 650.0 {
		t.Fatalf("unexpected values %+v", got[0])
	}
	if !got[0].PHTime.Equal(in.PHTime) || !got[0].TDSTime.Equal(in.TDSTime) || !got[0].SentTime.Equal(in.SentTime) {
		t.Fatalf("timestamps not preserved: %+v vs %+v", got[0], in)
	}
}

func TestQueryRangeIsStrictlyAfterCutoff(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sent := []int64{1000, 2000, 3000, 4000, 5000}
	for i, ts := range sent {
		if err := store.Insert(ctx, readingAt(ts, float64(i), float64(i*100))); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	for _, cutoff := range []int64{0, 999, 1000, 1001, 2500, 4999, 5000, 9999} {
		got, err := store.QueryRange(ctx, time.Unix(cutoff, 0))
		if err != nil {
			t.Fatalf("query range %d: %v", cutoff, err)
		}

		var want []int64
		for _, ts := range sent {
			if ts > cutoff {
				want = append(want, ts)
			}
		}
		if len(got) != len(want) {
			t.Fatalf("cutoff %d: got %d readings, want %d", cutoff, len(got), len(want))
		}
		for i := range want {
			if got[i].SentTime.Unix() != want[i] {
				t.Fatalf("cutoff %d: reading %d sent at %d, want %d", cutoff, i, got[i].SentTime.Unix(), want[i])
			}
		}
	}
}

func TestConcurrentInsertsAreAllPersisted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const workers = 64
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Insert(ctx, readingAt(int64(10_000+i), 7, float64(i)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := store.QueryRange(ctx, time.Unix(math.MinInt32, 0))
	if err != nil {
		t.Fatalf("query range: %v", err)
	}
	if len(got) != workers {
		t.Fatalf("expected %d rows, got %d", workers, len(got))
	}
	seen := make(map[float64]bool, workers)
	for _, r := range got {
		if seen[r.TDS] {
			t.Fatalf("duplicate row for tds %v", r.TDS)
		}
		seen[r.TDS] = true
	}

	count, err := store.Count(ctx)
	if err != nil || count != workers {
		t.Fatalf("count = %d, %v", count, err)
	}
}

func TestHourWindowIncludesRecentExcludesOld(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	recent := readingAt(now.Add(-30*time.Second).Unix(), 7.0, 500)
	old := readingAt(now.Add(-7200*time.Second).Unix(), 6.0, 400)
	for _, r := range []reading.Reading{recent, old} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := store.QueryRange(ctx, window.Hour.Cutoff(now))
	if err != nil {
		t.Fatalf("query range: %v", err)
	}
	if len(got) != 1 || !got[0].SentTime.Equal(recent.SentTime) {
		t.Fatalf("expected only the recent reading, got %+v", got)
	}
}

func TestListRecentNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, ts := range []int64{100, 300, 200} {
		if err := store.Insert(ctx, readingAt(ts, 7, 500)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(got) != 2 || got[0].SentTime.Unix() != 300 || got[1].SentTime.Unix() != 200 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	store := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Insert(context.Background(), readingAt(1, 7, 500)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestNilStoreNotConfigured(t *testing.T) {
	var store *Store
	if _, err := store.QueryRange(context.Background(), time.Now()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db, time.UTC), mock
}

func TestQueryRangeCorruptRowIsFatal(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"ph", "ph_timestamp", "tds", "tds_timestamp", "sent_timestamp"}).
		AddRow(7.0, int64(100), 500.0, int64(100), int64(101)).
		AddRow(7.1, int64(math.MaxInt64), 510.0, int64(100), int64(102))
	mock.ExpectQuery(listReadingsSinceSQL).WithArgs(int64(50)).WillReturnRows(rows)

	got, err := store.QueryRange(context.Background(), time.Unix(50, 0))
	if got != nil {
		t.Fatalf("no readings should be returned on corruption, got %+v", got)
	}
	var ce *CorruptionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CorruptionError, got %v", err)
	}
	if ce.PHTimestamp != math.MaxInt64 || !errors.Is(err, reading.ErrInvalidPHTimestamp) {
		t.Fatalf("unexpected corruption detail: %+v", ce)
	}
	if !IsCorruption(err) {
		t.Fatal("IsCorruption should report true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertSurfacesStorageError(t *testing.T) {
	store, mock := newMockStore(t)

	r := readingAt(1700000005, 7.2, 650)
	mock.ExpectExec(insertReadingSQL).
		WithArgs(7.2, int64(1700000003), 650.0, int64(1700000004), int64(1700000005)).
		WillReturnError(sql.ErrConnDone)

	err := store.Insert(context.Background(), r)
	if !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("expected wrapped ErrConnDone, got %v", err)
	}
	if IsCorruption(err) {
		t.Fatal("storage failure must not be reported as corruption")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQueryRangeSurfacesStorageError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(listReadingsSinceSQL).WithArgs(int64(0)).WillReturnError(errors.New("boom"))

	if _, err := store.QueryRange(context.Background(), time.Unix(0, 0)); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOpenDBCreatesDuckDBDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "db", "readings.duckdb")

	db, err := OpenDB(context.Background(), config.DatabaseConfig{Driver: "duckdb", DSN: dsn})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(dsn)); err != nil {
		t.Fatalf("expected parent directory: %v", err)
	}
}

func TestOpenDBRequiresPostgresDSN(t *testing.T) {
	if _, err := OpenDB(context.Background(), config.DatabaseConfig{Driver: "pgx"}); err == nil {
		t.Fatal("expected error for empty pgx dsn")
	}
}
