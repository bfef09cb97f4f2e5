package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"loyaltyloop/internal/adapters/http/perf"
)

// SQLDB is the database interface used by all stores.
// Both *sql.DB and *TimedDB satisfy this interface.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var _ SQLDB = (*sql.DB)(nil)

// DefaultSlowQuery is the default threshold for slow query warnings.
const DefaultSlowQuery = 50 * time.Millisecond

// QueryObserver receives the statement label and duration of every query.
type QueryObserver func(statement string, d time.Duration)

// TimedDB wraps a *sql.DB to log slow queries and feed the perf collector and an optional observer.
type TimedDB struct {
	db        *sql.DB
	collector *perf.Collector
	observe   QueryObserver
	threshold time.Duration
}

var _ SQLDB = (*TimedDB)(nil)

// TimedOption configures a TimedDB.
type TimedOption func(*TimedDB)

// WithSlowThreshold overrides DefaultSlowQuery. Non-positive values are ignored.
func WithSlowThreshold(d time.Duration) TimedOption {
	return func(t *TimedDB) {
		if d > 0 {
			t.threshold = d
		}
	}
}

// WithObserver attaches a QueryObserver such as a Prometheus histogram.
func WithObserver(o QueryObserver) TimedOption {
	return func(t *TimedDB) { t.observe = o }
}

// NewTimedDB wraps a *sql.DB with timing instrumentation.
// PRE: db is a valid database connection; collector may be nil
// POST: Returns a TimedDB that logs slow queries and records to collector
func NewTimedDB(db *sql.DB, collector *perf.Collector, opts ...TimedOption) *TimedDB {
	t := &TimedDB{db: db, collector: collector, threshold: DefaultSlowQuery}
	for _, o := range opts {
		o(t)
	}
	return t
}

// RawDB returns the underlying *sql.DB.
func (t *TimedDB) RawDB() *sql.DB {
	return t.db
}

// StatementLabel reduces a query to "<verb> <table>" for low-cardinality labels.
// "SELECT id FROM account WHERE ..." becomes "select account".
func StatementLabel(query string) string {
	fields := strings.Fields(strings.ToLower(query))
	if len(fields) == 0 {
		return "unknown"
	}
	verb := fields[0]
	marker := ""
	switch verb {
	case "select", "delete":
		marker = "from"
	case "insert":
		marker = "into"
	case "update":
		if len(fields) > 1 {
			return verb + " " + strings.Trim(fields[1], "();")
		}
		return verb
	default:
		return verb
	}
	for i := 1; i < len(fields)-1; i++ {
		if fields[i] == marker {
			return verb + " " + strings.Trim(fields[i+1], "();")
		}
	}
	return verb
}

func (t *TimedDB) record(statement string, start time.Time) {
	elapsed := time.Since(start)
	durationMs := float64(elapsed.Microseconds()) / 1000.0

	if elapsed >= t.threshold {
		slog.Warn("slow_query",
			"statement", statement,
			"duration_ms", durationMs,
		)
	} else {
		slog.Debug("query",
			"statement", statement,
			"duration_ms", durationMs,
		)
	}

	if t.collector != nil {
		t.collector.Record(perf.Entry{
			Kind:       perf.KindQuery,
			Path:       statement,
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
	if t.observe != nil {
		t.observe(statement, elapsed)
	}
}

// ExecContext wraps sql.DB.ExecContext with timing.
// POST: timing recorded even when the statement fails
func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	t.record(StatementLabel(query), start)
	return result, err
}

// QueryContext wraps sql.DB.QueryContext with timing.
func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.record(StatementLabel(query), start)
	return rows, err
}

// QueryRowContext wraps sql.DB.QueryRowContext with timing.
func (t *TimedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.record(StatementLabel(query), start)
	return row
}

// BeginTx wraps sql.DB.BeginTx with timing.
func (t *TimedDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	start := time.Now()
	tx, err := t.db.BeginTx(ctx, opts)
	t.record("begin", start)
	return tx, err
}

// PingContext verifies the database connection.
func (t *TimedDB) PingContext(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (t *TimedDB) Close() error {
	return t.db.Close()
}
