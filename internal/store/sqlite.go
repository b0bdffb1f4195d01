// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	sqlite3 "github.com/mattn/go-sqlite3"

	"chartlab/internal/analysis"
	apperrors "chartlab/internal/errors"
	"chartlab/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db          *sql.DB
	busyTimeout time.Duration
	maxRetries  uint64
	onError     func(op string, err error)
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithBusyTimeout bounds how long a locked write is retried.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithMaxRetries caps the retries of a locked write.
func WithMaxRetries(n uint64) Option {
	return func(s *SQLiteStore) {
		s.maxRetries = n
	}
}

// WithErrorHook is called once for every failed store operation.
func WithErrorHook(fn func(op string, err error)) Option {
	return func(s *SQLiteStore) {
		s.onError = fn
	}
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	store := &SQLiteStore{
		busyTimeout: 5 * time.Second,
		maxRetries:  5,
	}
	for _, opt := range opts {
		opt(store)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on", dbPath, store.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	store.db = db

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles table for OHLCV data, time in unix seconds
	CREATE TABLE IF NOT EXISTS candles (
		symbol TEXT NOT NULL,
		time INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, time)
	);

	-- One row per analysis run; payload holds the report minus indicators and annotations
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		candles INTEGER NOT NULL,
		event_count INTEGER NOT NULL,
		annotation_count INTEGER NOT NULL,
		payload TEXT NOT NULL
	);

	-- Renderer annotations of each run
	CREATE TABLE IF NOT EXISTS annotations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		time INTEGER NOT NULL,
		price REAL NOT NULL,
		kind TEXT NOT NULL,
		label TEXT NOT NULL,
		direction TEXT,
		position TEXT,
		FOREIGN KEY (run_id) REFERENCES analysis_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_symbol_created ON analysis_runs(symbol, created_at);
	CREATE INDEX IF NOT EXISTS idx_annotations_run ON annotations(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isBusy reports whether err is a transient lock error worth retrying.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// write runs fn, retrying with exponential backoff while the database is locked.
func (s *SQLiteStore) write(ctx context.Context, op string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = s.busyTimeout

	err := backoff.Retry(func() error {
		err := fn()
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx))
	if err != nil {
		s.fail(op, err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *SQLiteStore) fail(op string, err error) {
	if s.onError != nil && !errors.Is(err, apperrors.ErrDataNotFound) {
		s.onError(op, err)
	}
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles upserts candles for symbol. Existing candles at the same time
// are replaced.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	for i, c := range candles {
		if err := models.CheckFinite(i, c); err != nil {
			return err
		}
	}

	return s.write(ctx, "save candles", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO candles (symbol, time, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range candles {
			if _, err := stmt.ExecContext(ctx, symbol, c.Time, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// GetCandles retrieves candles in ascending time order.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol string, filter CandleFilter) ([]models.Candle, error) {
	query := "SELECT time, open, high, low, close, volume FROM candles WHERE symbol = ?"
	args := []interface{}{symbol}

	if filter.From != 0 {
		query += " AND time >= ?"
		args = append(args, filter.From)
	}
	if filter.To != 0 {
		query += " AND time <= ?"
		args = append(args, filter.To)
	}
	query += " ORDER BY time DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.fail("get candles", err)
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	candles := make([]models.Candle, 0)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// GetCandlesFreshness returns the time of the most recent candle, or the zero
// time when the symbol has none.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol string) (time.Time, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(time) FROM candles WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil && err != sql.ErrNoRows {
		s.fail("candles freshness", err)
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// ListSymbols returns every symbol with stored candles.
func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]SymbolInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, COUNT(*), MIN(time), MAX(time)
		FROM candles
		GROUP BY symbol
		ORDER BY symbol
	`)
	if err != nil {
		s.fail("list symbols", err)
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	symbols := make([]SymbolInfo, 0)
	for rows.Next() {
		var info SymbolInfo
		if err := rows.Scan(&info.Symbol, &info.Candles, &info.First, &info.Last); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, info)
	}
	return symbols, rows.Err()
}

// DeleteSymbol removes the candles and analysis runs of symbol.
func (s *SQLiteStore) DeleteSymbol(ctx context.Context, symbol string) error {
	return s.write(ctx, "delete symbol", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE run_id IN (SELECT id FROM analysis_runs WHERE symbol = ?)`, symbol); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_runs WHERE symbol = ?`, symbol); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM candles WHERE symbol = ?`, symbol); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ============================================================================
// Analysis Run Methods
// ============================================================================

// SaveReport stores an analysis run and its annotations. Indicator series are
// not persisted.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *analysis.Report) error {
	stored := *report
	stored.Indicators = nil
	stored.Annotations = nil
	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	return s.write(ctx, "save report", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO analysis_runs (id, symbol, created_at, candles, event_count, annotation_count, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, report.RunID, report.Symbol, report.CreatedAt.UnixNano(), report.Candles,
			len(report.Events), len(report.Annotations), string(payload)); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE run_id = ?`, report.RunID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO annotations (run_id, time, price, kind, label, direction, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, a := range report.Annotations {
			if _, err := stmt.ExecContext(ctx, report.RunID, a.Time, a.Price, a.Kind, a.Label, a.Direction, a.Position); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// LatestReport returns the most recent run for symbol.
func (s *SQLiteStore) LatestReport(ctx context.Context, symbol string) (*analysis.Report, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM analysis_runs
		WHERE symbol = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, symbol).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewDataError("report", symbol, "no analysis runs", apperrors.ErrDataNotFound)
	}
	if err != nil {
		s.fail("latest report", err)
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	var report analysis.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	annotations, err := s.annotations(ctx, report.RunID)
	if err != nil {
		return nil, err
	}
	report.Annotations = annotations
	return &report, nil
}

func (s *SQLiteStore) annotations(ctx context.Context, runID string) ([]models.Annotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, price, kind, label, direction, position
		FROM annotations
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		s.fail("get annotations", err)
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer rows.Close()

	annotations := make([]models.Annotation, 0)
	for rows.Next() {
		var a models.Annotation
		var direction, position sql.NullString
		if err := rows.Scan(&a.Time, &a.Price, &a.Kind, &a.Label, &direction, &position); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		a.Direction = direction.String
		a.Position = position.String
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}

// ListRuns returns the most recent runs for symbol, newest first. An empty
// symbol lists runs of every symbol.
func (s *SQLiteStore) ListRuns(ctx context.Context, symbol string, limit int) ([]RunSummary, error) {
	query := "SELECT id, symbol, created_at, candles, event_count, annotation_count FROM analysis_runs"
	args := []interface{}{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.fail("list runs", err)
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var r RunSummary
		var created int64
		if err := rows.Scan(&r.RunID, &r.Symbol, &created, &r.Candles, &r.Events, &r.Annotations); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

var _ DataStore = (*SQLiteStore)(nil)
