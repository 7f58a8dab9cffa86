package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/logging"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// SQLiteStore keeps the archive and the run history in one SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

var (
	_ MarketDataStore = (*SQLiteStore)(nil)
	_ ArchiveWriter   = (*SQLiteStore)(nil)
	_ Inspector       = (*SQLiteStore)(nil)
	_ RunHistory      = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the archive at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db, logger: zerolog.Nop()}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes. Dates are stored as
// YYYY-MM-DD text.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- End-of-day contract rows (bhavcopy)
	CREATE TABLE IF NOT EXISTS contracts (
		date TEXT NOT NULL,
		symbol TEXT NOT NULL,
		instrument TEXT NOT NULL,
		strike REAL NOT NULL DEFAULT 0,
		side TEXT NOT NULL DEFAULT '',
		expiry TEXT NOT NULL,
		open REAL,
		high REAL,
		low REAL,
		close REAL NOT NULL,
		turnover REAL,
		open_interest REAL,
		PRIMARY KEY (date, symbol, instrument, strike, side, expiry)
	);

	-- Index closes
	CREATE TABLE IF NOT EXISTS spot_prices (
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		close REAL NOT NULL,
		PRIMARY KEY (symbol, date)
	);

	-- Expiry reference table
	CREATE TABLE IF NOT EXISTS expiry_calendar (
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		previous_expiry TEXT,
		current_expiry TEXT,
		next_expiry TEXT,
		monthly_expiry TEXT,
		PRIMARY KEY (symbol, date)
	);

	-- Backtest run history
	CREATE TABLE IF NOT EXISTS backtest_runs (
		id TEXT PRIMARY KEY,
		name TEXT,
		symbol TEXT NOT NULL,
		date_from TEXT NOT NULL,
		date_to TEXT NOT NULL,
		params TEXT,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		trades INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		filtered INTEGER NOT NULL,
		net_pnl REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_contracts_symbol_date ON contracts(symbol, date);
	CREATE INDEX IF NOT EXISTS idx_contracts_expiry ON contracts(symbol, expiry);
	CREATE INDEX IF NOT EXISTS idx_runs_symbol ON backtest_runs(symbol);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON backtest_runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SetLogger sets the logger that receives query timings at debug level.
func (s *SQLiteStore) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

func (s *SQLiteStore) logQuery(operation string, started time.Time, err *error) {
	logging.LogQuery(s.logger, "sqlite", operation, time.Since(started), *err)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(utils.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(utils.DateLayout, s)
}

func parseNullDate(ns sql.NullString) (time.Time, error) {
	if !ns.Valid {
		return time.Time{}, nil
	}
	return parseDate(ns.String)
}

// ============================================================================
// Archive Writes
// ============================================================================

// SaveContracts upserts contract rows in one transaction.
func (s *SQLiteStore) SaveContracts(ctx context.Context, records []models.ContractRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO contracts (date, symbol, instrument, strike, side, expiry, open, high, low, close, turnover, open_interest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx, formatDate(r.Date), r.Symbol, string(r.Instrument), r.Strike, string(r.Side),
			formatDate(r.Expiry), r.Open, r.High, r.Low, r.Close, r.Turnover, r.OpenInterest)
		if err != nil {
			return fmt.Errorf("failed to insert contract: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SaveSpots upserts spot closes in one transaction.
func (s *SQLiteStore) SaveSpots(ctx context.Context, spots []models.SpotRecord) error {
	if len(spots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO spot_prices (symbol, date, close) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sp := range spots {
		if _, err := stmt.ExecContext(ctx, sp.Symbol, formatDate(sp.Date), sp.Close); err != nil {
			return fmt.Errorf("failed to insert spot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SaveExpiryMarkers upserts expiry reference rows in one transaction.
func (s *SQLiteStore) SaveExpiryMarkers(ctx context.Context, markers []models.ExpiryMarker) error {
	if len(markers) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO expiry_calendar (symbol, date, previous_expiry, current_expiry, next_expiry, monthly_expiry)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''))
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range markers {
		_, err := stmt.ExecContext(ctx, m.Symbol, formatDate(m.Date), formatDate(m.Previous),
			formatDate(m.Current), formatDate(m.Next), formatDate(m.Monthly))
		if err != nil {
			return fmt.Errorf("failed to insert expiry marker: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ============================================================================
// Archive Reads
// ============================================================================

// RecordsFor returns all contract rows of symbol on date.
func (s *SQLiteStore) RecordsFor(ctx context.Context, symbol string, date time.Time) (_ []models.ContractRecord, err error) {
	defer s.logQuery("records_for", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, symbol, instrument, strike, side, expiry,
		       COALESCE(open, 0), COALESCE(high, 0), COALESCE(low, 0), close,
		       COALESCE(turnover, 0), COALESCE(open_interest, 0)
		FROM contracts
		WHERE symbol = ? AND date = ?
		ORDER BY instrument, expiry, strike, side
	`, symbol, formatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var records []models.ContractRecord
	for rows.Next() {
		var r models.ContractRecord
		var day, expiry, instrument, side string
		if err := rows.Scan(&day, &r.Symbol, &instrument, &r.Strike, &side, &expiry,
			&r.Open, &r.High, &r.Low, &r.Close, &r.Turnover, &r.OpenInterest); err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		if r.Date, err = parseDate(day); err != nil {
			return nil, fmt.Errorf("failed to parse contract date: %w", err)
		}
		if r.Expiry, err = parseDate(expiry); err != nil {
			return nil, fmt.Errorf("failed to parse contract expiry: %w", err)
		}
		r.Instrument = models.InstrumentKind(instrument)
		r.Side = models.OptionSide(side)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contracts: %w", err)
	}

	return records, nil
}

// Spot returns the index close of symbol on date.
func (s *SQLiteStore) Spot(ctx context.Context, symbol string, date time.Time) (models.SpotRecord, bool, error) {
	var closePrice float64
	err := s.db.QueryRowContext(ctx, `
		SELECT close FROM spot_prices WHERE symbol = ? AND date = ?
	`, symbol, formatDate(date)).Scan(&closePrice)
	if err == sql.ErrNoRows {
		return models.SpotRecord{}, false, nil
	}
	if err != nil {
		return models.SpotRecord{}, false, fmt.Errorf("failed to query spot: %w", err)
	}
	return models.SpotRecord{Symbol: symbol, Date: utils.DateOnly(date), Close: closePrice}, true, nil
}

// SpotSeries returns the spot closes in [from, to].
func (s *SQLiteStore) SpotSeries(ctx context.Context, symbol string, from, to time.Time) (_ []models.SpotRecord, err error) {
	defer s.logQuery("spot_series", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, close FROM spot_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query spot series: %w", err)
	}
	defer rows.Close()

	var series []models.SpotRecord
	for rows.Next() {
		var day string
		sp := models.SpotRecord{Symbol: symbol}
		if err := rows.Scan(&day, &sp.Close); err != nil {
			return nil, fmt.Errorf("failed to scan spot: %w", err)
		}
		if sp.Date, err = parseDate(day); err != nil {
			return nil, fmt.Errorf("failed to parse spot date: %w", err)
		}
		series = append(series, sp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating spot series: %w", err)
	}

	return series, nil
}

// ExpiryMarkers returns the expiry reference rows in [from, to].
func (s *SQLiteStore) ExpiryMarkers(ctx context.Context, symbol string, from, to time.Time) (_ []models.ExpiryMarker, err error) {
	defer s.logQuery("expiry_markers", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, previous_expiry, current_expiry, next_expiry, monthly_expiry
		FROM expiry_calendar
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query expiry calendar: %w", err)
	}
	defer rows.Close()

	var markers []models.ExpiryMarker
	for rows.Next() {
		var day string
		var prev, cur, next, monthly sql.NullString
		if err := rows.Scan(&day, &prev, &cur, &next, &monthly); err != nil {
			return nil, fmt.Errorf("failed to scan expiry marker: %w", err)
		}

		m := models.ExpiryMarker{Symbol: symbol}
		if m.Date, err = parseDate(day); err != nil {
			return nil, fmt.Errorf("failed to parse marker date: %w", err)
		}
		for _, f := range []struct {
			dst *time.Time
			src sql.NullString
		}{{&m.Previous, prev}, {&m.Current, cur}, {&m.Next, next}, {&m.Monthly, monthly}} {
			if *f.dst, err = parseNullDate(f.src); err != nil {
				return nil, fmt.Errorf("failed to parse marker expiry: %w", err)
			}
		}
		markers = append(markers, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expiry calendar: %w", err)
	}

	return markers, nil
}

// ContractCount returns the number of contract rows of symbol in [from, to].
func (s *SQLiteStore) ContractCount(ctx context.Context, symbol string, from, to time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM contracts WHERE symbol = ? AND date >= ? AND date <= ?
	`, symbol, formatDate(from), formatDate(to)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count contracts: %w", err)
	}
	return n, nil
}

// Info reports the archive coverage of symbol.
func (s *SQLiteStore) Info(ctx context.Context, symbol string) (*ArchiveInfo, error) {
	info := &ArchiveInfo{Symbol: symbol}
	var first, last sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT expiry), MIN(date), MAX(date) FROM contracts WHERE symbol = ?
	`, symbol).Scan(&info.Contracts, &info.Expiries, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive info: %w", err)
	}
	if info.FirstDate, err = parseNullDate(first); err != nil {
		return nil, err
	}
	if info.LastDate, err = parseNullDate(last); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM spot_prices WHERE symbol = ?
	`, symbol).Scan(&info.SpotDays)
	if err != nil {
		return nil, fmt.Errorf("failed to count spot days: %w", err)
	}

	return info, nil
}

// ============================================================================
// Run History
// ============================================================================

// SaveRun records a completed backtest.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backtest_runs (id, name, symbol, date_from, date_to, params, started_at, duration_ms, trades, skipped, filtered, net_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Name, run.Symbol, formatDate(run.DateFrom), formatDate(run.DateTo), run.Params,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.Duration.Milliseconds(),
		run.Trades, run.Skipped, run.Filtered, run.NetPnL)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const runColumns = "id, COALESCE(name, ''), symbol, date_from, date_to, COALESCE(params, ''), started_at, duration_ms, trades, skipped, filtered, net_pnl"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var r RunRecord
	var from, to, started string
	var durationMs int64
	if err := row.Scan(&r.ID, &r.Name, &r.Symbol, &from, &to, &r.Params, &started, &durationMs,
		&r.Trades, &r.Skipped, &r.Filtered, &r.NetPnL); err != nil {
		return nil, err
	}

	var err error
	if r.DateFrom, err = parseDate(from); err != nil {
		return nil, fmt.Errorf("failed to parse run date_from: %w", err)
	}
	if r.DateTo, err = parseDate(to); err != nil {
		return nil, fmt.Errorf("failed to parse run date_to: %w", err)
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("failed to parse run start: %w", err)
	}
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return &r, nil
}

// ListRuns returns recorded runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := "SELECT " + runColumns + " FROM backtest_runs WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}

	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// GetRun returns one recorded run.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM backtest_runs WHERE id = ?", id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.Wrapf(apperrors.ErrDataNotFound, "run %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}
