package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/logging"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// Store implements the archive and run history interfaces on PostgreSQL.
type Store struct {
	pool   *Pool
	logger zerolog.Logger
}

// NewStore creates a new Store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool, logger: zerolog.Nop()}
}

// SetLogger sets the logger that receives query timings at debug level.
func (s *Store) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

func (s *Store) logQuery(operation string, started time.Time, err *error) {
	logging.LogQuery(s.logger, "postgres", operation, time.Since(started), *err)
}

// Compile-time interface checks.
var (
	_ store.MarketDataStore = (*Store)(nil)
	_ store.ArchiveWriter   = (*Store)(nil)
	_ store.Inspector       = (*Store)(nil)
	_ store.RunHistory      = (*Store)(nil)
)

// nullDate maps the zero time to SQL NULL.
func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return utils.DateOnly(t)
}

func derefDate(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return utils.DateOnly(*t)
}

// sendBatch runs the queued statements in one transaction.
func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SaveContracts upserts contract rows atomically.
func (s *Store) SaveContracts(ctx context.Context, records []models.ContractRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO contracts (
			date, symbol, instrument, strike, side, expiry, open, high, low, close, turnover, open_interest
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (symbol, date, instrument, strike, side, expiry) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low, close = EXCLUDED.close,
			turnover = EXCLUDED.turnover, open_interest = EXCLUDED.open_interest
	`

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query,
			utils.DateOnly(r.Date), r.Symbol, string(r.Instrument), r.Strike, string(r.Side), utils.DateOnly(r.Expiry),
			r.Open, r.High, r.Low, r.Close, r.Turnover, r.OpenInterest,
		)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("insert contracts: %w", err)
	}
	return nil
}

// SaveSpots upserts spot closes atomically.
func (s *Store) SaveSpots(ctx context.Context, spots []models.SpotRecord) error {
	if len(spots) == 0 {
		return nil
	}

	query := `
		INSERT INTO spot_prices (symbol, date, close) VALUES ($1, $2, $3)
		ON CONFLICT (symbol, date) DO UPDATE SET close = EXCLUDED.close
	`

	batch := &pgx.Batch{}
	for _, sp := range spots {
		batch.Queue(query, sp.Symbol, utils.DateOnly(sp.Date), sp.Close)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("insert spots: %w", err)
	}
	return nil
}

// SaveExpiryMarkers upserts expiry reference rows atomically.
func (s *Store) SaveExpiryMarkers(ctx context.Context, markers []models.ExpiryMarker) error {
	if len(markers) == 0 {
		return nil
	}

	query := `
		INSERT INTO expiry_calendar (symbol, date, previous_expiry, current_expiry, next_expiry, monthly_expiry)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, date) DO UPDATE SET
			previous_expiry = EXCLUDED.previous_expiry, current_expiry = EXCLUDED.current_expiry,
			next_expiry = EXCLUDED.next_expiry, monthly_expiry = EXCLUDED.monthly_expiry
	`

	batch := &pgx.Batch{}
	for _, m := range markers {
		batch.Queue(query, m.Symbol, utils.DateOnly(m.Date),
			nullDate(m.Previous), nullDate(m.Current), nullDate(m.Next), nullDate(m.Monthly))
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("insert expiry markers: %w", err)
	}
	return nil
}

// RecordsFor returns every contract row of symbol on date.
func (s *Store) RecordsFor(ctx context.Context, symbol string, date time.Time) (_ []models.ContractRecord, err error) {
	defer s.logQuery("records_for", time.Now(), &err)
	query := `
		SELECT date, symbol, instrument, strike, side, expiry, open, high, low, close, turnover, open_interest
		FROM contracts
		WHERE symbol = $1 AND date = $2
		ORDER BY instrument, expiry, strike, side
	`

	rows, err := s.pool.Query(ctx, query, symbol, utils.DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	defer rows.Close()

	var records []models.ContractRecord
	for rows.Next() {
		var r models.ContractRecord
		var instrument, side string
		if err := rows.Scan(&r.Date, &r.Symbol, &instrument, &r.Strike, &side, &r.Expiry,
			&r.Open, &r.High, &r.Low, &r.Close, &r.Turnover, &r.OpenInterest); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		r.Date = utils.DateOnly(r.Date)
		r.Expiry = utils.DateOnly(r.Expiry)
		r.Instrument = models.InstrumentKind(instrument)
		r.Side = models.OptionSide(side)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return records, nil
}

// Spot returns the index close of symbol on date.
func (s *Store) Spot(ctx context.Context, symbol string, date time.Time) (models.SpotRecord, bool, error) {
	var closePrice float64
	err := s.pool.QueryRow(ctx, `
		SELECT close FROM spot_prices WHERE symbol = $1 AND date = $2
	`, symbol, utils.DateOnly(date)).Scan(&closePrice)
	if isNotFoundError(err) {
		return models.SpotRecord{}, false, nil
	}
	if err != nil {
		return models.SpotRecord{}, false, fmt.Errorf("query spot: %w", err)
	}
	return models.SpotRecord{Symbol: symbol, Date: utils.DateOnly(date), Close: closePrice}, true, nil
}

// SpotSeries returns the spot closes in [from, to] ordered by date.
func (s *Store) SpotSeries(ctx context.Context, symbol string, from, to time.Time) (_ []models.SpotRecord, err error) {
	defer s.logQuery("spot_series", time.Now(), &err)
	rows, err := s.pool.Query(ctx, `
		SELECT date, close FROM spot_prices
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`, symbol, utils.DateOnly(from), utils.DateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("query spot series: %w", err)
	}
	defer rows.Close()

	var series []models.SpotRecord
	for rows.Next() {
		sp := models.SpotRecord{Symbol: symbol}
		if err := rows.Scan(&sp.Date, &sp.Close); err != nil {
			return nil, fmt.Errorf("scan spot: %w", err)
		}
		sp.Date = utils.DateOnly(sp.Date)
		series = append(series, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spot series: %w", err)
	}
	return series, nil
}

// ExpiryMarkers returns the expiry reference rows in [from, to] ordered by date.
func (s *Store) ExpiryMarkers(ctx context.Context, symbol string, from, to time.Time) (_ []models.ExpiryMarker, err error) {
	defer s.logQuery("expiry_markers", time.Now(), &err)
	rows, err := s.pool.Query(ctx, `
		SELECT date, previous_expiry, current_expiry, next_expiry, monthly_expiry
		FROM expiry_calendar
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`, symbol, utils.DateOnly(from), utils.DateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("query expiry calendar: %w", err)
	}
	defer rows.Close()

	var markers []models.ExpiryMarker
	for rows.Next() {
		m := models.ExpiryMarker{Symbol: symbol}
		var prev, cur, next, monthly *time.Time
		if err := rows.Scan(&m.Date, &prev, &cur, &next, &monthly); err != nil {
			return nil, fmt.Errorf("scan expiry marker: %w", err)
		}
		m.Date = utils.DateOnly(m.Date)
		m.Previous, m.Current, m.Next, m.Monthly = derefDate(prev), derefDate(cur), derefDate(next), derefDate(monthly)
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expiry calendar: %w", err)
	}
	return markers, nil
}

// ContractCount returns the number of contract rows of symbol in [from, to].
func (s *Store) ContractCount(ctx context.Context, symbol string, from, to time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM contracts WHERE symbol = $1 AND date >= $2 AND date <= $3
	`, symbol, utils.DateOnly(from), utils.DateOnly(to)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count contracts: %w", err)
	}
	return n, nil
}

// Info reports the archive coverage of symbol.
func (s *Store) Info(ctx context.Context, symbol string) (*store.ArchiveInfo, error) {
	info := &store.ArchiveInfo{Symbol: symbol}
	var first, last *time.Time

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT expiry), MIN(date), MAX(date) FROM contracts WHERE symbol = $1
	`, symbol).Scan(&info.Contracts, &info.Expiries, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("query archive info: %w", err)
	}
	info.FirstDate, info.LastDate = derefDate(first), derefDate(last)

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM spot_prices WHERE symbol = $1
	`, symbol).Scan(&info.SpotDays)
	if err != nil {
		return nil, fmt.Errorf("count spot days: %w", err)
	}
	return info, nil
}

// SaveRun records a completed backtest.
func (s *Store) SaveRun(ctx context.Context, run *store.RunRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO backtest_runs (
			id, name, symbol, date_from, date_to, params, started_at, duration_ms, trades, skipped, filtered, net_pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, run.ID, run.Name, run.Symbol, utils.DateOnly(run.DateFrom), utils.DateOnly(run.DateTo), run.Params,
		run.StartedAt.UTC(), run.Duration.Milliseconds(), run.Trades, run.Skipped, run.Filtered, run.NetPnL)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const runColumns = "id, name, symbol, date_from, date_to, params, started_at, duration_ms, trades, skipped, filtered, net_pnl"

func scanRun(row pgx.Row) (*store.RunRecord, error) {
	var r store.RunRecord
	var durationMs int64
	if err := row.Scan(&r.ID, &r.Name, &r.Symbol, &r.DateFrom, &r.DateTo, &r.Params, &r.StartedAt,
		&durationMs, &r.Trades, &r.Skipped, &r.Filtered, &r.NetPnL); err != nil {
		return nil, err
	}
	r.DateFrom, r.DateTo = utils.DateOnly(r.DateFrom), utils.DateOnly(r.DateTo)
	r.StartedAt = r.StartedAt.UTC()
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return &r, nil
}

// ListRuns returns recorded runs, newest first.
func (s *Store) ListRuns(ctx context.Context, filter store.RunFilter) ([]store.RunRecord, error) {
	query := "SELECT " + runColumns + " FROM backtest_runs WHERE ($1 = '' OR symbol = $1) ORDER BY started_at DESC"
	args := []any{filter.Symbol}
	if filter.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []store.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one recorded run.
func (s *Store) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, "SELECT "+runColumns+" FROM backtest_runs WHERE id = $1", id))
	if isNotFoundError(err) {
		return nil, apperrors.Wrapf(apperrors.ErrDataNotFound, "run %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}
