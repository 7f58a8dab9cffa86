package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/logging"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// Store implements the archive interfaces on ClickHouse. Reads use FINAL so
// rows replaced by a later import are never seen twice.
type Store struct {
	conn   *Conn
	logger zerolog.Logger
}

// NewStore creates a new Store.
func NewStore(conn *Conn) *Store {
	return &Store{conn: conn, logger: zerolog.Nop()}
}

// SetLogger sets the logger that receives query timings at debug level.
func (s *Store) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

func (s *Store) logQuery(operation string, started time.Time, err *error) {
	logging.LogQuery(s.logger, "clickhouse", operation, time.Since(started), *err)
}

// Compile-time interface checks.
var (
	_ store.MarketDataStore = (*Store)(nil)
	_ store.ArchiveWriter   = (*Store)(nil)
	_ store.Inspector       = (*Store)(nil)
)

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := utils.DateOnly(t)
	return &d
}

func derefDate(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return utils.DateOnly(*t)
}

// SaveContracts appends contract rows in one batch.
func (s *Store) SaveContracts(ctx context.Context, records []models.ContractRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO contracts (
			date, symbol, instrument, strike, side, expiry, open, high, low, close, turnover, open_interest
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			utils.DateOnly(r.Date), r.Symbol, string(r.Instrument), r.Strike, string(r.Side), utils.DateOnly(r.Expiry),
			r.Open, r.High, r.Low, r.Close, r.Turnover, r.OpenInterest,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// SaveSpots appends spot closes in one batch.
func (s *Store) SaveSpots(ctx context.Context, spots []models.SpotRecord) error {
	if len(spots) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO spot_prices (symbol, date, close)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, sp := range spots {
		if err := batch.Append(sp.Symbol, utils.DateOnly(sp.Date), sp.Close); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// SaveExpiryMarkers appends expiry reference rows in one batch.
func (s *Store) SaveExpiryMarkers(ctx context.Context, markers []models.ExpiryMarker) error {
	if len(markers) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO expiry_calendar (symbol, date, previous_expiry, current_expiry, next_expiry, monthly_expiry)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, m := range markers {
		err := batch.Append(m.Symbol, utils.DateOnly(m.Date),
			nullDate(m.Previous), nullDate(m.Current), nullDate(m.Next), nullDate(m.Monthly))
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// RecordsFor returns every contract row of symbol on date.
func (s *Store) RecordsFor(ctx context.Context, symbol string, date time.Time) (_ []models.ContractRecord, err error) {
	defer s.logQuery("records_for", time.Now(), &err)
	rows, err := s.conn.Query(ctx, `
		SELECT date, symbol, instrument, strike, side, expiry, open, high, low, close, turnover, open_interest
		FROM contracts FINAL
		WHERE symbol = ? AND date = ?
		ORDER BY instrument, expiry, strike, side
	`, symbol, utils.DateOnly(date))
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
		r.Date, r.Expiry = utils.DateOnly(r.Date), utils.DateOnly(r.Expiry)
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
	series, err := s.SpotSeries(ctx, symbol, date, date)
	if err != nil {
		return models.SpotRecord{}, false, err
	}
	if len(series) == 0 {
		return models.SpotRecord{}, false, nil
	}
	return series[0], true, nil
}

// SpotSeries returns the spot closes in [from, to] ordered by date.
func (s *Store) SpotSeries(ctx context.Context, symbol string, from, to time.Time) (_ []models.SpotRecord, err error) {
	defer s.logQuery("spot_series", time.Now(), &err)
	rows, err := s.conn.Query(ctx, `
		SELECT date, close FROM spot_prices FINAL
		WHERE symbol = ? AND date >= ? AND date <= ?
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
	rows, err := s.conn.Query(ctx, `
		SELECT date, previous_expiry, current_expiry, next_expiry, monthly_expiry
		FROM expiry_calendar FINAL
		WHERE symbol = ? AND date >= ? AND date <= ?
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
	var n uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM contracts FINAL WHERE symbol = ? AND date >= ? AND date <= ?
	`, symbol, utils.DateOnly(from), utils.DateOnly(to)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count contracts: %w", err)
	}
	return int(n), nil
}

// Info reports the archive coverage of symbol.
func (s *Store) Info(ctx context.Context, symbol string) (*store.ArchiveInfo, error) {
	info := &store.ArchiveInfo{Symbol: symbol}

	var contracts, expiries, spotDays uint64
	var first, last time.Time
	err := s.conn.QueryRow(ctx, `
		SELECT count(), uniqExact(expiry), min(date), max(date) FROM contracts FINAL WHERE symbol = ?
	`, symbol).Scan(&contracts, &expiries, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("query archive info: %w", err)
	}
	if contracts > 0 {
		info.FirstDate, info.LastDate = utils.DateOnly(first), utils.DateOnly(last)
	}
	info.Contracts, info.Expiries = int(contracts), int(expiries)

	err = s.conn.QueryRow(ctx, `
		SELECT count() FROM spot_prices FINAL WHERE symbol = ?
	`, symbol).Scan(&spotDays)
	if err != nil {
		return nil, fmt.Errorf("count spot days: %w", err)
	}
	info.SpotDays = int(spotDays)
	return info, nil
}
