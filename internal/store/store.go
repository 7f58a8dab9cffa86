// Package store provides read access to the historical F&O archive and
// persistence for backtest run history.
package store

import (
	"context"
	"time"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
)

// MarketDataStore is the read-only view of the archive the engine runs on.
// Implementations must be safe for concurrent readers. A date with no rows
// is a normal gap and returns an empty slice or ok == false.
type MarketDataStore interface {
	// RecordsFor returns every contract row of symbol traded on date.
	RecordsFor(ctx context.Context, symbol string, date time.Time) ([]models.ContractRecord, error)
	// Spot returns the index close of symbol on date.
	Spot(ctx context.Context, symbol string, date time.Time) (models.SpotRecord, bool, error)
	// SpotSeries returns the spot closes in [from, to] ordered by date.
	SpotSeries(ctx context.Context, symbol string, from, to time.Time) ([]models.SpotRecord, error)
	// ExpiryMarkers returns the expiry reference rows in [from, to] ordered by date.
	ExpiryMarkers(ctx context.Context, symbol string, from, to time.Time) ([]models.ExpiryMarker, error)
	// ContractCount returns the number of contract rows in [from, to].
	ContractCount(ctx context.Context, symbol string, from, to time.Time) (int, error)
}

// ArchiveWriter loads normalised rows into an archive. Rows with an existing
// (date, symbol, instrument, strike, side, expiry) key are replaced.
type ArchiveWriter interface {
	SaveContracts(ctx context.Context, records []models.ContractRecord) error
	SaveSpots(ctx context.Context, spots []models.SpotRecord) error
	SaveExpiryMarkers(ctx context.Context, markers []models.ExpiryMarker) error
}

// ArchiveInfo summarises the archive coverage of one symbol.
type ArchiveInfo struct {
	Symbol    string    `json:"symbol"`
	Contracts int       `json:"contracts"`
	SpotDays  int       `json:"spot_days"`
	Expiries  int       `json:"expiries"`
	FirstDate time.Time `json:"first_date"`
	LastDate  time.Time `json:"last_date"`
}

// Inspector reports archive coverage.
type Inspector interface {
	Info(ctx context.Context, symbol string) (*ArchiveInfo, error)
}

// RunRecord is one persisted backtest execution.
type RunRecord struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Symbol    string        `json:"symbol"`
	DateFrom  time.Time     `json:"date_from"`
	DateTo    time.Time     `json:"date_to"`
	Params    string        `json:"params"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Trades    int           `json:"trades"`
	Skipped   int           `json:"skipped"`
	Filtered  int           `json:"filtered"`
	NetPnL    float64       `json:"net_pnl"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Symbol string
	Limit  int
}

// RunHistory persists backtest executions.
type RunHistory interface {
	SaveRun(ctx context.Context, run *RunRecord) error
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)
	GetRun(ctx context.Context, id string) (*RunRecord, error)
}
