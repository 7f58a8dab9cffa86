// Package premium resolves the settlement price of a fully specified
// contract with an explicit expiry tolerance fallback.
package premium

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/logging"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// IntrinsicMode controls expiry-day exit pricing.
type IntrinsicMode string

const (
	// IntrinsicZeroClose prices an expiry-day exit at intrinsic value only
	// when the matched close is exactly zero.
	IntrinsicZeroClose IntrinsicMode = "zero_close"
	// IntrinsicAlways prices every matched expiry-day exit at intrinsic value.
	IntrinsicAlways IntrinsicMode = "always"
	// IntrinsicNever always uses the matched close.
	IntrinsicNever IntrinsicMode = "never"
)

// DefaultToleranceDays is the expiry tolerance used when none is configured.
const DefaultToleranceDays = 1

// Key identifies one contract on one date.
type Key struct {
	Date       time.Time
	Symbol     string
	Instrument models.InstrumentKind
	Strike     float64
	Side       models.OptionSide
	Expiry     time.Time
	// Tick is the strike step; strikes within half a tick match.
	Tick float64
}

func (k Key) String() string {
	if k.Instrument == models.InstrumentFuture {
		return fmt.Sprintf("%s FUT exp %s on %s", k.Symbol, k.Expiry.Format(utils.DateLayout), k.Date.Format(utils.DateLayout))
	}
	return fmt.Sprintf("%s %.2f %s exp %s on %s", k.Symbol, k.Strike, k.Side,
		k.Expiry.Format(utils.DateLayout), k.Date.Format(utils.DateLayout))
}

// Quote is a resolved premium.
type Quote struct {
	Close    float64
	Turnover float64
	// Strike and Expiry are the values of the matched row.
	Strike float64
	Expiry time.Time
	// ToleranceHit is set when the row matched on a neighbouring expiry.
	ToleranceHit bool
	// IntrinsicUsed is set when Close was replaced by intrinsic value.
	IntrinsicUsed bool
}

// Candidate is one strike of an option chain.
type Candidate struct {
	Strike       float64
	Premium      float64
	Turnover     float64
	Expiry       time.Time
	ToleranceHit bool
}

// Lookup resolves premiums against a market data store.
type Lookup struct {
	store         store.MarketDataStore
	toleranceDays int
	intrinsic     IntrinsicMode
	logger        zerolog.Logger
}

// Option configures a Lookup.
type Option func(*Lookup)

// WithToleranceDays sets the expiry tolerance window in calendar days.
func WithToleranceDays(days int) Option {
	return func(l *Lookup) { l.toleranceDays = days }
}

// WithIntrinsicMode sets the expiry-day exit pricing mode.
func WithIntrinsicMode(mode IntrinsicMode) Option {
	return func(l *Lookup) { l.intrinsic = mode }
}

// WithLogger sets the logger used for tolerance warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Lookup) { l.logger = logger }
}

// New creates a Lookup over st.
func New(st store.MarketDataStore, opts ...Option) *Lookup {
	l := &Lookup{
		store:         st,
		toleranceDays: DefaultToleranceDays,
		intrinsic:     IntrinsicZeroClose,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func normSide(s models.OptionSide) string {
	return strings.ToUpper(strings.TrimSpace(string(s)))
}

// matches reports whether row satisfies key on everything but expiry.
func matches(row models.ContractRecord, key Key) bool {
	if !strings.EqualFold(row.Symbol, key.Symbol) || row.Instrument != key.Instrument {
		return false
	}
	if normSide(row.Side) != normSide(key.Side) {
		return false
	}
	if key.Instrument == models.InstrumentFuture {
		return true
	}
	return math.Abs(row.Strike-key.Strike) <= 0.5*key.Tick
}

// offsets returns the expiry offsets tried by the tolerance fallback,
// nearest first and earlier before later.
func (l *Lookup) offsets() []int {
	out := make([]int, 0, 2*l.toleranceDays)
	for d := 1; d <= l.toleranceDays; d++ {
		out = append(out, -d, d)
	}
	return out
}

// best picks the row closest to the requested strike, lower strike on ties.
func best(rows []models.ContractRecord, strike float64) models.ContractRecord {
	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := math.Abs(rows[i].Strike-strike), math.Abs(rows[j].Strike-strike)
		if di != dj {
			return di < dj
		}
		return rows[i].Strike < rows[j].Strike
	})
	return rows[0]
}

// Quote resolves the premium of key: exact expiry first, then the tolerance
// window, otherwise ErrPremiumMiss. It never substitutes a zero or a
// neighbouring strike.
func (l *Lookup) Quote(ctx context.Context, key Key) (Quote, error) {
	key.Date = utils.DateOnly(key.Date)
	key.Expiry = utils.DateOnly(key.Expiry)

	rows, err := l.store.RecordsFor(ctx, key.Symbol, key.Date)
	if err != nil {
		return Quote{}, apperrors.NewDataError("contracts", key.Symbol, "records lookup failed", err)
	}

	byExpiry := make(map[time.Time][]models.ContractRecord)
	for _, row := range rows {
		if matches(row, key) {
			exp := utils.DateOnly(row.Expiry)
			byExpiry[exp] = append(byExpiry[exp], row)
		}
	}

	if exact := byExpiry[key.Expiry]; len(exact) > 0 {
		row := best(exact, key.Strike)
		return Quote{Close: row.Close, Turnover: row.Turnover, Strike: row.Strike, Expiry: key.Expiry}, nil
	}

	for _, off := range l.offsets() {
		exp := key.Expiry.AddDate(0, 0, off)
		if near := byExpiry[exp]; len(near) > 0 {
			row := best(near, key.Strike)
			logging.LogToleranceHit(l.logger, key.Date, key.Expiry, exp, key.Strike, string(key.Side))
			return Quote{
				Close:        row.Close,
				Turnover:     row.Turnover,
				Strike:       row.Strike,
				Expiry:       exp,
				ToleranceHit: true,
			}, nil
		}
	}

	return Quote{}, apperrors.Wrap(apperrors.ErrPremiumMiss, key.String())
}

// Intrinsic returns the cash settlement value of an option at spot.
func Intrinsic(side models.OptionSide, strike, spot float64) float64 {
	switch side {
	case models.SideCall:
		return math.Max(spot-strike, 0)
	case models.SidePut:
		return math.Max(strike-spot, 0)
	}
	return 0
}

// ExitPrice resolves an exit premium. When the exit date is the contract
// expiry the configured intrinsic mode may replace the matched close with
// the settlement value at spot. It is never used at entry.
func (l *Lookup) ExitPrice(ctx context.Context, key Key, spot float64) (Quote, error) {
	q, err := l.Quote(ctx, key)
	if err != nil {
		return q, err
	}

	if key.Instrument != models.InstrumentOption || !utils.DateOnly(key.Date).Equal(utils.DateOnly(key.Expiry)) {
		return q, nil
	}

	switch l.intrinsic {
	case IntrinsicAlways:
	case IntrinsicZeroClose:
		if q.Close != 0 {
			return q, nil
		}
	default:
		return q, nil
	}

	q.Close = Intrinsic(key.Side, q.Strike, spot)
	q.IntrinsicUsed = true
	return q, nil
}

// Chain returns the positive-premium strikes of one side and expiry on date,
// ordered by strike. Rows on the exact expiry are used when present,
// otherwise the nearest expiry inside the tolerance window.
func (l *Lookup) Chain(ctx context.Context, date time.Time, symbol string, side models.OptionSide, expiry time.Time) ([]Candidate, error) {
	date = utils.DateOnly(date)
	expiry = utils.DateOnly(expiry)

	rows, err := l.store.RecordsFor(ctx, symbol, date)
	if err != nil {
		return nil, apperrors.NewDataError("contracts", symbol, "chain lookup failed", err)
	}

	byExpiry := make(map[time.Time][]Candidate)
	for _, row := range rows {
		if row.Instrument != models.InstrumentOption || normSide(row.Side) != normSide(side) {
			continue
		}
		if !strings.EqualFold(row.Symbol, symbol) || row.Close <= 0 {
			continue
		}
		exp := utils.DateOnly(row.Expiry)
		byExpiry[exp] = append(byExpiry[exp], Candidate{
			Strike:   row.Strike,
			Premium:  row.Close,
			Turnover: row.Turnover,
			Expiry:   exp,
		})
	}

	chain := byExpiry[expiry]
	if len(chain) == 0 {
		for _, off := range l.offsets() {
			if near := byExpiry[expiry.AddDate(0, 0, off)]; len(near) > 0 {
				chain = near
				for i := range chain {
					chain[i].ToleranceHit = true
				}
				break
			}
		}
	}

	sort.Slice(chain, func(i, j int) bool { return chain[i].Strike < chain[j].Strike })
	return chain, nil
}
