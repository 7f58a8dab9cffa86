// Package engine runs a strategy definition across its expiry cycles and
// aggregates the surviving trades.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/analytics"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/calendar"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/diagnostics"
	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/expiry"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/legsim"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/logging"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/performance"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/premium"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/strike"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// minLookbackDays is the calendar-day history loaded before date_from on
// top of twice the largest entry offset.
const minLookbackDays = 10

// markerLookahead covers the next and monthly markers of cycles near date_to.
const markerLookahead = 45

// Result is the outcome of one backtest.
type Result struct {
	Trades      []models.Trade      `json:"trades"`
	Summary     models.Summary      `json:"summary"`
	Pivot       models.PivotTable   `json:"pivot"`
	Diagnostics []diagnostics.Entry `json:"diagnostics"`
}

// Options tunes a run.
type Options struct {
	Workers       int
	ToleranceDays int
	Intrinsic     premium.IntrinsicMode
	LookbackDays  int
	Logger        zerolog.Logger
}

// Option configures Options.
type Option func(*Options)

// WithWorkers sets the number of cycle workers.
func WithWorkers(n int) Option { return func(o *Options) { o.Workers = n } }

// WithToleranceDays sets the premium expiry tolerance window.
func WithToleranceDays(days int) Option { return func(o *Options) { o.ToleranceDays = days } }

// WithIntrinsicMode sets the expiry-day exit pricing mode.
func WithIntrinsicMode(mode premium.IntrinsicMode) Option {
	return func(o *Options) { o.Intrinsic = mode }
}

// WithLookbackDays sets the minimum calendar history before date_from.
func WithLookbackDays(days int) Option { return func(o *Options) { o.LookbackDays = days } }

// WithLogger sets the run logger.
func WithLogger(logger zerolog.Logger) Option { return func(o *Options) { o.Logger = logger } }

func defaultOptions() Options {
	return Options{
		Workers:       runtime.NumCPU(),
		ToleranceDays: premium.DefaultToleranceDays,
		Intrinsic:     premium.IntrinsicZeroClose,
		Logger:        zerolog.Nop(),
	}
}

// Engine runs strategies against one market data store. It holds no
// per-run state and is safe for concurrent Simulate calls.
type Engine struct {
	market store.MarketDataStore
	opts   Options
}

// New creates an Engine.
func New(market store.MarketDataStore, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{market: market, opts: o}
}

// Simulate is shorthand for New(market, opts...).Simulate(ctx, def).
func Simulate(ctx context.Context, def *models.StrategyDefinition, market store.MarketDataStore, opts ...Option) (*Result, error) {
	return New(market, opts...).Simulate(ctx, def)
}

// run is the state of one Simulate call.
type run struct {
	def       *models.StrategyDefinition
	market    *store.CachedStore
	calendar  *calendar.Calendar
	schedules map[models.ExpiryWindow]*expiry.Schedule
	sim       *legsim.Simulator
	diag      *diagnostics.Collector
	logger    zerolog.Logger
}

// outcome is the result of one cycle.
type outcome struct {
	trade    *models.Trade
	err      error
	leg      int
	filtered bool
}

// Simulate validates def, loads the calendar and expiry schedules, runs every
// cycle in [DateFrom, DateTo] and aggregates the trades. Validation errors and
// total data absence fail the run; per-cycle failures are skipped and
// reported in the summary and diagnostics.
func (e *Engine) Simulate(ctx context.Context, def *models.StrategyDefinition) (*Result, error) {
	if def == nil {
		return nil, apperrors.NewValidationError("strategy", nil, "required")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := logging.WithSymbol(e.opts.Logger, def.Index)

	r, err := e.prepare(ctx, def, logger)
	if err != nil {
		return nil, err
	}

	cycles := r.schedules[def.ExpiryWindow].Cycles(def.DateFrom, def.DateTo)
	if len(cycles) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrDataUnavailable,
			fmt.Sprintf("no %s %s expiries between %s and %s", def.Index, def.ExpiryWindow,
				def.DateFrom.Format(utils.DateLayout), def.DateTo.Format(utils.DateLayout)))
	}
	if err := r.checkFirstCycle(cycles[0]); err != nil {
		return nil, err
	}

	outcomes := make([]outcome, len(cycles))
	r.applySpotFilter(ctx, cycles, outcomes)

	if err := e.runCycles(ctx, r, cycles, outcomes); err != nil {
		return nil, err
	}

	res := r.merge(cycles, outcomes)
	logging.LogRunSummary(logger, len(res.Trades), res.Summary.CyclesSkipped, res.Summary.CyclesFiltered,
		res.Summary.TotalPnL, time.Since(start))
	return res, nil
}

func (e *Engine) prepare(ctx context.Context, def *models.StrategyDefinition, logger zerolog.Logger) (*run, error) {
	from, to := utils.DateOnly(def.DateFrom), utils.DateOnly(def.DateTo)
	lookback := max(e.opts.LookbackDays, minLookbackDays+2*def.MaxEntryDays())
	histFrom := from.AddDate(0, 0, -lookback)

	market := store.NewCachedStore(e.market)

	series, err := market.SpotSeries(ctx, def.Index, histFrom, to)
	if err != nil {
		return nil, apperrors.NewDataError("spot", def.Index, "spot series", err)
	}
	if len(series) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrDataUnavailable, "no spot prices for "+def.Index)
	}
	market.PrimeSpots(series)

	count, err := market.ContractCount(ctx, def.Index, from, to)
	if err != nil {
		return nil, apperrors.NewDataError("contracts", def.Index, "contract count", err)
	}
	if count == 0 {
		return nil, apperrors.Wrap(apperrors.ErrDataUnavailable, "no contracts for "+def.Index)
	}

	markers, err := market.ExpiryMarkers(ctx, def.Index, histFrom, to.AddDate(0, 0, markerLookahead))
	if err != nil {
		return nil, apperrors.NewDataError("expiry", def.Index, "expiry markers", err)
	}

	schedules := make(map[models.ExpiryWindow]*expiry.Schedule)
	windows := []models.ExpiryWindow{def.ExpiryWindow}
	for _, leg := range def.Legs {
		windows = append(windows, leg.Window(def.ExpiryWindow))
	}
	for _, w := range windows {
		if _, ok := schedules[w]; ok {
			continue
		}
		s, err := expiry.Build(def.Index, w, markers)
		if err != nil {
			return nil, err
		}
		if s.Len() == 0 {
			return nil, apperrors.Wrap(apperrors.ErrDataUnavailable, fmt.Sprintf("no %s expiries for %s", w, def.Index))
		}
		schedules[w] = s
	}

	cal := calendar.FromSpots(series)
	lookup := premium.New(market,
		premium.WithToleranceDays(e.opts.ToleranceDays),
		premium.WithIntrinsicMode(e.opts.Intrinsic),
		premium.WithLogger(logger),
	)

	logger.Debug().
		Int("calendar_days", cal.Len()).
		Int("lookback_days", lookback).
		Int("markers", len(markers)).
		Msg("Run data loaded")

	return &run{
		def:       def,
		market:    market,
		calendar:  cal,
		schedules: schedules,
		sim: &legsim.Simulator{
			Calendar: cal,
			Pricer:   lookup,
			Strikes:  strike.NewResolver(lookup),
			Spots:    market,
			Symbol:   def.Index,
			LotSize:  def.LotSize(),
			Tick:     def.TickSize(),
			Logger:   logger,
		},
		diag:   diagnostics.New(),
		logger: logger,
	}, nil
}

// checkFirstCycle fails the run when any leg's offsets already run past the
// available history on the first cycle.
func (r *run) checkFirstCycle(c expiry.Cycle) error {
	for i, leg := range r.def.Legs {
		for _, days := range []int{leg.Entry.Days, leg.Exit.Days} {
			if _, err := r.calendar.NthBefore(c.Anchor, days); err != nil {
				return apperrors.NewCycleError(c.Anchor, i, legsim.StageSchedule, err)
			}
		}
	}
	return nil
}

// entrySpot returns the spot on the cycle's earliest entry date.
func (r *run) entrySpot(ctx context.Context, c expiry.Cycle) (float64, bool) {
	d, err := r.calendar.NthBefore(c.Anchor, r.def.MaxEntryDays())
	if err != nil {
		return 0, false
	}
	rec, ok, err := r.market.Spot(ctx, r.def.Index, d)
	if err != nil || !ok {
		return 0, false
	}
	return rec.Close, true
}

// applySpotFilter marks cycles whose entry spot did not move far enough from
// the previous cycle's entry spot. The first cycle always passes, as does a
// cycle whose entry spot cannot be read.
func (r *run) applySpotFilter(ctx context.Context, cycles []expiry.Cycle, outcomes []outcome) {
	adj := r.def.SpotAdjustment
	if adj == nil {
		return
	}

	prev, havePrev := 0.0, false
	for i, c := range cycles {
		cur, ok := r.entrySpot(ctx, c)
		if !ok {
			havePrev = false
			continue
		}
		if havePrev && !PassesSpotFilter(*adj, prev, cur) {
			outcomes[i].filtered = true
			r.diag.Filtered(c.Anchor, fmt.Sprintf("%s %.2f: entry spot %.2f vs previous %.2f", adj.Mode, adj.Threshold, cur, prev))
		}
		prev, havePrev = cur, true
	}
}

// PassesSpotFilter reports whether cur moved from prev as adj requires.
func PassesSpotFilter(adj models.SpotAdjustment, prev, cur float64) bool {
	diff := cur - prev
	pct := 0.0
	if prev != 0 {
		pct = 100 * diff / prev
	}
	switch adj.Mode {
	case models.SpotRisePoints:
		return diff >= adj.Threshold
	case models.SpotFallPoints:
		return -diff >= adj.Threshold
	case models.SpotRisePct:
		return pct >= adj.Threshold
	case models.SpotFallPct:
		return -pct >= adj.Threshold
	case models.SpotMovePoints:
		return diff >= adj.Threshold || -diff >= adj.Threshold
	case models.SpotMovePct:
		return pct >= adj.Threshold || -pct >= adj.Threshold
	}
	return true
}

// runCycles simulates the unfiltered cycles on a bounded worker pool.
// Each worker writes only its own outcome slot.
func (e *Engine) runCycles(ctx context.Context, r *run, cycles []expiry.Cycle, outcomes []outcome) error {
	pool := performance.NewWorkerPool(e.opts.Workers)
	pool.Start()
	defer pool.Stop()

	var wg sync.WaitGroup
	for i := range cycles {
		if outcomes[i].filtered {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}

		wg.Add(1)
		err := pool.SubmitContext(ctx, func() {
			defer wg.Done()
			outcomes[i] = r.runCycle(ctx, cycles[i])
		})
		if err != nil {
			wg.Done()
			break
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// runCycle runs every leg of one cycle. The first skipped leg drops the
// whole cycle.
func (r *run) runCycle(ctx context.Context, c expiry.Cycle) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: err, leg: -1}
	}

	logger := logging.WithCycle(r.logger, c.Anchor)
	legs := make([]models.LegResult, 0, len(r.def.Legs))

	for i, def := range r.def.Legs {
		contract, err := r.schedules[def.Window(r.def.ExpiryWindow)].ContractExpiry(c.Anchor)
		if err != nil {
			return outcome{err: apperrors.NewCycleError(c.Anchor, i, legsim.StageSchedule, err), leg: i}
		}

		leg := legsim.NewLeg(i, def, c.Anchor, contract)
		if err := r.sim.Run(ctx, leg); err != nil {
			logging.LogSkip(logging.WithLeg(logger, i), apperrors.Kind(err), err)
			return outcome{err: err, leg: i}
		}
		legs = append(legs, leg.Result())
	}

	trade := models.Trade{Cycle: c.Anchor, Legs: legs}
	net := decimal.Zero
	for i, l := range legs {
		if i == 0 || l.EntryDate.Before(trade.EntryDate) {
			trade.EntryDate = l.EntryDate
		}
		if l.ExitDate.After(trade.ExitDate) {
			trade.ExitDate = l.ExitDate
		}
		net = net.Add(decimal.NewFromFloat(l.PnL))
	}
	trade.NetPnL = net.InexactFloat64()

	for _, pair := range []struct {
		date time.Time
		dst  *float64
	}{{trade.EntryDate, &trade.EntrySpot}, {trade.ExitDate, &trade.ExitSpot}} {
		rec, ok, err := r.market.Spot(ctx, r.def.Index, pair.date)
		if err != nil {
			return outcome{err: apperrors.NewCycleError(c.Anchor, -1, legsim.StageExit, err), leg: -1}
		}
		if !ok {
			return outcome{err: apperrors.NewCycleError(c.Anchor, -1, legsim.StageExit,
				apperrors.Wrap(apperrors.ErrDataUnavailable, "no spot on "+pair.date.Format(utils.DateLayout))), leg: -1}
		}
		*pair.dst = rec.Close
	}

	logger.Debug().
		Str("entry", trade.EntryDate.Format(utils.DateLayout)).
		Str("exit", trade.ExitDate.Format(utils.DateLayout)).
		Float64("net_pnl", trade.NetPnL).
		Msg("Cycle settled")
	return outcome{trade: &trade}
}

// merge folds outcomes in cycle order into the result.
func (r *run) merge(cycles []expiry.Cycle, outcomes []outcome) *Result {
	var trades []models.Trade
	for i, o := range outcomes {
		switch {
		case o.filtered:
		case o.err != nil:
			r.diag.Skip(cycles[i].Anchor, o.leg, o.err)
		case o.trade != nil:
			for _, l := range o.trade.Legs {
				if l.ToleranceHit {
					r.diag.ToleranceHit(cycles[i].Anchor, l.LegIndex, l.EntryDate,
						fmt.Sprintf("%s %.2f %s exp %s matched on a neighbouring expiry", r.def.Index, l.Strike, l.Side, l.Expiry.Format(utils.DateLayout)))
				}
				if l.IntrinsicUsed {
					r.diag.Intrinsic(cycles[i].Anchor, l.LegIndex, l.ExitDate,
						fmt.Sprintf("%s %.2f %s exit priced at intrinsic %.2f", r.def.Index, l.Strike, l.Side, l.ExitPrice))
				}
			}
			trades = append(trades, *o.trade)
		}
	}

	sort.SliceStable(trades, func(i, j int) bool { return trades[i].EntryDate.Before(trades[j].EntryDate) })
	trades = analytics.Compute(trades)

	summary := analytics.Summarize(trades)
	summary.CyclesEvaluated = len(cycles)
	summary.CyclesSkipped = r.diag.Count(diagnostics.KindSkip)
	summary.CyclesFiltered = r.diag.Count(diagnostics.KindFiltered)
	summary.SkipReasons = r.diag.SkipReasons()
	summary.ToleranceHits = r.diag.Count(diagnostics.KindToleranceHit)
	summary.IntrinsicSubstitutions = r.diag.Count(diagnostics.KindIntrinsic)

	if trades == nil {
		trades = []models.Trade{}
	}
	return &Result{
		Trades:      trades,
		Summary:     summary,
		Pivot:       analytics.Pivot(trades),
		Diagnostics: r.diag.Entries(),
	}
}
