// Package legsim simulates one leg of one expiry cycle from entry to exit.
package legsim

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/calendar"
	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/logging"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/premium"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/strike"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// State is the lifecycle position of a leg.
type State string

const (
	StateAwaitingEntry State = "awaiting_entry"
	StateOpen          State = "open"
	StateClosed        State = "closed"
	StateSkipped       State = "skipped"
)

// Stages reported in cycle errors.
const (
	StageSchedule = "schedule"
	StageStrike   = "strike"
	StageEntry    = "entry"
	StageExit     = "exit"
)

// Pricer resolves option premiums.
type Pricer interface {
	Quote(ctx context.Context, key premium.Key) (premium.Quote, error)
	ExitPrice(ctx context.Context, key premium.Key, spot float64) (premium.Quote, error)
}

// StrikeSelector resolves strike rules.
type StrikeSelector interface {
	Resolve(ctx context.Context, req strike.Request) (float64, error)
}

// SpotSource returns index closes.
type SpotSource interface {
	Spot(ctx context.Context, symbol string, date time.Time) (models.SpotRecord, bool, error)
}

// Simulator holds the collaborators shared by every leg of a run.
type Simulator struct {
	Calendar *calendar.Calendar
	Pricer   Pricer
	Strikes  StrikeSelector
	Spots    SpotSource
	Symbol   string
	LotSize  int
	Tick     float64
	Logger   zerolog.Logger
}

// Leg is one leg instance inside one cycle.
type Leg struct {
	Index    int
	Def      models.LegDefinition
	Anchor   time.Time
	Contract time.Time

	state  State
	result models.LegResult
	err    error
}

// NewLeg creates a leg awaiting entry. anchor is the cycle expiry the DTE
// offsets count from; contract is the expiry of the traded contract.
func NewLeg(index int, def models.LegDefinition, anchor, contract time.Time) *Leg {
	return &Leg{
		Index:    index,
		Def:      def,
		Anchor:   utils.DateOnly(anchor),
		Contract: utils.DateOnly(contract),
		state:    StateAwaitingEntry,
	}
}

// State returns the current state.
func (l *Leg) State() State { return l.state }

// Result returns the closed leg. It is only meaningful in StateClosed.
func (l *Leg) Result() models.LegResult { return l.result }

// Err returns the reason a leg was skipped.
func (l *Leg) Err() error { return l.err }

func (l *Leg) skip(stage string, err error) error {
	l.state = StateSkipped
	l.err = apperrors.NewCycleError(l.Anchor, l.Index, stage, err)
	return l.err
}

// Run drives leg through entry, monitoring and exit. On failure the leg is
// left in StateSkipped and the returned error is a *errors.CycleError.
func (s *Simulator) Run(ctx context.Context, leg *Leg) error {
	if leg.state != StateAwaitingEntry {
		return fmt.Errorf("leg %d already %s", leg.Index, leg.state)
	}
	if err := ctx.Err(); err != nil {
		return leg.skip(StageEntry, err)
	}

	entryDate, err := s.Calendar.NthBefore(leg.Anchor, leg.Def.Entry.Days)
	if err != nil {
		return leg.skip(StageSchedule, err)
	}
	exitDate, err := s.Calendar.NthBefore(leg.Anchor, leg.Def.Exit.Days)
	if err != nil {
		return leg.skip(StageSchedule, err)
	}
	if leg.Def.Instrument == models.InstrumentOption && leg.Contract.IsZero() {
		return leg.skip(StageSchedule, apperrors.Wrap(apperrors.ErrExpiryNotFound, "no contract expiry"))
	}

	entrySpot, err := s.spot(ctx, entryDate)
	if err != nil {
		return leg.skip(StageEntry, err)
	}

	leg.result = models.LegResult{
		LegIndex:   leg.Index,
		Instrument: leg.Def.Instrument,
		Side:       leg.Def.Side,
		Direction:  leg.Def.Direction,
		Lots:       leg.Def.Lots,
		LotSize:    s.LotSize,
		Expiry:     leg.Contract,
		EntryDate:  entryDate,
	}

	if leg.Def.Instrument == models.InstrumentOption {
		strikePrice, err := s.Strikes.Resolve(ctx, strike.Request{
			Date:   entryDate,
			Symbol: s.Symbol,
			Expiry: leg.Contract,
			Side:   leg.Def.Side,
			Spot:   entrySpot,
			Tick:   s.Tick,
			Rule:   leg.Def.Strike,
		})
		if err != nil {
			return leg.skip(StageStrike, err)
		}
		leg.result.Strike = strikePrice

		q, err := s.Pricer.Quote(ctx, s.key(leg, entryDate))
		if err != nil {
			return leg.skip(StageEntry, err)
		}
		leg.result.EntryPrice = q.Close
		leg.result.ToleranceHit = q.ToleranceHit
	} else {
		leg.result.EntryPrice = entrySpot
	}
	leg.state = StateOpen

	if err := s.monitor(ctx, leg, entryDate, exitDate); err != nil {
		return leg.skip(StageExit, err)
	}

	leg.result.PnL = PnL(leg.result.EntryPrice, leg.result.ExitPrice, leg.Def.Direction, leg.Def.Lots, s.LotSize)
	leg.state = StateClosed
	return nil
}

func (s *Simulator) key(leg *Leg, date time.Time) premium.Key {
	return premium.Key{
		Date:       date,
		Symbol:     s.Symbol,
		Instrument: models.InstrumentOption,
		Strike:     leg.result.Strike,
		Side:       leg.Def.Side,
		Expiry:     leg.Contract,
		Tick:       s.Tick,
	}
}

func (s *Simulator) spot(ctx context.Context, date time.Time) (float64, error) {
	rec, ok, err := s.Spots.Spot(ctx, s.Symbol, date)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apperrors.Wrap(apperrors.ErrDataUnavailable, "no spot for "+s.Symbol+" on "+date.Format(utils.DateLayout))
	}
	return rec.Close, nil
}

// monitor walks the trading days after entry up to the scheduled exit.
// Thresholds are checked against each end-of-day close; a missing premium
// on a monitoring day is not an error, but the exit day must resolve.
func (s *Simulator) monitor(ctx context.Context, leg *Leg, entryDate, exitDate time.Time) error {
	days := []time.Time{exitDate}
	if leg.Def.Exit.HasThresholds() {
		days = s.Calendar.Between(entryDate.AddDate(0, 0, 1), exitDate)
	}

	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return err
		}
		final := d.Equal(exitDate)

		price, q, err := s.close(ctx, leg, d, final)
		if err != nil {
			if final {
				return err
			}
			continue
		}

		reason, hit := Threshold(leg.Def.Direction, leg.result.EntryPrice, price, leg.Def.Exit)
		if !hit && !final {
			continue
		}
		if !hit {
			reason = models.ExitScheduled
		}

		leg.result.ExitDate = d
		leg.result.ExitPrice = price
		leg.result.ExitReason = reason
		leg.result.ToleranceHit = leg.result.ToleranceHit || q.ToleranceHit
		leg.result.IntrinsicUsed = q.IntrinsicUsed
		if hit {
			lg := logging.WithLeg(s.Logger, leg.Index)
			lg.Debug().
				Str("date", d.Format(utils.DateLayout)).
				Str("reason", string(reason)).
				Float64("price", price).
				Msg("Leg exit threshold reached")
		}
		return nil
	}
	return apperrors.Wrap(apperrors.ErrPremiumMiss, "no exit price")
}

// close returns the leg's price on d. Options use the premium archive;
// futures and their thresholds use the index close.
func (s *Simulator) close(ctx context.Context, leg *Leg, d time.Time, final bool) (float64, premium.Quote, error) {
	spot, err := s.spot(ctx, d)
	if err != nil {
		return 0, premium.Quote{}, err
	}
	if leg.Def.Instrument != models.InstrumentOption {
		return spot, premium.Quote{}, nil
	}

	var q premium.Quote
	if final {
		q, err = s.Pricer.ExitPrice(ctx, s.key(leg, d), spot)
	} else {
		q, err = s.Pricer.Quote(ctx, s.key(leg, d))
	}
	if err != nil {
		return 0, q, err
	}
	return q.Close, q, nil
}

// Threshold reports whether price breaches the stop-loss or target of a
// leg entered at entry. A sold leg stops out when the price rises.
func Threshold(dir models.Direction, entry, price float64, exit models.ExitTrigger) (models.ExitReason, bool) {
	e := decimal.NewFromFloat(entry)
	p := decimal.NewFromFloat(price)
	pct := func(v float64) decimal.Decimal { return decimal.NewFromFloat(v).Div(decimal.NewFromInt(100)) }
	one := decimal.NewFromInt(1)

	if exit.StopLossPct != nil {
		sl := pct(*exit.StopLossPct)
		if dir == models.DirectionSell && p.GreaterThanOrEqual(e.Mul(one.Add(sl))) {
			return models.ExitStopLoss, true
		}
		if dir == models.DirectionBuy && p.LessThanOrEqual(e.Mul(one.Sub(sl))) {
			return models.ExitStopLoss, true
		}
	}
	if exit.TargetPct != nil {
		tp := pct(*exit.TargetPct)
		if dir == models.DirectionSell && p.LessThanOrEqual(e.Mul(one.Sub(tp))) {
			return models.ExitTarget, true
		}
		if dir == models.DirectionBuy && p.GreaterThanOrEqual(e.Mul(one.Add(tp))) {
			return models.ExitTarget, true
		}
	}
	return "", false
}

// PnL returns (exit - entry) * sign * lots * lotSize.
func PnL(entry, exit float64, dir models.Direction, lots, lotSize int) float64 {
	return decimal.NewFromFloat(exit).
		Sub(decimal.NewFromFloat(entry)).
		Mul(decimal.NewFromFloat(dir.Sign())).
		Mul(decimal.NewFromInt(int64(lots * lotSize))).
		InexactFloat64()
}
