package models

import (
	"fmt"
	"time"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
)

// Direction represents whether a leg is bought or sold.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Sign returns +1 for a bought leg and -1 for a sold leg.
func (d Direction) Sign() float64 {
	if d == DirectionSell {
		return -1
	}
	return 1
}

// StrikeRuleKind identifies a strike selection rule.
type StrikeRuleKind string

const (
	StrikeATM            StrikeRuleKind = "atm"
	StrikeOTM            StrikeRuleKind = "otm"
	StrikeITM            StrikeRuleKind = "itm"
	StrikePremiumRange   StrikeRuleKind = "premium_range"
	StrikeClosestPremium StrikeRuleKind = "closest_premium"
	StrikePremiumGTE     StrikeRuleKind = "premium_gte"
	StrikePremiumLTE     StrikeRuleKind = "premium_lte"
	StrikeStraddleWidth  StrikeRuleKind = "straddle_width"
	StrikePctOfATM       StrikeRuleKind = "pct_of_atm"
)

// StrikeRule is a strike selection rule. Only the parameters owned by Kind
// are meaningful; the others must be zero.
type StrikeRule struct {
	Kind StrikeRuleKind `json:"kind" yaml:"kind"`

	// Steps is the number of ticks away from ATM for otm and itm.
	Steps int `json:"steps,omitempty" yaml:"steps,omitempty"`

	// Min and Max bound the premium for premium_range.
	Min float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max float64 `json:"max,omitempty" yaml:"max,omitempty"`

	// Premium is the target for closest_premium, premium_gte and premium_lte.
	Premium float64 `json:"premium,omitempty" yaml:"premium,omitempty"`

	// WidthPct is the straddle value as a percentage of spot.
	WidthPct float64 `json:"width_pct,omitempty" yaml:"width_pct,omitempty"`

	// Pct scales the ATM strike for pct_of_atm.
	Pct float64 `json:"pct,omitempty" yaml:"pct,omitempty"`
}

// Validate checks that the rule kind is known and that its parameters are sane.
func (r StrikeRule) Validate() error {
	switch r.Kind {
	case StrikeATM:
		return nil
	case StrikeOTM, StrikeITM:
		if r.Steps < 0 {
			return apperrors.NewValidationError("strike.steps", r.Steps, "must be non-negative")
		}
	case StrikePremiumRange:
		if r.Min < 0 || r.Max <= 0 {
			return apperrors.NewValidationError("strike.min/max", [2]float64{r.Min, r.Max}, "bounds must be positive")
		}
		if r.Min > r.Max {
			return apperrors.NewValidationError("strike.min/max", [2]float64{r.Min, r.Max}, "min exceeds max")
		}
	case StrikeClosestPremium, StrikePremiumGTE, StrikePremiumLTE:
		if r.Premium <= 0 {
			return apperrors.NewValidationError("strike.premium", r.Premium, "must be positive")
		}
	case StrikeStraddleWidth:
		if r.WidthPct <= 0 {
			return apperrors.NewValidationError("strike.width_pct", r.WidthPct, "must be positive")
		}
	case StrikePctOfATM:
		if r.Pct <= 0 {
			return apperrors.NewValidationError("strike.pct", r.Pct, "must be positive")
		}
	default:
		return apperrors.NewValidationError("strike.kind", r.Kind, "unknown strike rule")
	}
	return nil
}

func (r StrikeRule) String() string {
	switch r.Kind {
	case StrikeOTM, StrikeITM:
		return fmt.Sprintf("%s(%d)", r.Kind, r.Steps)
	case StrikePremiumRange:
		return fmt.Sprintf("%s(%.2f,%.2f)", r.Kind, r.Min, r.Max)
	case StrikeClosestPremium, StrikePremiumGTE, StrikePremiumLTE:
		return fmt.Sprintf("%s(%.2f)", r.Kind, r.Premium)
	case StrikeStraddleWidth:
		return fmt.Sprintf("%s(%.2f%%)", r.Kind, r.WidthPct)
	case StrikePctOfATM:
		return fmt.Sprintf("%s(%.2f%%)", r.Kind, r.Pct)
	}
	return string(r.Kind)
}

// TriggerKind identifies how an entry or exit date is derived.
type TriggerKind string

// TriggerDaysBeforeExpiry counts trading days back from the cycle expiry.
const TriggerDaysBeforeExpiry TriggerKind = "days_before_expiry"

// EntryTrigger decides the entry date of a leg.
type EntryTrigger struct {
	Kind TriggerKind `json:"kind" yaml:"kind"`
	Days int         `json:"days" yaml:"days"`
}

// ExitTrigger decides the scheduled exit date of a leg and the optional
// end-of-day stop-loss and target thresholds, in percent of entry price.
type ExitTrigger struct {
	Kind        TriggerKind `json:"kind" yaml:"kind"`
	Days        int         `json:"days" yaml:"days"`
	StopLossPct *float64    `json:"stop_loss_pct,omitempty" yaml:"stop_loss_pct,omitempty"`
	TargetPct   *float64    `json:"target_pct,omitempty" yaml:"target_pct,omitempty"`
}

// HasThresholds reports whether a stop-loss or target is configured.
func (t ExitTrigger) HasThresholds() bool {
	return t.StopLossPct != nil || t.TargetPct != nil
}

// LegDefinition describes one leg of a strategy.
type LegDefinition struct {
	Instrument   InstrumentKind `json:"instrument" yaml:"instrument"`
	Side         OptionSide     `json:"side,omitempty" yaml:"side,omitempty"`
	Direction    Direction      `json:"direction" yaml:"direction"`
	Lots         int            `json:"lots" yaml:"lots"`
	ExpiryWindow ExpiryWindow   `json:"expiry_window,omitempty" yaml:"expiry_window,omitempty"`
	Strike       StrikeRule     `json:"strike" yaml:"strike"`
	Entry        EntryTrigger   `json:"entry" yaml:"entry"`
	Exit         ExitTrigger    `json:"exit" yaml:"exit"`
}

// Window returns the leg's expiry window, falling back to the strategy window.
func (l LegDefinition) Window(strategy ExpiryWindow) ExpiryWindow {
	if l.ExpiryWindow != "" {
		return l.ExpiryWindow
	}
	return strategy
}

// Validate checks a single leg. idx is only used in error messages.
func (l LegDefinition) Validate(idx int) error {
	field := func(name string) string { return fmt.Sprintf("legs[%d].%s", idx, name) }

	switch l.Instrument {
	case InstrumentOption:
		if l.Side != SideCall && l.Side != SidePut {
			return apperrors.NewValidationError(field("side"), l.Side, "option legs need CE or PE")
		}
		if err := l.Strike.Validate(); err != nil {
			return apperrors.Wrapf(err, "legs[%d]", idx)
		}
	case InstrumentFuture:
		if l.Side != SideNone {
			return apperrors.NewValidationError(field("side"), l.Side, "future legs carry no option side")
		}
	default:
		return apperrors.NewValidationError(field("instrument"), l.Instrument, "unknown instrument")
	}

	if l.Direction != DirectionBuy && l.Direction != DirectionSell {
		return apperrors.NewValidationError(field("direction"), l.Direction, "must be buy or sell")
	}
	if l.Lots < 1 {
		return apperrors.NewValidationError(field("lots"), l.Lots, "must be at least 1")
	}
	if l.ExpiryWindow != "" && !l.ExpiryWindow.Valid() {
		return apperrors.NewValidationError(field("expiry_window"), l.ExpiryWindow, "unknown expiry window")
	}

	if l.Entry.Kind != TriggerDaysBeforeExpiry {
		return apperrors.NewValidationError(field("entry.kind"), l.Entry.Kind, "unknown entry trigger")
	}
	if l.Exit.Kind != TriggerDaysBeforeExpiry {
		return apperrors.NewValidationError(field("exit.kind"), l.Exit.Kind, "unknown exit trigger")
	}
	if l.Entry.Days < 0 || l.Exit.Days < 0 {
		return apperrors.NewValidationError(field("entry/exit.days"), [2]int{l.Entry.Days, l.Exit.Days}, "must be non-negative")
	}
	if l.Exit.Days >= l.Entry.Days {
		return apperrors.NewValidationError(field("exit.days"), l.Exit.Days, "exit must come after entry")
	}
	if l.Exit.StopLossPct != nil && *l.Exit.StopLossPct <= 0 {
		return apperrors.NewValidationError(field("exit.stop_loss_pct"), *l.Exit.StopLossPct, "must be positive")
	}
	if l.Exit.TargetPct != nil && *l.Exit.TargetPct <= 0 {
		return apperrors.NewValidationError(field("exit.target_pct"), *l.Exit.TargetPct, "must be positive")
	}
	return nil
}

// SpotAdjustmentMode selects how the spot filter compares two cycles.
type SpotAdjustmentMode string

const (
	SpotRisePoints SpotAdjustmentMode = "rise_points"
	SpotFallPoints SpotAdjustmentMode = "fall_points"
	SpotRisePct    SpotAdjustmentMode = "rise_pct"
	SpotFallPct    SpotAdjustmentMode = "fall_pct"
	SpotMovePoints SpotAdjustmentMode = "move_points"
	SpotMovePct    SpotAdjustmentMode = "move_pct"
)

// SpotAdjustment only lets a cycle in when the entry spot moved by at least
// Threshold against the previous cycle's entry spot.
type SpotAdjustment struct {
	Mode      SpotAdjustmentMode `json:"mode" yaml:"mode"`
	Threshold float64            `json:"threshold" yaml:"threshold"`
}

// Validate checks the filter mode and threshold.
func (a SpotAdjustment) Validate() error {
	switch a.Mode {
	case SpotRisePoints, SpotFallPoints, SpotRisePct, SpotFallPct, SpotMovePoints, SpotMovePct:
	default:
		return apperrors.NewValidationError("spot_adjustment.mode", a.Mode, "unknown mode")
	}
	if a.Threshold <= 0 {
		return apperrors.NewValidationError("spot_adjustment.threshold", a.Threshold, "must be positive")
	}
	return nil
}

// StrategyDefinition is a complete backtest request.
type StrategyDefinition struct {
	Name           string             `json:"name" yaml:"name"`
	Index          string             `json:"index" yaml:"index"`
	DateFrom       time.Time          `json:"date_from" yaml:"date_from"`
	DateTo         time.Time          `json:"date_to" yaml:"date_to"`
	ExpiryWindow   ExpiryWindow       `json:"expiry_window" yaml:"expiry_window"`
	Legs           []LegDefinition    `json:"legs" yaml:"legs"`
	SpotAdjustment *SpotAdjustment    `json:"spot_adjustment,omitempty" yaml:"spot_adjustment,omitempty"`
	LotSizes       map[string]int     `json:"lot_sizes,omitempty" yaml:"lot_sizes,omitempty"`
	TickSizes      map[string]float64 `json:"tick_sizes,omitempty" yaml:"tick_sizes,omitempty"`
}

// LotSize returns the configured lot size of the strategy's index.
func (s *StrategyDefinition) LotSize() int {
	return s.LotSizes[s.Index]
}

// TickSize returns the configured strike tick of the strategy's index.
func (s *StrategyDefinition) TickSize() float64 {
	return s.TickSizes[s.Index]
}

// MaxEntryDays returns the largest entry offset across all legs.
func (s *StrategyDefinition) MaxEntryDays() int {
	maxDays := 0
	for _, leg := range s.Legs {
		if leg.Entry.Days > maxDays {
			maxDays = leg.Entry.Days
		}
	}
	return maxDays
}

// Validate checks the whole definition. It never touches market data.
func (s *StrategyDefinition) Validate() error {
	if s.Index == "" {
		return apperrors.NewValidationError("index", s.Index, "required")
	}
	if s.DateFrom.IsZero() || s.DateTo.IsZero() {
		return apperrors.NewValidationError("date_from/date_to", nil, "both dates are required")
	}
	if s.DateTo.Before(s.DateFrom) {
		return apperrors.NewValidationError("date_to", s.DateTo.Format("2006-01-02"), "before date_from")
	}
	if !s.ExpiryWindow.Valid() {
		return apperrors.NewValidationError("expiry_window", s.ExpiryWindow, "unknown expiry window")
	}
	if len(s.Legs) == 0 {
		return apperrors.NewValidationError("legs", 0, "at least one leg is required")
	}
	for i, leg := range s.Legs {
		if err := leg.Validate(i); err != nil {
			return err
		}
	}
	if s.SpotAdjustment != nil {
		if err := s.SpotAdjustment.Validate(); err != nil {
			return err
		}
	}
	if s.LotSize() <= 0 {
		return apperrors.NewValidationError("lot_sizes", s.Index, "no lot size configured for index")
	}
	if s.TickSize() <= 0 {
		return apperrors.NewValidationError("tick_sizes", s.Index, "no tick size configured for index")
	}
	return nil
}
