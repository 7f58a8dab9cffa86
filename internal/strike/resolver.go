// Package strike resolves a leg's strike selection rule into a concrete
// strike for a target date, expiry and side.
package strike

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/premium"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

const epsilon = 1e-9

// ChainProvider returns the option chain of one side and expiry on a date.
type ChainProvider interface {
	Chain(ctx context.Context, date time.Time, symbol string, side models.OptionSide, expiry time.Time) ([]premium.Candidate, error)
}

// Request is one strike resolution.
type Request struct {
	Date   time.Time
	Symbol string
	Expiry time.Time
	Side   models.OptionSide
	Spot   float64
	Tick   float64
	Rule   models.StrikeRule
}

func (r Request) String() string {
	return fmt.Sprintf("%s %s %s exp %s on %s", r.Symbol, r.Rule, r.Side,
		r.Expiry.Format(utils.DateLayout), r.Date.Format(utils.DateLayout))
}

// Resolver selects strikes against option chains.
type Resolver struct {
	chains ChainProvider
}

// NewResolver creates a Resolver reading chains from chains.
func NewResolver(chains ChainProvider) *Resolver {
	return &Resolver{chains: chains}
}

// Resolve returns the strike selected by req.Rule. Every rule needs at
// least one priced strike for the date, expiry and side. Grid rules need
// their computed strike to be listed; premium rules need a strike
// satisfying their condition.
func (r *Resolver) Resolve(ctx context.Context, req Request) (float64, error) {
	if req.Tick <= 0 {
		return 0, apperrors.NewValidationError("tick", req.Tick, "must be positive")
	}

	chain, err := r.chains.Chain(ctx, req.Date, req.Symbol, req.Side, req.Expiry)
	if err != nil {
		return 0, err
	}

	var calls, puts []premium.Candidate
	if req.Rule.Kind == models.StrikeStraddleWidth {
		if calls, err = r.chains.Chain(ctx, req.Date, req.Symbol, models.SideCall, req.Expiry); err != nil {
			return 0, err
		}
		if puts, err = r.chains.Chain(ctx, req.Date, req.Symbol, models.SidePut, req.Expiry); err != nil {
			return 0, err
		}
		chain = append(append([]premium.Candidate(nil), calls...), puts...)
	}

	if len(chain) == 0 {
		return 0, apperrors.Wrap(apperrors.ErrStrikeNotResolvable, "empty chain for "+req.String())
	}

	strike, ok := Select(req.Rule, req.Side, req.Spot, req.Tick, chain, calls, puts)
	if !ok {
		return 0, apperrors.Wrap(apperrors.ErrStrikeNotResolvable, "no strike satisfies "+req.String())
	}
	return strike, nil
}

// Select applies rule to an already loaded chain. calls and puts are only
// read by straddle_width. ok is false when no candidate qualifies or a
// computed strike is not listed in chain.
func Select(rule models.StrikeRule, side models.OptionSide, spot, tick float64, chain, calls, puts []premium.Candidate) (float64, bool) {
	atm := ATM(spot, tick)

	switch rule.Kind {
	case models.StrikeATM:
		return listed(atm, tick, chain)
	case models.StrikeOTM:
		return listed(Offset(atm, tick, rule.Steps, side, true), tick, chain)
	case models.StrikeITM:
		return listed(Offset(atm, tick, rule.Steps, side, false), tick, chain)
	case models.StrikePctOfATM:
		return listed(RoundHalfUp(atm*rule.Pct/100, tick), tick, chain)
	case models.StrikePremiumRange:
		return nearestATM(atm, chain, func(c premium.Candidate) bool {
			return c.Premium >= rule.Min-epsilon && c.Premium <= rule.Max+epsilon
		})
	case models.StrikePremiumGTE:
		return nearestATM(atm, chain, func(c premium.Candidate) bool { return c.Premium >= rule.Premium-epsilon })
	case models.StrikePremiumLTE:
		return nearestATM(atm, chain, func(c premium.Candidate) bool { return c.Premium <= rule.Premium+epsilon })
	case models.StrikeClosestPremium:
		return closestPremium(atm, rule.Premium, chain)
	case models.StrikeStraddleWidth:
		return straddleWidth(atm, spot, rule.WidthPct, calls, puts)
	}
	return 0, false
}

// RoundHalfUp rounds x to the nearest multiple of tick, halves away from zero.
func RoundHalfUp(x, tick float64) float64 {
	t := decimal.NewFromFloat(tick)
	return decimal.NewFromFloat(x).Div(t).Round(0).Mul(t).InexactFloat64()
}

// ATM returns the strike nearest spot on the tick grid.
func ATM(spot, tick float64) float64 {
	return RoundHalfUp(spot, tick)
}

// Offset moves steps ticks away from atm. Out of the money is above ATM
// for calls and below for puts.
func Offset(atm, tick float64, steps int, side models.OptionSide, otm bool) float64 {
	dir := 1.0
	if side == models.SidePut {
		dir = -1
	}
	if !otm {
		dir = -dir
	}
	return decimal.NewFromFloat(atm).
		Add(decimal.NewFromFloat(tick).Mul(decimal.NewFromInt(int64(steps))).Mul(decimal.NewFromFloat(dir))).
		InexactFloat64()
}

// better orders two strikes by distance from atm, lower strike on ties.
func better(atm, a, b float64) bool {
	da, db := math.Abs(a-atm), math.Abs(b-atm)
	if math.Abs(da-db) > epsilon {
		return da < db
	}
	return a < b
}

// listed returns the chain strike nearest strike, provided it lies within
// half a tick.
func listed(strike, tick float64, chain []premium.Candidate) (float64, bool) {
	found := false
	var best float64
	for _, c := range chain {
		d := math.Abs(c.Strike - strike)
		if d >= tick/2 {
			continue
		}
		if !found || d < math.Abs(best-strike) {
			best, found = c.Strike, true
		}
	}
	return best, found
}

func nearestATM(atm float64, chain []premium.Candidate, keep func(premium.Candidate) bool) (float64, bool) {
	found := false
	var best float64
	for _, c := range chain {
		if !keep(c) {
			continue
		}
		if !found || better(atm, c.Strike, best) {
			best, found = c.Strike, true
		}
	}
	return best, found
}

func closestPremium(atm, target float64, chain []premium.Candidate) (float64, bool) {
	found := false
	var best, bestDiff float64
	for _, c := range chain {
		diff := math.Abs(c.Premium - target)
		switch {
		case !found, diff < bestDiff-epsilon:
		case math.Abs(diff-bestDiff) <= epsilon && better(atm, c.Strike, best):
		default:
			continue
		}
		best, bestDiff, found = c.Strike, diff, true
	}
	return best, found
}

// straddleWidth picks the strike whose call and put are most balanced and
// whose combined premium is closest to widthPct of spot.
func straddleWidth(atm, spot, widthPct float64, calls, puts []premium.Candidate) (float64, bool) {
	putBy := make(map[float64]float64, len(puts))
	for _, p := range puts {
		putBy[p.Strike] = p.Premium
	}
	target := spot * widthPct / 100

	found := false
	var best, bestScore float64
	for _, c := range calls {
		p, ok := putBy[c.Strike]
		if !ok {
			continue
		}
		score := math.Abs(c.Premium-p) + math.Abs(c.Premium+p-target)
		switch {
		case !found, score < bestScore-epsilon:
		case math.Abs(score-bestScore) <= epsilon && better(atm, c.Strike, best):
		default:
			continue
		}
		best, bestScore, found = c.Strike, score, true
	}
	return best, found
}
