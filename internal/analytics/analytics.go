// Package analytics folds an ordered trade ledger into running equity,
// drawdown, summary statistics and a month by year pivot.
package analytics

import (
	"math"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
)

const daysPerYear = 365.25

// Compute fills Cumulative, Peak, Drawdown and DrawdownPct in a single
// left-to-right pass. trades must already be ordered by entry date; the
// input slice is not modified.
func Compute(trades []models.Trade) []models.Trade {
	out := make([]models.Trade, len(trades))
	copy(out, trades)

	var cumulative, peak decimal.Decimal
	for i := range out {
		pnl := decimal.NewFromFloat(out[i].NetPnL)
		if i == 0 {
			cumulative = decimal.NewFromFloat(out[i].EntrySpot).Add(pnl)
			peak = cumulative
		} else {
			cumulative = cumulative.Add(pnl)
			peak = decimal.Max(peak, cumulative)
		}

		out[i].Cumulative = cumulative.InexactFloat64()
		out[i].Peak = peak.InexactFloat64()
		out[i].Drawdown = 0
		out[i].DrawdownPct = 0
		if peak.GreaterThan(cumulative) {
			dd := cumulative.Sub(peak)
			out[i].Drawdown = dd.InexactFloat64()
			// -100 when the peak is not positive.
			out[i].DrawdownPct = -100
			if peak.IsPositive() {
				out[i].DrawdownPct = dd.Mul(decimal.NewFromInt(100)).Div(peak).InexactFloat64()
			}
		}
	}
	return out
}

// Summarize computes the summary statistics of a computed ledger. Run-level
// counters (cycles, skips, diagnostics) are left for the caller.
func Summarize(trades []models.Trade) models.Summary {
	s := models.Summary{SkipReasons: map[string]int{}}
	s.TotalTrades = len(trades)
	if s.TotalTrades == 0 {
		return s
	}

	wins := lo.Filter(trades, func(t models.Trade, _ int) bool { return t.NetPnL > 0 })
	losses := lo.Filter(trades, func(t models.Trade, _ int) bool { return t.NetPnL <= 0 })

	s.Wins = len(wins)
	s.Losses = len(losses)
	s.WinPct = 100 * float64(s.Wins) / float64(s.TotalTrades)
	s.LossPct = 100 * float64(s.Losses) / float64(s.TotalTrades)

	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(decimal.NewFromFloat(t.NetPnL))
	}
	s.TotalPnL = total.InexactFloat64()
	s.AvgPnL = total.Div(decimal.NewFromInt(int64(s.TotalTrades))).InexactFloat64()

	pnl := func(t models.Trade, _ int) float64 { return t.NetPnL }
	pnlPct := func(t models.Trade, _ int) float64 {
		if t.EntrySpot == 0 {
			return 0
		}
		return 100 * t.NetPnL / t.EntrySpot
	}

	if len(wins) > 0 {
		s.AvgWin = mean(lo.Map(wins, pnl))
		s.AvgWinPct = mean(lo.Map(wins, pnlPct))
		s.MaxWin = lo.Max(lo.Map(wins, pnl))
	}
	if len(losses) > 0 {
		s.AvgLoss = mean(lo.Map(losses, pnl))
		s.AvgLossPct = mean(lo.Map(losses, pnlPct))
		s.MaxLoss = lo.Min(lo.Map(losses, pnl))
	}

	if s.Losses > 0 && s.AvgLossPct != 0 {
		s.Expectancy = ((s.AvgWinPct/math.Abs(s.AvgLossPct))*s.WinPct - s.LossPct) / 100
	}

	first, last := trades[0], trades[len(trades)-1]
	s.Years = float64(last.ExitDate.Sub(first.EntryDate)) / float64(24*time.Hour) / daysPerYear
	s.CAGR = CAGR(first.EntrySpot, last.Cumulative, s.Years)

	minDD := lo.MinBy(trades, func(a, b models.Trade) bool { return a.Drawdown < b.Drawdown })
	s.MaxDrawdown = minDD.Drawdown
	if minDD.Drawdown < 0 {
		s.MaxDrawdownDate = minDD.ExitDate
	}
	s.MaxDrawdownPct = lo.Min(lo.Map(trades, func(t models.Trade, _ int) float64 { return t.DrawdownPct }))

	if s.MaxDrawdown != 0 {
		s.RecoveryFactor = s.TotalPnL / math.Abs(s.MaxDrawdown)
	}
	if s.MaxDrawdownPct != 0 {
		s.CARMDD = s.CAGR / math.Abs(s.MaxDrawdownPct)
	}

	s.MaxWinStreak, s.MaxLossStreak = streaks(trades)
	return s
}

// CAGR returns the compounded annual growth from base to final in percent.
// It is 0 when years or base is not positive.
func CAGR(base, final, years float64) float64 {
	if years <= 0 || base <= 0 || final <= 0 {
		return 0
	}
	return 100 * (math.Pow(final/base, 1/years) - 1)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return lo.Sum(xs) / float64(len(xs))
}

func streaks(trades []models.Trade) (win, loss int) {
	var w, l int
	for _, t := range trades {
		if t.NetPnL > 0 {
			w, l = w+1, 0
		} else {
			w, l = 0, l+1
		}
		win = max(win, w)
		loss = max(loss, l)
	}
	return win, loss
}

// Pivot sums net P&L by exit year and month. Rows are ordered by year.
func Pivot(trades []models.Trade) models.PivotTable {
	byYear := lo.GroupBy(trades, func(t models.Trade) int { return t.ExitDate.Year() })
	years := lo.Keys(byYear)
	slices.Sort(years)

	var p models.PivotTable
	grand := decimal.Zero
	monthTotals := [12]decimal.Decimal{}
	for _, y := range years {
		row := models.PivotRow{Year: y}
		var months [12]decimal.Decimal
		for _, t := range byYear[y] {
			m := int(t.ExitDate.Month()) - 1
			months[m] = months[m].Add(decimal.NewFromFloat(t.NetPnL))
		}
		total := decimal.Zero
		for m := range months {
			row.Months[m] = months[m].InexactFloat64()
			total = total.Add(months[m])
			monthTotals[m] = monthTotals[m].Add(months[m])
		}
		row.Total = total.InexactFloat64()
		grand = grand.Add(total)
		p.Rows = append(p.Rows, row)
	}
	for m := range monthTotals {
		p.MonthTotals[m] = monthTotals[m].InexactFloat64()
	}
	p.GrandTotal = grand.InexactFloat64()
	return p
}
