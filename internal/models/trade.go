package models

import "time"

// ExitReason records why a leg was closed.
type ExitReason string

const (
	ExitScheduled ExitReason = "scheduled"
	ExitStopLoss  ExitReason = "stop_loss"
	ExitTarget    ExitReason = "target"
)

// LegResult is the settled outcome of one leg in one cycle.
type LegResult struct {
	LegIndex      int            `json:"leg_index"`
	Instrument    InstrumentKind `json:"instrument"`
	Side          OptionSide     `json:"side,omitempty"`
	Direction     Direction      `json:"direction"`
	Lots          int            `json:"lots"`
	LotSize       int            `json:"lot_size"`
	Strike        float64        `json:"strike,omitempty"`
	Expiry        time.Time      `json:"expiry"`
	EntryDate     time.Time      `json:"entry_date"`
	ExitDate      time.Time      `json:"exit_date"`
	EntryPrice    float64        `json:"entry_price"`
	ExitPrice     float64        `json:"exit_price"`
	ExitReason    ExitReason     `json:"exit_reason"`
	ToleranceHit  bool           `json:"tolerance_hit,omitempty"`
	IntrinsicUsed bool           `json:"intrinsic_used,omitempty"`
	PnL           float64        `json:"pnl"`
}

// Trade is one settled multi-leg cycle. The running fields (Cumulative,
// Peak, Drawdown, DrawdownPct) are filled in by analytics.
type Trade struct {
	Cycle       time.Time   `json:"cycle"`
	EntryDate   time.Time   `json:"entry_date"`
	ExitDate    time.Time   `json:"exit_date"`
	EntrySpot   float64     `json:"entry_spot"`
	ExitSpot    float64     `json:"exit_spot"`
	Legs        []LegResult `json:"legs"`
	NetPnL      float64     `json:"net_pnl"`
	Cumulative  float64     `json:"cumulative"`
	Peak        float64     `json:"peak"`
	Drawdown    float64     `json:"drawdown"`
	DrawdownPct float64     `json:"drawdown_pct"`
}

// Summary holds the aggregate statistics of a run.
type Summary struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinPct      float64 `json:"win_pct"`
	LossPct     float64 `json:"loss_pct"`
	TotalPnL    float64 `json:"total_pnl"`
	AvgPnL      float64 `json:"avg_pnl"`
	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"`
	AvgWinPct   float64 `json:"avg_win_pct"`
	AvgLossPct  float64 `json:"avg_loss_pct"`
	MaxWin      float64 `json:"max_win"`
	MaxLoss     float64 `json:"max_loss"`
	Expectancy  float64 `json:"expectancy"`

	CAGR            float64   `json:"cagr"`
	Years           float64   `json:"years"`
	MaxDrawdown     float64   `json:"max_drawdown"`
	MaxDrawdownPct  float64   `json:"max_drawdown_pct"`
	MaxDrawdownDate time.Time `json:"max_drawdown_date"`
	RecoveryFactor  float64   `json:"recovery_factor"`
	CARMDD          float64   `json:"car_mdd"`

	MaxWinStreak  int `json:"max_win_streak"`
	MaxLossStreak int `json:"max_loss_streak"`

	CyclesEvaluated        int            `json:"cycles_evaluated"`
	CyclesSkipped          int            `json:"cycles_skipped"`
	CyclesFiltered         int            `json:"cycles_filtered"`
	SkipReasons            map[string]int `json:"skip_reasons"`
	ToleranceHits          int            `json:"tolerance_hits"`
	IntrinsicSubstitutions int            `json:"intrinsic_substitutions"`
}

// PivotRow is one calendar year of summed net P&L by month.
type PivotRow struct {
	Year   int         `json:"year"`
	Months [12]float64 `json:"months"`
	Total  float64     `json:"total"`
}

// PivotTable is the month x year breakdown of net P&L keyed by exit date.
type PivotTable struct {
	Rows        []PivotRow  `json:"rows"`
	MonthTotals [12]float64 `json:"month_totals"`
	GrandTotal  float64     `json:"grand_total"`
}
