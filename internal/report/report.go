// Package report writes the artefacts of a backtest run to disk: the trade
// ledger and leg sheet as CSV, the month by year pivot as CSV and the full
// result as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/engine"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// File names written by Write.
const (
	TradesFile = "trades.csv"
	LegsFile   = "legs.csv"
	PivotFile  = "pivot.csv"
	ResultFile = "result.json"
)

// Paths lists the files of one report.
type Paths struct {
	Trades string `json:"trades"`
	Legs   string `json:"legs"`
	Pivot  string `json:"pivot"`
	Result string `json:"result"`
}

type tradeRow struct {
	Cycle       string `csv:"cycle"`
	EntryDate   string `csv:"entry_date"`
	ExitDate    string `csv:"exit_date"`
	EntrySpot   string `csv:"entry_spot"`
	ExitSpot    string `csv:"exit_spot"`
	Legs        int    `csv:"legs"`
	NetPnL      string `csv:"net_pnl"`
	Cumulative  string `csv:"cumulative"`
	Peak        string `csv:"peak"`
	Drawdown    string `csv:"drawdown"`
	DrawdownPct string `csv:"drawdown_pct"`
}

type legRow struct {
	Cycle         string `csv:"cycle"`
	Leg           int    `csv:"leg"`
	Instrument    string `csv:"instrument"`
	Side          string `csv:"side"`
	Direction     string `csv:"direction"`
	Lots          int    `csv:"lots"`
	LotSize       int    `csv:"lot_size"`
	Strike        string `csv:"strike"`
	Expiry        string `csv:"expiry"`
	EntryDate     string `csv:"entry_date"`
	ExitDate      string `csv:"exit_date"`
	EntryPrice    string `csv:"entry_price"`
	ExitPrice     string `csv:"exit_price"`
	ExitReason    string `csv:"exit_reason"`
	ToleranceHit  bool   `csv:"tolerance_hit"`
	IntrinsicUsed bool   `csv:"intrinsic_used"`
	PnL           string `csv:"pnl"`
}

type pivotRow struct {
	Year  string `csv:"year"`
	Jan   string `csv:"jan"`
	Feb   string `csv:"feb"`
	Mar   string `csv:"mar"`
	Apr   string `csv:"apr"`
	May   string `csv:"may"`
	Jun   string `csv:"jun"`
	Jul   string `csv:"jul"`
	Aug   string `csv:"aug"`
	Sep   string `csv:"sep"`
	Oct   string `csv:"oct"`
	Nov   string `csv:"nov"`
	Dec   string `csv:"dec"`
	Total string `csv:"total"`
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(utils.DateLayout)
}

// WriteTrades writes one row per trade in ledger order.
func WriteTrades(w io.Writer, trades []models.Trade) error {
	rows := make([]*tradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, &tradeRow{
			Cycle:       day(t.Cycle),
			EntryDate:   day(t.EntryDate),
			ExitDate:    day(t.ExitDate),
			EntrySpot:   money(t.EntrySpot),
			ExitSpot:    money(t.ExitSpot),
			Legs:        len(t.Legs),
			NetPnL:      money(t.NetPnL),
			Cumulative:  money(t.Cumulative),
			Peak:        money(t.Peak),
			Drawdown:    money(t.Drawdown),
			DrawdownPct: money(t.DrawdownPct),
		})
	}
	return gocsv.Marshal(&rows, w)
}

// WriteLegs writes one row per settled leg.
func WriteLegs(w io.Writer, trades []models.Trade) error {
	var rows []*legRow
	for _, t := range trades {
		for _, l := range t.Legs {
			strike := ""
			if l.Instrument == models.InstrumentOption {
				strike = money(l.Strike)
			}
			rows = append(rows, &legRow{
				Cycle:         day(t.Cycle),
				Leg:           l.LegIndex,
				Instrument:    string(l.Instrument),
				Side:          string(l.Side),
				Direction:     string(l.Direction),
				Lots:          l.Lots,
				LotSize:       l.LotSize,
				Strike:        strike,
				Expiry:        day(l.Expiry),
				EntryDate:     day(l.EntryDate),
				ExitDate:      day(l.ExitDate),
				EntryPrice:    money(l.EntryPrice),
				ExitPrice:     money(l.ExitPrice),
				ExitReason:    string(l.ExitReason),
				ToleranceHit:  l.ToleranceHit,
				IntrinsicUsed: l.IntrinsicUsed,
				PnL:           money(l.PnL),
			})
		}
	}
	if rows == nil {
		rows = []*legRow{}
	}
	return gocsv.Marshal(&rows, w)
}

// WritePivot writes one row per year followed by a TOTAL row.
func WritePivot(w io.Writer, p models.PivotTable) error {
	toRow := func(label string, m [12]float64, total float64) *pivotRow {
		return &pivotRow{
			Year: label,
			Jan: money(m[0]), Feb: money(m[1]), Mar: money(m[2]), Apr: money(m[3]),
			May: money(m[4]), Jun: money(m[5]), Jul: money(m[6]), Aug: money(m[7]),
			Sep: money(m[8]), Oct: money(m[9]), Nov: money(m[10]), Dec: money(m[11]),
			Total: money(total),
		}
	}

	rows := make([]*pivotRow, 0, len(p.Rows)+1)
	for _, r := range p.Rows {
		rows = append(rows, toRow(strconv.Itoa(r.Year), r.Months, r.Total))
	}
	rows = append(rows, toRow("TOTAL", p.MonthTotals, p.GrandTotal))
	return gocsv.Marshal(&rows, w)
}

// WriteJSON writes the full result, indented.
func WriteJSON(w io.Writer, res *engine.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// Write creates dir if needed and writes every report file into it.
func Write(dir string, res *engine.Result) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("creating report dir: %w", err)
	}

	p := Paths{
		Trades: filepath.Join(dir, TradesFile),
		Legs:   filepath.Join(dir, LegsFile),
		Pivot:  filepath.Join(dir, PivotFile),
		Result: filepath.Join(dir, ResultFile),
	}

	steps := []struct {
		path  string
		write func(io.Writer) error
	}{
		{p.Trades, func(w io.Writer) error { return WriteTrades(w, res.Trades) }},
		{p.Legs, func(w io.Writer) error { return WriteLegs(w, res.Trades) }},
		{p.Pivot, func(w io.Writer) error { return WritePivot(w, res.Pivot) }},
		{p.Result, func(w io.Writer) error { return WriteJSON(w, res) }},
	}
	for _, s := range steps {
		if err := writeFile(s.path, s.write); err != nil {
			return Paths{}, err
		}
	}
	return p, nil
}
