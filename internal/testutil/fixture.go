// Package testutil builds a small deterministic NIFTY archive for tests.
package testutil

import (
	"context"
	"math"
	"time"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

const (
	Symbol  = "NIFTY"
	LotSize = 75
	Tick    = 50.0
)

// WeeklyExpiries are the January 2020 weekly expiries of the fixture.
var WeeklyExpiries = []time.Time{
	utils.Date(2020, 1, 9),
	utils.Date(2020, 1, 16),
	utils.Date(2020, 1, 23),
	utils.Date(2020, 1, 30),
}

// expiries lists every contract expiry present in the archive.
var expiries = append(append([]time.Time(nil), WeeklyExpiries...),
	utils.Date(2020, 2, 6),
	utils.Date(2020, 2, 27),
)

// TradingDays returns the weekdays from 2020-01-01 to 2020-02-07.
func TradingDays() []time.Time {
	var days []time.Time
	for d := utils.Date(2020, 1, 1); !d.After(utils.Date(2020, 2, 7)); d = d.AddDate(0, 0, 1) {
		if !utils.IsWeekend(d) {
			days = append(days, d)
		}
	}
	return days
}

// SpotAt returns the index close on the i-th trading day.
func SpotAt(i int) float64 {
	return 12000 + 25*float64(i) - 60*float64(i%3)
}

// SpotOn returns the index close on date, or 0 when it is not a trading day.
func SpotOn(date time.Time) float64 {
	for i, d := range TradingDays() {
		if d.Equal(utils.DateOnly(date)) {
			return SpotAt(i)
		}
	}
	return 0
}

// OptionClose is the fixture's premium model: intrinsic value plus a time
// value that decays towards expiry and away from the money.
func OptionClose(side models.OptionSide, strike, spot float64, date, expiry time.Time) float64 {
	dte := float64(utils.DaysBetween(date, expiry))
	tv := math.Max(2, 80-0.2*math.Abs(strike-spot)) * (1 + dte/7)
	v := tv
	if side == models.SideCall {
		v += math.Max(spot-strike, 0)
	} else {
		v += math.Max(strike-spot, 0)
	}
	return math.Round(v*100) / 100
}

// Records returns every contract row of the archive.
func Records() []models.ContractRecord {
	var rows []models.ContractRecord
	for i, d := range TradingDays() {
		spot := SpotAt(i)
		for _, exp := range expiries {
			if exp.Before(d) || utils.DaysBetween(d, exp) > 35 {
				continue
			}
			for k := 11500.0; k <= 13000; k += 50 {
				for _, side := range []models.OptionSide{models.SideCall, models.SidePut} {
					c := OptionClose(side, k, spot, d, exp)
					rows = append(rows, models.ContractRecord{
						Date:       d,
						Symbol:     Symbol,
						Instrument: models.InstrumentOption,
						Strike:     k,
						Side:       side,
						Expiry:     exp,
						Open:       c,
						High:       c,
						Low:        c,
						Close:      c,
						Turnover:   1e6 - math.Abs(k-spot)*100,
					})
				}
			}
		}
		for _, exp := range []time.Time{utils.Date(2020, 1, 30), utils.Date(2020, 2, 27)} {
			if exp.Before(d) {
				continue
			}
			rows = append(rows, models.ContractRecord{
				Date:       d,
				Symbol:     Symbol,
				Instrument: models.InstrumentFuture,
				Side:       models.SideNone,
				Expiry:     exp,
				Close:      spot + 10,
			})
		}
	}
	return rows
}

// Spots returns the spot series of the archive.
func Spots() []models.SpotRecord {
	days := TradingDays()
	out := make([]models.SpotRecord, len(days))
	for i, d := range days {
		out[i] = models.SpotRecord{Symbol: Symbol, Date: d, Close: SpotAt(i)}
	}
	return out
}

// Archive returns a MemoryStore loaded with the fixture.
func Archive() *store.MemoryStore {
	ctx := context.Background()
	st := store.NewMemoryStore()
	rows := Records()
	// MemoryStore never fails on save.
	_ = st.SaveContracts(ctx, rows)
	_ = st.SaveSpots(ctx, Spots())
	_ = st.SaveExpiryMarkers(ctx, store.MarkersFromContracts(rows))
	return st
}

// ShortCall returns a one-leg strategy selling the ATM weekly call two
// trading days before expiry and holding it to expiry.
func ShortCall() *models.StrategyDefinition {
	return &models.StrategyDefinition{
		Name:         "short-atm-call",
		Index:        Symbol,
		DateFrom:     utils.Date(2020, 1, 1),
		DateTo:       utils.Date(2020, 1, 31),
		ExpiryWindow: models.WindowWeekly,
		Legs: []models.LegDefinition{{
			Instrument: models.InstrumentOption,
			Side:       models.SideCall,
			Direction:  models.DirectionSell,
			Lots:       1,
			Strike:     models.StrikeRule{Kind: models.StrikeATM},
			Entry:      models.EntryTrigger{Kind: models.TriggerDaysBeforeExpiry, Days: 2},
			Exit:       models.ExitTrigger{Kind: models.TriggerDaysBeforeExpiry, Days: 0},
		}},
		LotSizes:  map[string]int{Symbol: LotSize},
		TickSizes: map[string]float64{Symbol: Tick},
	}
}

// Hiding wraps a store and hides every contract row on the given dates.
type Hiding struct {
	store.MarketDataStore
	Dates []time.Time
}

// RecordsFor returns no rows on hidden dates.
func (h Hiding) RecordsFor(ctx context.Context, symbol string, date time.Time) ([]models.ContractRecord, error) {
	for _, d := range h.Dates {
		if d.Equal(utils.DateOnly(date)) {
			return nil, nil
		}
	}
	return h.MarketDataStore.RecordsFor(ctx, symbol, date)
}
