package legsim

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/calendar"
	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/premium"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/strike"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/testutil"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

func simulator(st store.MarketDataStore, days []time.Time) *Simulator {
	lookup := premium.New(st)
	return &Simulator{
		Calendar: calendar.New(days),
		Pricer:   lookup,
		Strikes:  strike.NewResolver(lookup),
		Spots:    st,
		Symbol:   testutil.Symbol,
		LotSize:  testutil.LotSize,
		Tick:     testutil.Tick,
		Logger:   zerolog.Nop(),
	}
}

func shortCall() models.LegDefinition {
	return testutil.ShortCall().Legs[0]
}

func TestRun_ShortCallHeldToExpiry(t *testing.T) {
	sim := simulator(testutil.Archive(), testutil.TradingDays())
	exp := utils.Date(2020, 1, 9)
	leg := NewLeg(0, shortCall(), exp, exp)

	require.NoError(t, sim.Run(context.Background(), leg))
	assert.Equal(t, StateClosed, leg.State())

	res := leg.Result()
	entry, exit := utils.Date(2020, 1, 7), exp
	entrySpot, exitSpot := testutil.SpotOn(entry), testutil.SpotOn(exit)
	wantStrike := strike.ATM(entrySpot, testutil.Tick)

	assert.Equal(t, entry, res.EntryDate)
	assert.Equal(t, exit, res.ExitDate)
	assert.Equal(t, wantStrike, res.Strike)
	assert.Equal(t, testutil.OptionClose(models.SideCall, wantStrike, entrySpot, entry, exp), res.EntryPrice)
	assert.Equal(t, testutil.OptionClose(models.SideCall, wantStrike, exitSpot, exit, exp), res.ExitPrice)
	assert.Equal(t, models.ExitScheduled, res.ExitReason)
	assert.InDelta(t, (res.EntryPrice-res.ExitPrice)*testutil.LotSize, res.PnL, 1e-9)
	assert.False(t, res.ToleranceHit)
}

func TestRun_ExitMissSkipsLeg(t *testing.T) {
	exp := utils.Date(2020, 1, 9)
	st := testutil.Hiding{MarketDataStore: testutil.Archive(), Dates: []time.Time{exp}}
	sim := simulator(st, testutil.TradingDays())
	leg := NewLeg(0, shortCall(), exp, exp)

	err := sim.Run(context.Background(), leg)
	require.Error(t, err)
	assert.Equal(t, StateSkipped, leg.State())
	assert.Equal(t, apperrors.KindPremiumMiss, apperrors.Kind(err))

	var ce *apperrors.CycleError
	require.True(t, apperrors.As(err, &ce))
	assert.Equal(t, StageExit, ce.Stage)
	assert.Equal(t, exp, ce.Expiry)
}

func TestRun_EntryBeforeHistory(t *testing.T) {
	sim := simulator(testutil.Archive(), testutil.TradingDays())
	def := shortCall()
	def.Entry.Days = 10
	exp := utils.Date(2020, 1, 9)
	leg := NewLeg(0, def, exp, exp)

	err := sim.Run(context.Background(), leg)
	assert.True(t, apperrors.Is(err, apperrors.ErrExpiryNotFound))
	assert.Equal(t, StateSkipped, leg.State())
}

func TestRun_StopLossAtEndOfDay(t *testing.T) {
	ctx := context.Background()
	exp := utils.Date(2020, 1, 9)
	days := []time.Time{utils.Date(2020, 1, 6), utils.Date(2020, 1, 7), utils.Date(2020, 1, 8), exp}

	st := store.NewMemoryStore()
	var spots []models.SpotRecord
	for _, d := range days {
		spots = append(spots, models.SpotRecord{Symbol: "NIFTY", Date: d, Close: 12000})
	}
	require.NoError(t, st.SaveSpots(ctx, spots))

	row := func(d time.Time, close float64) models.ContractRecord {
		return models.ContractRecord{Date: d, Symbol: "NIFTY", Instrument: models.InstrumentOption,
			Strike: 12000, Side: models.SideCall, Expiry: exp, Close: close}
	}
	// No row on Jan 7: a monitoring-day gap is ignored.
	require.NoError(t, st.SaveContracts(ctx, []models.ContractRecord{
		row(days[0], 100), row(days[2], 130), row(days[3], 50),
	}))

	sl := 25.0
	def := shortCall()
	def.Entry.Days = 3
	def.Exit.StopLossPct = &sl

	sim := simulator(st, days)
	leg := NewLeg(0, def, exp, exp)
	require.NoError(t, sim.Run(ctx, leg))

	res := leg.Result()
	assert.Equal(t, models.ExitStopLoss, res.ExitReason)
	assert.Equal(t, days[2], res.ExitDate)
	assert.Equal(t, 130.0, res.ExitPrice)
	assert.Equal(t, -2250.0, res.PnL)
}

func TestRun_FutureLegUsesSpot(t *testing.T) {
	sim := simulator(testutil.Archive(), testutil.TradingDays())
	exp := utils.Date(2020, 1, 30)
	def := models.LegDefinition{
		Instrument: models.InstrumentFuture,
		Direction:  models.DirectionBuy,
		Lots:       2,
		Entry:      models.EntryTrigger{Kind: models.TriggerDaysBeforeExpiry, Days: 3},
		Exit:       models.ExitTrigger{Kind: models.TriggerDaysBeforeExpiry, Days: 1},
	}
	leg := NewLeg(0, def, exp, exp)
	require.NoError(t, sim.Run(context.Background(), leg))

	res := leg.Result()
	entry, exit := utils.Date(2020, 1, 27), utils.Date(2020, 1, 29)
	assert.Equal(t, testutil.SpotOn(entry), res.EntryPrice)
	assert.Equal(t, testutil.SpotOn(exit), res.ExitPrice)
	assert.InDelta(t, (res.ExitPrice-res.EntryPrice)*2*testutil.LotSize, res.PnL, 1e-9)
}

func TestRun_OnlyOnce(t *testing.T) {
	sim := simulator(testutil.Archive(), testutil.TradingDays())
	exp := utils.Date(2020, 1, 9)
	leg := NewLeg(0, shortCall(), exp, exp)
	require.NoError(t, sim.Run(context.Background(), leg))
	assert.Error(t, sim.Run(context.Background(), leg))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := simulator(testutil.Archive(), testutil.TradingDays())
	exp := utils.Date(2020, 1, 9)
	leg := NewLeg(0, shortCall(), exp, exp)
	err := sim.Run(ctx, leg)
	assert.Equal(t, apperrors.KindCancelled, apperrors.Kind(err))
}

func TestThreshold(t *testing.T) {
	sl, tp := 50.0, 40.0
	exit := models.ExitTrigger{StopLossPct: &sl, TargetPct: &tp}

	tests := []struct {
		name   string
		dir    models.Direction
		price  float64
		reason models.ExitReason
		hit    bool
	}{
		{"sell stop", models.DirectionSell, 150, models.ExitStopLoss, true},
		{"sell target", models.DirectionSell, 60, models.ExitTarget, true},
		{"sell inside", models.DirectionSell, 120, "", false},
		{"buy stop", models.DirectionBuy, 50, models.ExitStopLoss, true},
		{"buy target", models.DirectionBuy, 140, models.ExitTarget, true},
		{"buy inside", models.DirectionBuy, 110, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, hit := Threshold(tt.dir, 100, tt.price, exit)
			assert.Equal(t, tt.hit, hit)
			assert.Equal(t, tt.reason, reason)
		})
	}

	_, hit := Threshold(models.DirectionSell, 100, 1000, models.ExitTrigger{})
	assert.False(t, hit)
}

func TestPnL(t *testing.T) {
	assert.Equal(t, 750.0, PnL(100, 90, models.DirectionSell, 1, 75))
	assert.Equal(t, -1500.0, PnL(100, 90, models.DirectionBuy, 2, 75))
	assert.Equal(t, 15.0, PnL(100.1, 100.3, models.DirectionBuy, 1, 75))
}
