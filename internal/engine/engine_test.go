package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/calendar"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/diagnostics"
	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/strike"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/testutil"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// expectedShortCallPnL prices the fixture's short ATM call for one expiry.
func expectedShortCallPnL(t *testing.T, exp time.Time) float64 {
	t.Helper()
	entry, err := calendar.New(testutil.TradingDays()).NthBefore(exp, 2)
	require.NoError(t, err)

	spotIn, spotOut := testutil.SpotOn(entry), testutil.SpotOn(exp)
	k := strike.ATM(spotIn, testutil.Tick)
	in := testutil.OptionClose(models.SideCall, k, spotIn, entry, exp)
	out := testutil.OptionClose(models.SideCall, k, spotOut, exp, exp)
	return (in - out) * testutil.LotSize
}

func TestSimulate_EndToEnd(t *testing.T) {
	res, err := Simulate(context.Background(), testutil.ShortCall(), testutil.Archive())
	require.NoError(t, err)

	require.Len(t, res.Trades, 4)
	for i, tr := range res.Trades {
		exp := testutil.WeeklyExpiries[i]
		assert.Equal(t, exp, tr.Cycle)
		assert.Equal(t, exp, tr.ExitDate)
		assert.Equal(t, testutil.SpotOn(tr.EntryDate), tr.EntrySpot)
		assert.Equal(t, testutil.SpotOn(exp), tr.ExitSpot)
		assert.InDelta(t, expectedShortCallPnL(t, exp), tr.NetPnL, 1e-6)
		if i > 0 {
			assert.True(t, res.Trades[i-1].EntryDate.Before(tr.EntryDate))
		}
	}

	assert.InDelta(t, res.Trades[0].EntrySpot+res.Trades[0].NetPnL, res.Trades[0].Cumulative, 1e-6)
	assert.Equal(t, 4, res.Summary.TotalTrades)
	assert.Equal(t, 4, res.Summary.CyclesEvaluated)
	assert.Zero(t, res.Summary.CyclesSkipped)
	assert.Zero(t, res.Summary.ToleranceHits)
	assert.InDelta(t, res.Summary.TotalPnL, res.Pivot.GrandTotal, 1e-6)
	assert.Empty(t, res.Diagnostics)
}

func TestSimulate_MissSkipsCycle(t *testing.T) {
	st := testutil.Hiding{MarketDataStore: testutil.Archive(), Dates: []time.Time{utils.Date(2020, 1, 16)}}

	res, err := Simulate(context.Background(), testutil.ShortCall(), st)
	require.NoError(t, err, "a missing premium never aborts the run")

	require.Len(t, res.Trades, 3)
	for _, tr := range res.Trades {
		assert.NotEqual(t, utils.Date(2020, 1, 16), tr.Cycle)
	}
	assert.Equal(t, 1, res.Summary.CyclesSkipped)
	assert.Equal(t, map[string]int{apperrors.KindPremiumMiss: 1}, res.Summary.SkipReasons)

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diagnostics.KindSkip, res.Diagnostics[0].Kind)
	assert.Equal(t, utils.Date(2020, 1, 16), res.Diagnostics[0].Cycle)
	assert.Equal(t, 0, res.Diagnostics[0].Leg)
}

func TestSimulate_UnlistedStrikeSkips(t *testing.T) {
	def := testutil.ShortCall()
	def.Legs[0].Side = models.SidePut
	def.Legs[0].Strike = models.StrikeRule{Kind: models.StrikeOTM, Steps: 40}

	res, err := Simulate(context.Background(), def, testutil.Archive())
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, map[string]int{apperrors.KindStrikeNotResolvable: 4}, res.Summary.SkipReasons)
}

func TestSimulate_Deterministic(t *testing.T) {
	encode := func(workers int) []byte {
		res, err := Simulate(context.Background(), testutil.ShortCall(), testutil.Archive(), WithWorkers(workers))
		require.NoError(t, err)
		b, err := json.Marshal(struct {
			Trades  []models.Trade
			Summary models.Summary
		}{res.Trades, res.Summary})
		require.NoError(t, err)
		return b
	}

	first := encode(1)
	for i := 0; i < 3; i++ {
		assert.Equal(t, string(first), string(encode(8)))
	}
}

func TestSimulate_InvalidDefinition(t *testing.T) {
	def := testutil.ShortCall()
	def.Legs[0].Lots = 0

	res, err := Simulate(context.Background(), def, testutil.Archive())
	assert.Nil(t, res)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidLegDefinition))

	_, err = Simulate(context.Background(), nil, testutil.Archive())
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidLegDefinition))
}

func TestSimulate_DataUnavailable(t *testing.T) {
	_, err := Simulate(context.Background(), testutil.ShortCall(), store.NewMemoryStore())
	assert.True(t, apperrors.Is(err, apperrors.ErrDataUnavailable))

	def := testutil.ShortCall()
	def.DateFrom, def.DateTo = utils.Date(2021, 1, 1), utils.Date(2021, 1, 31)
	_, err = Simulate(context.Background(), def, testutil.Archive())
	assert.True(t, apperrors.Is(err, apperrors.ErrDataUnavailable))
}

func TestSimulate_FirstCycleHistoryIsFatal(t *testing.T) {
	def := testutil.ShortCall()
	def.Legs[0].Entry.Days = 7

	res, err := Simulate(context.Background(), def, testutil.Archive())
	assert.Nil(t, res)
	assert.True(t, apperrors.Is(err, apperrors.ErrExpiryNotFound))
}

func TestSimulate_SpotFilter(t *testing.T) {
	// Entry spots: Jan 7 12040, Jan 14 12225, Jan 21 12230, Jan 28 12415.
	def := testutil.ShortCall()
	def.SpotAdjustment = &models.SpotAdjustment{Mode: models.SpotRisePoints, Threshold: 100}

	res, err := Simulate(context.Background(), def, testutil.Archive())
	require.NoError(t, err)

	require.Len(t, res.Trades, 3)
	assert.Equal(t, utils.Date(2020, 1, 30), res.Trades[2].Cycle)
	assert.Equal(t, 1, res.Summary.CyclesFiltered)
	assert.Zero(t, res.Summary.CyclesSkipped, "filtered cycles are not errors")
}

func TestPassesSpotFilter(t *testing.T) {
	tests := []struct {
		mode models.SpotAdjustmentMode
		cur  float64
		want bool
	}{
		{models.SpotRisePoints, 10100, true},
		{models.SpotRisePoints, 10050, false},
		{models.SpotFallPoints, 9900, true},
		{models.SpotFallPoints, 10100, false},
		{models.SpotRisePct, 10100, true},
		{models.SpotFallPct, 9950, false},
		{models.SpotMovePoints, 9900, true},
		{models.SpotMovePct, 10000, false},
	}
	for _, tt := range tests {
		adj := models.SpotAdjustment{Mode: tt.mode, Threshold: 100}
		if tt.mode == models.SpotRisePct || tt.mode == models.SpotFallPct || tt.mode == models.SpotMovePct {
			adj.Threshold = 1
		}
		assert.Equal(t, tt.want, PassesSpotFilter(adj, 10000, tt.cur), "%s %.0f", tt.mode, tt.cur)
	}
}

func TestSimulate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Simulate(ctx, testutil.ShortCall(), testutil.Archive())
	assert.Nil(t, res)
	assert.Equal(t, apperrors.KindCancelled, apperrors.Kind(err))
}

func TestSimulate_LegWindows(t *testing.T) {
	def := testutil.ShortCall()
	def.ExpiryWindow = models.WindowWeeklyT1
	def.Legs = append(def.Legs, models.LegDefinition{
		Instrument:   models.InstrumentOption,
		Side:         models.SidePut,
		Direction:    models.DirectionBuy,
		Lots:         1,
		ExpiryWindow: models.WindowMonthly,
		Strike:       models.StrikeRule{Kind: models.StrikeOTM, Steps: 2},
		Entry:        models.EntryTrigger{Kind: models.TriggerDaysBeforeExpiry, Days: 2},
		Exit:         models.ExitTrigger{Kind: models.TriggerDaysBeforeExpiry, Days: 0},
	})

	res, err := Simulate(context.Background(), def, testutil.Archive())
	require.NoError(t, err)
	require.Len(t, res.Trades, 4)

	next := []time.Time{utils.Date(2020, 1, 16), utils.Date(2020, 1, 23), utils.Date(2020, 1, 30), utils.Date(2020, 2, 6)}
	for i, tr := range res.Trades {
		require.Len(t, tr.Legs, 2)
		assert.Equal(t, next[i], tr.Legs[0].Expiry, "weekly_t1 trades the following weekly")
		assert.Equal(t, utils.Date(2020, 1, 30), tr.Legs[1].Expiry, "monthly leg trades the month contract")
		assert.Equal(t, tr.Legs[1].Strike, strike.ATM(tr.EntrySpot, testutil.Tick)-100)
		assert.InDelta(t, tr.Legs[0].PnL+tr.Legs[1].PnL, tr.NetPnL, 1e-6)
	}
}

// zeroExpiryClose records a zero settlement close for every call on its
// expiry day.
type zeroExpiryClose struct{ store.MarketDataStore }

func (z zeroExpiryClose) RecordsFor(ctx context.Context, symbol string, date time.Time) ([]models.ContractRecord, error) {
	rows, err := z.MarketDataStore.RecordsFor(ctx, symbol, date)
	for i := range rows {
		if rows[i].Side == models.SideCall && rows[i].Expiry.Equal(date) {
			rows[i].Close = 0
		}
	}
	return rows, err
}

func TestSimulate_IntrinsicOnZeroClose(t *testing.T) {
	res, err := Simulate(context.Background(), testutil.ShortCall(), zeroExpiryClose{testutil.Archive()})
	require.NoError(t, err)
	require.Len(t, res.Trades, 4)

	for _, tr := range res.Trades {
		leg := tr.Legs[0]
		assert.True(t, leg.IntrinsicUsed)
		want := tr.ExitSpot - leg.Strike
		if want < 0 {
			want = 0
		}
		assert.Equal(t, want, leg.ExitPrice)
	}
	assert.Equal(t, 4, res.Summary.IntrinsicSubstitutions)
}

// shiftedExpiry stores the 2020-01-16 contracts under 2020-01-17.
type shiftedExpiry struct{ store.MarketDataStore }

func (s shiftedExpiry) RecordsFor(ctx context.Context, symbol string, date time.Time) ([]models.ContractRecord, error) {
	rows, err := s.MarketDataStore.RecordsFor(ctx, symbol, date)
	for i := range rows {
		if rows[i].Expiry.Equal(utils.Date(2020, 1, 16)) {
			rows[i].Expiry = utils.Date(2020, 1, 17)
		}
	}
	return rows, err
}

func TestSimulate_ToleranceHitCounted(t *testing.T) {
	res, err := Simulate(context.Background(), testutil.ShortCall(), shiftedExpiry{testutil.Archive()})
	require.NoError(t, err)
	require.Len(t, res.Trades, 4)

	assert.True(t, res.Trades[1].Legs[0].ToleranceHit)
	assert.Equal(t, 1, res.Summary.ToleranceHits)

	_, err = Simulate(context.Background(), testutil.ShortCall(), shiftedExpiry{testutil.Archive()}, WithToleranceDays(0))
	require.NoError(t, err)
}
