package premium

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

func option(date time.Time, strike float64, side models.OptionSide, expiry time.Time, close float64) models.ContractRecord {
	return models.ContractRecord{
		Date:       date,
		Symbol:     "NIFTY",
		Instrument: models.InstrumentOption,
		Strike:     strike,
		Side:       side,
		Expiry:     expiry,
		Close:      close,
		Turnover:   1000,
	}
}

func newStore(t *testing.T, rows ...models.ContractRecord) store.MarketDataStore {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.SaveContracts(context.Background(), rows))
	return st
}

func key(date time.Time, strike float64, side models.OptionSide, expiry time.Time) Key {
	return Key{
		Date:       date,
		Symbol:     "NIFTY",
		Instrument: models.InstrumentOption,
		Strike:     strike,
		Side:       side,
		Expiry:     expiry,
		Tick:       50,
	}
}

func TestQuote_ExactMatch(t *testing.T) {
	d, exp := utils.Date(2020, 1, 7), utils.Date(2020, 1, 9)
	st := newStore(t,
		option(d, 12150, models.SideCall, exp, 84.5),
		option(d, 12150, models.SidePut, exp, 61.2),
		option(d, 12200, models.SideCall, exp, 55.0),
	)

	q, err := New(st).Quote(context.Background(), key(d, 12150, models.SideCall, exp))
	require.NoError(t, err)
	assert.Equal(t, 84.5, q.Close)
	assert.Equal(t, exp, q.Expiry)
	assert.False(t, q.ToleranceHit)
}

func TestQuote_ToleranceHit(t *testing.T) {
	d := utils.Date(2020, 1, 28)
	stored, target := utils.Date(2020, 1, 30), utils.Date(2020, 1, 31)
	st := newStore(t, option(d, 12000, models.SidePut, stored, 40))

	q, err := New(st).Quote(context.Background(), key(d, 12000, models.SidePut, target))
	require.NoError(t, err)
	assert.Equal(t, 40.0, q.Close)
	assert.Equal(t, stored, q.Expiry)
	assert.True(t, q.ToleranceHit)
}

func TestQuote_OutsideToleranceIsMiss(t *testing.T) {
	d := utils.Date(2020, 1, 27)
	st := newStore(t, option(d, 12000, models.SidePut, utils.Date(2020, 1, 30), 40))

	_, err := New(st).Quote(context.Background(), key(d, 12000, models.SidePut, utils.Date(2020, 2, 1)))
	assert.True(t, apperrors.Is(err, apperrors.ErrPremiumMiss))

	_, err = New(st, WithToleranceDays(0)).Quote(context.Background(), key(d, 12000, models.SidePut, utils.Date(2020, 1, 31)))
	assert.True(t, apperrors.Is(err, apperrors.ErrPremiumMiss))

	q, err := New(st, WithToleranceDays(2)).Quote(context.Background(), key(d, 12000, models.SidePut, utils.Date(2020, 2, 1)))
	require.NoError(t, err)
	assert.True(t, q.ToleranceHit)
}

func TestQuote_PrefersEarlierExpiryOnEqualOffset(t *testing.T) {
	d := utils.Date(2020, 1, 6)
	st := newStore(t,
		option(d, 12000, models.SideCall, utils.Date(2020, 1, 8), 10),
		option(d, 12000, models.SideCall, utils.Date(2020, 1, 10), 20),
	)

	q, err := New(st).Quote(context.Background(), key(d, 12000, models.SideCall, utils.Date(2020, 1, 9)))
	require.NoError(t, err)
	assert.Equal(t, 10.0, q.Close)
}

func TestQuote_NoStrikeSubstitution(t *testing.T) {
	d, exp := utils.Date(2020, 1, 7), utils.Date(2020, 1, 9)
	st := newStore(t, option(d, 12200, models.SideCall, exp, 55))

	_, err := New(st).Quote(context.Background(), key(d, 12150, models.SideCall, exp))
	assert.True(t, apperrors.Is(err, apperrors.ErrPremiumMiss))
	assert.Equal(t, apperrors.KindPremiumMiss, apperrors.Kind(err))

	// Rounding noise inside half a tick still matches.
	st = newStore(t, option(d, 12150.05, models.SideCall, exp, 80))
	q, err := New(st).Quote(context.Background(), key(d, 12150, models.SideCall, exp))
	require.NoError(t, err)
	assert.Equal(t, 80.0, q.Close)
}

func TestExitPrice_IntrinsicModes(t *testing.T) {
	exp := utils.Date(2020, 1, 9)
	st := newStore(t,
		option(exp, 12000, models.SideCall, exp, 0),
		option(exp, 12300, models.SidePut, exp, 1.5),
	)
	ctx := context.Background()
	spot := 12100.0

	q, err := New(st).ExitPrice(ctx, key(exp, 12000, models.SideCall, exp), spot)
	require.NoError(t, err)
	assert.Equal(t, 100.0, q.Close)
	assert.True(t, q.IntrinsicUsed)

	q, err = New(st).ExitPrice(ctx, key(exp, 12300, models.SidePut, exp), spot)
	require.NoError(t, err)
	assert.Equal(t, 1.5, q.Close, "non-zero close is kept in zero_close mode")
	assert.False(t, q.IntrinsicUsed)

	q, err = New(st, WithIntrinsicMode(IntrinsicAlways)).ExitPrice(ctx, key(exp, 12300, models.SidePut, exp), spot)
	require.NoError(t, err)
	assert.Equal(t, 200.0, q.Close)

	q, err = New(st, WithIntrinsicMode(IntrinsicNever)).ExitPrice(ctx, key(exp, 12000, models.SideCall, exp), spot)
	require.NoError(t, err)
	assert.Equal(t, 0.0, q.Close)
	assert.False(t, q.IntrinsicUsed)
}

func TestExitPrice_MissingRowIsStillMiss(t *testing.T) {
	exp := utils.Date(2020, 1, 9)
	st := newStore(t)
	_, err := New(st, WithIntrinsicMode(IntrinsicAlways)).ExitPrice(context.Background(), key(exp, 12000, models.SideCall, exp), 12100)
	assert.True(t, apperrors.Is(err, apperrors.ErrPremiumMiss))
}

func TestChain(t *testing.T) {
	d, exp := utils.Date(2020, 1, 7), utils.Date(2020, 1, 9)
	st := newStore(t,
		option(d, 12200, models.SideCall, exp, 55),
		option(d, 12100, models.SideCall, exp, 120),
		option(d, 12150, models.SideCall, exp, 0),
		option(d, 12100, models.SidePut, exp, 70),
		option(d, 12100, models.SideCall, utils.Date(2020, 1, 16), 150),
	)

	chain, err := New(st).Chain(context.Background(), d, "NIFTY", models.SideCall, exp)
	require.NoError(t, err)
	require.Len(t, chain, 2, "zero premiums are not candidates")
	assert.Equal(t, 12100.0, chain[0].Strike)
	assert.Equal(t, 12200.0, chain[1].Strike)

	chain, err = New(st).Chain(context.Background(), d, "NIFTY", models.SideCall, utils.Date(2020, 1, 10))
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.True(t, chain[0].ToleranceHit)

	chain, err = New(st).Chain(context.Background(), d, "NIFTY", models.SidePut, utils.Date(2020, 2, 27))
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestIntrinsic(t *testing.T) {
	assert.Equal(t, 50.0, Intrinsic(models.SideCall, 12000, 12050))
	assert.Equal(t, 0.0, Intrinsic(models.SideCall, 12100, 12050))
	assert.Equal(t, 50.0, Intrinsic(models.SidePut, 12100, 12050))
	assert.Equal(t, 0.0, Intrinsic(models.SideNone, 12100, 12050))
}
