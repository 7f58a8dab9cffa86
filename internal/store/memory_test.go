package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

func option(date, exp time.Time, strike float64, side models.OptionSide, px float64) models.ContractRecord {
	return models.ContractRecord{Date: date, Symbol: "NIFTY", Instrument: models.InstrumentOption, Strike: strike, Side: side, Expiry: exp, Close: px}
}

func TestMarkersFromContracts(t *testing.T) {
	d6, d7, d10 := utils.Date(2020, 1, 6), utils.Date(2020, 1, 7), utils.Date(2020, 1, 10)
	e9, e16, e30 := utils.Date(2020, 1, 9), utils.Date(2020, 1, 16), utils.Date(2020, 1, 30)

	markers := MarkersFromContracts([]models.ContractRecord{
		option(d6, e9, 12000, models.SideCall, 1),
		option(d6, e16, 12000, models.SideCall, 1),
		option(d7, e9, 12000, models.SideCall, 1),
		option(d10, e16, 12000, models.SideCall, 1),
		option(d10, e30, 12000, models.SideCall, 1),
		{Date: d10, Symbol: "NIFTY", Instrument: models.InstrumentFuture, Expiry: utils.Date(2020, 2, 27), Close: 1},
	})

	require.Len(t, markers, 3)
	assert.Equal(t, models.ExpiryMarker{Symbol: "NIFTY", Date: d6, Current: e9, Next: e16, Monthly: e30}, markers[0])
	assert.Equal(t, models.ExpiryMarker{Symbol: "NIFTY", Date: d10, Previous: e9, Current: e16, Next: e30, Monthly: e30}, markers[2])
}

func TestMemoryStore_ReplacesAndCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	d, e := utils.Date(2020, 1, 7), utils.Date(2020, 1, 9)

	require.NoError(t, m.SaveContracts(ctx, []models.ContractRecord{option(d, e, 12150, models.SideCall, 90)}))
	require.NoError(t, m.SaveContracts(ctx, []models.ContractRecord{option(d.Add(10*time.Hour), e, 12150, models.SideCall, 95)}))

	rows, err := m.RecordsFor(ctx, "NIFTY", d)
	require.NoError(t, err)
	require.Len(t, rows, 1, "same key replaces")
	assert.Equal(t, 95.0, rows[0].Close)

	rows[0].Close = 0
	again, _ := m.RecordsFor(ctx, "NIFTY", d)
	assert.Equal(t, 95.0, again[0].Close, "callers get a copy")

	empty, err := m.RecordsFor(ctx, "NIFTY", utils.Date(2020, 1, 8))
	require.NoError(t, err)
	assert.Empty(t, empty)

	info, err := m.Info(ctx, "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Contracts)
	assert.Equal(t, d, info.FirstDate)
}

// countingStore counts calls reaching the wrapped store.
type countingStore struct {
	MarketDataStore
	mu            sync.Mutex
	records, spot int
}

func (c *countingStore) RecordsFor(ctx context.Context, symbol string, date time.Time) ([]models.ContractRecord, error) {
	c.mu.Lock()
	c.records++
	c.mu.Unlock()
	return c.MarketDataStore.RecordsFor(ctx, symbol, date)
}

func (c *countingStore) Spot(ctx context.Context, symbol string, date time.Time) (models.SpotRecord, bool, error) {
	c.mu.Lock()
	c.spot++
	c.mu.Unlock()
	return c.MarketDataStore.Spot(ctx, symbol, date)
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	d, e := utils.Date(2020, 1, 7), utils.Date(2020, 1, 9)
	require.NoError(t, m.SaveContracts(ctx, []models.ContractRecord{option(d, e, 12150, models.SideCall, 90)}))
	require.NoError(t, m.SaveSpots(ctx, []models.SpotRecord{{Symbol: "NIFTY", Date: d, Close: 12100}}))

	inner := &countingStore{MarketDataStore: m}
	c := NewCachedStore(inner)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := c.RecordsFor(ctx, "NIFTY", d)
			assert.NoError(t, err)
			assert.Len(t, rows, 1)
		}()
	}
	wg.Wait()
	_, _ = c.RecordsFor(ctx, "NIFTY", d)
	assert.LessOrEqual(t, inner.records, 16)

	before := inner.records
	_, _ = c.RecordsFor(ctx, "NIFTY", d)
	assert.Equal(t, before, inner.records, "second read is served from cache")

	// Misses are cached too.
	_, ok, err := c.Spot(ctx, "NIFTY", utils.Date(2020, 1, 8))
	require.NoError(t, err)
	assert.False(t, ok)
	_, _, _ = c.Spot(ctx, "NIFTY", utils.Date(2020, 1, 8))
	assert.Equal(t, 1, inner.spot)

	c.PrimeSpots([]models.SpotRecord{{Symbol: "NIFTY", Date: d, Close: 12100}})
	sp, ok, err := c.Spot(ctx, "NIFTY", d)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 12100.0, sp.Close)
	assert.Equal(t, 1, inner.spot, "primed dates never reach the inner store")
}
