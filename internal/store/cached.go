package store

import (
	"context"
	"sync"
	"time"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

type spotEntry struct {
	spot models.SpotRecord
	ok   bool
}

// CachedStore memoises per-date lookups of an underlying store for the
// duration of one run. A cycle touches the same few dates many times, once
// per leg, strike candidate and monitoring day.
type CachedStore struct {
	MarketDataStore

	mu      sync.Mutex
	records map[string]map[time.Time][]models.ContractRecord
	spots   map[string]map[time.Time]spotEntry
}

// NewCachedStore wraps inner with an empty cache.
func NewCachedStore(inner MarketDataStore) *CachedStore {
	return &CachedStore{
		MarketDataStore: inner,
		records:         make(map[string]map[time.Time][]models.ContractRecord),
		spots:           make(map[string]map[time.Time]spotEntry),
	}
}

// RecordsFor returns cached rows, loading them on first use. Callers must
// not modify the returned slice.
func (c *CachedStore) RecordsFor(ctx context.Context, symbol string, date time.Time) ([]models.ContractRecord, error) {
	date = utils.DateOnly(date)

	c.mu.Lock()
	rows, ok := c.records[symbol][date]
	c.mu.Unlock()
	if ok {
		return rows, nil
	}

	rows, err := c.MarketDataStore.RecordsFor(ctx, symbol, date)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	byDate, exists := c.records[symbol]
	if !exists {
		byDate = make(map[time.Time][]models.ContractRecord)
		c.records[symbol] = byDate
	}
	byDate[date] = rows
	c.mu.Unlock()
	return rows, nil
}

// Spot returns the cached spot close, loading it on first use.
func (c *CachedStore) Spot(ctx context.Context, symbol string, date time.Time) (models.SpotRecord, bool, error) {
	date = utils.DateOnly(date)

	c.mu.Lock()
	entry, ok := c.spots[symbol][date]
	c.mu.Unlock()
	if ok {
		return entry.spot, entry.ok, nil
	}

	spot, found, err := c.MarketDataStore.Spot(ctx, symbol, date)
	if err != nil {
		return models.SpotRecord{}, false, err
	}

	c.mu.Lock()
	byDate, exists := c.spots[symbol]
	if !exists {
		byDate = make(map[time.Time]spotEntry)
		c.spots[symbol] = byDate
	}
	byDate[date] = spotEntry{spot: spot, ok: found}
	c.mu.Unlock()
	return spot, found, nil
}

// PrimeSpots seeds the spot cache from a series already loaded for the
// calendar.
func (c *CachedStore) PrimeSpots(series []models.SpotRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range series {
		byDate, exists := c.spots[s.Symbol]
		if !exists {
			byDate = make(map[time.Time]spotEntry)
			c.spots[s.Symbol] = byDate
		}
		byDate[utils.DateOnly(s.Date)] = spotEntry{spot: s, ok: true}
	}
}
