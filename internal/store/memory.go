package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// MemoryStore is a map-backed archive. It is loaded once and then read
// concurrently.
type MemoryStore struct {
	mu        sync.RWMutex
	contracts map[string]map[time.Time][]models.ContractRecord
	spots     map[string]map[time.Time]models.SpotRecord
	markers   map[string]map[time.Time]models.ExpiryMarker
}

// NewMemoryStore creates an empty in-memory archive.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contracts: make(map[string]map[time.Time][]models.ContractRecord),
		spots:     make(map[string]map[time.Time]models.SpotRecord),
		markers:   make(map[string]map[time.Time]models.ExpiryMarker),
	}
}

var (
	_ MarketDataStore = (*MemoryStore)(nil)
	_ ArchiveWriter   = (*MemoryStore)(nil)
	_ Inspector       = (*MemoryStore)(nil)
)

func contractKeyEqual(a, b models.ContractRecord) bool {
	return a.Instrument == b.Instrument && a.Strike == b.Strike && a.Side == b.Side && a.Expiry.Equal(b.Expiry)
}

// SaveContracts adds contract rows, replacing rows with the same key.
func (m *MemoryStore) SaveContracts(_ context.Context, records []models.ContractRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		r.Date = utils.DateOnly(r.Date)
		r.Expiry = utils.DateOnly(r.Expiry)

		byDate, ok := m.contracts[r.Symbol]
		if !ok {
			byDate = make(map[time.Time][]models.ContractRecord)
			m.contracts[r.Symbol] = byDate
		}

		rows := byDate[r.Date]
		replaced := false
		for i := range rows {
			if contractKeyEqual(rows[i], r) {
				rows[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			rows = append(rows, r)
		}
		byDate[r.Date] = rows
	}
	return nil
}

// SaveSpots adds spot closes, replacing existing dates.
func (m *MemoryStore) SaveSpots(_ context.Context, spots []models.SpotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range spots {
		s.Date = utils.DateOnly(s.Date)
		byDate, ok := m.spots[s.Symbol]
		if !ok {
			byDate = make(map[time.Time]models.SpotRecord)
			m.spots[s.Symbol] = byDate
		}
		byDate[s.Date] = s
	}
	return nil
}

// SaveExpiryMarkers adds expiry reference rows, replacing existing dates.
func (m *MemoryStore) SaveExpiryMarkers(_ context.Context, markers []models.ExpiryMarker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mk := range markers {
		mk.Date = utils.DateOnly(mk.Date)
		byDate, ok := m.markers[mk.Symbol]
		if !ok {
			byDate = make(map[time.Time]models.ExpiryMarker)
			m.markers[mk.Symbol] = byDate
		}
		byDate[mk.Date] = mk
	}
	return nil
}

// RecordsFor returns a copy of the rows of symbol on date.
func (m *MemoryStore) RecordsFor(_ context.Context, symbol string, date time.Time) ([]models.ContractRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.contracts[symbol][utils.DateOnly(date)]
	out := make([]models.ContractRecord, len(rows))
	copy(out, rows)
	return out, nil
}

// Spot returns the spot close of symbol on date.
func (m *MemoryStore) Spot(_ context.Context, symbol string, date time.Time) (models.SpotRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.spots[symbol][utils.DateOnly(date)]
	return s, ok, nil
}

func inRange(d, from, to time.Time) bool {
	return !d.Before(from) && !d.After(to)
}

// SpotSeries returns spot closes in [from, to] ordered by date.
func (m *MemoryStore) SpotSeries(_ context.Context, symbol string, from, to time.Time) ([]models.SpotRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from, to = utils.DateOnly(from), utils.DateOnly(to)
	var out []models.SpotRecord
	for d, s := range m.spots[symbol] {
		if inRange(d, from, to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ExpiryMarkers returns expiry reference rows in [from, to] ordered by date.
func (m *MemoryStore) ExpiryMarkers(_ context.Context, symbol string, from, to time.Time) ([]models.ExpiryMarker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from, to = utils.DateOnly(from), utils.DateOnly(to)
	var out []models.ExpiryMarker
	for d, mk := range m.markers[symbol] {
		if inRange(d, from, to) {
			out = append(out, mk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ContractCount returns the number of rows of symbol in [from, to].
func (m *MemoryStore) ContractCount(_ context.Context, symbol string, from, to time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from, to = utils.DateOnly(from), utils.DateOnly(to)
	n := 0
	for d, rows := range m.contracts[symbol] {
		if inRange(d, from, to) {
			n += len(rows)
		}
	}
	return n, nil
}

// Info reports the coverage of symbol.
func (m *MemoryStore) Info(_ context.Context, symbol string) (*ArchiveInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := &ArchiveInfo{Symbol: symbol, SpotDays: len(m.spots[symbol])}
	expiries := make(map[time.Time]struct{})
	for d, rows := range m.contracts[symbol] {
		info.Contracts += len(rows)
		if info.FirstDate.IsZero() || d.Before(info.FirstDate) {
			info.FirstDate = d
		}
		if d.After(info.LastDate) {
			info.LastDate = d
		}
		for _, r := range rows {
			expiries[r.Expiry] = struct{}{}
		}
	}
	info.Expiries = len(expiries)
	return info, nil
}
