// Package diagnostics collects the per-run log of skipped cycles, filtered
// cycles and lookup fallbacks. A Collector belongs to exactly one run.
package diagnostics

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
)

// EntryKind classifies a diagnostic entry.
type EntryKind string

const (
	KindSkip         EntryKind = "skip"
	KindFiltered     EntryKind = "filtered"
	KindToleranceHit EntryKind = "tolerance_hit"
	KindIntrinsic    EntryKind = "intrinsic"
)

// Entry is one diagnostic record. Leg is -1 for cycle level entries.
type Entry struct {
	Kind    EntryKind `json:"kind"`
	Cycle   time.Time `json:"cycle"`
	Leg     int       `json:"leg"`
	Date    time.Time `json:"date,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Message string    `json:"message"`
}

// Collector is safe for concurrent use by cycle workers.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
}

// New creates an empty collector.
func New() *Collector {
	return &Collector{}
}

func (c *Collector) add(e Entry) {
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

// Skip records a dropped cycle and the error that caused it.
func (c *Collector) Skip(cycle time.Time, leg int, err error) {
	c.add(Entry{
		Kind:    KindSkip,
		Cycle:   cycle,
		Leg:     leg,
		Reason:  apperrors.Kind(err),
		Message: err.Error(),
	})
}

// Filtered records a cycle rejected by the spot-adjustment filter.
func (c *Collector) Filtered(cycle time.Time, message string) {
	c.add(Entry{Kind: KindFiltered, Cycle: cycle, Leg: -1, Message: message})
}

// ToleranceHit records a premium resolved through the expiry tolerance window.
func (c *Collector) ToleranceHit(cycle time.Time, leg int, date time.Time, message string) {
	c.add(Entry{Kind: KindToleranceHit, Cycle: cycle, Leg: leg, Date: date, Message: message})
}

// Intrinsic records an expiry-day exit priced at intrinsic value.
func (c *Collector) Intrinsic(cycle time.Time, leg int, date time.Time, message string) {
	c.add(Entry{Kind: KindIntrinsic, Cycle: cycle, Leg: leg, Date: date, Message: message})
}

// Entries returns a sorted copy of all entries. The order does not depend on
// the order in which workers reported.
func (c *Collector) Entries() []Entry {
	c.mu.Lock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Cycle.Equal(b.Cycle) {
			return a.Cycle.Before(b.Cycle)
		}
		if a.Leg != b.Leg {
			return a.Leg < b.Leg
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Message < b.Message
	})
	return out
}

// Count returns the number of entries of the given kind.
func (c *Collector) Count(kind EntryKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.CountBy(c.entries, func(e Entry) bool { return e.Kind == kind })
}

// SkipReasons returns the number of skipped cycles by error kind.
func (c *Collector) SkipReasons() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	skips := lo.Filter(c.entries, func(e Entry, _ int) bool { return e.Kind == KindSkip })
	return lo.CountValuesBy(skips, func(e Entry) string { return e.Reason })
}
