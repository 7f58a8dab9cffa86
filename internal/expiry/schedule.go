// Package expiry builds the ordered expiry list of a symbol and window from
// the expiry reference table.
package expiry

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// Schedule is the ordered, de-duplicated expiry list of one symbol and window.
type Schedule struct {
	Symbol   string
	Window   models.ExpiryWindow
	expiries []time.Time
}

// Cycle is one expiry cycle. Anchor is the expiry entry and exit offsets are
// counted from; Contract is the expiry of the contract traded.
type Cycle struct {
	Anchor   time.Time `json:"anchor"`
	Contract time.Time `json:"contract"`
}

// Build normalises reference rows into a schedule. Weekly windows use every
// previous, current, next and monthly marker. The monthly window keeps only
// the last expiry of each calendar month.
func Build(symbol string, window models.ExpiryWindow, markers []models.ExpiryMarker) (*Schedule, error) {
	if !window.Valid() {
		return nil, apperrors.NewValidationError("expiry_window", window, "unknown expiry window")
	}

	var dates []time.Time
	for _, m := range markers {
		if m.Symbol != "" && m.Symbol != symbol {
			continue
		}
		for _, d := range []time.Time{m.Previous, m.Current, m.Next, m.Monthly} {
			if !d.IsZero() {
				dates = append(dates, utils.DateOnly(d))
			}
		}
	}

	expiries := Normalize(dates)
	if window == models.WindowMonthly {
		expiries = LastPerMonth(expiries)
	}

	return &Schedule{Symbol: symbol, Window: window, expiries: expiries}, nil
}

// Normalize sorts dates and drops duplicates.
func Normalize(dates []time.Time) []time.Time {
	out := lo.UniqBy(dates, func(t time.Time) int64 { return utils.DateOnly(t).Unix() })
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// LastPerMonth keeps the last date of each calendar month of a sorted list.
func LastPerMonth(sorted []time.Time) []time.Time {
	var out []time.Time
	for i, d := range sorted {
		if i+1 < len(sorted) && sorted[i+1].Year() == d.Year() && sorted[i+1].Month() == d.Month() {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Len returns the number of expiries in the schedule.
func (s *Schedule) Len() int { return len(s.expiries) }

// All returns a copy of every expiry in the schedule.
func (s *Schedule) All() []time.Time {
	return append([]time.Time(nil), s.expiries...)
}

// ExpiriesIn returns the ordered expiries in [from, to].
func (s *Schedule) ExpiriesIn(from, to time.Time) []time.Time {
	from, to = utils.DateOnly(from), utils.DateOnly(to)
	return lo.Filter(s.expiries, func(d time.Time, _ int) bool {
		return !d.Before(from) && !d.After(to)
	})
}

// steps is how many expiries past the anchor the traded contract sits.
func (s *Schedule) steps() int {
	if s.Window == models.WindowWeeklyT1 {
		return 1
	}
	return 0
}

// ContractExpiry maps a cycle anchor to this window's contract: the first
// expiry on or after anchor, or the one after it for weekly_t1.
func (s *Schedule) ContractExpiry(anchor time.Time) (time.Time, error) {
	anchor = utils.DateOnly(anchor)
	i := sort.Search(len(s.expiries), func(i int) bool { return !s.expiries[i].Before(anchor) })
	i += s.steps()
	if i >= len(s.expiries) {
		return time.Time{}, apperrors.Wrap(apperrors.ErrExpiryNotFound,
			fmt.Sprintf("no %s %s expiry on or after %s", s.Symbol, s.Window, anchor.Format(utils.DateLayout)))
	}
	return s.expiries[i], nil
}

// Cycles returns the cycles whose anchor falls in [from, to]. For weekly_t1
// the anchor is the current weekly expiry and the contract is the next one;
// a final anchor with no following expiry gets a zero Contract.
func (s *Schedule) Cycles(from, to time.Time) []Cycle {
	anchors := s.ExpiriesIn(from, to)
	cycles := make([]Cycle, 0, len(anchors))
	for _, a := range anchors {
		c := Cycle{Anchor: a}
		if contract, err := s.ContractExpiry(a); err == nil {
			c.Contract = contract
		}
		cycles = append(cycles, c)
	}
	return cycles
}
