// Package calendar converts "N trading days before date X" into concrete
// dates using the trading days present in the spot series.
package calendar

import (
	"sort"
	"time"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// Calendar is an immutable ordered list of distinct trading dates.
type Calendar struct {
	dates []time.Time
	index map[time.Time]int
}

// New builds a calendar from dates in any order. Duplicates are dropped.
func New(dates []time.Time) *Calendar {
	sorted := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		sorted = append(sorted, utils.DateOnly(d))
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	c := &Calendar{index: make(map[time.Time]int, len(sorted))}
	for _, d := range sorted {
		if n := len(c.dates); n > 0 && c.dates[n-1].Equal(d) {
			continue
		}
		c.index[d] = len(c.dates)
		c.dates = append(c.dates, d)
	}
	return c
}

// FromSpots builds a calendar from the dates of a spot series.
func FromSpots(series []models.SpotRecord) *Calendar {
	dates := make([]time.Time, len(series))
	for i, s := range series {
		dates[i] = s.Date
	}
	return New(dates)
}

// Len returns the number of trading dates.
func (c *Calendar) Len() int { return len(c.dates) }

// First returns the earliest trading date, or the zero time when empty.
func (c *Calendar) First() time.Time {
	if len(c.dates) == 0 {
		return time.Time{}
	}
	return c.dates[0]
}

// Last returns the latest trading date, or the zero time when empty.
func (c *Calendar) Last() time.Time {
	if len(c.dates) == 0 {
		return time.Time{}
	}
	return c.dates[len(c.dates)-1]
}

// Contains reports whether d is a trading date.
func (c *Calendar) Contains(d time.Time) bool {
	_, ok := c.index[utils.DateOnly(d)]
	return ok
}

// ceil returns the position of the first trading date >= d.
func (c *Calendar) ceil(d time.Time) int {
	d = utils.DateOnly(d)
	if i, ok := c.index[d]; ok {
		return i
	}
	return sort.Search(len(c.dates), func(i int) bool { return !c.dates[i].Before(d) })
}

// NthBefore returns the date n positions earlier than the first trading date
// on or after anchor. The anchor itself is position 0 when it is a trading
// date. It fails with ErrExpiryNotFound when no trading date is on or after
// anchor or when n reaches past the start of the calendar.
func (c *Calendar) NthBefore(anchor time.Time, n int) (time.Time, error) {
	if n < 0 {
		return time.Time{}, apperrors.Wrapf(apperrors.ErrExpiryNotFound, "negative offset %d", n)
	}

	i := c.ceil(anchor)
	if i >= len(c.dates) {
		return time.Time{}, apperrors.Wrapf(apperrors.ErrExpiryNotFound,
			"no trading date on or after %s", anchor.Format(utils.DateLayout))
	}
	if i-n < 0 {
		return time.Time{}, apperrors.Wrapf(apperrors.ErrExpiryNotFound,
			"%d trading days before %s is before calendar start %s",
			n, anchor.Format(utils.DateLayout), c.dates[0].Format(utils.DateLayout))
	}
	return c.dates[i-n], nil
}

// NthAfter returns the date n positions after the first trading date on or
// after anchor.
func (c *Calendar) NthAfter(anchor time.Time, n int) (time.Time, error) {
	if n < 0 {
		return time.Time{}, apperrors.Wrapf(apperrors.ErrExpiryNotFound, "negative offset %d", n)
	}

	i := c.ceil(anchor)
	if i+n >= len(c.dates) {
		return time.Time{}, apperrors.Wrapf(apperrors.ErrExpiryNotFound,
			"%d trading days after %s is past calendar end", n, anchor.Format(utils.DateLayout))
	}
	return c.dates[i+n], nil
}

// Between returns the trading dates in [from, to].
func (c *Calendar) Between(from, to time.Time) []time.Time {
	start := c.ceil(from)
	to = utils.DateOnly(to)

	var out []time.Time
	for i := start; i < len(c.dates) && !c.dates[i].After(to); i++ {
		out = append(out, c.dates[i])
	}
	return out
}
