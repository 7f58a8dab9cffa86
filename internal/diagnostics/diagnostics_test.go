package diagnostics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
)

func day(d int) time.Time {
	return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestCollector_EntriesSortedRegardlessOfReportOrder(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for _, d := range []int{30, 9, 23, 16} {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			c.Skip(day(d), 0, apperrors.Wrap(apperrors.ErrPremiumMiss, "exit"))
		}(d)
	}
	wg.Wait()
	c.Filtered(day(16), "spot rose 10 points")

	entries := c.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, day(9), entries[0].Cycle)
	assert.Equal(t, KindFiltered, entries[1].Kind, "cycle level entry sorts before leg 0")
	assert.Equal(t, day(30), entries[4].Cycle)
}

func TestCollector_Counts(t *testing.T) {
	c := New()
	c.Skip(day(9), 0, apperrors.ErrPremiumMiss)
	c.Skip(day(16), 1, apperrors.Wrap(apperrors.ErrStrikeNotResolvable, "entry"))
	c.Skip(day(23), 0, apperrors.ErrPremiumMiss)
	c.ToleranceHit(day(30), 0, day(28), "expiry 2020-01-30 matched for 2020-01-31")

	assert.Equal(t, 3, c.Count(KindSkip))
	assert.Equal(t, 1, c.Count(KindToleranceHit))
	assert.Equal(t, 0, c.Count(KindIntrinsic))
	assert.Equal(t, map[string]int{
		apperrors.KindPremiumMiss:         2,
		apperrors.KindStrikeNotResolvable: 1,
	}, c.SkipReasons())
}
