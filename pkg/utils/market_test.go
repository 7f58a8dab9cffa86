package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOnly(t *testing.T) {
	ist := time.Date(2020, 1, 9, 15, 30, 0, 0, IndiaLocation)
	assert.True(t, DateOnly(ist).Equal(Date(2020, 1, 9)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2020-01-31 ")
	require.NoError(t, err)
	assert.Equal(t, Date(2020, 1, 31), d)

	_, err = ParseDate("31-01-2020")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 1, DaysBetween(Date(2020, 1, 30), Date(2020, 1, 31)))
	assert.Equal(t, -2, DaysBetween(Date(2020, 2, 1), Date(2020, 1, 30)))
	assert.Equal(t, 29, DaysBetween(Date(2020, 2, 1), Date(2020, 3, 1)))
}

func TestRetry_StopsOnSuccess(t *testing.T) {
	calls := 0
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 2 {
			return assert.AnError
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
