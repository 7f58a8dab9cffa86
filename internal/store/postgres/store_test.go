package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// setupTestDB starts a PostgreSQL container, applies the migrations and
// returns a ready store.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")
	require.NoError(t, pool.Migrate(ctx))
	require.NoError(t, pool.Migrate(ctx), "migrations are idempotent")

	t.Cleanup(func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	return NewStore(pool)
}

func TestStore_Archive(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	d6, d7, exp := utils.Date(2020, 1, 6), utils.Date(2020, 1, 7), utils.Date(2020, 1, 9)
	contracts := []models.ContractRecord{
		{Date: d6, Symbol: "NIFTY", Instrument: models.InstrumentOption, Strike: 12150, Side: models.SideCall, Expiry: exp, Close: 88.5, Turnover: 1250},
		{Date: d7, Symbol: "NIFTY", Instrument: models.InstrumentOption, Strike: 12150, Side: models.SideCall, Expiry: exp, Close: 91},
		{Date: d7, Symbol: "NIFTY", Instrument: models.InstrumentFuture, Expiry: utils.Date(2020, 1, 30), Close: 12120},
	}
	require.NoError(t, s.SaveContracts(ctx, contracts))

	// Upsert replaces the close.
	contracts[1].Close = 92
	require.NoError(t, s.SaveContracts(ctx, contracts[1:2]))

	rows, err := s.RecordsFor(ctx, "NIFTY", d7)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.InstrumentFuture, rows[0].Instrument)
	assert.Equal(t, 92.0, rows[1].Close)
	assert.Equal(t, exp, rows[1].Expiry)

	n, err := s.ContractCount(ctx, "NIFTY", d6, d7)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.SaveSpots(ctx, []models.SpotRecord{
		{Symbol: "NIFTY", Date: d6, Close: 12100},
		{Symbol: "NIFTY", Date: d7, Close: 12125.5},
	}))
	series, err := s.SpotSeries(ctx, "NIFTY", d6, d7)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, d6, series[0].Date)

	_, ok, err := s.Spot(ctx, "NIFTY", utils.Date(2020, 1, 8))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveExpiryMarkers(ctx, store.MarkersFromContracts(contracts)))
	markers, err := s.ExpiryMarkers(ctx, "NIFTY", d6, d7)
	require.NoError(t, err)
	require.Len(t, markers, 2)
	assert.Equal(t, exp, markers[0].Current)
	assert.True(t, markers[0].Previous.IsZero(), "NULL reads back as zero")

	info, err := s.Info(ctx, "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, 3, info.Contracts)
	assert.Equal(t, 2, info.SpotDays)
	assert.Equal(t, d6, info.FirstDate)
}

func TestStore_RunHistory(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	started := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)
	for i, id := range []string{"a", "b"} {
		require.NoError(t, s.SaveRun(ctx, &store.RunRecord{
			ID: id, Symbol: "NIFTY", DateFrom: utils.Date(2020, 1, 1), DateTo: utils.Date(2020, 1, 31),
			StartedAt: started.Add(time.Duration(i) * time.Hour), Duration: 2 * time.Second, Trades: 4,
		}))
	}

	runs, err := s.ListRuns(ctx, store.RunFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)

	r, err := s.GetRun(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, r.Duration)
	assert.True(t, started.Equal(r.StartedAt))

	_, err = s.GetRun(ctx, "zzz")
	assert.True(t, apperrors.Is(err, apperrors.ErrDataNotFound))
}
