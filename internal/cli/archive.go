package cli

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/samber/lo"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/config"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store/clickhouse"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store/postgres"
)

// Archive bundles the views of the configured data driver. Writer is nil for
// the read-only csv driver.
type Archive struct {
	Market  store.MarketDataStore
	Writer  store.ArchiveWriter
	Inspect store.Inspector
	History store.RunHistory

	closers []func()
}

// Close releases every connection opened for the archive.
func (a *Archive) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openArchive connects to the driver named in the config. Drivers without run
// history fall back to the SQLite file at data.sqlite_path for it.
func (app *App) openArchive(ctx context.Context) (*Archive, error) {
	cfg := app.Config.Data
	a := &Archive{}

	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite archive: %w", err)
		}
		s.SetLogger(app.Logger)
		a.closers = append(a.closers, func() { s.Close() })
		a.Market, a.Writer, a.Inspect, a.History = s, s, s, s

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := pool.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		s := postgres.NewStore(pool)
		s.SetLogger(app.Logger)
		a.Market, a.Writer, a.Inspect, a.History = s, s, s, s

	case config.DriverClickHouse:
		conn, err := clickhouse.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { conn.Close() })
		if err := conn.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		s := clickhouse.NewStore(conn)
		s.SetLogger(app.Logger)
		a.Market, a.Writer, a.Inspect = s, s, s

	case config.DriverCSV:
		m, err := store.LoadCSVDir(ctx, cfg.CSVDir)
		if err != nil {
			return nil, err
		}
		a.Market, a.Inspect = m, m

	default:
		return nil, fmt.Errorf("unsupported data driver: %s", cfg.Driver)
	}

	if a.History == nil {
		s, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			app.Logger.Warn().Err(err).Msg("Run history unavailable")
		} else {
			s.SetLogger(app.Logger)
			a.closers = append(a.closers, func() { s.Close() })
			a.History = s
		}
	}

	app.Logger.Debug().Str("driver", cfg.Driver).Msg("Archive opened")
	return a, nil
}

// redactDSN hides the password of a connection URL.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
