package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

var markets = map[string]models.MarketSpec{
	"NIFTY":     {LotSize: 75, TickSize: 50},
	"BANKNIFTY": {LotSize: 25, TickSize: 100},
}

const shortStraddleYAML = `
name: weekly short straddle
index: nifty
date_from: 2020-01-01
date_to: 2020-01-31
expiry_window: weekly
legs:
  - instrument: OPTIDX
    side: CE
    direction: sell
    lots: 1
    strike: {kind: atm}
    entry: {days: 2}
    exit: {days: 0, stop_loss_pct: 50}
  - instrument: option
    side: put
    direction: SELL
    lots: 1
    strike: {kind: otm, steps: 1}
    entry: {kind: days_before_expiry, days: 2}
    exit: {days: 0}
spot_adjustment:
  mode: rise_points
  threshold: 100
`

const futureJSON = `{
  "index": "BANKNIFTY",
  "date_from": "2020-01-01",
  "date_to": "2020-06-30",
  "expiry_window": "monthly",
  "lot_sizes": {"banknifty": 20},
  "legs": [
    {"instrument": "FUTIDX", "direction": "buy", "lots": 2, "entry": {"days": 5}, "exit": {"days": 0}}
  ]
}`

func TestParse_YAML(t *testing.T) {
	def, err := Parse([]byte(shortStraddleYAML), FormatYAML, markets)
	require.NoError(t, err)

	assert.Equal(t, "weekly short straddle", def.Name)
	assert.Equal(t, "NIFTY", def.Index)
	assert.Equal(t, utils.Date(2020, 1, 1), def.DateFrom)
	assert.Equal(t, utils.Date(2020, 1, 31), def.DateTo)
	assert.Equal(t, models.WindowWeekly, def.ExpiryWindow)
	require.Len(t, def.Legs, 2)

	ce := def.Legs[0]
	assert.Equal(t, models.InstrumentOption, ce.Instrument)
	assert.Equal(t, models.SideCall, ce.Side)
	assert.Equal(t, models.DirectionSell, ce.Direction)
	assert.Equal(t, models.TriggerDaysBeforeExpiry, ce.Entry.Kind)
	require.NotNil(t, ce.Exit.StopLossPct)
	assert.Equal(t, 50.0, *ce.Exit.StopLossPct)

	pe := def.Legs[1]
	assert.Equal(t, models.SidePut, pe.Side)
	assert.Equal(t, models.DirectionSell, pe.Direction)
	assert.Equal(t, models.StrikeRule{Kind: models.StrikeOTM, Steps: 1}, pe.Strike)

	require.NotNil(t, def.SpotAdjustment)
	assert.Equal(t, models.SpotRisePoints, def.SpotAdjustment.Mode)
	assert.Equal(t, 75, def.LotSize())
	assert.Equal(t, 50.0, def.TickSize())
}

func TestParse_JSONFuture(t *testing.T) {
	def, err := Parse([]byte(futureJSON), FormatJSON, markets)
	require.NoError(t, err)

	require.Len(t, def.Legs, 1)
	assert.Equal(t, models.InstrumentFuture, def.Legs[0].Instrument)
	assert.Equal(t, models.SideNone, def.Legs[0].Side)
	assert.Equal(t, 20, def.LotSize(), "file lot size wins over config")
	assert.Equal(t, 100.0, def.TickSize())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"unknown json field", FormatJSON, `{"index":"NIFTY","bogus":1}`},
		{"unknown yaml field", FormatYAML, "index: NIFTY\nbogus: 1\n"},
		{"bad date", FormatYAML, "index: NIFTY\ndate_from: 01/02/2020\ndate_to: 2020-02-01\n"},
		{"unknown instrument", FormatYAML, "index: NIFTY\ndate_from: 2020-01-01\ndate_to: 2020-02-01\nexpiry_window: weekly\nlegs:\n  - instrument: swap\n"},
		{"no legs", FormatYAML, "index: NIFTY\ndate_from: 2020-01-01\ndate_to: 2020-02-01\nexpiry_window: weekly\n"},
		{"unknown index", FormatYAML, "index: SENSEX\ndate_from: 2020-01-01\ndate_to: 2020-02-01\nexpiry_window: weekly\nlegs:\n  - {instrument: FUTIDX, direction: buy, lots: 1, entry: {days: 2}, exit: {days: 0}}\n"},
		{"bad format", Format("toml"), "index = 'NIFTY'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Parse([]byte(tt.data), tt.format, markets)
			assert.Nil(t, def)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidLegDefinition), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bank_future.json")
	require.NoError(t, os.WriteFile(path, []byte(futureJSON), 0o644))

	def, err := Load(path, markets)
	require.NoError(t, err)
	assert.Equal(t, "bank_future", def.Name, "name falls back to the file name")

	_, err = Load(filepath.Join(dir, "missing.yaml"), markets)
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatOf("a/b.JSON"))
	assert.Equal(t, FormatYAML, FormatOf("a/b.yml"))
	assert.Equal(t, FormatYAML, FormatOf("strategy"))
}
