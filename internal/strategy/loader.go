// Package strategy reads strategy definitions from JSON or YAML files and
// turns them into validated models.StrategyDefinition values.
package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// Format is the encoding of a strategy file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension. Unknown extensions are
// read as YAML, which also accepts JSON documents.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	}
	return FormatYAML
}

type fileLeg struct {
	Instrument   string              `json:"instrument" yaml:"instrument"`
	Side         string              `json:"side" yaml:"side"`
	Direction    string              `json:"direction" yaml:"direction"`
	Lots         int                 `json:"lots" yaml:"lots"`
	ExpiryWindow string              `json:"expiry_window" yaml:"expiry_window"`
	Strike       models.StrikeRule   `json:"strike" yaml:"strike"`
	Entry        models.EntryTrigger `json:"entry" yaml:"entry"`
	Exit         models.ExitTrigger  `json:"exit" yaml:"exit"`
}

type fileStrategy struct {
	Name           string                 `json:"name" yaml:"name"`
	Index          string                 `json:"index" yaml:"index"`
	DateFrom       string                 `json:"date_from" yaml:"date_from"`
	DateTo         string                 `json:"date_to" yaml:"date_to"`
	ExpiryWindow   string                 `json:"expiry_window" yaml:"expiry_window"`
	Legs           []fileLeg              `json:"legs" yaml:"legs"`
	SpotAdjustment *models.SpotAdjustment `json:"spot_adjustment" yaml:"spot_adjustment"`
	LotSizes       map[string]int         `json:"lot_sizes" yaml:"lot_sizes"`
	TickSizes      map[string]float64     `json:"tick_sizes" yaml:"tick_sizes"`
}

// Load reads and validates the strategy file at path. markets supplies lot
// and tick sizes for indices the file does not configure itself.
func Load(path string, markets map[string]models.MarketSpec) (*models.StrategyDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, "reading strategy %s", path)
	}
	def, err := Parse(data, FormatOf(path), markets)
	if err != nil {
		return nil, apperrors.Wrapf(err, "strategy %s", filepath.Base(path))
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}

// Parse decodes data in the given format. Unknown fields are rejected.
func Parse(data []byte, format Format, markets map[string]models.MarketSpec) (*models.StrategyDefinition, error) {
	var raw fileStrategy
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidLegDefinition, "decoding json: %v", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidLegDefinition, "decoding yaml: %v", err)
		}
	default:
		return nil, apperrors.NewValidationError("format", format, "must be json or yaml")
	}

	def, err := raw.definition()
	if err != nil {
		return nil, err
	}
	mergeMarkets(def, markets)

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func (f fileStrategy) definition() (*models.StrategyDefinition, error) {
	from, err := utils.ParseDate(f.DateFrom)
	if err != nil {
		return nil, apperrors.NewValidationError("date_from", f.DateFrom, "expected YYYY-MM-DD")
	}
	to, err := utils.ParseDate(f.DateTo)
	if err != nil {
		return nil, apperrors.NewValidationError("date_to", f.DateTo, "expected YYYY-MM-DD")
	}

	def := &models.StrategyDefinition{
		Name:           strings.TrimSpace(f.Name),
		Index:          strings.ToUpper(strings.TrimSpace(f.Index)),
		DateFrom:       from,
		DateTo:         to,
		ExpiryWindow:   models.ExpiryWindow(strings.ToLower(strings.TrimSpace(f.ExpiryWindow))),
		SpotAdjustment: f.SpotAdjustment,
		LotSizes:       upperKeys(f.LotSizes),
		TickSizes:      upperKeys(f.TickSizes),
	}

	for i, l := range f.Legs {
		leg, err := l.definition(i)
		if err != nil {
			return nil, err
		}
		def.Legs = append(def.Legs, leg)
	}
	return def, nil
}

func (l fileLeg) definition(idx int) (models.LegDefinition, error) {
	kind, ok := models.ParseInstrumentKind(l.Instrument)
	if !ok {
		return models.LegDefinition{}, apperrors.NewValidationError(legField(idx, "instrument"), l.Instrument, "unknown instrument")
	}
	side, ok := models.ParseOptionSide(l.Side)
	if !ok {
		return models.LegDefinition{}, apperrors.NewValidationError(legField(idx, "side"), l.Side, "unknown option side")
	}

	leg := models.LegDefinition{
		Instrument:   kind,
		Side:         side,
		Direction:    models.Direction(strings.ToLower(strings.TrimSpace(l.Direction))),
		Lots:         l.Lots,
		ExpiryWindow: models.ExpiryWindow(strings.ToLower(strings.TrimSpace(l.ExpiryWindow))),
		Strike:       l.Strike,
		Entry:        l.Entry,
		Exit:         l.Exit,
	}
	leg.Strike.Kind = models.StrikeRuleKind(strings.ToLower(string(leg.Strike.Kind)))
	if kind == models.InstrumentFuture && leg.Strike.Kind == "" {
		leg.Strike.Kind = models.StrikeATM
	}
	if leg.Entry.Kind == "" {
		leg.Entry.Kind = models.TriggerDaysBeforeExpiry
	}
	if leg.Exit.Kind == "" {
		leg.Exit.Kind = models.TriggerDaysBeforeExpiry
	}
	return leg, nil
}

// mergeMarkets fills lot and tick sizes the file left unset.
func mergeMarkets(def *models.StrategyDefinition, markets map[string]models.MarketSpec) {
	if def.LotSizes == nil {
		def.LotSizes = map[string]int{}
	}
	if def.TickSizes == nil {
		def.TickSizes = map[string]float64{}
	}
	for symbol, spec := range markets {
		symbol = strings.ToUpper(symbol)
		if _, ok := def.LotSizes[symbol]; !ok {
			def.LotSizes[symbol] = spec.LotSize
		}
		if _, ok := def.TickSizes[symbol]; !ok {
			def.TickSizes[symbol] = spec.TickSize
		}
	}
}

func upperKeys[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}

func legField(idx int, name string) string {
	return fmt.Sprintf("legs[%d].%s", idx, name)
}
