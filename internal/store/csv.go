package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/performance"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// DateLayouts are the accepted date layouts of archive files, in the order
// they are tried. Day-first numeric layouts only; month-first is never
// accepted.
var DateLayouts = []string{
	"2006-01-02",
	"02-Jan-2006",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"20060102",
	"2006-01-02 15:04:05",
}

// File names read by LoadCSVDir.
const (
	ContractsFile = "contracts.csv"
	SpotFile      = "spot.csv"
	ExpiryFile    = "expiry.csv"
)

// ImportBatchSize is the number of contract rows written per transaction.
const ImportBatchSize = 5000

// detectSampleSize bounds how many values are checked when detecting a layout.
const detectSampleSize = 200

// DetectDateLayout returns the first layout in DateLayouts that parses every
// sample. Empty samples are ignored. It fails with a *FormatError naming the
// first sample that no layout accepts.
func DetectDateLayout(source string, samples []string) (string, error) {
	var values []string
	for _, s := range samples {
		if s = strings.TrimSpace(s); s != "" {
			values = append(values, s)
		}
		if len(values) == detectSampleSize {
			break
		}
	}
	if len(values) == 0 {
		return DateLayouts[0], nil
	}

	for _, layout := range DateLayouts {
		ok := true
		for _, v := range values {
			if _, err := time.Parse(layout, v); err != nil {
				ok = false
				break
			}
		}
		if ok {
			return layout, nil
		}
	}

	return "", &apperrors.FormatError{Source: source, Sample: values[0], Layouts: DateLayouts}
}

func parseWith(layout, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, err
	}
	return utils.DateOnly(t), nil
}

func parseNumber(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "-" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
}

type contractRow struct {
	Date         string `csv:"date"`
	Symbol       string `csv:"symbol"`
	Instrument   string `csv:"instrument"`
	Strike       string `csv:"strike"`
	OptionType   string `csv:"option_type"`
	Expiry       string `csv:"expiry"`
	Open         string `csv:"open"`
	High         string `csv:"high"`
	Low          string `csv:"low"`
	Close        string `csv:"close"`
	Turnover     string `csv:"turnover"`
	OpenInterest string `csv:"open_interest"`
}

type spotRow struct {
	Date   string `csv:"date"`
	Symbol string `csv:"symbol"`
	Close  string `csv:"close"`
}

type expiryRow struct {
	Date     string `csv:"date"`
	Symbol   string `csv:"symbol"`
	Previous string `csv:"previous"`
	Current  string `csv:"current"`
	Next     string `csv:"next"`
	Monthly  string `csv:"monthly"`
}

// ReadContractsCSV parses a normalised bhavcopy file.
func ReadContractsCSV(r io.Reader, source string) ([]models.ContractRecord, error) {
	var rows []*contractRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	samples := make([]string, 0, 2*len(rows))
	for _, row := range rows {
		samples = append(samples, row.Date, row.Expiry)
	}
	layout, err := DetectDateLayout(source, samples)
	if err != nil {
		return nil, err
	}

	records := make([]models.ContractRecord, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		rec := models.ContractRecord{Symbol: strings.ToUpper(strings.TrimSpace(row.Symbol))}

		var ok bool
		if rec.Instrument, ok = models.ParseInstrumentKind(row.Instrument); !ok {
			return nil, fmt.Errorf("%s:%d: unknown instrument %q", source, line, row.Instrument)
		}
		if rec.Side, ok = models.ParseOptionSide(row.OptionType); !ok {
			return nil, fmt.Errorf("%s:%d: unknown option type %q", source, line, row.OptionType)
		}
		if rec.Date, err = parseWith(layout, row.Date); err != nil || rec.Date.IsZero() {
			return nil, fmt.Errorf("%s:%d: bad date %q", source, line, row.Date)
		}
		if rec.Expiry, err = parseWith(layout, row.Expiry); err != nil || rec.Expiry.IsZero() {
			return nil, fmt.Errorf("%s:%d: bad expiry %q", source, line, row.Expiry)
		}
		if strings.TrimSpace(row.Close) == "" {
			return nil, fmt.Errorf("%s:%d: close is required", source, line)
		}

		for _, f := range []struct {
			dst *float64
			src string
		}{
			{&rec.Strike, row.Strike}, {&rec.Open, row.Open}, {&rec.High, row.High}, {&rec.Low, row.Low},
			{&rec.Close, row.Close}, {&rec.Turnover, row.Turnover}, {&rec.OpenInterest, row.OpenInterest},
		} {
			if *f.dst, err = parseNumber(f.src); err != nil {
				return nil, fmt.Errorf("%s:%d: bad number %q", source, line, f.src)
			}
		}
		if rec.Instrument == models.InstrumentFuture {
			rec.Strike = 0
			rec.Side = models.SideNone
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadSpotCSV parses an index close file.
func ReadSpotCSV(r io.Reader, source string) ([]models.SpotRecord, error) {
	var rows []*spotRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	samples := make([]string, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, row.Date)
	}
	layout, err := DetectDateLayout(source, samples)
	if err != nil {
		return nil, err
	}

	spots := make([]models.SpotRecord, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		sp := models.SpotRecord{Symbol: strings.ToUpper(strings.TrimSpace(row.Symbol))}
		if sp.Date, err = parseWith(layout, row.Date); err != nil || sp.Date.IsZero() {
			return nil, fmt.Errorf("%s:%d: bad date %q", source, line, row.Date)
		}
		if sp.Close, err = parseNumber(row.Close); err != nil || sp.Close <= 0 {
			return nil, fmt.Errorf("%s:%d: bad close %q", source, line, row.Close)
		}
		spots = append(spots, sp)
	}
	return spots, nil
}

// ReadExpiryCSV parses an expiry reference file.
func ReadExpiryCSV(r io.Reader, source string) ([]models.ExpiryMarker, error) {
	var rows []*expiryRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	samples := make([]string, 0, 5*len(rows))
	for _, row := range rows {
		samples = append(samples, row.Date, row.Previous, row.Current, row.Next, row.Monthly)
	}
	layout, err := DetectDateLayout(source, samples)
	if err != nil {
		return nil, err
	}

	markers := make([]models.ExpiryMarker, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		m := models.ExpiryMarker{Symbol: strings.ToUpper(strings.TrimSpace(row.Symbol))}
		if m.Date, err = parseWith(layout, row.Date); err != nil || m.Date.IsZero() {
			return nil, fmt.Errorf("%s:%d: bad date %q", source, line, row.Date)
		}
		for _, f := range []struct {
			dst *time.Time
			src string
		}{{&m.Previous, row.Previous}, {&m.Current, row.Current}, {&m.Next, row.Next}, {&m.Monthly, row.Monthly}} {
			if *f.dst, err = parseWith(layout, f.src); err != nil {
				return nil, fmt.Errorf("%s:%d: bad expiry %q", source, line, f.src)
			}
		}
		markers = append(markers, m)
	}
	return markers, nil
}

func readFile[T any](path string, read func(io.Reader, string) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return read(f, filepath.Base(path))
}

// ImportStats counts the rows loaded by ImportCSV.
type ImportStats struct {
	Contracts int `json:"contracts"`
	Spots     int `json:"spots"`
	Markers   int `json:"markers"`
}

// CSVPaths names the files of one import. Empty paths are skipped.
type CSVPaths struct {
	Contracts string
	Spot      string
	Expiry    string
}

// ImportCSV reads the given files and writes them into w. When no expiry
// file is given the reference rows are derived from the contracts.
func ImportCSV(ctx context.Context, w ArchiveWriter, paths CSVPaths) (ImportStats, error) {
	var stats ImportStats
	var contracts []models.ContractRecord

	if paths.Contracts != "" {
		records, err := readFile(paths.Contracts, ReadContractsCSV)
		if err != nil {
			return stats, err
		}
		batch := performance.NewBatchProcessor(ImportBatchSize, func(rows []models.ContractRecord) error {
			return w.SaveContracts(ctx, rows)
		})
		for _, r := range records {
			if err := batch.Add(r); err != nil {
				return stats, fmt.Errorf("saving contracts: %w", err)
			}
		}
		if err := batch.Flush(); err != nil {
			return stats, fmt.Errorf("saving contracts: %w", err)
		}
		contracts = records
		stats.Contracts = batch.Processed()
	}

	if paths.Spot != "" {
		spots, err := readFile(paths.Spot, ReadSpotCSV)
		if err != nil {
			return stats, err
		}
		if err := w.SaveSpots(ctx, spots); err != nil {
			return stats, fmt.Errorf("saving spots: %w", err)
		}
		stats.Spots = len(spots)
	}

	var markers []models.ExpiryMarker
	if paths.Expiry != "" {
		var err error
		if markers, err = readFile(paths.Expiry, ReadExpiryCSV); err != nil {
			return stats, err
		}
	} else if len(contracts) > 0 {
		markers = MarkersFromContracts(contracts)
	}
	if err := w.SaveExpiryMarkers(ctx, markers); err != nil {
		return stats, fmt.Errorf("saving expiry markers: %w", err)
	}
	stats.Markers = len(markers)

	return stats, nil
}

// LoadCSVDir builds a MemoryStore from contracts.csv, spot.csv and the
// optional expiry.csv inside dir.
func LoadCSVDir(ctx context.Context, dir string) (*MemoryStore, error) {
	paths := CSVPaths{
		Contracts: filepath.Join(dir, ContractsFile),
		Spot:      filepath.Join(dir, SpotFile),
	}
	if _, err := os.Stat(filepath.Join(dir, ExpiryFile)); err == nil {
		paths.Expiry = filepath.Join(dir, ExpiryFile)
	}

	m := NewMemoryStore()
	if _, err := ImportCSV(ctx, m, paths); err != nil {
		return nil, err
	}
	return m, nil
}
