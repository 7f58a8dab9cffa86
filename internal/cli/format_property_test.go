package cli

import (
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

var indianPattern = regexp.MustCompile(`^(\d{1,2},)*\d{1,3}$`)

// parseIndianCurrency parses an Indian currency formatted string back to float64.
func parseIndianCurrency(s string) float64 {
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(s, ",", "")
	v, _ := strconv.ParseFloat(s, 64)
	if negative {
		return -v
	}
	return v
}

// For any amount, FormatIndianCurrency starts with ₹ (or -₹), carries two
// decimals, groups digits 3 then 2 from the right and parses back to the
// rounded amount.
func TestProperty_IndianCurrencyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("valid Indian format", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatIndianCurrency(amount)
			switch {
			case amount <= -0.005:
				if !strings.HasPrefix(formatted, "-₹") {
					t.Logf("expected -₹ prefix for %f, got %s", amount, formatted)
					return false
				}
			case !strings.HasPrefix(formatted, "₹"):
				t.Logf("expected ₹ prefix for %f, got %s", amount, formatted)
				return false
			}

			intPart, decPart, ok := strings.Cut(strings.TrimPrefix(strings.TrimPrefix(formatted, "-"), "₹"), ".")
			if !ok || len(decPart) != 2 {
				t.Logf("expected 2 decimal places for %f, got %s", amount, formatted)
				return false
			}
			return indianPattern.MatchString(intPart)
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("preserves value", prop.ForAll(
		func(amount float64) bool {
			parsed := parseIndianCurrency(FormatIndianCurrency(amount))
			return math.Abs(parsed-math.Round(amount*100)/100) <= 0.01
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("FormatPnL signs profits", prop.ForAll(
		func(pnl float64) bool {
			formatted := FormatPnL(pnl)
			if pnl > 0 {
				return strings.HasPrefix(formatted, "+₹")
			}
			return !strings.HasPrefix(formatted, "+")
		},
		gen.Float64Range(-1e7, 1e7),
	))

	properties.Property("FormatCompact uses correct units", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatCompact(amount)
			abs := math.Abs(amount)
			switch {
			case abs >= 10000000:
				return strings.HasSuffix(formatted, " Cr")
			case abs >= 100000:
				return strings.HasSuffix(formatted, " L")
			}
			return strings.Contains(formatted, "₹")
		},
		gen.Float64Range(-1e10, 1e10),
	))

	properties.Property("FormatCount groups like currency", prop.ForAll(
		func(n int) bool {
			return indianPattern.MatchString(FormatCount(n))
		},
		gen.IntRange(0, 1<<30),
	))

	properties.TestingRun(t)
}

func TestIndianNumberFormatExamples(t *testing.T) {
	testCases := []struct {
		amount   float64
		expected string
	}{
		{0, "₹0.00"},
		{1, "₹1.00"},
		{100, "₹100.00"},
		{1000, "₹1,000.00"},
		{100000, "₹1,00,000.00"},
		{1000000, "₹10,00,000.00"},
		{10000000, "₹1,00,00,000.00"},
		{-1234.56, "-₹1,234.56"},
		{-0.001, "₹0.00"},
		{12345678.90, "₹1,23,45,678.90"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatIndianCurrency(tc.amount))
		})
	}
}

func TestFormatPercentExamples(t *testing.T) {
	testCases := []struct {
		value    float64
		expected string
	}{
		{0, "0.00%"},
		{1.5, "+1.50%"},
		{-2.5, "-2.50%"},
		{100, "+100.00%"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatPercent(tc.value))
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "12,34,567", FormatCount(1234567))
	assert.Equal(t, "-1,000", FormatCount(-1000))
	assert.Equal(t, "n/a", FormatRatio(math.Inf(1)))
	assert.Equal(t, "1.25", FormatRatio(1.2499999))
	assert.Equal(t, "2020-01-09", FormatDate(utils.Date(2020, 1, 9)))
	assert.Equal(t, "-", FormatDate(time.Time{}))
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "2m 5s", FormatDuration(125*time.Second))
	assert.Equal(t, "short_st...", TruncateString("short_straddle_weekly", 11))
}

func TestCompactPnL(t *testing.T) {
	output := &Output{writer: io.Discard}

	assert.Equal(t, "+₹12,500.00", compactPnL(output, 12500))
	assert.Equal(t, "+₹2,45,000.00 [2.45 L]", compactPnL(output, 245000))
	assert.Equal(t, "-₹3,10,00,000.00 [-3.10 Cr]", compactPnL(output, -31000000))
	assert.Equal(t, "-1.50 L", FormatLakhs(-150000))
	assert.Equal(t, "1.00 Cr", FormatCrores(10000000))
}
