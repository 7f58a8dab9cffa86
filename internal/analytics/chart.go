package analytics

import (
	"fmt"
	"strings"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
)

// EquityCurveASCII renders the cumulative series of a computed ledger as a
// terminal chart of width columns by height rows.
func EquityCurveASCII(trades []models.Trade, width, height int) string {
	if len(trades) == 0 || width <= 0 || height <= 0 {
		return "No trades to display"
	}

	lo, hi := trades[0].Cumulative, trades[0].Cumulative
	for _, t := range trades {
		lo = min(lo, t.Cumulative)
		hi = max(hi, t.Cumulative)
	}

	span := hi - lo
	if span == 0 {
		span = 1
	}
	lo -= span * 0.05
	hi += span * 0.05
	span = hi - lo

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}

	step := len(trades) / width
	if step == 0 {
		step = 1
	}
	for x := 0; x < width && x*step < len(trades); x++ {
		y := int((trades[x*step].Cumulative - lo) / span * float64(height-1))
		if y >= 0 && y < height {
			grid[height-1-y][x] = '█'
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Equity Curve (%.0f - %.0f)\n", lo, hi))
	sb.WriteString(strings.Repeat("─", width+2) + "\n")
	for _, row := range grid {
		sb.WriteRune('│')
		sb.WriteString(string(row))
		sb.WriteRune('│')
		sb.WriteRune('\n')
	}
	sb.WriteString(strings.Repeat("─", width+2) + "\n")
	return sb.String()
}
