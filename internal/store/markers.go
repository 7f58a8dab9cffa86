package store

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/expiry"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
)

// MarkersFromContracts derives expiry reference rows from the contract
// expiries present in an archive. It is used when a dataset ships without a
// reference table. Option expiries are preferred; futures are used only when
// a symbol has no option rows.
func MarkersFromContracts(records []models.ContractRecord) []models.ExpiryMarker {
	bySymbol := lo.GroupBy(records, func(r models.ContractRecord) string { return r.Symbol })

	symbols := lo.Keys(bySymbol)
	sort.Strings(symbols)

	var markers []models.ExpiryMarker
	for _, symbol := range symbols {
		rows := bySymbol[symbol]
		options := lo.Filter(rows, func(r models.ContractRecord, _ int) bool {
			return r.Instrument == models.InstrumentOption
		})
		if len(options) == 0 {
			options = rows
		}

		expiries := expiry.Normalize(lo.Map(options, func(r models.ContractRecord, _ int) time.Time { return r.Expiry }))
		monthly := expiry.LastPerMonth(expiries)
		dates := expiry.Normalize(lo.Map(rows, func(r models.ContractRecord, _ int) time.Time { return r.Date }))

		for _, d := range dates {
			m := models.ExpiryMarker{Symbol: symbol, Date: d}
			i := sort.Search(len(expiries), func(i int) bool { return !expiries[i].Before(d) })
			if i > 0 {
				m.Previous = expiries[i-1]
			}
			if i < len(expiries) {
				m.Current = expiries[i]
			}
			if i+1 < len(expiries) {
				m.Next = expiries[i+1]
			}
			if j := sort.Search(len(monthly), func(j int) bool { return !monthly[j].Before(d) }); j < len(monthly) {
				m.Monthly = monthly[j]
			}
			markers = append(markers, m)
		}
	}
	return markers
}
