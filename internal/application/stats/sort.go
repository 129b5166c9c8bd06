package stats

import (
	"sort"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

// SortByTimeDesc ordena in-place del más reciente al más antiguo. Los trades
// con timestamp no parseable quedan al final, en su orden original.
func SortByTimeDesc(trades []domain.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		ti, okI := trades[i].Time()
		tj, okJ := trades[j].Time()
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})
}
