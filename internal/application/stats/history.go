package stats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

// SortOrder es el orden por fecha de una serie persistida. Cada fichero de
// histórico tiene el suyo y el dashboard depende de él.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// MergeOptions controla el orden y el tope de una serie.
type MergeOptions struct {
	Order SortOrder
	Limit int // nº máximo de días más recientes que se conservan; 0 = sin tope
}

// MergeHistory reemplaza la entrada de today.Date si existe o la añade si no,
// reordena y recorta a los Limit días más recientes. Nunca deja dos entradas
// con la misma fecha (si el histórico ya traía duplicados gana la última) y
// descarta las entradas sin fecha. Es idempotente:
// MergeHistory(MergeHistory(h, e), e) == MergeHistory(h, e).
func MergeHistory[E domain.Dated](existing []E, today E, opts MergeOptions) []E {
	byDate := make(map[string]E, len(existing)+1)
	for _, e := range existing {
		if e.HistoryDate() == "" {
			continue
		}
		byDate[e.HistoryDate()] = e
	}
	byDate[today.HistoryDate()] = today

	out := make([]E, 0, len(byDate))
	for _, e := range byDate {
		out = append(out, e)
	}

	// YYYY-MM-DD ordena lexicográficamente igual que cronológicamente.
	sort.Slice(out, func(i, j int) bool {
		return out[i].HistoryDate() > out[j].HistoryDate()
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	if opts.Order == Ascending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// DecodeHistory parsea un blob de histórico. Un blob vacío es una serie
// vacía; un blob corrupto devuelve error y el llamador decide (el pipeline
// empieza de cero).
func DecodeHistory[E any](data []byte) ([]E, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var out []E
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("stats.DecodeHistory: %w", err)
	}
	return out, nil
}
