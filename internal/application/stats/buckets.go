package stats

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

// KeyFunc asigna un instante a su bucket: la etiqueta que se muestra y el
// inicio del bucket, que sirve de key única y de criterio de orden.
type KeyFunc func(ts time.Time) (label string, start time.Time)

// DailyKey agrupa por día de calendario en loc, con etiqueta "Jan 2".
func DailyKey(loc *time.Location) KeyFunc {
	if loc == nil {
		loc = time.Local
	}
	return func(ts time.Time) (string, time.Time) {
		start := startOfDay(ts.In(loc))
		return start.Format("Jan 2"), start
	}
}

// WeeklyKey agrupa por semana ISO (lunes a domingo) en loc; la etiqueta es
// la fecha del lunes.
func WeeklyKey(loc *time.Location) KeyFunc {
	if loc == nil {
		loc = time.Local
	}
	return func(ts time.Time) (string, time.Time) {
		day := startOfDay(ts.In(loc))
		offset := (int(day.Weekday()) + 6) % 7 // lunes = 0
		start := day.AddDate(0, 0, -offset)
		return start.Format("2006-01-02"), start
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

type bucketAcc struct {
	label  string
	start  time.Time
	valid  bool
	tally  tally
	volume decimal.Decimal
}

// Bucketize agrupa los trades con keyFn en una sola pasada. Los trades
// cerrados suman a conteos y P&L; todos suman max(coste, retorno) al
// volumen. Los trades con timestamp no parseable van al bucket "Invalid
// Date" en vez de descartarse. Salida ordenada del más reciente al más
// antiguo, con "Invalid Date" al final.
func Bucketize(trades []domain.Trade, keyFn KeyFunc) []domain.Bucket {
	accs := make(map[int64]*bucketAcc)
	var invalid *bucketAcc

	for _, t := range trades {
		var acc *bucketAcc
		if ts, ok := t.Time(); ok {
			label, start := keyFn(ts)
			acc = accs[start.Unix()]
			if acc == nil {
				acc = &bucketAcc{label: label, start: start, valid: true}
				accs[start.Unix()] = acc
			}
		} else {
			if invalid == nil {
				invalid = &bucketAcc{label: domain.InvalidDateLabel}
			}
			acc = invalid
		}

		acc.tally.add(t)
		acc.volume = acc.volume.Add(t.Volume())
	}

	ordered := make([]*bucketAcc, 0, len(accs)+1)
	for _, acc := range accs {
		ordered = append(ordered, acc)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].start.After(ordered[j].start)
	})
	if invalid != nil {
		ordered = append(ordered, invalid)
	}

	buckets := make([]domain.Bucket, 0, len(ordered))
	for _, acc := range ordered {
		b := domain.Bucket{
			Label:         acc.label,
			Trades:        acc.tally.closed,
			Wins:          acc.tally.wins,
			Losses:        acc.tally.losses,
			ProfitUSDC:    domain.NewAmount(acc.tally.profit),
			LossUSDC:      domain.NewAmount(acc.tally.loss),
			NetProfitUSDC: domain.NewAmount(acc.tally.net()),
			VolumeUSDC:    domain.NewAmount(acc.volume),
			WinRate:       WinRate(acc.tally.wins, acc.tally.closed),
		}
		if acc.valid {
			b.Date = acc.start.Format("2006-01-02")
		}
		buckets = append(buckets, b)
	}
	return buckets
}
