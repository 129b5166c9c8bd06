package stats

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

// Outcome es la clasificación de un trade cerrado para los conteos.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeProfitable
	OutcomeLosing
)

// outcomeRule es una señal de ganancia/pérdida. La API no etiqueta de forma
// consistente, así que hay varias señales redundantes.
type outcomeRule struct {
	name    string
	outcome Outcome
	match   func(t domain.Trade) bool
}

// outcomeRules se evalúan en orden; la primera que coincide decide. Todas las
// reglas de ganancia van antes que las de pérdida.
var outcomeRules = []outcomeRule{
	{"pnl>0", OutcomeProfitable, func(t domain.Trade) bool {
		pnl, ok := t.PnL()
		return ok && pnl.IsPositive()
	}},
	{"result=WON", OutcomeProfitable, func(t domain.Trade) bool { return t.Result == domain.ResultWon }},
	{"type=SELL_PROFIT", OutcomeProfitable, func(t domain.Trade) bool { return t.Type == domain.TradeSellProfit }},
	{"pnl<0", OutcomeLosing, func(t domain.Trade) bool {
		pnl, ok := t.PnL()
		return ok && pnl.IsNegative()
	}},
	{"result=LOST", OutcomeLosing, func(t domain.Trade) bool { return t.Result == domain.ResultLost }},
	{"type=SELL_STOP_LOSS", OutcomeLosing, func(t domain.Trade) bool { return t.Type == domain.TradeSellStopLoss }},
}

// Classify aplica outcomeRules a un trade cerrado. Los trades abiertos
// siempre son OutcomeNone.
func Classify(t domain.Trade) Outcome {
	if !t.IsClosed() {
		return OutcomeNone
	}
	for _, r := range outcomeRules {
		if r.match(t) {
			return r.outcome
		}
	}
	return OutcomeNone
}

// tally acumula conteos y sumas de P&L; lo comparten el agregador y los buckets.
type tally struct {
	closed, wins, losses int
	profit, loss         decimal.Decimal
}

func (a *tally) add(t domain.Trade) {
	if !t.IsClosed() {
		return
	}
	a.closed++
	pnl, _ := t.PnL()
	switch Classify(t) {
	case OutcomeProfitable:
		a.wins++
		a.profit = a.profit.Add(pnl.Abs())
	case OutcomeLosing:
		a.losses++
		a.loss = a.loss.Add(pnl.Abs())
	}
}

func (a *tally) net() decimal.Decimal {
	return a.profit.Sub(a.loss)
}

// Aggregate calcula las estadísticas de todos los trades. Función pura.
func Aggregate(trades []domain.Trade, now time.Time) domain.Statistics {
	var (
		acc         tally
		volume      decimal.Decimal
		open        int
		first, last time.Time
	)

	for _, t := range trades {
		acc.add(t)
		if !t.IsClosed() {
			open++
		}
		if cost, ok := t.Cost(); ok {
			volume = volume.Add(cost)
		}
		if ts, ok := t.Time(); ok {
			if first.IsZero() || ts.Before(first) {
				first = ts
			}
			if last.IsZero() || ts.After(last) {
				last = ts
			}
		}
	}

	if first.IsZero() {
		first, last = now, now
	}

	return domain.Statistics{
		TotalTrades:      acc.closed,
		ProfitableTrades: acc.wins,
		LosingTrades:     acc.losses,
		OpenTrades:       open,
		TotalProfitUSDC:  domain.NewAmount(acc.profit),
		TotalLossUSDC:    domain.NewAmount(acc.loss),
		NetProfitUSDC:    domain.NewAmount(acc.net()),
		TotalVolumeUSDC:  domain.NewAmount(volume),
		WinRate:          WinRate(acc.wins, acc.closed),
		StartTime:        domain.FormatTimestamp(first),
		LastUpdated:      domain.FormatTimestamp(last),
		UptimeHours:      fmt.Sprintf("%.1f", last.Sub(first).Hours()),
	}
}

// WinRate formatea wins/total como "X.X%"; "0%" si no hay trades cerrados.
// Estadísticas y buckets usan el mismo formato.
func WinRate(wins, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(wins)/float64(total)*100)
}
