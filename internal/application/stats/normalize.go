package stats

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

const (
	// DefaultDecimals es la escala del colateral cuando el mercado no la trae (USDC).
	DefaultDecimals = 6

	maxDecimals = 36

	// UnknownMarketTitle sustituye al título cuando la API no lo envía.
	UnknownMarketTitle = "Unknown market"
)

// Aliases por campo, en orden de prioridad. Cada versión de la API (y el
// formato legacy del subgraph) usa nombres distintos para lo mismo.
var (
	timestampKeys   = []string{"blockTimestamp", "creationTimestamp", "timestamp", "createdAt", "created_at"}
	marketKeys      = []string{"market", "fpmm"}
	marketIDKeys    = []string{"id", "address"}
	marketTitleKeys = []string{"title", "question"}
	winningKeys     = []string{"winningOutcomeIndex", "winning_outcome_index", "currentAnswerIndex"}
	decimalsKeys    = []string{"collateral.decimals", "collateralToken.decimals", "collateralDecimals", "decimals"}
	outcomeKeys     = []string{"outcomeIndex", "outcome_index", "outcome"}
	costKeys        = []string{"outcomeTokenNetCost", "cost", "investment", "investmentAmount"}
	receivedKeys    = []string{"collateralAmount", "received", "returnAmount", "payout", "outcomeTokenAmount"}
	tokenAmountKeys = []string{"outcomeTokenAmount", "amount"}
	strategyKeys    = []string{"strategy", "strategyName", "action"}
	txKeys          = []string{"transactionHash", "txHash", "transaction_hash", "id"}
)

type strategyKind int

const (
	strategyUnknown strategyKind = iota
	strategyRedeem
	strategySell
	strategyBuy
)

var hundred = decimal.NewFromInt(100)

// Normalize convierte un trade crudo en un domain.Trade canónico.
// Es total: todo campo ausente o no parseable tiene un fallback definido,
// nunca devuelve error. now se usa cuando el timestamp no es parseable.
func Normalize(raw domain.RawRecord, now time.Time) domain.Trade {
	market, _ := raw.Object(marketKeys...)
	decimals := collateralDecimals(raw, market)

	t := domain.Trade{
		Timestamp:     normalizeTimestamp(raw, now),
		MarketAddress: marketAddress(raw, market),
		MarketTitle:   marketTitle(raw, market),
	}
	t.Strategy, _ = raw.String(strategyKeys...)
	t.TxHash, _ = raw.String(txKeys...)

	outcome, hasOutcome := raw.Int(outcomeKeys...)
	if hasOutcome {
		t.Outcome = &outcome
	}

	cost, hasCost := scaled(raw, decimals, costKeys...)
	if hasCost {
		t.CostUSDC = domain.AmountPtr(cost)
	}

	switch classifyStrategy(t.Strategy) {
	case strategyRedeem:
		received, _ := scaled(raw, decimals, receivedKeys...)
		pnl := received.Sub(cost)
		t.Type = domain.TradeRedeem
		settle(&t, cost, received, pnl, resultFromSign(pnl))

	case strategySell:
		received, _ := scaled(raw, decimals, receivedKeys...)
		pnl := received.Sub(cost)
		t.Type = domain.TradeSellStopLoss
		if pnl.IsPositive() {
			t.Type = domain.TradeSellProfit
		}
		settle(&t, cost, received, pnl, resultFromSign(pnl))

	case strategyBuy:
		t.Type = domain.TradeBuy
		t.InvestmentUSDC = t.CostUSDC

	default:
		winning, resolved := market.Int(winningKeys...)
		if !resolved || !hasOutcome {
			t.Type = domain.TradeBuy
			return t
		}
		normalizeLegacy(&t, raw, decimals, cost, winning == outcome)
	}

	return t
}

// normalizeLegacy cierra un trade sin estrategia reconocible cuyo mercado ya
// está resuelto.
func normalizeLegacy(t *domain.Trade, raw domain.RawRecord, decimals int32, cost decimal.Decimal, won bool) {
	if !won {
		t.Type = domain.TradeSellStopLoss
		settle(t, cost, decimal.Zero, cost.Neg(), domain.ResultLost)
		if !cost.IsZero() {
			t.PnLPercent = domain.AmountPtr(hundred.Neg())
		}
		return
	}

	ret, _ := scaled(raw, decimals, tokenAmountKeys...)
	pnl := ret.Sub(cost)
	t.Type = domain.TradeSellStopLoss
	if pnl.IsPositive() {
		t.Type = domain.TradeSellProfit
	}
	settle(t, cost, ret, pnl, domain.ResultWon)
}

// settle rellena los campos realizados. Result y PnL se definen siempre juntos.
func settle(t *domain.Trade, cost, received, pnl decimal.Decimal, result domain.TradeResult) {
	t.ReturnUSDC = domain.AmountPtr(received)
	t.PnLUSDC = domain.AmountPtr(pnl)
	t.PnLPercent = domain.AmountPtr(pnlPercent(pnl, cost))
	t.Result = result
}

// pnlPercent es pnl/cost*100; 0 cuando cost es 0 para no dividir por cero.
func pnlPercent(pnl, cost decimal.Decimal) decimal.Decimal {
	if cost.IsZero() {
		return decimal.Zero
	}
	return pnl.Div(cost).Mul(hundred)
}

func resultFromSign(pnl decimal.Decimal) domain.TradeResult {
	if pnl.IsNegative() {
		return domain.ResultLost
	}
	return domain.ResultWon
}

// classifyStrategy: Redeem tiene prioridad sobre Sell; Buy tiene que ser exacto.
func classifyStrategy(label string) strategyKind {
	lower := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(lower, "redeem"):
		return strategyRedeem
	case strings.Contains(lower, "sell"):
		return strategySell
	case lower == "buy":
		return strategyBuy
	}
	return strategyUnknown
}

func normalizeTimestamp(raw domain.RawRecord, now time.Time) string {
	if s, ok := raw.String(timestampKeys...); ok {
		if ts, ok := domain.ParseTimestamp(s); ok {
			return domain.FormatTimestamp(ts)
		}
	}
	return domain.FormatTimestamp(now)
}

// collateralDecimals devuelve la escala del colateral. Valores fuera de
// 0..maxDecimals se ignoran: ningún token ERC-20 real pasa de 18.
func collateralDecimals(raw, market domain.RawRecord) int32 {
	if d, ok := market.Int(decimalsKeys...); ok && d >= 0 && d <= maxDecimals {
		return int32(d)
	}
	if d, ok := raw.Int(decimalsKeys...); ok && d >= 0 && d <= maxDecimals {
		return int32(d)
	}
	return DefaultDecimals
}

// scaled lee un entero de punto fijo, lo divide por 10^decimals y lo
// redondea al céntimo. PnL y Result se derivan de los importes ya
// redondeados, así que el signo del resultado coincide con lo publicado.
func scaled(raw domain.RawRecord, decimals int32, keys ...string) (decimal.Decimal, bool) {
	v, ok := raw.Decimal(keys...)
	if !ok {
		return decimal.Zero, false
	}
	return v.Shift(-decimals).Round(2), true
}

func marketAddress(raw, market domain.RawRecord) string {
	if id, ok := market.String(marketIDKeys...); ok {
		return id
	}
	if id, ok := raw.String("marketAddress", "marketId", "market_id"); ok {
		return id
	}
	// Algunas versiones mandan el mercado como string plano.
	if id, ok := raw.String(marketKeys...); ok {
		return id
	}
	return ""
}

func marketTitle(raw, market domain.RawRecord) string {
	if title, ok := market.String(marketTitleKeys...); ok {
		return title
	}
	if title, ok := raw.String("marketTitle", "title", "question"); ok {
		return title
	}
	return UnknownMarketTitle
}
