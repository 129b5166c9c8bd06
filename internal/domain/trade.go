package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeType clasifica un trade canónico. Exactamente uno por trade.
type TradeType string

const (
	TradeBuy          TradeType = "BUY"
	TradeSellProfit   TradeType = "SELL_PROFIT"
	TradeSellStopLoss TradeType = "SELL_STOP_LOSS"
	TradeRedeem       TradeType = "REDEEM"
)

// TradeResult es el resultado de un trade cerrado.
type TradeResult string

const (
	ResultWon  TradeResult = "WON"
	ResultLost TradeResult = "LOST"
)

// Trade es el registro canónico que produce el normalizador.
//
// Invariantes: Result y PnLUSDC están ambos definidos o ambos vacíos, y
// Type == BUY sii el trade es una entrada sin realizar (sin PnLUSDC).
type Trade struct {
	Timestamp      string      `json:"timestamp"`
	Type           TradeType   `json:"type"`
	MarketAddress  string      `json:"marketAddress"`
	MarketTitle    string      `json:"marketTitle"`
	Outcome        *int        `json:"outcome,omitempty"`
	Strategy       string      `json:"strategy,omitempty"`
	CostUSDC       *Amount     `json:"costUSDC,omitempty"`
	InvestmentUSDC *Amount     `json:"investmentUSDC,omitempty"`
	ReturnUSDC     *Amount     `json:"returnUSDC,omitempty"`
	PnLUSDC        *Amount     `json:"pnlUSDC,omitempty"`
	PnLPercent     *Amount     `json:"pnlPercent,omitempty"`
	Result         TradeResult `json:"result,omitempty"`
	TxHash         string      `json:"txHash,omitempty"`
}

// IsClosed devuelve true si el trade tiene un resultado realizado.
func (t Trade) IsClosed() bool {
	return t.Result != ""
}

// Time parsea Timestamp. ok=false si no es parseable.
func (t Trade) Time() (time.Time, bool) {
	return ParseTimestamp(t.Timestamp)
}

// Cost devuelve el coste y si era calculable.
func (t Trade) Cost() (decimal.Decimal, bool) {
	return t.CostUSDC.Dec()
}

// PnL devuelve el P&L realizado y si está definido.
func (t Trade) PnL() (decimal.Decimal, bool) {
	return t.PnLUSDC.Dec()
}

// Volume es max(coste, retorno); los campos ausentes cuentan como 0.
func (t Trade) Volume() decimal.Decimal {
	cost, _ := t.CostUSDC.Dec()
	ret, _ := t.ReturnUSDC.Dec()
	return decimal.Max(cost, ret)
}
