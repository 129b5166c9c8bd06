package stats_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictstats/internal/application/stats"
	"github.com/alejandrodnm/predictstats/internal/domain"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// raw parsea un fixture JSON igual que lo hace el cliente de la API (UseNumber).
func raw(t *testing.T, s string) domain.RawRecord {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var r domain.RawRecord
	require.NoError(t, dec.Decode(&r))
	return r
}

func TestNormalize_RedeemScenario(t *testing.T) {
	r := raw(t, `{
		"blockTimestamp": "1700000000",
		"market": {"id": "0xA", "title": "Will X happen?", "collateral": {"decimals": 6}},
		"outcomeIndex": 0,
		"outcomeTokenNetCost": "5000000",
		"outcomeTokenAmount": "10000000",
		"collateralAmount": "10000000",
		"outcomeTokenPrice": "0.5",
		"strategy": "Redeem",
		"transactionHash": "0xdead"
	}`)

	tr := stats.Normalize(r, fixedNow)

	assert.Equal(t, "2023-11-14T22:13:20Z", tr.Timestamp)
	assert.Equal(t, domain.TradeRedeem, tr.Type)
	assert.Equal(t, domain.ResultWon, tr.Result)
	assert.Equal(t, "0xA", tr.MarketAddress)
	assert.Equal(t, "Will X happen?", tr.MarketTitle)
	assert.Equal(t, "0xdead", tr.TxHash)
	require.NotNil(t, tr.Outcome)
	assert.Equal(t, 0, *tr.Outcome)
	assert.Equal(t, "5.00", tr.CostUSDC.String())
	assert.Equal(t, "10.00", tr.ReturnUSDC.String())
	assert.Equal(t, "5.00", tr.PnLUSDC.String())
	assert.Equal(t, "100.00", tr.PnLPercent.String())
}

func TestNormalize_RedeemLoss(t *testing.T) {
	r := raw(t, `{"timestamp": 1700000000, "strategy": "auto-Redeem",
		"outcomeTokenNetCost": "8000000", "collateralAmount": "2000000"}`)

	tr := stats.Normalize(r, fixedNow)

	assert.Equal(t, domain.TradeRedeem, tr.Type)
	assert.Equal(t, domain.ResultLost, tr.Result)
	assert.Equal(t, "-6.00", tr.PnLUSDC.String())
	assert.Equal(t, "-75.00", tr.PnLPercent.String())
}

func TestNormalize_RedeemBreakEvenIsWon(t *testing.T) {
	r := raw(t, `{"strategy": "Redeem", "cost": "3000000", "received": "3000000"}`)

	tr := stats.Normalize(r, fixedNow)

	assert.Equal(t, domain.ResultWon, tr.Result)
	assert.Equal(t, "0.00", tr.PnLUSDC.String())
}

// Una pérdida por debajo del céntimo se publica como 0.00, así que tiene
// que contar como WON igual que un break-even.
func TestNormalize_SubCentLossRoundsToBreakEven(t *testing.T) {
	r := raw(t, `{"strategy": "Redeem", "cost": "5005100", "received": "5005000"}`)

	tr := stats.Normalize(r, fixedNow)

	assert.Equal(t, "5.01", tr.CostUSDC.String())
	assert.Equal(t, "5.01", tr.ReturnUSDC.String())
	assert.Equal(t, "0.00", tr.PnLUSDC.String())
	assert.Equal(t, "0.00", tr.PnLPercent.String())
	assert.Equal(t, domain.ResultWon, tr.Result)

	sell := stats.Normalize(raw(t, `{"strategy": "Sell", "cost": "2000000", "received": "2004000"}`), fixedNow)
	assert.Equal(t, domain.TradeSellStopLoss, sell.Type, "0.004 de ganancia no es SELL_PROFIT")
	assert.Equal(t, "0.00", sell.PnLUSDC.String())
}

func TestNormalize_OutOfRangeDecimalsUseDefault(t *testing.T) {
	for _, d := range []string{`4294967298`, `40`, `-1`, `"1e20"`} {
		r := raw(t, `{"strategy": "Buy", "cost": "1500000", "market": {"collateral": {"decimals": `+d+`}}}`)

		tr := stats.Normalize(r, fixedNow)

		require.NotNil(t, tr.CostUSDC, d)
		assert.Equal(t, "1.50", tr.CostUSDC.String(), d)
	}

	r := raw(t, `{"strategy": "Buy", "cost": "1500", "market": {"collateral": {"decimals": 3}}}`)
	assert.Equal(t, "1.50", stats.Normalize(r, fixedNow).CostUSDC.String())
}

func TestNormalize_SellProfitAndStopLoss(t *testing.T) {
	profit := stats.Normalize(raw(t, `{"strategy": "Sell", "cost": "4000000", "collateralAmount": "6000000"}`), fixedNow)
	assert.Equal(t, domain.TradeSellProfit, profit.Type)
	assert.Equal(t, domain.ResultWon, profit.Result)
	assert.Equal(t, "2.00", profit.PnLUSDC.String())
	assert.Equal(t, "50.00", profit.PnLPercent.String())

	loss := stats.Normalize(raw(t, `{"strategy": "take-profit Sell", "cost": "4000000", "collateralAmount": "1000000"}`), fixedNow)
	assert.Equal(t, domain.TradeSellStopLoss, loss.Type)
	assert.Equal(t, domain.ResultLost, loss.Result)
	assert.Equal(t, "-3.00", loss.PnLUSDC.String())

	even := stats.Normalize(raw(t, `{"strategy": "Sell", "cost": "4000000", "collateralAmount": "4000000"}`), fixedNow)
	assert.Equal(t, domain.TradeSellStopLoss, even.Type, "pnl == 0 no es SELL_PROFIT")
	assert.Equal(t, domain.ResultWon, even.Result)
}

func TestNormalize_RedeemTakesPriorityOverSell(t *testing.T) {
	tr := stats.Normalize(raw(t, `{"strategy": "Sell+Redeem", "cost": "1000000", "collateralAmount": "2000000"}`), fixedNow)
	assert.Equal(t, domain.TradeRedeem, tr.Type)
}

func TestNormalize_BuyIsOpen(t *testing.T) {
	r := raw(t, `{"strategy": "Buy", "investment": "2500000",
		"market": {"id": "0xB", "winningOutcomeIndex": 1}, "outcome_index": 1}`)

	tr := stats.Normalize(r, fixedNow)

	assert.Equal(t, domain.TradeBuy, tr.Type)
	assert.Empty(t, tr.Result)
	assert.Nil(t, tr.PnLUSDC)
	assert.Nil(t, tr.PnLPercent)
	assert.Equal(t, "2.50", tr.CostUSDC.String())
	assert.Equal(t, "2.50", tr.InvestmentUSDC.String())
}

func TestNormalize_LegacyWon(t *testing.T) {
	r := raw(t, `{
		"creationTimestamp": "1700000000",
		"fpmm": {"id": "0xC", "question": "Legacy?", "currentAnswerIndex": "1", "collateralToken": {"decimals": 18}},
		"outcomeIndex": "1",
		"outcomeTokenNetCost": "2000000000000000000",
		"outcomeTokenAmount": "3500000000000000000"
	}`)

	tr := stats.Normalize(r, fixedNow)

	assert.Equal(t, "Legacy?", tr.MarketTitle)
	assert.Equal(t, domain.TradeSellProfit, tr.Type)
	assert.Equal(t, domain.ResultWon, tr.Result)
	assert.Equal(t, "2.00", tr.CostUSDC.String())
	assert.Equal(t, "3.50", tr.ReturnUSDC.String())
	assert.Equal(t, "1.50", tr.PnLUSDC.String())
	assert.Equal(t, "75.00", tr.PnLPercent.String())
}

func TestNormalize_LegacyLost(t *testing.T) {
	r := raw(t, `{"market": {"winningOutcomeIndex": 0}, "outcomeIndex": 1,
		"outcomeTokenNetCost": "4000000", "outcomeTokenAmount": "9000000"}`)

	tr := stats.Normalize(r, fixedNow)

	assert.Equal(t, domain.TradeSellStopLoss, tr.Type)
	assert.Equal(t, domain.ResultLost, tr.Result)
	assert.Equal(t, "0.00", tr.ReturnUSDC.String())
	assert.Equal(t, "-4.00", tr.PnLUSDC.String())
	assert.Equal(t, "-100.00", tr.PnLPercent.String())
}

func TestNormalize_UnresolvedUnknownStrategyStaysOpen(t *testing.T) {
	tr := stats.Normalize(raw(t, `{"strategy": "kelly", "cost": "1000000", "market": {"id": "0xD"}}`), fixedNow)

	assert.Equal(t, domain.TradeBuy, tr.Type)
	assert.Empty(t, tr.Result)
	assert.Nil(t, tr.PnLUSDC)
	assert.Nil(t, tr.InvestmentUSDC)
}

func TestNormalize_ZeroCostRealizedHasZeroPercent(t *testing.T) {
	tr := stats.Normalize(raw(t, `{"strategy": "Redeem", "cost": "0", "collateralAmount": "1000000"}`), fixedNow)

	assert.Equal(t, "1.00", tr.PnLUSDC.String())
	assert.Equal(t, "0.00", tr.PnLPercent.String())
}

func TestNormalize_Fallbacks(t *testing.T) {
	tr := stats.Normalize(raw(t, `{"timestamp": "not a date"}`), fixedNow)

	assert.Equal(t, "2024-03-10T12:00:00Z", tr.Timestamp, "timestamp no parseable → now")
	assert.Equal(t, stats.UnknownMarketTitle, tr.MarketTitle)
	assert.Nil(t, tr.CostUSDC, "sin coste no se asume 0")
	assert.Nil(t, tr.Outcome)
	assert.Equal(t, domain.TradeBuy, tr.Type)

	for _, ts := range []string{`"NaN"`, `"Inf"`, `"infinity"`, `1e300`, `-1e300`, `"9223372036854775807"`} {
		tr := stats.Normalize(raw(t, `{"timestamp": `+ts+`}`), fixedNow)
		assert.Equal(t, "2024-03-10T12:00:00Z", tr.Timestamp, ts)
	}
}

func TestNormalize_ISOTimestampAndDefaultDecimals(t *testing.T) {
	tr := stats.Normalize(raw(t, `{"createdAt": "2024-01-05T10:30:00.000Z", "strategy": "Buy", "cost": 1234567}`), fixedNow)

	assert.Equal(t, "2024-01-05T10:30:00Z", tr.Timestamp)
	assert.Equal(t, "1.23", tr.CostUSDC.String())
}

func TestNormalize_MillisecondTimestamp(t *testing.T) {
	tr := stats.Normalize(raw(t, `{"timestamp": 1700000000123, "strategy": "Buy"}`), fixedNow)
	assert.Equal(t, "2023-11-14T22:13:20Z", tr.Timestamp)
}

// Para cualquier trade cerrado, Result está definido sii PnLUSDC lo está.
func TestNormalize_ResultAndPnLDefinedTogether(t *testing.T) {
	fixtures := []string{
		`{"strategy": "Buy", "cost": "1"}`,
		`{"strategy": "Sell", "cost": "1", "received": "2"}`,
		`{"strategy": "Redeem"}`,
		`{"market": {"winningOutcomeIndex": 0}, "outcomeIndex": 0, "cost": "1", "outcomeTokenAmount": "1"}`,
		`{"market": {"winningOutcomeIndex": 0}, "cost": "1"}`,
		`{}`,
	}
	for _, f := range fixtures {
		tr := stats.Normalize(raw(t, f), fixedNow)
		assert.Equal(t, tr.Result != "", tr.PnLUSDC != nil, f)
		assert.Equal(t, tr.Type == domain.TradeBuy, tr.PnLUSDC == nil, f)
	}
}

func TestNormalize_JSONShape(t *testing.T) {
	tr := stats.Normalize(raw(t, `{"timestamp": 1700000000, "strategy": "Buy", "cost": "5000000", "market": {"id": "0xA"}}`), fixedNow)

	b, err := json.Marshal(tr)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "5.00", m["costUSDC"])
	assert.Equal(t, "BUY", m["type"])
	assert.NotContains(t, m, "pnlUSDC")
	assert.NotContains(t, m, "result")
}
