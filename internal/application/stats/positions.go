package stats

import (
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

var (
	walletKeys     = []string{"wallet", "owner", "agent", "safe"}
	positionCost   = []string{"cost", "investment", "outcomeTokenNetCost", "investmentAmount"}
	positionAmount = []string{"amount", "balance", "outcomeTokenAmount", "shares"}
	entryPriceKeys = []string{"entryPrice", "entry_price", "avgPrice", "outcomeTokenPrice"}
	deadlineKeys   = []string{"deadline", "openingTimestamp", "market.openingTimestamp", "fpmm.openingTimestamp", "endDate"}
)

// NormalizeWallet devuelve la dirección con checksum EIP-55 si es una
// dirección hex; cualquier otro identificador se devuelve tal cual.
func NormalizeWallet(id string) string {
	id = strings.TrimSpace(id)
	if common.IsHexAddress(id) {
		return common.HexToAddress(id).Hex()
	}
	return id
}

// NormalizePosition convierte una posición cruda en Holding y devuelve la
// wallet a la que pertenece (defaultWallet si la posición no la trae).
func NormalizePosition(raw domain.RawRecord, defaultWallet string) (string, domain.Holding) {
	market, _ := raw.Object(marketKeys...)
	decimals := collateralDecimals(raw, market)

	h := domain.Holding{
		Market:      marketAddress(raw, market),
		MarketTitle: marketTitle(raw, market),
	}
	h.Strategy, _ = raw.String(strategyKeys...)

	if idx, ok := raw.Int(outcomeKeys...); ok {
		h.OutcomeIndex = &idx
	}
	if amount, ok := scaled(raw, decimals, positionAmount...); ok {
		h.Amount = domain.AmountPtr(amount)
	}
	if cost, ok := scaled(raw, decimals, positionCost...); ok {
		h.CostUSDC = domain.AmountPtr(cost)
	}
	if price, ok := raw.Decimal(entryPriceKeys...); ok {
		h.EntryPrice = price.String()
	}
	if s, ok := raw.String(deadlineKeys...); ok {
		if ts, ok := domain.ParseTimestamp(s); ok {
			h.Deadline = domain.FormatTimestamp(ts)
		}
	}

	wallet, ok := raw.String(walletKeys...)
	if !ok {
		wallet = defaultWallet
	}
	return NormalizeWallet(wallet), h
}

// BuildState agrupa las posiciones por wallet para state.json. La wallet por
// defecto siempre aparece, aunque no tenga posiciones.
func BuildState(positions []domain.RawRecord, defaultWallet string) map[string]domain.WalletState {
	state := make(map[string]domain.WalletState)
	if defaultWallet != "" {
		state[NormalizeWallet(defaultWallet)] = domain.WalletState{Holdings: []domain.Holding{}}
	}

	for _, raw := range positions {
		wallet, h := NormalizePosition(raw, defaultWallet)
		ws := state[wallet]
		ws.Holdings = append(ws.Holdings, h)
		state[wallet] = ws
	}

	for wallet, ws := range state {
		if ws.Holdings == nil {
			ws.Holdings = []domain.Holding{}
		}
		sort.SliceStable(ws.Holdings, func(i, j int) bool {
			return ws.Holdings[i].Market < ws.Holdings[j].Market
		})
		state[wallet] = ws
	}
	return state
}
