package domain

// Holding es una posición abierta tal como la muestra el dashboard en state.json.
type Holding struct {
	Market       string  `json:"market"`
	MarketTitle  string  `json:"marketTitle"`
	OutcomeIndex *int    `json:"outcomeIndex,omitempty"`
	Amount       *Amount `json:"amount,omitempty"`
	CostUSDC     *Amount `json:"costUSDC,omitempty"`
	Strategy     string  `json:"strategy,omitempty"`
	EntryPrice   string  `json:"entryPrice,omitempty"`
	Deadline     string  `json:"deadline,omitempty"`
}

// WalletState es el valor de cada wallet en state.json.
type WalletState struct {
	Holdings []Holding `json:"holdings"`
}
