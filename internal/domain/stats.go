package domain

// Statistics es el agregado de un conjunto de trades. No se persiste como
// entidad propia: se recalcula en cada ejecución desde todos los trades.
type Statistics struct {
	TotalTrades      int    `json:"totalTrades"` // solo trades cerrados
	ProfitableTrades int    `json:"profitableTrades"`
	LosingTrades     int    `json:"losingTrades"`
	OpenTrades       int    `json:"openTrades"`
	TotalProfitUSDC  Amount `json:"totalProfitUSDC"`
	TotalLossUSDC    Amount `json:"totalLossUSDC"`
	NetProfitUSDC    Amount `json:"netProfitUSDC"`
	TotalVolumeUSDC  Amount `json:"totalVolumeUSDC"`
	WinRate          string `json:"winRate"`
	StartTime        string `json:"startTime"`
	LastUpdated      string `json:"lastUpdated"`
	UptimeHours      string `json:"uptimeHours"`

	// Enriquecimiento opcional desde /points; ausente si el fetch falló.
	Points *float64 `json:"points,omitempty"`
	Rank   *int     `json:"rank,omitempty"`
}

// InvalidDateLabel agrupa los trades cuyo timestamp no se puede parsear.
const InvalidDateLabel = "Invalid Date"

// Bucket es el rollup de todos los trades que comparten día o semana.
// Trades/Wins/Losses y los campos de P&L solo cuentan trades cerrados;
// VolumeUSDC suma max(coste, retorno) de todos.
type Bucket struct {
	Label         string `json:"label"`          // "Jan 2", "2024-01-01" o "Invalid Date"
	Date          string `json:"date,omitempty"` // inicio del bucket, YYYY-MM-DD
	Trades        int    `json:"trades"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	ProfitUSDC    Amount `json:"profitUSDC"`
	LossUSDC      Amount `json:"lossUSDC"`
	NetProfitUSDC Amount `json:"netProfitUSDC"`
	VolumeUSDC    Amount `json:"volumeUSDC"`
	WinRate       string `json:"winRate"`
}
