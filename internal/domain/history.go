package domain

// Dated es cualquier entrada de una serie histórica diaria.
type Dated interface {
	HistoryDate() string
}

// PointsEntry es el snapshot diario de puntos del agente.
type PointsEntry struct {
	Date        string  `json:"date"`
	Points      float64 `json:"points"`
	Rank        *int    `json:"rank,omitempty"`
	LastUpdated string  `json:"lastUpdated"`
}

// HistoryDate implementa Dated.
func (e PointsEntry) HistoryDate() string { return e.Date }

// VolumeEntry es el snapshot diario de volumen operado.
type VolumeEntry struct {
	Date        string `json:"date"`
	VolumeUSDC  Amount `json:"volumeUSDC"`
	Trades      int    `json:"trades"`
	Source      string `json:"source,omitempty"` // "api" o "trades"
	LastUpdated string `json:"lastUpdated"`
}

// HistoryDate implementa Dated.
func (e VolumeEntry) HistoryDate() string { return e.Date }

// PointsSnapshot es la respuesta normalizada de /points.
type PointsSnapshot struct {
	Points float64
	Rank   *int
}

// VolumeSnapshot es la respuesta normalizada de /volume.
type VolumeSnapshot struct {
	VolumeUSDC Amount
	Trades     int
}
