package ports

import (
	"context"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

// TradeSource obtiene los datos crudos del agente desde la API externa.
// Solo FetchTrades es obligatorio para una ejecución; el resto son
// enriquecimientos que pueden fallar sin abortar.
type TradeSource interface {
	// FetchTrades devuelve todos los trades crudos del agente.
	FetchTrades(ctx context.Context) ([]domain.RawRecord, error)

	// FetchPositions devuelve las posiciones abiertas crudas.
	FetchPositions(ctx context.Context) ([]domain.RawRecord, error)

	// FetchPoints devuelve los puntos actuales; nil si la API no los publica.
	FetchPoints(ctx context.Context) (*domain.PointsSnapshot, error)

	// FetchVolume devuelve el volumen acumulado; nil si la API no lo publica.
	FetchVolume(ctx context.Context) (*domain.VolumeSnapshot, error)
}
