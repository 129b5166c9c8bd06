package agentapi

import (
	"bytes"
	"encoding/json"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

// Aliases de /points y /volume vistos en distintas versiones de la API.
var (
	pointsKeys       = []string{"points", "totalPoints", "total_points", "data.points", "data.totalPoints"}
	rankKeys         = []string{"rank", "leaderboardRank", "position", "data.rank"}
	volumeKeys       = []string{"volumeUSDC", "volume", "totalVolume", "total_volume_usdc", "data.volume", "data.volumeUSDC"}
	volumeTradesKeys = []string{"trades", "tradeCount", "trade_count", "totalTrades", "data.trades"}
)

func unmarshalNumber(b []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(out)
}

// mapPoints convierte la respuesta de /points. nil si no trae puntos.
func mapPoints(r domain.RawRecord) *domain.PointsSnapshot {
	pts, ok := r.Decimal(pointsKeys...)
	if !ok {
		return nil
	}
	f, _ := pts.Float64()
	snap := &domain.PointsSnapshot{Points: f}
	if rank, ok := r.Int(rankKeys...); ok {
		snap.Rank = &rank
	}
	return snap
}

// mapVolume convierte la respuesta de /volume. nil si no trae volumen.
func mapVolume(r domain.RawRecord) *domain.VolumeSnapshot {
	vol, ok := r.Decimal(volumeKeys...)
	if !ok {
		return nil
	}
	snap := &domain.VolumeSnapshot{VolumeUSDC: domain.NewAmount(vol)}
	snap.Trades, _ = r.Int(volumeTradesKeys...)
	return snap
}
