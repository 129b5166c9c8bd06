package agentapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/predictstats/internal/domain"
	"github.com/alejandrodnm/predictstats/internal/ports"
)

// ErrTooManyPages se devuelve cuando /trades sigue mandando páginas llenas
// al llegar a MaxPages: las estadísticas saldrían de un conjunto truncado.
var ErrTooManyPages = errors.New("agentapi: trade pagination limit reached")

var _ ports.TradeSource = (*Client)(nil)

// FetchTrades pagina /trades hasta que una página viene incompleta.
func (c *Client) FetchTrades(ctx context.Context) ([]domain.RawRecord, error) {
	var all []domain.RawRecord

	for page := 0; page < c.maxPages; page++ {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.pageSize))
		params.Set("offset", strconv.Itoa(page*c.pageSize))

		var resp listPayload
		if err := c.get(ctx, "/trades", params, &resp); err != nil {
			return nil, fmt.Errorf("agentapi.FetchTrades: page %d: %w", page, err)
		}
		all = append(all, resp...)

		slog.Debug("fetched trades page", "page", page, "count", len(resp), "total", len(all))

		if len(resp) < c.pageSize {
			return all, nil
		}
	}
	return nil, fmt.Errorf("agentapi.FetchTrades: %w (%d pages of %d, raise api.max_pages)", ErrTooManyPages, c.maxPages, c.pageSize)
}

// FetchPositions devuelve las posiciones abiertas del agente.
func (c *Client) FetchPositions(ctx context.Context) ([]domain.RawRecord, error) {
	var resp listPayload
	if err := c.get(ctx, "/positions", nil, &resp); err != nil {
		return nil, fmt.Errorf("agentapi.FetchPositions: %w", err)
	}
	return resp, nil
}

// FetchPoints devuelve los puntos actuales. Un 404 significa que la API no
// los publica: nil sin error.
func (c *Client) FetchPoints(ctx context.Context) (*domain.PointsSnapshot, error) {
	var resp domain.RawRecord
	if err := c.get(ctx, "/points", nil, &resp); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("agentapi.FetchPoints: %w", err)
	}
	return mapPoints(resp), nil
}

// FetchVolume devuelve el volumen acumulado. Un 404 es nil sin error.
func (c *Client) FetchVolume(ctx context.Context) (*domain.VolumeSnapshot, error) {
	var resp domain.RawRecord
	if err := c.get(ctx, "/volume", nil, &resp); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("agentapi.FetchVolume: %w", err)
	}
	return mapVolume(resp), nil
}
