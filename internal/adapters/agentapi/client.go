package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 15 * time.Second

	// La API del agente no documenta límites; 5/s es conservador.
	defaultRatePerSec = 5
	defaultBurst      = 5

	defaultPageSize = 500
	defaultMaxPages = 200 // 100k trades

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Config contiene la configuración del cliente.
type Config struct {
	BaseURL    string
	APIKey     string
	Wallet     string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	PageSize   int // trades por página de /trades
	MaxPages   int // tope de páginas; llegar a él con páginas llenas es error
}

// StatusError es una respuesta 4xx de la API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client error %d: %s", e.Code, e.Body)
}

// ErrEmptyBody es un 2xx sin body cuando se esperaba JSON.
var ErrEmptyBody = errors.New("agentapi: empty response body")

// IsStatus indica si err es una respuesta de la API con ese código.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Client es el HTTP client de la API del agente con rate limiting y retries.
// Si tiene un CredentialCache, manda el token de sesión en cada request.
type Client struct {
	http    *http.Client
	base    string
	apiKey  string
	wallet  string
	limiter *rate.Limiter
	creds   *CredentialCache

	pageSize int
	maxPages int
}

// NewClient crea un Client sin credenciales. Ver WithCredentials.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		wallet:  cfg.Wallet,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),

		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
	}
}

// WithCredentials devuelve una copia del cliente que autentica con creds.
// El limiter y el http.Client se comparten.
func (c *Client) WithCredentials(creds *CredentialCache) *Client {
	cp := *c
	cp.creds = creds
	return &cp
}

// Wallet devuelve la wallet por la que se consulta.
func (c *Client) Wallet() string {
	return c.wallet
}

// endpoint construye base+path con los query params dados más wallet.
func (c *Client) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if c.wallet != "" {
		params.Set("wallet", c.wallet)
	}
	u := c.base + path
	if q := params.Encode(); q != "" {
		u += "?" + q
	}
	return u
}

// get hace un GET autenticado. Un 401 invalida la sesión y reintenta una vez
// con un token nuevo.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.endpoint(path, params)
	err := c.doWithRetry(ctx, c.authedGet(u), out)
	if c.creds != nil && IsStatus(err, http.StatusUnauthorized) {
		slog.Info("agent api session rejected, refreshing", "path", path)
		c.creds.Invalidate()
		err = c.doWithRetry(ctx, c.authedGet(u), out)
	}
	return err
}

func (c *Client) authedGet(u string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.creds != nil {
			token, err := c.creds.Token(ctx)
			if err != nil {
				return nil, fmt.Errorf("session: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req, nil
	}
}

// post hace un POST JSON sin autenticar (solo lo usa el login).
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	return c.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, out)
}

// doWithRetry ejecuta la request con backoff exponencial en 429/5xx y errores
// de red. Los 4xx no se reintentan. La respuesta se decodifica con UseNumber
// para no perder precisión en los enteros de punto fijo.
func (c *Client) doWithRetry(ctx context.Context, build func(ctx context.Context) (*http.Request, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := build(ctx)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by agent api", "attempt", attempt+1)
			if attempt == maxRetries {
				return fmt.Errorf("rate limited after %d retries", maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}

		defer resp.Body.Close()
		if out == nil {
			return nil
		}
		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			if errors.Is(err, io.EOF) {
				return ErrEmptyBody
			}
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
