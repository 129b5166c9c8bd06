package agentapi

// auth.go: sesión de la API del agente.
//
// La API entrega un token de sesión a cambio de la API key (POST /auth/session).
// El token se guarda en un CredentialCache explícito que se pasa al cliente;
// no hay estado global entre ejecuciones.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

const (
	// DefaultSessionTTL se usa cuando ni la respuesta ni el token dicen cuándo expira.
	DefaultSessionTTL = time.Hour

	// refreshSkew adelanta la renovación para no mandar un token a punto de expirar.
	refreshSkew = 30 * time.Second
)

var (
	tokenKeys     = []string{"token", "accessToken", "access_token", "sessionToken", "data.token"}
	expiresAtKeys = []string{"expiresAt", "expires_at", "expiry", "data.expiresAt"}
	expiresInKeys = []string{"expiresIn", "expires_in"}
)

// Session es un token y el instante en que deja de ser válido.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// LoginFunc obtiene una sesión nueva.
type LoginFunc func(ctx context.Context) (Session, error)

// CredentialCache guarda la sesión actual y la renueva cuando expira.
// Es seguro para uso concurrente.
type CredentialCache struct {
	mu      sync.Mutex
	session Session
	login   LoginFunc
	now     func() time.Time
}

// NewCredentialCache crea una caché vacía que usa login para renovar.
func NewCredentialCache(login LoginFunc) *CredentialCache {
	return &CredentialCache{login: login, now: time.Now}
}

// Session devuelve la sesión guardada (puede estar vacía o expirada).
func (c *CredentialCache) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Valid indica si la sesión sirve en now.
func (c *CredentialCache) Valid(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validLocked(now)
}

func (c *CredentialCache) validLocked(now time.Time) bool {
	return c.session.Token != "" && now.Add(refreshSkew).Before(c.session.ExpiresAt)
}

// Token devuelve un token válido, renovando la sesión si hace falta.
func (c *CredentialCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.validLocked(c.now()) {
		return c.session.Token, nil
	}
	if err := c.refreshLocked(ctx); err != nil {
		return "", err
	}
	return c.session.Token, nil
}

// Refresh fuerza una sesión nueva aunque la actual siga siendo válida.
func (c *CredentialCache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *CredentialCache) refreshLocked(ctx context.Context) error {
	if c.login == nil {
		return errors.New("agentapi.CredentialCache: no login configured")
	}
	s, err := c.login(ctx)
	if err != nil {
		return fmt.Errorf("agentapi.CredentialCache.Refresh: %w", err)
	}
	if s.Token == "" {
		return errors.New("agentapi.CredentialCache.Refresh: empty token")
	}
	c.session = s
	return nil
}

// Invalidate descarta la sesión; el próximo Token hará login.
func (c *CredentialCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = Session{}
}

// Login intercambia la API key por una sesión. Es la LoginFunc del cliente.
func (c *Client) Login(ctx context.Context) (Session, error) {
	if c.apiKey == "" {
		return Session{}, errors.New("agentapi.Login: api key not configured")
	}

	var resp domain.RawRecord
	req := sessionRequest{APIKey: c.apiKey, Wallet: c.wallet}
	if err := c.post(ctx, "/auth/session", req, &resp); err != nil {
		return Session{}, fmt.Errorf("agentapi.Login: %w", err)
	}

	token, ok := resp.String(tokenKeys...)
	if !ok {
		return Session{}, errors.New("agentapi.Login: response without token")
	}
	return Session{Token: token, ExpiresAt: sessionExpiry(resp, token, time.Now())}, nil
}

// sessionExpiry elige la expiración: la que manda la respuesta, la del claim
// exp del JWT, o now+DefaultSessionTTL.
func sessionExpiry(resp domain.RawRecord, token string, now time.Time) time.Time {
	if s, ok := resp.String(expiresAtKeys...); ok {
		if t, ok := domain.ParseTimestamp(s); ok {
			return t
		}
	}
	if secs, ok := resp.Int(expiresInKeys...); ok && secs > 0 {
		return now.Add(time.Duration(secs) * time.Second)
	}
	// Solo se lee exp; la firma la valida la API.
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now.Add(DefaultSessionTTL)
}
