package agentapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictstats/internal/adapters/agentapi"
)

func newTestClient(srv *httptest.Server) *agentapi.Client {
	return agentapi.NewClient(agentapi.Config{
		BaseURL:    srv.URL,
		APIKey:     "key-123",
		Wallet:     "0xWallet",
		RatePerSec: 1000,
		Burst:      100,
	})
}

// --- trades / positions ---

func TestFetchTrades_BareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trades", r.URL.Path)
		assert.Equal(t, "0xWallet", r.URL.Query().Get("wallet"))
		assert.Equal(t, "0", r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"strategy":"Buy","outcomeTokenNetCost":"2000000000000000001","market":{"id":"0xA"}}]`)
	}))
	defer srv.Close()

	trades, err := newTestClient(srv).FetchTrades(context.Background())

	require.NoError(t, err)
	require.Len(t, trades, 1)
	cost, ok := trades[0].Decimal("outcomeTokenNetCost")
	require.True(t, ok)
	assert.Equal(t, "2000000000000000001", cost.String(), "sin pérdida de precisión")
	market, ok := trades[0].Object("market")
	require.True(t, ok)
	id, _ := market.String("id")
	assert.Equal(t, "0xA", id)
}

func TestFetchTrades_DataEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"t1"},{"id":"t2"}],"total":2}`)
	}))
	defer srv.Close()

	trades, err := newTestClient(srv).FetchTrades(context.Background())

	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestFetchTrades_Paginates(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		n := limit
		if offset > 0 {
			n = 3
		}
		items := make([]map[string]any, n)
		for i := range items {
			items[i] = map[string]any{"id": offset + i}
		}
		json.NewEncoder(w).Encode(items)
	}))
	defer srv.Close()

	trades, err := newTestClient(srv).FetchTrades(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, trades, 503)
}

func TestFetchPositions_Envelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		fmt.Fprint(w, `{"positions":[{"market":{"id":"0xP"},"amount":"1000000"}]}`)
	}))
	defer srv.Close()

	positions, err := newTestClient(srv).FetchPositions(context.Background())

	require.NoError(t, err)
	require.Len(t, positions, 1)
}

func TestFetchTrades_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad wallet", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchTrades(context.Background())

	require.Error(t, err)
	assert.True(t, agentapi.IsStatus(err, http.StatusBadRequest))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchTrades_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	trades, err := newTestClient(srv).FetchTrades(context.Background())

	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, int32(2), calls.Load())
}

// --- points / volume ---

func TestFetchPoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"points":"1520.75","rank":12}}`)
	}))
	defer srv.Close()

	pts, err := newTestClient(srv).FetchPoints(context.Background())

	require.NoError(t, err)
	require.NotNil(t, pts)
	assert.InDelta(t, 1520.75, pts.Points, 0.001)
	require.NotNil(t, pts.Rank)
	assert.Equal(t, 12, *pts.Rank)
}

func TestFetchPoints_NotPublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	pts, err := newTestClient(srv).FetchPoints(context.Background())

	require.NoError(t, err)
	assert.Nil(t, pts)
}

func TestFetchVolume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volume", r.URL.Path)
		fmt.Fprint(w, `{"totalVolume": 1234.567, "tradeCount": 88}`)
	}))
	defer srv.Close()

	vol, err := newTestClient(srv).FetchVolume(context.Background())

	require.NoError(t, err)
	require.NotNil(t, vol)
	assert.Equal(t, "1234.57", vol.VolumeUSDC.String())
	assert.Equal(t, 88, vol.Trades)
}

func TestFetchVolume_EmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	vol, err := newTestClient(srv).FetchVolume(context.Background())

	require.NoError(t, err)
	assert.Nil(t, vol)
}

// --- auth ---

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestLogin_ExpiresAtFromResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/session", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "key-123", body["apiKey"])
		fmt.Fprint(w, `{"token":"opaque","expiresAt":"2030-01-01T00:00:00Z"}`)
	}))
	defer srv.Close()

	s, err := newTestClient(srv).Login(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "opaque", s.Token)
	assert.True(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Equal(s.ExpiresAt))
}

func TestLogin_ExpiryFromJWTClaim(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	token := signedToken(t, exp)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"accessToken": token})
	}))
	defer srv.Close()

	s, err := newTestClient(srv).Login(context.Background())

	require.NoError(t, err)
	assert.Equal(t, token, s.Token)
	assert.True(t, exp.Equal(s.ExpiresAt))
}

func TestLogin_DefaultTTL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token":"not-a-jwt"}`)
	}))
	defer srv.Close()

	before := time.Now()
	s, err := newTestClient(srv).Login(context.Background())

	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(agentapi.DefaultSessionTTL), s.ExpiresAt, 5*time.Second)
}

func TestLogin_RequiresAPIKey(t *testing.T) {
	c := agentapi.NewClient(agentapi.Config{BaseURL: "http://unused"})
	_, err := c.Login(context.Background())
	assert.Error(t, err)
}

func TestAuthedRequest_RefreshesOnceOn401(t *testing.T) {
	var logins atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/session" {
			n := logins.Add(1)
			fmt.Fprintf(w, `{"token":"tok-%d","expiresIn":3600}`, n)
			return
		}
		// El primer token ya no sirve en el servidor.
		if r.Header.Get("Authorization") != "Bearer tok-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `[{"id":"t1"}]`)
	}))
	defer srv.Close()

	base := newTestClient(srv)
	creds := agentapi.NewCredentialCache(base.Login)
	client := base.WithCredentials(creds)

	trades, err := client.FetchTrades(context.Background())

	require.NoError(t, err)
	assert.Len(t, trades, 1)
	assert.Equal(t, int32(2), logins.Load())
	assert.Equal(t, "tok-2", creds.Session().Token)
}

func TestAuthedRequest_PersistentUnauthorizedFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/session" {
			fmt.Fprint(w, `{"token":"tok","expiresIn":3600}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	base := newTestClient(srv)
	client := base.WithCredentials(agentapi.NewCredentialCache(base.Login))

	_, err := client.FetchPositions(context.Background())

	require.Error(t, err)
	assert.True(t, agentapi.IsStatus(err, http.StatusUnauthorized))
}

// --- CredentialCache ---

func TestCredentialCache_ReusesValidSession(t *testing.T) {
	var logins int
	cache := agentapi.NewCredentialCache(func(context.Context) (agentapi.Session, error) {
		logins++
		return agentapi.Session{Token: "t", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})

	assert.False(t, cache.Valid(time.Now()))
	for i := 0; i < 3; i++ {
		tok, err := cache.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "t", tok)
	}
	assert.Equal(t, 1, logins)
	assert.True(t, cache.Valid(time.Now()))
	assert.False(t, cache.Valid(time.Now().Add(2*time.Hour)))

	cache.Invalidate()
	assert.False(t, cache.Valid(time.Now()))
	require.NoError(t, cache.Refresh(context.Background()))
	assert.Equal(t, 2, logins)
}

func TestCredentialCache_ExpiredSessionRenews(t *testing.T) {
	var logins int
	cache := agentapi.NewCredentialCache(func(context.Context) (agentapi.Session, error) {
		logins++
		// Expira dentro del margen de renovación: cada Token renueva.
		return agentapi.Session{Token: strconv.Itoa(logins), ExpiresAt: time.Now().Add(time.Second)}, nil
	})

	first, err := cache.Token(context.Background())
	require.NoError(t, err)
	second, err := cache.Token(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCredentialCache_LoginError(t *testing.T) {
	cache := agentapi.NewCredentialCache(func(context.Context) (agentapi.Session, error) {
		return agentapi.Session{}, fmt.Errorf("bad key")
	})

	_, err := cache.Token(context.Background())
	assert.ErrorContains(t, err, "bad key")
}

// --- payloads inesperados ---

func TestFetchTrades_UnknownObjectIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"maintenance"}`)
	}))
	defer srv.Close()

	trades, err := newTestClient(srv).FetchTrades(context.Background())

	require.ErrorIs(t, err, agentapi.ErrUnexpectedPayload)
	assert.Nil(t, trades)
	assert.Contains(t, err.Error(), "maintenance")
}

func TestFetchTrades_EmptyBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchTrades(context.Background())

	assert.ErrorIs(t, err, agentapi.ErrEmptyBody)
}

func TestFetchTrades_NullEnvelopeIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchTrades(context.Background())

	assert.ErrorIs(t, err, agentapi.ErrUnexpectedPayload)
}

func TestFetchTrades_ExplicitEmptyEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"trades":[],"total":0}`)
	}))
	defer srv.Close()

	trades, err := newTestClient(srv).FetchTrades(context.Background())

	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestFetchTrades_PageLimitReachedIsError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// Siempre páginas llenas.
		fmt.Fprint(w, `[{"id":"a"},{"id":"b"}]`)
	}))
	defer srv.Close()

	client := agentapi.NewClient(agentapi.Config{
		BaseURL:    srv.URL,
		RatePerSec: 1000,
		Burst:      100,
		PageSize:   2,
		MaxPages:   3,
	})
	trades, err := client.FetchTrades(context.Background())

	require.ErrorIs(t, err, agentapi.ErrTooManyPages)
	assert.Nil(t, trades)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchTrades_LastPageShortWithinLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "4" {
			fmt.Fprint(w, `[{"id":"e"}]`)
			return
		}
		fmt.Fprint(w, `[{"id":"a"},{"id":"b"}]`)
	}))
	defer srv.Close()

	client := agentapi.NewClient(agentapi.Config{BaseURL: srv.URL, RatePerSec: 1000, Burst: 100, PageSize: 2, MaxPages: 3})
	trades, err := client.FetchTrades(context.Background())

	require.NoError(t, err)
	assert.Len(t, trades, 5)
}
