package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

func rawRecord(t *testing.T, s string) domain.RawRecord {
	t.Helper()
	var r domain.RawRecord
	require.NoError(t, json.Unmarshal([]byte(s), &r))
	return r
}

func TestRawRecord_IntFallbackOrder(t *testing.T) {
	r := rawRecord(t, `{"a": "x", "b": 1.5, "c": "7", "d": 3}`)

	v, ok := r.Int("a", "b", "c", "d")
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

// Un entero fuera de int32 se trata como ausente y se prueba la siguiente key.
func TestRawRecord_IntRejectsOutOfRange(t *testing.T) {
	r := rawRecord(t, `{"big": 4294967298, "huge": "1e20", "neg": -3000000000, "ok": 6}`)

	for _, k := range []string{"big", "huge", "neg"} {
		_, ok := r.Int(k)
		assert.False(t, ok, k)
	}
	v, ok := r.Int("big", "huge", "neg", "ok")
	require.True(t, ok)
	assert.Equal(t, 6, v)
}

func TestRawRecord_DottedPath(t *testing.T) {
	r := rawRecord(t, `{"market": {"collateral": {"decimals": 18}}}`)

	v, ok := r.Int("collateral.decimals", "market.collateral.decimals")
	require.True(t, ok)
	assert.Equal(t, 18, v)
}
