package agentapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

// DTOs de la API del agente. Trades y posiciones no tienen DTO: su forma
// cambia entre versiones y se pasan como domain.RawRecord al normalizador.

// sessionRequest es el body de POST /auth/session.
type sessionRequest struct {
	APIKey string `json:"apiKey"`
	Wallet string `json:"wallet,omitempty"`
}

// listEnvelopeKeys son los campos donde la API ha envuelto listas.
var listEnvelopeKeys = []string{"data", "trades", "positions", "items", "results"}

// ErrUnexpectedPayload es un 200 cuyo body no trae la lista esperada.
var ErrUnexpectedPayload = errors.New("agentapi: unexpected list payload")

// listPayload acepta tanto un array como {"data": [...]} (o los otros
// envoltorios de listEnvelopeKeys). Cualquier otra forma es un error: una
// lista vacía tiene que venir explícita.
type listPayload []domain.RawRecord

func (l *listPayload) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return fmt.Errorf("%w: null body", ErrUnexpectedPayload)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err == nil {
		return l.fromItems(arr)
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("list payload: neither array nor object: %w", err)
	}
	for _, k := range listEnvelopeKeys {
		raw, ok := env[k]
		if !ok {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		if err := json.Unmarshal(raw, &arr); err != nil {
			continue
		}
		return l.fromItems(arr)
	}
	return fmt.Errorf("%w: %s", ErrUnexpectedPayload, snippet(b))
}

// snippet recorta un body para los mensajes de error.
func snippet(b []byte) string {
	const max = 200
	s := string(bytes.TrimSpace(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func (l *listPayload) fromItems(items []json.RawMessage) error {
	out := make([]domain.RawRecord, 0, len(items))
	for i, item := range items {
		r, err := decodeRecord(item)
		if err != nil {
			return fmt.Errorf("list payload item %d: %w", i, err)
		}
		if r != nil {
			out = append(out, r)
		}
	}
	*l = out
	return nil
}

// decodeRecord decodifica un objeto conservando los números como json.Number.
func decodeRecord(b json.RawMessage) (domain.RawRecord, error) {
	var r domain.RawRecord
	if err := unmarshalNumber(b, &r); err != nil {
		return nil, err
	}
	return r, nil
}
