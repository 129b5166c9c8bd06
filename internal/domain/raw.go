package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RawRecord es un registro de la API sin tipar (trade o posición).
// La forma cambia entre versiones de la API, así que los campos se leen con
// accessors de fallback ordenado: se prueba cada key en orden y se usa la
// primera que esté presente y sea parseable. Las keys admiten rutas con
// punto ("collateral.decimals").
type RawRecord map[string]any

// Int solo acepta valores en rango int32: índices y escalas, nunca importes.
var (
	minInt = decimal.NewFromInt(math.MinInt32)
	maxInt = decimal.NewFromInt(math.MaxInt32)
)

// Lookup devuelve el primer valor no nulo entre las keys dadas.
func (r RawRecord) Lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r.path(k); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String devuelve el primer valor no vacío representable como string.
func (r RawRecord) String(keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := r.path(k)
		if !ok {
			continue
		}
		if s, ok := scalarString(v); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Decimal devuelve el primer valor numérico parseable (número JSON o string).
func (r RawRecord) Decimal(keys ...string) (decimal.Decimal, bool) {
	for _, k := range keys {
		v, ok := r.path(k)
		if !ok {
			continue
		}
		if d, ok := toDecimal(v); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}

// Int devuelve el primer valor entero parseable.
func (r RawRecord) Int(keys ...string) (int, bool) {
	for _, k := range keys {
		v, ok := r.path(k)
		if !ok {
			continue
		}
		if d, ok := toDecimal(v); ok && d.IsInteger() && d.GreaterThanOrEqual(minInt) && d.LessThanOrEqual(maxInt) {
			return int(d.IntPart()), true
		}
	}
	return 0, false
}

// Object devuelve el primer sub-objeto presente. Nunca devuelve nil: un
// RawRecord vacío permite seguir encadenando accessors.
func (r RawRecord) Object(keys ...string) (RawRecord, bool) {
	for _, k := range keys {
		v, ok := r.path(k)
		if !ok {
			continue
		}
		switch m := v.(type) {
		case RawRecord:
			return m, true
		case map[string]any:
			return RawRecord(m), true
		}
	}
	return RawRecord{}, false
}

func (r RawRecord) path(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if v, ok := r[key]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(key, ".")
	if !found {
		return nil, false
	}
	sub, ok := r.Object(head)
	if !ok {
		return nil, false
	}
	return sub.path(rest)
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	}
	s, ok := scalarString(v)
	if !ok || s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
