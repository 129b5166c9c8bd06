package domain

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Amount es un importe decimal (USDC o porcentaje) redondeado a 2 decimales.
// Se serializa siempre como string con 2 decimales: "5.00", "-100.00".
type Amount struct {
	decimal.Decimal
}

// NewAmount redondea d a 2 decimales.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d.Round(2)}
}

// AmountPtr es NewAmount para campos opcionales.
func AmountPtr(d decimal.Decimal) *Amount {
	a := NewAmount(d)
	return &a
}

// MustAmount parsea s; solo para fixtures y tests.
func MustAmount(s string) Amount {
	return NewAmount(decimal.RequireFromString(s))
}

// Dec devuelve el valor decimal de un importe opcional y si estaba definido.
func (a *Amount) Dec() (decimal.Decimal, bool) {
	if a == nil {
		return decimal.Zero, false
	}
	return a.Decimal, true
}

// String formatea con 2 decimales.
func (a Amount) String() string {
	return a.StringFixed(2)
}

// MarshalJSON implementa json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.StringFixed(2))), nil
}

// UnmarshalJSON acepta "5.00" o 5.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	a.Decimal = d.Round(2)
	return nil
}
