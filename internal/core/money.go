// Package core provides money parsing and handling utilities.
//
// This file contains the Money type used for every amount that ends up in a
// report. Amounts are exact decimals held at two fractional digits.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits every Money value carries.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Money is a currency amount in major units rounded to two decimals.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// NewMoney rounds d half-up to two fractional digits.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(MoneyPlaces)}
}

// MoneyFromCents converts an integer amount of minor units.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -MoneyPlaces)}
}

// ParseMoney converts a decimal string in major units to Money with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place.
//
// Examples:
//   ParseMoney("12.34")  -> 12.34, nil
//   ParseMoney("12,34")  -> 12.34, nil
//   ParseMoney("12.345") -> 12.35, nil (half-up)
//   ParseMoney("12.344") -> 12.34, nil
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return NewMoney(d), nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{d: m.d.Sub(o.d)}
}

// Equal reports whether both amounts are the same value.
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

// IsZero reports whether the amount is 0.00.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// Cents returns the amount in minor units.
func (m Money) Cents() int64 {
	return m.d.Mul(hundred).IntPart()
}

// Decimal exposes the underlying exact value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// Float64 returns the amount as a float for display layers that need one
// (spreadsheet cells). Never use it for arithmetic.
func (m Money) Float64() float64 {
	return m.d.InexactFloat64()
}

// String formats with exactly two fractional digits and no separators.
func (m Money) String() string {
	return m.d.StringFixed(MoneyPlaces)
}
