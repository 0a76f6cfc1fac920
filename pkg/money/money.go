// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package money provides exact-precision monetary amounts that are tagged
// with the currency they are denominated in. Arithmetic between two amounts is
// only defined when both carry the same currency.
package money

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// ErrCurrencyMismatch is returned when two amounts of different
	// currencies are combined or compared.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrZeroRate is returned when a rate with a zero price is inverted.
	ErrZeroRate = errors.New("zero exchange rate")
)

// Kind tells crypto assets apart from fiat currencies.
type Kind uint8

const (
	// KindCrypto identifies a crypto asset, native coin or token.
	KindCrypto Kind = iota

	// KindFiat identifies a fiat currency.
	KindFiat
)

// String returns the string representation of a currency kind.
func (k Kind) String() string {
	switch k {
	case KindCrypto:
		return "crypto"

	case KindFiat:
		return "fiat"

	default:
		return "unknown kind"
	}
}

// Currency identifies what an amount is denominated in. It is a comparable
// value, two currencies are the same currency iff they are equal.
type Currency struct {
	// Code is the ticker or ISO code, e.g. "BTC" or "USD".
	Code string

	// Kind tells whether this is a crypto asset or a fiat currency.
	Kind Kind

	// Decimals is the number of decimal places of the smallest unit,
	// 8 for satoshis, 18 for wei, 2 for cents.
	Decimals int32

	// Contract is the token contract address for account-based tokens.
	// It is empty for native coins and fiat currencies.
	Contract string
}

// Crypto returns the currency of a native crypto asset.
func Crypto(code string, decimals int32) Currency {
	return Currency{Code: code, Kind: KindCrypto, Decimals: decimals}
}

// Token returns the currency of a token that lives in the given contract.
func Token(code string, decimals int32, contract string) Currency {
	return Currency{
		Code:     code,
		Kind:     KindCrypto,
		Decimals: decimals,
		Contract: contract,
	}
}

// Fiat returns the fiat currency with the given ISO code.
func Fiat(code string) Currency {
	return Currency{Code: code, Kind: KindFiat, Decimals: 2}
}

var (
	// BTC is bitcoin.
	BTC = Crypto("BTC", 8)

	// BCH is bitcoin cash.
	BCH = Crypto("BCH", 8)

	// ETH is ether.
	ETH = Crypto("ETH", 18)

	// USD is the US dollar.
	USD = Fiat("USD")

	// EUR is the euro.
	EUR = Fiat("EUR")

	// GBP is the pound sterling.
	GBP = Fiat("GBP")
)

// IsCrypto returns true if the currency is a crypto asset.
func (c Currency) IsCrypto() bool {
	return c.Kind == KindCrypto
}

// IsFiat returns true if the currency is a fiat currency.
func (c Currency) IsFiat() bool {
	return c.Kind == KindFiat
}

// IsToken returns true if the currency is a contract token.
func (c Currency) IsToken() bool {
	return c.Contract != ""
}

// Key returns a stable string key for the currency, suitable for use in
// key-value stores.
func (c Currency) Key() string {
	if c.Contract == "" {
		return c.Code
	}

	return c.Code + ":" + c.Contract
}

// String returns the currency code.
func (c Currency) String() string {
	return c.Code
}

// Money is an immutable amount tagged with its currency.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// New creates an amount of the given currency.
func New(amount decimal.Decimal, c Currency) Money {
	return Money{amount: amount, currency: c}
}

// Zero returns the canonical zero of the given currency.
func Zero(c Currency) Money {
	return Money{amount: decimal.Zero, currency: c}
}

// FromMinor creates an amount from a count of the currency's smallest unit,
// e.g. satoshis.
func FromMinor(minor int64, c Currency) Money {
	return Money{amount: decimal.New(minor, -c.Decimals), currency: c}
}

// FromBigMinor creates an amount from a big count of the currency's smallest
// unit, e.g. wei.
func FromBigMinor(minor *big.Int, c Currency) Money {
	if minor == nil {
		return Zero(c)
	}

	return Money{
		amount:   decimal.NewFromBigInt(minor, -c.Decimals),
		currency: c,
	}
}

// Parse parses a decimal string such as "0.015" into an amount of the given
// currency.
func Parse(s string, c Currency) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse %s amount %q: %w", c, s, err)
	}

	return New(d, c), nil
}

// Amount returns the decimal magnitude.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency the amount is denominated in.
func (m Money) Currency() Currency {
	return m.currency
}

// Minor returns the amount in the currency's smallest unit, truncating any
// fraction below it.
func (m Money) Minor() *big.Int {
	return m.amount.Shift(m.currency.Decimals).BigInt()
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is strictly less than zero.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// ClampZero returns zero of the same currency when the amount is negative and
// the amount itself otherwise.
func (m Money) ClampZero() Money {
	if m.amount.IsNegative() {
		return Zero(m.currency)
	}

	return m
}

// RoundUp rounds the amount up to the currency's smallest unit.
func (m Money) RoundUp() Money {
	return New(m.amount.RoundCeil(m.currency.Decimals), m.currency)
}

// RoundDown rounds the amount down to the currency's smallest unit.
func (m Money) RoundDown() Money {
	return New(m.amount.RoundFloor(m.currency.Decimals), m.currency)
}

// MulDecimal scales the amount by the given factor, keeping the currency.
func (m Money) MulDecimal(factor decimal.Decimal) Money {
	return New(m.amount.Mul(factor), m.currency)
}

// sameCurrency returns an ErrCurrencyMismatch when the two amounts cannot be
// combined.
func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch,
			m.currency, other.currency)
	}

	return nil
}

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}

	return New(m.amount.Add(other.amount), m.currency), nil
}

// Sub returns m - other.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}

	return New(m.amount.Sub(other.amount), m.currency), nil
}

// Cmp compares m and other and returns -1, 0 or +1.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}

	return m.amount.Cmp(other.amount), nil
}

// Equal returns true if both amounts have the same currency and magnitude.
// Unlike Cmp it never fails, amounts of different currencies are simply not
// equal.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// Min returns the smaller of m and other.
func (m Money) Min(other Money) (Money, error) {
	c, err := m.Cmp(other)
	if err != nil {
		return Money{}, err
	}

	if c <= 0 {
		return m, nil
	}

	return other, nil
}

// Max returns the larger of m and other.
func (m Money) Max(other Money) (Money, error) {
	c, err := m.Cmp(other)
	if err != nil {
		return Money{}, err
	}

	if c >= 0 {
		return m, nil
	}

	return other, nil
}

// String returns the amount with the currency's precision followed by its
// code, e.g. "0.00010000 BTC".
func (m Money) String() string {
	return m.amount.StringFixed(m.currency.Decimals) + " " +
		m.currency.Code
}

// Rate is the price of one unit of From expressed in To.
type Rate struct {
	From  Currency
	To    Currency
	Price decimal.Decimal
}

// NewRate creates a rate converting from one currency into another.
func NewRate(from, to Currency, price decimal.Decimal) Rate {
	return Rate{From: from, To: to, Price: price}
}

// Convert converts an amount denominated in r.From into r.To. The result is
// not rounded, callers pick the rounding direction that is safe for them.
func (r Rate) Convert(m Money) (Money, error) {
	if m.currency != r.From {
		return Money{}, fmt.Errorf("%w: rate %s/%s cannot convert %s",
			ErrCurrencyMismatch, r.From, r.To, m.currency)
	}

	return New(m.amount.Mul(r.Price), r.To), nil
}

// divisionPrecision is the number of decimal places kept when inverting a
// rate. It comfortably exceeds the 18 decimals of wei.
const divisionPrecision = 24

// Inverse returns the rate converting from r.To back into r.From.
func (r Rate) Inverse() (Rate, error) {
	if r.Price.IsZero() {
		return Rate{}, fmt.Errorf("%w: %s/%s", ErrZeroRate, r.From,
			r.To)
	}

	return Rate{
		From:  r.To,
		To:    r.From,
		Price: decimal.NewFromInt(1).DivRound(r.Price, divisionPrecision),
	}, nil
}

// String returns a human-readable representation of the rate.
func (r Rate) String() string {
	return fmt.Sprintf("1 %s = %s %s", r.From, r.Price.String(), r.To)
}
