// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package feerate provides the fee rate and transaction size units used to
// price on-chain transactions, both for UTXO chains (satoshis per virtual
// byte) and account chains (wei per unit of gas).
package feerate

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
)

const (
	// kilo is a generic multiplier for kilo units.
	kilo = 1000

	// floatStringPrecision is the number of decimal places used when
	// formatting a fee rate. Three places keep 1 sat/kvb visible as
	// 0.001 sat/vb.
	floatStringPrecision = 3
)

var (
	// ErrNegativeRate is returned when a fee rate is built from a negative
	// amount.
	ErrNegativeRate = errors.New("negative fee rate")

	// ZeroSatPerVByte is a fee rate of 0 sat/vb.
	ZeroSatPerVByte = NewSatPerVByte(0)

	// ZeroSatPerKVByte is a fee rate of 0 sat/kvb.
	ZeroSatPerKVByte = NewSatPerKVByte(0)
)

// baseFeeRate stores the canonical representation of a fee rate, which is
// satoshis per kilo-weight-unit (sat/kwu).
type baseFeeRate struct {
	satsPerKWU *big.Rat
}

// newBaseFeeRate creates a fee rate of numerator sats per denominator weight
// units, scaled to sat/kwu. A zero denominator yields a zero rate.
func newBaseFeeRate(fee btcutil.Amount, wu uint64) baseFeeRate {
	if wu == 0 {
		return baseFeeRate{satsPerKWU: big.NewRat(0, 1)}
	}

	num := new(big.Int).Mul(big.NewInt(int64(fee)), big.NewInt(kilo))
	denom := new(big.Int).SetUint64(wu)

	return baseFeeRate{satsPerKWU: new(big.Rat).SetFrac(num, denom)}
}

// rat returns the canonical rate, treating the zero value as zero.
func (f baseFeeRate) rat() *big.Rat {
	if f.satsPerKWU == nil {
		return big.NewRat(0, 1)
	}

	return f.satsPerKWU
}

// feeFor returns rate * wu / 1000 as a rational number of satoshis.
func (f baseFeeRate) feeFor(wu uint64) *big.Rat {
	fee := new(big.Rat).Mul(
		f.rat(), big.NewRat(safeUint64ToInt64(wu), kilo),
	)

	return fee
}

// FeeForVByte calculates the fee for a transaction of the given virtual size,
// rounded down to the satoshi.
func (f baseFeeRate) FeeForVByte(vb VByte) btcutil.Amount {
	fee := f.feeFor(vb.wu)

	return btcutil.Amount(new(big.Int).Quo(fee.Num(), fee.Denom()).Int64())
}

// ToSatPerVByte converts the fee rate to sat/vb.
func (f baseFeeRate) ToSatPerVByte() SatPerVByte {
	return SatPerVByte{f}
}

// ToSatPerKVByte converts the fee rate to sat/kvb.
func (f baseFeeRate) ToSatPerKVByte() SatPerKVByte {
	return SatPerKVByte{f}
}

func (f baseFeeRate) cmp(other baseFeeRate) int {
	return f.rat().Cmp(other.rat())
}

// IsZero returns true if the rate is zero.
func (f baseFeeRate) IsZero() bool {
	return f.rat().Sign() == 0
}

// SatPerVByte represents a fee rate in sat/vb.
type SatPerVByte struct {
	baseFeeRate
}

// NewSatPerVByte creates a new fee rate in sat/vb.
func NewSatPerVByte(rate btcutil.Amount) SatPerVByte {
	return SatPerVByte{newBaseFeeRate(rate, NewVByte(1).wu)}
}

// String returns a human-readable string of the fee rate.
func (s SatPerVByte) String() string {
	r := new(big.Rat).Mul(
		s.rat(), big.NewRat(blockchain.WitnessScaleFactor, kilo),
	)

	return r.FloatString(floatStringPrecision) + " sat/vb"
}

// Equal returns true if the fee rate is equal to the other fee rate.
func (s SatPerVByte) Equal(other SatPerVByte) bool {
	return s.cmp(other.baseFeeRate) == 0
}

// GreaterThan returns true if the fee rate is greater than the other fee rate.
func (s SatPerVByte) GreaterThan(other SatPerVByte) bool {
	return s.cmp(other.baseFeeRate) > 0
}

// SatPerKVByte represents a fee rate in sat/kvb, the unit bitcoind and the
// btcwallet transaction author speak.
type SatPerKVByte struct {
	baseFeeRate
}

// NewSatPerKVByte creates a new fee rate in sat/kvb.
func NewSatPerKVByte(rate btcutil.Amount) SatPerKVByte {
	return SatPerKVByte{
		newBaseFeeRate(rate, kilo*blockchain.WitnessScaleFactor),
	}
}

// FromBTCPerKVByte converts an estimate expressed in BTC/kvB, as returned by
// estimatesmartfee, into a fee rate.
func FromBTCPerKVByte(btcPerKvb float64) (SatPerKVByte, error) {
	amt, err := btcutil.NewAmount(btcPerKvb)
	if err != nil {
		return SatPerKVByte{}, err
	}

	if amt < 0 {
		return SatPerKVByte{}, fmt.Errorf("%w: %v", ErrNegativeRate,
			amt)
	}

	return NewSatPerKVByte(amt), nil
}

// Amount returns the rate as whole satoshis per kvb, rounded down.
func (s SatPerKVByte) Amount() btcutil.Amount {
	return s.FeeForVByte(NewVByte(kilo))
}

// String returns a human-readable string of the fee rate.
func (s SatPerKVByte) String() string {
	r := new(big.Rat).Mul(
		s.rat(), big.NewRat(blockchain.WitnessScaleFactor, 1),
	)

	return r.FloatString(floatStringPrecision) + " sat/kvb"
}

// Equal returns true if the fee rate is equal to the other fee rate.
func (s SatPerKVByte) Equal(other SatPerKVByte) bool {
	return s.cmp(other.baseFeeRate) == 0
}

// GreaterThan returns true if the fee rate is greater than the other fee rate.
func (s SatPerKVByte) GreaterThan(other SatPerKVByte) bool {
	return s.cmp(other.baseFeeRate) > 0
}

// LessThan returns true if the fee rate is less than the other fee rate.
func (s SatPerKVByte) LessThan(other SatPerKVByte) bool {
	return s.cmp(other.baseFeeRate) < 0
}

// safeUint64ToInt64 converts a uint64 to an int64, capping at math.MaxInt64.
// Sizes are bounded by consensus so the cap is never hit in practice.
func safeUint64ToInt64(u uint64) int64 {
	if u > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(u)
}
