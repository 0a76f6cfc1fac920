package feerate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
	"github.com/shopspring/decimal"
)

// WeiPerGas is a gas price for account chains. The zero value is a zero
// price.
type WeiPerGas struct {
	wei *big.Int
}

// NewWeiPerGas creates a gas price from a wei amount. The value is copied.
func NewWeiPerGas(wei *big.Int) WeiPerGas {
	if wei == nil {
		return WeiPerGas{wei: new(big.Int)}
	}

	return WeiPerGas{wei: new(big.Int).Set(wei)}
}

// NewGwei creates a gas price from a gwei amount.
func NewGwei(gwei int64) WeiPerGas {
	return WeiPerGas{wei: new(big.Int).Mul(
		big.NewInt(gwei), big.NewInt(params.GWei),
	)}
}

func (w WeiPerGas) int() *big.Int {
	if w.wei == nil {
		return new(big.Int)
	}

	return w.wei
}

// Wei returns a copy of the price in wei.
func (w WeiPerGas) Wei() *big.Int {
	return new(big.Int).Set(w.int())
}

// FeeForGas returns the fee in wei for spending the given amount of gas.
func (w WeiPerGas) FeeForGas(gasLimit uint64) *big.Int {
	return new(big.Int).Mul(w.int(), new(big.Int).SetUint64(gasLimit))
}

// Scale multiplies the price by a decimal factor, rounding down to the wei.
func (w WeiPerGas) Scale(factor decimal.Decimal) WeiPerGas {
	scaled := decimal.NewFromBigInt(w.int(), 0).Mul(factor).Floor()

	return WeiPerGas{wei: scaled.BigInt()}
}

// Cap returns the lower of the price and max.
func (w WeiPerGas) Cap(max WeiPerGas) WeiPerGas {
	if w.int().Cmp(max.int()) > 0 {
		return NewWeiPerGas(max.int())
	}

	return w
}

// Equal returns true if both prices are the same.
func (w WeiPerGas) Equal(other WeiPerGas) bool {
	return w.int().Cmp(other.int()) == 0
}

// IsZero returns true if the price is zero.
func (w WeiPerGas) IsZero() bool {
	return w.int().Sign() == 0
}

// String returns the price in gwei.
func (w WeiPerGas) String() string {
	gwei := decimal.NewFromBigInt(w.int(), 0).Div(
		decimal.NewFromInt(params.GWei),
	)

	return gwei.StringFixed(floatStringPrecision) + " gwei"
}
