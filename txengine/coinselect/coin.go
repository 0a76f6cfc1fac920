// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinselect

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// Coin represents a spendable UTXO which is available for coin selection.
type Coin struct {
	wire.TxOut
	wire.OutPoint
}

// Amount returns the value of the coin.
func (c Coin) Amount() btcutil.Amount {
	return btcutil.Amount(c.Value)
}

// Strategy is responsible for ordering and filtering a list of coins before
// they are handed to the selection algorithm.
type Strategy interface {
	// ArrangeCoins takes a list of coins and arranges them according to the
	// strategy and fee rate. The passed slice is not modified.
	ArrangeCoins(eligible []Coin, feeSatPerKb btcutil.Amount) ([]Coin,
		error)
}

// LargestFirst is the default strategy. It always selects the largest coin
// next and only considers coins that yield positively at the fee rate.
var LargestFirst Strategy = &LargestFirstCoinSelector{}

// byAmountDesc sorts coins by value, largest first. Equal values are ordered
// by outpoint so the arrangement is deterministic.
type byAmountDesc []Coin

func (s byAmountDesc) Len() int      { return len(s) }
func (s byAmountDesc) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byAmountDesc) Less(i, j int) bool {
	if s[i].Value != s[j].Value {
		return s[i].Value > s[j].Value
	}

	c := bytes.Compare(s[i].Hash[:], s[j].Hash[:])
	if c != 0 {
		return c < 0
	}

	return s[i].Index < s[j].Index
}

// LargestFirstCoinSelector is an implementation of Strategy that always
// selects the largest coins first.
type LargestFirstCoinSelector struct{}

// ArrangeCoins filters out coins that cost more to spend than they are worth
// and sorts the rest largest first.
func (*LargestFirstCoinSelector) ArrangeCoins(eligible []Coin,
	feeSatPerKb btcutil.Amount) ([]Coin, error) {

	arranged := FilterPositive(eligible, feeSatPerKb)
	sort.Sort(byAmountDesc(arranged))

	return arranged, nil
}

// FilterPositive returns a new slice holding only the coins that yield
// positively at the given fee rate.
func FilterPositive(eligible []Coin, feeSatPerKb btcutil.Amount) []Coin {
	positive := make([]Coin, 0, len(eligible))
	for _, coin := range eligible {
		if !inputYieldsPositively(&coin.TxOut, feeSatPerKb) {
			log.Tracef("Skipping coin %v worth %v: below spend cost",
				coin.OutPoint, coin.Amount())

			continue
		}

		positive = append(positive, coin)
	}

	return positive
}

// inputYieldsPositively returns a boolean indicating whether this input yields
// positively if added to a transaction. This determination is based on the
// best-case added virtual size.
func inputYieldsPositively(credit *wire.TxOut,
	feeRatePerKb btcutil.Amount) bool {

	inputSize := txsizes.GetMinInputVirtualSize(credit.PkScript)
	inputFee := feeRatePerKb * btcutil.Amount(inputSize) / 1000

	return inputFee < btcutil.Amount(credit.Value)
}
