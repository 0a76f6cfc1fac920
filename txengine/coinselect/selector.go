// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinselect

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/davecgh/go-spew/spew"
)

var (
	// ErrInsufficientFunds is returned when the eligible coins cannot pay
	// for the requested output and its fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNoOutput is returned when a selection is requested without an
	// output to fund.
	ErrNoOutput = errors.New("no output to fund")
)

// p2wpkhScriptSize is the size of a P2WPKH output script, used for change
// when the real change script is not known yet.
const p2wpkhScriptSize = 22

// EstimationChangeSource returns a change source producing a placeholder
// P2WPKH script. It is used to quote fees before a real change address is
// derived. The placeholder must never be broadcast.
func EstimationChangeSource() *txauthor.ChangeSource {
	return &txauthor.ChangeSource{
		ScriptSize: p2wpkhScriptSize,
		NewScript: func() ([]byte, error) {
			script := make([]byte, p2wpkhScriptSize)
			script[0] = txscript.OP_0
			script[1] = txscript.OP_DATA_20

			return script, nil
		},
	}
}

// Selection is the outcome of funding an output from a set of coins.
type Selection struct {
	// Tx is the unsigned transaction, including change when it was not
	// dust.
	Tx *txauthor.AuthoredTx

	// Fee is the absolute fee the transaction pays, including any change
	// that was too small to create.
	Fee btcutil.Amount
}

// Sweep is the outcome of spending every eligible coin to a single output.
type Sweep struct {
	// Amount is the value the output receives, zero when the fee exceeds
	// the value of the coins.
	Amount btcutil.Amount

	// Fee is the absolute fee of the sweep.
	Fee btcutil.Amount

	// NumInputs is the number of coins spent.
	NumInputs int
}

// Selector funds outputs from a set of coins according to a Strategy.
type Selector struct {
	strategy Strategy
}

// NewSelector creates a selector with the given strategy. A nil strategy
// selects LargestFirst.
func NewSelector(strategy Strategy) *Selector {
	if strategy == nil {
		strategy = LargestFirst
	}

	return &Selector{strategy: strategy}
}

// Select picks coins to fund the output at the given fee rate and returns the
// resulting unsigned transaction and its fee. ErrInsufficientFunds is returned
// when the coins cannot cover the output plus fee.
func (s *Selector) Select(coins []Coin, output *wire.TxOut,
	feeSatPerKb btcutil.Amount,
	change *txauthor.ChangeSource) (*Selection, error) {

	if output == nil {
		return nil, ErrNoOutput
	}

	if change == nil {
		change = EstimationChangeSource()
	}

	arranged, err := s.strategy.ArrangeCoins(coins, feeSatPerKb)
	if err != nil {
		return nil, err
	}

	tx, err := txauthor.NewUnsignedTransaction(
		[]*wire.TxOut{output}, feeSatPerKb, makeInputSource(arranged),
		change,
	)
	if err != nil {
		var inputErr txauthor.InputSourceError
		if errors.As(err, &inputErr) {
			return nil, fmt.Errorf("%w: need %v at %v sat/kvb",
				ErrInsufficientFunds,
				btcutil.Amount(output.Value), feeSatPerKb)
		}

		return nil, err
	}

	var totalOut btcutil.Amount
	for _, txOut := range tx.Tx.TxOut {
		totalOut += btcutil.Amount(txOut.Value)
	}

	sel := &Selection{
		Tx:  tx,
		Fee: tx.TotalInput - totalOut,
	}

	log.Tracef("Selected inputs for %v: %v", btcutil.Amount(output.Value),
		newLogClosure(func() string {
			return spew.Sdump(tx.Tx.TxIn)
		}))

	return sel, nil
}

// MaxSpendable returns the largest amount that can be sent to pkScript by
// spending every coin that yields positively at the fee rate, and the fee of
// doing so. No change output is created.
func (s *Selector) MaxSpendable(coins []Coin, pkScript []byte,
	feeSatPerKb btcutil.Amount) (*Sweep, error) {

	arranged, err := s.strategy.ArrangeCoins(coins, feeSatPerKb)
	if err != nil {
		return nil, err
	}

	if len(arranged) == 0 {
		return &Sweep{}, nil
	}

	var (
		total                         btcutil.Amount
		p2pkh, p2tr, p2wpkh, nestedWH int
	)
	for _, coin := range arranged {
		total += coin.Amount()

		switch classifyInput(coin.PkScript) {
		case inputP2TR:
			p2tr++

		case inputP2WPKH:
			p2wpkh++

		case inputNestedP2WPKH:
			nestedWH++

		default:
			p2pkh++
		}
	}

	outputs := []*wire.TxOut{wire.NewTxOut(0, pkScript)}
	size := txsizes.EstimateVirtualSize(
		p2pkh, p2tr, p2wpkh, nestedWH, outputs, 0,
	)
	fee := txrules.FeeForSerializeSize(feeSatPerKb, size)

	amount := total - fee
	if amount < 0 {
		amount = 0
	}

	return &Sweep{
		Amount:    amount,
		Fee:       fee,
		NumInputs: len(arranged),
	}, nil
}

// inputKind is the spend template assumed for a coin when estimating sizes.
type inputKind uint8

const (
	inputP2PKH inputKind = iota
	inputNestedP2WPKH
	inputP2WPKH
	inputP2TR
)

// classifyInput maps an output script to the input template used to spend
// it. P2SH outputs are assumed to wrap a P2WPKH program and unknown scripts
// are sized as P2PKH, mirroring txauthor.
func classifyInput(pkScript []byte) inputKind {
	switch {
	case txscript.IsPayToTaproot(pkScript):
		return inputP2TR

	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		return inputP2WPKH

	case txscript.IsPayToScriptHash(pkScript):
		return inputNestedP2WPKH

	default:
		return inputP2PKH
	}
}

// makeInputSource returns an input source that hands out the arranged coins
// in order until the target is reached.
func makeInputSource(eligible []Coin) txauthor.InputSource {
	// Current inputs and their total value. These are closed over by the
	// returned input source and reused across multiple calls.
	currentTotal := btcutil.Amount(0)
	currentInputs := make([]*wire.TxIn, 0, len(eligible))
	currentScripts := make([][]byte, 0, len(eligible))
	currentInputValues := make([]btcutil.Amount, 0, len(eligible))

	return func(target btcutil.Amount) (btcutil.Amount, []*wire.TxIn,
		[]btcutil.Amount, [][]byte, error) {

		for currentTotal < target && len(eligible) != 0 {
			next := eligible[0]
			outpoint := next.OutPoint
			eligible = eligible[1:]

			currentTotal += next.Amount()
			currentInputs = append(
				currentInputs, wire.NewTxIn(&outpoint, nil, nil),
			)
			currentScripts = append(currentScripts, next.PkScript)
			currentInputValues = append(
				currentInputValues, next.Amount(),
			)
		}

		return currentTotal, currentInputs, currentInputValues,
			currentScripts, nil
	}
}

// DustThreshold returns the smallest output value to pkScript that relays at
// the default relay fee.
func DustThreshold(pkScript []byte) btcutil.Amount {
	return btcutil.Amount(
		mempool.GetDustThreshold(wire.NewTxOut(0, pkScript)),
	)
}
