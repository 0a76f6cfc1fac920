// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/txengine/pkg/feerate"
	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/txengine"
	"github.com/btcsuite/txengine/txengine/coinselect"
)

const (
	// DefaultRegularConfTarget is the confirmation target of the regular
	// fee level.
	DefaultRegularConfTarget = 6

	// DefaultPriorityConfTarget is the confirmation target of the priority
	// fee level.
	DefaultPriorityConfTarget = 2

	// maxConf is the largest confirmation count passed to listunspent.
	maxConf = 9999999
)

var (
	// ErrNoEstimate is returned when the node has no fee estimate for a
	// confirmation target.
	ErrNoEstimate = errors.New("no fee estimate")

	// ErrMissingRPCConfig is returned when a node is created without a
	// connection config.
	ErrMissingRPCConfig = errors.New("missing rpc config")
)

// BTCNode is the part of the bitcoind/btcd RPC client used to price and fund
// transactions.
type BTCNode interface {
	EstimateSmartFee(confTarget int64,
		mode *btcjson.EstimateSmartFeeMode) (
		*btcjson.EstimateSmartFeeResult, error)

	ListUnspentMinMaxAddresses(minConf, maxConf int,
		addrs []btcutil.Address) ([]btcjson.ListUnspentResult, error)
}

// A compile-time assertion to ensure that the RPC client implements BTCNode.
var _ BTCNode = (*rpcclient.Client)(nil)

// NewBTCNode connects to a node over HTTP POST.
func NewBTCNode(conn *rpcclient.ConnConfig) (*rpcclient.Client, error) {
	if conn == nil {
		return nil, ErrMissingRPCConfig
	}

	cfg := *conn
	cfg.HTTPPostMode = true

	return rpcclient.New(&cfg, nil)
}

// BTCFeeSource estimates UTXO fee rates with estimatesmartfee.
type BTCFeeSource struct {
	node BTCNode

	regularTarget  int64
	priorityTarget int64

	// fallback is used for a level the node cannot estimate.
	fallback txengine.UTXOFeeOptions
}

// A compile-time assertion to ensure that BTCFeeSource implements
// txengine.UTXOFeeSource.
var _ txengine.UTXOFeeSource = (*BTCFeeSource)(nil)

// NewBTCFeeSource returns a fee source with the default confirmation targets
// and the given fallback rates.
func NewBTCFeeSource(node BTCNode,
	fallback txengine.UTXOFeeOptions) *BTCFeeSource {

	return &BTCFeeSource{
		node:           node,
		regularTarget:  DefaultRegularConfTarget,
		priorityTarget: DefaultPriorityConfTarget,
		fallback:       fallback,
	}
}

// FeeOptions returns the regular and priority fee rates. A rate is never
// below the default relay fee and priority is never below regular.
func (s *BTCFeeSource) FeeOptions(ctx context.Context,
	asset money.Currency) (txengine.UTXOFeeOptions, error) {

	if err := ctx.Err(); err != nil {
		return txengine.UTXOFeeOptions{}, err
	}

	regular := s.rateWithFallback(s.regularTarget, s.fallback.Regular)
	priority := s.rateWithFallback(s.priorityTarget, s.fallback.Priority)

	if priority.LessThan(regular) {
		priority = regular
	}

	log.Debugf("%s fee rates: regular=%v priority=%v", asset, regular,
		priority)

	return txengine.UTXOFeeOptions{
		Regular:  regular,
		Priority: priority,
	}, nil
}

// rateWithFallback returns the estimate for confTarget, or fallback if the
// node has none.
func (s *BTCFeeSource) rateWithFallback(confTarget int64,
	fallback feerate.SatPerKVByte) feerate.SatPerKVByte {

	rate, err := s.estimate(confTarget)
	if err != nil {
		log.Warnf("Unable to estimate %d-conf fee rate, using "+
			"fallback of %v: %v", confTarget, fallback, err)

		rate = fallback
	}

	relay := feerate.NewSatPerKVByte(txrules.DefaultRelayFeePerKb)
	if rate.LessThan(relay) {
		return relay
	}

	return rate
}

func (s *BTCFeeSource) estimate(confTarget int64) (feerate.SatPerKVByte,
	error) {

	mode := btcjson.EstimateModeConservative

	res, err := s.node.EstimateSmartFee(confTarget, &mode)
	if err != nil {
		return feerate.SatPerKVByte{}, err
	}

	if res.FeeRate == nil {
		return feerate.SatPerKVByte{}, fmt.Errorf("%w: %v",
			ErrNoEstimate, res.Errors)
	}

	return feerate.FromBTCPerKVByte(*res.FeeRate)
}

// AddressLookup returns the addresses watched for an account.
type AddressLookup func(account txengine.Account) ([]btcutil.Address, error)

// BTCUnspent lists the unspent outputs of an account's addresses.
type BTCUnspent struct {
	node      BTCNode
	addresses AddressLookup
	minConf   int
}

// A compile-time assertion to ensure that BTCUnspent implements
// txengine.UnspentSource.
var _ txengine.UnspentSource = (*BTCUnspent)(nil)

// NewBTCUnspent returns an unspent source listing outputs with at least
// minConf confirmations.
func NewBTCUnspent(node BTCNode, addresses AddressLookup,
	minConf int) *BTCUnspent {

	return &BTCUnspent{node: node, addresses: addresses, minConf: minConf}
}

// Unspent returns the spendable coins of account.
func (u *BTCUnspent) Unspent(ctx context.Context,
	account txengine.Account) ([]coinselect.Coin, error) {

	results, err := u.list(ctx, account, u.minConf)
	if err != nil {
		return nil, err
	}

	coins := make([]coinselect.Coin, 0, len(results))
	for _, res := range results {
		coin, err := coinFromUnspent(res)
		if err != nil {
			return nil, err
		}

		coins = append(coins, coin)
	}

	return coins, nil
}

func (u *BTCUnspent) list(ctx context.Context, account txengine.Account,
	minConf int) ([]btcjson.ListUnspentResult, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addrs, err := u.addresses(account)
	if err != nil {
		return nil, fmt.Errorf("addresses of %s: %w", account.Label(),
			err)
	}

	results, err := u.node.ListUnspentMinMaxAddresses(
		minConf, maxConf, addrs,
	)
	if err != nil {
		return nil, fmt.Errorf("listunspent: %w", err)
	}

	return results, nil
}

// coinFromUnspent converts a listunspent result into a coin.
func coinFromUnspent(res btcjson.ListUnspentResult) (coinselect.Coin, error) {
	hash, err := chainhash.NewHashFromStr(res.TxID)
	if err != nil {
		return coinselect.Coin{}, fmt.Errorf("txid %q: %w", res.TxID,
			err)
	}

	script, err := hex.DecodeString(res.ScriptPubKey)
	if err != nil {
		return coinselect.Coin{}, fmt.Errorf("script of %s:%d: %w",
			res.TxID, res.Vout, err)
	}

	amt, err := btcutil.NewAmount(res.Amount)
	if err != nil {
		return coinselect.Coin{}, err
	}

	return coinselect.Coin{
		TxOut:    *wire.NewTxOut(int64(amt), script),
		OutPoint: *wire.NewOutPoint(hash, res.Vout),
	}, nil
}

// WatchAccount is a UTXO account made of watched addresses.
type WatchAccount struct {
	label    string
	currency money.Currency
	addrs    []btcutil.Address
	unspent  *BTCUnspent
}

// A compile-time assertion to ensure that WatchAccount implements
// txengine.Account.
var _ txengine.Account = (*WatchAccount)(nil)

// NewWatchAccount returns an account over addrs. Its actionable balance
// counts outputs with at least minConf confirmations.
func NewWatchAccount(label string, currency money.Currency, node BTCNode,
	minConf int, addrs ...btcutil.Address) *WatchAccount {

	acct := &WatchAccount{
		label:    label,
		currency: currency,
		addrs:    addrs,
	}
	acct.unspent = NewBTCUnspent(node, acct.Addresses, minConf)

	return acct
}

// Label returns the account label.
func (a *WatchAccount) Label() string {
	return a.label
}

// Currency returns the account currency.
func (a *WatchAccount) Currency() money.Currency {
	return a.currency
}

// Addresses is an AddressLookup returning the watched addresses of the
// account itself.
func (a *WatchAccount) Addresses(_ txengine.Account) ([]btcutil.Address,
	error) {

	return a.addrs, nil
}

// Unspent returns the unspent source of the account.
func (a *WatchAccount) Unspent() *BTCUnspent {
	return a.unspent
}

// Balance sums all unspent outputs into the total and the confirmed ones
// into the actionable balance.
func (a *WatchAccount) Balance(ctx context.Context) (txengine.AccountBalance,
	error) {

	all, err := a.unspent.list(ctx, a, 0)
	if err != nil {
		return txengine.AccountBalance{}, err
	}

	var total, actionable btcutil.Amount
	for _, res := range all {
		amt, err := btcutil.NewAmount(res.Amount)
		if err != nil {
			return txengine.AccountBalance{}, err
		}

		total += amt
		if res.Confirmations >= int64(a.unspent.minConf) {
			actionable += amt
		}
	}

	return txengine.AccountBalance{
		Total:      money.FromMinor(int64(total), a.currency),
		Actionable: money.FromMinor(int64(actionable), a.currency),
	}, nil
}
