// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/btcsuite/txengine/pkg/feerate"
	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/txengine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const (
	// DefaultGasLimit is the gas used by a plain ether transfer.
	DefaultGasLimit = 21_000

	// DefaultGasLimitContract is the gas budgeted for a token transfer.
	DefaultGasLimitContract = 65_000
)

var (
	// DefaultMaxGasPrice caps suggested gas prices.
	DefaultMaxGasPrice = feerate.NewGwei(100)

	// DefaultPriorityMultiplier scales the suggested price for the
	// priority level.
	DefaultPriorityMultiplier = decimal.RequireFromString("1.25")
)

// ETHNode is the part of the go-ethereum client used to price transfers and
// read balances.
type ETHNode interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address,
		blockNumber *big.Int) (*big.Int, error)
}

// A compile-time assertion to ensure that the go-ethereum client implements
// ETHNode.
var _ ETHNode = (*ethclient.Client)(nil)

// DialETH connects to an ethereum JSON-RPC endpoint.
func DialETH(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return client, nil
}

// GasFeeSourceConfig configures a GasFeeSource.
type GasFeeSourceConfig struct {
	// GasLimit and GasLimitContract are the limits of ether and token
	// transfers.
	GasLimit         uint64
	GasLimitContract uint64

	// MaxGasPrice caps both levels.
	MaxGasPrice feerate.WeiPerGas

	// PriorityMultiplier scales the suggested price for the priority
	// level.
	PriorityMultiplier decimal.Decimal
}

// DefaultGasFeeSourceConfig returns the default gas pricing.
func DefaultGasFeeSourceConfig() GasFeeSourceConfig {
	return GasFeeSourceConfig{
		GasLimit:           DefaultGasLimit,
		GasLimitContract:   DefaultGasLimitContract,
		MaxGasPrice:        DefaultMaxGasPrice,
		PriorityMultiplier: DefaultPriorityMultiplier,
	}
}

// GasFeeSource prices account-based transfers from the node's suggested gas
// price.
type GasFeeSource struct {
	node ETHNode
	cfg  GasFeeSourceConfig
}

// A compile-time assertion to ensure that GasFeeSource implements
// txengine.GasFeeSource.
var _ txengine.GasFeeSource = (*GasFeeSource)(nil)

// NewGasFeeSource returns a fee source over node.
func NewGasFeeSource(node ETHNode, cfg GasFeeSourceConfig) *GasFeeSource {
	return &GasFeeSource{node: node, cfg: cfg}
}

// GasFeeOptions returns the gas limits and the regular and priority gas
// prices.
func (s *GasFeeSource) GasFeeOptions(ctx context.Context,
	asset money.Currency) (txengine.GasFeeOptions, error) {

	suggested, err := s.node.SuggestGasPrice(ctx)
	if err != nil {
		return txengine.GasFeeOptions{}, fmt.Errorf("suggest gas "+
			"price: %w", err)
	}

	price := feerate.NewWeiPerGas(suggested)
	opts := txengine.GasFeeOptions{
		GasLimit:         s.cfg.GasLimit,
		GasLimitContract: s.cfg.GasLimitContract,
		Regular:          price.Cap(s.cfg.MaxGasPrice),
		Priority: price.Scale(s.cfg.PriorityMultiplier).
			Cap(s.cfg.MaxGasPrice),
	}

	log.Debugf("%s gas prices: suggested=%v regular=%v priority=%v",
		asset, price, opts.Regular, opts.Priority)

	return opts, nil
}

// ETHAccount is an ether account identified by its address.
type ETHAccount struct {
	label   string
	address common.Address
	node    ETHNode
}

// A compile-time assertion to ensure that ETHAccount implements
// txengine.Account.
var _ txengine.Account = (*ETHAccount)(nil)

// NewETHAccount returns an account reading the balance of address.
func NewETHAccount(label string, address common.Address,
	node ETHNode) *ETHAccount {

	return &ETHAccount{label: label, address: address, node: node}
}

// Label returns the account label.
func (a *ETHAccount) Label() string {
	return a.label
}

// Currency returns ether.
func (a *ETHAccount) Currency() money.Currency {
	return money.ETH
}

// Address returns the account address.
func (a *ETHAccount) Address() common.Address {
	return a.address
}

// Balance returns the latest balance. All of it is actionable.
func (a *ETHAccount) Balance(ctx context.Context) (txengine.AccountBalance,
	error) {

	wei, err := a.node.BalanceAt(ctx, a.address, nil)
	if err != nil {
		return txengine.AccountBalance{}, fmt.Errorf("balance of %s: %w",
			a.address.Hex(), err)
	}

	balance := money.FromBigMinor(wei, money.ETH)

	return txengine.AccountBalance{Total: balance, Actionable: balance}, nil
}
