// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txengine

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/txengine/pkg/feerate"
	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/txengine/coinselect"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// AccountBalance is the balance of an account in its own currency.
type AccountBalance struct {
	// Total is everything held by the account.
	Total money.Money

	// Actionable is the part of Total that can be moved right now.
	Actionable money.Money
}

// Account is the source of a transaction.
type Account interface {
	// Label is a human-readable name of the account.
	Label() string

	// Currency is the asset held by the account.
	Currency() money.Currency

	// Balance returns the current balance of the account.
	Balance(ctx context.Context) (AccountBalance, error)
}

// TokenAccount is an account holding a contract token whose network fees are
// paid from a balance in another asset.
type TokenAccount interface {
	Account

	// FeeBalance returns the balance that pays the network fee.
	FeeBalance(ctx context.Context) (money.Money, error)
}

// FeeLevelStore remembers the last fee level the user picked per asset.
type FeeLevelStore interface {
	// FeeLevel returns the stored level for the asset, if any.
	FeeLevel(ctx context.Context, asset money.Currency) (
		fn.Option[FeeLevel], error)

	// SetFeeLevel stores the level for the asset.
	SetFeeLevel(ctx context.Context, asset money.Currency,
		level FeeLevel) error
}

// DisplayPreferences exposes the user's display settings.
type DisplayPreferences interface {
	// SelectedFiat returns the fiat currency amounts are displayed in.
	SelectedFiat(ctx context.Context) (money.Currency, error)
}

// ExchangeRates provides last-known exchange rates.
type ExchangeRates interface {
	// Rate returns the price of one unit of from expressed in to.
	Rate(ctx context.Context, from, to money.Currency) (money.Rate, error)
}

// UTXOFeeOptions are the fee rates offered for a UTXO asset.
type UTXOFeeOptions struct {
	Regular  feerate.SatPerKVByte
	Priority feerate.SatPerKVByte
}

// UTXOFeeSource provides fee rates for UTXO assets.
type UTXOFeeSource interface {
	// FeeOptions returns the current fee rates for the asset.
	FeeOptions(ctx context.Context, asset money.Currency) (
		UTXOFeeOptions, error)
}

// UnspentSource provides the unspent outputs of an account.
type UnspentSource interface {
	// Unspent returns the spendable outputs of the account.
	Unspent(ctx context.Context, account Account) ([]coinselect.Coin,
		error)
}

// CoinSelector funds outputs from a set of coins. It is satisfied by
// *coinselect.Selector.
type CoinSelector interface {
	// Select funds the output at the given fee rate.
	Select(coins []coinselect.Coin, output *wire.TxOut,
		feeSatPerKb btcutil.Amount,
		change *txauthor.ChangeSource) (*coinselect.Selection, error)

	// MaxSpendable returns the sweep amount and fee to pkScript.
	MaxSpendable(coins []coinselect.Coin, pkScript []byte,
		feeSatPerKb btcutil.Amount) (*coinselect.Sweep, error)
}

// ChangeSource derives change scripts for an account.
type ChangeSource interface {
	// ChangeSource returns a change source for the account.
	ChangeSource(ctx context.Context, account Account) (
		*txauthor.ChangeSource, error)
}

// PsbtPublisher signs and broadcasts a funded PSBT. It returns the id of the
// published transaction.
type PsbtPublisher interface {
	PublishPsbt(ctx context.Context, account Account,
		packet *psbt.Packet) (string, error)
}

// GasFeeOptions are the gas limits and prices offered for an account-based
// asset.
type GasFeeOptions struct {
	// GasLimit is the gas limit of a plain transfer.
	GasLimit uint64

	// GasLimitContract is the gas limit of a token contract call.
	GasLimitContract uint64

	Regular  feerate.WeiPerGas
	Priority feerate.WeiPerGas
}

// GasFeeSource provides gas fee options.
type GasFeeSource interface {
	// GasFeeOptions returns the current gas options for the asset.
	GasFeeOptions(ctx context.Context, asset money.Currency) (
		GasFeeOptions, error)
}

// EthTransfer describes a transfer to be signed and broadcast.
type EthTransfer struct {
	From     Account
	To       string
	Amount   money.Money
	GasLimit uint64
	GasPrice feerate.WeiPerGas

	// Contract is the token contract, empty for ether.
	Contract string
}

// EthSender signs and broadcasts account-based transfers. It returns the
// transaction hash.
type EthSender interface {
	SendTransfer(ctx context.Context, transfer EthTransfer) (string, error)
}

// TransferLimits are the bounds of a custodial transfer, in a fiat currency
// chosen by the provider.
type TransferLimits struct {
	Min money.Money
	Max money.Money
}

// TransferLimitsSource provides tiered custodial transfer limits.
type TransferLimitsSource interface {
	// TransferLimits returns the limits for selling asset into fiat. It
	// returns ErrPendingOrdersLimit when the user has too many open
	// orders.
	TransferLimits(ctx context.Context, asset,
		fiat money.Currency) (TransferLimits, error)
}

// Quote is a live price for selling an asset.
type Quote struct {
	// ID identifies the quote to the order placer.
	ID string

	// Price is the fiat received per unit of the asset.
	Price money.Rate
}

// QuoteSource provides live prices for custodial sells.
type QuoteSource interface {
	// Quote returns a price for selling asset into fiat. It returns
	// ErrPendingOrdersLimit when the user has too many open orders.
	Quote(ctx context.Context, asset, fiat money.Currency) (Quote, error)
}

// SellOrder is a custodial sell order.
type SellOrder struct {
	// ID is the idempotency key of the order.
	ID      string
	QuoteID string
	Source  Account
	Amount  money.Money
	Fiat    money.Currency
}

// SellOrderPlacer places custodial sell orders.
type SellOrderPlacer interface {
	PlaceSellOrder(ctx context.Context, order SellOrder) error
}

// InterestDepositLimits are the limits of depositing into an interest
// account.
type InterestDepositLimits struct {
	// MinFiat is the product minimum in a fiat currency.
	MinFiat money.Money
}

// InterestWithdrawLimits are the limits and fee of withdrawing from an
// interest account.
type InterestWithdrawLimits struct {
	// Min and Fee are denominated in the asset.
	Min money.Money
	Fee money.Money

	// MaxFiat is the maximum in a fiat currency.
	MaxFiat money.Money
}

// InterestLimitsSource provides interest product limits. A None result means
// the provider has no limits for the asset.
type InterestLimitsSource interface {
	DepositLimits(ctx context.Context, asset money.Currency) (
		fn.Option[InterestDepositLimits], error)

	WithdrawLimits(ctx context.Context, asset money.Currency) (
		fn.Option[InterestWithdrawLimits], error)
}

// InterestTransfer moves funds into or out of interest accounts. It returns
// an id of the transfer.
type InterestTransfer interface {
	Deposit(ctx context.Context, source Account, target Target,
		amount money.Money) (string, error)

	Withdraw(ctx context.Context, source Account, target Target,
		amount money.Money) (string, error)
}
