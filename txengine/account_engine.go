// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txengine

import (
	"context"
	"fmt"

	"github.com/btcsuite/txengine/pkg/feerate"
	"github.com/btcsuite/txengine/pkg/money"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// gasOptionsKey caches the gas options fetched for a flow so that a
	// level switch does not refetch them.
	gasOptionsKey = "account.gas"

	// actionableKey holds the actionable balance last fetched.
	actionableKey = "account.actionable"

	// feeBalanceKey holds the balance paying the network fee of a token
	// transfer.
	feeBalanceKey = "account.feeBalance"
)

// AccountConfig configures engines for account-based assets and their
// tokens.
type AccountConfig struct {
	Services

	// FeeAsset is the native asset gas is paid in, ether when unset.
	FeeAsset money.Currency

	FeeSource GasFeeSource
	Sender    EthSender
}

// Start binds an account engine.
func (c *AccountConfig) Start(b Binding) (Engine, error) {
	if c.FeeSource == nil {
		return nil, fmt.Errorf("%w: gas fee source",
			ErrMissingDependency)
	}

	if c.FeeAsset.Code == "" {
		cfg := *c
		cfg.FeeAsset = money.ETH
		c = &cfg
	}

	base, err := newEngineBase(b, c.Services)
	if err != nil {
		return nil, err
	}

	e := &AccountEngine{engineBase: base, cfg: c}
	if err := e.AssertInputsValid(); err != nil {
		return nil, err
	}

	return e, nil
}

// AccountEngine prices and sends transfers of an account-based asset or one
// of its tokens. Fees do not depend on the amount.
type AccountEngine struct {
	*engineBase

	cfg *AccountConfig
}

// A compile-time assertion to ensure that AccountEngine implements Engine.
var _ Engine = (*AccountEngine)(nil)

// isToken returns true if the source asset is a contract token.
func (e *AccountEngine) isToken() bool {
	return e.SourceAsset().IsToken()
}

// AssertInputsValid checks that the target is a hex address receiving the
// source asset, and that token sources can pay gas.
func (e *AccountEngine) AssertInputsValid() error {
	if err := e.assertSameAsset(); err != nil {
		return err
	}

	if e.cfg.FeeAsset.IsToken() || !e.cfg.FeeAsset.IsCrypto() {
		return fmt.Errorf("%w: fee asset %s", ErrInvalidInputs,
			e.cfg.FeeAsset)
	}

	if !e.isToken() && e.SourceAsset() != e.cfg.FeeAsset {
		return fmt.Errorf("%w: %s is neither %s nor a token",
			ErrInvalidInputs, e.SourceAsset(), e.cfg.FeeAsset)
	}

	if e.isToken() {
		if _, ok := e.Source.(TokenAccount); !ok {
			return fmt.Errorf("%w: token account %s has no fee "+
				"balance", ErrInvalidInputs, e.Source.Label())
		}
	}

	target, ok := e.Target.(AddressTarget)
	if !ok {
		return fmt.Errorf("%w: target %T is not an address",
			ErrInvalidInputs, e.Target)
	}

	if !common.IsHexAddress(target.Address) {
		return fmt.Errorf("%w: invalid address %q", ErrInvalidInputs,
			target.Address)
	}

	return nil
}

// InitialiseTx returns the zeroed pending transaction and caches the gas
// options for the flow.
func (e *AccountEngine) InitialiseTx(ctx context.Context) (*PendingTx,
	error) {

	sel := newFeeSelection(
		fn.Some(e.cfg.FeeAsset), FeeLevelRegular, FeeLevelPriority,
	)

	ptx, err := e.initialTx(ctx, sel)
	if err != nil {
		return nil, err
	}

	opts, err := e.cfg.FeeSource.GasFeeOptions(ctx, e.SourceAsset())
	if err != nil {
		return nil, fmt.Errorf("gas options: %w", err)
	}
	ptx.EngineState[gasOptionsKey] = opts

	return ptx, nil
}

// gasLimit returns the gas limit of the transfer.
func (e *AccountEngine) gasLimit(opts GasFeeOptions) uint64 {
	if e.isToken() {
		return opts.GasLimitContract
	}

	return opts.GasLimit
}

// gasPrice returns the gas price of a level.
func gasPrice(opts GasFeeOptions, level FeeLevel) feerate.WeiPerGas {
	if level == FeeLevelPriority {
		return opts.Priority
	}

	return opts.Regular
}

// fee returns gasLimit x gasPrice for a level, in the fee asset.
func (e *AccountEngine) fee(opts GasFeeOptions, level FeeLevel) money.Money {
	wei := gasPrice(opts, level).FeeForGas(e.gasLimit(opts))

	return money.FromBigMinor(wei, e.cfg.FeeAsset)
}

// gasOptions returns the cached gas options, fetching them if the flow has
// none yet.
func (e *AccountEngine) gasOptions(ctx context.Context,
	ptx *PendingTx) (GasFeeOptions, error) {

	cached := engineStateValue[GasFeeOptions](ptx, gasOptionsKey)
	if cached.IsSome() {
		return cached.UnwrapOr(GasFeeOptions{}), nil
	}

	opts, err := e.cfg.FeeSource.GasFeeOptions(ctx, e.SourceAsset())
	if err != nil {
		return GasFeeOptions{}, fmt.Errorf("gas options: %w", err)
	}
	ptx.EngineState[gasOptionsKey] = opts

	return opts, nil
}

// UpdateAmount refreshes the balances and recomputes fees for a new amount.
func (e *AccountEngine) UpdateAmount(ctx context.Context,
	amount money.Money, ptx *PendingTx) (*PendingTx, error) {

	next, err := e.amountUpdate(amount, ptx)
	if err != nil {
		return nil, err
	}

	balance, err := e.Source.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	next.TotalBalance = balance.Total
	next.EngineState[actionableKey] = balance.Actionable

	if token, ok := e.Source.(TokenAccount); ok && e.isToken() {
		feeBalance, err := token.FeeBalance(ctx)
		if err != nil {
			return nil, fmt.Errorf("fee balance: %w", err)
		}
		next.EngineState[feeBalanceKey] = feeBalance
	}

	return e.applyFees(ctx, next)
}

// UpdateFeeLevel switches between the regular and priority levels using the
// gas options already fetched for the flow.
func (e *AccountEngine) UpdateFeeLevel(ctx context.Context, ptx *PendingTx,
	level FeeLevel, customFee int64) (*PendingTx, error) {

	return e.updateFeeLevel(ctx, ptx, level, customFee, e.applyFees)
}

// applyFees fills in the fees and available balance of ptx from the cached
// gas options and balances.
func (e *AccountEngine) applyFees(ctx context.Context,
	ptx *PendingTx) (*PendingTx, error) {

	next := ptx.Copy()

	opts, err := e.gasOptions(ctx, next)
	if err != nil {
		return nil, err
	}

	next.FeeSelection.FeesForLevels = make(map[FeeLevel]money.Money)
	for _, level := range next.FeeSelection.OrderedLevels() {
		next.FeeSelection.FeesForLevels[level] = e.fee(opts, level)
	}

	actionable := engineStateValue[money.Money](next, actionableKey).
		UnwrapOr(money.Zero(e.SourceAsset()))

	if e.isToken() {
		// The amount of a token transfer carries no fee in the
		// token itself.
		next.FeeAmount = money.Zero(e.SourceAsset())
		next.FeeForFullAvailable = next.FeeAmount
		next.AvailableBalance = actionable

		return next, nil
	}

	fee := e.fee(opts, next.FeeSelection.SelectedLevel)
	available, err := actionable.Sub(fee)
	if err != nil {
		return nil, err
	}

	next.FeeAmount = fee
	next.FeeForFullAvailable = fee
	next.AvailableBalance = available.ClampZero()

	return next, nil
}

// networkFee returns the fee of the selected level in the fee asset.
func networkFee(ptx *PendingTx, feeAsset money.Currency) money.Money {
	fee, ok := ptx.FeeSelection.FeesForLevels[ptx.FeeSelection.SelectedLevel]
	if !ok {
		return money.Zero(feeAsset)
	}

	return fee
}

// BuildConfirmations lists the source, target, amount, fee choice, network
// fee and total.
func (e *AccountEngine) BuildConfirmations(_ context.Context,
	ptx *PendingTx) (*PendingTx, error) {

	if err := checkPendingTx(ptx); err != nil {
		return nil, err
	}

	fee := networkFee(ptx, e.cfg.FeeAsset)
	total := ConfirmTotal{Amount: ptx.Amount, Fee: fee}
	if !e.isToken() {
		sum, err := ptx.Amount.Add(fee)
		if err != nil {
			return nil, err
		}
		total.Amount = sum
	}

	next := ptx.Copy()
	next.Confirmations = []Confirmation{
		ConfirmFrom{Label: e.Source.Label()},
		ConfirmTo{Label: e.Target.Label()},
		ConfirmAmount{Amount: ptx.Amount},
		ConfirmFeeSelection{Selection: ptx.FeeSelection.Copy()},
		ConfirmNetworkFee{Fee: fee},
		total,
	}

	return next, nil
}

// Validate assigns the validation state. Token transfers also check that the
// fee balance covers the network fee.
func (e *AccountEngine) Validate(_ context.Context,
	ptx *PendingTx) (*PendingTx, error) {

	if !e.isToken() || ptx == nil {
		return validateAmount(ptx, nil)
	}

	return validateAmount(ptx, func() (bool, error) {
		feeBalance := engineStateValue[money.Money](ptx, feeBalanceKey).
			UnwrapOr(money.Zero(e.cfg.FeeAsset))

		c, err := feeBalance.Cmp(networkFee(ptx, e.cfg.FeeAsset))
		if err != nil {
			return false, err
		}

		return c >= 0, nil
	})
}

// Execute sends the transfer with the gas limit and price of the selected
// level.
func (e *AccountEngine) Execute(ctx context.Context,
	ptx *PendingTx) (*TxResult, error) {

	if err := checkExecutable(ptx); err != nil {
		return nil, err
	}

	if e.cfg.Sender == nil {
		return nil, fmt.Errorf("%w: sender", ErrMissingDependency)
	}

	opts, err := e.gasOptions(ctx, ptx.Copy())
	if err != nil {
		return nil, err
	}

	level := ptx.FeeSelection.SelectedLevel
	transfer := EthTransfer{
		From:     e.Source,
		To:       e.Target.(AddressTarget).Address,
		Amount:   ptx.Amount,
		GasLimit: e.gasLimit(opts),
		GasPrice: gasPrice(opts, level),
		Contract: e.SourceAsset().Contract,
	}

	hash, err := e.cfg.Sender.SendTransfer(ctx, transfer)
	if err != nil {
		return nil, fmt.Errorf("send transfer: %w", err)
	}

	log.Infof("Sent %v to %s at %v: %s", ptx.Amount, e.Target.Label(),
		transfer.GasPrice, hash)

	return &TxResult{
		ID:     hash,
		Amount: ptx.Amount,
		Fee:    e.fee(opts, level),
	}, nil
}
