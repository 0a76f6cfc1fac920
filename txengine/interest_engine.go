// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txengine

import (
	"context"
	"fmt"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// interestFeeKey holds the flat withdrawal fee.
const interestFeeKey = "interest.fee"

// InterestDepositConfig configures engines depositing into interest
// accounts.
type InterestDepositConfig struct {
	Services

	Limits   InterestLimitsSource
	Transfer InterestTransfer
}

// Start binds an interest deposit engine.
func (c *InterestDepositConfig) Start(b Binding) (Engine, error) {
	if c.Limits == nil {
		return nil, fmt.Errorf("%w: interest limits",
			ErrMissingDependency)
	}

	base, err := newEngineBase(b, c.Services)
	if err != nil {
		return nil, err
	}

	e := &InterestDepositEngine{engineBase: base, cfg: c}
	if err := e.AssertInputsValid(); err != nil {
		return nil, err
	}

	return e, nil
}

// InterestDepositEngine moves funds into an interest account. Deposits have
// a minimum and no fee.
type InterestDepositEngine struct {
	*engineBase

	cfg *InterestDepositConfig
}

// A compile-time assertion to ensure that InterestDepositEngine implements
// Engine.
var _ Engine = (*InterestDepositEngine)(nil)

// AssertInputsValid checks that the target is an account of the source
// asset.
func (e *InterestDepositEngine) AssertInputsValid() error {
	if _, ok := e.Target.(AccountTarget); !ok {
		return fmt.Errorf("%w: deposit target %T is not an account",
			ErrInvalidInputs, e.Target)
	}

	return e.assertSameAsset()
}

// InitialiseTx fetches the deposit minimum and converts it into the asset.
func (e *InterestDepositEngine) InitialiseTx(ctx context.Context) (
	*PendingTx, error) {

	ptx, err := e.initialTx(ctx, interestFeeSelection(e.SourceAsset()))
	if err != nil {
		return nil, err
	}

	limits, err := e.cfg.Limits.DepositLimits(ctx, e.SourceAsset())
	if err != nil {
		return nil, fmt.Errorf("deposit limits: %w", err)
	}

	lim, err := limits.UnwrapOrErr(
		fmt.Errorf("%w: deposit limits for %s", ErrNoLimits,
			e.SourceAsset()),
	)
	if err != nil {
		return nil, err
	}

	minLimit, err := convertLimit(
		ctx, e.Rates, lim.MinFiat, e.SourceAsset(), true,
	)
	if err != nil {
		return nil, err
	}
	ptx.MinLimit = fn.Some(minLimit)

	return ptx, nil
}

// UpdateAmount mirrors the source balance.
func (e *InterestDepositEngine) UpdateAmount(ctx context.Context,
	amount money.Money, ptx *PendingTx) (*PendingTx, error) {

	next, err := e.amountUpdate(amount, ptx)
	if err != nil {
		return nil, err
	}

	return applyInterestBalance(ctx, e.Source, next)
}

// UpdateFeeLevel only accepts FeeLevelNone.
func (e *InterestDepositEngine) UpdateFeeLevel(ctx context.Context,
	ptx *PendingTx, level FeeLevel, customFee int64) (*PendingTx, error) {

	return e.updateFeeLevel(ctx, ptx, level, customFee, noRecompute)
}

// BuildConfirmations lists the source, target, total and zero fee.
func (e *InterestDepositEngine) BuildConfirmations(_ context.Context,
	ptx *PendingTx) (*PendingTx, error) {

	return interestConfirmations(e.engineBase, ptx)
}

// Validate assigns the validation state.
func (e *InterestDepositEngine) Validate(_ context.Context,
	ptx *PendingTx) (*PendingTx, error) {

	return validateAmount(ptx, nil)
}

// Execute deposits the amount.
func (e *InterestDepositEngine) Execute(ctx context.Context,
	ptx *PendingTx) (*TxResult, error) {

	if err := checkExecutable(ptx); err != nil {
		return nil, err
	}

	if e.cfg.Transfer == nil {
		return nil, fmt.Errorf("%w: interest transfer",
			ErrMissingDependency)
	}

	id, err := e.cfg.Transfer.Deposit(ctx, e.Source, e.Target, ptx.Amount)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	return &TxResult{ID: id, Amount: ptx.Amount, Fee: ptx.FeeAmount}, nil
}

// InterestWithdrawConfig configures engines withdrawing from interest
// accounts.
type InterestWithdrawConfig struct {
	Services

	Limits   InterestLimitsSource
	Transfer InterestTransfer
}

// Start binds an interest withdraw engine.
func (c *InterestWithdrawConfig) Start(b Binding) (Engine, error) {
	if c.Limits == nil {
		return nil, fmt.Errorf("%w: interest limits",
			ErrMissingDependency)
	}

	base, err := newEngineBase(b, c.Services)
	if err != nil {
		return nil, err
	}

	e := &InterestWithdrawEngine{engineBase: base, cfg: c}
	if err := e.AssertInputsValid(); err != nil {
		return nil, err
	}

	return e, nil
}

// InterestWithdrawEngine moves funds out of an interest account for a flat
// fee in the asset.
type InterestWithdrawEngine struct {
	*engineBase

	cfg *InterestWithdrawConfig
}

// A compile-time assertion to ensure that InterestWithdrawEngine implements
// Engine.
var _ Engine = (*InterestWithdrawEngine)(nil)

// AssertInputsValid checks that the target receives the source asset.
func (e *InterestWithdrawEngine) AssertInputsValid() error {
	if _, ok := e.Target.(FiatTarget); ok {
		return fmt.Errorf("%w: cannot withdraw to fiat",
			ErrInvalidInputs)
	}

	return e.assertSameAsset()
}

// InitialiseTx fetches the withdrawal minimum, fee and maximum.
func (e *InterestWithdrawEngine) InitialiseTx(ctx context.Context) (
	*PendingTx, error) {

	asset := e.SourceAsset()

	limits, err := e.cfg.Limits.WithdrawLimits(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("withdraw limits: %w", err)
	}

	lim, err := limits.UnwrapOrErr(
		fmt.Errorf("%w: withdraw limits for %s", ErrNoLimits, asset),
	)
	if err != nil {
		return nil, err
	}

	if lim.Min.Currency() != asset || lim.Fee.Currency() != asset {
		return nil, fmt.Errorf("%w: withdraw limits in %s/%s for %s",
			money.ErrCurrencyMismatch, lim.Min.Currency(),
			lim.Fee.Currency(), asset)
	}

	sel := interestFeeSelection(asset)
	sel.Asset = fn.Some(asset)
	sel.FeesForLevels[FeeLevelNone] = lim.Fee

	ptx, err := e.initialTx(ctx, sel)
	if err != nil {
		return nil, err
	}

	maxLimit, err := convertLimit(ctx, e.Rates, lim.MaxFiat, asset, false)
	if err != nil {
		return nil, err
	}

	ptx.MinLimit = fn.Some(lim.Min)
	ptx.MaxLimit = fn.Some(maxLimit)
	ptx.EngineState[interestFeeKey] = lim.Fee

	return ptx, nil
}

// UpdateAmount mirrors the source balance less the flat fee.
func (e *InterestWithdrawEngine) UpdateAmount(ctx context.Context,
	amount money.Money, ptx *PendingTx) (*PendingTx, error) {

	next, err := e.amountUpdate(amount, ptx)
	if err != nil {
		return nil, err
	}

	next, err = applyInterestBalance(ctx, e.Source, next)
	if err != nil {
		return nil, err
	}

	fee := engineStateValue[money.Money](next, interestFeeKey).
		UnwrapOr(money.Zero(e.SourceAsset()))

	available, err := next.AvailableBalance.Sub(fee)
	if err != nil {
		return nil, err
	}

	next.FeeAmount = fee
	next.FeeForFullAvailable = fee
	next.AvailableBalance = available.ClampZero()

	return next, nil
}

// UpdateFeeLevel only accepts FeeLevelNone.
func (e *InterestWithdrawEngine) UpdateFeeLevel(ctx context.Context,
	ptx *PendingTx, level FeeLevel, customFee int64) (*PendingTx, error) {

	return e.updateFeeLevel(ctx, ptx, level, customFee, noRecompute)
}

// BuildConfirmations lists the source, target, total and fee.
func (e *InterestWithdrawEngine) BuildConfirmations(_ context.Context,
	ptx *PendingTx) (*PendingTx, error) {

	return interestConfirmations(e.engineBase, ptx)
}

// Validate assigns the validation state.
func (e *InterestWithdrawEngine) Validate(_ context.Context,
	ptx *PendingTx) (*PendingTx, error) {

	return validateAmount(ptx, nil)
}

// Execute withdraws the amount.
func (e *InterestWithdrawEngine) Execute(ctx context.Context,
	ptx *PendingTx) (*TxResult, error) {

	if err := checkExecutable(ptx); err != nil {
		return nil, err
	}

	if e.cfg.Transfer == nil {
		return nil, fmt.Errorf("%w: interest transfer",
			ErrMissingDependency)
	}

	id, err := e.cfg.Transfer.Withdraw(ctx, e.Source, e.Target, ptx.Amount)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	return &TxResult{ID: id, Amount: ptx.Amount, Fee: ptx.FeeAmount}, nil
}

// interestFeeSelection is the fixed fee selection of interest flows.
func interestFeeSelection(asset money.Currency) FeeSelection {
	sel := newFeeSelection(fn.None[money.Currency](), FeeLevelNone)
	sel.FeesForLevels[FeeLevelNone] = money.Zero(asset)

	return sel
}

// noRecompute is the recompute step of engines without a fee choice.
func noRecompute(_ context.Context, ptx *PendingTx) (*PendingTx, error) {
	return ptx, nil
}

// applyInterestBalance sets the balances of ptx from the source account.
func applyInterestBalance(ctx context.Context, source Account,
	ptx *PendingTx) (*PendingTx, error) {

	balance, err := source.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}

	ptx.TotalBalance = balance.Total
	ptx.AvailableBalance = balance.Actionable

	return ptx, nil
}

// interestConfirmations always lists the fee, even when it is zero.
func interestConfirmations(e *engineBase, ptx *PendingTx) (*PendingTx,
	error) {

	if err := checkPendingTx(ptx); err != nil {
		return nil, err
	}

	total, err := ptx.Amount.Add(ptx.FeeAmount)
	if err != nil {
		return nil, err
	}

	next := ptx.Copy()
	next.Confirmations = []Confirmation{
		ConfirmFrom{Label: e.Source.Label()},
		ConfirmTo{Label: e.Target.Label()},
		ConfirmTotal{Amount: total, Fee: ptx.FeeAmount},
		ConfirmNetworkFee{Fee: ptx.FeeAmount},
	}

	return next, nil
}
