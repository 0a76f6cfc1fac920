// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txengine builds, prices and validates outbound transactions for
// UTXO chains, account chains and custodial products behind one lifecycle:
//
//	bind -> initialise -> update amount -> update fee level ->
//	build confirmations -> validate -> execute
//
// Every step takes the current PendingTx and returns a new one. Engines are
// obtained from a Factory and are bound to one source account and target for
// the lifetime of a single flow. They are not safe for concurrent use.
package txengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrInvalidInputs is returned when the source account and target of
	// a binding cannot be combined.
	ErrInvalidInputs = errors.New("invalid source and target")

	// ErrFeeLevelUnavailable is returned when a fee level outside the
	// available levels is requested.
	ErrFeeLevelUnavailable = errors.New("fee level not available")

	// ErrInvalidCustomFee is returned when a custom fee is malformed or
	// given for a level other than FeeLevelCustom.
	ErrInvalidCustomFee = errors.New("invalid custom fee")

	// ErrFeeRateTooLarge is returned when a custom fee rate exceeds the
	// sanity cap.
	ErrFeeRateTooLarge = errors.New("fee rate too large")

	// ErrNotExecutable is returned when a transaction that has not been
	// validated as executable is executed.
	ErrNotExecutable = errors.New("transaction cannot be executed")

	// ErrNilPendingTx is returned when a lifecycle step is given no
	// pending transaction.
	ErrNilPendingTx = errors.New("nil pending transaction")

	// ErrNoLimits is returned when a mandatory limits provider has no
	// result.
	ErrNoLimits = errors.New("no result")

	// ErrPendingOrdersLimit is returned by custodial services when the
	// user has too many open orders.
	ErrPendingOrdersLimit = errors.New("pending orders limit reached")

	// ErrUnknownFeeLevel is returned when parsing an unknown fee level.
	ErrUnknownFeeLevel = errors.New("unknown fee level")

	// ErrMissingDependency is returned when an engine config lacks a
	// collaborator it needs.
	ErrMissingDependency = errors.New("missing dependency")
)

// TxResult describes an executed transaction.
type TxResult struct {
	// ID is the transaction hash or order id.
	ID     string
	Amount money.Money
	Fee    money.Money
}

// Engine drives one transaction flow for a bound source and target.
type Engine interface {
	// SourceAsset returns the currency of the bound source account.
	SourceAsset() money.Currency

	// AssertInputsValid checks that the bound source and target can be
	// combined.
	AssertInputsValid() error

	// InitialiseTx returns the zeroed pending transaction.
	InitialiseTx(ctx context.Context) (*PendingTx, error)

	// UpdateAmount recomputes balances and fees for a new amount.
	UpdateAmount(ctx context.Context, amount money.Money,
		ptx *PendingTx) (*PendingTx, error)

	// UpdateFeeLevel switches the fee level. customFee is only used with
	// FeeLevelCustom and is CustomFeeUnset otherwise.
	UpdateFeeLevel(ctx context.Context, ptx *PendingTx, level FeeLevel,
		customFee int64) (*PendingTx, error)

	// BuildConfirmations replaces the confirmation lines. Amounts are
	// left untouched.
	BuildConfirmations(ctx context.Context, ptx *PendingTx) (*PendingTx,
		error)

	// Validate assigns the validation state.
	Validate(ctx context.Context, ptx *PendingTx) (*PendingTx, error)

	// Execute submits a transaction in the ValidationCanExecute state.
	Execute(ctx context.Context, ptx *PendingTx) (*TxResult, error)

	isEngine()
}

// Binding is what an engine is bound to for the duration of one flow.
type Binding struct {
	Source Account
	Target Target
	Rates  ExchangeRates
}

// Factory creates bound engines. Start is the only way to obtain an Engine,
// so no lifecycle method can run before binding.
type Factory interface {
	Start(b Binding) (Engine, error)
}

// Services are the collaborators shared by every engine.
type Services struct {
	FeeLevels FeeLevelStore
	Display   DisplayPreferences
}

// validate checks that every service is set.
func (s Services) validate() error {
	if s.FeeLevels == nil {
		return fmt.Errorf("%w: fee level store", ErrMissingDependency)
	}

	if s.Display == nil {
		return fmt.Errorf("%w: display preferences",
			ErrMissingDependency)
	}

	return nil
}

// recomputeFunc recomputes the fee dependent fields of a pending transaction
// for its current amount and selected level.
type recomputeFunc func(ctx context.Context, ptx *PendingTx) (*PendingTx,
	error)

// engineBase holds the binding and the lifecycle rules shared by all
// engines.
type engineBase struct {
	Binding

	services Services
}

// newEngineBase validates the binding and returns the shared engine state.
func newEngineBase(b Binding, services Services) (*engineBase, error) {
	if b.Source == nil || b.Target == nil || b.Rates == nil {
		return nil, fmt.Errorf("%w: incomplete binding",
			ErrInvalidInputs)
	}

	if err := services.validate(); err != nil {
		return nil, err
	}

	return &engineBase{Binding: b, services: services}, nil
}

// SourceAsset returns the currency of the bound source account.
func (e *engineBase) SourceAsset() money.Currency {
	return e.Source.Currency()
}

func (e *engineBase) isEngine() {}

// assertSameAsset checks that the target receives the source asset.
func (e *engineBase) assertSameAsset() error {
	if e.Target.Currency() != e.SourceAsset() {
		return fmt.Errorf("%w: source %s, target %s", ErrInvalidInputs,
			e.SourceAsset(), e.Target.Currency())
	}

	return nil
}

// initialTx returns the zeroed pending transaction with the selected fiat set
// and the fee selection seeded from the stored preference.
func (e *engineBase) initialTx(ctx context.Context,
	sel FeeSelection) (*PendingTx, error) {

	fiat, err := e.services.Display.SelectedFiat(ctx)
	if err != nil {
		return nil, fmt.Errorf("selected fiat: %w", err)
	}

	stored, err := e.services.FeeLevels.FeeLevel(ctx, e.SourceAsset())
	if err != nil {
		return nil, fmt.Errorf("stored fee level: %w", err)
	}

	stored.WhenSome(func(level FeeLevel) {
		if sel.AvailableLevels.Contains(level) {
			sel.SelectedLevel = level
		}
	})

	log.Debugf("Initialising %s tx from %s to %s with fee level %v",
		e.SourceAsset(), e.Source.Label(), e.Target.Label(),
		sel.SelectedLevel)

	return zeroPendingTx(e.SourceAsset(), fiat, sel), nil
}

// checkPendingTx rejects a nil pending transaction.
func checkPendingTx(ptx *PendingTx) error {
	if ptx == nil {
		return ErrNilPendingTx
	}

	return nil
}

// amountUpdate validates a new amount and returns a copy of ptx carrying it,
// with the validation state reset.
func (e *engineBase) amountUpdate(amount money.Money,
	ptx *PendingTx) (*PendingTx, error) {

	if err := checkPendingTx(ptx); err != nil {
		return nil, err
	}

	if amount.Currency() != e.SourceAsset() {
		return nil, fmt.Errorf("%w: amount in %s, engine bound to %s",
			money.ErrCurrencyMismatch, amount.Currency(),
			e.SourceAsset())
	}

	next := ptx.Copy()
	next.Amount = amount
	next.ValidationState = resetValidation(ptx.ValidationState)

	return next, nil
}

// resetValidation returns the state a changed transaction starts in. The
// pending orders limit is sticky for the lifetime of the flow.
func resetValidation(state ValidationState) ValidationState {
	if state == ValidationPendingOrdersLimitReached {
		return state
	}

	return ValidationUninitialised
}

// updateFeeLevel applies the fee level transition rule shared by all
// engines. An unavailable level fails before any I/O, re-selecting the
// current level returns an identical copy, and any other change recomputes
// fees and persists the new level only once the recomputation succeeded.
func (e *engineBase) updateFeeLevel(ctx context.Context, ptx *PendingTx,
	level FeeLevel, customFee int64,
	recompute recomputeFunc) (*PendingTx, error) {

	if err := checkPendingTx(ptx); err != nil {
		return nil, err
	}

	sel := ptx.FeeSelection
	if !sel.AvailableLevels.Contains(level) {
		return nil, fmt.Errorf("%w: %v not in %v", ErrFeeLevelUnavailable,
			level, sel.OrderedLevels())
	}

	switch {
	case customFee == CustomFeeUnset:

	case level != FeeLevelCustom:
		return nil, fmt.Errorf("%w: custom fee %d given for %v level",
			ErrInvalidCustomFee, customFee, level)

	case customFee <= 0:
		return nil, fmt.Errorf("%w: %d", ErrInvalidCustomFee, customFee)
	}

	if level == sel.SelectedLevel &&
		(customFee == CustomFeeUnset || customFee == sel.CustomAmount) {

		return ptx.Copy(), nil
	}

	next := ptx.Copy()
	next.FeeSelection.SelectedLevel = level
	if customFee != CustomFeeUnset {
		next.FeeSelection.CustomAmount = customFee
	}
	next.ValidationState = resetValidation(ptx.ValidationState)

	next, err := recompute(ctx, next)
	if err != nil {
		return nil, err
	}

	err = e.services.FeeLevels.SetFeeLevel(ctx, e.SourceAsset(), level)
	if err != nil {
		return nil, fmt.Errorf("persist fee level: %w", err)
	}

	log.Debugf("Switched %s fee level from %v to %v", e.SourceAsset(),
		sel.SelectedLevel, level)

	return next, nil
}

// validateAmount assigns the validation state of ptx. Checks run in order:
// invalid amount, insufficient funds, insufficient gas, under the minimum,
// over the maximum. The gas check is skipped when nil.
func validateAmount(ptx *PendingTx,
	hasGas func() (bool, error)) (*PendingTx, error) {

	if err := checkPendingTx(ptx); err != nil {
		return nil, err
	}

	next := ptx.Copy()
	if ptx.ValidationState == ValidationPendingOrdersLimitReached {
		return next, nil
	}

	state, err := amountState(ptx, hasGas)
	if err != nil {
		return nil, err
	}
	next.ValidationState = state

	log.Debugf("Validated %v: %v", ptx.Amount, state)

	return next, nil
}

func amountState(ptx *PendingTx,
	hasGas func() (bool, error)) (ValidationState, error) {

	if !ptx.Amount.IsPositive() {
		return ValidationInvalidAmount, nil
	}

	c, err := ptx.Amount.Cmp(ptx.AvailableBalance)
	if err != nil {
		return 0, err
	}
	if c > 0 {
		return ValidationInsufficientFunds, nil
	}

	if hasGas != nil {
		ok, err := hasGas()
		if err != nil {
			return 0, err
		}
		if !ok {
			return ValidationInsufficientGas, nil
		}
	}

	if state, err := limitState(ptx); err != nil || state != 0 {
		return state, err
	}

	return ValidationCanExecute, nil
}

// limitState returns UnderMinLimit or OverMaxLimit when the amount is out of
// bounds, and zero otherwise.
func limitState(ptx *PendingTx) (ValidationState, error) {
	outOf := func(bound fn.Option[money.Money], sign int) (bool, error) {
		if bound.IsNone() {
			return false, nil
		}

		limit := bound.UnwrapOr(money.Zero(ptx.Amount.Currency()))
		c, err := ptx.Amount.Cmp(limit)
		if err != nil {
			return false, err
		}

		return c == sign, nil
	}

	under, err := outOf(ptx.MinLimit, -1)
	if err != nil {
		return 0, err
	}
	if under {
		return ValidationUnderMinLimit, nil
	}

	over, err := outOf(ptx.MaxLimit, 1)
	if err != nil {
		return 0, err
	}
	if over {
		return ValidationOverMaxLimit, nil
	}

	return 0, nil
}

// checkExecutable rejects a transaction that has not been validated as
// executable.
func checkExecutable(ptx *PendingTx) error {
	if err := checkPendingTx(ptx); err != nil {
		return err
	}

	if ptx.ValidationState != ValidationCanExecute {
		return fmt.Errorf("%w: state is %v", ErrNotExecutable,
			ptx.ValidationState)
	}

	return nil
}

// convertLimit converts a fiat limit into the asset, rounding in the
// direction that keeps the converted bound within the original one.
func convertLimit(ctx context.Context, rates ExchangeRates,
	limit money.Money, asset money.Currency,
	roundUp bool) (money.Money, error) {

	rate, err := rates.Rate(ctx, asset, limit.Currency())
	if err != nil {
		return money.Money{}, fmt.Errorf("rate %s/%s: %w", asset,
			limit.Currency(), err)
	}

	inverse, err := rate.Inverse()
	if err != nil {
		return money.Money{}, err
	}

	converted, err := inverse.Convert(limit)
	if err != nil {
		return money.Money{}, err
	}

	if roundUp {
		return converted.RoundUp(), nil
	}

	return converted.RoundDown(), nil
}
