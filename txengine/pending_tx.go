// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txengine

import (
	"maps"
	"slices"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ValidationState is the outcome of validating a pending transaction. It is
// the only way an engine reports that a transaction cannot proceed yet.
type ValidationState uint8

const (
	// ValidationUninitialised means the transaction has not been
	// validated since it was last changed.
	ValidationUninitialised ValidationState = iota

	// ValidationCanExecute means the transaction can be executed.
	ValidationCanExecute

	// ValidationInvalidAmount means the amount is zero or negative.
	ValidationInvalidAmount

	// ValidationInsufficientFunds means the amount, plus any fee paid in
	// the same asset, exceeds the balance.
	ValidationInsufficientFunds

	// ValidationInsufficientGas means the account cannot pay the network
	// fee, which is denominated in a different asset.
	ValidationInsufficientGas

	// ValidationUnderMinLimit means the amount is below the minimum.
	ValidationUnderMinLimit

	// ValidationOverMaxLimit means the amount is above the maximum.
	ValidationOverMaxLimit

	// ValidationPendingOrdersLimitReached means the user has too many
	// open orders for a new one to be placed.
	ValidationPendingOrdersLimitReached
)

// String returns the string representation of a validation state.
func (v ValidationState) String() string {
	switch v {
	case ValidationUninitialised:
		return "uninitialised"

	case ValidationCanExecute:
		return "can execute"

	case ValidationInvalidAmount:
		return "invalid amount"

	case ValidationInsufficientFunds:
		return "insufficient funds"

	case ValidationInsufficientGas:
		return "insufficient gas"

	case ValidationUnderMinLimit:
		return "under min limit"

	case ValidationOverMaxLimit:
		return "over max limit"

	case ValidationPendingOrdersLimitReached:
		return "pending orders limit reached"

	default:
		return "unknown validation state"
	}
}

// PendingTx is the record threaded through every step of a transaction flow.
// It is never mutated in place: each step returns a new value and the caller
// replaces the one it holds.
type PendingTx struct {
	// Amount is the amount the user wants to move.
	Amount money.Money

	// TotalBalance is the full balance of the source account.
	TotalBalance money.Money

	// AvailableBalance is what can be moved once fees are paid.
	AvailableBalance money.Money

	// FeeForFullAvailable is the fee of moving the whole balance.
	FeeForFullAvailable money.Money

	// FeeAmount is the fee of moving Amount.
	FeeAmount money.Money

	// SelectedFiat is the fiat currency amounts are displayed in.
	SelectedFiat money.Currency

	FeeSelection FeeSelection

	// Confirmations are the lines shown to the user before execution.
	Confirmations []Confirmation

	MinLimit fn.Option[money.Money]
	MaxLimit fn.Option[money.Money]

	ValidationState ValidationState

	// EngineState is scratch space owned by the engine that produced the
	// transaction. Values stored in it are never mutated.
	EngineState map[string]any
}

// Copy returns a copy of the pending transaction that shares no mutable
// state with the original.
func (p *PendingTx) Copy() *PendingTx {
	cp := *p
	cp.FeeSelection = p.FeeSelection.Copy()
	cp.Confirmations = slices.Clone(p.Confirmations)
	cp.EngineState = maps.Clone(p.EngineState)

	if cp.EngineState == nil {
		cp.EngineState = make(map[string]any)
	}

	return &cp
}

// zeroPendingTx returns a pending transaction with every amount at the zero
// of asset.
func zeroPendingTx(asset money.Currency, fiat money.Currency,
	sel FeeSelection) *PendingTx {

	zero := money.Zero(asset)

	return &PendingTx{
		Amount:              zero,
		TotalBalance:        zero,
		AvailableBalance:    zero,
		FeeForFullAvailable: zero,
		FeeAmount:           zero,
		SelectedFiat:        fiat,
		FeeSelection:        sel,
		Confirmations:       []Confirmation{},
		MinLimit:            fn.None[money.Money](),
		MaxLimit:            fn.None[money.Money](),
		ValidationState:     ValidationUninitialised,
		EngineState:         make(map[string]any),
	}
}

// engineStateValue returns the engine state value stored under key when it
// has the requested type.
func engineStateValue[T any](ptx *PendingTx, key string) fn.Option[T] {
	v, ok := ptx.EngineState[key]
	if !ok {
		return fn.None[T]()
	}

	typed, ok := v.(T)
	if !ok {
		return fn.None[T]()
	}

	return fn.Some(typed)
}
