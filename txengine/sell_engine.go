// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// quoteKey holds the quote a sell flow was priced with.
const quoteKey = "sell.quote"

// SellConfig configures custodial sell engines.
type SellConfig struct {
	Services

	Limits TransferLimitsSource
	Quotes QuoteSource
	Orders SellOrderPlacer
}

// Start binds a sell engine.
func (c *SellConfig) Start(b Binding) (Engine, error) {
	if c.Limits == nil || c.Quotes == nil {
		return nil, fmt.Errorf("%w: limits or quote source",
			ErrMissingDependency)
	}

	base, err := newEngineBase(b, c.Services)
	if err != nil {
		return nil, err
	}

	e := &SellEngine{engineBase: base, cfg: c}
	if err := e.AssertInputsValid(); err != nil {
		return nil, err
	}

	return e, nil
}

// SellEngine sells a custodial crypto balance into fiat. The price is owned
// by the quote source so there is no fee choice.
type SellEngine struct {
	*engineBase

	cfg *SellConfig
}

// A compile-time assertion to ensure that SellEngine implements Engine.
var _ Engine = (*SellEngine)(nil)

// AssertInputsValid checks that a crypto asset is sold into a fiat target.
func (e *SellEngine) AssertInputsValid() error {
	if !e.SourceAsset().IsCrypto() {
		return fmt.Errorf("%w: cannot sell %s", ErrInvalidInputs,
			e.SourceAsset())
	}

	target, ok := e.Target.(FiatTarget)
	if !ok || !target.Fiat.IsFiat() {
		return fmt.Errorf("%w: sell target must be fiat, got %s",
			ErrInvalidInputs, e.Target.Currency())
	}

	return nil
}

func (e *SellEngine) fiat() money.Currency {
	return e.Target.Currency()
}

// InitialiseTx fetches the limits and a quote. Too many open orders yields a
// zeroed transaction in ValidationPendingOrdersLimitReached.
func (e *SellEngine) InitialiseTx(ctx context.Context) (*PendingTx, error) {
	sel := newFeeSelection(fn.None[money.Currency](), FeeLevelNone)
	sel.FeesForLevels[FeeLevelNone] = money.Zero(e.SourceAsset())

	ptx, err := e.initialTx(ctx, sel)
	if err != nil {
		return nil, err
	}

	asset := e.SourceAsset()

	limits, err := e.cfg.Limits.TransferLimits(ctx, asset, e.fiat())
	if errors.Is(err, ErrPendingOrdersLimit) {
		return e.ordersLimitReached(ptx), nil
	}
	if err != nil {
		return nil, fmt.Errorf("transfer limits: %w", err)
	}

	quote, err := e.cfg.Quotes.Quote(ctx, asset, e.fiat())
	if errors.Is(err, ErrPendingOrdersLimit) {
		return e.ordersLimitReached(ptx), nil
	}
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	ptx.EngineState[quoteKey] = quote

	minLimit, err := convertLimit(ctx, e.Rates, limits.Min, asset, true)
	if err != nil {
		return nil, err
	}

	maxLimit, err := convertLimit(ctx, e.Rates, limits.Max, asset, false)
	if err != nil {
		return nil, err
	}

	ptx.MinLimit = fn.Some(minLimit)
	ptx.MaxLimit = fn.Some(maxLimit)

	log.Debugf("Sell %s limits: [%v, %v]", asset, minLimit, maxLimit)

	return ptx, nil
}

// ordersLimitReached returns ptx, whose amounts are all zero, in the pending
// orders limit state.
func (e *SellEngine) ordersLimitReached(ptx *PendingTx) *PendingTx {
	log.Infof("Pending orders limit reached selling %s", e.SourceAsset())

	ptx.ValidationState = ValidationPendingOrdersLimitReached

	return ptx
}

// UpdateAmount mirrors the custodial balance. There is no fee.
func (e *SellEngine) UpdateAmount(ctx context.Context, amount money.Money,
	ptx *PendingTx) (*PendingTx, error) {

	next, err := e.amountUpdate(amount, ptx)
	if err != nil {
		return nil, err
	}

	balance, err := e.Source.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}

	next.TotalBalance = balance.Total
	next.AvailableBalance = balance.Actionable
	next.FeeAmount = money.Zero(e.SourceAsset())
	next.FeeForFullAvailable = next.FeeAmount

	return next, nil
}

// UpdateFeeLevel only accepts FeeLevelNone, which is always selected.
func (e *SellEngine) UpdateFeeLevel(ctx context.Context, ptx *PendingTx,
	level FeeLevel, customFee int64) (*PendingTx, error) {

	return e.updateFeeLevel(ctx, ptx, level, customFee,
		func(_ context.Context, ptx *PendingTx) (*PendingTx, error) {
			return ptx, nil
		},
	)
}

// BuildConfirmations lists the source, target, sale, fee and total.
func (e *SellEngine) BuildConfirmations(_ context.Context,
	ptx *PendingTx) (*PendingTx, error) {

	if err := checkPendingTx(ptx); err != nil {
		return nil, err
	}

	confs := []Confirmation{
		ConfirmFrom{Label: e.Source.Label()},
		ConfirmTo{Label: e.Target.Label()},
	}

	quote := engineStateValue[Quote](ptx, quoteKey)
	if quote.IsSome() {
		price := quote.UnwrapOr(Quote{}).Price

		fiatValue, err := price.Convert(ptx.Amount)
		if err != nil {
			return nil, err
		}

		confs = append(confs, ConfirmSale{
			Amount:    ptx.Amount,
			FiatValue: fiatValue.RoundDown(),
		})
	} else {
		confs = append(confs, ConfirmAmount{Amount: ptx.Amount})
	}

	confs = append(confs,
		ConfirmNetworkFee{Fee: ptx.FeeAmount},
		ConfirmTotal{Amount: ptx.Amount, Fee: ptx.FeeAmount},
	)

	next := ptx.Copy()
	next.Confirmations = confs

	return next, nil
}

// Validate assigns the validation state.
func (e *SellEngine) Validate(_ context.Context,
	ptx *PendingTx) (*PendingTx, error) {

	return validateAmount(ptx, nil)
}

// Execute places the sell order with a fresh idempotency key.
func (e *SellEngine) Execute(ctx context.Context,
	ptx *PendingTx) (*TxResult, error) {

	if err := checkExecutable(ptx); err != nil {
		return nil, err
	}

	if e.cfg.Orders == nil {
		return nil, fmt.Errorf("%w: order placer", ErrMissingDependency)
	}

	order := SellOrder{
		ID:     uuid.NewString(),
		Source: e.Source,
		Amount: ptx.Amount,
		Fiat:   e.fiat(),
	}
	engineStateValue[Quote](ptx, quoteKey).WhenSome(func(q Quote) {
		order.QuoteID = q.ID
	})

	if err := e.cfg.Orders.PlaceSellOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("place sell order: %w", err)
	}

	log.Infof("Placed sell order %s for %v", order.ID, ptx.Amount)

	return &TxResult{
		ID:     order.ID,
		Amount: ptx.Amount,
		Fee:    ptx.FeeAmount,
	}, nil
}
