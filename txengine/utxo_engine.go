// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/txengine/pkg/feerate"
	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/txengine/coinselect"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// DefaultMaxFeeRate is the largest custom fee rate accepted for UTXO assets.
//
//nolint:mnd // 1000 sat/vb.
var DefaultMaxFeeRate = feerate.NewSatPerVByte(1000)

// UTXOLevels returns the fee levels offered for a UTXO asset. Bitcoin Cash
// has no tiered fee market and only offers the regular level. Custom is added
// when allowCustom is set.
func UTXOLevels(asset money.Currency, allowCustom bool) []FeeLevel {
	levels := []FeeLevel{FeeLevelRegular}
	if asset != money.BCH {
		levels = append(levels, FeeLevelPriority)
	}

	if allowCustom {
		levels = append(levels, FeeLevelCustom)
	}

	return levels
}

// UTXOConfig configures engines for UTXO assets.
type UTXOConfig struct {
	Services

	// ChainParams are the parameters of the network target addresses
	// must belong to.
	ChainParams *chaincfg.Params

	// AllowCustom offers the custom fee level.
	AllowCustom bool

	// MaxFeeRate caps custom fee rates. DefaultMaxFeeRate is used when
	// unset.
	MaxFeeRate fn.Option[feerate.SatPerVByte]

	FeeSource UTXOFeeSource
	Unspent   UnspentSource
	Selector  CoinSelector
	Change    ChangeSource
	Publisher PsbtPublisher
}

// Start binds a UTXO engine.
func (c *UTXOConfig) Start(b Binding) (Engine, error) {
	switch {
	case c.ChainParams == nil:
		return nil, fmt.Errorf("%w: chain params", ErrMissingDependency)

	case c.FeeSource == nil || c.Unspent == nil || c.Selector == nil:
		return nil, fmt.Errorf("%w: utxo fee, unspent or selector",
			ErrMissingDependency)
	}

	base, err := newEngineBase(b, c.Services)
	if err != nil {
		return nil, err
	}

	e := &UTXOEngine{engineBase: base, cfg: c}
	if err := e.AssertInputsValid(); err != nil {
		return nil, err
	}

	e.pkScript, err = e.targetScript()
	if err != nil {
		return nil, err
	}

	return e, nil
}

// UTXOEngine prices and sends on-chain transactions for UTXO assets.
type UTXOEngine struct {
	*engineBase

	cfg *UTXOConfig

	// pkScript is the output script of the target address.
	pkScript []byte
}

// A compile-time assertion to ensure that UTXOEngine implements Engine.
var _ Engine = (*UTXOEngine)(nil)

// AssertInputsValid checks that the target is an address of the source asset
// on the configured network.
func (e *UTXOEngine) AssertInputsValid() error {
	if err := e.assertSameAsset(); err != nil {
		return err
	}

	if e.SourceAsset().IsToken() || !e.SourceAsset().IsCrypto() {
		return fmt.Errorf("%w: %s is not a utxo asset",
			ErrInvalidInputs, e.SourceAsset())
	}

	_, err := e.targetScript()

	return err
}

// targetScript decodes the target address into its output script.
func (e *UTXOEngine) targetScript() ([]byte, error) {
	target, ok := e.Target.(AddressTarget)
	if !ok {
		return nil, fmt.Errorf("%w: target %T is not an address",
			ErrInvalidInputs, e.Target)
	}

	addr, err := btcutil.DecodeAddress(target.Address, e.cfg.ChainParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInputs, err)
	}

	if !addr.IsForNet(e.cfg.ChainParams) {
		return nil, fmt.Errorf("%w: address %s is not for %s",
			ErrInvalidInputs, target.Address, e.cfg.ChainParams.Name)
	}

	return txscript.PayToAddrScript(addr)
}

func (e *UTXOEngine) maxFeeRate() feerate.SatPerVByte {
	return e.cfg.MaxFeeRate.UnwrapOr(DefaultMaxFeeRate)
}

// InitialiseTx returns the zeroed pending transaction. The minimum is the
// dust threshold of the target output.
func (e *UTXOEngine) InitialiseTx(ctx context.Context) (*PendingTx, error) {
	sel := newFeeSelection(
		fn.Some(e.SourceAsset()),
		UTXOLevels(e.SourceAsset(), e.cfg.AllowCustom)...,
	)

	ptx, err := e.initialTx(ctx, sel)
	if err != nil {
		return nil, err
	}

	dust := coinselect.DustThreshold(e.pkScript)
	ptx.MinLimit = fn.Some(money.FromMinor(int64(dust), e.SourceAsset()))

	return ptx, nil
}

// UpdateAmount recomputes balances and fees for a new amount.
func (e *UTXOEngine) UpdateAmount(ctx context.Context, amount money.Money,
	ptx *PendingTx) (*PendingTx, error) {

	next, err := e.amountUpdate(amount, ptx)
	if err != nil {
		return nil, err
	}

	return e.recompute(ctx, next)
}

// UpdateFeeLevel switches the fee level. The custom fee is in sat/vb.
func (e *UTXOEngine) UpdateFeeLevel(ctx context.Context, ptx *PendingTx,
	level FeeLevel, customFee int64) (*PendingTx, error) {

	// An unavailable custom level is rejected by updateFeeLevel, not here.
	if ptx != nil && level == FeeLevelCustom && customFee > 0 &&
		ptx.FeeSelection.AvailableLevels.Contains(level) {

		maxFee := e.maxFeeRate().FeeForVByte(feerate.NewVByte(1))
		if customFee > int64(maxFee) {
			return nil, fmt.Errorf("%w: %d sat/vb exceeds %v",
				ErrFeeRateTooLarge, customFee, e.maxFeeRate())
		}
	}

	return e.updateFeeLevel(ctx, ptx, level, customFee, e.recompute)
}

// rateFor returns the fee rate of a level. An unset custom fee falls back to
// the regular rate.
func (e *UTXOEngine) rateFor(level FeeLevel, opts UTXOFeeOptions,
	customFee int64) feerate.SatPerKVByte {

	switch level {
	case FeeLevelPriority:
		return opts.Priority

	case FeeLevelCustom:
		if customFee == CustomFeeUnset {
			return opts.Regular
		}

		return feerate.NewSatPerVByte(
			btcutil.Amount(customFee),
		).ToSatPerKVByte()

	default:
		return opts.Regular
	}
}

// satoshis returns m in satoshis. Amounts outside the money supply, or too
// large for an int64, map to MaxSatoshi+1 so they can never be funded.
func satoshis(m money.Money) btcutil.Amount {
	minor := m.Minor()
	if !minor.IsInt64() || minor.Sign() < 0 ||
		minor.Int64() > btcutil.MaxSatoshi {

		return btcutil.MaxSatoshi + 1
	}

	return btcutil.Amount(minor.Int64())
}

// utxoQuote is the fee of a spend at one fee rate.
type utxoQuote struct {
	fee       btcutil.Amount
	sweepFee  btcutil.Amount
	available btcutil.Amount
}

// quote prices spending amount out of coins at the given rate. A zero amount
// costs nothing. An amount the coins cannot fund, or one beyond the money
// supply, is priced as a sweep.
func (e *UTXOEngine) quote(coins []coinselect.Coin, amount, total btcutil.Amount,
	rate feerate.SatPerKVByte) (*utxoQuote, error) {

	feeSatPerKb := rate.Amount()

	sweep, err := e.cfg.Selector.MaxSpendable(coins, e.pkScript, feeSatPerKb)
	if err != nil {
		return nil, fmt.Errorf("max spendable: %w", err)
	}

	q := &utxoQuote{
		sweepFee:  sweep.Fee,
		available: total - sweep.Fee,
	}

	switch {
	case amount == 0:
		return q, nil

	case amount > btcutil.MaxSatoshi:
		log.Debugf("Amount %v exceeds the money supply, pricing as "+
			"sweep", amount)

		q.fee = sweep.Fee

		return q, nil
	}

	sel, err := e.cfg.Selector.Select(
		coins, wire.NewTxOut(int64(amount), e.pkScript), feeSatPerKb,
		coinselect.EstimationChangeSource(),
	)
	switch {
	case errors.Is(err, coinselect.ErrInsufficientFunds):
		log.Debugf("Cannot fund %v at %v, pricing as sweep", amount,
			rate)

		q.fee = sweep.Fee

	case err != nil:
		return nil, fmt.Errorf("coin selection: %w", err)

	default:
		q.fee = sel.Fee
		q.available = total - sel.Fee
	}

	return q, nil
}

// recompute fills in the balances and fees of ptx for its amount and level.
func (e *UTXOEngine) recompute(ctx context.Context,
	ptx *PendingTx) (*PendingTx, error) {

	asset := e.SourceAsset()

	opts, err := e.cfg.FeeSource.FeeOptions(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("fee options: %w", err)
	}

	coins, err := e.cfg.Unspent.Unspent(ctx, e.Source)
	if err != nil {
		return nil, fmt.Errorf("unspent outputs: %w", err)
	}

	balance, err := e.Source.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}

	total := btcutil.Amount(balance.Total.Minor().Int64())
	amount := satoshis(ptx.Amount)

	next := ptx.Copy()
	next.TotalBalance = balance.Total
	next.FeeSelection.FeesForLevels = make(map[FeeLevel]money.Money)

	for _, level := range next.FeeSelection.OrderedLevels() {
		rate := e.rateFor(level, opts, next.FeeSelection.CustomAmount)

		q, err := e.quote(coins, amount, total, rate)
		if err != nil {
			return nil, err
		}

		next.FeeSelection.FeesForLevels[level] = money.FromMinor(
			int64(q.fee), asset,
		)

		if level != next.FeeSelection.SelectedLevel {
			continue
		}

		next.FeeAmount = money.FromMinor(int64(q.fee), asset)
		next.FeeForFullAvailable = money.FromMinor(
			int64(q.sweepFee), asset,
		)
		next.AvailableBalance = money.FromMinor(
			int64(q.available), asset,
		).ClampZero()
	}

	log.Tracef("Recomputed %s tx: %v", asset, newLogClosure(func() string {
		return spew.Sdump(next.FeeSelection.FeesForLevels)
	}))

	return next, nil
}

// BuildConfirmations lists the source, target, amount, fee choice, fee and
// total.
func (e *UTXOEngine) BuildConfirmations(_ context.Context,
	ptx *PendingTx) (*PendingTx, error) {

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
		ConfirmAmount{Amount: ptx.Amount},
		ConfirmFeeSelection{Selection: ptx.FeeSelection.Copy()},
		ConfirmNetworkFee{Fee: ptx.FeeAmount},
		ConfirmTotal{Amount: total, Fee: ptx.FeeAmount},
	}

	return next, nil
}

// Validate assigns the validation state.
func (e *UTXOEngine) Validate(_ context.Context,
	ptx *PendingTx) (*PendingTx, error) {

	return validateAmount(ptx, nil)
}

// Execute funds the transaction with a real change script and hands the
// unsigned PSBT to the publisher.
func (e *UTXOEngine) Execute(ctx context.Context,
	ptx *PendingTx) (*TxResult, error) {

	if err := checkExecutable(ptx); err != nil {
		return nil, err
	}

	amount := satoshis(ptx.Amount)
	if amount > btcutil.MaxSatoshi {
		return nil, fmt.Errorf("%w: amount %v exceeds the money supply",
			ErrNotExecutable, ptx.Amount)
	}

	if e.cfg.Change == nil || e.cfg.Publisher == nil {
		return nil, fmt.Errorf("%w: change source or publisher",
			ErrMissingDependency)
	}

	opts, err := e.cfg.FeeSource.FeeOptions(ctx, e.SourceAsset())
	if err != nil {
		return nil, fmt.Errorf("fee options: %w", err)
	}

	coins, err := e.cfg.Unspent.Unspent(ctx, e.Source)
	if err != nil {
		return nil, fmt.Errorf("unspent outputs: %w", err)
	}

	change, err := e.cfg.Change.ChangeSource(ctx, e.Source)
	if err != nil {
		return nil, fmt.Errorf("change source: %w", err)
	}

	sel := ptx.FeeSelection
	rate := e.rateFor(sel.SelectedLevel, opts, sel.CustomAmount)
	selection, err := e.cfg.Selector.Select(
		coins, wire.NewTxOut(int64(amount), e.pkScript), rate.Amount(),
		change,
	)
	if err != nil {
		return nil, fmt.Errorf("coin selection: %w", err)
	}

	if selection.Tx.ChangeIndex >= 0 {
		selection.Tx.RandomizeChangePosition()
	}

	packet, err := psbt.NewFromUnsignedTx(selection.Tx.Tx)
	if err != nil {
		return nil, fmt.Errorf("create psbt: %w", err)
	}

	for i, script := range selection.Tx.PrevScripts {
		if !txscript.IsWitnessProgram(script) {
			continue
		}

		packet.Inputs[i].WitnessUtxo = wire.NewTxOut(
			int64(selection.Tx.PrevInputValues[i]), script,
		)
	}

	txid, err := e.cfg.Publisher.PublishPsbt(ctx, e.Source, packet)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	log.Infof("Published %v to %s with fee %v: %s", ptx.Amount,
		e.Target.Label(), selection.Fee, txid)

	return &TxResult{
		ID:     txid,
		Amount: ptx.Amount,
		Fee:    money.FromMinor(int64(selection.Fee), e.SourceAsset()),
	}, nil
}
