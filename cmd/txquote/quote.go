package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/txengine/chain"
	"github.com/btcsuite/txengine/config"
	"github.com/btcsuite/txengine/pkg/feerate"
	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/txengine"
	"github.com/btcsuite/txengine/txengine/coinselect"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// source is the funding account of a quote and the engine factory pricing
// it.
type source struct {
	account txengine.Account
	factory txengine.Factory
	close   func()
}

// newSource connects to the node of the configured asset.
func newSource(ctx context.Context, cfg *config.Config,
	services txengine.Services) (*source, error) {

	if cfg.SelectedAsset() == money.ETH {
		return newETHSource(ctx, cfg, services)
	}

	return newBTCSource(cfg, services)
}

func newBTCSource(cfg *config.Config,
	services txengine.Services) (*source, error) {

	node, err := chain.NewBTCNode(&rpcclient.ConnConfig{
		Host:       cfg.BTC.RPCHost,
		User:       cfg.BTC.RPCUser,
		Pass:       cfg.BTC.RPCPass,
		DisableTLS: cfg.BTC.DisableTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.BTC.RPCHost, err)
	}

	addrs := make([]btcutil.Address, 0, len(cfg.BTC.Watch))
	for _, s := range cfg.BTC.Watch {
		addr, err := btcutil.DecodeAddress(s, cfg.Params())
		if err != nil {
			node.Shutdown()
			return nil, fmt.Errorf("watch address %q: %w", s, err)
		}

		addrs = append(addrs, addr)
	}

	asset := cfg.SelectedAsset()
	account := chain.NewWatchAccount(
		strings.Join(cfg.BTC.Watch, ","), asset, node, cfg.BTC.MinConf,
		addrs...,
	)

	fallback := txengine.UTXOFeeOptions{
		Regular: feerate.NewSatPerKVByte(
			btcutil.Amount(cfg.BTC.FallbackFee),
		),
		Priority: feerate.NewSatPerKVByte(
			btcutil.Amount(cfg.BTC.FallbackPriorityFee),
		),
	}

	factory := &txengine.UTXOConfig{
		Services:    services,
		ChainParams: cfg.Params(),
		AllowCustom: cfg.AllowCustom,
		MaxFeeRate: fn.Some(feerate.NewSatPerVByte(
			btcutil.Amount(cfg.MaxFeeRate),
		)),
		FeeSource: chain.NewBTCFeeSource(node, fallback),
		Unspent:   account.Unspent(),
		Selector:  coinselect.NewSelector(nil),
	}

	return &source{
		account: account,
		factory: factory,
		close:   node.Shutdown,
	}, nil
}

func newETHSource(ctx context.Context, cfg *config.Config,
	services txengine.Services) (*source, error) {

	if !common.IsHexAddress(cfg.ETH.From) {
		return nil, fmt.Errorf("invalid from address %q", cfg.ETH.From)
	}

	client, err := chain.DialETH(ctx, cfg.ETH.RPCURL)
	if err != nil {
		return nil, err
	}

	multiplier, maxGwei := cfg.GasPriority()
	gasCfg := chain.DefaultGasFeeSourceConfig()
	gasCfg.PriorityMultiplier = multiplier
	gasCfg.MaxGasPrice = feerate.NewGwei(maxGwei)

	return &source{
		account: chain.NewETHAccount(
			cfg.ETH.From, common.HexToAddress(cfg.ETH.From), client,
		),
		factory: &txengine.AccountConfig{
			Services:  services,
			FeeSource: chain.NewGasFeeSource(client, gasCfg),
		},
		close: client.Close,
	}, nil
}

// quote runs a flow up to validation.
func quote(ctx context.Context, engine txengine.Engine, amount money.Money,
	level txengine.FeeLevel, customFee int64) (*txengine.PendingTx, error) {

	ptx, err := engine.InitialiseTx(ctx)
	if err != nil {
		return nil, err
	}

	ptx, err = engine.UpdateAmount(ctx, amount, ptx)
	if err != nil {
		return nil, err
	}

	if level != txengine.FeeLevelNone {
		ptx, err = engine.UpdateFeeLevel(ctx, ptx, level, customFee)
		if err != nil {
			return nil, err
		}
	}

	ptx, err = engine.BuildConfirmations(ctx, ptx)
	if err != nil {
		return nil, err
	}

	return engine.Validate(ctx, ptx)
}

// printQuote writes the confirmation lines and the validation state. Amounts
// are followed by their value in the display currency when a rate is known.
func printQuote(ctx context.Context, w io.Writer, ptx *txengine.PendingTx,
	rates txengine.ExchangeRates) error {

	fiat := func(m money.Money) string {
		rate, err := rates.Rate(ctx, m.Currency(), ptx.SelectedFiat)
		if err != nil {
			mainLog.Debugf("No %s rate: %v", m.Currency(), err)
			return ""
		}

		value, err := rate.Convert(m)
		if err != nil {
			return ""
		}

		return fmt.Sprintf(" (%v)", value.RoundDown())
	}

	lines := make([]string, 0, len(ptx.Confirmations)+3)
	for _, c := range ptx.Confirmations {
		switch c := c.(type) {
		case txengine.ConfirmFrom:
			lines = append(lines, "From: "+c.Label)

		case txengine.ConfirmTo:
			lines = append(lines, "To: "+c.Label)

		case txengine.ConfirmAmount:
			lines = append(lines, fmt.Sprintf("Amount: %v%s",
				c.Amount, fiat(c.Amount)))

		case txengine.ConfirmFeeSelection:
			for _, level := range c.Selection.OrderedLevels() {
				marker := " "
				if level == c.Selection.SelectedLevel {
					marker = "*"
				}

				lines = append(lines, fmt.Sprintf(
					"Fee %s %s: %v", marker, level,
					c.Selection.FeesForLevels[level],
				))
			}

		case txengine.ConfirmNetworkFee:
			lines = append(lines, fmt.Sprintf("Network fee: %v%s",
				c.Fee, fiat(c.Fee)))

		case txengine.ConfirmTotal:
			total := fmt.Sprintf("Total: %v", c.Amount)
			if c.Fee.Currency() != c.Amount.Currency() {
				total += fmt.Sprintf(" + %v", c.Fee)
			}
			lines = append(lines, total)

		case txengine.ConfirmSale:
			lines = append(lines, fmt.Sprintf("Sale: %v for %v",
				c.Amount, c.FiatValue))
		}
	}

	lines = append(lines,
		fmt.Sprintf("Available: %v", ptx.AvailableBalance),
		fmt.Sprintf("Status: %v", ptx.ValidationState),
	)

	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")

	return err
}
