// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command txquote quotes the fee and spendable balance of a BTC, BCH or ETH
// transfer against live nodes and remembers the chosen fee level.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/btcsuite/txengine/chain"
	"github.com/btcsuite/txengine/config"
	"github.com/btcsuite/txengine/prefstore"
	"github.com/btcsuite/txengine/txengine"
	flags "github.com/jessevdk/go-flags"
)

// version is the txquote version.
const version = "0.1.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Println("txquote version", version)
		return nil
	}

	err = initLogRotator(
		cfg.LogFile(), cfg.MaxLogFileSize, cfg.MaxLogFiles,
	)
	if err != nil {
		return err
	}
	defer closeLogRotator()

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	store, err := prefstore.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return fmt.Errorf("open preference store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			mainLog.Errorf("Unable to close preference store: %v", err)
		}
	}()

	fetcher, err := newStaticRates(cfg.FixedRates())
	if err != nil {
		return err
	}

	rates := chain.NewRateCache(chain.RateCacheConfig{Fetcher: fetcher})
	if err := rates.Start(); err != nil {
		return err
	}
	defer func() { _ = rates.Stop() }()

	services := txengine.Services{
		FeeLevels: store,
		Display:   fixedDisplay(cfg.FiatCurrency()),
	}

	src, err := newSource(ctx, cfg, services)
	if err != nil {
		return err
	}
	defer src.close()

	mainLog.Infof("Quoting %v from %s to %s", cfg.SendAmount(),
		src.account.Label(), cfg.Address)

	engine, err := src.factory.Start(txengine.Binding{
		Source: src.account,
		Target: txengine.AddressTarget{
			Address: cfg.Address,
			Asset:   cfg.SelectedAsset(),
		},
		Rates: rates,
	})
	if err != nil {
		return err
	}

	ptx, err := quote(
		ctx, engine, cfg.SendAmount(), cfg.SelectedFeeLevel(),
		cfg.CustomFeeAmount(),
	)
	if err != nil {
		return err
	}

	return printQuote(ctx, os.Stdout, ptx, rates)
}
