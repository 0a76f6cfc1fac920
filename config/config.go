// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config loads the settings of the txquote command from flags and an
// optional ini file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/prefstore"
	"github.com/btcsuite/txengine/txengine"
	flags "github.com/jessevdk/go-flags"
	"github.com/shopspring/decimal"
)

const (
	defaultConfigFilename = "txquote.conf"
	defaultLogFilename    = "txquote.log"
	defaultPrefsFilename  = "prefs.db"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
)

var (
	// DefaultAppDir is the application data directory.
	DefaultAppDir = btcutil.AppDataDir("txquote", false)

	defaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(DefaultAppDir, defaultLogDirname)

	// ErrInvalidConfig is returned when the loaded settings are
	// inconsistent.
	ErrInvalidConfig = errors.New("invalid config")
)

// BTCOptions configure the bitcoind or btcd RPC endpoint.
type BTCOptions struct {
	RPCHost    string `long:"rpchost" description:"host:port of the node RPC server"`
	RPCUser    string `long:"rpcuser" description:"RPC username"`
	RPCPass    string `long:"rpcpass" default-mask:"-" description:"RPC password"`
	DisableTLS bool   `long:"notls" description:"Disable TLS for the RPC connection"`

	MinConf int `long:"minconf" description:"Confirmations an output needs to be spent"`

	FallbackFee         int64 `long:"fallbackfee" description:"Regular fee rate in sat/kvB used when the node has no estimate"`
	FallbackPriorityFee int64 `long:"fallbackpriorityfee" description:"Priority fee rate in sat/kvB used when the node has no estimate"`

	Watch []string `long:"watch" description:"Address funding the quote, may be given multiple times"`
}

// ETHOptions configure the ethereum JSON-RPC endpoint.
type ETHOptions struct {
	RPCURL string `long:"rpcurl" description:"URL of the JSON-RPC endpoint"`
	From   string `long:"from" description:"Address funding the quote"`

	MaxGasPrice        int64  `long:"maxgasprice" description:"Cap on gas prices in gwei"`
	PriorityMultiplier string `long:"prioritymultiplier" description:"Factor applied to the suggested gas price for the priority level"`
}

// StoreOptions select where fee level preferences are kept.
type StoreOptions struct {
	Backend   string `long:"backend" choice:"memory" choice:"bdb" choice:"sqlite" choice:"postgres" choice:"redis" description:"Preference store backend"`
	Path      string `long:"path" description:"Database file of the bdb and sqlite backends"`
	DSN       string `long:"dsn" default-mask:"-" description:"Postgres connection string"`
	RedisAddr string `long:"redisaddr" description:"host:port of the redis server"`
}

// Config is the txquote configuration.
type Config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}, or <subsystem>=<level>,..."`
	LogDir      string `long:"logdir" description:"Directory to log output"`

	MaxLogFiles    int `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int `long:"maxlogfilesize" description:"Maximum logfile size in MB"`

	Network string `long:"network" choice:"mainnet" choice:"testnet3" choice:"regtest" choice:"signet" description:"Bitcoin network"`

	Asset       string `long:"asset" choice:"BTC" choice:"BCH" choice:"ETH" description:"Asset to quote"`
	Amount      string `long:"amount" description:"Amount to send, in whole units of the asset"`
	Address     string `long:"address" description:"Destination address"`
	FeeLevel    string `long:"feelevel" description:"Fee level to select {regular, priority, custom}"`
	CustomFee   int64  `long:"customfee" description:"Custom fee rate in sat/vB"`
	AllowCustom bool   `long:"allowcustom" description:"Offer the custom fee level"`
	MaxFeeRate  int64  `long:"maxfeerate" description:"Largest custom fee rate accepted in sat/vB"`
	Fiat        string `long:"fiat" description:"Fiat currency amounts are displayed in"`

	Rates []string `long:"rate" description:"Exchange rate as FROM:TO:PRICE, may be given multiple times"`

	BTC   BTCOptions   `group:"Bitcoin" namespace:"btc"`
	ETH   ETHOptions   `group:"Ethereum" namespace:"eth"`
	Store StoreOptions `group:"Preferences" namespace:"store"`

	// Derived settings.
	params        *chaincfg.Params
	feeLevel      txengine.FeeLevel
	asset         money.Currency
	amount        money.Money
	rates         []money.Rate
	gasMultiplier decimal.Decimal
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ConfigFile:     defaultConfigFile,
		DebugLevel:     defaultLogLevel,
		LogDir:         defaultLogDir,
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		Network:        "mainnet",
		Asset:          money.BTC.Code,
		Amount:         "0",
		MaxFeeRate:     1000,
		Fiat:           money.USD.Code,
		BTC: BTCOptions{
			RPCHost:             "localhost:8332",
			MinConf:             1,
			FallbackFee:         10_000,
			FallbackPriorityFee: 20_000,
		},
		ETH: ETHOptions{
			RPCURL:             "http://localhost:8545",
			MaxGasPrice:        100,
			PriorityMultiplier: "1.25",
		},
		Store: StoreOptions{
			Backend: prefstore.BackendKV,
			Path:    filepath.Join(DefaultAppDir, defaultPrefsFilename),
		},
	}
}

// Load parses args on top of the defaults and the config file. A missing
// default config file is not an error.
func Load(args []string) (*Config, error) {
	// Pre-parse to find the config file and the version flag.
	preCfg := DefaultConfig()
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	if preCfg.ShowVersion {
		return &preCfg, nil
	}

	cfg := DefaultConfig()
	parser := flags.NewParser(&cfg, flags.Default&^flags.PrintErrors)

	err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) ||
			preCfg.ConfigFile != defaultConfigFile {

			return nil, fmt.Errorf("config file %s: %w",
				preCfg.ConfigFile, err)
		}
	}

	// Flags take precedence over the config file.
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks the settings and fills in the derived ones.
func (c *Config) validate() error {
	var err error

	c.params, err = networkParams(c.Network)
	if err != nil {
		return err
	}

	c.asset, err = parseAsset(c.Asset)
	if err != nil {
		return err
	}

	c.amount, err = money.Parse(c.Amount, c.asset)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", ErrInvalidConfig,
			c.Amount)
	}

	if err := c.validateFee(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateChain(); err != nil {
		return err
	}

	c.rates = make([]money.Rate, 0, len(c.Rates))
	for _, s := range c.Rates {
		rate, err := parseRate(s)
		if err != nil {
			return err
		}

		c.rates = append(c.rates, rate)
	}

	return nil
}

// validateFee checks the fee level and the custom fee caps.
func (c *Config) validateFee() error {
	c.feeLevel = txengine.FeeLevelNone
	if c.FeeLevel != "" {
		level, err := txengine.ParseFeeLevel(c.FeeLevel)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}

		c.feeLevel = level
	}

	if c.MaxFeeRate <= 0 {
		return fmt.Errorf("%w: maxfeerate must be positive",
			ErrInvalidConfig)
	}

	switch {
	case c.feeLevel == txengine.FeeLevelCustom && !c.AllowCustom:
		return fmt.Errorf("%w: custom fee level requires allowcustom",
			ErrInvalidConfig)

	case c.feeLevel == txengine.FeeLevelCustom && c.CustomFee <= 0:
		return fmt.Errorf("%w: custom fee level requires a positive "+
			"customfee", ErrInvalidConfig)

	case c.feeLevel != txengine.FeeLevelCustom && c.CustomFee != 0:
		return fmt.Errorf("%w: customfee given for %v fee level",
			ErrInvalidConfig, c.feeLevel)

	case c.CustomFee > c.MaxFeeRate:
		return fmt.Errorf("%w: customfee %d exceeds maxfeerate %d",
			ErrInvalidConfig, c.CustomFee, c.MaxFeeRate)
	}

	if c.asset == money.ETH && c.feeLevel == txengine.FeeLevelCustom {
		return fmt.Errorf("%w: custom fee level is not offered for %s",
			ErrInvalidConfig, c.asset)
	}

	return nil
}

// validateStore checks that the chosen backend has what it needs.
func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case prefstore.BackendKV, prefstore.BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: %s store requires a path",
				ErrInvalidConfig, c.Store.Backend)
		}

		c.Store.Path = cleanAndExpandPath(c.Store.Path)

	case prefstore.BackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: postgres store requires a dsn",
				ErrInvalidConfig)
		}

	case prefstore.BackendRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("%w: redis store requires an address",
				ErrInvalidConfig)
		}
	}

	return nil
}

// validateChain checks the settings of the endpoint used by the asset.
func (c *Config) validateChain() error {
	if c.asset == money.ETH {
		if c.ETH.MaxGasPrice <= 0 {
			return fmt.Errorf("%w: maxgasprice must be positive",
				ErrInvalidConfig)
		}

		multiplier, err := decimal.NewFromString(
			c.ETH.PriorityMultiplier,
		)
		if err != nil || multiplier.LessThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: prioritymultiplier %q must be a "+
				"number of at least 1", ErrInvalidConfig,
				c.ETH.PriorityMultiplier)
		}

		c.gasMultiplier = multiplier

		return nil
	}

	if c.BTC.MinConf < 0 {
		return fmt.Errorf("%w: negative minconf", ErrInvalidConfig)
	}

	if c.BTC.FallbackFee <= 0 ||
		c.BTC.FallbackPriorityFee < c.BTC.FallbackFee {

		return fmt.Errorf("%w: fallback fees must be positive with "+
			"priority at least regular", ErrInvalidConfig)
	}

	return nil
}

// Params returns the parameters of the configured bitcoin network.
func (c *Config) Params() *chaincfg.Params {
	return c.params
}

// SelectedAsset returns the asset to quote.
func (c *Config) SelectedAsset() money.Currency {
	return c.asset
}

// SendAmount returns the amount to quote.
func (c *Config) SendAmount() money.Money {
	return c.amount
}

// SelectedFeeLevel returns the fee level to switch to, FeeLevelNone when the
// stored or default level is kept.
func (c *Config) SelectedFeeLevel() txengine.FeeLevel {
	return c.feeLevel
}

// CustomFeeAmount returns the custom fee to pass to the engine.
func (c *Config) CustomFeeAmount() int64 {
	if c.feeLevel != txengine.FeeLevelCustom {
		return txengine.CustomFeeUnset
	}

	return c.CustomFee
}

// FixedRates returns the configured exchange rates.
func (c *Config) FixedRates() []money.Rate {
	return c.rates
}

// GasPriority returns the priority multiplier and the gas price cap in gwei.
func (c *Config) GasPriority() (decimal.Decimal, int64) {
	return c.gasMultiplier, c.ETH.MaxGasPrice
}

// FiatCurrency returns the display fiat currency.
func (c *Config) FiatCurrency() money.Currency {
	return money.Fiat(strings.ToUpper(c.Fiat))
}

// StoreConfig returns the preference store settings.
func (c *Config) StoreConfig() prefstore.Config {
	return prefstore.Config{
		Backend:   c.Store.Backend,
		Path:      c.Store.Path,
		DSN:       c.Store.DSN,
		RedisAddr: c.Store.RedisAddr,
	}
}

// LogFile returns the path of the log file.
func (c *Config) LogFile() string {
	return filepath.Join(cleanAndExpandPath(c.LogDir), defaultLogFilename)
}

func networkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet":
		return &chaincfg.MainNetParams, nil

	case "testnet3":
		return &chaincfg.TestNet3Params, nil

	case "regtest":
		return &chaincfg.RegressionNetParams, nil

	case "signet":
		return &chaincfg.SigNetParams, nil

	default:
		return nil, fmt.Errorf("%w: unknown network %q",
			ErrInvalidConfig, name)
	}
}

func parseAsset(code string) (money.Currency, error) {
	for _, c := range []money.Currency{money.BTC, money.BCH, money.ETH} {
		if strings.EqualFold(code, c.Code) {
			return c, nil
		}
	}

	return money.Currency{}, fmt.Errorf("%w: unsupported asset %q",
		ErrInvalidConfig, code)
}

// parseRate parses FROM:TO:PRICE. FROM is a supported asset and TO a fiat
// code.
func parseRate(s string) (money.Rate, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return money.Rate{}, fmt.Errorf("%w: rate %q is not "+
			"FROM:TO:PRICE", ErrInvalidConfig, s)
	}

	from, err := parseAsset(parts[0])
	if err != nil {
		return money.Rate{}, err
	}

	price, err := decimal.NewFromString(parts[2])
	if err != nil || !price.IsPositive() {
		return money.Rate{}, fmt.Errorf("%w: rate %q has no positive "+
			"price", ErrInvalidConfig, s)
	}

	to := money.Fiat(strings.ToUpper(parts[1]))

	return money.NewRate(from, to, price), nil
}

// cleanAndExpandPath expands environment variables and a leading ~ in path.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}
