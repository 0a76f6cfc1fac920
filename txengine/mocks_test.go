package txengine

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/txengine/coinselect"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
)

var (
	errFeeSource = errors.New("fee source down")
	errStore     = errors.New("store down")
	errLimits    = errors.New("limits down")
)

type mockAccount struct {
	mock.Mock

	label    string
	currency money.Currency
}

func (m *mockAccount) Label() string {
	return m.label
}

func (m *mockAccount) Currency() money.Currency {
	return m.currency
}

func (m *mockAccount) Balance(ctx context.Context) (AccountBalance, error) {
	args := m.Called(ctx)
	return args.Get(0).(AccountBalance), args.Error(1)
}

type mockTokenAccount struct {
	mockAccount
}

func (m *mockTokenAccount) FeeBalance(ctx context.Context) (money.Money,
	error) {

	args := m.Called(ctx)
	return args.Get(0).(money.Money), args.Error(1)
}

type mockFeeLevelStore struct {
	mock.Mock
}

func (m *mockFeeLevelStore) FeeLevel(ctx context.Context,
	asset money.Currency) (fn.Option[FeeLevel], error) {

	args := m.Called(ctx, asset)
	return args.Get(0).(fn.Option[FeeLevel]), args.Error(1)
}

func (m *mockFeeLevelStore) SetFeeLevel(ctx context.Context,
	asset money.Currency, level FeeLevel) error {

	args := m.Called(ctx, asset, level)
	return args.Error(0)
}

type mockDisplay struct {
	mock.Mock
}

func (m *mockDisplay) SelectedFiat(ctx context.Context) (money.Currency,
	error) {

	args := m.Called(ctx)
	return args.Get(0).(money.Currency), args.Error(1)
}

type mockRates struct {
	mock.Mock
}

func (m *mockRates) Rate(ctx context.Context, from,
	to money.Currency) (money.Rate, error) {

	args := m.Called(ctx, from, to)
	return args.Get(0).(money.Rate), args.Error(1)
}

type mockUTXOFeeSource struct {
	mock.Mock
}

func (m *mockUTXOFeeSource) FeeOptions(ctx context.Context,
	asset money.Currency) (UTXOFeeOptions, error) {

	args := m.Called(ctx, asset)
	return args.Get(0).(UTXOFeeOptions), args.Error(1)
}

type mockUnspent struct {
	mock.Mock
}

func (m *mockUnspent) Unspent(ctx context.Context,
	account Account) ([]coinselect.Coin, error) {

	args := m.Called(ctx, account)
	return args.Get(0).([]coinselect.Coin), args.Error(1)
}

type mockSelector struct {
	mock.Mock
}

func (m *mockSelector) Select(coins []coinselect.Coin, output *wire.TxOut,
	feeSatPerKb btcutil.Amount,
	change *txauthor.ChangeSource) (*coinselect.Selection, error) {

	args := m.Called(coins, output, feeSatPerKb, change)
	sel, _ := args.Get(0).(*coinselect.Selection)

	return sel, args.Error(1)
}

func (m *mockSelector) MaxSpendable(coins []coinselect.Coin, pkScript []byte,
	feeSatPerKb btcutil.Amount) (*coinselect.Sweep, error) {

	args := m.Called(coins, pkScript, feeSatPerKb)
	sweep, _ := args.Get(0).(*coinselect.Sweep)

	return sweep, args.Error(1)
}

type mockChangeSource struct {
	mock.Mock
}

func (m *mockChangeSource) ChangeSource(ctx context.Context,
	account Account) (*txauthor.ChangeSource, error) {

	args := m.Called(ctx, account)
	return args.Get(0).(*txauthor.ChangeSource), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishPsbt(ctx context.Context, account Account,
	packet *psbt.Packet) (string, error) {

	args := m.Called(ctx, account, packet)
	return args.String(0), args.Error(1)
}

type mockGasFeeSource struct {
	mock.Mock
}

func (m *mockGasFeeSource) GasFeeOptions(ctx context.Context,
	asset money.Currency) (GasFeeOptions, error) {

	args := m.Called(ctx, asset)
	return args.Get(0).(GasFeeOptions), args.Error(1)
}

type mockEthSender struct {
	mock.Mock
}

func (m *mockEthSender) SendTransfer(ctx context.Context,
	transfer EthTransfer) (string, error) {

	args := m.Called(ctx, transfer)
	return args.String(0), args.Error(1)
}

type mockTransferLimits struct {
	mock.Mock
}

func (m *mockTransferLimits) TransferLimits(ctx context.Context, asset,
	fiat money.Currency) (TransferLimits, error) {

	args := m.Called(ctx, asset, fiat)
	return args.Get(0).(TransferLimits), args.Error(1)
}

type mockQuotes struct {
	mock.Mock
}

func (m *mockQuotes) Quote(ctx context.Context, asset,
	fiat money.Currency) (Quote, error) {

	args := m.Called(ctx, asset, fiat)
	return args.Get(0).(Quote), args.Error(1)
}

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) PlaceSellOrder(ctx context.Context,
	order SellOrder) error {

	args := m.Called(ctx, order)
	return args.Error(0)
}

type mockInterestLimits struct {
	mock.Mock
}

func (m *mockInterestLimits) DepositLimits(ctx context.Context,
	asset money.Currency) (fn.Option[InterestDepositLimits], error) {

	args := m.Called(ctx, asset)
	return args.Get(0).(fn.Option[InterestDepositLimits]), args.Error(1)
}

func (m *mockInterestLimits) WithdrawLimits(ctx context.Context,
	asset money.Currency) (fn.Option[InterestWithdrawLimits], error) {

	args := m.Called(ctx, asset)
	return args.Get(0).(fn.Option[InterestWithdrawLimits]), args.Error(1)
}

type mockInterestTransfer struct {
	mock.Mock
}

func (m *mockInterestTransfer) Deposit(ctx context.Context, source Account,
	target Target, amount money.Money) (string, error) {

	args := m.Called(ctx, source, target, amount)
	return args.String(0), args.Error(1)
}

func (m *mockInterestTransfer) Withdraw(ctx context.Context, source Account,
	target Target, amount money.Money) (string, error) {

	args := m.Called(ctx, source, target, amount)
	return args.String(0), args.Error(1)
}
