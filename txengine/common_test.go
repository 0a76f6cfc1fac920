package txengine

import (
	"testing"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testHarness bundles the services shared by every engine.
type testHarness struct {
	store   *mockFeeLevelStore
	display *mockDisplay
	rates   *mockRates
}

// newTestHarness creates the shared mocks and asserts their expectations when
// the test ends.
func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		store:   &mockFeeLevelStore{},
		display: &mockDisplay{},
		rates:   &mockRates{},
	}

	t.Cleanup(func() {
		h.store.AssertExpectations(t)
		h.display.AssertExpectations(t)
		h.rates.AssertExpectations(t)
	})

	return h
}

func (h *testHarness) services() Services {
	return Services{FeeLevels: h.store, Display: h.display}
}

func (h *testHarness) binding(source Account, target Target) Binding {
	return Binding{Source: source, Target: target, Rates: h.rates}
}

// expectInit sets up the preference reads of InitialiseTx.
func (h *testHarness) expectInit(asset money.Currency,
	stored fn.Option[FeeLevel]) {

	h.display.On("SelectedFiat", mock.Anything).Return(money.USD, nil).
		Once()
	h.store.On("FeeLevel", mock.Anything, asset).Return(stored, nil).Once()
}

// expectRate sets up an exchange rate lookup.
func (h *testHarness) expectRate(from, to money.Currency, price string) {
	h.rates.On("Rate", mock.Anything, from, to).Return(
		money.NewRate(from, to, decimal.RequireFromString(price)), nil,
	).Once()
}

// newAccount creates a mock source account.
func newAccount(t *testing.T, label string,
	currency money.Currency) *mockAccount {

	t.Helper()

	acct := &mockAccount{label: label, currency: currency}
	t.Cleanup(func() { acct.AssertExpectations(t) })

	return acct
}

// expectBalance sets up a balance query.
func (m *mockAccount) expectBalance(total, actionable money.Money) {
	m.On("Balance", mock.Anything).Return(AccountBalance{
		Total:      total,
		Actionable: actionable,
	}, nil)
}

// requireMoney asserts that two amounts are equal.
func requireMoney(t *testing.T, expected, actual money.Money) {
	t.Helper()

	require.Truef(t, expected.Equal(actual), "expected %v, got %v",
		expected, actual)
}

// requireZeroed asserts the shape of a freshly initialised transaction.
func requireZeroed(t *testing.T, ptx *PendingTx, asset money.Currency) {
	t.Helper()

	zero := money.Zero(asset)
	requireMoney(t, zero, ptx.Amount)
	requireMoney(t, zero, ptx.TotalBalance)
	requireMoney(t, zero, ptx.AvailableBalance)
	requireMoney(t, zero, ptx.FeeAmount)
	requireMoney(t, zero, ptx.FeeForFullAvailable)
	require.Empty(t, ptx.Confirmations)
	require.Equal(t, money.USD, ptx.SelectedFiat)
	require.True(t, ptx.FeeSelection.AvailableLevels.Contains(
		ptx.FeeSelection.SelectedLevel,
	))
}

// requireSameNumbers asserts that the amount, balance and fee fields of two
// transactions are equal.
func requireSameNumbers(t *testing.T, expected, actual *PendingTx) {
	t.Helper()

	requireMoney(t, expected.Amount, actual.Amount)
	requireMoney(t, expected.TotalBalance, actual.TotalBalance)
	requireMoney(t, expected.AvailableBalance, actual.AvailableBalance)
	requireMoney(t, expected.FeeAmount, actual.FeeAmount)
	requireMoney(t, expected.FeeForFullAvailable,
		actual.FeeForFullAvailable)
}
