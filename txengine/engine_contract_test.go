package txengine

import (
	"context"
	"testing"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// startedEngine returns an engine and a transaction with a non-zero amount
// already priced.
type startedEngine func(t *testing.T) (Engine, *PendingTx)

func startUTXO(t *testing.T) (Engine, *PendingTx) {
	t.Helper()

	tc := newUTXOTestContext(t, money.BTC, false)
	ptx := tc.initialise(t)
	tc.expectFees(1_000_000)
	tc.expectSweep(1000, 5000)
	tc.expectSweep(2000, 10_000)
	tc.expectSelect(1000, 3000)
	tc.expectSelect(2000, 6000)

	ptx, err := tc.engine.UpdateAmount(
		context.Background(), money.FromMinor(100_000, money.BTC), ptx,
	)
	require.NoError(t, err)

	return tc.engine, ptx
}

func startAccount(t *testing.T) (Engine, *PendingTx) {
	t.Helper()

	tc := newAccountTestContext(t)
	source := newAccount(t, "ether", money.ETH)
	source.expectBalance(eth(1e18), eth(1e18))

	engine, ptx := tc.start(t, source)
	ptx, err := engine.UpdateAmount(context.Background(), eth(1e17), ptx)
	require.NoError(t, err)

	return engine, ptx
}

func startSell(t *testing.T) (Engine, *PendingTx) {
	t.Helper()

	tc := newSellTestContext(t)
	tc.expectLimits(t)
	tc.account.expectBalance(
		money.FromMinor(1_000_000, money.BTC),
		money.FromMinor(800_000, money.BTC),
	)

	ptx, err := tc.engine.InitialiseTx(context.Background())
	require.NoError(t, err)

	ptx, err = tc.engine.UpdateAmount(
		context.Background(), money.FromMinor(100_000, money.BTC), ptx,
	)
	require.NoError(t, err)

	return tc.engine, ptx
}

func startDeposit(t *testing.T) (Engine, *PendingTx) {
	t.Helper()

	tc := newInterestTestContext(t)
	engine := tc.deposit(t)

	tc.expectInit(money.BTC, fn.None[FeeLevel]())
	tc.limits.On("DepositLimits", mock.Anything, money.BTC).Return(
		fn.Some(InterestDepositLimits{MinFiat: usd(t, "100")}), nil,
	).Once()
	tc.expectRate(money.BTC, money.USD, "25000")
	tc.account.expectBalance(
		money.FromMinor(2_000_000, money.BTC),
		money.FromMinor(1_500_000, money.BTC),
	)

	ptx, err := engine.InitialiseTx(context.Background())
	require.NoError(t, err)

	ptx, err = engine.UpdateAmount(
		context.Background(), money.FromMinor(500_000, money.BTC), ptx,
	)
	require.NoError(t, err)

	return engine, ptx
}

func startWithdraw(t *testing.T) (Engine, *PendingTx) {
	t.Helper()

	tc := newInterestTestContext(t)
	engine := tc.withdraw(t)

	tc.limits.On("WithdrawLimits", mock.Anything, money.BTC).Return(
		fn.Some(InterestWithdrawLimits{
			Min:     money.FromMinor(10_000, money.BTC),
			Fee:     money.FromMinor(1000, money.BTC),
			MaxFiat: usd(t, "50000"),
		}), nil,
	).Once()
	tc.expectInit(money.BTC, fn.None[FeeLevel]())
	tc.expectRate(money.BTC, money.USD, "25000")
	tc.account.expectBalance(
		money.FromMinor(300_000_000, money.BTC),
		money.FromMinor(250_000_000, money.BTC),
	)

	ptx, err := engine.InitialiseTx(context.Background())
	require.NoError(t, err)

	ptx, err = engine.UpdateAmount(
		context.Background(), money.FromMinor(100_000, money.BTC), ptx,
	)
	require.NoError(t, err)

	return engine, ptx
}

// TestEngineFeeLevelContract checks the fee level and confirmation rules
// every engine shares: re-selecting the current level is a no-op, a level
// outside the offered set is rejected, and confirmations never change the
// numbers.
func TestEngineFeeLevelContract(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		start       startedEngine
		unavailable FeeLevel
	}{
		{
			name:        "utxo",
			start:       startUTXO,
			unavailable: FeeLevelCustom,
		},
		{
			name:        "account",
			start:       startAccount,
			unavailable: FeeLevelNone,
		},
		{
			name:        "sell",
			start:       startSell,
			unavailable: FeeLevelRegular,
		},
		{
			name:        "interest deposit",
			start:       startDeposit,
			unavailable: FeeLevelPriority,
		},
		{
			name:        "interest withdraw",
			start:       startWithdraw,
			unavailable: FeeLevelRegular,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Arrange.
			engine, ptx := tc.start(t)
			ctx := context.Background()
			current := ptx.FeeSelection.SelectedLevel

			// Act.
			same, sameErr := engine.UpdateFeeLevel(
				ctx, ptx, current, CustomFeeUnset,
			)
			_, unavailableErr := engine.UpdateFeeLevel(
				ctx, ptx, tc.unavailable, CustomFeeUnset,
			)
			confirmed, confirmErr := engine.BuildConfirmations(ctx, ptx)

			// Assert.
			require.NoError(t, sameErr)
			requireSameNumbers(t, ptx, same)
			require.Equal(t, ptx.FeeSelection.SelectedLevel,
				same.FeeSelection.SelectedLevel)
			require.NotSame(t, ptx, same)

			require.ErrorIs(t, unavailableErr, ErrFeeLevelUnavailable)

			require.NoError(t, confirmErr)
			requireSameNumbers(t, ptx, confirmed)
			require.NotEmpty(t, confirmed.Confirmations)
		})
	}
}
