package chain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func btcUSD(price int64) money.Rate {
	return money.NewRate(money.BTC, money.USD, decimal.NewFromInt(price))
}

// newTestRateCache returns a started cache driven by a forced ticker.
func newTestRateCache(t *testing.T,
	fetcher RateFetcher) (*RateCache, *ticker.Force) {

	t.Helper()

	tick := ticker.NewForce(time.Hour)
	cache := NewRateCache(RateCacheConfig{
		Fetcher: fetcher,
		Ticker:  tick,
	})
	require.NoError(t, cache.Start())
	t.Cleanup(func() { require.NoError(t, cache.Stop()) })

	return cache, tick
}

// TestRateCacheHit checks that a cached pair is served without refetching.
func TestRateCacheHit(t *testing.T) {
	t.Parallel()

	// Arrange.
	fetcher := &mockRateFetcher{}
	fetcher.On("Rate", mock.Anything, money.BTC, money.USD).Return(
		btcUSD(25_000), nil,
	).Once()
	cache, _ := newTestRateCache(t, fetcher)

	// Act.
	first, err := cache.Rate(context.Background(), money.BTC, money.USD)
	require.NoError(t, err)

	second, err := cache.Rate(context.Background(), money.BTC, money.USD)
	require.NoError(t, err)

	// Assert.
	require.Equal(t, btcUSD(25_000), first)
	require.Equal(t, first, second)
	fetcher.AssertExpectations(t)
}

// TestRateCacheFetchError checks that a failed first fetch is returned and
// nothing is cached.
func TestRateCacheFetchError(t *testing.T) {
	t.Parallel()

	fetcher := &mockRateFetcher{}
	fetcher.On("Rate", mock.Anything, money.ETH, money.USD).Return(
		money.Rate{}, errNodeDown,
	).Once()
	fetcher.On("Rate", mock.Anything, money.ETH, money.USD).Return(
		money.NewRate(money.ETH, money.USD, decimal.NewFromInt(1800)),
		nil,
	).Once()
	cache, _ := newTestRateCache(t, fetcher)

	_, err := cache.Rate(context.Background(), money.ETH, money.USD)
	require.ErrorIs(t, err, errNodeDown)

	rate, err := cache.Rate(context.Background(), money.ETH, money.USD)
	require.NoError(t, err)
	require.True(t, rate.Price.Equal(decimal.NewFromInt(1800)))
	fetcher.AssertExpectations(t)
}

// TestRateCacheRefresh checks that a tick refetches every requested pair.
func TestRateCacheRefresh(t *testing.T) {
	t.Parallel()

	// Arrange.
	fetcher := &mockRateFetcher{}
	fetcher.On("Rate", mock.Anything, money.BTC, money.USD).Return(
		btcUSD(25_000), nil,
	).Once()
	fetcher.On("Rate", mock.Anything, money.BTC, money.USD).Return(
		btcUSD(26_000), nil,
	)
	cache, tick := newTestRateCache(t, fetcher)

	_, err := cache.Rate(context.Background(), money.BTC, money.USD)
	require.NoError(t, err)

	// Act.
	tick.Force <- time.Now()

	// Assert.
	require.Eventually(t, func() bool {
		rate, err := cache.Rate(
			context.Background(), money.BTC, money.USD,
		)

		return err == nil && rate.Price.Equal(decimal.NewFromInt(26_000))
	}, 5*time.Second, 10*time.Millisecond)
}

// TestRateCacheRefreshKeepsLastRate checks that a failed refresh keeps the
// last known rate.
func TestRateCacheRefreshKeepsLastRate(t *testing.T) {
	t.Parallel()

	// Arrange.
	refreshed := make(chan struct{})
	fetcher := &mockRateFetcher{}
	fetcher.On("Rate", mock.Anything, money.BTC, money.USD).Return(
		btcUSD(25_000), nil,
	).Once()
	fetcher.On("Rate", mock.Anything, money.BTC, money.USD).Return(
		money.Rate{}, errNodeDown,
	).Run(func(mock.Arguments) {
		close(refreshed)
	}).Once()
	cache, tick := newTestRateCache(t, fetcher)

	_, err := cache.Rate(context.Background(), money.BTC, money.USD)
	require.NoError(t, err)

	// Act.
	tick.Force <- time.Now()

	select {
	case <-refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh not attempted")
	}

	// Assert.
	rate, err := cache.Rate(context.Background(), money.BTC, money.USD)
	require.NoError(t, err)
	require.Equal(t, btcUSD(25_000), rate)
}

// rateFetcherFunc adapts a function to the RateFetcher interface.
type rateFetcherFunc func(ctx context.Context, from,
	to money.Currency) (money.Rate, error)

func (f rateFetcherFunc) Rate(ctx context.Context, from,
	to money.Currency) (money.Rate, error) {

	return f(ctx, from, to)
}

// TestRateCacheRefreshIsolatesFailures checks that one failing pair neither
// cancels nor blocks the refresh of the others.
func TestRateCacheRefreshIsolatesFailures(t *testing.T) {
	t.Parallel()

	// Arrange: after the first fetch of each pair, BTC fails and ETH
	// answers only once BTC has failed, unless its context is cancelled
	// first.
	var (
		mtx      sync.Mutex
		calls    = make(map[money.Currency]int)
		btcFailed = make(chan struct{})
	)
	fetcher := rateFetcherFunc(func(ctx context.Context, from,
		to money.Currency) (money.Rate, error) {

		mtx.Lock()
		calls[from]++
		n := calls[from]
		mtx.Unlock()

		switch {
		case from == money.BTC && n == 1:
			return btcUSD(25_000), nil

		case from == money.BTC:
			close(btcFailed)
			return money.Rate{}, errNodeDown

		case n == 1:
			return money.NewRate(money.ETH, money.USD,
				decimal.NewFromInt(1800)), nil
		}

		<-btcFailed
		select {
		case <-ctx.Done():
			return money.Rate{}, ctx.Err()

		case <-time.After(100 * time.Millisecond):
			return money.NewRate(money.ETH, money.USD,
				decimal.NewFromInt(1900)), nil
		}
	})
	cache := NewRateCache(RateCacheConfig{
		Fetcher: fetcher,
		Ticker:  ticker.NewForce(time.Hour),
	})

	ctx := context.Background()
	_, err := cache.Rate(ctx, money.BTC, money.USD)
	require.NoError(t, err)
	_, err = cache.Rate(ctx, money.ETH, money.USD)
	require.NoError(t, err)

	// Act.
	err = cache.refresh(ctx)

	// Assert.
	require.ErrorIs(t, err, errRefreshFailed)
	require.ErrorContains(t, err, "1 of 2 pairs")

	eth, err := cache.Rate(ctx, money.ETH, money.USD)
	require.NoError(t, err)
	require.True(t, eth.Price.Equal(decimal.NewFromInt(1900)))

	btc, err := cache.Rate(ctx, money.BTC, money.USD)
	require.NoError(t, err)
	require.Equal(t, btcUSD(25_000), btc)
}

// TestRateCacheEvictionStopsRefresh checks that a pair evicted from the
// cache is no longer refreshed until it is requested again.
func TestRateCacheEvictionStopsRefresh(t *testing.T) {
	t.Parallel()

	// Arrange: a single slot, so fetching ETH evicts BTC.
	ethUSD := money.NewRate(money.ETH, money.USD, decimal.NewFromInt(1800))
	fetcher := &mockRateFetcher{}
	fetcher.On("Rate", mock.Anything, money.BTC, money.USD).Return(
		btcUSD(25_000), nil,
	).Once()
	fetcher.On("Rate", mock.Anything, money.ETH, money.USD).Return(
		ethUSD, nil,
	).Twice()
	cache := NewRateCache(RateCacheConfig{
		Fetcher:  fetcher,
		Ticker:   ticker.NewForce(time.Hour),
		Capacity: 1,
	})

	ctx := context.Background()
	_, err := cache.Rate(ctx, money.BTC, money.USD)
	require.NoError(t, err)
	_, err = cache.Rate(ctx, money.ETH, money.USD)
	require.NoError(t, err)

	// Act.
	err = cache.refresh(ctx)

	// Assert.
	require.NoError(t, err)
	require.Len(t, cache.pairs, 1)
	require.Contains(t, cache.pairs, ratePair{
		from: money.ETH, to: money.USD,
	})
	fetcher.AssertExpectations(t)
}
