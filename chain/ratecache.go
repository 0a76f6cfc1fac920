// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/txengine"
	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"
	"github.com/lightningnetwork/lnd/ticker"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRateRefresh is how often cached rates are refreshed.
	DefaultRateRefresh = time.Minute

	// defaultRateCapacity is the number of pairs kept by default.
	defaultRateCapacity = 256

	// maxConcurrentFetches bounds the fetches of one refresh.
	maxConcurrentFetches = 8
)

// errRefreshFailed is returned when some pairs could not be refreshed.
var errRefreshFailed = errors.New("rate refresh failed")

// RateFetcher fetches a live exchange rate.
type RateFetcher interface {
	Rate(ctx context.Context, from, to money.Currency) (money.Rate, error)
}

// ratePair identifies a cached rate.
type ratePair struct {
	from money.Currency
	to   money.Currency
}

func (p ratePair) String() string {
	return p.from.Key() + "/" + p.to.Key()
}

// cachedRate is a rate with the time it was fetched.
type cachedRate struct {
	rate    money.Rate
	fetched time.Time
}

// Size counts every rate as one entry.
func (c *cachedRate) Size() (uint64, error) {
	return 1, nil
}

// RateCacheConfig configures a RateCache.
type RateCacheConfig struct {
	// Fetcher provides live rates.
	Fetcher RateFetcher

	// Ticker drives the background refresh. A ticker firing every
	// DefaultRateRefresh is used when nil.
	Ticker ticker.Ticker

	// Capacity is the number of pairs kept.
	Capacity uint64
}

// RateCache serves the last known exchange rate of each pair and refreshes
// every requested pair in the background. Engines read rates from it without
// waiting for the upstream.
type RateCache struct {
	started atomic.Bool
	stopped atomic.Bool

	cfg   RateCacheConfig
	rates *lru.Cache[ratePair, *cachedRate]

	// pairs are refreshed on every tick.
	pairsMtx sync.Mutex
	pairs    map[ratePair]struct{}

	quit chan struct{}
	wg   sync.WaitGroup
}

// A compile-time assertion to ensure that RateCache implements
// txengine.ExchangeRates.
var _ txengine.ExchangeRates = (*RateCache)(nil)

// NewRateCache returns an unstarted rate cache.
func NewRateCache(cfg RateCacheConfig) *RateCache {
	if cfg.Ticker == nil {
		cfg.Ticker = ticker.New(DefaultRateRefresh)
	}

	if cfg.Capacity == 0 {
		cfg.Capacity = defaultRateCapacity
	}

	r := &RateCache{
		cfg:   cfg,
		pairs: make(map[ratePair]struct{}),
		quit:  make(chan struct{}),
	}

	// Evicted pairs stop being refreshed until they are requested again.
	onEvict := lru.WithDeleteCallback[ratePair, *cachedRate](
		func(pair ratePair, _ *cachedRate) {
			r.untrack(pair)
		},
	)
	r.rates = lru.NewCache[ratePair, *cachedRate](cfg.Capacity, onEvict)

	return r
}

// Start launches the refresh loop.
func (r *RateCache) Start() error {
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}

	r.cfg.Ticker.Resume()

	r.wg.Add(1)
	go r.refreshLoop()

	return nil
}

// Stop stops the refresh loop and waits for it to exit.
func (r *RateCache) Stop() error {
	if !r.stopped.CompareAndSwap(false, true) {
		return nil
	}

	close(r.quit)
	r.cfg.Ticker.Stop()
	r.wg.Wait()

	return nil
}

// Rate returns the cached rate of the pair, fetching it on first use.
func (r *RateCache) Rate(ctx context.Context, from,
	to money.Currency) (money.Rate, error) {

	pair := ratePair{from: from, to: to}

	cached, err := r.rates.Get(pair)
	switch {
	case err == nil:
		log.Tracef("Serving %v rate fetched at %v", pair,
			cached.fetched)

		r.track(pair)

		return cached.rate, nil

	case !errors.Is(err, cache.ErrElementNotFound):
		return money.Rate{}, err
	}

	rate, err := r.fetch(ctx, pair)
	if err != nil {
		return money.Rate{}, err
	}

	r.track(pair)

	return rate, nil
}

func (r *RateCache) track(pair ratePair) {
	r.pairsMtx.Lock()
	r.pairs[pair] = struct{}{}
	r.pairsMtx.Unlock()
}

func (r *RateCache) untrack(pair ratePair) {
	r.pairsMtx.Lock()
	delete(r.pairs, pair)
	r.pairsMtx.Unlock()

	log.Debugf("Stopped refreshing evicted rate %v", pair)
}

// fetch fetches and caches the rate of a pair.
func (r *RateCache) fetch(ctx context.Context,
	pair ratePair) (money.Rate, error) {

	rate, err := r.cfg.Fetcher.Rate(ctx, pair.from, pair.to)
	if err != nil {
		return money.Rate{}, fmt.Errorf("fetch rate %v: %w", pair, err)
	}

	_, err = r.rates.Put(pair, &cachedRate{
		rate:    rate,
		fetched: time.Now(),
	})
	if err != nil {
		return money.Rate{}, err
	}

	log.Tracef("Cached rate %v", rate)

	return rate, nil
}

// refresh refetches every tracked pair. A pair that fails keeps its last
// known rate and does not hold back the others. The returned error counts
// the failed pairs.
func (r *RateCache) refresh(ctx context.Context) error {
	r.pairsMtx.Lock()
	pairs := make([]ratePair, 0, len(r.pairs))
	for pair := range r.pairs {
		pairs = append(pairs, pair)
	}
	r.pairsMtx.Unlock()

	var (
		g      errgroup.Group
		failed atomic.Int32
	)
	g.SetLimit(maxConcurrentFetches)

	for _, pair := range pairs {
		g.Go(func() error {
			if _, err := r.fetch(ctx, pair); err != nil {
				log.Debugf("Keeping last %v rate: %v", pair, err)
				failed.Add(1)
			}

			return nil
		})
	}

	// Every fetch returns nil, so Wait has nothing to report.
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%w: %d of %d pairs", errRefreshFailed, n,
			len(pairs))
	}

	return nil
}

func (r *RateCache) refreshLoop() {
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-r.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-r.cfg.Ticker.Ticks():
			if err := r.refresh(ctx); err != nil {
				log.Warnf("Unable to refresh rates: %v", err)
			}

		case <-r.quit:
			return
		}
	}
}
