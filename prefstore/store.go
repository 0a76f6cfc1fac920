// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package prefstore persists the fee level last chosen per asset. Every
// backend satisfies txengine.FeeLevelStore.
package prefstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/txengine"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// BackendMemory keeps preferences in memory only.
	BackendMemory = "memory"

	// BackendKV stores preferences in a walletdb bbolt file.
	BackendKV = "bdb"

	// BackendSQLite stores preferences in a sqlite database.
	BackendSQLite = "sqlite"

	// BackendPostgres stores preferences in a postgres database.
	BackendPostgres = "postgres"

	// BackendRedis stores preferences in redis.
	BackendRedis = "redis"

	// defaultDBTimeout is how long to wait for the bbolt file lock.
	defaultDBTimeout = 10 * time.Second
)

// Store is a closable fee level preference store.
type Store interface {
	txengine.FeeLevelStore

	// Close releases the resources held by the store.
	Close() error
}

// Config selects and locates a store backend.
type Config struct {
	// Backend is one of the Backend* constants.
	Backend string

	// Path is the database file of the bdb and sqlite backends.
	Path string

	// DSN is the postgres connection string.
	DSN string

	// RedisAddr is the host:port of the redis server.
	RedisAddr string
}

// Open opens the store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	log.Debugf("Opening %s fee level store", cfg.Backend)

	switch cfg.Backend {
	case BackendMemory:
		return NewMemStore(), nil

	case BackendKV:
		return OpenKVStore(cfg.Path, defaultDBTimeout)

	case BackendSQLite:
		return OpenSQLite(ctx, cfg.Path)

	case BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN)

	case BackendRedis:
		return OpenRedisStore(ctx, cfg.RedisAddr)

	default:
		return nil, newError(ErrUnknownBackend,
			fmt.Sprintf("unknown store backend %q", cfg.Backend), nil)
	}
}

// MemStore keeps preferences in memory. It is safe for concurrent use.
type MemStore struct {
	mu     sync.RWMutex
	levels map[string]txengine.FeeLevel
}

// A compile-time assertion to ensure that MemStore implements Store.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{levels: make(map[string]txengine.FeeLevel)}
}

// FeeLevel returns the level stored for asset.
func (m *MemStore) FeeLevel(_ context.Context,
	asset money.Currency) (fn.Option[txengine.FeeLevel], error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	level, ok := m.levels[asset.Key()]
	if !ok {
		return fn.None[txengine.FeeLevel](), nil
	}

	return fn.Some(level), nil
}

// SetFeeLevel stores level for asset.
func (m *MemStore) SetFeeLevel(_ context.Context, asset money.Currency,
	level txengine.FeeLevel) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.levels[asset.Key()] = level

	return nil
}

// Close is a no-op.
func (m *MemStore) Close() error {
	return nil
}
