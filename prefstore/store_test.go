package prefstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/txengine"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	errRedisDown = errors.New("redis down")

	usdc = money.Token(
		"USDC", 6, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	)
)

// fakeRedis is a redis client backed by a map, recording calls through the
// embedded mock.
type fakeRedis struct {
	mock.Mock

	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.Called(ctx, key)

	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}

	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{},
	expiration time.Duration) *redis.StatusCmd {

	args := f.Called(ctx, key, value, expiration)
	if err := args.Error(0); err != nil {
		return redis.NewStatusResult("", err)
	}

	f.values[key] = string(value.([]byte))

	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Close() error {
	return nil
}

// newRedisTestStore returns a redis store over a map that accepts every
// call.
func newRedisTestStore(t *testing.T) Store {
	t.Helper()

	client := newFakeRedis()
	client.On("Get", mock.Anything, mock.Anything)
	client.On("Set", mock.Anything, mock.Anything, mock.Anything,
		time.Duration(0)).Return(nil)

	return NewRedisStore(client, "")
}

// TestStores runs the same checks against every backend that needs no
// external service.
func TestStores(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{
			name: "memory",
			open: func(t *testing.T) Store {
				return NewMemStore()
			},
		},
		{
			name: "bdb",
			open: func(t *testing.T) Store {
				store, err := OpenKVStore(
					filepath.Join(t.TempDir(), "prefs.db"),
					defaultDBTimeout,
				)
				require.NoError(t, err)

				return store
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Store {
				store, err := OpenSQLite(
					context.Background(),
					filepath.Join(t.TempDir(), "prefs.db"),
				)
				require.NoError(t, err)

				return store
			},
		},
		{
			name: "redis",
			open: newRedisTestStore,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := tc.open(t)
			t.Cleanup(func() {
				require.NoError(t, store.Close())
			})

			testStore(t, store)
		})
	}
}

// testStore checks the store contract: misses are None, writes overwrite and
// assets are kept apart.
func testStore(t *testing.T, store Store) {
	t.Helper()

	ctx := context.Background()

	// Arrange: nothing stored yet.
	level, err := store.FeeLevel(ctx, money.BTC)
	require.NoError(t, err)
	require.True(t, level.IsNone())

	// Act.
	require.NoError(t, store.SetFeeLevel(
		ctx, money.BTC, txengine.FeeLevelPriority,
	))
	require.NoError(t, store.SetFeeLevel(
		ctx, money.ETH, txengine.FeeLevelRegular,
	))
	require.NoError(t, store.SetFeeLevel(
		ctx, usdc, txengine.FeeLevelCustom,
	))

	// Assert.
	level, err = store.FeeLevel(ctx, money.BTC)
	require.NoError(t, err)
	require.Equal(t, fn.Some(txengine.FeeLevelPriority), level)

	level, err = store.FeeLevel(ctx, usdc)
	require.NoError(t, err)
	require.Equal(t, fn.Some(txengine.FeeLevelCustom), level)

	// A token with the same code but another contract is a separate
	// asset.
	other := money.Token("USDC", 6, "0xother")
	level, err = store.FeeLevel(ctx, other)
	require.NoError(t, err)
	require.True(t, level.IsNone())

	// Writes overwrite.
	require.NoError(t, store.SetFeeLevel(
		ctx, money.BTC, txengine.FeeLevelRegular,
	))
	level, err = store.FeeLevel(ctx, money.BTC)
	require.NoError(t, err)
	require.Equal(t, fn.Some(txengine.FeeLevelRegular), level)
}

// TestKVStoreReopen checks that levels survive closing the database.
func TestKVStoreReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prefs.db")
	ctx := context.Background()

	store, err := OpenKVStore(path, defaultDBTimeout)
	require.NoError(t, err)
	require.NoError(t, store.SetFeeLevel(
		ctx, money.BTC, txengine.FeeLevelPriority,
	))
	require.NoError(t, store.Close())

	store, err = OpenKVStore(path, defaultDBTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	level, err := store.FeeLevel(ctx, money.BTC)
	require.NoError(t, err)
	require.Equal(t, fn.Some(txengine.FeeLevelPriority), level)
}

// TestSQLStoreReopen checks that migrations are applied once and levels
// survive closing the database.
func TestSQLStoreReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prefs.db")
	ctx := context.Background()

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.SetFeeLevel(
		ctx, money.ETH, txengine.FeeLevelPriority,
	))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	level, err := store.FeeLevel(ctx, money.ETH)
	require.NoError(t, err)
	require.Equal(t, fn.Some(txengine.FeeLevelPriority), level)
}

// TestRedisStoreErrors checks that client failures are reported as database
// errors.
func TestRedisStoreErrors(t *testing.T) {
	t.Parallel()

	// Arrange.
	client := newFakeRedis()
	client.On("Set", mock.Anything, "prefs:BTC", mock.Anything,
		time.Duration(0)).Return(errRedisDown).Once()
	store := NewRedisStore(client, "prefs:")

	// Act.
	err := store.SetFeeLevel(
		context.Background(), money.BTC, txengine.FeeLevelRegular,
	)

	// Assert.
	require.ErrorIs(t, err, errRedisDown)
	require.True(t, IsError(err, ErrDatabase))
	client.AssertExpectations(t)
}

// TestDecodeLevel checks that stored records are validated.
func TestDecodeLevel(t *testing.T) {
	t.Parallel()

	record, err := encodeLevel(txengine.FeeLevelCustom, time.Unix(1, 0))
	require.NoError(t, err)

	level, err := decodeLevel(record)
	require.NoError(t, err)
	require.Equal(t, txengine.FeeLevelCustom, level)

	testCases := []struct {
		name string
		data []byte
	}{
		{
			name: "truncated",
			data: record[:len(record)-1],
		},
		{
			name: "unknown level",
			data: []byte{0x00, 0x01, 0x09},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := decodeLevel(tc.data)
			require.True(t, IsError(err, ErrCorruptRecord), err)
		})
	}
}

// TestOpenUnknownBackend checks that an unsupported backend is rejected.
func TestOpenUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Backend: "mongo"})
	require.True(t, IsError(err, ErrUnknownBackend))

	store, err := Open(context.Background(), Config{Backend: BackendMemory})
	require.NoError(t, err)
	require.IsType(t, &MemStore{}, store)
}

// TestNewStoresRejectNilDB checks the constructor guards.
func TestNewStoresRejectNilDB(t *testing.T) {
	t.Parallel()

	_, err := NewKVStore(nil)
	require.ErrorIs(t, err, ErrNilDB)

	_, err = NewSQLStore(nil, DialectSQLite)
	require.ErrorIs(t, err, ErrNilDB)
}

// TestMigrateUp checks that migrations are idempotent and tracked in their
// own table.
func TestMigrateUp(t *testing.T) {
	t.Parallel()

	// Arrange.
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// Act.
	first, err := migrateUp(db, DialectSQLite)
	require.NoError(t, err)

	second, err := migrateUp(db, DialectSQLite)
	require.NoError(t, err)

	// Assert.
	require.Equal(t, uint(1), first)
	require.Equal(t, first, second)

	var version int64
	err = db.QueryRow("SELECT version FROM " + schemaTable).Scan(&version)
	require.NoError(t, err)
	require.Equal(t, int64(1), version)

	_, err = migrateUp(db, Dialect(9))
	require.True(t, IsError(err, ErrUnknownBackend))
}
