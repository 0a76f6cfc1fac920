package prefstore

import (
	"context"
	"errors"
	"time"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/txengine"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/redis/go-redis/v9"
)

// defaultRedisPrefix namespaces the preference keys.
const defaultRedisPrefix = "txengine:feelevel:"

// redisClient is the part of the redis client the store uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{},
		expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisStore stores preferences as TLV records in redis. Keys never expire.
type RedisStore struct {
	client redisClient
	prefix string
	now    func() time.Time
}

// A compile-time assertion to ensure that RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a store using client. Keys are prefixed with prefix,
// or a default when empty.
func NewRedisStore(client redisClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// OpenRedisStore connects to the redis server at addr and checks that it
// answers.
func OpenRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, newError(ErrDatabase, "ping redis", err)
	}

	return NewRedisStore(client, ""), nil
}

func (s *RedisStore) key(asset money.Currency) string {
	return s.prefix + asset.Key()
}

// FeeLevel returns the level stored for asset.
func (s *RedisStore) FeeLevel(ctx context.Context,
	asset money.Currency) (fn.Option[txengine.FeeLevel], error) {

	none := fn.None[txengine.FeeLevel]()

	data, err := s.client.Get(ctx, s.key(asset)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return none, nil

	case err != nil:
		return none, newError(ErrDatabase, "redis get", err)
	}

	level, err := decodeLevel(data)
	if err != nil {
		return none, err
	}

	return fn.Some(level), nil
}

// SetFeeLevel stores level for asset.
func (s *RedisStore) SetFeeLevel(ctx context.Context, asset money.Currency,
	level txengine.FeeLevel) error {

	record, err := encodeLevel(level, s.now())
	if err != nil {
		return err
	}

	err = s.client.Set(ctx, s.key(asset), record, 0).Err()
	if err != nil {
		return newError(ErrDatabase, "redis set", err)
	}

	log.Debugf("Stored %s fee level %v in redis", asset, level)

	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
