// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prefstore

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb" // Register bdb driver.
	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/txengine"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// kvDriver is the walletdb driver backing KVStore.
const kvDriver = "bdb"

// feeLevelBucket is the top level bucket holding one TLV record per asset
// key.
var feeLevelBucket = []byte("fee-levels")

// KVStore stores preferences in a walletdb database.
type KVStore struct {
	db walletdb.DB

	// ownsDB is set when Close should close db.
	ownsDB bool

	now func() time.Time
}

// A compile-time assertion to ensure that KVStore implements Store.
var _ Store = (*KVStore)(nil)

// NewKVStore creates the preference bucket in db if needed and returns a
// store using it. The caller keeps ownership of db.
func NewKVStore(db walletdb.DB) (*KVStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		_, err := tx.CreateTopLevelBucket(feeLevelBucket)
		return err
	})
	if err != nil {
		return nil, newError(ErrDatabase, "create fee level bucket",
			err)
	}

	return &KVStore{db: db, now: time.Now}, nil
}

// OpenKVStore opens, or creates, a bbolt database at path.
func OpenKVStore(path string, timeout time.Duration) (*KVStore, error) {
	db, err := walletdb.Create(kvDriver, path, true, timeout, false)
	if err != nil {
		return nil, newError(ErrDatabase,
			fmt.Sprintf("open %s", path), err)
	}

	store, err := NewKVStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.ownsDB = true

	return store, nil
}

// FeeLevel returns the level stored for asset.
func (s *KVStore) FeeLevel(ctx context.Context,
	asset money.Currency) (fn.Option[txengine.FeeLevel], error) {

	none := fn.None[txengine.FeeLevel]()
	if err := ctx.Err(); err != nil {
		return none, err
	}

	var (
		found bool
		level txengine.FeeLevel
	)
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(feeLevelBucket)
		if bucket == nil {
			return newError(ErrDatabase, "fee level bucket missing",
				nil)
		}

		// The value is only valid for the life of the transaction.
		v := bucket.Get([]byte(asset.Key()))
		if v == nil {
			return nil
		}

		var err error
		level, err = decodeLevel(v)
		found = err == nil

		return err
	})
	if err != nil {
		return none, err
	}

	if !found {
		return none, nil
	}

	return fn.Some(level), nil
}

// SetFeeLevel stores level for asset.
func (s *KVStore) SetFeeLevel(ctx context.Context, asset money.Currency,
	level txengine.FeeLevel) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	record, err := encodeLevel(level, s.now())
	if err != nil {
		return err
	}

	err = walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(feeLevelBucket)
		if bucket == nil {
			return newError(ErrDatabase, "fee level bucket missing",
				nil)
		}

		return bucket.Put([]byte(asset.Key()), record)
	})
	if err != nil {
		return err
	}

	log.Debugf("Stored %s fee level %v", asset, level)

	return nil
}

// Close closes the database if the store opened it.
func (s *KVStore) Close() error {
	if !s.ownsDB {
		return nil
	}

	return s.db.Close()
}
