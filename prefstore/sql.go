// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prefstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/btcsuite/txengine/txengine"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver.
	"github.com/lightningnetwork/lnd/fn/v2"
	_ "modernc.org/sqlite" // Register sqlite driver.
)

// Dialect is the SQL flavour spoken by a database.
type Dialect uint8

const (
	// DialectSQLite uses ? placeholders.
	DialectSQLite Dialect = iota

	// DialectPostgres uses $n placeholders.
	DialectPostgres
)

// String returns the string representation of a dialect.
func (d Dialect) String() string {
	switch d {
	case DialectSQLite:
		return "sqlite"

	case DialectPostgres:
		return "postgres"

	default:
		return "unknown dialect"
	}
}

var (
	selectLevel = map[Dialect]string{
		DialectSQLite: "SELECT level FROM fee_levels WHERE asset = ?",
		DialectPostgres: "SELECT level FROM fee_levels " +
			"WHERE asset = $1",
	}

	upsertLevel = map[Dialect]string{
		DialectSQLite: "INSERT INTO fee_levels " +
			"(asset, level, updated_at) VALUES (?, ?, ?) " +
			"ON CONFLICT (asset) DO UPDATE SET " +
			"level = excluded.level, " +
			"updated_at = excluded.updated_at",
		DialectPostgres: "INSERT INTO fee_levels " +
			"(asset, level, updated_at) VALUES ($1, $2, $3) " +
			"ON CONFLICT (asset) DO UPDATE SET " +
			"level = excluded.level, " +
			"updated_at = excluded.updated_at",
	}
)

// SQLStore stores preferences in the fee_levels table of a sqlite or
// postgres database.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// A compile-time assertion to ensure that SQLStore implements Store.
var _ Store = (*SQLStore)(nil)

// NewSQLStore returns a store over db. Migrations must already be applied.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	if _, ok := selectLevel[dialect]; !ok {
		return nil, newError(ErrUnknownBackend, dialect.String(), nil)
	}

	return &SQLStore{db: db, dialect: dialect, now: time.Now}, nil
}

// OpenSQLite opens the sqlite database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	// Foreign keys, WAL and a busy timeout, as for the wallet databases.
	dsn := path + "?_pragma=foreign_keys=on" +
		"&_pragma=journal_mode=WAL" +
		"&_txlock=immediate" +
		"&_pragma=busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, newError(ErrDatabase, "open sqlite", err)
	}

	return openSQL(ctx, db, DialectSQLite)
}

// OpenPostgres connects to the postgres database at dsn and applies
// migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, newError(ErrDatabase, "open postgres", err)
	}

	return openSQL(ctx, db, DialectPostgres)
}

func openSQL(ctx context.Context, db *sql.DB,
	dialect Dialect) (*SQLStore, error) {

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, newError(ErrDatabase,
			fmt.Sprintf("connect %v", dialect), err)
	}

	if _, err := migrateUp(db, dialect); err != nil {
		_ = db.Close()
		if IsError(err, ErrCorruptRecord) {
			return nil, err
		}

		return nil, newError(ErrDatabase, "apply migrations", err)
	}

	return NewSQLStore(db, dialect)
}

// FeeLevel returns the level stored for asset.
func (s *SQLStore) FeeLevel(ctx context.Context,
	asset money.Currency) (fn.Option[txengine.FeeLevel], error) {

	none := fn.None[txengine.FeeLevel]()

	var stored int64
	err := s.db.QueryRowContext(
		ctx, selectLevel[s.dialect], asset.Key(),
	).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return none, nil

	case err != nil:
		return none, newError(ErrDatabase, "select fee level", err)
	}

	level, err := checkLevel(stored)
	if err != nil {
		return none, err
	}

	return fn.Some(level), nil
}

// SetFeeLevel stores level for asset, replacing any previous level.
func (s *SQLStore) SetFeeLevel(ctx context.Context, asset money.Currency,
	level txengine.FeeLevel) error {

	_, err := s.db.ExecContext(
		ctx, upsertLevel[s.dialect], asset.Key(), int64(level),
		s.now().Unix(),
	)
	if err != nil {
		return newError(ErrDatabase, "upsert fee level", err)
	}

	log.Debugf("Stored %s fee level %v in %v", asset, level, s.dialect)

	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
