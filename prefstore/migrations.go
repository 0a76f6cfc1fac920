package prefstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// schemaTable records the applied fee level schema version. It is kept apart
// from the default table so the store can share a database.
const schemaTable = "fee_level_schema"

//go:embed migrations
var migrationFS embed.FS

// schema is the migration set of one dialect.
type schema struct {
	dir       string
	newDriver func(*sql.DB) (database.Driver, error)
}

var schemas = map[Dialect]schema{
	DialectSQLite: {
		dir: "migrations/sqlite",
		newDriver: func(db *sql.DB) (database.Driver, error) {
			return sqlite.WithInstance(db, &sqlite.Config{
				MigrationsTable: schemaTable,
			})
		},
	},
	DialectPostgres: {
		dir: "migrations/postgres",
		newDriver: func(db *sql.DB) (database.Driver, error) {
			return postgres.WithInstance(db, &postgres.Config{
				MigrationsTable: schemaTable,
			})
		},
	},
}

// migrateUp brings the fee level schema of db to the latest version and
// returns that version.
func migrateUp(db *sql.DB, dialect Dialect) (uint, error) {
	s, ok := schemas[dialect]
	if !ok {
		return 0, newError(ErrUnknownBackend, dialect.String(), nil)
	}

	source, err := iofs.New(migrationFS, s.dir)
	if err != nil {
		return 0, fmt.Errorf("%v migration source: %w", dialect, err)
	}

	driver, err := s.newDriver(db)
	if err != nil {
		return 0, fmt.Errorf("%v migration driver: %w", dialect, err)
	}

	m, err := migrate.NewWithInstance(
		"iofs", source, dialect.String(), driver,
	)
	if err != nil {
		return 0, fmt.Errorf("%v migrator: %w", dialect, err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Tracef("%v fee level schema is current", dialect)

	case err != nil:
		return 0, fmt.Errorf("migrate %v: %w", dialect, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("%v schema version: %w", dialect, err)
	}

	if dirty {
		return version, newError(ErrCorruptRecord, fmt.Sprintf(
			"%v schema version %d is dirty", dialect, version,
		), nil)
	}

	log.Debugf("Using %v fee level schema version %d", dialect, version)

	return version, nil
}
