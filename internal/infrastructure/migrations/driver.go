package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang-migrate/migrate/v4/database"
)

// DefaultVersionTable records the applied schema version.
const DefaultVersionTable = "schema_migrations"

// ErrNilConfig is returned by WithInstance when config is nil.
var ErrNilConfig = errors.New("migrations: nil config")

// Config tunes the driver.
type Config struct {
	VersionTable string
	// NoTx runs each migration outside a transaction.
	NoTx bool
}

// Driver implements database.Driver on a pre-opened *sql.DB.
type Driver struct {
	db     *sql.DB
	cfg    Config
	locked atomic.Bool
}

// WithInstance wraps db, creating the version table when missing.
func WithInstance(db *sql.DB, config *Config) (database.Driver, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	cfg := *config
	if cfg.VersionTable == "" {
		cfg.VersionTable = DefaultVersionTable
	}

	d := &Driver{db: db, cfg: cfg}
	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %[1]s (version uint64, dirty bool);
		CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_version ON %[1]s (version);`,
		cfg.VersionTable)
	if _, err := db.Exec(stmt); err != nil {
		return nil, fmt.Errorf("creating %s: %w", cfg.VersionTable, err)
	}
	return d, nil
}

// Open is unsupported; callers hand over an open connection via WithInstance.
func (d *Driver) Open(string) (database.Driver, error) {
	return nil, errors.New("migrations: Open unsupported, use WithInstance")
}

func (d *Driver) Close() error { return d.db.Close() }

func (d *Driver) Lock() error {
	if !d.locked.CompareAndSwap(false, true) {
		return database.ErrLocked
	}
	return nil
}

func (d *Driver) Unlock() error {
	if !d.locked.CompareAndSwap(true, false) {
		return database.ErrNotLocked
	}
	return nil
}

// Run executes one migration body.
func (d *Driver) Run(r io.Reader) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if d.cfg.NoTx {
		if _, err := d.db.Exec(string(body)); err != nil {
			return &database.Error{OrigErr: err, Query: body}
		}
		return nil
	}
	return d.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(body)); err != nil {
			return &database.Error{OrigErr: err, Query: body}
		}
		return nil
	})
}

func (d *Driver) SetVersion(version int, dirty bool) error {
	return d.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM " + d.cfg.VersionTable); err != nil { //nolint:gosec // table name comes from Config
			return err
		}
		// A dirty nil version must still be written so a failed first
		// down migration is visible.
		if version < 0 && !(version == database.NilVersion && dirty) {
			return nil
		}
		_, err := tx.Exec("INSERT INTO "+d.cfg.VersionTable+" (version, dirty) VALUES (?, ?)", version, dirty) //nolint:gosec // table name comes from Config
		return err
	})
}

func (d *Driver) Version() (int, bool, error) {
	var (
		version int
		dirty   bool
	)
	row := d.db.QueryRow("SELECT version, dirty FROM " + d.cfg.VersionTable + " LIMIT 1") //nolint:gosec // table name comes from Config
	if err := row.Scan(&version, &dirty); err != nil {
		return database.NilVersion, false, nil
	}
	return version, dirty, nil
}

// Drop removes every table.
func (d *Driver) Drop() error {
	rows, err := d.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return err
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		tables = append(tables, name)
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return err
	}
	for _, t := range tables {
		if _, err := d.db.Exec("DROP TABLE " + t); err != nil {
			return &database.Error{OrigErr: err, Query: []byte("DROP TABLE " + t)}
		}
	}
	return nil
}

func (d *Driver) inTx(fn func(*sql.Tx) error) error {
	tx, err := d.db.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "begin failed"}
	}
	if err := fn(tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "commit failed"}
	}
	return nil
}
