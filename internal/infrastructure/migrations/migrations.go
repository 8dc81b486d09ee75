// Package migrations applies the embedded schema for the dndj cache database.
//
// golang-migrate's stock sqlite3 driver links mattn/go-sqlite3, which also
// registers itself as "sqlite3" and collides with ncruces/go-sqlite3. The
// driver in driver.go talks to any *sql.DB instead.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var schemaFS embed.FS

// FS exposes the embedded migration files.
func FS() fs.FS {
	return schemaFS
}

// New builds a migrator for db backed by the embedded migrations.
func New(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(schemaFS, ".")
	if err != nil {
		return nil, fmt.Errorf("loading embedded migrations: %w", err)
	}
	drv, err := WithInstance(db, &Config{})
	if err != nil {
		return nil, fmt.Errorf("creating migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, "sqlite3", drv)
}

// Up applies every pending migration. An already current schema is not an error.
func Up(db *sql.DB) error {
	m, err := New(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
