// Package sqlite stores the remote link validity cache in a SQLite file.
package sqlite

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dndj/dndj/internal/infrastructure/migrations"
	"github.com/dndj/dndj/internal/log"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB owns the cache database connection.
type DB struct {
	conn *sql.DB
	path string
}

// NewDB opens the database at path, applies pragmas and migrations.
// The parent directory is created when missing and an existing file is
// copied to path+".bak" before migrating.
func NewDB(path string) (*DB, error) {
	log.Debug(log.CatDB, "Opening database", "path", path)

	if path != MemoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			log.ErrorErr(log.CatDB, "Failed to create database directory", err, "path", dir)
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, path+".bak"); err != nil {
				log.ErrorErr(log.CatDB, "Failed to back up database", err, "path", path)
				return nil, fmt.Errorf("failed to back up database: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serialises writers anyway, and :memory:
	// databases exist per connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		log.ErrorErr(log.CatDB, "Failed to ping database", err, "path", path)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := migrations.Up(conn); err != nil {
		_ = conn.Close()
		log.ErrorErr(log.CatDB, "Failed to run migrations", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info(log.CatDB, "Database initialized", "path", path)
	return &DB{conn: conn, path: path}, nil
}

// Close releases the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	log.Debug(log.CatDB, "Closing database", "path", db.path)
	return db.conn.Close()
}

// LinkCache returns the valid link cache keeping at most limit entries.
func (db *DB) LinkCache(limit int) *LinkCache {
	return newLinkCache(db.conn, limit)
}

func copyFile(src, dst string) (retErr error) {
	in, err := os.Open(src) //nolint:gosec // G304: database path from settings
	if err != nil {
		return err
	}
	defer func() {
		if err := in.Close(); err != nil && retErr == nil {
			retErr = err
		}
	}()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, info.Mode()) //nolint:gosec // G304: derived from database path
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("failed to close backup file: %w", err)
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
