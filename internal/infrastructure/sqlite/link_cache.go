package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultLinkLimit is how many recently validated links are remembered.
const DefaultLinkLimit = 100

// LinkCache remembers remote links that passed validation.
type LinkCache struct {
	conn  *sql.DB
	limit int
	now   func() time.Time
}

func newLinkCache(conn *sql.DB, limit int) *LinkCache {
	if limit <= 0 {
		limit = DefaultLinkLimit
	}
	return &LinkCache{conn: conn, limit: limit, now: time.Now}
}

// Contains reports whether link was recorded as valid.
func (c *LinkCache) Contains(ctx context.Context, link string) (bool, error) {
	var n int
	err := c.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM valid_links WHERE link = ?`, link).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying valid link: %w", err)
	}
	return n > 0, nil
}

// Add records link as valid, refreshing its timestamp, and evicts the
// oldest entries beyond the limit.
func (c *LinkCache) Add(ctx context.Context, link string) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO valid_links (link, checked_at) VALUES (?, ?)
		ON CONFLICT(link) DO UPDATE SET checked_at = excluded.checked_at
	`, link, c.now().UnixNano())
	if err != nil {
		return fmt.Errorf("recording valid link: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM valid_links WHERE link NOT IN (
			SELECT link FROM valid_links ORDER BY checked_at DESC LIMIT ?
		)
	`, c.limit)
	if err != nil {
		return fmt.Errorf("trimming valid links: %w", err)
	}
	return tx.Commit()
}

// Len returns the number of cached links.
func (c *LinkCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM valid_links`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting valid links: %w", err)
	}
	return n, nil
}
