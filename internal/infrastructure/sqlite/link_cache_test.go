package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, limit int) *LinkCache {
	t.Helper()
	db, err := NewDB(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := db.LinkCache(limit)
	base := time.Unix(1_700_000_000, 0)
	tick := 0
	c.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return c
}

func TestLinkCache_AddContains(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 10)

	ok, err := c.Contains(ctx, "https://youtu.be/abc")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Add(ctx, "https://youtu.be/abc"))
	ok, err = c.Contains(ctx, "https://youtu.be/abc")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLinkCache_AddTwiceKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 10)

	require.NoError(t, c.Add(ctx, "a"))
	require.NoError(t, c.Add(ctx, "a"))

	n, err := c.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestLinkCache_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 3)

	for i := range 5 {
		require.NoError(t, c.Add(ctx, fmt.Sprintf("link-%d", i)))
	}

	n, err := c.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	for i, want := range []bool{false, false, true, true, true} {
		ok, err := c.Contains(ctx, fmt.Sprintf("link-%d", i))
		require.NoError(t, err)
		require.Equal(t, want, ok, "link-%d", i)
	}
}

func TestLinkCache_RefreshProtectsFromEviction(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 2)

	require.NoError(t, c.Add(ctx, "old"))
	require.NoError(t, c.Add(ctx, "mid"))
	require.NoError(t, c.Add(ctx, "old"))
	require.NoError(t, c.Add(ctx, "new"))

	ok, err := c.Contains(ctx, "old")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.Contains(ctx, "mid")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewDB_FileBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, db.LinkCache(0).Add(context.Background(), "x"))
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.FileExists(t, path+".bak")

	ok, err := db.LinkCache(0).Contains(context.Background(), "x")
	require.NoError(t, err)
	require.True(t, ok)
}
