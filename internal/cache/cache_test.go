package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(dsn, Options{MaxEntries: 10, CompressMinSize: 8})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutThenGetRoundTrips(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "packager/1/bundle1/content", []byte("export const x = 1;")))

	data, ok, err := c.Get(ctx, "packager/1/bundle1/content")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "export const x = 1;", string(data))
}

func TestGetMissingKeyIsNotAnError(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	data, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestHasReflectsPresence(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	has, err := c.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, c.Put(ctx, "k", []byte("v")))
	has, err = c.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestCommitGroupWritesAllEntriesAtomically(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	err := c.CommitGroup(ctx, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
		"c": []byte("3"),
	})
	require.NoError(t, err)

	for _, key := range []string{"a", "b", "c"} {
		has, err := c.Has(ctx, key)
		require.NoError(t, err)
		assert.True(t, has, "key %s should be present after CommitGroup", key)
	}
}

func TestPutEvictsOldestOverCapacity(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	c.eviction = NewEvictionTracker(2)

	require.NoError(t, c.Put(ctx, "a", []byte("1")))
	require.NoError(t, c.Put(ctx, "b", []byte("2")))
	require.NoError(t, c.Put(ctx, "c", []byte("3")))

	has, err := c.Has(ctx, "a")
	require.NoError(t, err)
	assert.False(t, has, "oldest entry should have been evicted")

	assert.True(t, c.eviction.Consistent())
}
