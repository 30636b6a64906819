package seen

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	k := Key("Octo", "Hello-World")
	assert.Len(t, k, 64)
	assert.Equal(t, k, Key("octo", "hello-world"))
	assert.NotEqual(t, k, Key("octo", "other"))
}

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := Key("octo", "repo")

	ok, err := s.Contains(ctx, key, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, key, "alice"))
	require.NoError(t, s.Add(ctx, key, "Alice"))

	ok, err = s.Contains(ctx, key, "ALICE")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Contains(ctx, Key("octo", "other"), "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	s, err := NewMemoryStore(0)
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestMemoryStoreEvicts(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStore(2)
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, "k", "a"))
	require.NoError(t, s.Add(ctx, "k", "b"))
	require.NoError(t, s.Add(ctx, "k", "c"))

	ok, _ := s.Contains(ctx, "k", "a")
	assert.False(t, ok)
	ok, _ = s.Contains(ctx, "k", "c")
	assert.True(t, ok)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.db")
	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	testStore(t, s)
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer reopened.Close()

	ok, err := reopened.Contains(context.Background(), Key("octo", "repo"), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}
