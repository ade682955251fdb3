package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type reading struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
}

func TestCache(t *testing.T) {
	t.Run("read non-existent", func(t *testing.T) {
		cache, err := New[reading](t.TempDir(), ToolCache)
		require.NoError(t, err)
		_, err = cache.Get("super-fake")
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("write", func(t *testing.T) {
		cache, err := New[reading](t.TempDir(), ToolCache)
		require.NoError(t, err)
		in := reading{Location: "Sofia, Bulgaria", Temperature: 18.5}
		require.NoError(t, cache.Put("fake", in))

		out, err := cache.Get("fake")
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("delete", func(t *testing.T) {
		cache, err := New[reading](t.TempDir(), ToolCache)
		require.NoError(t, err)
		require.NoError(t, cache.Put("fake", reading{}))
		require.NoError(t, cache.Delete("fake"))
		_, err = cache.Get("fake")
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid id", func(t *testing.T) {
		cache, err := New[reading](t.TempDir(), ToolCache)
		require.NoError(t, err)
		require.ErrorIs(t, cache.Put("", reading{}), errInvalidID)
		require.ErrorIs(t, cache.Delete(""), errInvalidID)
		_, err = cache.Get("")
		require.ErrorIs(t, err, errInvalidID)
	})
}

func TestWriteJSON(t *testing.T) {
	t.Run("replaces and leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "ledger.json")
		require.NoError(t, WriteJSON(path, map[string]int{"a": 1}))
		require.NoError(t, WriteJSON(path, map[string]int{"b": 2}))

		var got map[string]int
		require.NoError(t, ReadJSON(path, &got))
		require.Equal(t, map[string]int{"b": 2}, got)

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))
		var got map[string]int
		require.Error(t, ReadJSON(path, &got))
	})
}

func TestExpiringCache(t *testing.T) {
	t.Run("write and read", func(t *testing.T) {
		cache, err := NewExpiring[reading](t.TempDir())
		require.NoError(t, err)

		in := reading{Location: "Sofia, Bulgaria", Temperature: 21}
		require.NoError(t, cache.Put("weather-Sofia, Bulgaria", in, time.Hour))

		out, err := cache.Get("weather-Sofia, Bulgaria")
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("expired", func(t *testing.T) {
		cache, err := NewExpiring[reading](t.TempDir())
		require.NoError(t, err)

		require.NoError(t, cache.Put("test", reading{}, -time.Hour))
		_, err = cache.Get("test")
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("expires with the clock", func(t *testing.T) {
		cache, err := NewExpiring[reading](t.TempDir())
		require.NoError(t, err)
		now := time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC)
		cache.now = func() time.Time { return now }

		require.NoError(t, cache.Put("test", reading{Temperature: 1}, 10*time.Minute))
		now = now.Add(9 * time.Minute)
		_, err = cache.Get("test")
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = cache.Get("test")
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("overwrite", func(t *testing.T) {
		cache, err := NewExpiring[reading](t.TempDir())
		require.NoError(t, err)

		require.NoError(t, cache.Put("test", reading{Temperature: 1}, time.Hour))
		require.NoError(t, cache.Put("test", reading{Temperature: 2}, 2*time.Hour))

		out, err := cache.Get("test")
		require.NoError(t, err)
		require.InDelta(t, 2.0, out.Temperature, 0.001)
	})

	t.Run("missing", func(t *testing.T) {
		cache, err := NewExpiring[reading](t.TempDir())
		require.NoError(t, err)
		_, err = cache.Get("nope")
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}
