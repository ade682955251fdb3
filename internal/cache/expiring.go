package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ExpiringCache is a cache implementation that supports expiration of cached items.
type ExpiringCache[T any] struct {
	cache *Cache[T]
	now   func() time.Time
}

// NewExpiring creates a new cache instance that supports item expiration.
func NewExpiring[T any](path string) (*ExpiringCache[T], error) {
	cache, err := New[T](path, TemporaryCache)
	if err != nil {
		return nil, fmt.Errorf("create expiring cache: %w", err)
	}
	return &ExpiringCache[T]{cache: cache, now: time.Now}, nil
}

// Keys in an expiring cache must not contain dots, they separate the key
// from the expiration timestamp.
func (c *ExpiringCache[T]) key(id string) string {
	return strings.ReplaceAll(id, ".", "_")
}

func (c *ExpiringCache[T]) matches(id string) ([]string, error) {
	pattern := fmt.Sprintf("%s.*%s", c.key(id), cacheExt)
	matches, err := filepath.Glob(filepath.Join(c.cache.dir(), pattern))
	if err != nil {
		return nil, fmt.Errorf("glob expiring cache: %w", err)
	}
	return matches, nil
}

// Get returns the item stored under id. It returns an error wrapping
// [os.ErrNotExist] if there is none or it expired.
func (c *ExpiringCache[T]) Get(id string) (T, error) {
	var v T
	matches, err := c.matches(id)
	if err != nil {
		return v, err
	}
	if len(matches) == 0 {
		return v, fmt.Errorf("item not found: %w", os.ErrNotExist)
	}

	filename := strings.TrimSuffix(filepath.Base(matches[0]), cacheExt)
	parts := strings.Split(filename, ".")
	expectedFilenameParts := 2 // name and expiration timestamp

	if len(parts) != expectedFilenameParts {
		return v, errors.New("invalid cache filename")
	}

	expiresAt, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return v, errors.New("invalid expiration timestamp")
	}

	if expiresAt < c.now().Unix() {
		if err := os.Remove(matches[0]); err != nil {
			return v, fmt.Errorf("failed to remove expired cache file: %w", err)
		}
		return v, os.ErrNotExist
	}

	if err := ReadJSON(matches[0], &v); err != nil {
		return v, fmt.Errorf("read expiring cache: %w", err)
	}
	return v, nil
}

// Put stores v under id until ttl elapses.
func (c *ExpiringCache[T]) Put(id string, v T, ttl time.Duration) error {
	if err := c.Delete(id); err != nil {
		return err
	}
	expiresAt := c.now().Add(ttl).Unix()
	name := fmt.Sprintf("%s.%d%s", c.key(id), expiresAt, cacheExt)
	if err := WriteJSON(filepath.Join(c.cache.dir(), name), v); err != nil {
		return fmt.Errorf("write expiring cache: %w", err)
	}
	return nil
}

// Delete removes a cached item by its ID.
func (c *ExpiringCache[T]) Delete(id string) error {
	matches, err := c.matches(id)
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			return fmt.Errorf("failed to delete expiring cache file: %w", err)
		}
	}
	return nil
}
