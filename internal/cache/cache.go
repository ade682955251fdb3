// Package cache provides file backed caches and atomic JSON files.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Type represents the type of cache being used.
type Type string

// Cache types for different purposes.
const (
	ToolCache      Type = "tools"
	TemporaryCache Type = "temp"
)

const cacheExt = ".json"

var errInvalidID = errors.New("invalid id")

// Cache is a generic cache implementation that stores JSON documents in
// files.
type Cache[T any] struct {
	baseDir string
	cType   Type
}

// New creates a new cache instance with the specified base directory and cache type.
func New[T any](baseDir string, cacheType Type) (*Cache[T], error) {
	dir := filepath.Join(baseDir, string(cacheType))
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache[T]{
		baseDir: baseDir,
		cType:   cacheType,
	}, nil
}

func (c *Cache[T]) dir() string {
	return filepath.Join(c.baseDir, string(c.cType))
}

func (c *Cache[T]) path(id string) string {
	return filepath.Join(c.dir(), id+cacheExt)
}

// Get decodes the item stored under id.
func (c *Cache[T]) Get(id string) (T, error) {
	var v T
	if id == "" {
		return v, fmt.Errorf("read: %w", errInvalidID)
	}
	if err := ReadJSON(c.path(id), &v); err != nil {
		return v, fmt.Errorf("read: %w", err)
	}
	return v, nil
}

// Put stores v under id, replacing any previous item.
func (c *Cache[T]) Put(id string, v T) error {
	if id == "" {
		return fmt.Errorf("write: %w", errInvalidID)
	}
	if err := WriteJSON(c.path(id), v); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Delete removes a cached item by its ID.
func (c *Cache[T]) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("delete: %w", errInvalidID)
	}
	if err := os.Remove(c.path(id)); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer f.Close() //nolint:errcheck
	bts, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(bts, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// WriteJSON encodes v as indented JSON and replaces the file at path with
// it. The content is written to a temporary file in the same directory
// first, so readers never observe a partial document.
func WriteJSON(path string, v any) error {
	bts, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return WriteFile(path, append(bts, '\n'))
}

// WriteFile atomically replaces the file at path with data.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
