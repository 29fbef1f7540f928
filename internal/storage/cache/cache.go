// Package cache provides a simple in-file cache implementation.
package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Type represents the type of cache being used.
type Type string

// Cache types for different purposes.
const (
	TranscriptCache Type = "transcripts"
)

const (
	cacheExt       = ".json"
	shardPrefixLen = 2
)

var errInvalidID = errors.New("invalid id")

// Cache is a generic cache implementation that stores data in files.
type Cache[T any] struct {
	baseDir string
	cType   Type
}

// New creates a new cache instance with the specified base directory and cache type.
func New[T any](baseDir string, cacheType Type) (*Cache[T], error) {
	dir := filepath.Join(baseDir, string(cacheType))
	if err := os.MkdirAll(dir, 0o700); err != nil {
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

// filePath shards by the characters following the resource prefix, since
// every run ID shares the same leading "run_".
func (c *Cache[T]) filePath(id string) string {
	key := id
	if _, rest, ok := strings.Cut(id, "_"); ok {
		key = rest
	}
	if len(key) < shardPrefixLen {
		return filepath.Join(c.dir(), id+cacheExt)
	}
	return filepath.Join(c.dir(), key[:shardPrefixLen], id+cacheExt)
}

// validID accepts service IDs only, so neither the file name nor the shard
// directory can leave the cache directory.
func validID(id string) bool {
	return id != "" && strings.IndexFunc(id, func(r rune) bool {
		return r != '_' && r != '-' && !('a' <= r && r <= 'z') && !('A' <= r && r <= 'Z') && !('0' <= r && r <= '9')
	}) < 0
}

// Read opens the cached item and hands it to readFn.
func (c *Cache[T]) Read(id string, readFn func(io.Reader) error) error {
	if !validID(id) {
		return fmt.Errorf("read: %w", errInvalidID)
	}
	file, err := os.Open(c.filePath(id))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	defer file.Close() //nolint:errcheck

	if err := readFn(file); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return nil
}

// Write atomically replaces the cached item with whatever writeFn produces.
func (c *Cache[T]) Write(id string, writeFn func(io.Writer) error) error {
	if !validID(id) {
		return fmt.Errorf("write: %w", errInvalidID)
	}

	path := c.filePath(id)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeFn(tmp); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Delete removes a cached item by its ID.
func (c *Cache[T]) Delete(id string) error {
	if !validID(id) {
		return fmt.Errorf("delete: %w", errInvalidID)
	}
	if err := os.Remove(c.filePath(id)); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Exists reports whether an item is cached under id.
func (c *Cache[T]) Exists(id string) bool {
	if !validID(id) {
		return false
	}
	_, err := os.Stat(c.filePath(id))
	return err == nil
}

// IDs returns the IDs of every cached item, sorted.
func (c *Cache[T]) IDs() ([]string, error) {
	var ids []string
	err := filepath.WalkDir(c.dir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, ".tmp-") || filepath.Ext(name) != cacheExt {
			return nil
		}
		ids = append(ids, strings.TrimSuffix(name, cacheExt))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
