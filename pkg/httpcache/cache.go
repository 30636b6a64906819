// Package httpcache caches GitHub API responses and generation results in an
// otter cache, optionally persisted to disk between runs.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/maypok86/otter/v2"
)

const (
	cacheFile    = "ghweekly-cache.gob"
	saveInterval = 15 * time.Minute
	maxEntries   = 50_000
)

// Entry is one cached response.
type Entry struct {
	ExpiresAt   time.Time
	ContentType string
	ETag        string
	Data        []byte
}

// Cache is a TTL cache of response bodies. A Cache created without a
// directory lives only in memory.
type Cache struct {
	cache      *otter.Cache[string, Entry]
	logger     *slog.Logger
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	ttl        time.Duration
	mu         sync.Mutex
}

// New creates a disk-backed cache in dir, loading any previous contents and
// saving periodically until ctx is done or Close is called.
func New(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating cache directory")
	}

	c := newCache(dir, ttl, logger)
	if err := c.loadFromDisk(); err != nil {
		logger.Warn("failed to load cache from disk", "error", err)
	}
	logger.Info("cache initialized", "dir", dir, "entries_loaded", c.cache.EstimatedSize())

	c.startPeriodicSave(ctx)
	return c, nil
}

// NewMemoryOnly creates a cache that is never written to disk.
func NewMemoryOnly(ttl time.Duration, logger *slog.Logger) *Cache {
	return newCache("", ttl, logger)
}

func newCache(dir string, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		cache: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:      maxEntries,
			InitialCapacity:  1_000,
			ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
		}),
		dir:    dir,
		ttl:    ttl,
		logger: logger,
	}
}

// key hashes the parts identifying a request.
func key(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a live entry.
func (c *Cache) Get(k string) (Entry, bool) {
	entry, found := c.cache.GetIfPresent(k)
	if !found {
		return Entry{}, false
	}
	if time.Now().After(entry.ExpiresAt) {
		c.cache.Invalidate(k)
		return Entry{}, false
	}
	return entry, true
}

// Set stores an entry under k for the cache TTL.
func (c *Cache) Set(k string, entry Entry) {
	entry.ExpiresAt = time.Now().Add(c.ttl)
	c.cache.Set(k, entry)
}

// APICall returns the cached result of a non-HTTP call, such as a generation
// request, identified by name and payload.
func (c *Cache) APICall(name string, payload []byte) ([]byte, bool) {
	entry, found := c.Get(key([]byte(name), payload))
	if !found {
		c.logger.Debug("API cache miss", "name", name)
		return nil, false
	}
	return entry.Data, true
}

// SetAPICall stores the result of a non-HTTP call.
func (c *Cache) SetAPICall(name string, payload, data []byte) error {
	c.Set(key([]byte(name), payload), Entry{Data: data})
	c.logger.Debug("API cache set", "name", name, "size", len(data))
	return nil
}

// Len returns the approximate number of entries.
func (c *Cache) Len() int {
	return c.cache.EstimatedSize()
}

func (c *Cache) path() string {
	return filepath.Join(c.dir, cacheFile)
}

func (c *Cache) loadFromDisk() error {
	file, err := os.Open(c.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "opening cache file")
	}
	defer func() {
		if err := file.Close(); err != nil {
			c.logger.Debug("failed to close cache file", "error", err)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(file).Decode(&entries); err != nil {
		return errors.Wrap(err, "decoding cache file")
	}

	now := time.Now()
	valid := 0
	for k, entry := range entries {
		if now.Before(entry.ExpiresAt) {
			c.cache.Set(k, entry)
			valid++
		}
	}
	c.logger.Debug("loaded cache from disk", "path", c.path(), "total", len(entries), "valid", valid)
	return nil
}

func (c *Cache) saveToDisk() error {
	if c.dir == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tmp := c.path() + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "creating temp cache file")
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			c.logger.Debug("failed to remove temp file", "error", err)
		}
	}()

	entries := make(map[string]Entry)
	now := time.Now()
	for k, entry := range c.cache.All() {
		if now.Before(entry.ExpiresAt) {
			entries[k] = entry
		}
	}

	if err := gob.NewEncoder(file).Encode(entries); err != nil {
		_ = file.Close() //nolint:errcheck // already failing
		return errors.Wrap(err, "encoding cache")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "closing cache file")
	}
	if err := os.Rename(tmp, c.path()); err != nil {
		return errors.Wrap(err, "replacing cache file")
	}

	c.logger.Debug("cache saved to disk", "entries", len(entries), "path", c.path())
	return nil
}

func (c *Cache) startPeriodicSave(ctx context.Context) {
	saveCtx, cancel := context.WithCancel(ctx)
	c.saveCancel = cancel

	c.saveWg.Add(1)
	go func() {
		defer c.saveWg.Done()

		ticker := time.NewTicker(saveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-saveCtx.Done():
				return
			case <-ticker.C:
				if err := c.saveToDisk(); err != nil {
					c.logger.Error("periodic cache save failed", "error", err)
				}
			}
		}
	}()
}

// Close stops periodic saving and writes the cache to disk one last time.
func (c *Cache) Close() error {
	if c.saveCancel != nil {
		c.saveCancel()
	}
	c.saveWg.Wait()
	return c.saveToDisk()
}

// Client returns an *http.Client whose transport consults c.
func (c *Cache) Client(base http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: NewTransport(c, base, c.logger)}
}
