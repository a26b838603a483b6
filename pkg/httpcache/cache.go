// Package httpcache caches successful GET responses from the lookup services.
// Entries live in an otter cache and may optionally be persisted to disk so a
// restarted CLI does not repeat lookups for places it has already resolved.
package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

const (
	cacheFile    = "lookups.gob"
	maxEntries   = 50_000
	saveInterval = 15 * time.Minute
)

// Entry is a cached response body.
type Entry struct {
	ExpiresAt time.Time
	Data      []byte
}

// Cache is an expiring response cache keyed by request URL.
type Cache struct {
	cache      *otter.Cache[string, Entry]
	logger     *slog.Logger
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	ttl        time.Duration
	mu         sync.Mutex
}

// NewMemoryCache creates a cache that is never written to disk.
func NewMemoryCache(ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		cache: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:      maxEntries,
			ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
		}),
		ttl:    ttl,
		logger: logger,
	}
}

// NewDiskCache creates a cache that loads previous entries from dir and saves
// them back periodically and on Close.
func NewDiskCache(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := NewMemoryCache(ttl, logger)
	c.dir = dir

	if err := c.loadFromDisk(); err != nil {
		c.logger.Warn("failed to load cache from disk", "error", err)
	}
	c.logger.Debug("cache initialized", "dir", dir, "entries_loaded", c.cache.EstimatedSize())

	c.startPeriodicSave(ctx)
	return c, nil
}

func key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

// Get returns the cached body for url.
func (c *Cache) Get(url string) ([]byte, bool) {
	k := key(url)
	entry, found := c.cache.GetIfPresent(k)
	if !found {
		c.logger.Debug("cache miss", "url", url)
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		c.cache.Invalidate(k)
		c.logger.Debug("cache miss", "url", url, "reason", "expired", "expired_at", entry.ExpiresAt)
		return nil, false
	}
	return entry.Data, true
}

// Set stores body for url.
func (c *Cache) Set(url string, body []byte) {
	entry := Entry{Data: body, ExpiresAt: time.Now().Add(c.ttl)}
	c.cache.Set(key(url), entry)
	c.logger.Debug("cache set", "url", url, "expires_at", entry.ExpiresAt, "size", len(body))
}

// Len returns the approximate number of cached entries.
func (c *Cache) Len() int {
	return c.cache.EstimatedSize()
}

func (c *Cache) loadFromDisk() error {
	path := filepath.Join(c.dir, cacheFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			c.logger.Debug("failed to close cache file", "error", err)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}

	now := time.Now()
	valid := 0
	for k, entry := range entries {
		if now.Before(entry.ExpiresAt) {
			c.cache.Set(k, entry)
			valid++
		}
	}
	c.logger.Debug("loaded cache from disk", "path", path, "total_entries", len(entries), "valid_entries", valid)
	return nil
}

func (c *Cache) saveToDisk() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, cacheFile)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
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

	if err := gob.NewEncoder(f).Encode(entries); err != nil {
		_ = f.Close() //nolint:errcheck // encode error takes precedence
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	c.logger.Debug("cache saved to disk", "entries", len(entries), "path", path)
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

// Close stops periodic saving and writes a final snapshot for disk caches.
func (c *Cache) Close() error {
	if c.dir == "" {
		return nil
	}
	if c.saveCancel != nil {
		c.saveCancel()
	}
	c.saveWg.Wait()
	return c.saveToDisk()
}

// HTTPClient is the subset of *http.Client used here.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client serves GET requests from the cache before delegating to next.
type Client struct {
	cache  *Cache
	next   HTTPClient
	logger *slog.Logger
}

// NewClient wraps next with cache. A nil cache disables caching.
func NewClient(cache *Cache, next HTTPClient, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cache: cache, next: next, logger: logger}
}

// Do performs req, answering from the cache when possible. Only 200 responses
// are stored.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.cache == nil || req.Method != http.MethodGet {
		return c.next.Do(req)
	}

	url := req.URL.String()
	if data, ok := c.cache.Get(url); ok {
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Body:       io.NopCloser(bytes.NewReader(data)),
			Header:     make(http.Header),
			Request:    req,
		}
		resp.Header.Set("X-From-Cache", "true")
		return resp, nil
	}

	resp, err := c.next.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.Debug("failed to close response body", "error", closeErr)
	}
	if err != nil {
		return nil, err
	}
	c.cache.Set(url, body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
