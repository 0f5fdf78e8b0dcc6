package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Entry is one cached completion.
type Entry struct {
	Key       string    `json:"key"`
	Model     string    `json:"model,omitempty"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
	TTL       int       `json:"ttl"`
}

func (e Entry) expired(ttlSeconds int, now time.Time) bool {
	return ttlSeconds > 0 && now.Sub(e.CreatedAt) > time.Duration(ttlSeconds)*time.Second
}

// Cache is a file-backed store of successful batch responses. A disabled
// Cache misses on every Get and drops every Put. Safe for concurrent use:
// entries are written to a temp file and renamed into place.
type Cache struct {
	dir        string
	ttlSeconds int
	enabled    bool
	now        func() time.Time
}

// New creates a new Cache. If dir is empty, uses the default cache directory.
func New(enabled bool, dir string, ttlSeconds int) (*Cache, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	c := &Cache{dir: dir, ttlSeconds: ttlSeconds, enabled: enabled, now: time.Now}
	if !enabled {
		return c, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return c, nil
}

// Get returns the cached response for key. Expired entries are removed.
func (c *Cache) Get(key string) (string, bool) {
	if !c.enabled {
		return "", false
	}
	path := c.entryPath(key)
	entry, err := readEntry(path)
	if err != nil {
		return "", false
	}
	if entry.expired(c.ttlSeconds, c.now()) {
		os.Remove(path)
		return "", false
	}
	return entry.Response, true
}

// Put stores a response under key.
func (c *Cache) Put(key, model, response string) error {
	if !c.enabled {
		return nil
	}
	entry := Entry{
		Key:       key,
		Model:     model,
		Response:  response,
		CreatedAt: c.now(),
		TTL:       c.ttlSeconds,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("creating cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.entryPath(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// Clear removes all cache entries and reports how many were deleted.
func (c *Cache) Clear() (int, error) {
	return c.removeWhere(func(Entry, bool) bool { return true })
}

// Prune removes expired entries and reports how many were deleted.
func (c *Cache) Prune() (int, error) {
	now := c.now()
	return c.removeWhere(func(e Entry, readable bool) bool {
		return !readable || e.expired(c.ttlSeconds, now)
	})
}

func (c *Cache) removeWhere(match func(e Entry, readable bool) bool) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading cache directory: %w", err)
	}
	var removed int
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		entry, readErr := readEntry(path)
		if !match(entry, readErr == nil) {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Stats returns cache statistics.
type Stats struct {
	Dir        string `json:"dir"`
	Enabled    bool   `json:"enabled"`
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"totalBytes"`
	Expired    int    `json:"expired"`
}

// GetStats returns information about the cache.
func (c *Cache) GetStats() (Stats, error) {
	stats := Stats{Dir: c.dir, Enabled: c.enabled}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("reading cache directory: %w", err)
	}
	now := c.now()
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalBytes += info.Size()

		entry, err := readEntry(filepath.Join(c.dir, e.Name()))
		if err != nil {
			continue
		}
		if entry.expired(c.ttlSeconds, now) {
			stats.Expired++
		}
	}
	return stats, nil
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// Enabled returns whether caching is enabled.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// HashKey creates a SHA-256 hash of the given key material.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// BuildKey derives the cache key for one completion request.
func BuildKey(model, systemPrompt, userPrompt string) string {
	return HashKey(strings.Join([]string{model, systemPrompt, userPrompt}, "\x00"))
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, HashKey(key)+".json")
}

func readEntry(path string) (Entry, error) {
	var entry Entry
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	err = json.Unmarshal(data, &entry)
	return entry, err
}

// DefaultDir returns the OS-appropriate cache directory for juris.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "juris"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "juris"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "juris", "cache"), nil
		}
		return filepath.Join(home, "AppData", "Local", "juris", "cache"), nil
	default:
		return filepath.Join(home, ".cache", "juris"), nil
	}
}
