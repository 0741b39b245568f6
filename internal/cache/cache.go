package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/recall-oss/recall/internal/telemetry"
)

// Cache modes.
const (
	ModeExact      = "exact"
	ModeSimilarity = "similarity"
)

// Entry is one cached response keyed by its request fingerprint.
type Entry struct {
	Key         string    `json:"key"`
	Prompt      string    `json:"prompt"` // normalized, kept for similarity matching
	ContextHash string    `json:"context_hash"`
	Output      string    `json:"output"`
	Model       string    `json:"model,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastAccess  time.Time `json:"last_access"`
	Hits        int       `json:"hits"`
}

func (e *Entry) size() int {
	return len(e.Prompt) + len(e.Output) + len(e.Key) + len(e.ContextHash)
}

func (e *Entry) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) >= ttl
}

// Config bounds a response cache.
type Config struct {
	MaxEntries          int
	TTL                 time.Duration
	Mode                string // exact, similarity
	SimilarityThreshold float64
	Path                string // snapshot file; empty = memory only
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	Evictions  int64   `json:"evictions"`
	EntryCount int     `json:"entry_count"`
	ApproxSize int     `json:"approx_size_bytes"`
}

// Cache maps request fingerprints to previously produced outputs, bounded
// by entry count with TTL expiry and strict LRU eviction. The cache is
// advisory: every internal fault degrades to a miss or no-op.
type Cache struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*Entry
	hits    int64
	misses  int64
	evicted int64
	logger  *telemetry.Logger
	metrics *telemetry.Metrics

	// now is the clock, injectable for TTL-boundary tests.
	now func() time.Time
}

// New creates a response cache. If a snapshot path is configured, the
// previous snapshot is loaded; a broken snapshot starts the cache empty
// rather than failing.
func New(cfg Config, logger *telemetry.Logger) *Cache {
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSimilarity
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = 0.85
	}
	if logger == nil {
		logger = telemetry.NewLogger(false)
	}

	c := &Cache{
		cfg:     cfg,
		entries: make(map[string]*Entry),
		logger:  logger,
		now:     time.Now,
	}

	if cfg.Path != "" {
		c.loadSnapshot()
	}

	return c
}

// SetMetrics attaches a metrics collector.
func (c *Cache) SetMetrics(metrics *telemetry.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = metrics
}

// Get returns a cached output for the prompt and attached context.
// Expired entries are treated as misses and lazily removed; TTL is
// checked before any similarity match is considered.
func (c *Cache) Get(prompt string, contexts []string, model string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	key := Fingerprint(prompt, contexts)

	if entry, ok := c.entries[key]; ok {
		if entry.expired(now, c.cfg.TTL) {
			delete(c.entries, key)
		} else if model == "" || entry.Model == "" || entry.Model == model {
			entry.Hits++
			entry.LastAccess = now
			c.recordHit()
			return entry.Output, true
		}
	}

	if c.cfg.Mode == ModeSimilarity {
		if entry := c.findSimilarLocked(prompt, contexts, model, now); entry != nil {
			entry.Hits++
			entry.LastAccess = now
			c.recordHit()
			return entry.Output, true
		}
	}

	c.recordMiss()
	return "", false
}

// findSimilarLocked scans entries sharing the same context identity for
// the best token-set match at or above the threshold. Linear in the
// entry count, which the capacity bound keeps small. Caller holds c.mu.
func (c *Cache) findSimilarLocked(prompt string, contexts []string, model string, now time.Time) *Entry {
	ctxHash := contextIdentity(contexts)
	promptWords := wordSet(prompt)

	var best *Entry
	bestScore := 0.0
	for _, entry := range c.entries {
		if entry.ContextHash != ctxHash {
			continue
		}
		if model != "" && entry.Model != "" && entry.Model != model {
			continue
		}
		if entry.expired(now, c.cfg.TTL) {
			continue
		}
		score := jaccard(promptWords, wordSet(entry.Prompt))
		if score >= c.cfg.SimilarityThreshold && score > bestScore {
			bestScore = score
			best = entry
		}
	}

	if best != nil {
		c.logger.Debug("similar cache hit", "similarity", fmt.Sprintf("%.2f", bestScore))
	}
	return best
}

// Put inserts a new entry, evicting the least-recently-used entry first
// when capacity is reached.
func (c *Cache) Put(prompt string, contexts []string, output, model string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	key := Fingerprint(prompt, contexts)

	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.cfg.MaxEntries {
			c.evictLRULocked()
		}
	}

	c.entries[key] = &Entry{
		Key:         key,
		Prompt:      normalize(prompt),
		ContextHash: contextIdentity(contexts),
		Output:      output,
		Model:       model,
		CreatedAt:   now,
		LastAccess:  now,
	}
}

// evictLRULocked removes the entry with the oldest last access.
// Caller holds c.mu.
func (c *Cache) evictLRULocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.LastAccess.Before(oldest) {
			oldestKey = key
			oldest = entry.LastAccess
		}
	}
	if oldestKey == "" {
		return
	}
	delete(c.entries, oldestKey)
	c.evicted++
	if c.metrics != nil {
		c.metrics.IncCacheEvictions()
	}
}

// Cleanup sweeps all TTL-expired entries and returns the removed count.
// Exposed as an operator action, not run implicitly on every access.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if entry.expired(now, c.cfg.TTL) {
			delete(c.entries, key)
			removed++
		}
	}

	if c.cfg.Path != "" {
		c.saveSnapshotLocked()
	}

	c.logger.Info("cache cleanup", "removed", removed, "remaining", len(c.entries))
	return removed
}

// Clear empties the cache and resets its counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
	c.hits, c.misses, c.evicted = 0, 0, 0

	if c.cfg.Path != "" {
		c.saveSnapshotLocked()
	}
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit/miss counters and sizing.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	s := Stats{
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evicted,
		EntryCount: len(c.entries),
	}
	if total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	for _, entry := range c.entries {
		s.ApproxSize += entry.size()
	}
	return s
}

// Close persists the snapshot when one is configured.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.Path != "" {
		c.saveSnapshotLocked()
	}
	return nil
}

func (c *Cache) recordHit() {
	c.hits++
	if c.metrics != nil {
		c.metrics.IncCacheHits()
	}
}

func (c *Cache) recordMiss() {
	c.misses++
	if c.metrics != nil {
		c.metrics.IncCacheMisses()
	}
}
