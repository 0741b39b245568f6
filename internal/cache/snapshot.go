package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// snapshot is the on-disk form of the cache.
type snapshot struct {
	Entries []*Entry `json:"entries"`
}

// loadSnapshot restores the previous snapshot, dropping entries that
// already expired. Any failure leaves the cache empty; a broken
// snapshot must never block the request path.
func (c *Cache) loadSnapshot() {
	data, err := os.ReadFile(c.cfg.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("cache snapshot unreadable, starting empty", "path", c.cfg.Path, "error", err)
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("cache snapshot corrupt, starting empty", "path", c.cfg.Path, "error", err)
		return
	}

	now := c.now()
	for _, entry := range snap.Entries {
		if entry == nil || entry.Key == "" || entry.expired(now, c.cfg.TTL) {
			continue
		}
		c.entries[entry.Key] = entry
	}
	c.logger.Debug("cache snapshot loaded", "entries", len(c.entries))
}

// saveSnapshotLocked writes the snapshot. Failures are logged and
// swallowed. Caller holds c.mu.
func (c *Cache) saveSnapshotLocked() {
	snap := snapshot{Entries: make([]*Entry, 0, len(c.entries))}
	for _, entry := range c.entries {
		snap.Entries = append(snap.Entries, entry)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		c.logger.Warn("cache snapshot marshal failed", "error", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(c.cfg.Path), 0755); err != nil {
		c.logger.Warn("cache snapshot directory failed", "error", err)
		return
	}
	if err := os.WriteFile(c.cfg.Path, data, 0644); err != nil {
		c.logger.Warn("cache snapshot write failed", "path", c.cfg.Path, "error", err)
	}
}
