package config

import "time"

// Config represents the main project configuration (recall.yaml)
type Config struct {
	Name      string        `yaml:"name" json:"name"`
	Version   string        `yaml:"version" json:"version"`
	Workspace string        `yaml:"workspace" json:"workspace"` // contextual tag attached to sessions
	Memory    MemoryConfig  `yaml:"memory" json:"memory"`
	Store     StoreConfig   `yaml:"store" json:"store"`
	Cache     CacheConfig   `yaml:"cache" json:"cache"`
	Logging   LoggingConfig `yaml:"logging" json:"logging"`
}

// MemoryConfig configures the rotation memory tier.
type MemoryConfig struct {
	MaxActiveMessages    int    `yaml:"max_active_messages" json:"max_active_messages"`
	RotationBatchSize    int    `yaml:"rotation_batch_size" json:"rotation_batch_size"`
	SummarizationTimeout string `yaml:"summarization_timeout" json:"summarization_timeout"` // e.g. "30s"
	MaxContentLength     int    `yaml:"max_content_length" json:"max_content_length"`
	ContextBudgetChars   int    `yaml:"context_budget_chars" json:"context_budget_chars"`
}

// StoreConfig configures the durable indexed store.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"` // sqlite file path
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	TTL                 string  `yaml:"ttl" json:"ttl"` // e.g. "24h"
	MaxEntries          int     `yaml:"max_entries" json:"max_entries"`
	Mode                string  `yaml:"mode" json:"mode"` // exact, similarity
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	Path                string  `yaml:"path,omitempty" json:"path,omitempty"` // snapshot file; empty = memory only
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text, json
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// ParsedSummarizationTimeout converts the timeout string to time.Duration.
func (m *MemoryConfig) ParsedSummarizationTimeout() (time.Duration, error) {
	if m.SummarizationTimeout == "" {
		return 30 * time.Second, nil // default
	}
	return time.ParseDuration(m.SummarizationTimeout)
}

// ParsedTTL converts the cache TTL string to time.Duration.
func (c *CacheConfig) ParsedTTL() (time.Duration, error) {
	if c.TTL == "" {
		return 24 * time.Hour, nil // default
	}
	return time.ParseDuration(c.TTL)
}
