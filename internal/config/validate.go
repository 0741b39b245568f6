package config

import (
	"fmt"
	"strings"

	recallErrors "github.com/recall-oss/recall/internal/errors"
)

// Validate checks a fully-defaulted configuration.
func Validate(cfg *Config) error {
	var errors []string

	if cfg.Memory.MaxActiveMessages < 1 {
		errors = append(errors, "memory.max_active_messages must be at least 1")
	}
	if cfg.Memory.RotationBatchSize < 1 {
		errors = append(errors, "memory.rotation_batch_size must be at least 1")
	}
	if cfg.Memory.RotationBatchSize > cfg.Memory.MaxActiveMessages {
		errors = append(errors, "memory.rotation_batch_size must not exceed memory.max_active_messages")
	}
	if _, err := cfg.Memory.ParsedSummarizationTimeout(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid memory.summarization_timeout: %v", err))
	}
	if cfg.Memory.ContextBudgetChars < 1 {
		errors = append(errors, "memory.context_budget_chars must be positive")
	}

	if cfg.Store.Path == "" {
		errors = append(errors, "store.path is required")
	}

	if _, err := cfg.Cache.ParsedTTL(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid cache.ttl: %v", err))
	}
	if cfg.Cache.MaxEntries < 1 {
		errors = append(errors, "cache.max_entries must be at least 1")
	}
	validModes := map[string]bool{"exact": true, "similarity": true}
	if !validModes[cfg.Cache.Mode] {
		errors = append(errors, fmt.Sprintf("invalid cache.mode: %s", cfg.Cache.Mode))
	}
	if cfg.Cache.SimilarityThreshold < 0 || cfg.Cache.SimilarityThreshold > 1 {
		errors = append(errors, "cache.similarity_threshold must be in [0,1]")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errors = append(errors, fmt.Sprintf("invalid logging.level: %s", cfg.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[cfg.Logging.Format] {
		errors = append(errors, fmt.Sprintf("invalid logging.format: %s", cfg.Logging.Format))
	}

	if len(errors) > 0 {
		return recallErrors.New(recallErrors.CodeConfigInvalid,
			"config validation failed: "+strings.Join(errors, "; "))
	}
	return nil
}
