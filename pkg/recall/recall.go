// Package recall provides a public API for the recall conversational
// memory subsystem.
//
// Example usage:
//
//	import "github.com/recall-oss/recall/pkg/recall"
//
//	client, err := recall.Open(".", recall.Options{
//		Generator:  myGenerator,
//		Summarizer: mySummarizer,
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	worker, err := client.Session(recall.NewSessionID())
//	turn, err := worker.Process(ctx, "summarize the release notes", nil)
package recall

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/recall-oss/recall/internal/cache"
	"github.com/recall-oss/recall/internal/config"
	"github.com/recall-oss/recall/internal/event"
	"github.com/recall-oss/recall/internal/memory"
	"github.com/recall-oss/recall/internal/provider"
	"github.com/recall-oss/recall/internal/session"
	"github.com/recall-oss/recall/internal/store"
	"github.com/recall-oss/recall/internal/telemetry"
)

// Options supplies the collaborators a client cannot build itself.
type Options struct {
	Generator  provider.Generator
	Summarizer memory.Summarizer
	Logger     *telemetry.Logger
	Verbose    bool
}

// Client owns the shared store, cache and event bus, and hands out one
// session worker per session id.
type Client struct {
	cfg     *config.Config
	store   *store.Store
	cache   *cache.Cache
	bus     *event.Bus
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	pool    *session.Pool
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.New().String()
}

// Open loads recall.yaml from dir (falling back to defaults when absent)
// and opens the store and cache underneath it.
func Open(dir string, opts Options) (*Client, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("a generator is required")
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		if cfg.Logging.Format == "json" {
			logger = telemetry.NewJSONLogger(opts.Verbose || cfg.Logging.Level == "debug")
		} else {
			logger = telemetry.NewLogger(opts.Verbose || cfg.Logging.Level == "debug")
		}
		if cfg.Logging.File != "" {
			if err := logger.WithFile(resolvePath(dir, cfg.Logging.File)); err != nil {
				logger.Warn("Failed to open log file", "path", cfg.Logging.File, "error", err)
			}
		}
	}

	st, err := store.New(resolvePath(dir, cfg.Store.Path), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	ttl, err := cfg.Cache.ParsedTTL()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("invalid cache ttl: %w", err)
	}
	cachePath := cfg.Cache.Path
	if cachePath != "" {
		cachePath = resolvePath(dir, cachePath)
	}
	responseCache := cache.New(cache.Config{
		MaxEntries:          cfg.Cache.MaxEntries,
		TTL:                 ttl,
		Mode:                cfg.Cache.Mode,
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		Path:                cachePath,
	}, logger)

	metrics := telemetry.NewMetrics()
	st.SetMetrics(metrics)
	responseCache.SetMetrics(metrics)

	bus := event.NewBus(logger)
	bus.Register(event.NewLogHook("telemetry", nil, logger, "debug"))

	summarizer := opts.Summarizer
	if summarizer != nil {
		timeout, err := cfg.Memory.ParsedSummarizationTimeout()
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("invalid summarization timeout: %w", err)
		}
		summarizer = provider.NewTimeoutSummarizer(summarizer, timeout)
	}

	c := &Client{
		cfg:     cfg,
		store:   st,
		cache:   responseCache,
		bus:     bus,
		logger:  logger,
		metrics: metrics,
	}
	c.pool = session.NewPool(session.Deps{
		Config:     cfg,
		Generator:  provider.NewRetryGenerator(opts.Generator, provider.DefaultRetryConfig()),
		Summarizer: summarizer,
		Store:      st,
		Cache:      responseCache,
		Bus:        bus,
		Logger:     logger,
		Metrics:    metrics,
	})

	return c, nil
}

// Session returns the worker for a session id, creating it on first use.
func (c *Client) Session(id string) (*session.Worker, error) {
	return c.pool.Get(id)
}

// SearchHistory searches the durable log across all sessions.
func (c *Client) SearchHistory(query string, limit int) ([]memory.Message, error) {
	return c.store.Search(query, limit)
}

// Recent returns the most recent messages for a session in chronological order.
func (c *Client) Recent(sessionID string, limit int) ([]memory.Message, error) {
	return c.store.Recent(sessionID, limit)
}

// Stats returns durable-log statistics for a session.
func (c *Client) Stats(sessionID string) (*store.SessionSummary, error) {
	return c.store.SessionStats(sessionID)
}

// Sessions lists all known sessions, most recently active first.
func (c *Client) Sessions() ([]store.SessionInfo, error) {
	return c.store.Sessions()
}

// Export serializes a session's full history to JSON.
func (c *Client) Export(sessionID string) ([]byte, error) {
	return c.store.Export(sessionID)
}

// Import loads an exported session, returning the session id it was
// stored under and the number of imported messages.
func (c *Client) Import(data []byte) (string, int, error) {
	return c.store.Import(data)
}

// DeleteSession removes a session from the durable log and drops its worker.
func (c *Client) DeleteSession(sessionID string) error {
	if err := c.store.Delete(sessionID); err != nil {
		return err
	}
	c.pool.Drop(sessionID)
	return nil
}

// CacheStats reports response-cache effectiveness.
func (c *Client) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// Metrics returns a snapshot of runtime counters.
func (c *Client) Metrics() map[string]interface{} {
	return c.metrics.GetSummary()
}

// Bus exposes the event bus for registering hooks.
func (c *Client) Bus() *event.Bus {
	return c.bus
}

// Config returns the loaded configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Close flushes the cache snapshot and closes the store.
func (c *Client) Close() error {
	cacheErr := c.cache.Close()
	storeErr := c.store.Close()
	if storeErr != nil {
		return storeErr
	}
	return cacheErr
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
