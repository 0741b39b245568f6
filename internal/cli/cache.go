package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/recall-oss/recall/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the response cache",
	Long: `Operate on the on-disk response cache snapshot.

Examples:
  recall cache stats
  recall cache cleanup
  recall cache clear`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache occupancy",
	RunE:  runCacheStats,
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired entries",
	RunE:  runCacheCleanup,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached responses",
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

// openCache loads the cache from its configured snapshot path. Without a
// snapshot path there is nothing durable to operate on.
func openCache() (*cache.Cache, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Path == "" {
		return nil, fmt.Errorf("no cache path configured; the cache is in-memory only")
	}

	ttl, err := cfg.Cache.ParsedTTL()
	if err != nil {
		return nil, fmt.Errorf("invalid cache ttl: %w", err)
	}

	path := cfg.Cache.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(configDir(), path)
	}

	return cache.New(cache.Config{
		MaxEntries:          cfg.Cache.MaxEntries,
		TTL:                 ttl,
		Mode:                cfg.Cache.Mode,
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		Path:                path,
	}, newLogger()), nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}

	stats := c.Stats()
	fmt.Println("Response cache:")
	fmt.Printf("  Entries:      %d\n", stats.EntryCount)
	fmt.Printf("  Approx size:  %d bytes\n", stats.ApproxSize)
	return nil
}

func runCacheCleanup(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}

	removed := c.Cleanup()
	fmt.Printf("Removed %d expired entries, %d remain\n", removed, c.Len())
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}

	n := c.Len()
	c.Clear()
	if err := c.Close(); err != nil {
		return err
	}
	fmt.Printf("Cleared %d cached responses\n", n)
	return nil
}
