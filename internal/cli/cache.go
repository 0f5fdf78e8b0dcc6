package cli

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dshills/juris/internal/cache"
	"github.com/dshills/juris/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the batch response cache",
}

// openCacheForMaintenance opens the configured cache directory regardless of
// whether caching is enabled for reviews.
func openCacheForMaintenance() (*cache.Cache, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, err
	}
	c, err := cache.New(true, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		return nil, eris.Wrap(err, "opening cache")
	}
	return c, nil
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all cached batch responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCacheForMaintenance()
		if err != nil {
			return err
		}
		n, err := c.Clear()
		if err != nil {
			return eris.Wrap(err, "clearing cache")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%d entries removed).\n", n)
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCacheForMaintenance()
		if err != nil {
			return err
		}
		n, err := c.Prune()
		if err != nil {
			return eris.Wrap(err, "pruning cache")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries.\n", n)
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
		if err != nil {
			return eris.Wrap(err, "opening cache")
		}
		if !c.Enabled() {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache is disabled.")
			return nil
		}
		stats, err := c.GetStats()
		if err != nil {
			return eris.Wrap(err, "reading cache stats")
		}
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheShowCmd)
}
