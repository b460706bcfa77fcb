package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/orgraph/pkg/cache"
	"github.com/matzehuels/orgraph/pkg/config"
)

func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the content cache",
	}
	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	return cmd
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached file contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := c.printer()
			backend, err := c.newCacheBackend(cmd.Context())
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer backend.Close()

			switch b := backend.(type) {
			case *cache.FileCache:
				if err := b.Clear(); err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				p.success("Cleared cache")
				p.detail("Directory: %s", b.Dir())
			case *cache.RedisCache:
				if err := b.Clear(cmd.Context()); err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				p.success("Cleared cache")
				p.detail("Redis: %s", c.Config.Cache.RedisAddr)
			default:
				p.info("Cache is disabled")
			}
			return nil
		},
	}
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the cache is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch c.Config.Cache.Backend {
			case config.CacheRedis:
				fmt.Fprintf(c.out, "redis://%s/%d\n", c.Config.Cache.RedisAddr, c.Config.Cache.RedisDB)
			case config.CacheNone:
				fmt.Fprintln(c.out, "disabled")
			default:
				fmt.Fprintln(c.out, c.cacheDir())
			}
			return nil
		},
	}
}
