package main

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixml/tileqc"
	"github.com/helixml/tileqc/internal/config"
	"github.com/helixml/tileqc/internal/log"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the result cache",
	}
	cmd.PersistentFlags().String("cache-dir", "", "Cache directory (default: ~/.tileqc/cache)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached analysis results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := openCacheClient(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			entries, err := client.CacheEntries(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "CREATED\tBASENAME\tMODULES\tFILE")
			for _, e := range entries {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format(time.RFC3339), e.Basename, strings.Join(e.Tags, ","), e.Fingerprint.Path)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove invalid, expired and oversize cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := openCacheClient(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			report, err := client.PruneCache(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d invalid, %d expired, %d oversize (%d bytes)\n",
				report.Invalid, report.Expired, report.Oversize, report.FreedBytes)
			return nil
		},
	})

	return cmd
}

func openCacheClient(cmd *cobra.Command) (*tileqc.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("cache-dir"); dir != "" {
		cfg = cfg.Apply(config.WithCacheDir(dir))
	}
	if !cfg.UseCache() {
		return nil, tileqc.ErrCacheDisabled
	}

	logger := log.Configure(cfg).Slog()
	logger.Debug("opening result cache", slog.String("dir", cfg.CacheDir()))

	return tileqc.New(tileqc.WithAppConfig(cfg), tileqc.WithLogger(logger))
}
