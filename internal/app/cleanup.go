package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/newswatch/internal/cli"
	"horse.fit/newswatch/internal/globaltime"
)

func runCleanup(args []string) int {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	days := fs.Int("days", 0, "Retention horizon in days (overrides DAYS_TO_KEEP)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "cleanup does not accept positional arguments")
		return 2
	}

	ctx, cancel, cfg, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	retention := cfg.DaysToKeep
	if *days > 0 {
		retention = *days
	}

	cutoff := globaltime.UTC().AddDate(0, 0, -retention)
	removed, err := pool.CleanupOlderThan(ctx, cutoff)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		return 1
	}

	fmt.Printf("cutoff=%s removed_articles=%d removed_clusters=%d\n",
		cutoff.Format(time.RFC3339), removed.Articles, removed.Clusters)
	return 0
}
