package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/newswatch/internal/cli"
	"horse.fit/newswatch/internal/report"
)

func runReport(args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	days := fs.Int("days", 1, "Report window in days")
	person := fs.String("person", "", "Limit the report to one tracked entity")
	outDir := fs.String("out", "", "Output directory (overrides OUTPUT_FOLDER)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *days < 1 {
		fmt.Fprintln(os.Stderr, "--days must be >= 1")
		return 2
	}

	ctx, cancel, cfg, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	stories, err := pool.StoriesGrouped(ctx, time.Duration(*days)*24*time.Hour, *person)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query stories: %v\n", err)
		return 1
	}

	outputDir := strings.TrimSpace(*outDir)
	if outputDir == "" {
		outputDir = cfg.OutputFolder
	}

	path, err := report.Write(outputDir, stories)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
		return 1
	}

	fmt.Printf("stories=%d report=%s\n", len(stories), path)
	return 0
}
