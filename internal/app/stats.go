package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"horse.fit/newswatch/internal/cli"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	days := fs.Int("days", 7, "Lookback window in days")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}
	if *days < 1 {
		fmt.Fprintln(os.Stderr, "--days must be >= 1")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, _, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	stats, err := pool.QueryStatistics(ctx, time.Duration(*days)*24*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query statistics: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Printf("Last %d day(s): %d articles across %d stories from %d sources (%s)\n",
		*days,
		stats.TotalArticles,
		stats.TotalStories,
		stats.DistinctSource,
		strings.Join(stats.Languages, ", "),
	)

	entities := make([]string, 0, len(stats.EntityCounts))
	for name := range stats.EntityCounts {
		entities = append(entities, name)
	}
	sort.Strings(entities)

	tableRows := make([][]string, 0, len(entities))
	for _, name := range entities {
		tableRows = append(tableRows, []string{name, fmt.Sprintf("%d", stats.EntityCounts[name])})
	}

	if err := writeTable([]string{"ENTITY", "ARTICLES"}, tableRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
