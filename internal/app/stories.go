package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/newswatch/internal/cli"
)

func runStories(args []string) int {
	fs := flag.NewFlagSet("stories", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	days := fs.Int("days", 7, "Lookback window in days")
	person := fs.String("person", "", "Filter by tracked entity name")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

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

	stories, err := pool.StoriesGrouped(ctx, time.Duration(*days)*24*time.Hour, *person)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query stories: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stories); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	tableRows := make([][]string, 0, len(stories))
	for _, story := range stories {
		published := ""
		if story.Published != nil {
			published = story.Published.UTC().Format("2006-01-02 15:04")
		}
		tableRows = append(tableRows, []string{
			truncateForTable(story.Headline, 80),
			story.EntityName,
			story.Category,
			fmt.Sprintf("%d", story.SourceCount),
			truncateForTable(strings.Join(story.SourceNames, ", "), 60),
			strings.Join(story.Languages, ","),
			published,
		})
	}

	if err := writeTable(
		[]string{"HEADLINE", "ENTITY", "CATEGORY", "SOURCES", "SOURCE NAMES", "LANGS", "PUBLISHED"},
		tableRows,
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
