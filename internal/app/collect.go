package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/newswatch/internal/cli"
	"horse.fit/newswatch/internal/config"
	"horse.fit/newswatch/internal/logging"
	"horse.fit/newswatch/internal/normalize"
	"horse.fit/newswatch/internal/pipeline"
	"horse.fit/newswatch/internal/relevance"
	"horse.fit/newswatch/internal/semantic"
	"horse.fit/newswatch/internal/source"
	"horse.fit/newswatch/schema"

	"github.com/rs/zerolog"
)

func runCollect(args []string) int {
	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 15*time.Minute, "Command timeout")
	watchlistPath := fs.String("watchlist", "", "Watchlist JSON path (overrides config)")
	maxResults := fs.Int("max-results", 50, "Maximum articles per source query")
	writeReport := fs.Bool("report", true, "Write a CSV report when new articles arrive")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "collect does not accept positional arguments")
		return 2
	}

	ctx, cancel, cfg, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	path := strings.TrimSpace(*watchlistPath)
	if path == "" {
		path = cfg.WatchlistPath
	}
	watchlist, err := watchschema.LoadWatchlistFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid watchlist: %v\n", err)
		return 2
	}

	categorizer, err := normalize.LoadCategorizer(cfg.CategoriesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid category rules: %v\n", err)
		return 2
	}

	svc := buildCollectService(cfg, pool, categorizer, *maxResults, *writeReport, logger)
	result, err := svc.RunCycle(ctx, watchlist)
	if err != nil {
		logger.Error().Err(err).Msg("collection cycle failed")
		fmt.Fprintf(os.Stderr, "Collect failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"new_articles=%d clusters_touched=%d standalone=%d source_errors=%d removed_articles=%d removed_clusters=%d duration=%s\n",
		result.NewArticles,
		result.ClustersTouched,
		result.Standalone,
		result.SourceErrors,
		result.Removed.Articles,
		result.Removed.Clusters,
		result.Duration.Round(time.Millisecond),
	)
	if result.ReportPath != "" {
		fmt.Printf("report=%s\n", result.ReportPath)
	}
	return 0
}

// buildCollectService wires the fixed source order: the clustered API first,
// then the two feed sources whose results are grouped locally.
func buildCollectService(
	cfg *config.Config,
	store pipeline.Store,
	categorizer *normalize.Categorizer,
	maxResults int,
	writeReport bool,
	logger zerolog.Logger,
) *pipeline.Service {
	sources := []source.Client{
		source.NewNewscatcherClient(cfg.NewscatcherBaseURL, cfg.NewscatcherAPIKey, logger),
		source.NewGoogleNewsClient(cfg.GoogleNewsBaseURL, logger),
	}
	if strings.TrimSpace(cfg.NewsdataAPIKey) != "" {
		sources = append(sources, source.NewNewsdataClient(cfg.NewsdataBaseURL, cfg.NewsdataAPIKey, logger))
	}

	embedder := semantic.NewHTTPEmbedder(semantic.EmbedderOptions{
		Endpoint:       cfg.EmbedEndpoint,
		Model:          cfg.EmbedModelName,
		RequestTimeout: cfg.EmbedTimeout,
	})
	clusterer := semantic.NewClusterer(embedder, cfg.FeedClusterSimilMin)
	gate := relevance.NewGate(relevance.NewProseExtractor(), logger)
	normalizer := normalize.NewNormalizer(categorizer, logger)

	return pipeline.NewService(store, sources, gate, normalizer, clusterer, pipeline.Options{
		Country:          cfg.Country,
		DefaultLanguages: cfg.LanguageList(),
		MaxResults:       maxResults,
		RetentionDays:    cfg.DaysToKeep,
		OutputDir:        cfg.OutputFolder,
		WriteReport:      writeReport,
	}, logger)
}
