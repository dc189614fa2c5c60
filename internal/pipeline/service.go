package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newswatch/internal/db"
	"horse.fit/newswatch/internal/globaltime"
	"horse.fit/newswatch/internal/normalize"
	"horse.fit/newswatch/internal/report"
	"horse.fit/newswatch/internal/semantic"
	"horse.fit/newswatch/internal/source"
	"horse.fit/newswatch/schema"
)

// Store is the persistence surface the collection cycle needs.
type Store interface {
	AddCluster(ctx context.Context, cluster db.Cluster, articles []db.Article) (int, error)
	AddStandaloneArticle(ctx context.Context, article db.Article) (bool, error)
	CleanupOlderThan(ctx context.Context, cutoff time.Time) (db.CleanupResult, error)
	StoriesGrouped(ctx context.Context, lookback time.Duration, entity string) ([]db.StoryGroup, error)
}

// Gate filters articles down to those genuinely about a tracked entity.
type Gate interface {
	IsAbout(text string, entity watchschema.TrackedEntity) bool
}

// Grouper clusters article texts by meaning.
type Grouper interface {
	Group(ctx context.Context, texts []string) (semantic.Grouping, error)
}

// Options tunes a collection cycle.
type Options struct {
	Country          string
	DefaultLanguages []string
	MaxResults       int
	RetentionDays    int
	ReportWindow     time.Duration
	OutputDir        string
	WriteReport      bool
}

// CycleResult summarizes one collection cycle.
type CycleResult struct {
	NewArticles     int
	ClustersTouched int
	Standalone      int
	SourceErrors    int
	Removed         db.CleanupResult
	ReportPath      string
	Duration        time.Duration
}

// Service orchestrates one end-to-end collection cycle over the watchlist.
type Service struct {
	store      Store
	sources    []source.Client
	gate       Gate
	normalizer *normalize.Normalizer
	grouper    Grouper
	options    Options
	logger     zerolog.Logger
}

func NewService(
	store Store,
	sources []source.Client,
	gate Gate,
	normalizer *normalize.Normalizer,
	grouper Grouper,
	options Options,
	logger zerolog.Logger,
) *Service {
	if options.MaxResults <= 0 {
		options.MaxResults = 50
	}
	if options.RetentionDays <= 0 {
		options.RetentionDays = 90
	}
	if options.ReportWindow <= 0 {
		options.ReportWindow = 24 * time.Hour
	}
	return &Service{
		store:      store,
		sources:    sources,
		gate:       gate,
		normalizer: normalizer,
		grouper:    grouper,
		options:    options,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// RunCycle collects every tracked entity across all sources, persists the
// results, prunes expired rows, and reports the cycle. Any failure in one
// search, including a rejected API key, costs only that query; a source whose
// key was rejected is skipped for the rest of the cycle since retrying it
// cannot succeed.
func (s *Service) RunCycle(ctx context.Context, watchlist *watchschema.Watchlist) (CycleResult, error) {
	if s == nil || s.store == nil {
		return CycleResult{}, fmt.Errorf("pipeline service is not initialized")
	}
	if watchlist == nil || len(watchlist.Entities) == 0 {
		return CycleResult{}, fmt.Errorf("watchlist has no entities")
	}

	start := globaltime.Now()
	var result CycleResult
	revoked := make(map[string]struct{})

	for _, entity := range watchlist.Entities {
		s.collectEntity(ctx, entity, revoked, &result)
	}

	cutoff := globaltime.UTC().AddDate(0, 0, -s.options.RetentionDays)
	removed, err := s.store.CleanupOlderThan(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("retention cleanup: %w", err)
	}
	result.Removed = removed

	if s.options.WriteReport && result.NewArticles > 0 {
		stories, err := s.store.StoriesGrouped(ctx, s.options.ReportWindow, "")
		if err != nil {
			return result, fmt.Errorf("load stories for report: %w", err)
		}
		path, err := report.Write(s.options.OutputDir, stories)
		if err != nil {
			return result, fmt.Errorf("write cycle report: %w", err)
		}
		result.ReportPath = path
		s.logger.Info().Str("path", path).Int("stories", len(stories)).Msg("cycle report written")
	}

	result.Duration = globaltime.Now().Sub(start)
	s.logger.Info().
		Int("new_articles", result.NewArticles).
		Int("clusters_touched", result.ClustersTouched).
		Int("standalone", result.Standalone).
		Int("source_errors", result.SourceErrors).
		Int64("removed_articles", removed.Articles).
		Int64("removed_clusters", removed.Clusters).
		Dur("duration", result.Duration).
		Msg("collection cycle complete")

	return result, nil
}

// collectEntity queries every source for one tracked entity. Feed sources run
// once per configured language and their batches are grouped locally; the
// search APIs run a single query per entity.
func (s *Service) collectEntity(ctx context.Context, entity watchschema.TrackedEntity, revoked map[string]struct{}, result *CycleResult) {
	languages := entity.Languages
	if len(languages) == 0 {
		languages = s.options.DefaultLanguages
	}
	if len(languages) == 0 {
		languages = []string{"en"}
	}

	for _, client := range s.sources {
		if _, off := revoked[client.Name()]; off {
			continue
		}
		if client.GroupsLocally() {
			for _, language := range languages {
				s.collectQuery(ctx, client, entity, language, revoked, result)
			}
			continue
		}
		s.collectQuery(ctx, client, entity, languages[0], revoked, result)
	}
}

// collectQuery runs one search against one source and persists everything it
// yields. Every failure is contained here: a failed search, a rejected key,
// or a storage error costs this one query, never the cycle.
func (s *Service) collectQuery(
	ctx context.Context,
	client source.Client,
	entity watchschema.TrackedEntity,
	language string,
	revoked map[string]struct{},
	result *CycleResult,
) {
	query := source.Query{
		Text:       entity.Query,
		Language:   language,
		Country:    s.options.Country,
		MaxResults: s.options.MaxResults,
	}

	searchResult, err := client.Search(ctx, query)
	if err != nil {
		result.SourceErrors++
		if errors.Is(err, source.ErrUnauthorized) {
			revoked[client.Name()] = struct{}{}
			s.logger.Error().Err(err).
				Str("source", client.Name()).
				Str("entity", entity.Name).
				Msg("api key rejected, skipping source for the rest of the cycle")
			return
		}
		s.logger.Error().Err(err).
			Str("source", client.Name()).
			Str("entity", entity.Name).
			Str("language", language).
			Msg("source search failed")
		return
	}

	if searchResult.Clustered {
		s.persistNativeClusters(ctx, client.Name(), entity, searchResult.Clusters, result)
		return
	}

	var batch []db.Article
	for _, item := range searchResult.Items {
		article, ok := s.admit(item, entity, client.Name())
		if !ok {
			continue
		}
		batch = append(batch, article)
	}

	if client.GroupsLocally() {
		s.persistGroupedBatch(ctx, entity, batch, result)
		return
	}
	// Flat responses from sources that cluster upstream (or not at all) stay
	// ungrouped: the provider already decided these items form no story.
	for _, article := range batch {
		s.persistStandalone(ctx, article, result)
	}
}

// admit runs the relevance gate and the normalizer over one raw item.
func (s *Service) admit(item source.RawItem, entity watchschema.TrackedEntity, dataSource string) (db.Article, bool) {
	gateText := item.Title
	if item.Summary != "" {
		gateText += "\n" + item.Summary
	} else if item.Description != "" {
		gateText += "\n" + item.Description
	}
	if !s.gate.IsAbout(gateText, entity) {
		return db.Article{}, false
	}
	return s.normalizer.Article(item, entity.Name, dataSource)
}

// persistNativeClusters stores clusters the source grouped server-side.
func (s *Service) persistNativeClusters(
	ctx context.Context,
	sourceName string,
	entity watchschema.TrackedEntity,
	clusters []source.RawCluster,
	result *CycleResult,
) {
	for _, raw := range clusters {
		var members []db.Article
		for _, item := range raw.Items {
			article, ok := s.admit(item, entity, sourceName)
			if !ok {
				continue
			}
			members = append(members, article)
		}
		if len(members) == 0 {
			continue
		}
		s.persistCluster(ctx, sourceName+"_"+raw.ClusterID, entity.Name, members, result)
	}
}

// persistGroupedBatch groups one feed batch by text similarity, then stores
// multi-member groups as clusters and singletons as standalone articles.
func (s *Service) persistGroupedBatch(ctx context.Context, entity watchschema.TrackedEntity, batch []db.Article, result *CycleResult) {
	if len(batch) == 0 {
		return
	}

	texts := make([]string, len(batch))
	for i, article := range batch {
		texts[i] = embedText(article)
	}

	grouping, err := s.grouper.Group(ctx, texts)
	if err != nil {
		s.logger.Error().Err(err).Str("entity", entity.Name).Msg("grouping failed, storing batch ungrouped")
		for _, article := range batch {
			s.persistStandalone(ctx, article, result)
		}
		return
	}
	if grouping.Mode == semantic.ModeDegraded {
		s.logger.Warn().Str("entity", entity.Name).Msg("embedding service unavailable, storing batch without grouping")
	}

	for _, group := range grouping.Groups {
		if len(group) == 1 {
			s.persistStandalone(ctx, batch[group[0]], result)
			continue
		}

		members := make([]db.Article, 0, len(group))
		for _, at := range group {
			members = append(members, batch[at])
		}
		s.persistCluster(ctx, "sem_"+members[0].ArticleID[:16], entity.Name, members, result)
	}
}

func (s *Service) persistCluster(ctx context.Context, clusterID, entityName string, members []db.Article, result *CycleResult) {
	cluster := buildCluster(clusterID, entityName, members)
	added, err := s.store.AddCluster(ctx, cluster, members)
	if err != nil {
		s.logger.Error().Err(err).Str("cluster", clusterID).Msg("store cluster failed")
		return
	}
	result.NewArticles += added
	if added > 0 {
		result.ClustersTouched++
	}
}

func (s *Service) persistStandalone(ctx context.Context, article db.Article, result *CycleResult) {
	inserted, err := s.store.AddStandaloneArticle(ctx, article)
	if err != nil {
		s.logger.Error().Err(err).Str("url", article.URL).Msg("store standalone article failed")
		return
	}
	if inserted {
		result.NewArticles++
		result.Standalone++
	}
}

// embedText is what the grouper sees for one article: the title plus the body
// excerpt, which separates same-headline stories about different events.
func embedText(article db.Article) string {
	return strings.TrimSpace(article.Title + " " + article.Content)
}

// buildCluster derives the cluster row from its members: the first member's
// title represents the group and first_published is the earliest member
// publish time.
func buildCluster(clusterID, entityName string, members []db.Article) db.Cluster {
	cluster := db.Cluster{
		ClusterID:           clusterID,
		RepresentativeTitle: members[0].Title,
		EntityName:          entityName,
		Category:            members[0].Category,
		CreatedAt:           globaltime.UTC(),
	}
	for _, member := range members {
		if member.PublishedAt == nil {
			continue
		}
		if cluster.FirstPublished == nil || member.PublishedAt.Before(*cluster.FirstPublished) {
			published := *member.PublishedAt
			cluster.FirstPublished = &published
		}
	}
	return cluster
}
