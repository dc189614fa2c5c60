package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SourceRef is one source's take on a story.
type SourceRef struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Language string `json:"language"`
	Title    string `json:"title"`
}

// StoryGroup is the grouped-story read model consumed by the dashboard and
// the report writer. Standalone articles surface as single-source stories.
type StoryGroup struct {
	ID          string      `json:"id"`
	Headline    string      `json:"headline"`
	EntityName  string      `json:"entity"`
	Category    string      `json:"category"`
	SourceCount int         `json:"source_count"`
	SourceNames []string    `json:"source_names"`
	Sources     []SourceRef `json:"sources"`
	Languages   []string    `json:"languages"`
	Published   *time.Time  `json:"published,omitempty"`
}

// StoriesGrouped returns clustered stories plus standalone articles within the
// lookback window, newest first. entity filters by tracked-entity name when
// non-empty.
func (p *Pool) StoriesGrouped(ctx context.Context, lookback time.Duration, entity string) ([]StoryGroup, error) {
	cutoff := time.Now().UTC().Add(-lookback)
	entityFilter := strings.TrimSpace(entity)

	const clusterQuery = `
SELECT
	c.cluster_id,
	c.representative_title,
	c.entity_name,
	c.category,
	c.first_published,
	a.source_name,
	a.url,
	a.language,
	a.title
FROM watch.clusters c
JOIN watch.articles a
	ON a.cluster_id = c.cluster_id
WHERE c.created_at >= $1
  AND ($2 = '' OR c.entity_name = $2)
ORDER BY c.first_published DESC NULLS LAST, c.cluster_id, a.published_at DESC
`

	rows, err := p.Query(ctx, clusterQuery, cutoff, entityFilter)
	if err != nil {
		return nil, fmt.Errorf("query grouped stories: %w", err)
	}
	defer rows.Close()

	stories := make([]StoryGroup, 0, 64)
	index := make(map[string]int)
	for rows.Next() {
		var (
			clusterID      string
			headline       string
			entityName     string
			category       string
			firstPublished *time.Time
			ref            SourceRef
		)
		if err := rows.Scan(
			&clusterID,
			&headline,
			&entityName,
			&category,
			&firstPublished,
			&ref.Name,
			&ref.URL,
			&ref.Language,
			&ref.Title,
		); err != nil {
			return nil, fmt.Errorf("scan grouped story row: %w", err)
		}

		at, ok := index[clusterID]
		if !ok {
			at = len(stories)
			index[clusterID] = at
			stories = append(stories, StoryGroup{
				ID:         clusterID,
				Headline:   headline,
				EntityName: entityName,
				Category:   category,
				Published:  firstPublished,
			})
		}
		stories[at].Sources = append(stories[at].Sources, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grouped story rows: %w", err)
	}

	const standaloneQuery = `
SELECT
	a.article_id,
	a.title,
	a.entity_name,
	a.category,
	a.published_at,
	a.source_name,
	a.url,
	a.language
FROM watch.articles a
WHERE a.collected_at >= $1
  AND a.cluster_id IS NULL
  AND ($2 = '' OR a.entity_name = $2)
ORDER BY a.published_at DESC NULLS LAST
`

	standaloneRows, err := p.Query(ctx, standaloneQuery, cutoff, entityFilter)
	if err != nil {
		return nil, fmt.Errorf("query standalone stories: %w", err)
	}
	defer standaloneRows.Close()

	for standaloneRows.Next() {
		var (
			story StoryGroup
			ref   SourceRef
		)
		if err := standaloneRows.Scan(
			&story.ID,
			&story.Headline,
			&story.EntityName,
			&story.Category,
			&story.Published,
			&ref.Name,
			&ref.URL,
			&ref.Language,
		); err != nil {
			return nil, fmt.Errorf("scan standalone story row: %w", err)
		}
		ref.Title = story.Headline
		story.Sources = []SourceRef{ref}
		stories = append(stories, story)
	}
	if err := standaloneRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate standalone story rows: %w", err)
	}

	for i := range stories {
		finalizeStoryGroup(&stories[i])
	}
	return stories, nil
}

func finalizeStoryGroup(story *StoryGroup) {
	story.SourceCount = len(story.Sources)

	names := make(map[string]struct{}, len(story.Sources))
	languages := make(map[string]struct{}, len(story.Sources))
	for _, ref := range story.Sources {
		if ref.Name != "" {
			names[ref.Name] = struct{}{}
		}
		if ref.Language != "" {
			languages[ref.Language] = struct{}{}
		}
	}

	story.SourceNames = sortedKeys(names)
	story.Languages = sortedKeys(languages)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Statistics is the aggregate read model for the dashboard.
type Statistics struct {
	TotalArticles  int64            `json:"total_articles"`
	TotalStories   int64            `json:"total_stories"`
	EntityCounts   map[string]int64 `json:"entity_counts"`
	DistinctSource int64            `json:"unique_sources"`
	Languages      []string         `json:"languages"`
}

// QueryStatistics summarizes articles and clusters within the lookback window.
func (p *Pool) QueryStatistics(ctx context.Context, lookback time.Duration) (*Statistics, error) {
	cutoff := time.Now().UTC().Add(-lookback)

	stats := &Statistics{
		EntityCounts: make(map[string]int64),
	}

	const totalsQuery = `
SELECT
	(SELECT COUNT(*) FROM watch.articles a WHERE a.collected_at >= $1) AS total_articles,
	(SELECT COUNT(*) FROM watch.clusters c WHERE c.created_at >= $1) AS total_stories,
	(SELECT COUNT(DISTINCT a.source_name) FROM watch.articles a WHERE a.collected_at >= $1) AS unique_sources
`
	if err := p.QueryRow(ctx, totalsQuery, cutoff).Scan(
		&stats.TotalArticles,
		&stats.TotalStories,
		&stats.DistinctSource,
	); err != nil {
		return nil, fmt.Errorf("query statistics totals: %w", err)
	}

	const entityQuery = `
SELECT a.entity_name, COUNT(*)::BIGINT
FROM watch.articles a
WHERE a.collected_at >= $1
GROUP BY a.entity_name
ORDER BY 1
`
	entityRows, err := p.Query(ctx, entityQuery, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query per-entity counts: %w", err)
	}
	defer entityRows.Close()

	for entityRows.Next() {
		var name string
		var count int64
		if err := entityRows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan per-entity count: %w", err)
		}
		stats.EntityCounts[name] = count
	}
	if err := entityRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate per-entity counts: %w", err)
	}

	const languageQuery = `
SELECT DISTINCT a.language
FROM watch.articles a
WHERE a.collected_at >= $1
  AND a.language <> ''
ORDER BY 1
`
	languageRows, err := p.Query(ctx, languageQuery, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query distinct languages: %w", err)
	}
	defer languageRows.Close()

	for languageRows.Next() {
		var language string
		if err := languageRows.Scan(&language); err != nil {
			return nil, fmt.Errorf("scan language row: %w", err)
		}
		stats.Languages = append(stats.Languages, language)
	}
	if err := languageRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate language rows: %w", err)
	}

	return stats, nil
}
