package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AddCluster merges a candidate cluster and its articles into storage.
//
// If the cluster identity already exists, only articles whose URL is not
// stored anywhere are appended. Otherwise the cluster row is created first.
// Either way source_count is recomputed from the physically linked rows, so a
// descriptor supplied by an upstream source can never inflate it. Returns the
// number of newly persisted articles; 0 means everything was a duplicate.
func (p *Pool) AddCluster(ctx context.Context, cluster Cluster, articles []Article) (int, error) {
	clusterID := strings.TrimSpace(cluster.ClusterID)
	if clusterID == "" {
		return 0, fmt.Errorf("cluster id is required")
	}

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin add-cluster tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	exists, err := clusterExistsTx(ctx, tx, clusterID)
	if err != nil {
		return 0, err
	}
	if !exists {
		if err := insertClusterTx(ctx, tx, cluster); err != nil {
			return 0, err
		}
	}

	added := 0
	for _, article := range articles {
		inserted, err := insertArticleTx(ctx, tx, article, &clusterID)
		if err != nil {
			return 0, err
		}
		if inserted {
			added++
		}
	}

	if err := refreshSourceCountTx(ctx, tx, clusterID); err != nil {
		return 0, err
	}
	if err := pruneEmptyClusterTx(ctx, tx, clusterID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit add-cluster tx: %w", err)
	}
	return added, nil
}

// AddStandaloneArticle persists an article with no cluster link. Returns
// false when the URL is already stored.
func (p *Pool) AddStandaloneArticle(ctx context.Context, article Article) (bool, error) {
	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin add-article tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	inserted, err := insertArticleTx(ctx, tx, article, nil)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit add-article tx: %w", err)
	}
	return inserted, nil
}

// CleanupResult reports rows removed by retention cleanup.
type CleanupResult struct {
	Articles int64
	Clusters int64
}

// CleanupOlderThan deletes articles collected before cutoff and clusters
// created before cutoff. Cluster deletion cascades to member articles.
func (p *Pool) CleanupOlderThan(ctx context.Context, cutoff time.Time) (CleanupResult, error) {
	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return CleanupResult{}, fmt.Errorf("begin cleanup tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	cutoffUTC := cutoff.UTC()

	articleTag, err := tx.Exec(ctx, `DELETE FROM watch.articles WHERE collected_at < $1`, cutoffUTC)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("delete old articles: %w", err)
	}

	clusterTag, err := tx.Exec(ctx, `DELETE FROM watch.clusters WHERE created_at < $1`, cutoffUTC)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("delete old clusters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return CleanupResult{}, fmt.Errorf("commit cleanup tx: %w", err)
	}

	return CleanupResult{
		Articles: articleTag.RowsAffected(),
		Clusters: clusterTag.RowsAffected(),
	}, nil
}

func clusterExistsTx(ctx context.Context, tx Tx, clusterID string) (bool, error) {
	const q = `SELECT 1 FROM watch.clusters WHERE cluster_id = $1`

	var one int
	err := tx.QueryRow(ctx, q, clusterID).Scan(&one)
	if err != nil {
		if IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check cluster %s: %w", clusterID, err)
	}
	return true, nil
}

func insertClusterTx(ctx context.Context, tx Tx, cluster Cluster) error {
	const q = `
INSERT INTO watch.clusters (
	cluster_id,
	representative_title,
	entity_name,
	category,
	source_count,
	first_published,
	created_at
)
VALUES ($1, $2, $3, $4, 0, $5, $6)
ON CONFLICT (cluster_id) DO NOTHING
`

	createdAt := cluster.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	category := cluster.Category
	if strings.TrimSpace(category) == "" {
		category = "Other"
	}

	if _, err := tx.Exec(
		ctx,
		q,
		cluster.ClusterID,
		cluster.RepresentativeTitle,
		cluster.EntityName,
		category,
		cluster.FirstPublished,
		createdAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert cluster %s: %w", cluster.ClusterID, err)
	}
	return nil
}

func insertArticleTx(ctx context.Context, tx Tx, article Article, clusterID *string) (bool, error) {
	if strings.TrimSpace(article.URL) == "" {
		return false, nil
	}

	const q = `
INSERT INTO watch.articles (
	article_id,
	cluster_id,
	title,
	content,
	source_name,
	url,
	published_at,
	collected_at,
	entity_name,
	language,
	sentiment_score,
	category,
	data_source,
	image_url
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (url) DO NOTHING
`

	collectedAt := article.CollectedAt
	if collectedAt.IsZero() {
		collectedAt = time.Now().UTC()
	}

	tag, err := tx.Exec(
		ctx,
		q,
		article.ArticleID,
		clusterID,
		article.Title,
		article.Content,
		article.SourceName,
		article.URL,
		article.PublishedAt,
		collectedAt.UTC(),
		article.EntityName,
		article.Language,
		article.SentimentScore,
		article.Category,
		article.DataSource,
		article.ImageURL,
	)
	if err != nil {
		return false, fmt.Errorf("insert article %s: %w", article.ArticleID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// pruneEmptyClusterTx drops a cluster whose every candidate article turned
// out to be a stored duplicate, so no cluster row exists without members.
func pruneEmptyClusterTx(ctx context.Context, tx Tx, clusterID string) error {
	const q = `
DELETE FROM watch.clusters c
WHERE c.cluster_id = $1
  AND NOT EXISTS (
	SELECT 1 FROM watch.articles a WHERE a.cluster_id = c.cluster_id
  )
`
	if _, err := tx.Exec(ctx, q, clusterID); err != nil {
		return fmt.Errorf("prune empty cluster %s: %w", clusterID, err)
	}
	return nil
}

func refreshSourceCountTx(ctx context.Context, tx Tx, clusterID string) error {
	const q = `
UPDATE watch.clusters c
SET source_count = (
	SELECT COUNT(*)
	FROM watch.articles a
	WHERE a.cluster_id = c.cluster_id
)
WHERE c.cluster_id = $1
`
	if _, err := tx.Exec(ctx, q, clusterID); err != nil {
		return fmt.Errorf("refresh source_count for cluster %s: %w", clusterID, err)
	}
	return nil
}
