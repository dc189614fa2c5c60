package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	newscatcherPageSize          = 100
	newscatcherClusterThreshold  = 0.6
	newscatcherMaxAttempts       = 3
	newscatcherDefaultRetryAfter = 60 * time.Second
)

// ErrUnauthorized means the API key was rejected. Retrying cannot help.
var ErrUnauthorized = errors.New("news source rejected the API key")

// NewscatcherClient searches the NewsCatcher V3 API. It asks for server-side
// clustering by title and downgrades to an unclustered request when the plan
// does not allow clustering.
type NewscatcherClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewNewscatcherClient(baseURL, apiKey string, logger zerolog.Logger) *NewscatcherClient {
	return &NewscatcherClient{
		baseURL: strings.TrimSpace(baseURL),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With().Str("source", "newscatcher").Logger(),
		sleep:   sleepContext,
	}
}

func (c *NewscatcherClient) Name() string { return "newscatcher" }

// GroupsLocally is false: clustering happens upstream, and a flat response
// means the provider decided these items form no story.
func (c *NewscatcherClient) GroupsLocally() bool { return false }

type newscatcherRequest struct {
	Q                   string  `json:"q"`
	Countries           string  `json:"countries,omitempty"`
	Lang                string  `json:"lang,omitempty"`
	SortBy              string  `json:"sort_by"`
	PageSize            int     `json:"page_size"`
	ClusteringEnabled   bool    `json:"clustering_enabled,omitempty"`
	ClusteringVariable  string  `json:"clustering_variable,omitempty"`
	ClusteringThreshold float64 `json:"clustering_threshold,omitempty"`
	IncludeNLPData      bool    `json:"include_nlp_data"`
}

type newscatcherArticle struct {
	Title         string          `json:"title"`
	Link          string          `json:"link"`
	Summary       string          `json:"summary"`
	Description   string          `json:"description"`
	Excerpt       string          `json:"excerpt"`
	PublishedDate string          `json:"published_date"`
	Source        json.RawMessage `json:"source"`
	CleanURL      string          `json:"clean_url"`
	Rights        string          `json:"rights"`
	Language      string          `json:"language"`
	Media         string          `json:"media"`
	NLP           struct {
		Sentiment struct {
			Title   float64 `json:"title"`
			Content float64 `json:"content"`
		} `json:"sentiment"`
	} `json:"nlp"`
}

type newscatcherResponse struct {
	ClustersCount int `json:"clusters_count"`
	Clusters      []struct {
		ClusterID   json.Number          `json:"cluster_id"`
		ClusterSize int                  `json:"cluster_size"`
		Articles    []newscatcherArticle `json:"articles"`
	} `json:"clusters"`
	Articles []newscatcherArticle `json:"articles"`
}

// Search runs one clustered search, retrying transient failures with
// exponential backoff. 429 waits out Retry-After, 401 aborts, and 403 retries
// once with clustering disabled.
func (c *NewscatcherClient) Search(ctx context.Context, query Query) (*Result, error) {
	clustering := true

	var lastErr error
	for attempt := 0; attempt < newscatcherMaxAttempts; attempt++ {
		result, retry, err := c.searchOnce(ctx, query, clustering)
		if err == nil {
			return result, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err

		var downgrade *clusteringForbiddenError
		if errors.As(err, &downgrade) {
			c.logger.Warn().Msg("clustering not available on this plan, retrying without it")
			clustering = false
			continue
		}

		var throttled *throttledError
		if errors.As(err, &throttled) {
			c.logger.Warn().Dur("retry_after", throttled.wait).Msg("rate limited")
			if err := c.sleep(ctx, throttled.wait); err != nil {
				return nil, err
			}
			continue
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		c.logger.Warn().Err(err).Dur("backoff", backoff).Int("attempt", attempt+1).Msg("search failed")
		if err := c.sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("newscatcher search exhausted retries: %w", lastErr)
}

func (c *NewscatcherClient) searchOnce(ctx context.Context, query Query, clustering bool) (*Result, bool, error) {
	payload := newscatcherRequest{
		Q:              query.Text,
		Countries:      query.Country,
		Lang:           query.Language,
		SortBy:         "date",
		PageSize:       newscatcherPageSize,
		IncludeNLPData: true,
	}
	if clustering {
		payload.ClusteringEnabled = true
		payload.ClusteringVariable = "title"
		payload.ClusteringThreshold = newscatcherClusterThreshold
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("marshal newscatcher request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build newscatcher request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("newscatcher request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read newscatcher response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return c.parseResponse(respBody, clustering)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, &throttledError{wait: retryAfter(resp.Header)}
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, false, ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden && clustering:
		return nil, true, &clusteringForbiddenError{}
	default:
		return nil, true, fmt.Errorf("newscatcher status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
}

func (c *NewscatcherClient) parseResponse(body []byte, clustering bool) (*Result, bool, error) {
	var parsed newscatcherResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, fmt.Errorf("decode newscatcher response: %w", err)
	}

	if clustering && len(parsed.Clusters) > 0 {
		result := &Result{Clustered: true}
		for _, cluster := range parsed.Clusters {
			raw := RawCluster{ClusterID: cluster.ClusterID.String()}
			for _, article := range cluster.Articles {
				raw.Items = append(raw.Items, convertNewscatcherArticle(article))
			}
			result.Clusters = append(result.Clusters, raw)
		}
		return result, false, nil
	}

	result := &Result{}
	for _, article := range parsed.Articles {
		result.Items = append(result.Items, convertNewscatcherArticle(article))
	}
	return result, false, nil
}

func convertNewscatcherArticle(article newscatcherArticle) RawItem {
	item := RawItem{
		Title:          article.Title,
		Link:           article.Link,
		Summary:        article.Summary,
		Description:    article.Description,
		Excerpt:        article.Excerpt,
		PublishedDate:  article.PublishedDate,
		CleanURL:       article.CleanURL,
		Rights:         article.Rights,
		Language:       article.Language,
		SentimentScore: article.NLP.Sentiment.Title,
		ImageURL:       article.Media,
	}

	// "source" is a publisher object on V3 and a bare string on older plans.
	if len(article.Source) > 0 {
		var object SourceObject
		if err := json.Unmarshal(article.Source, &object); err == nil && (object.Domain != "" || object.Name != "") {
			item.SourceObject = &object
		} else {
			var name string
			if err := json.Unmarshal(article.Source, &name); err == nil {
				item.SourceName = name
			}
		}
	}
	return item
}

type throttledError struct {
	wait time.Duration
}

func (e *throttledError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.wait)
}

type clusteringForbiddenError struct{}

func (e *clusteringForbiddenError) Error() string {
	return "clustering is not enabled for this plan"
}

func retryAfter(header http.Header) time.Duration {
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return newscatcherDefaultRetryAfter
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return newscatcherDefaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
