package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewsdataClient queries the NewsData latest-news endpoint. One request, no
// pagination; the free tier caps each response at ten results anyway.
type NewsdataClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

func NewNewsdataClient(baseURL, apiKey string, logger zerolog.Logger) *NewsdataClient {
	return &NewsdataClient{
		baseURL: strings.TrimSpace(baseURL),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With().Str("source", "newsdata").Logger(),
	}
}

func (c *NewsdataClient) Name() string { return "newsdata" }

func (c *NewsdataClient) GroupsLocally() bool { return false }

type newsdataResponse struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Results      []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Description string `json:"description"`
		Content     string `json:"content"`
		PubDate     string `json:"pubDate"`
		SourceID    string `json:"source_id"`
		SourceName  string `json:"source_name"`
		Language    string `json:"language"`
		ImageURL    string `json:"image_url"`
	} `json:"results"`
}

func (c *NewsdataClient) Search(ctx context.Context, query Query) (*Result, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse newsdata base URL: %w", err)
	}

	values := url.Values{}
	values.Set("apikey", c.apiKey)
	values.Set("q", query.Text)
	if query.Language != "" {
		values.Set("language", query.Language)
	}
	if query.Country != "" {
		values.Set("country", strings.ToLower(query.Country))
	}
	values.Set("image", "1")
	base.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build newsdata request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsdata request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read newsdata response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsdata status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed newsdataResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode newsdata response: %w", err)
	}

	maxResults := query.MaxResults
	if maxResults <= 0 || maxResults > len(parsed.Results) {
		maxResults = len(parsed.Results)
	}

	result := &Result{}
	for _, entry := range parsed.Results[:maxResults] {
		sourceName := entry.SourceName
		if sourceName == "" {
			sourceName = entry.SourceID
		}
		result.Items = append(result.Items, RawItem{
			Title:         entry.Title,
			Link:          entry.Link,
			Description:   entry.Description,
			Excerpt:       entry.Content,
			PublishedDate: entry.PubDate,
			SourceName:    sourceName,
			Language:      entry.Language,
			ImageURL:      entry.ImageURL,
		})
	}

	c.logger.Debug().Int("items", len(result.Items)).Int("total", parsed.TotalResults).Msg("search complete")
	return result, nil
}
