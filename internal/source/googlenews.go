package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

const googleNewsDefaultMaxResults = 50

// GoogleNewsClient reads the Google News RSS search feed. Feed items carry no
// grouping, so results always come back flat.
type GoogleNewsClient struct {
	baseURL string
	parser  *gofeed.Parser
	logger  zerolog.Logger
}

func NewGoogleNewsClient(baseURL string, logger zerolog.Logger) *GoogleNewsClient {
	return &GoogleNewsClient{
		baseURL: strings.TrimSpace(baseURL),
		parser:  gofeed.NewParser(),
		logger:  logger.With().Str("source", "google_news").Logger(),
	}
}

func (c *GoogleNewsClient) Name() string { return "google_news" }

func (c *GoogleNewsClient) GroupsLocally() bool { return true }

func (c *GoogleNewsClient) Search(ctx context.Context, query Query) (*Result, error) {
	feedURL, err := c.feedURL(query)
	if err != nil {
		return nil, err
	}

	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch google news feed: %w", err)
	}

	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = googleNewsDefaultMaxResults
	}

	result := &Result{}
	for _, item := range feed.Items {
		if len(result.Items) >= maxResults {
			break
		}
		if item == nil {
			continue
		}

		title, sourceName := splitTitleSource(item.Title)
		if item.Source != nil && strings.TrimSpace(item.Source.Title) != "" {
			sourceName = strings.TrimSpace(item.Source.Title)
		}

		raw := RawItem{
			Title:         title,
			Link:          item.Link,
			Description:   stripHTML(item.Description),
			PublishedDate: item.Published,
			SourceName:    sourceName,
			Language:      query.Language,
		}
		if item.Image != nil {
			raw.ImageURL = item.Image.URL
		}
		result.Items = append(result.Items, raw)
	}

	c.logger.Debug().Int("items", len(result.Items)).Str("query", query.Text).Msg("feed fetched")
	return result, nil
}

func (c *GoogleNewsClient) feedURL(query Query) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse google news base URL: %w", err)
	}

	language := query.Language
	if language == "" {
		language = "en"
	}
	country := query.Country
	if country == "" {
		country = "IN"
	}

	values := url.Values{}
	values.Set("q", query.Text)
	values.Set("hl", language)
	values.Set("gl", country)
	values.Set("ceid", country+":"+language)
	base.RawQuery = values.Encode()
	return base.String(), nil
}

// splitTitleSource splits the feed's "Headline - Publisher" convention on the
// last separator, so hyphens inside the headline survive.
func splitTitleSource(title string) (string, string) {
	trimmed := strings.TrimSpace(title)
	at := strings.LastIndex(trimmed, " - ")
	if at < 0 {
		return trimmed, ""
	}
	return strings.TrimSpace(trimmed[:at]), strings.TrimSpace(trimmed[at+len(" - "):])
}

func stripHTML(markup string) string {
	trimmed := strings.TrimSpace(markup)
	if trimmed == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return trimmed
	}
	return strings.TrimSpace(doc.Text())
}
