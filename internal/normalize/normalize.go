package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"horse.fit/newswatch/internal/db"
	"horse.fit/newswatch/internal/globaltime"
	"horse.fit/newswatch/internal/langdetect"
	"horse.fit/newswatch/internal/source"
)

const (
	maxTitleLength   = 500
	maxContentLength = 5000
	unknownSource    = "Unknown"
)

// publishedLayouts are tried in order. Feed and API timestamps are messy, so
// the last resort is the collection time rather than a rejected article.
var publishedLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02",
}

// Normalizer converts raw source items into storable articles.
type Normalizer struct {
	categorizer *Categorizer
	logger      zerolog.Logger
}

func NewNormalizer(categorizer *Categorizer, logger zerolog.Logger) *Normalizer {
	if categorizer == nil {
		categorizer = NewCategorizer()
	}
	return &Normalizer{
		categorizer: categorizer,
		logger:      logger.With().Str("component", "normalize").Logger(),
	}
}

// Article builds a db.Article from a raw item. ok is false when the item has
// no usable link; such items carry no stable identity and are dropped.
func (n *Normalizer) Article(item source.RawItem, entityName, dataSource string) (db.Article, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		n.logger.Debug().Str("entity", entityName).Msg("dropping item without link")
		return db.Article{}, false
	}

	now := globaltime.UTC()

	article := db.Article{
		ArticleID:      articleID(link),
		Title:          truncate(strings.TrimSpace(item.Title), maxTitleLength),
		Content:        truncate(pickContent(item), maxContentLength),
		SourceName:     resolveSource(item),
		URL:            link,
		CollectedAt:    now,
		EntityName:     entityName,
		Language:       resolveLanguage(item),
		SentimentScore: item.SentimentScore,
		Category:       n.categorizer.Categorize(item.Title),
		DataSource:     dataSource,
	}

	published := parsePublished(item.PublishedDate, now)
	article.PublishedAt = &published

	if image := strings.TrimSpace(item.ImageURL); image != "" {
		article.ImageURL = &image
	}

	return article, true
}

// articleID derives a stable identity from the URL alone, so the same story
// fetched by two sources collides instead of duplicating.
func articleID(link string) string {
	sum := sha256.Sum256([]byte(link))
	return hex.EncodeToString(sum[:])
}

// pickContent prefers the richest body text a source offers.
func pickContent(item source.RawItem) string {
	for _, candidate := range []string{item.Summary, item.Description, item.Excerpt} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// resolveSource walks the publisher fallback chain: structured object first,
// then the plain name, then domain-ish fields, finally "Unknown".
func resolveSource(item source.RawItem) string {
	if item.SourceObject != nil {
		if domain := strings.TrimSpace(item.SourceObject.Domain); domain != "" {
			return domain
		}
		if name := strings.TrimSpace(item.SourceObject.Name); name != "" {
			return name
		}
	}
	if name := strings.TrimSpace(item.SourceName); name != "" {
		return name
	}
	if cleanURL := strings.TrimSpace(item.CleanURL); cleanURL != "" {
		return cleanHostName(cleanURL)
	}
	if rights := strings.TrimSpace(item.Rights); rights != "" {
		return cleanHostName(rights)
	}
	return unknownSource
}

// cleanHostName turns a host-like fallback ("www.ndtv.com") into a display
// name ("Ndtv").
func cleanHostName(host string) string {
	cleaned := strings.ReplaceAll(host, "www.", "")
	cleaned = strings.ReplaceAll(cleaned, ".com", "")
	cleaned = strings.ReplaceAll(cleaned, ".in", "")
	runes := []rune(cleaned)
	if len(runes) == 0 {
		return unknownSource
	}
	return string(unicode.ToUpper(runes[0])) + strings.ToLower(string(runes[1:]))
}

func resolveLanguage(item source.RawItem) string {
	if language := strings.TrimSpace(item.Language); language != "" {
		return language
	}
	if detected := langdetect.DetectISO6391(item.Title); detected != "" {
		return detected
	}
	return "und"
}

func parsePublished(raw string, fallback time.Time) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	for _, layout := range publishedLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC()
		}
	}
	return fallback
}

// truncate bounds s to limit characters. The limit counts runes, not bytes,
// so Devanagari text keeps the same headroom as Latin text.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
