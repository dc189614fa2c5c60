package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Google News</title>
<item>
  <title>Modi inaugurates new expressway - The Hindu</title>
  <link>https://news.example/modi-expressway</link>
  <pubDate>Mon, 06 Feb 2025 12:00:00 GMT</pubDate>
  <description>&lt;a href="https://news.example"&gt;Modi inaugurates new expressway&lt;/a&gt;&amp;nbsp;&lt;b&gt;The Hindu&lt;/b&gt;</description>
</item>
<item>
  <title>Opposition reacts to budget - NDTV</title>
  <link>https://news.example/budget-reaction</link>
  <pubDate>Mon, 06 Feb 2025 11:00:00 GMT</pubDate>
  <description>Plain text summary</description>
</item>
</channel>
</rss>`

func TestGoogleNewsSearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("q") == "" {
			t.Errorf("expected q parameter, got %q", r.URL.RawQuery)
		}
		if query.Get("ceid") != "IN:en" {
			t.Errorf("expected ceid=IN:en, got %q", query.Get("ceid"))
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	t.Cleanup(server.Close)

	client := NewGoogleNewsClient(server.URL, zerolog.Nop())
	result, err := client.Search(context.Background(), Query{Text: `"Narendra Modi"`, Language: "en", Country: "IN"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Clustered {
		t.Fatalf("feed results must be flat")
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}

	first := result.Items[0]
	if first.Title != "Modi inaugurates new expressway" {
		t.Fatalf("unexpected title %q", first.Title)
	}
	if first.SourceName != "The Hindu" {
		t.Fatalf("unexpected source %q", first.SourceName)
	}
	if first.Language != "en" {
		t.Fatalf("expected query language carried over, got %q", first.Language)
	}
}

func TestGoogleNewsSearchMaxResults(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	t.Cleanup(server.Close)

	client := NewGoogleNewsClient(server.URL, zerolog.Nop())
	result, err := client.Search(context.Background(), Query{Text: "q", MaxResults: 1})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected max-results cap of 1, got %d", len(result.Items))
	}
}

func TestSplitTitleSource(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in         string
		wantTitle  string
		wantSource string
	}{
		{"Headline - The Hindu", "Headline", "The Hindu"},
		{"Nifty up 2% - and counting - NDTV Profit", "Nifty up 2% - and counting", "NDTV Profit"},
		{"No separator here", "No separator here", ""},
	}

	for _, tc := range cases {
		title, source := splitTitleSource(tc.in)
		if title != tc.wantTitle || source != tc.wantSource {
			t.Fatalf("splitTitleSource(%q) = (%q, %q), want (%q, %q)", tc.in, title, source, tc.wantTitle, tc.wantSource)
		}
	}
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	if got := stripHTML(`<p>Hello <b>world</b></p>`); got != "Hello world" {
		t.Fatalf("stripHTML = %q", got)
	}
	if got := stripHTML("plain"); got != "plain" {
		t.Fatalf("stripHTML passthrough = %q", got)
	}
	if got := stripHTML("  "); got != "" {
		t.Fatalf("stripHTML blank = %q", got)
	}
}
