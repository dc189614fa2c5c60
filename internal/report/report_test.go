package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"horse.fit/newswatch/internal/db"
)

func TestWriteReport(t *testing.T) {
	published := time.Date(2025, 2, 6, 12, 0, 0, 0, time.UTC)
	stories := []db.StoryGroup{
		{
			ID:          "newscatcher_7",
			Headline:    "Modi inaugurates expressway",
			EntityName:  "Narendra Modi",
			Category:    "Event",
			SourceCount: 2,
			SourceNames: []string{"NDTV", "The Hindu"},
			Languages:   []string{"en"},
			Published:   &published,
			Sources: []db.SourceRef{
				{Name: "The Hindu", URL: "https://a.example/1", Language: "en", Title: "Modi inaugurates expressway"},
				{Name: "NDTV", URL: "https://b.example/2", Language: "en", Title: "PM opens expressway"},
			},
		},
	}

	dir := t.TempDir()
	path, err := Write(dir, stories)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("report written outside output dir: %q", path)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("parse report: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d rows", len(rows))
	}

	row := rows[1]
	if row[0] != "Narendra Modi" || row[1] != "Modi inaugurates expressway" {
		t.Fatalf("unexpected row start: %v", row[:2])
	}
	if row[3] != "2" {
		t.Fatalf("expected source_count 2, got %q", row[3])
	}
	if row[4] != "NDTV, The Hindu" {
		t.Fatalf("unexpected sources cell %q", row[4])
	}
	if row[6] != "2025-02-06 12:00" {
		t.Fatalf("unexpected published cell %q", row[6])
	}

	links := strings.Split(row[7], "\n")
	if len(links) != 2 || links[0] != "https://a.example/1" {
		t.Fatalf("unexpected links cell %q", row[7])
	}
}

func TestWriteReportCapsLinks(t *testing.T) {
	story := db.StoryGroup{
		ID:         "big",
		Headline:   "Huge story",
		EntityName: "Narendra Modi",
		Category:   "Politics",
	}
	for i := 0; i < 25; i++ {
		story.Sources = append(story.Sources, db.SourceRef{
			Name: "Source",
			URL:  fmt.Sprintf("https://example.com/%d", i),
		})
	}
	story.SourceCount = len(story.Sources)

	path, err := Write(t.TempDir(), []db.StoryGroup{story})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("parse report: %v", err)
	}

	links := strings.Split(rows[1][7], "\n")
	if len(links) != maxLinksPerStory {
		t.Fatalf("expected %d links, got %d", maxLinksPerStory, len(links))
	}
}

func TestWriteReportEmpty(t *testing.T) {
	path, err := Write(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(raw), "entity,headline,") {
		t.Fatalf("expected header-only report, got %q", string(raw))
	}
}
