package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"horse.fit/newswatch/internal/db"
	"horse.fit/newswatch/internal/globaltime"
)

// maxLinksPerStory caps the links column so a hundred-source story does not
// blow up a spreadsheet cell.
const maxLinksPerStory = 10

var header = []string{
	"entity",
	"headline",
	"category",
	"source_count",
	"sources",
	"languages",
	"first_published",
	"links",
}

// Write renders grouped stories to a timestamped CSV in outputDir and returns
// the file path.
func Write(outputDir string, stories []db.StoryGroup) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory %s: %w", outputDir, err)
	}

	name := fmt.Sprintf("news_report_%s.csv", globaltime.UTC().Format("20060102_150405"))
	path := filepath.Join(outputDir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("write report header: %w", err)
	}

	for _, story := range stories {
		if err := writer.Write(storyRow(story)); err != nil {
			return "", fmt.Errorf("write report row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("flush report: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close report file %s: %w", path, err)
	}
	return path, nil
}

func storyRow(story db.StoryGroup) []string {
	published := ""
	if story.Published != nil {
		published = story.Published.UTC().Format("2006-01-02 15:04")
	}

	return []string{
		story.EntityName,
		story.Headline,
		story.Category,
		strconv.Itoa(story.SourceCount),
		strings.Join(story.SourceNames, ", "),
		strings.Join(story.Languages, ", "),
		published,
		strings.Join(storyLinks(story), "\n"),
	}
}

func storyLinks(story db.StoryGroup) []string {
	links := make([]string, 0, len(story.Sources))
	for _, ref := range story.Sources {
		if len(links) >= maxLinksPerStory {
			break
		}
		if ref.URL != "" {
			links = append(links, ref.URL)
		}
	}
	return links
}
