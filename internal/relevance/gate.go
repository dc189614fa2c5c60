package relevance

import (
	"fmt"
	"strings"

	prose "github.com/jdkato/prose/v2"
	"github.com/rs/zerolog"

	"horse.fit/newswatch/schema"
)

// Extractor finds person mentions in a piece of text.
type Extractor interface {
	Persons(text string) ([]string, error)
}

// ProseExtractor runs named-entity recognition with the prose tagger and
// keeps only PERSON entities.
type ProseExtractor struct{}

func NewProseExtractor() *ProseExtractor { return &ProseExtractor{} }

func (e *ProseExtractor) Persons(text string) ([]string, error) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, fmt.Errorf("analyze text: %w", err)
	}

	var persons []string
	for _, entity := range doc.Entities() {
		if entity.Label == "PERSON" {
			persons = append(persons, entity.Text)
		}
	}
	return persons, nil
}

// Gate decides whether an article is about the tracked person, not merely a
// keyword hit. An article mentioning "Modi Toys" matches the query string but
// names no person, so it is rejected here.
type Gate struct {
	extractor Extractor
	logger    zerolog.Logger
}

func NewGate(extractor Extractor, logger zerolog.Logger) *Gate {
	return &Gate{
		extractor: extractor,
		logger:    logger.With().Str("component", "relevance").Logger(),
	}
}

// IsAbout reports whether the text genuinely refers to the tracked entity.
// Extraction failures reject the item; the gate is never skipped.
func (g *Gate) IsAbout(text string, entity watchschema.TrackedEntity) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	persons, err := g.extractor.Persons(trimmed)
	if err != nil {
		g.logger.Warn().Err(err).Str("entity", entity.Name).Msg("entity extraction failed, rejecting item")
		return false
	}

	// Statistical taggers miss transliterated and regional names, so the
	// tracked name and its aliases act as extra recognition patterns.
	persons = append(persons, rulerMatches(trimmed, entity)...)

	for _, person := range persons {
		if matchesTrackedName(person, entity.Name) {
			return true
		}
		for _, alias := range entity.Aliases {
			if matchesTrackedName(person, alias) {
				return true
			}
		}
	}
	return false
}

// rulerMatches returns the tracked name or alias verbatim when it appears in
// the text, standing in for person mentions the tagger did not label.
func rulerMatches(text string, entity watchschema.TrackedEntity) []string {
	lowered := strings.ToLower(text)

	var matches []string
	if name := strings.TrimSpace(entity.Name); name != "" && strings.Contains(lowered, strings.ToLower(name)) {
		matches = append(matches, name)
	}
	for _, alias := range entity.Aliases {
		if trimmed := strings.TrimSpace(alias); trimmed != "" && strings.Contains(lowered, strings.ToLower(trimmed)) {
			matches = append(matches, trimmed)
		}
	}
	return matches
}

// matchesTrackedName compares a recognized person against a tracked name by
// its significant parts. Parts of two letters or fewer (initials, honorific
// fragments) are skipped so "CR Patil" matches on "Patil" rather than on the
// initials.
func matchesTrackedName(person, trackedName string) bool {
	loweredPerson := strings.ToLower(strings.TrimSpace(person))
	if loweredPerson == "" {
		return false
	}

	for _, part := range strings.Fields(strings.ToLower(trackedName)) {
		if len([]rune(part)) <= 2 {
			continue
		}
		if strings.Contains(loweredPerson, part) {
			return true
		}
	}
	return false
}
