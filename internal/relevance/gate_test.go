package relevance

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/newswatch/schema"
)

type stubExtractor struct {
	persons []string
	err     error
}

func (s *stubExtractor) Persons(string) ([]string, error) {
	return s.persons, s.err
}

var modi = watchschema.TrackedEntity{
	Name:    "Narendra Modi",
	Aliases: []string{"PM Modi", "नरेंद्र मोदी"},
}

func TestIsAboutAcceptsRecognizedPerson(t *testing.T) {
	t.Parallel()

	gate := NewGate(&stubExtractor{persons: []string{"Narendra Modi"}}, zerolog.Nop())
	if !gate.IsAbout("Narendra Modi addresses the nation", modi) {
		t.Fatalf("expected full-name person mention to pass the gate")
	}
}

func TestIsAboutAcceptsSurnameOnlyMention(t *testing.T) {
	t.Parallel()

	gate := NewGate(&stubExtractor{persons: []string{"Modi"}}, zerolog.Nop())
	if !gate.IsAbout("Modi to visit Gujarat next week", modi) {
		t.Fatalf("expected surname person mention to pass the gate")
	}
}

func TestIsAboutRejectsKeywordHitWithoutPerson(t *testing.T) {
	t.Parallel()

	// "Modi Toys" matches the query string but the tagger labels it as an
	// organization, so no person reaches the matcher.
	gate := NewGate(&stubExtractor{persons: nil}, zerolog.Nop())
	if gate.IsAbout("Modi Toys launches a new plush line", modi) {
		t.Fatalf("expected organization-only mention to be rejected")
	}
}

func TestIsAboutAliasActsAsRecognitionPattern(t *testing.T) {
	t.Parallel()

	// Tagger finds nothing in Hindi text; the alias ruler still recognizes
	// the tracked name.
	gate := NewGate(&stubExtractor{persons: nil}, zerolog.Nop())
	if !gate.IsAbout("नरेंद्र मोदी ने आज भाषण दिया", modi) {
		t.Fatalf("expected alias match to pass the gate")
	}
}

func TestIsAboutRejectsOnExtractorFailure(t *testing.T) {
	t.Parallel()

	gate := NewGate(&stubExtractor{err: fmt.Errorf("model unavailable")}, zerolog.Nop())
	if gate.IsAbout("Narendra Modi addresses the nation", modi) {
		t.Fatalf("expected extraction failure to reject the item")
	}
}

func TestMatchesTrackedNameSkipsShortParts(t *testing.T) {
	t.Parallel()

	if !matchesTrackedName("Patil", "CR Patil") {
		t.Fatalf("expected surname to match")
	}
	if matchesTrackedName("CR Sharma", "CR Patil") {
		t.Fatalf("expected initials alone not to match")
	}
}

func TestIsAboutEmptyText(t *testing.T) {
	t.Parallel()

	gate := NewGate(&stubExtractor{persons: []string{"Narendra Modi"}}, zerolog.Nop())
	if gate.IsAbout("   ", modi) {
		t.Fatalf("expected blank text to be rejected")
	}
}
