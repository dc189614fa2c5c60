package watchschema

import (
	"encoding/json"
	"testing"
)

func TestValidateWatchlistDefaults(t *testing.T) {
	t.Parallel()

	list, err := ValidateWatchlist(json.RawMessage(`{
		"watchlist_version": "v1",
		"entities": [
			{"name": "Narendra Modi", "aliases": ["PM Modi", "pm modi", " "]},
			{"name": "CR Patil", "query": "\"CR Patil\" OR \"C.R. Patil\"", "languages": ["EN", "hi", "en"]}
		]
	}`))
	if err != nil {
		t.Fatalf("ValidateWatchlist failed: %v", err)
	}

	if len(list.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(list.Entities))
	}

	modi := list.Entities[0]
	if modi.Query != `"Narendra Modi"` {
		t.Fatalf("expected quoted default query, got %q", modi.Query)
	}
	if len(modi.Aliases) != 1 || modi.Aliases[0] != "PM Modi" {
		t.Fatalf("expected deduplicated aliases, got %v", modi.Aliases)
	}
	if len(modi.Languages) != 0 {
		t.Fatalf("expected no default languages, got %v", modi.Languages)
	}

	patil := list.Entities[1]
	if patil.Query != `"CR Patil" OR "C.R. Patil"` {
		t.Fatalf("explicit query must survive, got %q", patil.Query)
	}
	if len(patil.Languages) != 2 || patil.Languages[0] != "en" || patil.Languages[1] != "hi" {
		t.Fatalf("expected lowercased deduplicated languages, got %v", patil.Languages)
	}
}

func TestValidateWatchlistRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := ValidateWatchlist(json.RawMessage(`{
		"watchlist_version": "v1",
		"entities": [
			{"name": "Narendra Modi"},
			{"name": "narendra modi"}
		]
	}`))
	if err == nil {
		t.Fatalf("expected duplicate entity names to be rejected")
	}
}

func TestValidateWatchlistRejectsWrongVersion(t *testing.T) {
	t.Parallel()

	_, err := ValidateWatchlist(json.RawMessage(`{
		"watchlist_version": "v2",
		"entities": [{"name": "Narendra Modi"}]
	}`))
	if err == nil {
		t.Fatalf("expected v2 payload to be rejected")
	}
}

func TestValidateWatchlistRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := ValidateWatchlist(json.RawMessage(`{
		"watchlist_version": "v1",
		"entities": [{"name": "Narendra Modi", "priority": 1}]
	}`))
	if err == nil {
		t.Fatalf("expected unknown entity field to be rejected")
	}
}

func TestValidateWatchlistRejectsEmptyEntities(t *testing.T) {
	t.Parallel()

	_, err := ValidateWatchlist(json.RawMessage(`{"watchlist_version": "v1", "entities": []}`))
	if err == nil {
		t.Fatalf("expected empty entity list to be rejected")
	}
}

func TestValidateWatchlistRejectsTrailingDocument(t *testing.T) {
	t.Parallel()

	_, err := ValidateWatchlist(json.RawMessage(`{"watchlist_version": "v1", "entities": [{"name": "A"}]} {}`))
	if err == nil {
		t.Fatalf("expected trailing JSON document to be rejected")
	}
}
