package watchschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed watchlist.schema.json
var watchlistSchemaJSON string

// TrackedEntity is one person whose coverage the system monitors.
type TrackedEntity struct {
	Name      string   `json:"name"`
	Query     string   `json:"query,omitempty"`
	Aliases   []string `json:"aliases,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// Watchlist is the validated tracked-entity configuration.
type Watchlist struct {
	WatchlistVersion string          `json:"watchlist_version"`
	Entities         []TrackedEntity `json:"entities"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateWatchlist checks payload against the embedded v1 schema and returns
// the decoded watchlist with defaults applied.
func ValidateWatchlist(payload json.RawMessage) (*Watchlist, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode watchlist JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize watchlist JSON: %w", err)
	}

	var list Watchlist
	if err := json.Unmarshal(normalized, &list); err != nil {
		return nil, fmt.Errorf("unmarshal watchlist: %w", err)
	}

	if err := applyDefaults(&list); err != nil {
		return nil, err
	}

	return &list, nil
}

// LoadWatchlistFile reads and validates a watchlist JSON file.
func LoadWatchlistFile(path string) (*Watchlist, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist file %q: %w", path, err)
	}
	list, err := ValidateWatchlist(payload)
	if err != nil {
		return nil, fmt.Errorf("watchlist file %q: %w", path, err)
	}
	return list, nil
}

func applyDefaults(list *Watchlist) error {
	seen := make(map[string]struct{}, len(list.Entities))
	for i := range list.Entities {
		entity := &list.Entities[i]
		entity.Name = strings.TrimSpace(entity.Name)
		if entity.Name == "" {
			return fmt.Errorf("entities[%d].name must not be blank", i)
		}

		lowered := strings.ToLower(entity.Name)
		if _, exists := seen[lowered]; exists {
			return fmt.Errorf("duplicate tracked entity %q", entity.Name)
		}
		seen[lowered] = struct{}{}

		if strings.TrimSpace(entity.Query) == "" {
			entity.Query = fmt.Sprintf("%q", entity.Name)
		}
		entity.Aliases = dedupeTrimmed(entity.Aliases)
		// Entities without explicit languages inherit the configured default
		// list at collection time.
		entity.Languages = dedupeTrimmed(entity.Languages)
		for j, language := range entity.Languages {
			entity.Languages[j] = strings.ToLower(language)
		}
	}
	return nil
}

func dedupeTrimmed(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("watchlist.schema.json", strings.NewReader(watchlistSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile("watchlist.schema.json")
	})
	return compiledSchema, compiledSchemaErr
}

func decodeStrictJSON(payload json.RawMessage) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := ensureSingleDocument(decoder); err != nil {
		return nil, err
	}
	return value, nil
}

func ensureSingleDocument(decoder *json.Decoder) error {
	if _, err := decoder.Token(); err != io.EOF {
		return fmt.Errorf("payload must contain exactly one JSON document")
	}
	return nil
}
