package normalize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CategoryRule maps a category label to the title keywords that select it.
// Rules are evaluated in order and the first hit wins, so broad categories
// belong at the top of the table.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// FallbackCategory is assigned when no rule matches.
const FallbackCategory = "Other"

func defaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{
			Name: "Politics",
			Keywords: []string{
				"election", "parliament", "bjp", "congress", "party", "vote",
				"campaign", "political", "minister", "opposition",
				"lok sabha", "rajya sabha",
			},
		},
		{
			Name: "Governance",
			Keywords: []string{
				"policy", "scheme", "government", "cabinet", "ordinance",
				"bill", "reform", "administration", "governance", "ministry",
			},
		},
		{
			Name: "Economy",
			Keywords: []string{
				"gdp", "economy", "budget", "tax", "finance", "trade",
				"investment", "fiscal", "inflation", "rbi", "market",
			},
		},
		{
			Name: "Infrastructure",
			Keywords: []string{
				"road", "highway", "bridge", "railway", "metro", "airport",
				"port", "construction", "inaugurate", "project", "smart city",
			},
		},
		{
			Name: "Diplomacy",
			Keywords: []string{
				"summit", "bilateral", "foreign", "ambassador", "diplomatic",
				"treaty", "g20", "un", "nato", "brics", "quad",
			},
		},
		{
			Name: "Defence",
			Keywords: []string{
				"army", "navy", "airforce", "military", "defence", "defense",
				"weapon", "border", "security", "soldier",
			},
		},
		{
			Name: "Technology",
			Keywords: []string{
				"digital", "tech", "startup", "innovation", "ai", "cyber",
				"space", "isro", "satellite", "internet",
			},
		},
		{
			Name: "Social",
			Keywords: []string{
				"education", "health", "hospital", "school", "university",
				"poverty", "welfare", "women", "farmer", "rural",
			},
		},
		{
			Name: "Event",
			Keywords: []string{
				"rally", "speech", "conference", "visit", "inauguration",
				"ceremony", "meeting", "address", "function",
			},
		},
	}
}

// Categorizer assigns a category label to an article title.
type Categorizer struct {
	rules []CategoryRule
}

// NewCategorizer returns a categorizer with the built-in rule table.
func NewCategorizer() *Categorizer {
	return &Categorizer{rules: defaultCategoryRules()}
}

// LoadCategorizer reads a rule table from a YAML file. An empty path falls
// back to the built-in table.
func LoadCategorizer(path string) (*Categorizer, error) {
	if strings.TrimSpace(path) == "" {
		return NewCategorizer(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category rules %s: %w", path, err)
	}

	var rules []CategoryRule
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse category rules %s: %w", path, err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("category rules %s define no categories", path)
	}
	for i, rule := range rules {
		if strings.TrimSpace(rule.Name) == "" {
			return nil, fmt.Errorf("category rules %s: rule %d has no name", path, i)
		}
		if len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("category rules %s: rule %q has no keywords", path, rule.Name)
		}
	}

	return &Categorizer{rules: rules}, nil
}

// Categorize returns the first rule whose keyword appears in the title,
// matched case-insensitively.
func (c *Categorizer) Categorize(title string) string {
	lowered := strings.ToLower(title)
	for _, rule := range c.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(lowered, strings.ToLower(keyword)) {
				return rule.Name
			}
		}
	}
	return FallbackCategory
}
