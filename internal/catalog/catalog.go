// Package catalog implements the API Catalog & Selector: a static list of
// external API endpoints loaded once from an embedded YAML file, ranked
// against an objective by a role-biased keyword scorer.
package catalog

import (
	_ "embed"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ironmanus/internal/domain"
	"ironmanus/internal/obslog"
)

//go:embed data/apis.yaml
var embeddedCatalog []byte

// AuthType enumerates the authentication schemes an endpoint may require.
type AuthType string

const (
	AuthNone   AuthType = "None"
	AuthAPIKey AuthType = "APIKey"
	AuthOAuth  AuthType = "OAuth"
)

// RateLimitHint describes an API's documented rate limits, when known.
type RateLimitHint struct {
	Requests int `yaml:"requests"`
	Window   int `yaml:"time_window"`
}

// Endpoint describes one catalog entry: a named external API with the
// metadata the selector and report formatter need.
type Endpoint struct {
	Name              string   `yaml:"name"`
	Description       string   `yaml:"description"`
	URL               string   `yaml:"url"`
	Category          string   `yaml:"category"`
	Keywords          []string `yaml:"keywords"`
	AuthType          AuthType `yaml:"auth_type"`
	HTTPS             bool     `yaml:"https"`
	CORS              bool     `yaml:"cors"`
	ReliabilityScore  float64  `yaml:"reliability_score"`
	RateLimits        *RateLimitHint `yaml:"rate_limits,omitempty"`
	EndpointPatterns  []string `yaml:"endpoint_patterns,omitempty"`
	DocumentationURL  string   `yaml:"documentation_url,omitempty"`
	HealthCheckURL    string   `yaml:"health_check_endpoint,omitempty"`
}

type catalogFile struct {
	APIs []Endpoint `yaml:"apis"`
}

// RoleCategoryBias is the fixed role→preferred-category table; the scorer
// adds 0.3 to any API whose category is preferred for the detected role.
var RoleCategoryBias = map[domain.Role][]string{
	"planner":       {"productivity", "calendar"},
	"coder":         {"development", "tools"},
	"critic":        {"testing", "security"},
	"researcher":    {"books", "science", "news", "reference"},
	"analyzer":      {"data", "finance", "analytics"},
	"synthesizer":   {"integration", "data"},
	"ui_architect":  {"art", "design", "color"},
	"ui_implementer": {"art", "design", "color"},
	"ui_refiner":    {"art", "design", "color"},
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "into": {}, "about": {}, "your": {}, "have": {}, "what": {},
	"are": {}, "can": {}, "will": {}, "our": {}, "use": {}, "using": {},
}

// Catalog holds the loaded, immutable API list.
type Catalog struct {
	apis   []Endpoint
	logger obslog.Logger
}

// Load parses the embedded YAML catalog once at process start.
func Load(logger obslog.Logger) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(embeddedCatalog, &cf); err != nil {
		return nil, err
	}
	c := &Catalog{apis: cf.APIs, logger: obslog.Component(logger, "engine/catalog")}
	c.logger.Info("catalog loaded", map[string]interface{}{"count": len(c.apis)})
	return c, nil
}

// All returns a copy of the full catalog, for tools that want to inspect
// it directly (e.g. category_filter in APITaskAgent).
func (c *Catalog) All() []Endpoint {
	out := make([]Endpoint, len(c.apis))
	copy(out, c.apis)
	return out
}

// Scored pairs an Endpoint with its computed relevance score and the
// keywords that matched, for the prompt/report text the pipeline assembles.
type Scored struct {
	Endpoint        Endpoint
	Score           float64
	MatchedKeywords []string
	RoleBonus       bool
}

// tokenize lowercases, strips non-alphanumerics, and drops short/stop words.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{})
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// SelectRelevantAPIs ranks the catalog against objective, biased toward
// role's preferred categories, and returns the top k.
func (c *Catalog) SelectRelevantAPIs(objective string, role domain.Role, k int) []Scored {
	if k <= 0 {
		k = 5
	}
	keywords := tokenize(objective)
	preferred := RoleCategoryBias[role]
	preferredSet := make(map[string]struct{}, len(preferred))
	for _, p := range preferred {
		preferredSet[p] = struct{}{}
	}

	scored := make([]Scored, 0, len(c.apis))
	for _, api := range c.apis {
		s, matched := scoreAPI(api, keywords, preferredSet)
		scored = append(scored, Scored{
			Endpoint:        api,
			Score:           s,
			MatchedKeywords: matched,
			RoleBonus:       hasCategory(preferredSet, api.Category),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Endpoint.ReliabilityScore > scored[j].Endpoint.ReliabilityScore
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func hasCategory(set map[string]struct{}, category string) bool {
	_, ok := set[category]
	return ok
}

func scoreAPI(api Endpoint, keywords []string, preferredCategories map[string]struct{}) (float64, []string) {
	haystack := make(map[string]struct{}, len(api.Keywords)+2)
	for _, kw := range api.Keywords {
		haystack[strings.ToLower(kw)] = struct{}{}
	}
	haystack[strings.ToLower(api.Name)] = struct{}{}
	haystack[strings.ToLower(api.Category)] = struct{}{}

	var matched []string
	for _, kw := range keywords {
		if _, ok := haystack[kw]; ok {
			matched = append(matched, kw)
		}
	}

	keywordTerm := 0.1 * float64(len(matched))
	if keywordTerm > 0.6 {
		keywordTerm = 0.6
	}

	score := keywordTerm
	if hasCategory(preferredCategories, api.Category) {
		score += 0.3
	}
	score += 0.1 * api.ReliabilityScore
	if api.AuthType == AuthNone {
		score += 0.05
	}
	if api.HTTPS {
		score += 0.025
	}
	if api.CORS {
		score += 0.025
	}
	if score > 1.0 {
		score = 1.0
	}
	return score, matched
}
