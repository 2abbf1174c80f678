// Package catalog holds the static configuration that drives inference and
// matching: the canonical regions with their aliases, the column keyword
// lists and the qualitative rating phrases.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/perfmap/perfmap/internal/rating"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Region is a canonical administrative region.
type Region struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Lat     float64  `yaml:"lat" json:"lat"`
	Lng     float64  `yaml:"lng" json:"lng"`
	Color   string   `yaml:"color" json:"color"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

// Keywords are matched as lowercase substrings of column names.
type Keywords struct {
	Privacy         []string `yaml:"privacy" json:"privacy"`
	Unit            []string `yaml:"unit" json:"unit"`
	RatingCurrent   []string `yaml:"rating_current" json:"rating_current"`
	RatingIndicator []string `yaml:"rating_indicator" json:"rating_indicator"`
	Rating          []string `yaml:"rating" json:"rating"`
	Region          []string `yaml:"region" json:"region"`
}

// Qualitative maps free-text labels to a fixed score.
type Qualitative struct {
	Score   float64  `yaml:"score" json:"score"`
	Phrases []string `yaml:"phrases" json:"phrases"`
}

// Catalog is the full configuration document.
type Catalog struct {
	UnspecifiedUnit string        `yaml:"unspecified_unit" json:"unspecified_unit"`
	Regions         []Region      `yaml:"regions" json:"regions"`
	Keywords        Keywords      `yaml:"keywords" json:"keywords"`
	Qualitative     []Qualitative `yaml:"qualitative" json:"qualitative"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog. It panics if the embedded document
// is invalid, which can only happen through a broken build.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(defaultYAML)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", defaultErr))
	}
	return defaultCatalog
}

// DefaultYAML returns the raw embedded document.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultYAML))
	copy(out, defaultYAML)
	return out
}

// Load reads a catalog from path. An empty path selects the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	return cat, nil
}

// Parse decodes and validates a catalog document. Keywords are lowercased.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	cat.Keywords = cat.Keywords.lowered()

	if err := cat.Validate(); err != nil {
		return nil, err
	}

	return &cat, nil
}

// Phrases converts the qualitative table for the rating converter.
func (c *Catalog) Phrases() []rating.Phrase {
	phrases := make([]rating.Phrase, 0, len(c.Qualitative))
	for _, q := range c.Qualitative {
		phrases = append(phrases, rating.Phrase{Score: q.Score, Terms: q.Phrases})
	}
	return phrases
}

// RegionIDs returns the region ids in catalog order.
func (c *Catalog) RegionIDs() []string {
	ids := make([]string, len(c.Regions))
	for i, r := range c.Regions {
		ids[i] = r.ID
	}
	return ids
}

func (k Keywords) lowered() Keywords {
	return Keywords{
		Privacy:         lowerAll(k.Privacy),
		Unit:            lowerAll(k.Unit),
		RatingCurrent:   lowerAll(k.RatingCurrent),
		RatingIndicator: lowerAll(k.RatingIndicator),
		Rating:          lowerAll(k.Rating),
		Region:          lowerAll(k.Region),
	}
}

func lowerAll(words []string) []string {
	if words == nil {
		return nil
	}
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
