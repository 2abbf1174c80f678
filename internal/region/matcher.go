// Package region resolves free-form location strings to canonical regions.
package region

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/perfmap/perfmap/internal/catalog"
	"github.com/perfmap/perfmap/internal/textnorm"
	"github.com/rs/zerolog/log"
)

const (
	prefixRunes   = 4
	minPrefixLen  = 3
	minArabicRate = 0.3
)

type entry struct {
	region catalog.Region
	normID string
	prefix string
	words  []string
	terms  []string
}

// Matcher maps raw region names onto catalog regions. It is immutable after
// construction and safe for concurrent use.
type Matcher struct {
	entries []entry
	byID    map[string]int
}

// NewMatcher precomputes the normalized forms of every region id and alias.
func NewMatcher(regions []catalog.Region) *Matcher {
	m := &Matcher{
		entries: make([]entry, 0, len(regions)),
		byID:    make(map[string]int, len(regions)),
	}

	for _, r := range regions {
		normID := textnorm.Normalize(r.ID)
		e := entry{
			region: r,
			normID: normID,
			prefix: textnorm.Prefix(normID, prefixRunes),
			words:  strings.Fields(normID),
		}

		for _, alias := range append([]string{r.ID}, r.Aliases...) {
			term := textnorm.Normalize(alias)
			if term == "" || slices.Contains(e.terms, term) {
				continue
			}
			e.terms = append(e.terms, term)
		}

		m.byID[r.ID] = len(m.entries)
		m.entries = append(m.entries, e)
	}

	return m
}

// Match returns the id of the region raw refers to. Layers are tried in
// order and the first region to match in catalog order wins:
//
//  1. exact alias equality, then containment in either direction
//  2. the first four letters of a region id appear in the input
//  3. for mostly Arabic input, a word equals or contains a region id
func (m *Matcher) Match(raw any) (string, bool) {
	text, ok := rawString(raw)
	if !ok {
		return "", false
	}

	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return "", false
	}

	for _, e := range m.entries {
		if slices.Contains(e.terms, normalized) {
			log.Debug().Str("region", text).Str("matched", e.region.ID).Msg("Matched region exactly")
			return e.region.ID, true
		}
	}

	for _, e := range m.entries {
		for _, term := range e.terms {
			if strings.Contains(normalized, term) || strings.Contains(term, normalized) {
				log.Debug().Str("region", text).Str("matched", e.region.ID).Str("via", term).Msg("Matched region alias")
				return e.region.ID, true
			}
		}
	}

	if utf8.RuneCountInString(normalized) >= minPrefixLen {
		for _, e := range m.entries {
			if e.prefix != "" && strings.Contains(normalized, e.prefix) {
				log.Debug().Str("region", text).Str("matched", e.region.ID).Msg("Matched region prefix")
				return e.region.ID, true
			}
		}
	}

	if textnorm.ScriptRatio(strings.TrimSpace(text)) > minArabicRate {
		words := strings.Fields(normalized)
		for _, e := range m.entries {
			for _, w := range words {
				if slices.Contains(e.words, w) || strings.Contains(w, e.normID) {
					log.Debug().Str("region", text).Str("matched", e.region.ID).Msg("Matched region word")
					return e.region.ID, true
				}
			}
		}
	}

	log.Debug().Str("region", text).Str("normalized", normalized).Msg("Could not match region")
	return "", false
}

// Region returns the catalog entry for id.
func (m *Matcher) Region(id string) (catalog.Region, bool) {
	i, ok := m.byID[id]
	if !ok {
		return catalog.Region{}, false
	}
	return m.entries[i].region, true
}

// Regions returns the catalog regions in order.
func (m *Matcher) Regions() []catalog.Region {
	out := make([]catalog.Region, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.region
	}
	return out
}

func rawString(raw any) (string, bool) {
	var text string
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		text = v
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		text = fmt.Sprint(v)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.EqualFold(trimmed, "nan") {
		return "", false
	}
	return trimmed, true
}
