package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidationError collects every problem found in a catalog document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid catalog: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid catalog: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Validate checks the structural rules of the catalog and returns a
// *ValidationError listing every violation.
func (c *Catalog) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Regions) == 0 {
		add("no regions defined")
	}

	seen := make(map[string]bool, len(c.Regions))
	for i, r := range c.Regions {
		label := fmt.Sprintf("regions[%d]", i)
		if strings.TrimSpace(r.ID) == "" {
			add("%s: id is required", label)
		} else {
			label = fmt.Sprintf("region %q", r.ID)
			if seen[r.ID] {
				add("%s: duplicate id", label)
			}
			seen[r.ID] = true
		}
		if r.Lat < -90 || r.Lat > 90 {
			add("%s: latitude %v out of range", label, r.Lat)
		}
		if r.Lng < -180 || r.Lng > 180 {
			add("%s: longitude %v out of range", label, r.Lng)
		}
		if !colorPattern.MatchString(r.Color) {
			add("%s: color %q is not #rrggbb", label, r.Color)
		}
	}

	if len(c.Qualitative) == 0 {
		add("no qualitative phrases defined")
	}
	for i, q := range c.Qualitative {
		if q.Score < 1 || q.Score > 5 {
			add("qualitative[%d]: score %v outside 1..5", i, q.Score)
		}
		if len(q.Phrases) == 0 {
			add("qualitative[%d]: no phrases", i)
		}
	}

	lists := []struct {
		name  string
		words []string
	}{
		{"privacy", c.Keywords.Privacy},
		{"unit", c.Keywords.Unit},
		{"rating_current", c.Keywords.RatingCurrent},
		{"rating_indicator", c.Keywords.RatingIndicator},
		{"rating", c.Keywords.Rating},
		{"region", c.Keywords.Region},
	}
	for _, l := range lists {
		if len(l.words) == 0 {
			add("keywords.%s: list is empty", l.name)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
