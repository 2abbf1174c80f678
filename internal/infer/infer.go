// Package infer picks the unit, rating and region columns of a dataset from
// column names and content.
package infer

import (
	"strings"

	"github.com/perfmap/perfmap/internal/catalog"
	"github.com/perfmap/perfmap/internal/dataset"
	"github.com/rs/zerolog/log"
)

// Selection names the columns an analysis runs over. Region is empty when
// the dataset has no region column.
type Selection struct {
	Unit   string `json:"unit" yaml:"unit"`
	Rating string `json:"rating" yaml:"rating"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// HasRegion reports whether a region column was selected.
func (s Selection) HasRegion() bool {
	return s.Region != ""
}

// Inferrer applies keyword heuristics from the catalog.
type Inferrer struct {
	keywords catalog.Keywords
}

// New returns an inferrer using the given keyword lists. Keywords are
// expected in lowercase.
func New(keywords catalog.Keywords) *Inferrer {
	return &Inferrer{keywords: keywords}
}

// Infer selects the unit, rating and optional region column of ds.
func (in *Inferrer) Infer(ds *dataset.Dataset) Selection {
	if len(ds.Columns) == 0 {
		return Selection{}
	}

	sel := Selection{
		Unit:   in.UnitColumn(ds),
		Rating: in.RatingColumn(ds),
		Region: in.RegionColumn(ds),
	}

	log.Info().
		Str("sheet", ds.Name).
		Str("unit", sel.Unit).
		Str("rating", sel.Rating).
		Str("region", sel.Region).
		Msg("Columns selected")

	return sel
}

// UnitColumn returns the organizational unit column. Columns that look like
// personal identifiers are never chosen by name or content.
func (in *Inferrer) UnitColumn(ds *dataset.Dataset) string {
	if len(ds.Columns) == 0 {
		return ""
	}

	for _, col := range ds.Columns {
		name := strings.ToLower(col)
		if containsAny(name, in.keywords.Privacy) {
			log.Debug().Str("column", col).Msg("Skipping identity column")
			continue
		}
		if containsAny(name, in.keywords.Unit) {
			return col
		}
	}

	for _, col := range ds.Columns {
		if containsAny(strings.ToLower(col), in.keywords.Privacy) {
			continue
		}
		if mostlyText(ds.Column(col)) {
			log.Debug().Str("column", col).Msg("Using first text column as unit")
			return col
		}
	}

	return ds.Columns[0]
}

// RatingColumn returns the rating column, preferring current performance.
func (in *Inferrer) RatingColumn(ds *dataset.Dataset) string {
	if len(ds.Columns) == 0 {
		return ""
	}

	for _, col := range ds.Columns {
		name := strings.ToLower(col)
		if containsAny(name, in.keywords.RatingCurrent) &&
			containsAny(name, in.keywords.RatingIndicator) &&
			numericCount(ds.Column(col)) > 0 {
			return col
		}
	}

	for _, col := range ds.Columns {
		if containsAny(strings.ToLower(col), in.keywords.Rating) && numericCount(ds.Column(col)) > 0 {
			return col
		}
	}

	for _, col := range ds.Columns {
		if numericCount(ds.Column(col))*2 > ds.Len() {
			log.Debug().Str("column", col).Msg("Using first numeric column as rating")
			return col
		}
	}

	return ds.Columns[len(ds.Columns)-1]
}

// RegionColumn returns the first column named like a location, or "".
func (in *Inferrer) RegionColumn(ds *dataset.Dataset) string {
	for _, col := range ds.Columns {
		if containsAny(strings.ToLower(col), in.keywords.Region) {
			return col
		}
	}
	return ""
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func numericCount(cells []dataset.Cell) int {
	n := 0
	for _, c := range cells {
		if _, ok := dataset.ParseNumber(c); ok {
			n++
		}
	}
	return n
}

// mostlyText reports whether more than half of the non-empty cells fail to
// parse as numbers.
func mostlyText(cells []dataset.Cell) bool {
	filled, text := 0, 0
	for _, c := range cells {
		if dataset.IsEmpty(c) {
			continue
		}
		filled++
		if _, ok := dataset.ParseNumber(c); !ok {
			text++
		}
	}
	return filled > 0 && text*2 > filled
}
