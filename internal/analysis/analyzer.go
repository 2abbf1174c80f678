// Package analysis aggregates performance ratings by organizational unit and
// by canonical region.
package analysis

import (
	"cmp"
	"slices"

	"github.com/perfmap/perfmap/internal/catalog"
	"github.com/perfmap/perfmap/internal/dataset"
	"github.com/perfmap/perfmap/internal/infer"
	"github.com/perfmap/perfmap/internal/rating"
	"github.com/perfmap/perfmap/internal/region"
	"github.com/rs/zerolog/log"
)

// TopN is the length of department rankings.
const TopN = 10

// Analyzer runs inference and aggregation. It holds no per-run state and is
// safe for concurrent use.
type Analyzer struct {
	matcher     *region.Matcher
	converter   *rating.Converter
	inferrer    *infer.Inferrer
	unspecified string
}

// New builds an analyzer from a catalog.
func New(cat *catalog.Catalog) *Analyzer {
	unspecified := cat.UnspecifiedUnit
	if unspecified == "" {
		unspecified = "غير محدد"
	}

	return &Analyzer{
		matcher:     region.NewMatcher(cat.Regions),
		converter:   rating.NewConverter(cat.Phrases()),
		inferrer:    infer.New(cat.Keywords),
		unspecified: unspecified,
	}
}

// Matcher returns the region matcher used by the analyzer.
func (a *Analyzer) Matcher() *region.Matcher {
	return a.matcher
}

// Infer selects the analysis columns of ds.
func (a *Analyzer) Infer(ds *dataset.Dataset) infer.Selection {
	return a.inferrer.Infer(ds)
}

// Analyze infers the columns of ds and aggregates it.
func (a *Analyzer) Analyze(ds *dataset.Dataset, p Progress) *Result {
	report(p, StageColumns)
	sel := a.inferrer.Infer(ds)
	return a.Aggregate(ds, sel, p)
}

// Aggregate summarizes ds over the selected columns. It never fails: a
// rating column without convertible values yields an average of 0 and an
// empty ranking.
func (a *Analyzer) Aggregate(ds *dataset.Dataset, sel infer.Selection, p Progress) *Result {
	res := &Result{
		TotalRecords:   ds.Len(),
		TopDepartments: []Department{},
		RegionalData:   map[string]*Region{},
		RegionSource:   RegionSourceNone,
		Columns:        sel,
	}

	report(p, StageRatings)
	res.ValidRatings, res.AvgRating = a.columnStats(ds, sel.Rating)

	report(p, StageDepartments)
	groups := a.groupDepartments(ds, sel.Unit, sel.Rating)
	res.TopDepartments = topDepartments(rankDepartments(groups))

	report(p, StageRegions)
	if sel.HasRegion() {
		res.RegionalData = a.regionsFromColumn(ds, sel)
		res.RegionSource = RegionSourceColumn
	} else if regions := a.regionsFromDepartments(groups); len(regions) > 0 {
		res.RegionalData = regions
		res.RegionSource = RegionSourceDepartments
	} else if regions := a.aggregatedRegions(groups); len(regions) > 0 {
		log.Warn().Str("sheet", ds.Name).Msg("No regions detected, using aggregated view")
		res.RegionalData = regions
		res.RegionSource = RegionSourceAggregated
	}
	if len(res.RegionalData) == 0 {
		res.RegionSource = RegionSourceNone
	}

	log.Info().
		Str("sheet", ds.Name).
		Int("records", res.TotalRecords).
		Int("valid_ratings", res.ValidRatings).
		Int("regions", len(res.RegionalData)).
		Msg("Analysis complete")

	report(p, StageComplete)
	return res
}

func (a *Analyzer) columnStats(ds *dataset.Dataset, col string) (int, float64) {
	var sum float64
	n := 0
	for _, cell := range ds.Column(col) {
		if r, ok := a.converter.Convert(cell); ok {
			sum += r
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return n, rating.Round2(sum / float64(n))
}

// deptStat is one unit group: rows counts every row of the group, avg covers
// only its convertible ratings.
type deptStat struct {
	name  string
	rows  int
	valid int
	avg   float64
}

// groupDepartments groups rows by unit value in ascending key order and
// drops groups without a convertible rating. Rows with an empty unit are
// not grouped.
func (a *Analyzer) groupDepartments(ds *dataset.Dataset, unitCol, ratingCol string) []deptStat {
	if unitCol == "" {
		return nil
	}

	type acc struct {
		rows int
		sum  float64
		n    int
	}
	groups := make(map[string]*acc)
	for _, row := range ds.Rows {
		key := dataset.CellString(row[unitCol])
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &acc{}
			groups[key] = g
		}
		g.rows++
		if r, ok := a.converter.Convert(row[ratingCol]); ok {
			g.sum += r
			g.n++
		}
	}

	stats := make([]deptStat, 0, len(groups))
	for name, g := range groups {
		if g.n == 0 {
			continue
		}
		stats = append(stats, deptStat{
			name:  name,
			rows:  g.rows,
			valid: g.n,
			avg:   rating.Round2(g.sum / float64(g.n)),
		})
	}
	slices.SortFunc(stats, func(x, y deptStat) int {
		return cmp.Compare(x.name, y.name)
	})

	return stats
}

// rankDepartments returns a copy of stats ordered by average, highest first.
// Equal averages keep their relative order.
func rankDepartments(stats []deptStat) []deptStat {
	ranked := slices.Clone(stats)
	slices.SortStableFunc(ranked, func(x, y deptStat) int {
		return cmp.Compare(y.avg, x.avg)
	})
	return ranked
}

func topDepartments(ranked []deptStat) []Department {
	n := min(len(ranked), TopN)
	out := make([]Department, 0, n)
	for _, d := range ranked[:n] {
		out = append(out, Department{Name: d.name, Rating: d.avg, Employees: d.rows})
	}
	return out
}
