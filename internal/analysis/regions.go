package analysis

import (
	"cmp"
	"slices"
	"strings"

	"github.com/perfmap/perfmap/internal/dataset"
	"github.com/perfmap/perfmap/internal/infer"
	"github.com/perfmap/perfmap/internal/rating"
)

// aggregatedRegionCount is how many catalog regions receive the pooled
// placeholder summary when nothing in the data names a region.
const aggregatedRegionCount = 5

type unitRatings struct {
	name string
	sum  float64
	n    int
}

type regionBucket struct {
	rows  int
	sum   float64
	n     int
	units []*unitRatings
	index map[string]*unitRatings
}

func (b *regionBucket) add(unit string, r float64) {
	b.sum += r
	b.n++

	u, ok := b.index[unit]
	if !ok {
		u = &unitRatings{name: unit}
		b.index[unit] = u
		b.units = append(b.units, u)
	}
	u.sum += r
	u.n++
}

// regionsFromColumn groups rows by the region column. Region strings that
// resolve to the same canonical region are pooled; unmatched strings and
// regions without a convertible rating are dropped.
func (a *Analyzer) regionsFromColumn(ds *dataset.Dataset, sel infer.Selection) map[string]*Region {
	matched := make(map[string]string)
	buckets := make(map[string]*regionBucket)

	for _, row := range ds.Rows {
		key := dataset.CellString(row[sel.Region])
		if key == "" || strings.EqualFold(key, "nan") {
			continue
		}

		id, seen := matched[key]
		if !seen {
			id, _ = a.matcher.Match(key)
			matched[key] = id
		}
		if id == "" {
			continue
		}

		b, ok := buckets[id]
		if !ok {
			b = &regionBucket{index: make(map[string]*unitRatings)}
			buckets[id] = b
		}
		b.rows++

		r, ok := a.converter.Convert(row[sel.Rating])
		if !ok {
			continue
		}

		unit := dataset.CellString(row[sel.Unit])
		if unit == "" {
			unit = a.unspecified
		}
		b.add(unit, r)
	}

	regions := make(map[string]*Region, len(buckets))
	for id, b := range buckets {
		if b.n == 0 {
			continue
		}

		details := make([]DepartmentDetail, 0, len(b.units))
		for _, u := range b.units {
			details = append(details, DepartmentDetail{
				Name:      u.name,
				AvgRating: rating.Round2(u.sum / float64(u.n)),
				Employees: u.n,
			})
		}

		regions[id] = a.newRegion(id, b.rows, rating.Round2(b.sum/float64(b.n)), details)
	}

	return regions
}

// regionsFromDepartments matches department names against the catalog and
// pools matching departments per region. Each department contributes its
// average once per row.
func (a *Analyzer) regionsFromDepartments(groups []deptStat) map[string]*Region {
	byRegion := make(map[string][]deptStat)
	for _, d := range groups {
		if id, ok := a.matcher.Match(d.name); ok {
			byRegion[id] = append(byRegion[id], d)
		}
	}

	regions := make(map[string]*Region, len(byRegion))
	for id, depts := range byRegion {
		employees, avg, details := pool(depts)
		regions[id] = a.newRegion(id, employees, avg, details)
	}

	return regions
}

// aggregatedRegions assigns the same pooled summary of every department to
// the first catalog regions and flags them as aggregated.
func (a *Analyzer) aggregatedRegions(groups []deptStat) map[string]*Region {
	if len(groups) == 0 {
		return nil
	}

	employees, avg, details := pool(groups)

	catalogRegions := a.matcher.Regions()
	n := min(len(catalogRegions), aggregatedRegionCount)

	regions := make(map[string]*Region, n)
	for _, r := range catalogRegions[:n] {
		region := a.newRegion(r.ID, employees, avg, slices.Clone(details))
		region.Aggregated = true
		regions[r.ID] = region
	}

	return regions
}

func pool(depts []deptStat) (int, float64, []DepartmentDetail) {
	var weighted float64
	employees := 0
	details := make([]DepartmentDetail, 0, len(depts))

	for _, d := range depts {
		weighted += d.avg * float64(d.rows)
		employees += d.rows
		details = append(details, DepartmentDetail{
			Name:      d.name,
			AvgRating: d.avg,
			Employees: d.rows,
		})
	}

	if employees == 0 {
		return 0, 0, details
	}
	return employees, rating.Round2(weighted / float64(employees)), details
}

// newRegion decorates a summary with catalog data and orders its
// departments by average, highest first.
func (a *Analyzer) newRegion(id string, employees int, avg float64, details []DepartmentDetail) *Region {
	slices.SortStableFunc(details, func(x, y DepartmentDetail) int {
		return cmp.Compare(y.AvgRating, x.AvgRating)
	})

	region := &Region{
		ID:          id,
		Employees:   employees,
		AvgRating:   avg,
		Departments: len(details),
		DeptDetails: details,
	}

	if entry, ok := a.matcher.Region(id); ok {
		region.Name = entry.Name
		region.Lat = entry.Lat
		region.Lng = entry.Lng
		region.Color = entry.Color
	}

	if len(details) > 0 {
		top := details[0]
		low := details[len(details)-1]
		region.TopDept = &top
		region.LowDept = &low
	}

	return region
}
