package analysis

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/perfmap/perfmap/internal/dataset"
	"github.com/perfmap/perfmap/internal/rating"
)

// ErrMissingColumns is returned when a column request names no unit column
// or no rating column.
var ErrMissingColumns = errors.New("a unit column and at least one rating column are required")

// ColumnError reports a requested column that the dataset does not have.
type ColumnError struct {
	Column string
	Role   string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s column %q not found", e.Role, e.Column)
}

// AnalyzeColumns aggregates ds over explicitly chosen columns. Each rating
// column is summarized on its own; the merged ranking averages a
// department's per column averages and keeps its largest row count.
func (a *Analyzer) AnalyzeColumns(ds *dataset.Dataset, req ColumnRequest) (*CustomResult, error) {
	if req.Unit == "" || len(req.Ratings) == 0 {
		return nil, ErrMissingColumns
	}
	if !ds.HasColumn(req.Unit) {
		return nil, &ColumnError{Column: req.Unit, Role: "unit"}
	}

	columns := make([]string, 0, len(req.Ratings))
	for _, col := range req.Ratings {
		if !ds.HasColumn(col) {
			return nil, &ColumnError{Column: col, Role: "rating"}
		}
		if !slices.Contains(columns, col) {
			columns = append(columns, col)
		}
	}

	res := &CustomResult{
		TotalRecords:   ds.Len(),
		TopDepartments: []Department{},
		ColumnDetails:  make(map[string]*ColumnDetail, len(columns)),
		ColumnsUsed:    ColumnsUsed{Unit: req.Unit, Ratings: columns},
	}

	type merged struct {
		name      string
		averages  []float64
		employees int
	}
	var order []*merged
	index := make(map[string]*merged)

	var sum float64
	for _, col := range columns {
		var colSum float64
		colN := 0
		for _, cell := range ds.Column(col) {
			if r, ok := a.converter.Convert(cell); ok {
				colSum += r
				colN++
			}
		}
		sum += colSum
		res.ValidRatings += colN

		groups := a.groupDepartments(ds, req.Unit, col)
		detail := &ColumnDetail{
			ValidRatings:   colN,
			TopDepartments: topDepartments(rankDepartments(groups)),
		}
		if colN > 0 {
			detail.AvgRating = rating.Round2(colSum / float64(colN))
		}
		res.ColumnDetails[col] = detail

		for _, g := range groups {
			m, ok := index[g.name]
			if !ok {
				m = &merged{name: g.name}
				index[g.name] = m
				order = append(order, m)
			}
			m.averages = append(m.averages, g.avg)
			m.employees = max(m.employees, g.rows)
		}
	}

	if res.ValidRatings > 0 {
		res.AvgRating = rating.Round2(sum / float64(res.ValidRatings))
	}

	ranking := make([]Department, 0, len(order))
	for _, m := range order {
		ranking = append(ranking, Department{
			Name:      m.name,
			Rating:    rating.Round2(rating.Mean(m.averages)),
			Employees: m.employees,
		})
	}
	slices.SortStableFunc(ranking, func(x, y Department) int {
		return cmp.Compare(y.Rating, x.Rating)
	})
	res.TopDepartments = ranking[:min(len(ranking), TopN)]

	return res, nil
}
