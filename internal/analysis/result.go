package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/perfmap/perfmap/internal/infer"
)

// RegionSource records which regional aggregation tier produced the data.
type RegionSource string

const (
	RegionSourceColumn      RegionSource = "column"
	RegionSourceDepartments RegionSource = "departments"
	RegionSourceAggregated  RegionSource = "aggregated"
	RegionSourceNone        RegionSource = "none"
)

// Department is an entry of the overall department ranking.
type Department struct {
	Name      string  `json:"name" yaml:"name"`
	Rating    float64 `json:"rating" yaml:"rating"`
	Employees int     `json:"employees" yaml:"employees"`
}

// DepartmentDetail is a department within one region.
type DepartmentDetail struct {
	Name      string  `json:"name" yaml:"name"`
	AvgRating float64 `json:"avg_rating" yaml:"avg_rating"`
	Employees int     `json:"employees" yaml:"employees"`
}

// Region summarizes the rows attributed to one canonical region.
type Region struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	Lat         float64            `json:"lat" yaml:"lat"`
	Lng         float64            `json:"lng" yaml:"lng"`
	Color       string             `json:"color" yaml:"color"`
	Employees   int                `json:"employees" yaml:"employees"`
	AvgRating   float64            `json:"avg_rating" yaml:"avg_rating"`
	Departments int                `json:"departments" yaml:"departments"`
	DeptDetails []DepartmentDetail `json:"dept_details" yaml:"dept_details"`
	TopDept     *DepartmentDetail  `json:"top_dept" yaml:"top_dept"`
	LowDept     *DepartmentDetail  `json:"low_dept" yaml:"low_dept"`
	Aggregated  bool               `json:"aggregated,omitempty" yaml:"aggregated,omitempty"`
}

// Result is the summary of one analysis run.
type Result struct {
	TotalRecords   int                `json:"total_records" yaml:"total_records"`
	ValidRatings   int                `json:"valid_ratings" yaml:"valid_ratings"`
	AvgRating      float64            `json:"avg_rating" yaml:"avg_rating"`
	TopDepartments []Department       `json:"top_departments" yaml:"top_departments"`
	RegionalData   map[string]*Region `json:"regional_data" yaml:"regional_data"`
	RegionSource   RegionSource       `json:"region_source" yaml:"region_source"`
	Columns        infer.Selection    `json:"columns" yaml:"columns"`
}

// ColumnRequest selects columns explicitly instead of inferring them.
type ColumnRequest struct {
	Unit    string   `json:"dept_column" yaml:"dept_column"`
	Ratings []string `json:"rating_columns" yaml:"rating_columns"`
}

// UnmarshalJSON accepts rating_columns as either a list or a single string.
func (r *ColumnRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Unit    string          `json:"dept_column"`
		Ratings json.RawMessage `json:"rating_columns"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Unit = raw.Unit
	r.Ratings = nil
	if len(raw.Ratings) == 0 || string(raw.Ratings) == "null" {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw.Ratings, &single); err == nil {
		if single != "" {
			r.Ratings = []string{single}
		}
		return nil
	}

	if err := json.Unmarshal(raw.Ratings, &r.Ratings); err != nil {
		return fmt.Errorf("rating_columns must be a string or a list of strings: %w", err)
	}
	return nil
}

// ColumnDetail is the per rating column part of a CustomResult.
type ColumnDetail struct {
	ValidRatings   int          `json:"valid_ratings" yaml:"valid_ratings"`
	AvgRating      float64      `json:"avg" yaml:"avg"`
	TopDepartments []Department `json:"top_departments" yaml:"top_departments"`
}

// ColumnsUsed echoes the columns of a CustomResult.
type ColumnsUsed struct {
	Unit    string   `json:"dept" yaml:"dept"`
	Ratings []string `json:"ratings" yaml:"ratings"`
}

// CustomResult is the outcome of an explicit column analysis.
type CustomResult struct {
	TotalRecords   int                      `json:"total_records" yaml:"total_records"`
	ValidRatings   int                      `json:"valid_ratings" yaml:"valid_ratings"`
	AvgRating      float64                  `json:"avg_rating" yaml:"avg_rating"`
	TopDepartments []Department             `json:"top_departments" yaml:"top_departments"`
	ColumnDetails  map[string]*ColumnDetail `json:"column_details" yaml:"column_details"`
	ColumnsUsed    ColumnsUsed              `json:"columns_used" yaml:"columns_used"`
}
