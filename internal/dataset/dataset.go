// Package dataset provides the immutable tabular input consumed by the
// analysis pipeline and loaders for Excel and CSV files.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cell is a single value: nil, string or float64.
type Cell = any

// Row maps column names to cells.
type Row map[string]Cell

// Dataset is an ordered sequence of rows over named columns.
type Dataset struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"-"`
}

// New builds a dataset from a header and positional records. Header names
// are made unique, cells are coerced with ParseCell and rows in which every
// cell is empty are dropped.
func New(name string, header []string, records [][]string) *Dataset {
	columns := uniqueHeaders(header)
	ds := &Dataset{
		Name:    name,
		Columns: columns,
		Rows:    make([]Row, 0, len(records)),
	}

	for _, record := range records {
		row := make(Row, len(columns))
		empty := true
		for i, col := range columns {
			var cell Cell
			if i < len(record) {
				cell = ParseCell(record[i])
			}
			if cell != nil {
				empty = false
			}
			row[col] = cell
		}
		if !empty {
			ds.Rows = append(ds.Rows, row)
		}
	}

	return ds
}

// FromRows builds a dataset from already typed rows.
func FromRows(name string, columns []string, rows []Row) *Dataset {
	return &Dataset{Name: name, Columns: columns, Rows: rows}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// HasColumn reports whether name is one of the dataset's columns.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the cells of one column in row order. Unknown columns yield
// a slice of nils.
func (d *Dataset) Column(name string) []Cell {
	out := make([]Cell, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row[name]
	}
	return out
}

// ParseCell converts raw text into a cell: blank text becomes nil, finite
// numbers become float64 and everything else stays a string.
func ParseCell(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if num, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(num) && !math.IsInf(num, 0) {
		return num
	}
	return raw
}

// IsEmpty reports whether c carries no value.
func IsEmpty(c Cell) bool {
	switch v := c.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case float64:
		return math.IsNaN(v)
	}
	return false
}

// CellString renders a cell for grouping and display. Whole numbers are
// printed without a fractional part.
func CellString(c Cell) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// ParseNumber reports the numeric value of a cell the way a strict numeric
// coercion would: native numbers and plain numeric strings only.
func ParseNumber(c Cell) (float64, bool) {
	switch v := c.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(num) {
			return 0, false
		}
		return num, true
	}
	return 0, false
}

func uniqueHeaders(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))

	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}

		if n, dup := seen[name]; dup {
			candidate := fmt.Sprintf("%s.%d", name, n)
			for seen[candidate] > 0 {
				n++
				candidate = fmt.Sprintf("%s.%d", name, n)
			}
			seen[name] = n + 1
			seen[candidate] = 1
			name = candidate
		} else {
			seen[name] = 1
		}

		columns[i] = name
	}

	return columns
}
