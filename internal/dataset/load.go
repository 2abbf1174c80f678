package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither Excel nor CSV.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrNoSheets is returned when a workbook contains no sheets.
	ErrNoSheets = errors.New("workbook has no sheets")
	// ErrSheetNotFound is returned when a named sheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")
)

var excelExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xltx": true,
	".xltm": true,
}

// Workbook is an ordered collection of sheets.
type Workbook struct {
	Sheets []*Dataset
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		names[i] = s.Name
	}
	return names
}

// Sheet returns the sheet called name.
func (w *Workbook) Sheet(name string) (*Dataset, error) {
	for _, s := range w.Sheets {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, name)
}

// IsSupported reports whether filename has a loadable extension.
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return excelExtensions[ext] || ext == ".csv"
}

// LoadFile reads a workbook from disk.
func LoadFile(path string) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Load(f, filepath.Base(path))
}

// Load reads a workbook from r, choosing the format from filename.
func Load(r io.Reader, filename string) (*Workbook, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case excelExtensions[ext]:
		return LoadExcel(r)
	case ext == ".csv":
		name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		ds, err := LoadCSV(r, name)
		if err != nil {
			return nil, err
		}
		return &Workbook{Sheets: []*Dataset{ds}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// LoadExcel reads every sheet of an Excel workbook. The first row of each
// sheet is its header.
func LoadExcel(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	wb := &Workbook{Sheets: make([]*Dataset, 0, len(sheets))}
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}

		ds := fromRecords(sheet, rows)
		log.Debug().
			Str("sheet", sheet).
			Int("rows", ds.Len()).
			Int("columns", len(ds.Columns)).
			Msg("Sheet loaded")

		wb.Sheets = append(wb.Sheets, ds)
	}

	return wb, nil
}

// LoadCSV reads a single CSV document. Ragged rows are allowed and a UTF-8
// byte order mark on the header is removed.
func LoadCSV(r io.Reader, name string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv %s: %w", name, err)
	}

	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}

	return fromRecords(name, records), nil
}

func fromRecords(name string, records [][]string) *Dataset {
	if len(records) == 0 {
		return New(name, nil, nil)
	}
	return New(name, records[0], records[1:])
}
