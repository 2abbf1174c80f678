package dataset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestNew_HeadersAndEmptyRows(t *testing.T) {
	ds := New("Sheet1",
		[]string{"Dept", "", "Score", "Score", " "},
		[][]string{
			{"HR", "x", "4", "3", ""},
			{"", "", "  ", "", ""},
			{"IT", "", "90%"},
		})

	assert.Equal(t, []string{"Dept", "Unnamed: 1", "Score", "Score.1", "Unnamed: 4"}, ds.Columns)
	require.Equal(t, 2, ds.Len())

	assert.Equal(t, "HR", ds.Rows[0]["Dept"])
	assert.Equal(t, 4.0, ds.Rows[0]["Score"])
	assert.Equal(t, 3.0, ds.Rows[0]["Score.1"])
	assert.Equal(t, "90%", ds.Rows[1]["Score"])
	assert.Nil(t, ds.Rows[1]["Score.1"])
}

func TestColumn(t *testing.T) {
	ds := New("s", []string{"a", "b"}, [][]string{{"1", "x"}, {"2", ""}})

	assert.Equal(t, []Cell{1.0, 2.0}, ds.Column("a"))
	assert.Equal(t, []Cell{"x", nil}, ds.Column("b"))
	assert.Equal(t, []Cell{nil, nil}, ds.Column("missing"))
	assert.True(t, ds.HasColumn("b"))
	assert.False(t, ds.HasColumn("c"))
}

func TestCellHelpers(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty("  "))
	assert.False(t, IsEmpty(0.0))

	assert.Equal(t, "101", CellString(101.0))
	assert.Equal(t, "4.5", CellString(4.5))
	assert.Equal(t, "HR", CellString(" HR "))
	assert.Equal(t, "", CellString(nil))

	n, ok := ParseNumber(" 42 ")
	require.True(t, ok)
	assert.Equal(t, 42.0, n)

	_, ok = ParseNumber("85%")
	assert.False(t, ok)
	_, ok = ParseNumber("nan")
	assert.False(t, ok)
	_, ok = ParseNumber(nil)
	assert.False(t, ok)
}

func TestLoadCSV(t *testing.T) {
	input := "\ufeffالقسم,التقييم,المنطقة\nHR,4,الرياض\nIT,\"90%\",جدة\n,,\n"

	ds, err := LoadCSV(strings.NewReader(input), "reviews")
	require.NoError(t, err)

	assert.Equal(t, "reviews", ds.Name)
	assert.Equal(t, []string{"القسم", "التقييم", "المنطقة"}, ds.Columns)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, 4.0, ds.Rows[0]["التقييم"])
	assert.Equal(t, "جدة", ds.Rows[1]["المنطقة"])
}

func TestLoadExcel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Department", "Rating"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"HR", 4}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"IT", "ممتاز"}))

	_, err := f.NewSheet("Regions")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Regions", "A1", &[]any{"Region", "Score"}))
	require.NoError(t, f.SetSheetRow("Regions", "A2", &[]any{"Riyadh", 0.85}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	wb, err := LoadExcel(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, []string{"Sheet1", "Regions"}, wb.SheetNames())

	sheet, err := wb.Sheet("Sheet1")
	require.NoError(t, err)
	require.Equal(t, 2, sheet.Len())
	assert.Equal(t, 4.0, sheet.Rows[0]["Rating"])
	assert.Equal(t, "ممتاز", sheet.Rows[1]["Rating"])

	regions, err := wb.Sheet("Regions")
	require.NoError(t, err)
	assert.Equal(t, 0.85, regions.Rows[0]["Score"])

	_, err = wb.Sheet("Missing")
	assert.True(t, errors.Is(err, ErrSheetNotFound))
}

func TestLoadExcel_Corrupt(t *testing.T) {
	_, err := LoadExcel(strings.NewReader("not a zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open workbook")
}

func TestLoad_Dispatch(t *testing.T) {
	wb, err := Load(strings.NewReader("a,b\n1,2\n"), "data.CSV")
	require.NoError(t, err)
	assert.Equal(t, []string{"data"}, wb.SheetNames())

	_, err = Load(strings.NewReader(""), "notes.txt")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	assert.True(t, IsSupported("x.xlsx"))
	assert.True(t, IsSupported("x.csv"))
	assert.False(t, IsSupported("x.xls"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team.csv")
	require.NoError(t, os.WriteFile(path, []byte("Dept,Score\nOps,3\n"), 0o644))

	wb, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	assert.Equal(t, "team", wb.Sheets[0].Name)
	assert.Equal(t, 1, wb.Sheets[0].Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}
