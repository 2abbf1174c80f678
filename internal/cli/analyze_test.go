package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/perfmap/perfmap/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCommand_JSON(t *testing.T) {
	path := writeFixture(t)

	output, err := executeCommand(t, rootCmd, "analyze", path, "--output", "json")
	require.NoError(t, err)

	var report engine.Report
	require.NoError(t, json.Unmarshal([]byte(output), &report))

	assert.Equal(t, path, report.File)
	assert.Len(t, report.FileID, 16)
	require.Len(t, report.Sheets, 1)

	sheet := report.Sheets[0]
	assert.Equal(t, "reviews", sheet.Sheet)
	assert.Equal(t, engine.SheetStatusCompleted, sheet.Status)
	require.NotNil(t, sheet.Result)
	assert.Equal(t, 5, sheet.Result.TotalRecords)
	assert.Equal(t, 4, sheet.Result.ValidRatings)
	require.NotEmpty(t, sheet.Result.TopDepartments)
	assert.Equal(t, "تقنية المعلومات", sheet.Result.TopDepartments[0].Name)
	assert.Contains(t, sheet.Result.RegionalData, "الرياض")
}

func TestAnalyzeCommand_Text(t *testing.T) {
	t.Setenv("PERFMAP_TEST", "true")
	path := writeFixture(t)

	output, err := executeCommand(t, rootCmd, "analyze", path)
	require.NoError(t, err)

	assert.Contains(t, output, "reviews")
	assert.Contains(t, output, "تقنية المعلومات")
	assert.Contains(t, output, "الموارد البشرية")
	assert.Contains(t, output, "Riyadh")
	assert.Contains(t, output, "Analyzed 1 sheet(s)")
}

func TestAnalyzeCommand_Sheets(t *testing.T) {
	path := writeFixture(t)

	_, err := executeCommand(t, rootCmd, "analyze", path, "--sheet", "Q9", "--output", "json")
	assert.Error(t, err)

	output, err := executeCommand(t, rootCmd, "analyze", path, "--sheet", "reviews", "--output", "json")
	require.NoError(t, err)

	var report engine.Report
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Len(t, report.Sheets, 1)
}

func TestAnalyzeCommand_Columns(t *testing.T) {
	path := writeFixture(t)

	output, err := executeCommand(t, rootCmd, "analyze", path,
		"--unit-column", "الإدارة", "--rating-column", "التقييم الحالي", "--output", "json")
	require.NoError(t, err)

	var out []ColumnAnalysis
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Result)
	assert.Empty(t, out[0].Error)
	assert.Equal(t, 4, out[0].Result.ValidRatings)
	assert.Equal(t, "الإدارة", out[0].Result.ColumnsUsed.Unit)
	assert.Contains(t, out[0].Result.ColumnDetails, "التقييم الحالي")
}

func TestAnalyzeCommand_ColumnsMissing(t *testing.T) {
	path := writeFixture(t)

	output, err := executeCommand(t, rootCmd, "analyze", path,
		"--unit-column", "Missing", "--rating-column", "التقييم الحالي", "--output", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 sheet(s) failed")

	var out []ColumnAnalysis
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Error, `"Missing" not found`)
}

func TestAnalyzeCommand_Errors(t *testing.T) {
	_, err := executeCommand(t, rootCmd, "analyze", filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorContains(t, err, "failed to read file")

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	_, err = executeCommand(t, rootCmd, "analyze", path)
	assert.Error(t, err)

	_, err = executeCommand(t, rootCmd, "analyze")
	assert.Error(t, err)
}

func TestAnalyzeCommand_BadCatalog(t *testing.T) {
	path := writeFixture(t)
	bad := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("regions: []\n"), 0o600))

	_, err := executeCommand(t, rootCmd, "analyze", path, "--catalog", bad)
	assert.ErrorContains(t, err, "invalid catalog")
}
