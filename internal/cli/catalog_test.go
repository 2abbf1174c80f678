package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/perfmap/perfmap/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCatalogExport(t *testing.T) {
	output, err := executeCommand(t, rootCmd, "catalog", "export")
	require.NoError(t, err)
	assert.Equal(t, string(catalog.DefaultYAML()), output)
}

func TestCatalogValidate_Default(t *testing.T) {
	path := writeCatalog(t, string(catalog.DefaultYAML()))

	output, err := executeCommand(t, rootCmd, "catalog", "validate", path, "--output", "json")
	require.NoError(t, err)

	var summary ValidationSummary
	require.NoError(t, json.Unmarshal([]byte(output), &summary))
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Valid)
	assert.True(t, summary.Results[0].Valid)
}

func TestCatalogValidate_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		contains string
	}{
		{
			name:     "schema violation",
			content:  strings.Replace(string(catalog.DefaultYAML()), "unspecified_unit:", "unknown_key: 1\nunspecified_unit:", 1),
			contains: "unknown_key",
		},
		{
			name:     "semantic violation",
			content:  strings.Replace(string(catalog.DefaultYAML()), `color: "#00d9ff"`, `color: "cyan"`, 1),
			contains: "is not #rrggbb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCatalog(t, tt.content)

			output, err := executeCommand(t, rootCmd, "catalog", "validate", path, "--output", "json")
			require.Error(t, err)

			var summary ValidationSummary
			require.NoError(t, json.Unmarshal([]byte(output), &summary))
			assert.Equal(t, 1, summary.Invalid)
			assert.Contains(t, strings.Join(summary.Results[0].Errors, "\n"), tt.contains)
		})
	}
}

func TestCatalogValidate_Text(t *testing.T) {
	good := writeCatalog(t, string(catalog.DefaultYAML()))

	output, err := executeCommand(t, rootCmd, "catalog", "validate", good, "--show-all", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, output, "All 1 catalog(s) are valid")
	assert.Contains(t, output, "Detailed results:")

	_, err = executeCommand(t, rootCmd, "catalog", "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "1 of 1 catalog(s) failed validation")
}

func TestCatalogShow(t *testing.T) {
	output, err := executeCommand(t, rootCmd, "catalog", "show", "--output", "yaml")
	require.NoError(t, err)

	var cat catalog.Catalog
	require.NoError(t, yaml.Unmarshal([]byte(output), &cat))
	assert.Len(t, cat.Regions, 13)

	output, err = executeCommand(t, rootCmd, "catalog", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "Riyadh")
	assert.Contains(t, output, "Unspecified department:")
}
