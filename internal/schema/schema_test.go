package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/perfmap/perfmap/internal/analysis"
	"github.com/perfmap/perfmap/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_UsesSnakeCaseKeys(t *testing.T) {
	data, err := Generate(&catalog.Catalog{})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok, "expanded root should carry properties")
	assert.Contains(t, props, "unspecified_unit")
	assert.Contains(t, props, "regions")
	assert.Contains(t, props, "keywords")
	assert.Contains(t, props, "qualitative")

	defs, ok := doc["$defs"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, defs, "region")
	assert.Contains(t, defs, "keywords")
}

func TestGenerate_Result(t *testing.T) {
	data, err := Generate(&analysis.Result{})
	require.NoError(t, err)
	assert.Contains(t, string(data), "total_records")
}

func TestValidator_DefaultCatalog(t *testing.T) {
	v, err := NewValidator(&catalog.Catalog{})
	require.NoError(t, err)

	errs := v.ValidateYAML(catalog.DefaultYAML())
	assert.Empty(t, errs)
}

func TestValidator_Violations(t *testing.T) {
	v, err := NewValidator(&catalog.Catalog{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		document string
		contains string
	}{
		{
			name:     "wrong type",
			document: "unspecified_unit: x\nregions: nope\nkeywords: {}\nqualitative: []\n",
			contains: "/regions",
		},
		{
			name:     "unknown key",
			document: "unspecified_unit: x\nregions: []\nkeywords: {}\nqualitative: []\nextra: 1\n",
			contains: "extra",
		},
		{
			name:     "broken yaml",
			document: "regions: [\n",
			contains: "YAML parsing error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateYAML([]byte(tt.document))
			require.NotEmpty(t, errs)

			var joined []string
			for _, e := range errs {
				joined = append(joined, e.String())
			}
			assert.Contains(t, strings.Join(joined, "\n"), tt.contains)
		})
	}
}

func TestValidationError_String(t *testing.T) {
	assert.Equal(t, "boom", ValidationError{Message: "boom"}.String())
	assert.Equal(t, "/a: boom", ValidationError{Message: "boom", Path: "/a"}.String())
}

func TestValidator_NumericFields(t *testing.T) {
	v, err := NewValidator(&catalog.Catalog{})
	require.NoError(t, err)

	valid := `unspecified_unit: x
regions:
  - id: r
    name: R
    lat: 24.7136
    lng: 46
    color: "#fff"
    aliases: [r]
keywords:
  privacy: []
  unit: []
  rating_current: []
  rating_indicator: []
  rating: []
  region: []
qualitative:
  - score: 4.5
    phrases: [good]
`
	assert.Empty(t, v.ValidateYAML([]byte(valid)))

	invalid := strings.Replace(valid, "score: 4.5", `score: "high"`, 1)
	errs := v.ValidateYAML([]byte(invalid))
	require.NotEmpty(t, errs)
	assert.Equal(t, "/qualitative/0/score", errs[0].Path)
}
