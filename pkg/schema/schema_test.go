package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSchema(t *testing.T) {
	out, err := GetSchema()
	require.NoError(t, err)

	assert.True(t, json.Valid(out.Result))
	assert.True(t, json.Valid(out.CustomResult))
	assert.True(t, json.Valid(out.Catalog))

	require.Len(t, out.Stages, 5)
	assert.Equal(t, "columns", out.Stages[0].Name)
	assert.Equal(t, 10, out.Stages[0].Percent)
	assert.Equal(t, "Complete", out.Stages[4].Status)
	assert.Equal(t, 100, out.Stages[4].Percent)

	require.Len(t, out.Regions, 13)
	assert.Equal(t, "الرياض", out.Regions[0].ID)
	assert.Equal(t, "Riyadh", out.Regions[0].Name)
}
