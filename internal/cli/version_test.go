package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestVersionCommand(t *testing.T) {
	output, err := executeCommand(t, rootCmd, "version")
	require.NoError(t, err)
	assert.Equal(t, "perfmap dev\n", output)
}

func TestVersionCommandJSON(t *testing.T) {
	output, err := executeCommand(t, rootCmd, "version", "--output", "json")
	require.NoError(t, err)

	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, GoVersion, info.GoVersion)
}

func TestVersionCommandYAML(t *testing.T) {
	output, err := executeCommand(t, rootCmd, "version", "--output", "yaml")
	require.NoError(t, err)

	var info VersionInfo
	require.NoError(t, yaml.Unmarshal([]byte(output), &info))
	assert.Equal(t, "unknown", info.Commit)
}

func TestVersionCommandVerbose(t *testing.T) {
	output, err := executeCommand(t, rootCmd, "version", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, output, "commit:")
	assert.Contains(t, output, "platform:")
}

func TestBuildVariables(t *testing.T) {
	// Test that build variables have sensible defaults
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Commit)
	assert.NotEmpty(t, Date)
	assert.NotEmpty(t, GoVersion)
	assert.Contains(t, GoVersion, "go")
}
