package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidConfig(t *testing.T) {
	configPath := writeFile(t, filepath.Join(t.TempDir(), ".regiontrace.yml"), "backend: runtime-trace\n")

	var out bytes.Buffer
	require.NoError(t, Validate(configPath, &out))
	assert.Contains(t, out.String(), "Configuration is valid")
}

func TestValidate_InvalidConfig(t *testing.T) {
	configPath := writeFile(t, filepath.Join(t.TempDir(), ".regiontrace.yml"), "backend: otlp\nendpoint: nowhere\n")

	var out bytes.Buffer
	err := Validate(configPath, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, out.String(), "1. [endpoint]")
	assert.Contains(t, out.String(), "Found 1 error(s)")
}

func TestValidate_AutoDetect(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	writeFile(t, filepath.Join(tmpDir, ".regiontrace.toml"), "backend = \"none\"\n")

	var out bytes.Buffer
	require.NoError(t, Validate("", &out))
	assert.Contains(t, out.String(), ".regiontrace.toml")
}

func TestValidate_NoConfigFound(t *testing.T) {
	chdir(t, t.TempDir())

	err := Validate("", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no config file found")
}

func TestValidate_FileNotExist(t *testing.T) {
	err := Validate("/nonexistent/path/.regiontrace.yml", &bytes.Buffer{})
	require.Error(t, err)
}
