package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NikitaCOEUR/regiontrace/internal/config"
)

const sampleEvents = `{"event":"call","id":1,"scope":"app","function":"main","file":"/src/app.py","line":1}
{"event":"call","id":2,"scope":"app.util","function":"helper","file":"/src/util.py","line":5}
{"event":"return","id":2}
{"event":"call","id":2}
{"event":"param_int","name":"iterations","value":3}
{"event":"return","id":2}
{"event":"call","scope":"scorep.instrumenter","function":"hook"}
{"event":"return","id":1}
`

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	originalWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(originalWd) })
}

func testConfig(t *testing.T, backendName string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Backend = backendName
	cfg.OutputDir = t.TempDir()
	return cfg
}

func experimentDir(t *testing.T, base string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(base, "regiontrace-20260314_150926_*"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	return matches[0]
}
