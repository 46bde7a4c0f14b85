package replay

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikitaCOEUR/regiontrace/internal/derrors"
	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
	"github.com/NikitaCOEUR/regiontrace/pkg/probe"
	"github.com/NikitaCOEUR/regiontrace/pkg/region"
)

func newSession(t *testing.T) (*region.Session, *backend.Recorder, *bytes.Buffer) {
	t.Helper()
	rec := backend.NewRecorder()
	warn := &bytes.Buffer{}
	return region.NewSession(rec, region.WithWarningWriter(warn)), rec, warn
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"events.jsonl":     FormatJSONLines,
		"events.json":      FormatJSONLines,
		"events.yml":       FormatYAML,
		"dir/events.YAML":  FormatYAML,
		"events":           FormatJSONLines,
		"/tmp/x.yaml.json": FormatJSONLines,
	}
	for path, want := range tests {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, want, FormatFromPath(path))
		})
	}
}

func TestRun_IdentityCalls(t *testing.T) {
	s, rec, warn := newSession(t)
	input := `
{"event":"call","id":4096,"scope":"numpy.linalg","function":"dot","file":"/lib/linalg.py","line":10}
{"event":"return","id":4096}
{"event":"call","id":4096}
{"event":"return","id":4096}
# retired code object
{"event":"retire","id":4096}
{"event":"call","id":4096,"scope":"app","function":"other","file":"/app.py","line":1}
{"event":"return","id":4096}
`

	res, err := Run(context.Background(), strings.NewReader(input), FormatJSONLines, s)
	require.NoError(t, err)

	assert.Equal(t, Result{Events: 7, Calls: 3, Returns: 3, FastPath: 4, Retired: 1}, res)
	assert.Equal(t, 2, rec.Creations())
	assert.Len(t, rec.Events(), 6)
	assert.Empty(t, warn.String())

	regions := rec.Regions()
	assert.Equal(t, "numpy.linalg:dot", regions[0].Name)
	assert.Equal(t, "numpy", regions[0].Group)
	assert.Equal(t, "/lib/linalg.py", regions[0].File)
	assert.Equal(t, "app:other", regions[1].Name)
}

func TestRun_NameKeysAndOrphans(t *testing.T) {
	s, rec, warn := newSession(t)
	input := `{"event":"call","scope":"mod","function":"f","file":"/m.py","line":2}
{"event":"return","scope":"mod","function":"f"}
{"event":"return","scope":"mod","function":"never"}
{"event":"return","scope":"threading","function":"_bootstrap_inner"}
{"event":"return","id":77}
`

	res, err := Run(context.Background(), strings.NewReader(input), FormatJSONLines, s)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Returns)
	assert.Equal(t, uint64(2), s.Stats().OrphanExits)
	assert.Equal(t, region.OrphanExitWarning, warn.String())

	var leaves []string
	for _, ev := range rec.Events() {
		if ev.Type == backend.EventParameter {
			leaves = append(leaves, ev.Param.Value())
		}
	}
	assert.Equal(t, []string{"mod:never", "<unknown>:0x4d"}, leaves)
}

func TestRun_IgnoredFrames(t *testing.T) {
	s, rec, _ := newSession(t)
	input := `{"event":"call","id":1,"scope":"scorep.instrumenter","function":"run"}
{"event":"call","id":2,"scope":"threading","function":"_unsetprofile"}
{"event":"return","id":2}
{"event":"return","id":1}
{"event":"call","id":1}
{"event":"call","id":2}
{"event":"return","id":2}
{"event":"return","id":1}
`

	res, err := Run(context.Background(), strings.NewReader(input), FormatJSONLines, s)
	require.NoError(t, err)

	assert.Equal(t, 8, res.Ignored)
	assert.Zero(t, res.FastPath)
	assert.Empty(t, rec.Events())
	assert.Zero(t, rec.Creations())
	assert.Zero(t, s.Stats().OrphanExits)
}

func TestRun_CustomFilter(t *testing.T) {
	s, rec, _ := newSession(t)
	input := `{"event":"call","id":1,"scope":"scorep.x","function":"run"}
{"event":"return","id":1}
`

	res, err := Run(context.Background(), strings.NewReader(input), FormatJSONLines, s, WithFilter(probe.Filter{}))
	require.NoError(t, err)
	assert.Zero(t, res.Ignored)
	assert.Equal(t, 1, rec.Creations())
}

func TestRun_UserRewindParamsRecording(t *testing.T) {
	s, rec, _ := newSession(t)
	input := `{"event":"user_begin","name":"setup","file":"/app/main.py","line":5}
{"event":"param_int","name":"n","value":-12}
{"event":"param_uint","name":"bytes","value":18446744073709551615}
{"event":"param_string","name":"mode","value":"fast"}
{"event":"user_end","name":"setup"}
{"event":"rewind_begin","name":"solve","file":"/app/solve.py","line":9}
{"event":"rewind_end","name":"solve","success":false}
{"event":"disable"}
{"event":"user_begin","name":"hidden","file":"/app/main.py","line":7}
{"event":"user_end","name":"hidden"}
{"event":"enable"}
`

	_, err := Run(context.Background(), strings.NewReader(input), FormatJSONLines, s)
	require.NoError(t, err)

	assert.True(t, s.Recording())
	events := rec.Events()
	require.Len(t, events, 7)
	assert.Equal(t, "-12", events[1].Param.Value())
	assert.Equal(t, "18446744073709551615", events[2].Param.Value())
	assert.Equal(t, "fast", events[3].Param.Value())
	assert.Equal(t, backend.EventRewindExit, events[6].Type)
	assert.False(t, events[6].Success)

	stats := s.Stats()
	assert.Equal(t, 2, stats.Names)
	assert.Equal(t, 1, stats.Rewinds)
	assert.Equal(t, 3, stats.Parameters)
}

func TestRun_YAML(t *testing.T) {
	s, rec, _ := newSession(t)
	input := `# recorded by the host hook
- event: call
  id: 10
  scope: pkg.mod
  function: work
  file: /src/mod.py
  line: 3
- event: param_uint
  name: items
  value: 42
- event: return
  id: 10
- event: rewind_begin
  name: cp
- event: rewind_end
  name: cp
  success: true
`

	res, err := Run(context.Background(), strings.NewReader(input), FormatYAML, s)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Events)
	require.Len(t, rec.Events(), 5)
	assert.Equal(t, "42", rec.Events()[1].Param.Value())
	assert.True(t, rec.Events()[4].Success)

	info, _ := rec.Region(1)
	assert.Equal(t, "pkg.mod:work", info.Name)
	assert.Equal(t, "pkg", info.Group)
}

func TestRun_EmptyInput(t *testing.T) {
	for _, format := range []Format{FormatJSONLines, FormatYAML} {
		s, _, _ := newSession(t)
		res, err := Run(context.Background(), strings.NewReader(""), format, s)
		require.NoError(t, err)
		assert.Zero(t, res.Events)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		input    string
		wantLine int
		notFound bool
	}{
		{
			name:     "malformed json",
			input:    "{\"event\":\"call\"\n",
			wantLine: 1,
		},
		{
			name:     "unknown field",
			input:    "{\"event\":\"enable\"}\n{\"event\":\"call\",\"module\":\"x\"}\n",
			wantLine: 2,
		},
		{
			name:     "unknown event",
			input:    "\n\n{\"event\":\"teleport\"}\n",
			wantLine: 3,
		},
		{
			name:     "call without function",
			input:    `{"event":"call","id":5}`,
			wantLine: 1,
		},
		{
			name:     "retire without id",
			input:    `{"event":"retire"}`,
			wantLine: 1,
		},
		{
			name:     "user_begin without name",
			input:    `{"event":"user_begin"}`,
			wantLine: 1,
		},
		{
			name:     "negative uint",
			input:    `{"event":"param_uint","name":"x","value":-1}`,
			wantLine: 1,
		},
		{
			name:     "string for int",
			input:    `{"event":"param_int","name":"x","value":"7"}`,
			wantLine: 1,
		},
		{
			name:     "fractional int",
			input:    `{"event":"param_int","name":"x","value":1.5}`,
			wantLine: 1,
		},
		{
			name:     "int for string",
			input:    `{"event":"param_string","name":"x","value":7}`,
			wantLine: 1,
		},
		{
			name:     "param without name",
			input:    `{"event":"param_string","value":"v"}`,
			wantLine: 1,
		},
		{
			name:     "rewind end unknown",
			input:    "{\"event\":\"enable\"}\n{\"event\":\"rewind_end\",\"name\":\"nope\"}\n",
			wantLine: 2,
			notFound: true,
		},
		{
			name:     "yaml not a list",
			format:   FormatYAML,
			input:    "event: call\n",
			wantLine: 1,
		},
		{
			name:     "yaml rewind unknown",
			format:   FormatYAML,
			input:    "- event: enable\n- event: rewind_end\n  name: nope\n",
			wantLine: 2,
			notFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newSession(t)
			format := tt.format
			if format == "" {
				format = FormatJSONLines
			}

			_, err := Run(context.Background(), strings.NewReader(tt.input), format, s)
			require.Error(t, err)

			var rerr *derrors.ReplayError
			require.True(t, errors.As(err, &rerr), "got %T: %v", err, err)
			assert.Equal(t, tt.wantLine, rerr.Line)
			assert.Equal(t, "REPLAY_ERROR", rerr.Code())
			assert.Equal(t, tt.notFound, errors.Is(err, region.ErrNotFound))
		})
	}
}

func TestRun_UnknownFormat(t *testing.T) {
	s, _, _ := newSession(t)
	_, err := Run(context.Background(), strings.NewReader(""), Format("xml"), s)
	assert.Error(t, err)
}

func TestRun_ContextCancelled(t *testing.T) {
	s, rec, _ := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, strings.NewReader(`{"event":"user_begin","name":"x"}`), FormatJSONLines, s)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.Events())
}
