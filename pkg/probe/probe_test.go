package probe_test

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
	"github.com/NikitaCOEUR/regiontrace/pkg/probe"
	"github.com/NikitaCOEUR/regiontrace/pkg/region"
)

const testScope = "NikitaCOEUR.regiontrace.pkg.probe_test"

//go:noinline
func leaf(p *probe.Probe) {
	defer p.Enter()()
}

//go:noinline
func parent(p *probe.Probe) {
	defer p.Enter()()
	leaf(p)
}

func setup(t *testing.T, opts ...probe.Option) (*probe.Probe, *region.Registry, *backend.Recorder) {
	t.Helper()
	rec := backend.NewRecorder()
	reg := region.NewRegistry(rec, region.WithWarningWriter(nil))
	return probe.New(reg, opts...), reg, rec
}

func TestProbe_NestedCalls(t *testing.T) {
	p, _, rec := setup(t)

	parent(p)

	events := rec.Events()
	require.Len(t, events, 4)
	assert.Equal(t, backend.EventEnter, events[0].Type)
	assert.Equal(t, backend.EventEnter, events[1].Type)
	assert.Equal(t, backend.EventExit, events[2].Type)
	assert.Equal(t, backend.EventExit, events[3].Type)
	assert.Equal(t, events[1].Region, events[2].Region)
	assert.Equal(t, events[0].Region, events[3].Region)

	outer, ok := rec.Region(events[0].Region)
	require.True(t, ok)
	assert.Equal(t, testScope+":parent", outer.Name)
	assert.Equal(t, "NikitaCOEUR", outer.Group)
	assert.True(t, filepath.IsAbs(outer.File))
	assert.Equal(t, "probe_test.go", filepath.Base(outer.File))
	assert.NotZero(t, outer.Line)

	inner, _ := rec.Region(events[1].Region)
	assert.Equal(t, testScope+":leaf", inner.Name)
	assert.Less(t, inner.Line, outer.Line)
}

func TestProbe_FastPathAfterFirstCall(t *testing.T) {
	p, reg, rec := setup(t)

	for i := 0; i < 5; i++ {
		leaf(p)
	}

	assert.Equal(t, 1, rec.Creations())
	assert.Len(t, rec.Events(), 10)
	ids, names := reg.Len()
	assert.Equal(t, 1, ids)
	assert.Zero(t, names)
	assert.Zero(t, reg.OrphanExits())
}

func TestProbe_Filter(t *testing.T) {
	tests := []struct {
		name   string
		filter probe.Filter
		want   []string
	}{
		{
			name: "no filter",
			want: []string{testScope + ":parent", testScope + ":leaf"},
		},
		{
			name:   "ignored function",
			filter: probe.Filter{Functions: []string{"leaf"}},
			want:   []string{testScope + ":parent"},
		},
		{
			name:   "ignored scope",
			filter: probe.Filter{ScopePrefixes: []string{"NikitaCOEUR.regiontrace"}},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, rec := setup(t, probe.WithFilter(tt.filter))

			parent(p)
			parent(p)

			var names []string
			for _, info := range rec.Regions() {
				names = append(names, info.Name)
			}
			assert.Equal(t, tt.want, names)
			assert.Len(t, rec.Events(), 4*len(tt.want))
		})
	}
}

func TestProbe_Do(t *testing.T) {
	p, _, rec := setup(t)

	calls := 0
	work := func() { calls++ }
	p.Do(work)
	p.Do(work)

	assert.Equal(t, 2, calls)
	require.Equal(t, 1, rec.Creations())
	info := rec.Regions()[0]
	assert.True(t, strings.HasPrefix(info.Name, testScope+":TestProbe_Do.func"), info.Name)
	assert.Len(t, rec.Events(), 4)
}

func TestProbe_DoIgnored(t *testing.T) {
	p, _, rec := setup(t, probe.WithFilter(probe.Filter{ScopePrefixes: []string{"NikitaCOEUR"}}))

	ran := false
	p.Do(func() { ran = true })

	assert.True(t, ran)
	assert.Empty(t, rec.Events())
}

func TestProbe_Concurrent(t *testing.T) {
	p, _, rec := setup(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				leaf(p)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rec.Creations())
	assert.Len(t, rec.Events(), 8*25*2)
}

func TestSplitFuncName(t *testing.T) {
	tests := []struct {
		in       string
		scope    string
		function string
	}{
		{"github.com/acme/solver/linalg.(*Matrix).Mul", "acme.solver.linalg", "(*Matrix).Mul"},
		{"github.com/acme/solver/linalg.Dot.func1", "acme.solver.linalg", "Dot.func1"},
		{"net/http.Get", "net.http", "Get"},
		{"main.main", "main", "main"},
		{"gopkg.in/yaml%2ev3.Unmarshal", "yaml.v3", "Unmarshal"},
		{"example.com/m.F[...]", "m", "F[...]"},
		{"nodot", "", "nodot"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			scope, function := probe.SplitFuncName(tt.in)
			assert.Equal(t, tt.scope, scope)
			assert.Equal(t, tt.function, function)
		})
	}
}

func TestFilter(t *testing.T) {
	f := probe.Filter{Functions: []string{"_unsetprofile"}, ScopePrefixes: []string{"scorep"}}

	assert.True(t, f.Ignored("threading", "_unsetprofile"))
	assert.True(t, f.Ignored("scorep.instrumenter", "run"))
	assert.True(t, f.Ignored("scorepy", "run"))
	assert.False(t, f.Ignored("numpy", "dot"))
	assert.False(t, f.Empty())
	assert.True(t, probe.Filter{}.Empty())
}
