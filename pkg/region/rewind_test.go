package region

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikitaCOEUR/regiontrace/internal/derrors"
	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
)

func TestRewindRegistry_BeginEnd(t *testing.T) {
	rec := backend.NewRecorder()
	rw := NewRewindRegistry(rec)

	rw.Begin("solver", "/app/solver.py", 42)
	require.NoError(t, rw.End("solver", false))
	rw.Begin("solver", "/elsewhere.py", 1)
	require.NoError(t, rw.End("solver", true))

	assert.Equal(t, 1, rec.Creations())
	assert.Equal(t, 1, rw.Len())

	info, ok := rec.Region(1)
	require.True(t, ok)
	assert.Equal(t, "solver", info.Name)
	assert.Equal(t, backend.KindRewind, info.Kind)
	assert.Equal(t, "/app/solver.py", info.File)
	assert.Equal(t, uint64(42), info.Line)

	events := rec.Events()
	require.Len(t, events, 4)
	assert.Equal(t, backend.EventRewindEnter, events[0].Type)
	assert.Equal(t, backend.EventRewindExit, events[1].Type)
	assert.False(t, events[1].Success)
	assert.True(t, events[3].Success)
}

func TestRewindRegistry_EndUnknown(t *testing.T) {
	rec := backend.NewRecorder()
	rw := NewRewindRegistry(rec)

	err := rw.End("missing", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var nf *derrors.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.Resource)
	assert.Equal(t, "NOT_FOUND", nf.Code())

	assert.Empty(t, rec.Events())
	assert.Zero(t, rec.Creations())
}

func TestRewindRegistry_IndependentOfRegions(t *testing.T) {
	rec := backend.NewRecorder()
	s := NewSession(rec, WithWarningWriter(nil))

	s.UserBegin("phase", "/a.py", 1)
	err := s.Rewinds().End("phase", true)
	assert.ErrorIs(t, err, ErrNotFound)

	s.Rewinds().Begin("phase", "/a.py", 1)
	assert.NoError(t, s.Rewinds().End("phase", true))
	assert.Equal(t, 2, rec.Creations())
}
