package region

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
)

func TestSession_UserRegions(t *testing.T) {
	rec := backend.NewRecorder()
	s := NewSession(rec, WithWarningWriter(nil), WithGetwd(func() (string, error) { return "/work", nil }))

	s.UserBegin("load", "data/../loader.py", 12)
	s.UserEnd("load")
	s.UserBegin("load", "ignored.py", 99)
	s.UserEnd("load")

	require.Equal(t, 1, rec.Creations())
	info, _ := rec.Region(1)
	assert.Equal(t, "user:load", info.Name)
	assert.Equal(t, "user", info.Group)
	assert.Equal(t, "/work/loader.py", info.File)
	assert.Equal(t, uint64(12), info.Line)
	assert.Len(t, rec.Events(), 4)

	_, names := s.Regions().Len()
	assert.Equal(t, 1, names)
}

func TestSession_SourceFile(t *testing.T) {
	s := NewSession(backend.NewNop(), WithGetwd(func() (string, error) { return "/home/dev", nil }))
	assert.Equal(t, "/home/dev/main.py", s.SourceFile("./main.py"))
	assert.Equal(t, "/abs.py", s.SourceFile("/x/../abs.py/"))
	assert.Equal(t, "None", s.SourceFile(""))

	s = NewSession(backend.NewNop(), WithGetwd(func() (string, error) { return "", errors.New("cwd removed") }))
	assert.Equal(t, "None", s.SourceFile("main.py"))
	assert.Equal(t, "/main.py", s.SourceFile("/main.py"))
}

func TestSession_UserEndWithoutBegin(t *testing.T) {
	rec := backend.NewRecorder()
	s := NewSession(rec, WithWarningWriter(nil))

	s.UserEnd("ghost")

	events := rec.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "user:ghost", events[1].Param.Value())
	assert.Equal(t, uint64(1), s.Stats().OrphanExits)
}

func TestSession_Recording(t *testing.T) {
	rec := backend.NewRecorder()
	s := NewSession(rec)
	assert.True(t, s.Recording())

	s.DisableRecording()
	assert.False(t, s.Recording())
	assert.False(t, rec.Recording())

	s.UserBegin("quiet", "/q.py", 1)
	s.UserEnd("quiet")
	assert.Empty(t, rec.Events())
	assert.Equal(t, 1, rec.Creations())

	s.EnableRecording()
	assert.True(t, s.Recording())
	s.UserBegin("quiet", "/q.py", 1)
	assert.Len(t, rec.Events(), 1)
}

func TestSession_Stats(t *testing.T) {
	rec := backend.NewRecorder()
	s := NewSession(rec, WithWarningWriter(nil))

	s.Regions().Begin(IdentityKey(1), Meta{Scope: "m", Function: "f"})
	s.Regions().Begin(IdentityKey(2), Meta{Scope: "m", Function: "g"})
	s.UserBegin("u", "/u.py", 1)
	s.Rewinds().Begin("r", "/r.py", 1)
	s.Params().Int("p", 1)
	s.Regions().End(NameKey("m", "h"), Meta{})

	assert.Equal(t, Stats{Identities: 2, Names: 1, Rewinds: 1, Parameters: 1, OrphanExits: 1}, s.Stats())
	assert.Same(t, rec, s.Backend().(*backend.Recorder))
	assert.Len(t, s.ID(), 36)
	assert.NotEqual(t, s.ID(), NewSession(rec).ID())
}
