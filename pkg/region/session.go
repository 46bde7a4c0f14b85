package region

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
	"github.com/NikitaCOEUR/regiontrace/pkg/pathutil"
)

// UserScope is the scope of regions declared through UserBegin.
const UserScope = "user"

// unresolvedFile labels regions whose source file could not be resolved.
const unresolvedFile = "None"

// Stats is a snapshot of session bookkeeping.
type Stats struct {
	Identities  int    `json:"identities"`
	Names       int    `json:"names"`
	Rewinds     int    `json:"rewinds"`
	Parameters  int    `json:"parameters"`
	OrphanExits uint64 `json:"orphan_exits"`
}

// Session owns the registries of one measurement session and the backend
// they dispatch to.
type Session struct {
	id      string
	backend backend.Backend
	regions *Registry
	rewinds *RewindRegistry
	params  *Parameters

	getwd     func() (string, error)
	recording atomic.Bool
}

// NewSession creates a session with recording enabled.
func NewSession(b backend.Backend, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		backend: b,
		regions: NewRegistry(b, opts...),
		rewinds: NewRewindRegistry(b, opts...),
		params:  NewParameters(b, opts...),
		getwd:   newOptions(opts).getwd,
	}
	s.recording.Store(true)
	return s
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// Backend returns the backend the session dispatches to.
func (s *Session) Backend() backend.Backend { return s.backend }

// Regions returns the call-site region registry.
func (s *Session) Regions() *Registry { return s.regions }

// Rewinds returns the rewind region registry.
func (s *Session) Rewinds() *RewindRegistry { return s.rewinds }

// Params returns the parameter recorder.
func (s *Session) Params() *Parameters { return s.params }

// UserBegin enters the user region name. Relative file names are resolved
// against the working directory.
func (s *Session) UserBegin(name, file string, line uint64) {
	s.regions.Begin(NameKey(UserScope, name), Meta{
		Scope:    UserScope,
		Function: name,
		File:     s.SourceFile(file),
		Line:     line,
	})
}

// UserEnd exits the user region name.
func (s *Session) UserEnd(name string) {
	s.regions.End(NameKey(UserScope, name), Meta{Scope: UserScope, Function: name})
}

// SourceFile normalizes file for region metadata, returning "None" when it
// is empty or cannot be made absolute.
func (s *Session) SourceFile(file string) string {
	if file == "" {
		return unresolvedFile
	}

	abs := pathutil.AbspathFrom(file, s.getwd)
	if abs == "" {
		return unresolvedFile
	}
	return abs
}

// EnableRecording resumes event recording in the backend.
func (s *Session) EnableRecording() {
	s.backend.EnableRecording()
	s.recording.Store(true)
}

// DisableRecording pauses event recording in the backend. Regions can
// still be created while paused.
func (s *Session) DisableRecording() {
	s.backend.DisableRecording()
	s.recording.Store(false)
}

// Recording reports the last recording state requested.
func (s *Session) Recording() bool {
	return s.recording.Load()
}

// Stats returns the current bookkeeping counters.
func (s *Session) Stats() Stats {
	ids, names := s.regions.Len()
	return Stats{
		Identities:  ids,
		Names:       names,
		Rewinds:     s.rewinds.Len(),
		Parameters:  s.params.Len(),
		OrphanExits: s.regions.OrphanExits(),
	}
}
