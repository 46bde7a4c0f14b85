package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/NikitaCOEUR/regiontrace/internal/derrors"
	"github.com/NikitaCOEUR/regiontrace/pkg/probe"
	"github.com/NikitaCOEUR/regiontrace/pkg/region"
)

// DefaultFilter skips the profiler hook's own frames.
var DefaultFilter = probe.Filter{
	Functions:     []string{"_unsetprofile"},
	ScopePrefixes: []string{"scorep"},
}

const maxLineSize = 1 << 20

// Result summarizes a replay.
type Result struct {
	Events   int `json:"events"`
	Calls    int `json:"calls"`
	Returns  int `json:"returns"`
	FastPath int `json:"fast_path"`
	Ignored  int `json:"ignored"`
	Retired  int `json:"retired"`
}

// Option configures Run.
type Option func(*replayer)

// WithFilter replaces DefaultFilter.
func WithFilter(f probe.Filter) Option {
	return func(r *replayer) {
		r.filter = f
	}
}

type replayer struct {
	session *region.Session
	filter  probe.Filter
	result  Result
	ignored map[uint64]struct{}
}

// Run applies every event read from r to session. It stops at the first
// malformed event, at a rewind_end for an unknown region, or when ctx is
// done.
func Run(ctx context.Context, r io.Reader, format Format, session *region.Session, opts ...Option) (Result, error) {
	rp := &replayer{
		session: session,
		filter:  DefaultFilter,
		ignored: make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(rp)
	}

	var err error
	switch format {
	case FormatYAML:
		err = rp.runYAML(ctx, r)
	case FormatJSONLines, "":
		err = rp.runJSONLines(ctx, r)
	default:
		err = fmt.Errorf("unknown event format %q", format)
	}
	return rp.result, err
}

func (rp *replayer) runJSONLines(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}

		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		dec.DisallowUnknownFields()

		var ev Event
		if err := dec.Decode(&ev); err != nil {
			return derrors.NewReplayError(line, "malformed event", err)
		}
		if err := rp.apply(line, ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return derrors.NewReplayError(line+1, "failed to read events", err)
	}
	return nil
}

func (rp *replayer) runYAML(ctx context.Context, r io.Reader) error {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return derrors.NewReplayError(0, "malformed YAML event list", err)
	}
	if len(doc.Content) == 0 {
		return nil
	}

	list := doc.Content[0]
	if list.Kind != yaml.SequenceNode {
		return derrors.NewReplayError(list.Line, "expected a list of events", nil)
	}

	for _, item := range list.Content {
		if err := ctx.Err(); err != nil {
			return err
		}

		var ev Event
		if err := item.Decode(&ev); err != nil {
			return derrors.NewReplayError(item.Line, "malformed event", err)
		}
		if err := rp.apply(item.Line, ev); err != nil {
			return err
		}
	}
	return nil
}

func (rp *replayer) apply(line int, ev Event) error {
	s := rp.session
	rp.result.Events++

	switch ev.Event {
	case KindCall:
		return rp.call(line, ev)
	case KindReturn:
		rp.ret(ev)
	case KindRetire:
		if ev.ID == 0 {
			return derrors.NewReplayError(line, "retire requires an id", nil)
		}
		s.Regions().Retire(region.Identity(ev.ID))
		delete(rp.ignored, ev.ID)
		rp.result.Retired++
	case KindUserBegin:
		if ev.Name == "" {
			return derrors.NewReplayError(line, "user_begin requires a name", nil)
		}
		s.UserBegin(ev.Name, ev.File, ev.Line)
	case KindUserEnd:
		if ev.Name == "" {
			return derrors.NewReplayError(line, "user_end requires a name", nil)
		}
		s.UserEnd(ev.Name)
	case KindRewindBegin:
		if ev.Name == "" {
			return derrors.NewReplayError(line, "rewind_begin requires a name", nil)
		}
		s.Rewinds().Begin(ev.Name, s.SourceFile(ev.File), ev.Line)
	case KindRewindEnd:
		if err := s.Rewinds().End(ev.Name, ev.Success); err != nil {
			return derrors.NewReplayError(line, "rewind_end failed", err)
		}
	case KindParamInt, KindParamUint, KindParamString:
		return rp.parameter(line, ev)
	case KindEnable:
		s.EnableRecording()
	case KindDisable:
		s.DisableRecording()
	default:
		return derrors.NewReplayError(line, fmt.Sprintf("unknown event %q", ev.Event), nil)
	}
	return nil
}

func (rp *replayer) call(line int, ev Event) error {
	rp.result.Calls++
	reg := rp.session.Regions()

	if ev.ID != 0 && reg.TryBegin(region.Identity(ev.ID)) {
		rp.result.FastPath++
		return nil
	}
	if _, ok := rp.ignored[ev.ID]; ok && ev.ID != 0 {
		rp.result.Ignored++
		return nil
	}
	if ev.Function == "" {
		return derrors.NewReplayError(line, "call requires a function on first sight", nil)
	}
	if rp.filter.Ignored(ev.Scope, ev.Function) {
		if ev.ID != 0 {
			rp.ignored[ev.ID] = struct{}{}
		}
		rp.result.Ignored++
		return nil
	}

	meta := region.Meta{
		Scope:    ev.Scope,
		Function: ev.Function,
		File:     rp.session.SourceFile(ev.File),
		Line:     ev.Line,
	}
	reg.Begin(rp.key(ev), meta)
	return nil
}

func (rp *replayer) ret(ev Event) {
	rp.result.Returns++
	reg := rp.session.Regions()

	if ev.ID != 0 && reg.TryEnd(region.Identity(ev.ID)) {
		rp.result.FastPath++
		return
	}
	if rp.skipped(ev) {
		rp.result.Ignored++
		return
	}
	reg.End(rp.key(ev), region.Meta{Scope: ev.Scope, Function: ev.Function})
}

func (rp *replayer) skipped(ev Event) bool {
	if _, ok := rp.ignored[ev.ID]; ok && ev.ID != 0 {
		return true
	}
	return ev.Function != "" && rp.filter.Ignored(ev.Scope, ev.Function)
}

func (rp *replayer) key(ev Event) region.Key {
	if ev.ID != 0 {
		return region.IdentityKey(region.Identity(ev.ID))
	}
	return region.NameKey(ev.Scope, ev.Function)
}

func (rp *replayer) parameter(line int, ev Event) error {
	if ev.Name == "" {
		return derrors.NewReplayError(line, fmt.Sprintf("%s requires a name", ev.Event), nil)
	}
	params := rp.session.Params()

	switch ev.Event {
	case KindParamInt:
		v, err := ev.intValue()
		if err != nil {
			return derrors.NewReplayError(line, "invalid parameter value", err)
		}
		params.Int(ev.Name, v)
	case KindParamUint:
		v, err := ev.uintValue()
		if err != nil {
			return derrors.NewReplayError(line, "invalid parameter value", err)
		}
		params.Uint(ev.Name, v)
	default:
		v, err := ev.stringValue()
		if err != nil {
			return derrors.NewReplayError(line, "invalid parameter value", err)
		}
		params.String(ev.Name, v)
	}
	return nil
}
