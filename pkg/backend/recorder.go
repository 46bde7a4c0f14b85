package backend

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// EventType names a recorded event.
type EventType string

const (
	EventEnter       EventType = "enter"
	EventExit        EventType = "exit"
	EventRewindEnter EventType = "rewind_enter"
	EventRewindExit  EventType = "rewind_exit"
	EventParameter   EventType = "parameter"
)

// ParamType is the scalar type of a recorded parameter.
type ParamType string

const (
	ParamInt    ParamType = "int"
	ParamUint   ParamType = "uint"
	ParamString ParamType = "string"
)

// Param is the payload of an EventParameter.
type Param struct {
	Slot   ParameterHandle `json:"slot"`
	Name   string          `json:"name"`
	Type   ParamType       `json:"type"`
	Int    int64           `json:"int,omitempty"`
	Uint   uint64          `json:"uint,omitempty"`
	String string          `json:"string,omitempty"`
}

// Value formats the parameter value.
func (p Param) Value() string {
	switch p.Type {
	case ParamInt:
		return strconv.FormatInt(p.Int, 10)
	case ParamUint:
		return strconv.FormatUint(p.Uint, 10)
	default:
		return p.String
	}
}

// Event is one entry of the Recorder log.
type Event struct {
	Type    EventType    `json:"type"`
	Time    time.Time    `json:"time"`
	Region  RegionHandle `json:"region,omitempty"`
	Success bool         `json:"success,omitempty"`
	Param   *Param       `json:"param,omitempty"`
}

// RegionInfo is the creation metadata of a region.
type RegionInfo struct {
	Handle RegionHandle `json:"handle"`
	Name   string       `json:"name"`
	Kind   RegionKind   `json:"kind"`
	Group  string       `json:"group,omitempty"`
	File   string       `json:"file,omitempty"`
	Line   uint64       `json:"line,omitempty"`
}

// MarshalText encodes the kind by name.
func (k RegionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind written by MarshalText.
func (k *RegionKind) UnmarshalText(text []byte) error {
	for _, candidate := range []RegionKind{KindFunction, KindUser, KindRewind, KindError} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown region kind %q", text)
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock replaces time.Now as the event timestamp source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// Recorder is a Backend that keeps every region and event in memory.
// Region creation always succeeds; enter, exit and parameter events are
// dropped while recording is disabled.
type Recorder struct {
	mu        sync.Mutex
	now       func() time.Time
	recording bool
	regions   []RegionInfo
	events    []Event
	slots     map[ParameterHandle]string
}

// NewRecorder creates a Recorder with recording enabled.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		now:       time.Now,
		recording: true,
		slots:     make(map[ParameterHandle]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) CreateRegion(name string, kind RegionKind, file string, line uint64) RegionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := RegionHandle(len(r.regions) + 1)
	r.regions = append(r.regions, RegionInfo{
		Handle: h,
		Name:   name,
		Kind:   kind,
		File:   file,
		Line:   line,
	})
	return h
}

func (r *Recorder) SetGroup(h RegionHandle, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info := r.lookup(h); info != nil {
		info.Group = group
	}
}

func (r *Recorder) Enter(h RegionHandle) {
	r.append(Event{Type: EventEnter, Region: h})
}

func (r *Recorder) End(h RegionHandle) {
	r.append(Event{Type: EventExit, Region: h})
}

func (r *Recorder) CreateRewindRegion(name, file string, line uint64) RegionHandle {
	return r.CreateRegion(name, KindRewind, file, line)
}

func (r *Recorder) RewindEnter(h RegionHandle) {
	r.append(Event{Type: EventRewindEnter, Region: h})
}

func (r *Recorder) RewindEnd(h RegionHandle, success bool) {
	r.append(Event{Type: EventRewindExit, Region: h, Success: success})
}

func (r *Recorder) RecordParameterInt(slot *ParameterHandle, name string, value int64) {
	r.parameter(slot, Param{Name: name, Type: ParamInt, Int: value})
}

func (r *Recorder) RecordParameterUint(slot *ParameterHandle, name string, value uint64) {
	r.parameter(slot, Param{Name: name, Type: ParamUint, Uint: value})
}

func (r *Recorder) RecordParameterString(slot *ParameterHandle, name, value string) {
	r.parameter(slot, Param{Name: name, Type: ParamString, String: value})
}

func (r *Recorder) EnableRecording() {
	r.mu.Lock()
	r.recording = true
	r.mu.Unlock()
}

func (r *Recorder) DisableRecording() {
	r.mu.Lock()
	r.recording = false
	r.mu.Unlock()
}

// Recording reports whether events are currently kept.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Events returns a copy of the event log.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Regions returns every created region ordered by handle.
func (r *Recorder) Regions() []RegionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RegionInfo(nil), r.regions...)
}

// Region returns the metadata of h.
func (r *Recorder) Region(h RegionHandle) (RegionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info := r.lookup(h); info != nil {
		return *info, true
	}
	return RegionInfo{}, false
}

// Creations counts CreateRegion and CreateRewindRegion calls.
func (r *Recorder) Creations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.regions)
}

// ParameterSlots counts the parameter slots handed out so far.
func (r *Recorder) ParameterSlots() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

func (r *Recorder) lookup(h RegionHandle) *RegionInfo {
	if !h.Valid() || int(h) > len(r.regions) {
		return nil
	}
	return &r.regions[h-1]
}

func (r *Recorder) append(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return
	}
	ev.Time = r.now()
	r.events = append(r.events, ev)
}

func (r *Recorder) parameter(slot *ParameterHandle, p Param) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if *slot == UninitializedParameter {
		*slot = ParameterHandle(len(r.slots) + 1)
		r.slots[*slot] = p.Name
	}
	if !r.recording {
		return
	}
	p.Slot = *slot
	r.events = append(r.events, Event{Type: EventParameter, Time: r.now(), Param: &p})
}
