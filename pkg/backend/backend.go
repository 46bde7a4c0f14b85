// Package backend defines the handle-based contract between the region
// registries and a measurement backend, and ships an in-memory Recorder.
//
// A backend owns every handle it returns. Handles are never released while
// the process runs; registries only cache them.
package backend

import "sync/atomic"

// RegionHandle identifies a region created by a backend.
type RegionHandle uint64

// Uninitialized is the zero RegionHandle. Backends never return it for a
// successfully created region.
const Uninitialized RegionHandle = 0

// Valid reports whether h was produced by a backend.
func (h RegionHandle) Valid() bool {
	return h != Uninitialized
}

// ParameterHandle is a cache slot for a registered parameter. Backends fill
// an uninitialized slot on first use and reuse it afterwards.
type ParameterHandle uint64

// UninitializedParameter is the zero ParameterHandle.
const UninitializedParameter ParameterHandle = 0

// RegionKind classifies a region at creation time.
type RegionKind int

const (
	KindFunction RegionKind = iota
	KindUser
	KindRewind
	KindError
)

func (k RegionKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindUser:
		return "user"
	case KindRewind:
		return "rewind"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Backend is the measurement service consumed by the registries.
//
// Calls are synchronous and expected to return quickly. Implementations
// must be safe for concurrent use.
type Backend interface {
	// CreateRegion registers a region and returns its handle.
	CreateRegion(name string, kind RegionKind, file string, line uint64) RegionHandle
	// SetGroup tags a region with a group name.
	SetGroup(h RegionHandle, group string)
	// Enter records a region enter event.
	Enter(h RegionHandle)
	// End records a region exit event.
	End(h RegionHandle)

	// CreateRewindRegion registers a checkpoint region.
	CreateRewindRegion(name, file string, line uint64) RegionHandle
	// RewindEnter records the start of a checkpoint region.
	RewindEnter(h RegionHandle)
	// RewindEnd closes a checkpoint region. success=false asks the backend
	// to rewind the recorded data back to the checkpoint.
	RewindEnd(h RegionHandle, success bool)

	RecordParameterInt(slot *ParameterHandle, name string, value int64)
	RecordParameterUint(slot *ParameterHandle, name string, value uint64)
	RecordParameterString(slot *ParameterHandle, name, value string)

	EnableRecording()
	DisableRecording()
}

// Nop is a Backend that hands out handles and records nothing.
type Nop struct {
	next atomic.Uint64
	slot atomic.Uint64
}

// NewNop creates a Nop backend.
func NewNop() *Nop {
	return &Nop{}
}

func (n *Nop) CreateRegion(string, RegionKind, string, uint64) RegionHandle {
	return RegionHandle(n.next.Add(1))
}

func (n *Nop) SetGroup(RegionHandle, string) {}
func (n *Nop) Enter(RegionHandle)            {}
func (n *Nop) End(RegionHandle)              {}

func (n *Nop) CreateRewindRegion(name, file string, line uint64) RegionHandle {
	return n.CreateRegion(name, KindRewind, file, line)
}

func (n *Nop) RewindEnter(RegionHandle)     {}
func (n *Nop) RewindEnd(RegionHandle, bool) {}

func (n *Nop) RecordParameterInt(slot *ParameterHandle, _ string, _ int64) {
	n.fill(slot)
}

func (n *Nop) RecordParameterUint(slot *ParameterHandle, _ string, _ uint64) {
	n.fill(slot)
}

func (n *Nop) RecordParameterString(slot *ParameterHandle, _, _ string) {
	n.fill(slot)
}

func (n *Nop) fill(slot *ParameterHandle) {
	if *slot == UninitializedParameter {
		*slot = ParameterHandle(n.slot.Add(1))
	}
}

func (n *Nop) EnableRecording()  {}
func (n *Nop) DisableRecording() {}
