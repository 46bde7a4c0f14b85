// Package rtrace records regions into the Go execution tracer.
//
// Regions map to runtime/trace regions inside one task per Start, and
// parameters to trace.Log records. Inspect the output with:
//
//	regiontrace replay --backend runtime-trace events.jsonl
//	go tool trace regiontrace-*/trace.out
//
// runtime/trace expects a region to end on the goroutine that started it,
// so a Backend should serve one goroutine of instrumented execution.
package rtrace

import (
	"context"
	"fmt"
	"io"
	"runtime/trace"
	"strconv"
	"sync"

	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
)

const (
	taskName       = "regiontrace"
	paramCategory  = "param"
	rewindCategory = "rewind"
)

type openRegion struct {
	handle backend.RegionHandle
	region *trace.Region
}

// Backend implements backend.Backend with runtime/trace regions.
type Backend struct {
	mu        sync.Mutex
	ctx       context.Context
	task      *trace.Task
	active    bool
	names     []string
	stack     []openRegion
	slots     uint64
	recording bool
}

// New creates a Backend. Regions are only visible in a trace once Start
// has been called, or when the process is traced by other means.
func New() *Backend {
	return &Backend{ctx: context.Background(), recording: true}
}

// Start begins writing an execution trace to w.
func (b *Backend) Start(w io.Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active {
		return fmt.Errorf("rtrace: trace already started")
	}
	if err := trace.Start(w); err != nil {
		return fmt.Errorf("failed to start trace: %w", err)
	}
	b.ctx, b.task = trace.NewTask(context.Background(), taskName)
	b.active = true
	return nil
}

// Stop ends open regions and the execution trace.
func (b *Backend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return
	}
	for i := len(b.stack) - 1; i >= 0; i-- {
		b.stack[i].region.End()
	}
	b.stack = nil
	b.task.End()
	trace.Stop()
	b.ctx = context.Background()
	b.active = false
}

// Depth returns the number of open regions.
func (b *Backend) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.stack)
}

func (b *Backend) CreateRegion(name string, _ backend.RegionKind, _ string, _ uint64) backend.RegionHandle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.names = append(b.names, name)
	return backend.RegionHandle(len(b.names))
}

// SetGroup is a no-op: execution traces have no region groups.
func (b *Backend) SetGroup(backend.RegionHandle, string) {}

func (b *Backend) Enter(h backend.RegionHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording || !h.Valid() || int(h) > len(b.names) {
		return
	}
	r := trace.StartRegion(b.ctx, b.names[h-1])
	b.stack = append(b.stack, openRegion{handle: h, region: r})
}

func (b *Backend) End(h backend.RegionHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pop(h)
}

func (b *Backend) CreateRewindRegion(name, file string, line uint64) backend.RegionHandle {
	return b.CreateRegion(name, backend.KindRewind, file, line)
}

func (b *Backend) RewindEnter(h backend.RegionHandle) {
	b.Enter(h)
}

func (b *Backend) RewindEnd(h backend.RegionHandle, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pop(h) && b.recording {
		trace.Log(b.ctx, rewindCategory, "success="+strconv.FormatBool(success))
	}
}

func (b *Backend) RecordParameterInt(slot *backend.ParameterHandle, name string, value int64) {
	b.log(slot, name, strconv.FormatInt(value, 10))
}

func (b *Backend) RecordParameterUint(slot *backend.ParameterHandle, name string, value uint64) {
	b.log(slot, name, strconv.FormatUint(value, 10))
}

func (b *Backend) RecordParameterString(slot *backend.ParameterHandle, name, value string) {
	b.log(slot, name, value)
}

func (b *Backend) EnableRecording() {
	b.mu.Lock()
	b.recording = true
	b.mu.Unlock()
}

func (b *Backend) DisableRecording() {
	b.mu.Lock()
	b.recording = false
	b.mu.Unlock()
}

// pop ends the innermost open region of h. It must be called with b.mu held.
// Regions opened before DisableRecording are still ended.
func (b *Backend) pop(h backend.RegionHandle) bool {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if b.stack[i].handle == h {
			b.stack[i].region.End()
			b.stack = append(b.stack[:i], b.stack[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Backend) log(slot *backend.ParameterHandle, name, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if *slot == backend.UninitializedParameter {
		b.slots++
		*slot = backend.ParameterHandle(b.slots)
	}
	if b.recording {
		trace.Log(b.ctx, paramCategory, name+"="+value)
	}
}
