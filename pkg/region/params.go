package region

import (
	"sync"

	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
)

type slotKey struct {
	typ  backend.ParamType
	name string
}

// Parameters forwards named scalar values to the backend, caching one
// parameter handle per slot.
type Parameters struct {
	backend backend.Backend
	mode    ParameterSlotMode

	mu    sync.Mutex
	slots map[slotKey]*backend.ParameterHandle
}

// NewParameters creates a Parameters reporter dispatching to b.
func NewParameters(b backend.Backend, opts ...Option) *Parameters {
	o := newOptions(opts)
	return &Parameters{
		backend: b,
		mode:    o.slots,
		slots:   make(map[slotKey]*backend.ParameterHandle),
	}
}

// Int records a signed parameter.
func (p *Parameters) Int(name string, value int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backend.RecordParameterInt(p.slot(backend.ParamInt, name), name, value)
}

// Uint records an unsigned parameter.
func (p *Parameters) Uint(name string, value uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backend.RecordParameterUint(p.slot(backend.ParamUint, name), name, value)
}

// String records a string parameter.
func (p *Parameters) String(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backend.RecordParameterString(p.slot(backend.ParamString, name), name, value)
}

// Len returns the number of cached slots.
func (p *Parameters) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// Mode returns the slot caching mode.
func (p *Parameters) Mode() ParameterSlotMode {
	return p.mode
}

// slot must be called with p.mu held.
func (p *Parameters) slot(typ backend.ParamType, name string) *backend.ParameterHandle {
	key := slotKey{typ: typ, name: name}
	if p.mode == ParameterSlotsShared {
		key.name = ""
	}

	s, ok := p.slots[key]
	if !ok {
		s = new(backend.ParameterHandle)
		p.slots[key] = s
	}
	return s
}
