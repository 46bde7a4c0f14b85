// Package probe instruments Go functions with region enter and exit events.
//
//	func (s *Solver) Step() {
//		defer p.Enter()()
//		...
//	}
//
// The identity of a region is the program counter of the Enter call site,
// so the registry fast path costs one stack walk of depth one plus a map
// lookup. Naming metadata is only computed the first time a call site is
// seen.
package probe

import (
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/NikitaCOEUR/regiontrace/pkg/pathutil"
	"github.com/NikitaCOEUR/regiontrace/pkg/region"
)

// Option configures a Probe.
type Option func(*Probe)

// WithFilter sets the call sites the probe skips.
func WithFilter(f Filter) Option {
	return func(p *Probe) {
		p.filter = f
	}
}

// Probe feeds Go call sites into a Registry.
type Probe struct {
	reg     *region.Registry
	filter  Filter
	ignored sync.Map
}

// New creates a Probe dispatching to reg.
func New(reg *region.Registry, opts ...Option) *Probe {
	p := &Probe{reg: reg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func noop() {}

// Enter begins the region of the calling function and returns the func
// that ends it.
//
//go:noinline
func (p *Probe) Enter() (exit func()) {
	var pcs [1]uintptr
	if runtime.Callers(2, pcs[:]) == 0 {
		return noop
	}
	id := region.Identity(pcs[0])

	if p.reg.TryBegin(id) {
		return func() { p.exit(id, region.Meta{}) }
	}
	if _, skip := p.ignored.Load(id); skip {
		return noop
	}

	frame, _ := runtime.CallersFrames(pcs[:]).Next()
	meta := metaFor(frame.Function, frame.File, declLine(frame))
	return p.begin(id, meta)
}

// Do runs f inside the region of f itself.
func (p *Probe) Do(f func()) {
	entry := reflect.ValueOf(f).Pointer()
	id := region.Identity(entry)

	var exit func()
	if p.reg.TryBegin(id) {
		exit = func() { p.exit(id, region.Meta{}) }
	} else if _, skip := p.ignored.Load(id); skip {
		exit = noop
	} else if fn := runtime.FuncForPC(entry); fn != nil {
		file, line := fn.FileLine(entry)
		exit = p.begin(id, metaFor(fn.Name(), file, line))
	} else {
		exit = noop
	}

	defer exit()
	f()
}

func (p *Probe) begin(id region.Identity, meta region.Meta) func() {
	if p.filter.Ignored(meta.Scope, meta.Function) {
		p.ignored.Store(id, struct{}{})
		return noop
	}
	p.reg.Begin(region.IdentityKey(id), meta)
	return func() { p.exit(id, meta) }
}

func (p *Probe) exit(id region.Identity, meta region.Meta) {
	if !p.reg.TryEnd(id) {
		p.reg.End(region.IdentityKey(id), meta)
	}
}

// declLine returns the line of the function declaration when known, the
// call site line otherwise.
func declLine(frame runtime.Frame) int {
	if frame.Func != nil {
		if _, line := frame.Func.FileLine(frame.Entry); line > 0 {
			return line
		}
	}
	return frame.Line
}

func metaFor(fullName, file string, line int) region.Meta {
	scope, function := SplitFuncName(fullName)
	if file != "" {
		file = pathutil.Abspath(file)
	}
	if line < 0 {
		line = 0
	}
	return region.Meta{
		Scope:    scope,
		Function: function,
		File:     file,
		Line:     uint64(line),
	}
}

// SplitFuncName splits a runtime function name into a dotted scope and the
// function part:
//
//	github.com/acme/solver/linalg.(*Matrix).Mul -> acme.solver.linalg, (*Matrix).Mul
//	net/http.Get                               -> net.http, Get
//	main.main                                  -> main, main
//	gopkg.in/yaml%2ev3.Unmarshal               -> yaml.v3, Unmarshal
//
// A leading host element (one containing a dot) is dropped so that the
// scope's first component names the owner or standard library tree.
func SplitFuncName(name string) (scope, function string) {
	slash := strings.LastIndexByte(name, '/')
	dot := strings.IndexByte(name[slash+1:], '.')
	if dot < 0 {
		return "", name
	}
	pkgPath := name[:slash+1+dot]
	function = name[slash+1+dot+1:]

	elems := strings.Split(pkgPath, "/")
	if len(elems) > 1 && strings.Contains(elems[0], ".") {
		elems = elems[1:]
	}
	return strings.ReplaceAll(strings.Join(elems, "."), "%2e", "."), function
}
