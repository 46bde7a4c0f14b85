package region

import (
	"io"
	"os"
)

// DefaultExitWhitelist lists region names whose unmatched exits are
// expected: runtime bootstrap frames entered before instrumentation
// attaches.
var DefaultExitWhitelist = []string{
	"threading:_bootstrap_inner",
	"threading:_bootstrap",
}

// ParameterSlotMode selects how parameter handles are cached.
type ParameterSlotMode int

const (
	// ParameterSlotsPerName keeps one slot per parameter type and name.
	ParameterSlotsPerName ParameterSlotMode = iota
	// ParameterSlotsShared keeps a single slot per parameter type, shared by
	// every name.
	ParameterSlotsShared
)

func (m ParameterSlotMode) String() string {
	if m == ParameterSlotsShared {
		return "shared"
	}
	return "per-name"
}

// LogFunc receives debug records from the registries.
type LogFunc func(msg string, fields map[string]any)

// Option configures a Registry, RewindRegistry, Parameters or Session.
type Option func(*options)

type options struct {
	whitelist map[string]struct{}
	warnings  io.Writer
	logf      LogFunc
	slots     ParameterSlotMode
	getwd     func() (string, error)
}

func newOptions(opts []Option) options {
	o := options{
		warnings: os.Stderr,
		slots:    ParameterSlotsPerName,
		getwd:    os.Getwd,
	}
	WithExitWhitelist(DefaultExitWhitelist...)(&o)
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithExitWhitelist replaces the names whose unmatched exits are ignored.
func WithExitWhitelist(names ...string) Option {
	return func(o *options) {
		o.whitelist = make(map[string]struct{}, len(names))
		for _, n := range names {
			o.whitelist[n] = struct{}{}
		}
	}
}

// WithWarningWriter sets where the one-time orphan exit warning goes.
// A nil writer disables the warning.
func WithWarningWriter(w io.Writer) Option {
	return func(o *options) {
		o.warnings = w
	}
}

// WithLogger installs a debug hook for creation, retirement and error path
// records.
func WithLogger(fn LogFunc) Option {
	return func(o *options) {
		o.logf = fn
	}
}

// WithParameterSlots selects the parameter slot caching mode.
func WithParameterSlots(mode ParameterSlotMode) Option {
	return func(o *options) {
		o.slots = mode
	}
}

// WithGetwd sets the working directory lookup used to resolve relative
// source files of user regions and replayed calls.
func WithGetwd(getwd func() (string, error)) Option {
	return func(o *options) {
		o.getwd = getwd
	}
}

func (o *options) debug(msg string, fields map[string]any) {
	if o.logf != nil {
		o.logf(msg, fields)
	}
}
