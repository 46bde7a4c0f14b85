package region

import (
	"fmt"
	"sync"

	"github.com/NikitaCOEUR/regiontrace/internal/derrors"
	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
)

// ErrNotFound is matched by errors returned from RewindRegistry.End for an
// unknown region.
var ErrNotFound = derrors.ErrNotFound

// RewindRegistry tracks checkpoint regions by name.
type RewindRegistry struct {
	backend backend.Backend
	opts    options

	mu      sync.RWMutex
	regions map[string]backend.RegionHandle
}

// NewRewindRegistry creates an empty RewindRegistry dispatching to b.
func NewRewindRegistry(b backend.Backend, opts ...Option) *RewindRegistry {
	return &RewindRegistry{
		backend: b,
		opts:    newOptions(opts),
		regions: make(map[string]backend.RegionHandle),
	}
}

// Begin enters the rewind region name, creating it on first use.
func (r *RewindRegistry) Begin(name, file string, line uint64) {
	r.backend.RewindEnter(r.resolve(name, file, line))
}

func (r *RewindRegistry) resolve(name, file string, line uint64) backend.RegionHandle {
	r.mu.RLock()
	h, ok := r.regions[name]
	r.mu.RUnlock()
	if ok {
		return h
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.regions[name]; ok {
		return h
	}
	h = r.backend.CreateRewindRegion(name, file, line)
	r.regions[name] = h
	r.opts.debug("rewind region created", map[string]any{
		"region": name,
		"handle": uint64(h),
	})
	return h
}

// End leaves the rewind region name. success=false asks the backend to
// discard what was recorded since Begin. An unknown name yields an error
// matching ErrNotFound.
func (r *RewindRegistry) End(name string, success bool) error {
	r.mu.RLock()
	h, ok := r.regions[name]
	r.mu.RUnlock()
	if !ok {
		return derrors.NewNotFoundError(name, fmt.Sprintf("rewind region %q was never begun", name))
	}

	r.backend.RewindEnd(h, success)
	return nil
}

// Len returns the number of known rewind regions.
func (r *RewindRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.regions)
}
