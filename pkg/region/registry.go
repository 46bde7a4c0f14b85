// Package region maps call sites to backend region handles and dispatches
// enter and exit events.
//
// A Registry keeps two independent maps: one keyed by call-site Identity
// for the hot path, and one keyed by "<scope>:<function>" name for
// user-declared regions and hosts that cannot report identity retirement.
// Handles are created lazily on first Begin and reused afterwards.
package region

import (
	"fmt"
	"sync"

	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
)

// Registry resolves region keys to backend handles. It is safe for
// concurrent use.
type Registry struct {
	backend backend.Backend
	opts    options

	idMu sync.RWMutex
	byID map[Identity]backend.RegionHandle

	nameMu sync.RWMutex
	byName map[string]backend.RegionHandle

	errs errorPath
}

// NewRegistry creates an empty Registry dispatching to b.
func NewRegistry(b backend.Backend, opts ...Option) *Registry {
	r := &Registry{
		backend: b,
		opts:    newOptions(opts),
		byID:    make(map[Identity]backend.RegionHandle),
		byName:  make(map[string]backend.RegionHandle),
	}
	r.errs.opts = &r.opts
	return r
}

// ResolveOrCreate returns the handle registered for key, creating the
// backend region on first sight. Concurrent callers for the same key
// trigger a single creation.
func (r *Registry) ResolveOrCreate(key Key, meta Meta) backend.RegionHandle {
	if key.IsIdentity() {
		return r.resolveIdentity(key.id, meta)
	}
	return r.resolveName(key, meta)
}

func (r *Registry) resolveIdentity(id Identity, meta Meta) backend.RegionHandle {
	r.idMu.RLock()
	h, ok := r.byID[id]
	r.idMu.RUnlock()
	if ok {
		return h
	}

	r.idMu.Lock()
	defer r.idMu.Unlock()
	if h, ok := r.byID[id]; ok {
		return h
	}
	h = r.create(meta.DisplayName(), meta.Group(), meta)
	r.byID[id] = h
	return h
}

func (r *Registry) resolveName(key Key, meta Meta) backend.RegionHandle {
	r.nameMu.RLock()
	h, ok := r.byName[key.name]
	r.nameMu.RUnlock()
	if ok {
		return h
	}

	r.nameMu.Lock()
	defer r.nameMu.Unlock()
	if h, ok := r.byName[key.name]; ok {
		return h
	}
	h = r.create(key.name, groupOf(key.scope), meta)
	r.byName[key.name] = h
	return h
}

func (r *Registry) create(name, group string, meta Meta) backend.RegionHandle {
	h := r.backend.CreateRegion(name, backend.KindFunction, meta.File, meta.Line)
	r.backend.SetGroup(h, group)
	r.opts.debug("region created", map[string]any{
		"region": name,
		"group":  group,
		"handle": uint64(h),
	})
	return h
}

// Begin resolves key and enters its region.
func (r *Registry) Begin(key Key, meta Meta) {
	r.backend.Enter(r.ResolveOrCreate(key, meta))
}

// End exits the region registered for key. An unregistered key is routed
// to the error path; End never fails.
func (r *Registry) End(key Key, meta Meta) {
	if h, ok := r.Lookup(key); ok {
		r.backend.End(h)
		return
	}
	r.errs.report(r.backend, displayName(key, meta))
}

// TryBegin enters the region registered for id and reports whether it was
// found. On false the caller should gather Meta and call Begin.
func (r *Registry) TryBegin(id Identity) bool {
	r.idMu.RLock()
	h, ok := r.byID[id]
	r.idMu.RUnlock()
	if ok {
		r.backend.Enter(h)
	}
	return ok
}

// TryEnd exits the region registered for id and reports whether it was
// found. On false the caller should call End.
func (r *Registry) TryEnd(id Identity) bool {
	r.idMu.RLock()
	h, ok := r.byID[id]
	r.idMu.RUnlock()
	if ok {
		r.backend.End(h)
	}
	return ok
}

// Retire drops the entry for id. The backend region itself stays alive.
func (r *Registry) Retire(id Identity) {
	r.idMu.Lock()
	h, ok := r.byID[id]
	delete(r.byID, id)
	r.idMu.Unlock()

	if ok {
		r.opts.debug("identity retired", map[string]any{
			"id":     fmt.Sprintf("0x%x", uintptr(id)),
			"handle": uint64(h),
		})
	}
}

// Lookup returns the handle registered for key without creating it.
func (r *Registry) Lookup(key Key) (backend.RegionHandle, bool) {
	if key.IsIdentity() {
		r.idMu.RLock()
		defer r.idMu.RUnlock()
		h, ok := r.byID[key.id]
		return h, ok
	}

	r.nameMu.RLock()
	defer r.nameMu.RUnlock()
	h, ok := r.byName[key.name]
	return h, ok
}

// Len returns the number of identity and name entries.
func (r *Registry) Len() (identities, names int) {
	r.idMu.RLock()
	identities = len(r.byID)
	r.idMu.RUnlock()

	r.nameMu.RLock()
	names = len(r.byName)
	r.nameMu.RUnlock()
	return identities, names
}

// OrphanExits counts exits that reached the error path, whitelisted names
// excluded.
func (r *Registry) OrphanExits() uint64 {
	return r.errs.orphans.Load()
}

func displayName(key Key, meta Meta) string {
	switch {
	case !key.IsIdentity():
		return key.name
	case !meta.IsZero():
		return meta.DisplayName()
	default:
		return fmt.Sprintf("<unknown>:0x%x", uintptr(key.id))
	}
}
