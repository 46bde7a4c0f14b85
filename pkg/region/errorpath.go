package region

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
)

const (
	// ErrorRegionName is the marker region that records unmatched exits.
	ErrorRegionName = "error_region"
	// ErrorRegionGroup is the group of the marker region.
	ErrorRegionGroup = "error"
	// LeaveRegionParameter carries the name of the unmatched region.
	LeaveRegionParameter = "leave-region"

	errorRegionFile = "regiontrace"
)

// OrphanExitWarning is printed once per Registry on the first unmatched exit.
const OrphanExitWarning = "REGIONTRACE ERROR: There was a region exit without an enter!\n" +
	"REGIONTRACE ERROR: For details look for \"error_region\" in the trace or profile.\n"

type errorPath struct {
	opts *options

	mu     sync.Mutex
	handle backend.RegionHandle
	slot   backend.ParameterHandle

	warned  atomic.Bool
	orphans atomic.Uint64
}

func (p *errorPath) report(b backend.Backend, name string) {
	if _, ok := p.opts.whitelist[name]; ok {
		return
	}
	p.orphans.Add(1)

	p.mu.Lock()
	if !p.handle.Valid() {
		p.handle = b.CreateRegion(ErrorRegionName, backend.KindError, errorRegionFile, 0)
		b.SetGroup(p.handle, ErrorRegionGroup)
	}
	b.Enter(p.handle)
	b.RecordParameterString(&p.slot, LeaveRegionParameter, name)
	b.End(p.handle)
	p.mu.Unlock()

	p.opts.debug("region exit without enter", map[string]any{"region": name})

	if p.warned.CompareAndSwap(false, true) && p.opts.warnings != nil {
		_, _ = fmt.Fprint(p.opts.warnings, OrphanExitWarning)
	}
}
