// Package report renders recorded traces for the terminal or through user
// templates.
package report

import (
	"time"

	"github.com/NikitaCOEUR/regiontrace/internal/profile"
	"github.com/NikitaCOEUR/regiontrace/internal/tracefile"
	"github.com/NikitaCOEUR/regiontrace/pkg/region"
)

// DefaultTop is the number of regions listed when no limit is given.
const DefaultTop = 10

// Data contains everything a report can show
type Data struct {
	// Header
	TracePath string
	Session   string
	Backend   string
	Created   time.Time
	Version   string

	// Registries
	Stats region.Stats

	// Profile
	Profile *profile.Profile
	Top     []profile.Stat
}

// NewData aggregates t into report data listing at most top regions.
func NewData(path string, t *tracefile.Trace, top int) *Data {
	if top <= 0 {
		top = DefaultTop
	}
	p := profile.Build(t.Regions, t.Events)
	return &Data{
		TracePath: path,
		Session:   t.Session,
		Backend:   t.Backend,
		Created:   t.Created,
		Version:   t.Version,
		Stats:     t.Stats,
		Profile:   p,
		Top:       p.Top(top),
	}
}
