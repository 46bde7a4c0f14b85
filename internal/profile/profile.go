// Package profile aggregates recorded events into per-region statistics.
package profile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
)

// Stat holds the timing of one region.
type Stat struct {
	Handle    backend.RegionHandle `json:"handle"`
	Name      string               `json:"name"`
	Group     string               `json:"group"`
	Kind      string               `json:"kind"`
	Visits    int                  `json:"visits"`
	Inclusive time.Duration        `json:"inclusive"`
	Min       time.Duration        `json:"min"`
	Max       time.Duration        `json:"max"`
}

// Mean returns the average visit duration.
func (s Stat) Mean() time.Duration {
	if s.Visits == 0 {
		return 0
	}
	return s.Inclusive / time.Duration(s.Visits)
}

// Param summarizes the values recorded for one parameter name.
type Param struct {
	Name   string            `json:"name"`
	Type   backend.ParamType `json:"type"`
	Count  int               `json:"count"`
	Last   string            `json:"last"`
	Region string            `json:"region,omitempty"`
}

// Profile is the aggregate of a recorded event stream.
type Profile struct {
	Total       time.Duration `json:"total"`
	Stats       []Stat        `json:"stats"`
	Params      []Param       `json:"params"`
	Rewinds     int           `json:"rewinds"`
	Rewound     int           `json:"rewound"`
	OrphanExits int           `json:"orphan_exits"`
	Unclosed    int           `json:"unclosed"`
}

type frame struct {
	handle backend.RegionHandle
	start  time.Time
}

// Build aggregates events. Exits are matched to the innermost open enter of
// the same region; exits without one are skipped. Regions still open at the
// end of the stream are closed at the last event time and counted as
// Unclosed.
func Build(regions []backend.RegionInfo, events []backend.Event) *Profile {
	p := &Profile{}
	if len(events) == 0 {
		return p
	}

	info := make(map[backend.RegionHandle]backend.RegionInfo, len(regions))
	for _, r := range regions {
		info[r.Handle] = r
	}

	stats := make(map[backend.RegionHandle]*Stat)
	record := func(h backend.RegionHandle, d time.Duration) {
		s, ok := stats[h]
		if !ok {
			r := info[h]
			s = &Stat{Handle: h, Name: r.Name, Group: r.Group, Kind: r.Kind.String(), Min: d}
			if r.Name == "" {
				s.Name = fmt.Sprintf("<region %d>", h)
			}
			stats[h] = s
		}
		s.Visits++
		s.Inclusive += d
		if d < s.Min {
			s.Min = d
		}
		if d > s.Max {
			s.Max = d
		}
		if info[h].Kind == backend.KindError {
			p.OrphanExits++
		}
	}

	params := make(map[string]*Param)
	var order []string
	var stack []frame

	for _, ev := range events {
		switch ev.Type {
		case backend.EventEnter, backend.EventRewindEnter:
			stack = append(stack, frame{handle: ev.Region, start: ev.Time})
		case backend.EventExit, backend.EventRewindExit:
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].handle != ev.Region {
					continue
				}
				record(ev.Region, ev.Time.Sub(stack[i].start))
				stack = append(stack[:i], stack[i+1:]...)
				break
			}
			if ev.Type == backend.EventRewindExit {
				p.Rewinds++
				if !ev.Success {
					p.Rewound++
				}
			}
		case backend.EventParameter:
			if ev.Param == nil {
				continue
			}
			key := string(ev.Param.Type) + "/" + ev.Param.Name
			pr, ok := params[key]
			if !ok {
				pr = &Param{Name: ev.Param.Name, Type: ev.Param.Type}
				params[key] = pr
				order = append(order, key)
			}
			pr.Count++
			pr.Last = ev.Param.Value()
			if n := len(stack); n > 0 {
				pr.Region = info[stack[n-1].handle].Name
			}
		}
	}

	last := events[len(events)-1].Time
	for i := len(stack) - 1; i >= 0; i-- {
		record(stack[i].handle, last.Sub(stack[i].start))
		p.Unclosed++
	}
	p.Total = last.Sub(events[0].Time)

	for _, s := range stats {
		p.Stats = append(p.Stats, *s)
	}
	sort.Slice(p.Stats, func(i, j int) bool {
		if p.Stats[i].Inclusive != p.Stats[j].Inclusive {
			return p.Stats[i].Inclusive > p.Stats[j].Inclusive
		}
		return p.Stats[i].Handle < p.Stats[j].Handle
	})
	for _, key := range order {
		p.Params = append(p.Params, *params[key])
	}
	return p
}

// Top returns at most n stats, the most expensive first. n <= 0 returns all.
func (p *Profile) Top(n int) []Stat {
	if n <= 0 || n >= len(p.Stats) {
		return p.Stats
	}
	return p.Stats[:n]
}

// Summary returns "Total: 1.234ms (a: 0.500ms, b: 0.250ms)" over every
// region, most expensive first.
func (p *Profile) Summary() string {
	var b strings.Builder
	b.WriteString("Total: " + Millis(p.Total))

	if len(p.Stats) > 0 {
		b.WriteString(" (")
		for i, s := range p.Stats {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.Name + ": " + Millis(s.Inclusive))
		}
		b.WriteString(")")
	}
	return b.String()
}

// Millis formats d in milliseconds with microsecond precision.
func Millis(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000.0)
}
