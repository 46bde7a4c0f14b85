// Package tracefile persists recorded sessions as JSON trace files.
package tracefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
	"github.com/NikitaCOEUR/regiontrace/pkg/region"
)

// FileName is the trace file written inside an experiment directory.
const FileName = "trace.json"

// dirPrefix starts every experiment directory name.
const dirPrefix = "regiontrace-"

// Trace is the on-disk form of a recorded session.
type Trace struct {
	Session string               `json:"session"`
	Created time.Time            `json:"created"`
	Backend string               `json:"backend"`
	Version string               `json:"version,omitempty"`
	Regions []backend.RegionInfo `json:"regions"`
	Events  []backend.Event      `json:"events"`
	Stats   region.Stats         `json:"stats"`
}

// FromRecorder snapshots rec into a Trace for session s.
func FromRecorder(s *region.Session, rec *backend.Recorder, backendName string, now time.Time) *Trace {
	return &Trace{
		Session: s.ID(),
		Created: now,
		Backend: backendName,
		Regions: rec.Regions(),
		Events:  rec.Events(),
		Stats:   s.Stats(),
	}
}

// Write stores t as indented JSON at path, creating parent directories.
func Write(path string, t *Trace) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Read loads a trace written by Write.
func Read(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse trace %s: %w", path, err)
	}
	return &t, nil
}

// ExperimentDir returns a fresh directory name under base:
// regiontrace-YYYYMMDD_HHMMSS_<8 hex>.
func ExperimentDir(base string, now time.Time) string {
	suffix := uuid.New().String()[:8]
	return filepath.Join(base, dirPrefix+now.Format("20060102_150405")+"_"+suffix)
}

// Info describes a trace file on disk.
type Info struct {
	Path    string
	Size    int64
	Regions int
	Events  int
}

// GetInfo returns information about the trace at path. A missing file
// yields an Info with only Path set.
func GetInfo(path string) (*Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Info{Path: path}, nil
		}
		return nil, err
	}

	result := &Info{Path: path, Size: st.Size()}

	t, err := Read(path)
	if err != nil {
		return result, nil // Return partial info
	}
	result.Regions = len(t.Regions)
	result.Events = len(t.Events)
	return result, nil
}
