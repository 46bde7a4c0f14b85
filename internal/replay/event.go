// Package replay drives a region session from a recorded event stream.
//
// The stream is either JSON lines, one event object per line, or a YAML
// list of the same objects. It lets a host that cannot link Go code, such as
// a Python profiler hook, feed call, return and identity retirement events
// into the registries:
//
//	{"event":"call","id":4096,"scope":"numpy.linalg","function":"dot","file":"lib.py","line":10}
//	{"event":"return","id":4096}
//	{"event":"retire","id":4096}
package replay

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind is the type of a replayed event.
type Kind string

const (
	KindCall        Kind = "call"
	KindReturn      Kind = "return"
	KindRetire      Kind = "retire"
	KindUserBegin   Kind = "user_begin"
	KindUserEnd     Kind = "user_end"
	KindRewindBegin Kind = "rewind_begin"
	KindRewindEnd   Kind = "rewind_end"
	KindParamInt    Kind = "param_int"
	KindParamUint   Kind = "param_uint"
	KindParamString Kind = "param_string"
	KindEnable      Kind = "enable"
	KindDisable     Kind = "disable"
)

// Event is one entry of the stream.
type Event struct {
	Event    Kind   `json:"event" yaml:"event"`
	ID       uint64 `json:"id,omitempty" yaml:"id,omitempty"`
	Scope    string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Function string `json:"function,omitempty" yaml:"function,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Line     uint64 `json:"line,omitempty" yaml:"line,omitempty"`
	Success  bool   `json:"success,omitempty" yaml:"success,omitempty"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// Format is the encoding of an event stream.
type Format string

const (
	FormatJSONLines Format = "jsonl"
	FormatYAML      Format = "yaml"
)

// FormatFromPath picks the format from a file extension. Anything that is
// not .yml or .yaml is read as JSON lines.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	default:
		return FormatJSONLines
	}
}

func (e Event) intValue() (int64, error) {
	switch v := e.Value.(type) {
	case json.Number:
		return strconv.ParseInt(v.String(), 10, 64)
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("expected an integer value, got %T", e.Value)
	}
}

func (e Event) uintValue() (uint64, error) {
	switch v := e.Value.(type) {
	case json.Number:
		return strconv.ParseUint(v.String(), 10, 64)
	case int:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		return uint64(v), nil
	case uint64:
		return v, nil
	default:
		return 0, fmt.Errorf("expected an unsigned integer value, got %T", e.Value)
	}
}

func (e Event) stringValue() (string, error) {
	s, ok := e.Value.(string)
	if !ok {
		return "", fmt.Errorf("expected a string value, got %T", e.Value)
	}
	return s, nil
}
