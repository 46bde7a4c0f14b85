// Package config handles loading and parsing of regiontrace configuration files.
package config

import (
	stdjson "encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/NikitaCOEUR/regiontrace/internal/derrors"
	"github.com/NikitaCOEUR/regiontrace/internal/replay"
	"github.com/NikitaCOEUR/regiontrace/pkg/probe"
	"github.com/NikitaCOEUR/regiontrace/pkg/region"
)

// SupportedConfigNames contains supported configuration file names (in order of preference)
var SupportedConfigNames = []string{
	".regiontrace.yml",
	".regiontrace.yaml",
	".regiontrace.toml",
	".regiontrace.json",
}

// Backend names accepted by the backend field.
const (
	BackendMemory       = "memory"
	BackendOTelStdout   = "otel-stdout"
	BackendOTLP         = "otlp"
	BackendRuntimeTrace = "runtime-trace"
	BackendNone         = "none"
)

// Backends lists every known backend name.
var Backends = []string{BackendMemory, BackendOTelStdout, BackendOTLP, BackendRuntimeTrace, BackendNone}

// Ignore holds the call-site filter rules.
type Ignore struct {
	Functions     []string `koanf:"functions" json:"functions" jsonschema:"description=Function names whose calls are never recorded"`
	ScopePrefixes []string `koanf:"scope_prefixes" json:"scope_prefixes" jsonschema:"description=Scopes starting with one of these prefixes are never recorded"`
}

// Config represents a regiontrace configuration
type Config struct {
	Backend        string   `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=memory,enum=otel-stdout,enum=otlp,enum=runtime-trace,enum=none,default=memory,description=Measurement backend receiving region events"`
	ServiceName    string   `koanf:"service_name" json:"service_name,omitempty" jsonschema:"minLength=1,default=regiontrace,description=Service name reported by the OpenTelemetry backends"`
	Endpoint       string   `koanf:"endpoint" json:"endpoint,omitempty" jsonschema:"default=localhost:4317,description=OTLP gRPC collector address (host:port)"`
	OutputDir      string   `koanf:"output_dir" json:"output_dir,omitempty" jsonschema:"minLength=1,default=.,description=Directory where experiment directories are created"`
	LogLevel       string   `koanf:"log_level" json:"log_level,omitempty" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error,default=warn,description=Log level"`
	ParameterSlots string   `koanf:"parameter_slots" json:"parameter_slots,omitempty" jsonschema:"enum=per-name,enum=shared,default=per-name,description=Parameter handle caching mode"`
	Warnings       bool     `koanf:"warnings" json:"warnings" jsonschema:"default=true,description=Print the one-time warning on a region exit without an enter"`
	ExitWhitelist  []string `koanf:"exit_whitelist" json:"exit_whitelist" jsonschema:"description=Region names whose unmatched exits are expected and ignored"`
	Ignore         Ignore   `koanf:"ignore" json:"ignore" jsonschema:"description=Call-site filter rules"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend:        BackendMemory,
		ServiceName:    "regiontrace",
		Endpoint:       "localhost:4317",
		OutputDir:      ".",
		LogLevel:       "warn",
		ParameterSlots: region.ParameterSlotsPerName.String(),
		Warnings:       true,
		ExitWhitelist:  append([]string(nil), region.DefaultExitWhitelist...),
		Ignore: Ignore{
			Functions:     append([]string(nil), replay.DefaultFilter.Functions...),
			ScopePrefixes: append([]string(nil), replay.DefaultFilter.ScopePrefixes...),
		},
	}
}

// ParseSlotMode converts a parameter_slots value.
func ParseSlotMode(s string) (region.ParameterSlotMode, error) {
	switch strings.ToLower(s) {
	case "", "per-name":
		return region.ParameterSlotsPerName, nil
	case "shared":
		return region.ParameterSlotsShared, nil
	default:
		return 0, fmt.Errorf("unknown parameter slot mode %q", s)
	}
}

// Filter returns the call-site filter described by the ignore section.
func (c *Config) Filter() probe.Filter {
	return probe.Filter{
		Functions:     c.Ignore.Functions,
		ScopePrefixes: c.Ignore.ScopePrefixes,
	}
}

// RegionOptions translates the configuration into session options.
// warnings receives the orphan exit warning when enabled; logf may be nil.
func (c *Config) RegionOptions(warnings io.Writer, logf region.LogFunc) ([]region.Option, error) {
	mode, err := ParseSlotMode(c.ParameterSlots)
	if err != nil {
		return nil, derrors.NewConfigurationError("", "invalid parameter_slots", err)
	}

	if !c.Warnings {
		warnings = nil
	}

	opts := []region.Option{
		region.WithExitWhitelist(c.ExitWhitelist...),
		region.WithWarningWriter(warnings),
		region.WithParameterSlots(mode),
	}
	if logf != nil {
		opts = append(opts, region.WithLogger(logf))
	}
	return opts, nil
}

// Loader merges configuration files on top of the defaults.
// Later files take precedence.
type Loader struct {
	k     *koanf.Koanf
	files []string
}

// New creates a loader seeded with Default.
func New() *Loader {
	k := koanf.New(".")

	// Default is always marshalable
	data, _ := stdjson.Marshal(Default())
	_ = k.Load(rawbytes.Provider(data), json.Parser())

	return &Loader{k: k}
}

// ParserFor returns the koanf parser matching the file extension.
func ParserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
}

// Load reads and merges a configuration file
func (l *Loader) Load(path string) error {
	parser, err := ParserFor(path)
	if err != nil {
		return derrors.NewConfigurationError(path, "failed to load config", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return derrors.NewConfigurationError(path, "failed to read config", err)
	}

	if err := l.k.Load(rawbytes.Provider(data), parser); err != nil {
		return derrors.NewConfigurationError(path, "failed to parse config", err)
	}

	l.files = append(l.files, path)
	return nil
}

// Files returns the files merged so far, in load order.
func (l *Loader) Files() []string {
	return append([]string(nil), l.files...)
}

// Config unmarshals the merged configuration.
func (l *Loader) Config() (*Config, error) {
	cfg := &Config{}
	if err := l.k.Unmarshal("", cfg); err != nil {
		return nil, derrors.NewConfigurationError("", "failed to unmarshal config", err)
	}
	return cfg, nil
}

// FindConfigFiles searches for config files from startDir up to root
// Returns paths in order from root to leaf (for proper merging)
func FindConfigFiles(startDir string) ([]string, error) {
	var configs []string
	currentDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		for _, name := range SupportedConfigNames {
			path := filepath.Join(currentDir, name)
			if _, err := os.Stat(path); err == nil {
				configs = append(configs, path)
				break // Only one config per directory
			}
		}

		parent := filepath.Dir(currentDir)
		if parent == currentDir {
			break
		}
		currentDir = parent
	}

	// Reverse to get root-to-leaf order
	for i, j := 0, len(configs)-1; i < j; i, j = i+1, j-1 {
		configs[i], configs[j] = configs[j], configs[i]
	}

	return configs, nil
}

// LoadHierarchy merges defaults, every config file from the filesystem root
// down to dir, then explicit (when non-empty). It returns the merged config
// and the files that were loaded.
func LoadHierarchy(dir, explicit string) (*Config, []string, error) {
	files, err := FindConfigFiles(dir)
	if err != nil {
		return nil, nil, err
	}
	if explicit != "" {
		files = append(files, explicit)
	}

	l := New()
	for _, path := range files {
		if err := l.Load(path); err != nil {
			return nil, l.Files(), err
		}
	}

	cfg, err := l.Config()
	if err != nil {
		return nil, l.Files(), err
	}
	return cfg, l.Files(), nil
}
