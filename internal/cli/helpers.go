package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/NikitaCOEUR/regiontrace/internal/config"
	"github.com/NikitaCOEUR/regiontrace/internal/derrors"
	"github.com/NikitaCOEUR/regiontrace/internal/logger"
	"github.com/NikitaCOEUR/regiontrace/internal/tracefile"
	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
	"github.com/NikitaCOEUR/regiontrace/pkg/backend/otelbackend"
	"github.com/NikitaCOEUR/regiontrace/pkg/backend/rtrace"
)

// RuntimeTraceFile is the execution trace written by the runtime-trace backend.
const RuntimeTraceFile = "trace.out"

// Overrides holds command line values that take precedence over config files.
// Empty fields leave the configured value untouched.
type Overrides struct {
	Backend   string
	Endpoint  string
	OutputDir string
	LogLevel  string
}

// LoadConfig merges the config files found from dir upwards plus explicit,
// then applies overrides.
func LoadConfig(dir, explicit string, o Overrides) (*config.Config, []string, error) {
	cfg, files, err := config.LoadHierarchy(dir, explicit)
	if err != nil {
		return nil, files, err
	}

	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	if o.Endpoint != "" {
		cfg.Endpoint = o.Endpoint
	}
	if o.OutputDir != "" {
		cfg.OutputDir = o.OutputDir
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}

	return cfg, files, nil
}

// checkConfig turns the first semantic problem of cfg into an error.
func checkConfig(cfg *config.Config) error {
	errs := config.Check(cfg)
	if len(errs) == 0 {
		return nil
	}
	return derrors.NewValidationError(errs[0].Field, fmt.Sprintf("invalid configuration: %s", errs[0].Message), nil)
}

// backendSet is an opened measurement backend and what it produces.
type backendSet struct {
	name     string
	backend  backend.Backend
	recorder *backend.Recorder
	// artifact is the file the backend writes, if any
	artifact string
	close    func(context.Context) error
}

// openBackend creates the backend named by cfg. Files go to dir, span
// dumps of otel-stdout go to stdout.
func openBackend(ctx context.Context, cfg *config.Config, dir string, stdout io.Writer, log *logger.Logger) (*backendSet, error) {
	noClose := func(context.Context) error { return nil }
	opts := otelbackend.Options{ServiceName: cfg.ServiceName}

	switch cfg.Backend {
	case config.BackendMemory:
		rec := backend.NewRecorder()
		return &backendSet{
			name:     cfg.Backend,
			backend:  rec,
			recorder: rec,
			artifact: filepath.Join(dir, tracefile.FileName),
			close:    noClose,
		}, nil

	case config.BackendNone:
		return &backendSet{name: cfg.Backend, backend: backend.NewNop(), close: noClose}, nil

	case config.BackendOTelStdout:
		b, err := otelbackend.NewStdout(stdout, opts)
		if err != nil {
			return nil, derrors.NewBackendError(cfg.Backend, "failed to create backend", err)
		}
		return &backendSet{name: cfg.Backend, backend: b, close: b.Shutdown}, nil

	case config.BackendOTLP:
		b, err := otelbackend.NewOTLP(ctx, cfg.Endpoint, opts)
		if err != nil {
			return nil, derrors.NewBackendError(cfg.Backend, "failed to create backend", err)
		}
		log.Debug().Str("endpoint", cfg.Endpoint).Msg("OTLP exporter configured")
		return &backendSet{name: cfg.Backend, backend: b, close: b.Shutdown}, nil

	case config.BackendRuntimeTrace:
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, derrors.NewBackendError(cfg.Backend, "failed to create experiment directory", err)
		}
		path := filepath.Join(dir, RuntimeTraceFile)
		f, err := os.Create(path)
		if err != nil {
			return nil, derrors.NewBackendError(cfg.Backend, "failed to create trace file", err)
		}
		b := rtrace.New()
		if err := b.Start(f); err != nil {
			_ = f.Close()
			return nil, derrors.NewBackendError(cfg.Backend, "failed to start execution trace", err)
		}
		return &backendSet{
			name:     cfg.Backend,
			backend:  b,
			artifact: path,
			close: func(context.Context) error {
				b.Stop()
				return f.Close()
			},
		}, nil

	default:
		return nil, derrors.NewBackendError(cfg.Backend, "unknown backend", nil)
	}
}
