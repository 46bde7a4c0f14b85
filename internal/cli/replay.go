package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/NikitaCOEUR/regiontrace/internal/config"
	"github.com/NikitaCOEUR/regiontrace/internal/derrors"
	"github.com/NikitaCOEUR/regiontrace/internal/logger"
	"github.com/NikitaCOEUR/regiontrace/internal/profile"
	"github.com/NikitaCOEUR/regiontrace/internal/replay"
	"github.com/NikitaCOEUR/regiontrace/internal/tracefile"
	"github.com/NikitaCOEUR/regiontrace/pkg/region"
	"github.com/NikitaCOEUR/regiontrace/pkg/version"
)

// ReplayParams contains parameters for the Replay command
type ReplayParams struct {
	EventsPath string
	Config     *config.Config
	Logger     *logger.Logger
	// Stdout receives the summary and, for otel-stdout, the exported spans.
	Stdout io.Writer
	// Warnings receives the one-time orphan exit warning.
	Warnings io.Writer
	Now      func() time.Time
}

// ReplaySummary describes a finished replay
type ReplaySummary struct {
	Session  string
	Backend  string
	Artifact *tracefile.Info
	Result   replay.Result
	Stats    region.Stats
	Profile  *profile.Profile
}

func (p *ReplayParams) defaults() {
	if p.Config == nil {
		p.Config = config.Default()
	}
	if p.Logger == nil {
		p.Logger = logger.New(p.Config.LogLevel, nil)
	}
	if p.Stdout == nil {
		p.Stdout = os.Stdout
	}
	if p.Warnings == nil {
		p.Warnings = os.Stderr
	}
	if p.Now == nil {
		p.Now = time.Now
	}
}

// Replay drives a fresh session with the events of EventsPath and stores
// what the configured backend produced.
func Replay(ctx context.Context, p ReplayParams) (*ReplaySummary, error) {
	p.defaults()
	cfg, log := p.Config, p.Logger

	if err := checkConfig(cfg); err != nil {
		return nil, err
	}

	f, err := os.Open(p.EventsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open events: %w", err)
	}
	defer func() { _ = f.Close() }()

	now := p.Now()
	set, err := openBackend(ctx, cfg, tracefile.ExperimentDir(cfg.OutputDir, now), p.Stdout, log)
	if err != nil {
		return nil, err
	}

	var hook region.LogFunc
	if log.Enabled("debug") {
		hook = log.RegionHook()
	}
	opts, err := cfg.RegionOptions(p.Warnings, hook)
	if err != nil {
		_ = set.close(ctx)
		return nil, err
	}

	session := region.NewSession(set.backend, opts...)
	log.Debug().
		Str("session", session.ID()).
		Str("backend", set.name).
		Str("events", p.EventsPath).
		Msg("Replay started")

	start := time.Now()
	result, runErr := replay.Run(ctx, f, replay.FormatFromPath(p.EventsPath), session, replay.WithFilter(cfg.Filter()))

	// Flush even when the replay was cancelled
	closeErr := set.close(context.WithoutCancel(ctx))
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			log.Warn().Err(runErr).Int("events", result.Events).Msg("Replay interrupted, no trace written")
		}
		return nil, runErr
	}
	if closeErr != nil {
		return nil, derrors.NewBackendError(set.name, "failed to flush backend", closeErr)
	}

	var ratio float64
	if result.Calls+result.Returns > 0 {
		ratio = float64(result.FastPath) / float64(result.Calls+result.Returns)
	}
	log.Debug().
		Dur("duration", time.Since(start)).
		Int("events", result.Events).
		Int("fast_path", result.FastPath).
		Float("fast_path_ratio", ratio).
		Uint64("orphan_exits", session.Stats().OrphanExits).
		Msg("Replay finished")

	summary := &ReplaySummary{
		Session: session.ID(),
		Backend: set.name,
		Result:  result,
		Stats:   session.Stats(),
	}

	if set.recorder != nil {
		t := tracefile.FromRecorder(session, set.recorder, set.name, now)
		t.Version = version.Version
		if err := tracefile.Write(set.artifact, t); err != nil {
			return nil, fmt.Errorf("failed to write trace: %w", err)
		}
		log.Info().Str("path", set.artifact).Int("regions", len(t.Regions)).Msg("Trace written")
		summary.Profile = profile.Build(t.Regions, t.Events)
	}

	if set.artifact != "" {
		info, err := tracefile.GetInfo(set.artifact)
		if err != nil {
			return nil, err
		}
		summary.Artifact = info
	}

	printSummary(p.Stdout, summary)
	return summary, nil
}

func printSummary(w io.Writer, s *ReplaySummary) {
	r := s.Result
	_, _ = fmt.Fprintf(w, "Session:      %s\n", s.Session)
	_, _ = fmt.Fprintf(w, "Backend:      %s\n", s.Backend)
	_, _ = fmt.Fprintf(w, "Events:       %d (calls %d, returns %d, fast path %d, ignored %d, retired %d)\n",
		r.Events, r.Calls, r.Returns, r.FastPath, r.Ignored, r.Retired)
	_, _ = fmt.Fprintf(w, "Registry:     %d names, %d identities, %d rewinds, %d parameters\n",
		s.Stats.Names, s.Stats.Identities, s.Stats.Rewinds, s.Stats.Parameters)
	_, _ = fmt.Fprintf(w, "Orphan exits: %d\n", s.Stats.OrphanExits)

	if s.Artifact != nil {
		if s.Profile != nil {
			_, _ = fmt.Fprintf(w, "Trace:        %s (%d regions, %d events, %d bytes)\n",
				s.Artifact.Path, s.Artifact.Regions, s.Artifact.Events, s.Artifact.Size)
		} else {
			_, _ = fmt.Fprintf(w, "Trace:        %s (%d bytes)\n", s.Artifact.Path, s.Artifact.Size)
		}
	}
	if s.Profile != nil && len(s.Profile.Stats) > 0 {
		_, _ = fmt.Fprintln(w, s.Profile.Summary())
	}
}
