// Package otelbackend records regions as OpenTelemetry spans.
//
// Each Enter starts a span whose parent is the innermost open span of the
// backend, so nesting follows the enter/exit order of the instrumented
// program. Parameters become attributes of the innermost open span.
package otelbackend

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/NikitaCOEUR/regiontrace/pkg/backend"
)

const (
	instrumentationName = "github.com/NikitaCOEUR/regiontrace"

	AttrGroup         = "region.group"
	AttrKind          = "region.kind"
	AttrFile          = "code.filepath"
	AttrLine          = "code.lineno"
	AttrRewindSuccess = "rewind.success"
)

// Options configures a Backend.
type Options struct {
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string
	// Exporter receives finished spans. Optional when SpanProcessor is set.
	Exporter sdktrace.SpanExporter
	// SpanProcessor is registered in addition to the exporter.
	SpanProcessor sdktrace.SpanProcessor
	// Synchronous exports every span as it ends instead of batching.
	Synchronous bool
}

type regionMeta struct {
	name  string
	kind  backend.RegionKind
	group string
	file  string
	line  uint64
}

type openSpan struct {
	handle backend.RegionHandle
	ctx    context.Context
	span   trace.Span
}

// Backend implements backend.Backend on top of an OpenTelemetry tracer
// provider. It keeps a single span stack, so one Backend should serve one
// logical thread of instrumented execution.
type Backend struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer

	mu        sync.Mutex
	regions   []regionMeta
	stack     []openSpan
	slots     uint64
	recording bool
}

// New creates a Backend exporting through opts.Exporter.
func New(opts Options) (*Backend, error) {
	if opts.Exporter == nil && opts.SpanProcessor == nil {
		return nil, fmt.Errorf("otelbackend: an exporter or span processor is required")
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "regiontrace"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", opts.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providerOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if opts.Exporter != nil {
		if opts.Synchronous {
			providerOpts = append(providerOpts, sdktrace.WithSyncer(opts.Exporter))
		} else {
			providerOpts = append(providerOpts, sdktrace.WithBatcher(opts.Exporter))
		}
	}
	if opts.SpanProcessor != nil {
		providerOpts = append(providerOpts, sdktrace.WithSpanProcessor(opts.SpanProcessor))
	}

	tp := sdktrace.NewTracerProvider(providerOpts...)
	return &Backend{
		provider:  tp,
		tracer:    tp.Tracer(instrumentationName),
		recording: true,
	}, nil
}

// NewStdout creates a Backend writing spans as JSON to w.
func NewStdout(w io.Writer, opts Options) (*Backend, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}
	opts.Exporter = exporter
	opts.Synchronous = true
	return New(opts)
}

// NewOTLP creates a Backend exporting to an OTLP gRPC collector at endpoint.
func NewOTLP(ctx context.Context, endpoint string, opts Options) (*Backend, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}
	opts.Exporter = exporter
	return New(opts)
}

// Shutdown ends every open span and flushes the exporter.
func (b *Backend) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	for i := len(b.stack) - 1; i >= 0; i-- {
		b.stack[i].span.End()
	}
	b.stack = nil
	b.mu.Unlock()

	return b.provider.Shutdown(ctx)
}

// OpenSpans returns the depth of the span stack.
func (b *Backend) OpenSpans() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.stack)
}

func (b *Backend) CreateRegion(name string, kind backend.RegionKind, file string, line uint64) backend.RegionHandle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.regions = append(b.regions, regionMeta{name: name, kind: kind, file: file, line: line})
	return backend.RegionHandle(len(b.regions))
}

func (b *Backend) SetGroup(h backend.RegionHandle, group string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m := b.meta(h); m != nil {
		m.group = group
	}
}

func (b *Backend) Enter(h backend.RegionHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.start(h)
}

func (b *Backend) End(h backend.RegionHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.pop(h); ok {
		s.End()
	}
}

func (b *Backend) CreateRewindRegion(name, file string, line uint64) backend.RegionHandle {
	return b.CreateRegion(name, backend.KindRewind, file, line)
}

func (b *Backend) RewindEnter(h backend.RegionHandle) {
	b.Enter(h)
}

func (b *Backend) RewindEnd(h backend.RegionHandle, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.pop(h)
	if !ok {
		return
	}
	s.SetAttributes(attribute.Bool(AttrRewindSuccess, success))
	if !success {
		s.AddEvent("rewind")
	}
	s.End()
}

func (b *Backend) RecordParameterInt(slot *backend.ParameterHandle, name string, value int64) {
	b.parameter(slot, attribute.Int64(name, value))
}

func (b *Backend) RecordParameterUint(slot *backend.ParameterHandle, name string, value uint64) {
	// OpenTelemetry has no unsigned attribute type
	if value > math.MaxInt64 {
		b.parameter(slot, attribute.String(name, strconv.FormatUint(value, 10)))
		return
	}
	b.parameter(slot, attribute.Int64(name, int64(value)))
}

func (b *Backend) RecordParameterString(slot *backend.ParameterHandle, name, value string) {
	b.parameter(slot, attribute.String(name, value))
}

func (b *Backend) EnableRecording() {
	b.mu.Lock()
	b.recording = true
	b.mu.Unlock()
}

func (b *Backend) DisableRecording() {
	b.mu.Lock()
	b.recording = false
	b.mu.Unlock()
}

func (b *Backend) meta(h backend.RegionHandle) *regionMeta {
	if !h.Valid() || int(h) > len(b.regions) {
		return nil
	}
	return &b.regions[h-1]
}

// start must be called with b.mu held.
func (b *Backend) start(h backend.RegionHandle) {
	m := b.meta(h)
	if m == nil || !b.recording {
		return
	}

	parent := context.Background()
	if n := len(b.stack); n > 0 {
		parent = b.stack[n-1].ctx
	}

	ctx, span := b.tracer.Start(parent, m.name, trace.WithAttributes(
		attribute.String(AttrGroup, m.group),
		attribute.String(AttrKind, m.kind.String()),
		attribute.String(AttrFile, m.file),
		attribute.Int64(AttrLine, int64(m.line)),
	))
	b.stack = append(b.stack, openSpan{handle: h, ctx: ctx, span: span})
}

// pop removes the innermost open span of h. It must be called with b.mu
// held. Spans opened before DisableRecording are still popped so they do
// not parent the spans that follow.
func (b *Backend) pop(h backend.RegionHandle) (trace.Span, bool) {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if b.stack[i].handle == h {
			s := b.stack[i].span
			b.stack = append(b.stack[:i], b.stack[i+1:]...)
			return s, true
		}
	}
	return nil, false
}

func (b *Backend) parameter(slot *backend.ParameterHandle, kv attribute.KeyValue) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if *slot == backend.UninitializedParameter {
		b.slots++
		*slot = backend.ParameterHandle(b.slots)
	}
	if !b.recording {
		return
	}

	if n := len(b.stack); n > 0 {
		b.stack[n-1].span.SetAttributes(kv)
		return
	}
	_, span := b.tracer.Start(context.Background(), "parameter:"+string(kv.Key), trace.WithAttributes(kv))
	span.End()
}
