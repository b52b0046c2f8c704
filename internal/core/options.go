package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f()
}

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder observes the outcome and latency of registry operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// PersistFailureRecorder is an optional extension of MetricsRecorder counting
// snapshot writes that did not reach the backend.
type PersistFailureRecorder interface {
	PersistFailed(driver string)
}

// Tracer starts a span per registry operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended with the operation's error, nil on success.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// IDGenerator produces candidate room identifiers.
type IDGenerator func() string

// NewRoomID returns the first eight hex characters of a random UUID, uppercased.
func NewRoomID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// DefaultPersistTimeout bounds a single snapshot write.
const DefaultPersistTimeout = 10 * time.Second

type registryOptions struct {
	clock          Clock
	logger         Logger
	metrics        MetricsRecorder
	tracer         Tracer
	newID          IDGenerator
	persistTimeout time.Duration
}

// Option configures a Registry.
type Option func(*registryOptions)

func defaultOptions() registryOptions {
	return registryOptions{
		clock:          ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:         noopLogger{},
		metrics:        noopMetrics{},
		tracer:         noopTracer{},
		newID:          NewRoomID,
		persistTimeout: DefaultPersistTimeout,
	}
}

// WithClock overrides the clock used for creation timestamps.
func WithClock(clock Clock) Option {
	return func(o *registryOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger Logger) Option {
	return func(o *registryOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *registryOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the operation tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *registryOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithIDGenerator replaces the room identifier source.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *registryOptions) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// WithPersistTimeout bounds each backend Save. Zero or negative keeps the default.
func WithPersistTimeout(d time.Duration) Option {
	return func(o *registryOptions) {
		if d > 0 {
			o.persistTimeout = d
		}
	}
}
