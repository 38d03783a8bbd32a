package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"humans/internal/infra/persistence/memory"
	"humans/pkg/domain"
)

type (
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
)

// Clock provides the current time for record stamping.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now returns the function result in UTC, or the system time when fn is nil.
func (fn ClockFunc) Now() time.Time {
	if fn == nil {
		return time.Now().UTC()
	}
	return fn().UTC()
}

// Logger is the structured logging surface used by the service.
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

// MetricsRecorder observes the outcome of every service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan ends an operation span.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

func (noopSpan) End(error) {}

type serviceOptions struct {
	clock     Clock
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	collation language.Tag
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:     ClockFunc(nil),
		logger:    noopLogger{},
		metrics:   noopMetricsRecorder{},
		tracer:    noopTracer{},
		collation: language.Und,
	}
}

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

// WithClock overrides the clock used for created/updated timestamps.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the operation logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the operation tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithCollation sets the locale used to order city autocomplete results.
func WithCollation(tag language.Tag) ServiceOption {
	return func(o *serviceOptions) {
		o.collation = tag
	}
}

// Service exposes the route-interest operations over a persistent store.
type Service struct {
	store     PersistentStore
	clock     Clock
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	collation language.Tag
	newID     func() string
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return &Service{
		store:     store,
		clock:     options.clock,
		logger:    options.logger,
		metrics:   options.metrics,
		tracer:    options.tracer,
		collation: options.collation,
		newID:     uuid.NewString,
	}
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}

// isClientError reports failures caused by the request rather than the system.
func isClientError(err error) bool {
	return domain.IsNotFound(err) || errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrConflict)
}

// run wraps fn with tracing, metrics and logging under the operation name.
func (s *Service) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, operation)
	started := time.Now()
	err := fn(ctx)
	elapsed := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, elapsed)
	switch {
	case err == nil:
		s.logger.Debug("core operation completed", "operation", operation, "duration", elapsed)
	case isClientError(err):
		s.logger.Warn("core operation rejected", "operation", operation, "error", err)
	default:
		s.logger.Error("core operation failed", "operation", operation, "error", err)
	}
	return err
}
