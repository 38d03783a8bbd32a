package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"humans/internal/infra/persistence/memory"
	"humans/internal/infra/persistence/sqlite"
	"humans/pkg/domain"
)

func intPtr(v int) *int {
	return &v
}

// fixedClock returns a clock that advances one second per call so creation
// order is observable in CreatedAt.
func fixedClock() ClockFunc {
	var (
		mu   sync.Mutex
		tick int
	)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
}

func newTestService(opts ...ServiceOption) *Service {
	return NewInMemoryService(append([]ServiceOption{WithClock(fixedClock())}, opts...)...)
}

// testBackends lists the stores the service behavior is checked against.
var testBackends = []struct {
	name string
	open func(t *testing.T) PersistentStore
}{
	{"memory", func(*testing.T) PersistentStore { return memory.NewStore() }},
	{"sqlite", func(t *testing.T) PersistentStore {
		t.Helper()
		store, err := sqlite.NewStore(sqlite.MemoryPath)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	}},
}

// forEachBackend runs fn once per test backend with a fresh service.
func forEachBackend(t *testing.T, fn func(t *testing.T, svc *Service)) {
	t.Helper()
	for _, b := range testBackends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, NewService(b.open(t), WithClock(fixedClock())))
		})
	}
}

func mustHuman(t *testing.T, svc *Service, first, last string) domain.Human {
	t.Helper()
	h, err := svc.CreateHuman(context.Background(), domain.Human{FirstName: first, LastName: last})
	if err != nil {
		t.Fatalf("create human %s %s: %v", first, last, err)
	}
	return h
}

func mustRoute(t *testing.T, svc *Service, key domain.RouteKey) domain.RouteInterest {
	t.Helper()
	route, _, err := svc.ResolveRouteInterest(context.Background(), key)
	if err != nil {
		t.Fatalf("resolve route %+v: %v", key, err)
	}
	return route
}

func mustExpression(t *testing.T, svc *Service, input ExpressionInput) domain.RouteInterestExpression {
	t.Helper()
	e, err := svc.CreateExpression(context.Background(), input)
	if err != nil {
		t.Fatalf("create expression: %v", err)
	}
	return e
}

func londonParis() domain.RouteKey {
	return domain.RouteKey{OriginCity: "London", OriginCountry: "UK", DestinationCity: "Paris", DestinationCountry: "France"}
}

// racingStore simulates a concurrent writer that inserts the same route key
// between the lookup and the insert of a resolve-or-create.
type racingStore struct {
	*memory.Store
	mu    sync.Mutex
	races int
}

func (s *racingStore) RunInTransaction(ctx context.Context, fn func(Transaction) error) error {
	s.mu.Lock()
	race := s.races > 0
	if race {
		s.races--
	}
	s.mu.Unlock()
	return s.Store.RunInTransaction(ctx, func(tx Transaction) error {
		if race {
			return fn(racingTx{Transaction: tx})
		}
		return fn(tx)
	})
}

type racingTx struct {
	Transaction
}

func (racingTx) FindRouteInterestByKey(context.Context, domain.RouteKey) (domain.RouteInterest, bool, error) {
	return domain.RouteInterest{}, false, nil
}

func (racingTx) CreateRouteInterest(context.Context, domain.RouteInterest) (domain.RouteInterest, error) {
	return domain.RouteInterest{}, fmt.Errorf("insert route interest: %w", domain.ErrDuplicateRoute)
}

// countingStore records how often the store is entered.
type countingStore struct {
	PersistentStore
	mu      sync.Mutex
	entered int
}

func (s *countingStore) View(ctx context.Context, fn func(TransactionView) error) error {
	s.mu.Lock()
	s.entered++
	s.mu.Unlock()
	return s.PersistentStore.View(ctx, fn)
}

func (s *countingStore) RunInTransaction(ctx context.Context, fn func(Transaction) error) error {
	s.mu.Lock()
	s.entered++
	s.mu.Unlock()
	return s.PersistentStore.RunInTransaction(ctx, fn)
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entered
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	mu      sync.Mutex
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.mu.Lock()
	c.started = append(c.started, op)
	c.mu.Unlock()
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}
