package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/errortracker/internal/trackerclock"
)

// testLogger records Warn calls for assertions; safe for concurrent use.
type testLogger struct {
	mu    sync.Mutex
	calls int
}

func (l *testLogger) Warn(ctx context.Context, err error, template string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
}

func (l *testLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// manualFactory records each job it is given and hands back a manualTask
// that never ticks on its own; a job only runs when the test calls
// runSweep directly. This keeps most tests free of any real background
// timing.
type manualFactory struct {
	jobs map[string]func(context.Context) error
}

func newManualFactory() *manualFactory {
	return &manualFactory{jobs: make(map[string]func(context.Context) error)}
}

func (f *manualFactory) Create(name string, job func(ctx context.Context) error, interval time.Duration) Task {
	f.jobs[name] = job
	return &manualTask{}
}

func (f *manualFactory) runSweep(t *testing.T, name string) {
	t.Helper()
	job, ok := f.jobs[name]
	if !ok {
		t.Fatalf("no job registered for %q", name)
	}
	if err := job(context.Background()); err != nil {
		t.Fatalf("sweep returned error: %v", err)
	}
}

type manualTask struct{}

func (*manualTask) Start()   {}
func (*manualTask) Dispose() {}

func newTestTracker(t *testing.T, maxAttempts int) (*ErrorTracker, *manualFactory, *testLogger) {
	t.Helper()
	factory := newManualFactory()
	logger := &testLogger{}
	tr, err := New(Config{MaxDeliveryAttempts: maxAttempts}, trackerclock.NewSystem(), logger, factory)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(tr.Dispose)
	return tr, factory, logger
}

func TestBelowThreshold(t *testing.T) {
	tr, _, _ := newTestTracker(t, 3)
	ctx := context.Background()

	if err := tr.RegisterError(ctx, "m1", errors.New("boom1"), false); err != nil {
		t.Fatalf("register 1: %v", err)
	}
	if err := tr.RegisterError(ctx, "m1", errors.New("boom2"), false); err != nil {
		t.Fatalf("register 2: %v", err)
	}

	if tr.HasFailedTooManyTimes("m1") {
		t.Fatalf("expected false below threshold")
	}
	short, ok := tr.ShortDescription("m1")
	if !ok || short != "2 unhandled exceptions" {
		t.Fatalf("short description = %q, %v", short, ok)
	}
	if got := len(tr.Exceptions("m1")); got != 2 {
		t.Fatalf("exceptions length = %d, want 2", got)
	}
}

func TestAtThreshold(t *testing.T) {
	tr, _, _ := newTestTracker(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := tr.RegisterError(ctx, "m2", errors.New("boom"), false); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}

	if !tr.HasFailedTooManyTimes("m2") {
		t.Fatalf("expected true at threshold")
	}
}

func TestEarlyFinal(t *testing.T) {
	tr, _, _ := newTestTracker(t, 3)
	ctx := context.Background()

	if err := tr.RegisterError(ctx, "m3", errors.New("fatal"), true); err != nil {
		t.Fatalf("register: %v", err)
	}

	if !tr.HasFailedTooManyTimes("m3") {
		t.Fatalf("expected true for final entry")
	}
	if got := len(tr.Exceptions("m3")); got != 1 {
		t.Fatalf("exceptions length = %d, want 1", got)
	}
}

func TestStickyFinal(t *testing.T) {
	tr, _, _ := newTestTracker(t, 3)
	ctx := context.Background()

	e1 := errors.New("e1")
	e2 := errors.New("e2")

	if err := tr.RegisterError(ctx, "m4", e1, true); err != nil {
		t.Fatalf("register e1: %v", err)
	}
	if err := tr.RegisterError(ctx, "m4", e2, false); err != nil {
		t.Fatalf("register e2: %v", err)
	}

	exceptions := tr.Exceptions("m4")
	if len(exceptions) != 1 {
		t.Fatalf("exceptions length = %d, want 1", len(exceptions))
	}
	if !errors.Is(exceptions[0], e1) {
		t.Fatalf("sole exception = %v, want %v", exceptions[0], e1)
	}
}

func TestCleanupAfterCleanUp(t *testing.T) {
	tr, _, _ := newTestTracker(t, 3)
	ctx := context.Background()

	if err := tr.RegisterError(ctx, "m5", errors.New("boom"), false); err != nil {
		t.Fatalf("register: %v", err)
	}
	tr.CleanUp("m5")

	if tr.HasFailedTooManyTimes("m5") {
		t.Fatalf("expected false after clean_up")
	}
	if _, ok := tr.ShortDescription("m5"); ok {
		t.Fatalf("expected absent short description after clean_up")
	}
}

func TestCleanUpIdempotent(t *testing.T) {
	tr, _, _ := newTestTracker(t, 3)
	ctx := context.Background()

	if err := tr.RegisterError(ctx, "m5b", errors.New("boom"), false); err != nil {
		t.Fatalf("register: %v", err)
	}
	tr.CleanUp("m5b")
	tr.CleanUp("m5b") // must not panic or error

	if _, ok := tr.ShortDescription("m5b"); ok {
		t.Fatalf("expected absent after repeated clean_up")
	}
}

func TestIdleReclamation(t *testing.T) {
	factory := newManualFactory()
	logger := &testLogger{}
	fakeClock := trackerclock.NewFake(time.Unix(0, 0))

	tr, err := New(Config{
		MaxDeliveryAttempts: 3,
		ReclaimIdleAfter:    1 * time.Millisecond,
		CleanupInterval:     10 * time.Millisecond,
	}, fakeClock, logger, factory)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer tr.Dispose()

	ctx := context.Background()
	if err := tr.RegisterError(ctx, "m6", errors.New("boom"), false); err != nil {
		t.Fatalf("register: %v", err)
	}

	fakeClock.Advance(50 * time.Millisecond)
	factory.runSweep(t, DefaultCleanupTaskName)

	if tr.HasFailedTooManyTimes("m6") {
		t.Fatalf("expected entry evicted")
	}
	if _, ok := tr.ShortDescription("m6"); ok {
		t.Fatalf("expected short description absent after eviction")
	}
	if _, ok := tr.FullDescription("m6"); ok {
		t.Fatalf("expected full description absent after eviction")
	}
	if got := tr.EvictedTotal(); got != 1 {
		t.Fatalf("EvictedTotal() = %d, want 1", got)
	}
}

func TestRegisterErrorInvalidArguments(t *testing.T) {
	tr, _, _ := newTestTracker(t, 1)
	ctx := context.Background()

	if err := tr.RegisterError(ctx, "", errors.New("x"), false); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty id, got %v", err)
	}
	if err := tr.RegisterError(ctx, "m", nil, false); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil exception, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	factory := newManualFactory()
	logger := &testLogger{}
	clock := trackerclock.NewSystem()

	if _, err := New(Config{MaxDeliveryAttempts: 0}, clock, logger, factory); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for zero max attempts, got %v", err)
	}
	if _, err := New(Config{MaxDeliveryAttempts: 1}, nil, logger, factory); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil clock, got %v", err)
	}
	if _, err := New(Config{MaxDeliveryAttempts: 1}, clock, nil, factory); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil logger, got %v", err)
	}
	if _, err := New(Config{MaxDeliveryAttempts: 1}, clock, logger, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil task factory, got %v", err)
	}
}

func TestHasFailedTooManyTimesAbsentEntry(t *testing.T) {
	tr, _, _ := newTestTracker(t, 3)
	if tr.HasFailedTooManyTimes("nope") {
		t.Fatalf("expected false for absent entry")
	}
}

func TestSnapshotIndependence(t *testing.T) {
	tr, _, _ := newTestTracker(t, 10)
	ctx := context.Background()

	if err := tr.RegisterError(ctx, "m7", errors.New("first"), false); err != nil {
		t.Fatalf("register: %v", err)
	}

	snapshot := tr.Exceptions("m7")
	if len(snapshot) != 1 {
		t.Fatalf("snapshot length = %d, want 1", len(snapshot))
	}

	if err := tr.RegisterError(ctx, "m7", errors.New("second"), false); err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(snapshot) != 1 {
		t.Fatalf("snapshot mutated by later register_error: length = %d", len(snapshot))
	}
}

func TestConcurrentRegisterError(t *testing.T) {
	tr, _, _ := newTestTracker(t, 1<<20) // high enough nothing trips "too many"
	ctx := context.Background()

	const goroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if err := tr.RegisterError(ctx, "shared", errors.New("boom"), false); err != nil {
					t.Errorf("register_error: %v", err)
				}
				// Queries must never observe a malformed entry mid-flight.
				_ = tr.HasFailedTooManyTimes("shared")
				if _, ok := tr.ShortDescription("shared"); !ok {
					t.Errorf("short_description unexpectedly absent")
				}
			}
		}(g)
	}
	wg.Wait()

	exceptions := tr.Exceptions("shared")
	if len(exceptions) != goroutines*perGoroutine {
		t.Fatalf("final count = %d, want %d", len(exceptions), goroutines*perGoroutine)
	}
}

func TestDisposeIdempotent(t *testing.T) {
	tr, _, _ := newTestTracker(t, 1)
	tr.Dispose()
	tr.Dispose() // must not panic

	// Operations remain valid after Dispose per spec §4.E.
	if err := tr.RegisterError(context.Background(), "after-dispose", errors.New("x"), false); err != nil {
		t.Fatalf("register after dispose: %v", err)
	}
	if !tr.HasFailedTooManyTimes("after-dispose") {
		t.Fatalf("expected entry to exist after dispose with max_delivery_attempts=1")
	}
}

func TestLogCalledOnRegister(t *testing.T) {
	tr, _, logger := newTestTracker(t, 3)
	ctx := context.Background()

	if err := tr.RegisterError(ctx, "m8", errors.New("boom"), false); err != nil {
		t.Fatalf("register: %v", err)
	}
	if logger.count() != 1 {
		t.Fatalf("expected 1 log call, got %d", logger.count())
	}

	// Sticky-final open question: spec keeps the log unconditional, so a
	// register_error observed by an already-final entry still logs.
	if err := tr.RegisterError(ctx, "m8", errors.New("fatal"), true); err != nil {
		t.Fatalf("register final: %v", err)
	}
	if err := tr.RegisterError(ctx, "m8", errors.New("ignored"), false); err != nil {
		t.Fatalf("register post-final: %v", err)
	}
	if logger.count() != 3 {
		t.Fatalf("expected 3 log calls (unconditional per entry), got %d", logger.count())
	}
}
