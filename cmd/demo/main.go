// Command demo wires the error tracker (internal/tracker) into a small
// standalone delivery loop: a Redis-list stand-in bus, a Postgres-backed
// dead-letter store, an admin API, and otel/prometheus instrumentation.
// This is the "surrounding publish/subscribe integration test" spec §1
// calls illustrative-only — the tracker package itself never imports
// Redis, gin, or pgx; this program is where those collaborators meet it.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/geocoder89/errortracker/internal/adminapi"
	"github.com/geocoder89/errortracker/internal/config"
	"github.com/geocoder89/errortracker/internal/db"
	"github.com/geocoder89/errortracker/internal/deadletter"
	"github.com/geocoder89/errortracker/internal/demobus"
	"github.com/geocoder89/errortracker/internal/observability"
	"github.com/geocoder89/errortracker/internal/scheduler"
	"github.com/geocoder89/errortracker/internal/tracker"
	"github.com/geocoder89/errortracker/internal/trackerclock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(context.Background(), "errortracker-demo", "")
	if err != nil {
		log.Fatalf("otel init failed: %v", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	logger := slog.New(observability.NewTraceHandler(observability.NewLogger(cfg.Env).Handler()))
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	metrics := observability.NewTrackerMetrics()

	pool, err := db.NewPool(cfg.DBURL, cfg.DBMaxConns)
	if err != nil {
		slog.Default().ErrorContext(ctx, "db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	dlStore := deadletter.NewStore(pool, prom)

	errTracker, err := tracker.New(
		tracker.Config{
			MaxDeliveryAttempts: cfg.MaxDeliveryAttempts,
			ReclaimIdleAfter:    cfg.ReclaimIdleAfter,
			CleanupInterval:     cfg.CleanupInterval,
			CleanupTaskName:     cfg.CleanupTaskName,
		},
		trackerclock.NewSystem(),
		observability.NewTrackerLogger(logger),
		scheduler.NewFactory(logger),
	)
	if err != nil {
		slog.Default().ErrorContext(ctx, "tracker construction failed", "err", err)
		os.Exit(1)
	}
	defer errTracker.Dispose()

	queue := demobus.New(demobus.Config{Addr: cfg.RedisAddr})
	defer queue.Close()

	router := adminapi.Router(reg, prom, errTracker, dlStore)
	srv := &http.Server{Addr: cfg.HealthAddr, Handler: router}
	go func() {
		slog.Default().InfoContext(ctx, "demo.admin_api_start", "addr", cfg.HealthAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Default().ErrorContext(ctx, "demo.admin_api_error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	loop := &demobus.Loop{
		Queue:      queue,
		Tracker:    errTracker,
		DeadLetter: dlStore,
		Metrics:    metrics,
		Prom:       prom,
		Logger:     logger,
	}

	seedDemoDeliveries(ctx, queue, logger)

	go logMetricsLoop(ctx, errTracker, metrics, prom, logger, 10*time.Second)

	slog.Default().InfoContext(ctx, "demo.start")

	for {
		select {
		case <-ctx.Done():
			slog.Default().InfoContext(context.Background(), "demo.shutdown")
			return
		default:
		}

		delivered, err := loop.RunOnce(ctx, 2*time.Second)
		if err != nil {
			slog.Default().ErrorContext(ctx, "demo.loop_error", "err", err)
			time.Sleep(time.Second)
			continue
		}
		if !delivered {
			continue
		}
	}
}

// logMetricsLoop periodically logs the in-memory TrackerMetrics snapshot
// and mirrors the registry's size/eviction counters onto the Prometheus
// gauge/counter so /metrics stays current between sweeps. Built the way
// the teacher's Worker.logMetricsLoop is built: a ticker driven by the
// process lifetime context, logging on every tick until cancellation.
func logMetricsLoop(ctx context.Context, errTracker *tracker.ErrorTracker, metrics *observability.TrackerMetrics, prom *observability.Prom, logger *slog.Logger, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	var lastEvicted uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			snap := metrics.Snapshot()
			logger.InfoContext(ctx, "demo.tracker_metrics",
				"registered", snap.Registered,
				"registered_final", snap.RegisteredFinal,
				"dead_lettered", snap.DeadLettered,
				"registry_size", errTracker.Size(),
			)

			prom.RegistrySize.Set(float64(errTracker.Size()))

			evicted := errTracker.EvictedTotal()
			if delta := evicted - lastEvicted; delta > 0 {
				prom.CleanupEvictedTotal.Add(float64(delta))
				metrics.IncEvicted(delta)
			}
			lastEvicted = evicted
		}
	}
}

// seedDemoDeliveries pushes a handful of simulated messages so the loop
// has something to chew on without a separate producer process.
func seedDemoDeliveries(ctx context.Context, q *demobus.Queue, logger *slog.Logger) {
	seeds := []demobus.Delivery{
		{MessageID: uuid.NewString(), Payload: "always-succeeds", FailUntilAttempt: 0},
		{MessageID: uuid.NewString(), Payload: "succeeds-on-third-try", FailUntilAttempt: 3},
		{MessageID: uuid.NewString(), Payload: "never-succeeds", FailUntilAttempt: 1 << 30},
	}
	for _, d := range seeds {
		if err := q.Push(ctx, d); err != nil {
			logger.ErrorContext(ctx, "demo.seed_failed", "message_id", d.MessageID, "err", err)
		}
	}
}
