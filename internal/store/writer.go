// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
	"github.com/ifauzeee/BipolTracker/internal/models"
)

// Write kinds, used as metric labels.
const (
	KindSample    = "sample"
	KindZoneEvent = "zone_event"
)

// Sink is the subset of the store the writer persists through.
type Sink interface {
	InsertSample(ctx context.Context, s models.EnrichedSample) error
	InsertZoneEvent(ctx context.Context, e models.ZoneEvent) error
}

type writeJob struct {
	kind string
	id   string
	fn   func(ctx context.Context) error
}

// WriterStats counts writer outcomes since start.
type WriterStats struct {
	Written   int64
	Failed    int64
	Rejected  int64
	Dropped   int64
	Abandoned int64
}

// Writer persists samples and zone events off the ingestion path. Enqueue
// never blocks: a full queue drops the write. Each write is retried with a
// doubling delay inside a circuit breaker so a dead store sheds load instead
// of stacking retries.
type Writer struct {
	sink         Sink
	queue        chan writeJob
	workers      int
	maxAttempts  int
	retryDelay   time.Duration
	drainTimeout time.Duration
	cb           *gobreaker.CircuitBreaker[struct{}]

	mu        sync.RWMutex
	closed    bool
	onWritten []func(kind string)

	written   atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	dropped   atomic.Int64
	abandoned atomic.Int64
}

// NewWriter builds a writer. Zero config values fall back to defaults.
func NewWriter(sink Sink, cfg config.WriterConfig) *Writer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	return &Writer{
		sink:         sink,
		queue:        make(chan writeJob, cfg.QueueSize),
		workers:      cfg.Workers,
		maxAttempts:  cfg.MaxAttempts,
		retryDelay:   cfg.RetryDelay,
		drainTimeout: cfg.DrainTimeout,
		cb:           newWriteBreaker("store-writer", cfg.BreakerFailures, cfg.BreakerTimeout),
	}
}

func newWriteBreaker(name string, failures uint32, timeout time.Duration) *gobreaker.CircuitBreaker[struct{}] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})
}

// OnWritten registers fn to run on a worker goroutine after each write that
// reaches the store, before the write is counted in Stats. Register before
// Serve starts.
func (w *Writer) OnWritten(fn func(kind string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onWritten = append(w.onWritten, fn)
}

func (w *Writer) notifyWritten(kind string) {
	w.mu.RLock()
	hooks := w.onWritten
	w.mu.RUnlock()
	for _, fn := range hooks {
		fn(kind)
	}
}

// EnqueueSample queues a sample write. It reports false if the write was
// dropped.
func (w *Writer) EnqueueSample(s models.EnrichedSample) bool {
	return w.enqueue(writeJob{kind: KindSample, id: s.ServerID, fn: func(ctx context.Context) error {
		return w.sink.InsertSample(ctx, s)
	}})
}

// EnqueueZoneEvent queues a zone event write.
func (w *Writer) EnqueueZoneEvent(e models.ZoneEvent) bool {
	return w.enqueue(writeJob{kind: KindZoneEvent, id: e.ID, fn: func(ctx context.Context) error {
		return w.sink.InsertZoneEvent(ctx, e)
	}})
}

func (w *Writer) enqueue(job writeJob) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.drop(job, "writer closed")
		return false
	}
	select {
	case w.queue <- job:
		metrics.StoreWriteQueueDepth.Set(float64(len(w.queue)))
		return true
	default:
		w.drop(job, "write queue full")
		return false
	}
}

func (w *Writer) drop(job writeJob, reason string) {
	w.dropped.Add(1)
	metrics.StoreWriteDropped.WithLabelValues(job.kind).Inc()
	logging.Warn().Str("kind", job.kind).Str("id", job.id).Msg(reason + ", dropping write")
}

// Serve runs the workers until ctx is canceled, then stops accepting writes
// and drains the queue for up to the drain timeout. Whatever is left after
// that is abandoned.
func (w *Writer) Serve(ctx context.Context) error {
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.worker(workCtx)
		}()
	}

	<-ctx.Done()

	w.mu.Lock()
	w.closed = true
	close(w.queue)
	pending := len(w.queue)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(w.drainTimeout)
	defer timer.Stop()

	select {
	case <-done:
		logging.Info().Int("drained", pending).Msg("store writer stopped")
	case <-timer.C:
		cancelWork()
		<-done
		logging.Warn().Int64("abandoned", w.abandoned.Load()).Dur("drain_timeout", w.drainTimeout).Msg("store writer drain timed out")
	}
	return ctx.Err()
}

func (w *Writer) worker(ctx context.Context) {
	for job := range w.queue {
		metrics.StoreWriteQueueDepth.Set(float64(len(w.queue)))
		if ctx.Err() != nil {
			w.abandoned.Add(1)
			metrics.StoreWriteDropped.WithLabelValues(job.kind).Inc()
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Writer) process(ctx context.Context, job writeJob) {
	start := time.Now()
	_, err := w.cb.Execute(func() (struct{}, error) {
		return struct{}{}, w.retryWithBackoff(ctx, job)
	})

	result := "success"
	switch {
	case err == nil:
		w.notifyWritten(job.kind)
		w.written.Add(1)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
		w.rejected.Add(1)
		logging.Debug().Str("kind", job.kind).Str("id", job.id).Msg("store write rejected by open circuit")
	default:
		result = "failure"
		w.failed.Add(1)
		logging.Warn().Err(err).Str("kind", job.kind).Str("id", job.id).Msg("store write failed")
	}
	metrics.RecordStoreWrite(job.kind, result, time.Since(start))
}

// retryWithBackoff runs job up to maxAttempts times, doubling the delay
// between attempts.
func (w *Writer) retryWithBackoff(ctx context.Context, job writeJob) error {
	var lastErr error
	delay := w.retryDelay

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return fmt.Errorf("%s %s: %w (last error: %v)", job.kind, job.id, ctx.Err(), lastErr)
			}
		}

		if lastErr = job.fn(ctx); lastErr == nil {
			return nil
		}
		logging.Debug().Err(lastErr).Int("attempt", attempt).Str("kind", job.kind).Msg("store write attempt failed")
	}
	return fmt.Errorf("%s %s failed after %d attempts: %w", job.kind, job.id, w.maxAttempts, lastErr)
}

// Stats returns outcome counters.
func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Written:   w.written.Load(),
		Failed:    w.failed.Load(),
		Rejected:  w.rejected.Load(),
		Dropped:   w.dropped.Load(),
		Abandoned: w.abandoned.Load(),
	}
}

// Pending returns the number of queued writes.
func (w *Writer) Pending() int {
	return len(w.queue)
}

func (w *Writer) String() string {
	return "store-writer"
}
