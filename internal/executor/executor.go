package executor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"terrainav/internal/dataset"
	"terrainav/internal/metrics"
	"terrainav/internal/mission"
)

// PointFetcher produces and persists the imagery for one capture
// point.
type PointFetcher interface {
	FetchPoint(ctx context.Context, p mission.CapturePoint) error
}

// Options tunes a mission run.
type Options struct {
	// Workers caps concurrent captures. Zero selects the default of 10.
	Workers int

	// MaxAttempts bounds retries per point. Zero selects 3.
	MaxAttempts int

	// RetryDelay separates attempts on the same point. Zero selects 1s.
	RetryDelay time.Duration

	// Completed holds [col, row] cells to skip, typically from
	// dataset.ScanCompleted when resuming.
	Completed map[[2]int]bool

	// OnProgress, when set, is called after every settled point with
	// the number of settled points (succeeded, failed or skipped) and
	// the total.
	OnProgress func(done, total int)
}

const (
	defaultWorkers     = 10
	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
)

// Run executes the capture sequence of a planned mission. Points run
// concurrently under a worker budget; a failing point is retried a few
// times and then recorded, never aborting the rest of the mission.
// Cancellation stops scheduling new points and returns the partial
// report alongside the context error.
func Run(ctx context.Context, m *mission.Mission, fetcher PointFetcher, opts Options) (*dataset.Report, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	total := len(m.Points)

	var (
		succeeded int64
		failed    int64
		skipped   int64
		done      int64

		mu       sync.Mutex
		errsList []string
	)

	settle := func() {
		n := atomic.AddInt64(&done, 1)
		if opts.OnProgress != nil {
			opts.OnProgress(int(n), total)
		}
	}

	sem := semaphore.NewWeighted(int64(workers))
	var schedulingErr error

	for _, p := range m.Points {
		if opts.Completed[[2]int{p.Col, p.Row}] {
			atomic.AddInt64(&skipped, 1)
			metrics.CapturesSkipped.Inc()
			settle()
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			schedulingErr = err
			break
		}

		go func(p mission.CapturePoint) {
			defer sem.Release(1)
			defer settle()

			start := time.Now()
			err := fetchWithRetry(ctx, fetcher, p, maxAttempts, retryDelay)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				metrics.CaptureErrors.Inc()
				log.Printf("[Executor] point %d (row %d, col %d): %v", p.SequenceIndex, p.Row, p.Col, err)

				mu.Lock()
				errsList = append(errsList, fmt.Sprintf("point %d (row %d, col %d): %v",
					p.SequenceIndex, p.Row, p.Col, err))
				mu.Unlock()
				return
			}

			atomic.AddInt64(&succeeded, 1)
			metrics.CapturesCompleted.Inc()
			metrics.CaptureDuration.Observe(time.Since(start).Seconds())
		}(p)
	}

	// Drain the semaphore so every in-flight capture has settled.
	if err := sem.Acquire(context.Background(), int64(workers)); err != nil {
		return nil, err
	}
	sem.Release(int64(workers))

	report := &dataset.Report{
		Succeeded: int(atomic.LoadInt64(&succeeded)),
		Failed:    int(atomic.LoadInt64(&failed)),
		Skipped:   int(atomic.LoadInt64(&skipped)),
		Errors:    errsList,
	}

	if schedulingErr != nil {
		return report, schedulingErr
	}
	return report, nil
}

func fetchWithRetry(ctx context.Context, fetcher PointFetcher, p mission.CapturePoint, maxAttempts int, delay time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fetcher.FetchPoint(ctx, p)
		if lastErr == nil {
			return nil
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}
