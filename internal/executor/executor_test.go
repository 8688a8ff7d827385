package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"terrainav/internal/camera"
	"terrainav/internal/geodesy"
	"terrainav/internal/mission"
)

func smallMission(t *testing.T) *mission.Mission {
	t.Helper()
	box, err := mission.NewBoundingBox(
		geodesy.LatLon{Lat: 35.105, Lon: -89.905},
		geodesy.LatLon{Lat: 35.10, Lon: -89.90},
	)
	if err != nil {
		t.Fatalf("NewBoundingBox: %v", err)
	}
	cam := camera.Spec{DiagonalFOVDegrees: 78.8, AspectW: 4, AspectH: 3}
	m, err := mission.Plan(box, cam, mission.FlightParams{AltitudeAGLMeters: 120, OverlapFraction: 0.25})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(m.Points) < 4 {
		t.Fatalf("test mission too small: %d points", len(m.Points))
	}
	return m
}

// recordingFetcher counts attempts per point and fails on demand.
type recordingFetcher struct {
	mu       sync.Mutex
	attempts map[int]int
	failFor  func(p mission.CapturePoint, attempt int) error
	block    chan struct{}
}

func (f *recordingFetcher) FetchPoint(_ context.Context, p mission.CapturePoint) error {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	if f.attempts == nil {
		f.attempts = make(map[int]int)
	}
	f.attempts[p.SequenceIndex]++
	attempt := f.attempts[p.SequenceIndex]
	f.mu.Unlock()

	if f.failFor != nil {
		return f.failFor(p, attempt)
	}
	return nil
}

func fastOptions() Options {
	return Options{Workers: 4, MaxAttempts: 3, RetryDelay: time.Millisecond}
}

func TestRun_AllSucceed(t *testing.T) {
	m := smallMission(t)
	fetcher := &recordingFetcher{}

	report, err := Run(context.Background(), m, fetcher, fastOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Succeeded != len(m.Points) || report.Failed != 0 || report.Skipped != 0 {
		t.Errorf("report %+v, want %d succeeded", report, len(m.Points))
	}
	if len(fetcher.attempts) != len(m.Points) {
		t.Errorf("fetched %d points, want %d", len(fetcher.attempts), len(m.Points))
	}
}

func TestRun_TransientFailureRetried(t *testing.T) {
	m := smallMission(t)
	fetcher := &recordingFetcher{
		failFor: func(p mission.CapturePoint, attempt int) error {
			if p.SequenceIndex == 0 && attempt < 3 {
				return errors.New("transient")
			}
			return nil
		},
	}

	report, err := Run(context.Background(), m, fetcher, fastOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Failed != 0 || report.Succeeded != len(m.Points) {
		t.Errorf("report %+v, want all succeeded after retries", report)
	}
	if got := fetcher.attempts[0]; got != 3 {
		t.Errorf("point 0 attempted %d times, want 3", got)
	}
}

func TestRun_PermanentFailureIsolated(t *testing.T) {
	m := smallMission(t)
	fetcher := &recordingFetcher{
		failFor: func(p mission.CapturePoint, attempt int) error {
			if p.SequenceIndex == 1 {
				return fmt.Errorf("tile endpoint down")
			}
			return nil
		},
	}

	report, err := Run(context.Background(), m, fetcher, fastOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Failed != 1 {
		t.Errorf("failed = %d, want 1", report.Failed)
	}
	if report.Succeeded != len(m.Points)-1 {
		t.Errorf("succeeded = %d, want %d", report.Succeeded, len(m.Points)-1)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one entry", report.Errors)
	}
	if got := fetcher.attempts[1]; got != 3 {
		t.Errorf("failing point attempted %d times, want full retry budget of 3", got)
	}
}

func TestRun_ResumeSkipsCompleted(t *testing.T) {
	m := smallMission(t)

	completed := map[[2]int]bool{
		{m.Points[0].Col, m.Points[0].Row}: true,
		{m.Points[1].Col, m.Points[1].Row}: true,
	}

	fetcher := &recordingFetcher{}
	opts := fastOptions()
	opts.Completed = completed

	report, err := Run(context.Background(), m, fetcher, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", report.Skipped)
	}
	if report.Succeeded != len(m.Points)-2 {
		t.Errorf("succeeded = %d, want %d", report.Succeeded, len(m.Points)-2)
	}
	for seq := range fetcher.attempts {
		cell := [2]int{m.Points[seq].Col, m.Points[seq].Row}
		if completed[cell] {
			t.Errorf("completed point %d was fetched again", seq)
		}
	}
}

func TestRun_ProgressReachesTotal(t *testing.T) {
	m := smallMission(t)

	var mu sync.Mutex
	var seen []int
	opts := fastOptions()
	opts.OnProgress = func(done, total int) {
		mu.Lock()
		seen = append(seen, done)
		mu.Unlock()
		if total != len(m.Points) {
			t.Errorf("total = %d, want %d", total, len(m.Points))
		}
	}

	if _, err := Run(context.Background(), m, &recordingFetcher{}, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(seen) != len(m.Points) {
		t.Fatalf("progress fired %d times, want %d", len(seen), len(m.Points))
	}
	max := 0
	for _, d := range seen {
		if d > max {
			max = d
		}
	}
	if max != len(m.Points) {
		t.Errorf("final progress %d, want %d", max, len(m.Points))
	}
}

func TestRun_CancelStopsScheduling(t *testing.T) {
	m := smallMission(t)

	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	fetcher := &recordingFetcher{block: block}

	opts := Options{Workers: 1, MaxAttempts: 1, RetryDelay: time.Millisecond}

	done := make(chan struct{})
	var runErr error
	go func() {
		_, runErr = Run(ctx, m, fetcher, opts)
		close(done)
	}()

	// Let the single worker start, then cancel while it is blocked.
	time.Sleep(10 * time.Millisecond)
	cancel()
	close(block)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if runErr == nil {
		t.Fatal("expected context error from cancelled run")
	}
}
