package runner_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/torosent/swarmpace/internal/pacer"
	"github.com/torosent/swarmpace/internal/pattern"
	"github.com/torosent/swarmpace/internal/runner"
)

// fakeRequester simulates performing a request with fixed latency.
type fakeRequester struct {
	latency time.Duration
	calls   *int64
}

func (f *fakeRequester) Do(ctx context.Context) error {
	if f.calls != nil {
		atomic.AddInt64(f.calls, 1)
	}
	select {
	case <-time.After(f.latency):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// stubPacer grants immediately and flags overlapping AwaitReady calls.
type stubPacer struct {
	inFlight   atomic.Int32
	overlapped atomic.Bool
	calls      atomic.Int64
}

func (s *stubPacer) AwaitReady(ctx context.Context) (pacer.Result, error) {
	if s.inFlight.Add(1) > 1 {
		s.overlapped.Store(true)
	}
	defer s.inFlight.Add(-1)
	if err := ctx.Err(); err != nil {
		return pacer.Result{}, err
	}
	n := s.calls.Add(1)
	return pacer.Result{TargetRPS: float64(n), BucketLevel: 1}, nil
}

func TestRunnerRespectsTotalRequests(t *testing.T) {
	var calls int64
	res := mustRunner(t, runner.Options{
		Concurrency:   4,
		TotalRequests: 25,
		Requester:     &fakeRequester{latency: time.Millisecond, calls: &calls},
	}).Run(context.Background())
	if res.Total != 25 {
		t.Fatalf("expected total 25, got %d", res.Total)
	}
	if calls != 25 {
		t.Fatalf("expected requester called 25 times, got %d", calls)
	}
}

func TestRunnerHonorsDuration(t *testing.T) {
	var calls int64
	start := time.Now()
	res := mustRunner(t, runner.Options{
		Concurrency: 10,
		Duration:    50 * time.Millisecond,
		Requester:   &fakeRequester{latency: 5 * time.Millisecond, calls: &calls},
	}).Run(context.Background())
	elapsed := time.Since(start)
	if elapsed < 50*time.Millisecond || elapsed > 250*time.Millisecond {
		t.Fatalf("duration enforcement off: %s", elapsed)
	}
	if res.Duration <= 0 {
		t.Fatalf("result duration not recorded")
	}
	if res.Total <= 0 {
		t.Fatalf("expected some requests executed")
	}
}

func TestRateLimiterCapsThroughput(t *testing.T) {
	var calls int64
	rateLimit := 100
	duration := 100 * time.Millisecond
	res := mustRunner(t, runner.Options{
		Concurrency:    20,
		Duration:       duration,
		RatePerSecond:  rateLimit,
		Requester:      &fakeRequester{calls: &calls},
		LimiterFactory: func(rps int) *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), 1) },
	}).Run(context.Background())
	maxExpected := int(float64(rateLimit) * duration.Seconds() * 1.20)
	if int(res.Total) > maxExpected {
		t.Fatalf("rate limiter exceeded: total=%d max=%d", res.Total, maxExpected)
	}
	if calls != res.Total {
		t.Fatalf("calls mismatch: %d vs %d", calls, res.Total)
	}
}

func TestPatternArrivalSerializesPacer(t *testing.T) {
	p := &stubPacer{}
	var admitted, completed atomic.Int64
	res := mustRunner(t, runner.Options{
		Concurrency:   8,
		TotalRequests: 200,
		Pacer:         p,
		OnAdmit:       func(pacer.Result) { admitted.Add(1) },
		OnComplete:    func(time.Duration, error) { completed.Add(1) },
		Requester:     &fakeRequester{latency: 100 * time.Microsecond},
	}).Run(context.Background())

	if res.Total != 200 {
		t.Fatalf("expected total 200, got %d", res.Total)
	}
	if p.overlapped.Load() {
		t.Fatalf("AwaitReady was called concurrently")
	}
	if admitted.Load() != 200 || completed.Load() != 200 {
		t.Fatalf("admitted=%d completed=%d, want 200 each", admitted.Load(), completed.Load())
	}
}

func TestPatternArrivalPacesRealTimeline(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	start := time.Now()
	tl, err := pattern.New(pattern.Config{
		Duration: time.Second,
		Steps: []pattern.StepConfig{{
			ID: "flat", Start: pattern.Fraction(0), End: pattern.Fraction(1), Mode: pattern.StepModeFlat,
		}},
		Repeat: pattern.RepeatConfig{Enabled: true},
	}, pattern.Options{RunStart: start, Logger: logger})
	if err != nil {
		t.Fatalf("pattern.New: %v", err)
	}
	p, err := pacer.New(tl, 100, pacer.Options{Logger: logger})
	if err != nil {
		t.Fatalf("pacer.New: %v", err)
	}

	res := mustRunner(t, runner.Options{
		Concurrency: 4,
		Duration:    200 * time.Millisecond,
		Pacer:       p,
		Requester:   &fakeRequester{},
	}).Run(context.Background())

	// 100 rps for 200ms is about 20 admissions.
	if res.Total < 10 || res.Total > 30 {
		t.Fatalf("expected roughly 20 admissions, got %d", res.Total)
	}
}

func TestPatternArrivalRequiresPacer(t *testing.T) {
	_, err := runner.New(runner.Options{ArrivalModel: runner.ArrivalModelPattern})
	if !errors.Is(err, runner.ErrNoPacer) {
		t.Fatalf("expected ErrNoPacer, got %v", err)
	}
}

type blockingRequester struct{}

func (blockingRequester) Do(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunnerCountsOnlyHandedOffAdmissions(t *testing.T) {
	p := &stubPacer{}
	res := mustRunner(t, runner.Options{
		Concurrency: 1,
		Duration:    50 * time.Millisecond,
		Pacer:       p,
		Requester:   blockingRequester{},
	}).Run(context.Background())

	// One admission in flight, one buffered; the third grant is abandoned
	// when the deadline fires.
	if res.Total != 2 {
		t.Errorf("Total = %d, want 2", res.Total)
	}
	if res.Completed != 1 {
		t.Errorf("Completed = %d, want 1", res.Completed)
	}
	if got := p.calls.Load(); got != 3 {
		t.Errorf("pacer grants = %d, want 3", got)
	}
}
