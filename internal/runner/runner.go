package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Result summarises a run. Total counts admissions handed to workers;
// Completed counts requests that actually returned.
type Result struct {
	Total     int64
	Completed int64
	Errors    int64
	Duration  time.Duration
}

// Runner fans paced admissions out to a fixed pool of workers.
type Runner struct {
	opt     Options
	arrival arrivalController

	admitted  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func New(opt Options) (*Runner, error) {
	opt.normalize()
	arrival, err := newArrivalController(opt)
	if err != nil {
		return nil, err
	}
	return &Runner{opt: opt, arrival: arrival}, nil
}

// Run blocks until the request budget is spent, the duration elapses, the
// arrival controller stops, or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.opt.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, r.opt.Duration)
		defer stop()
	}

	admissions := make(chan struct{}, r.opt.Concurrency)
	go r.schedule(ctx, admissions)

	var wg sync.WaitGroup
	for i := 0; i < r.opt.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx, admissions)
		}()
	}
	wg.Wait()

	return Result{
		Total:     r.admitted.Load(),
		Completed: r.completed.Load(),
		Errors:    r.failed.Load(),
		Duration:  time.Since(start),
	}
}

// schedule is the only caller of arrival.Wait, so a pacer never sees
// concurrent AwaitReady calls.
func (r *Runner) schedule(ctx context.Context, admissions chan<- struct{}) {
	defer close(admissions)
	budget := int64(r.opt.TotalRequests)
	for ctx.Err() == nil {
		if budget > 0 && r.admitted.Load() >= budget {
			return
		}
		if err := r.arrival.Wait(ctx); err != nil {
			return
		}
		select {
		case admissions <- struct{}{}:
			r.admitted.Add(1)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) work(ctx context.Context, admissions <-chan struct{}) {
	for range admissions {
		r.execute(ctx)
		if ctx.Err() != nil {
			return
		}
	}
}

func (r *Runner) execute(ctx context.Context) {
	if r.opt.Requester == nil {
		return
	}
	began := time.Now()
	err := r.opt.Requester.Do(ctx)
	r.completed.Add(1)
	if err != nil {
		r.failed.Add(1)
	}
	if r.opt.OnComplete != nil {
		r.opt.OnComplete(time.Since(began), err)
	}
}
