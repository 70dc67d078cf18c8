package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/swarmpace/internal/pacer"
)

// Requester abstracts executing a single request operation.
// Implementations should return an error for failed requests.
type Requester interface {
	Do(ctx context.Context) error
}

// Pacer grants admissions one at a time. *pacer.Pacer implements it.
type Pacer interface {
	AwaitReady(ctx context.Context) (pacer.Result, error)
}

// ArrivalModel selects how the scheduler spaces admissions.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
	ArrivalModelPattern ArrivalModel = "pattern"
)

// Options configure the Runner.
type Options struct {
	Concurrency   int           // number of worker goroutines
	TotalRequests int           // total requests to execute (0 means unlimited until duration/end)
	Duration      time.Duration // overall time limit (0 means no duration cap)
	RatePerSecond int           // uniform/poisson pacing (0 means unlimited)
	ArrivalModel  ArrivalModel  // defaults to pattern when Pacer is set, uniform otherwise
	Pacer         Pacer         // required for ArrivalModelPattern

	OnAdmit    func(pacer.Result)                  // called from the scheduler for every pattern admission
	OnComplete func(latency time.Duration, err error) // called from workers after each request

	Requester      Requester                   // request executor (required)
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
	PoissonSampler func() float64              // unit-mean exponential draws; optional
	RandomSeed     int64                       // seeds the default Poisson sampler
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.TotalRequests < 0 {
		o.TotalRequests = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.ArrivalModel == "" {
		if o.Pacer != nil {
			o.ArrivalModel = ArrivalModelPattern
		} else {
			o.ArrivalModel = ArrivalModelUniform
		}
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
