package runner

import (
	"context"
	"errors"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/swarmpace/internal/pacer"
	"github.com/torosent/swarmpace/internal/pattern"
)

// ErrNoPacer is returned by Run when the pattern arrival model has no Pacer.
var ErrNoPacer = errors.New("runner: pattern arrival requires a pacer")

type arrivalController interface {
	Wait(ctx context.Context) error
}

func newArrivalController(opt Options) (arrivalController, error) {
	switch opt.ArrivalModel {
	case ArrivalModelPattern:
		if opt.Pacer == nil {
			return nil, ErrNoPacer
		}
		return &patternArrival{pacer: opt.Pacer, onAdmit: opt.OnAdmit}, nil
	case ArrivalModelPoisson:
		sampler := opt.PoissonSampler
		if sampler == nil {
			sampler = pattern.NewRand(opt.RandomSeed).ExpFloat64
		}
		return &poissonArrival{rate: float64(opt.RatePerSecond), sample: sampler}, nil
	default:
		return &uniformArrival{limiter: opt.LimiterFactory(opt.RatePerSecond)}, nil
	}
}

// patternArrival admits through a Pacer. Wait is only ever called by the
// scheduler goroutine, which keeps the pacer single-caller.
type patternArrival struct {
	pacer   Pacer
	onAdmit func(pacer.Result)
}

func (p *patternArrival) Wait(ctx context.Context) error {
	res, err := p.pacer.AwaitReady(ctx)
	if err != nil {
		return err
	}
	if p.onAdmit != nil {
		p.onAdmit(res)
	}
	return nil
}

// uniformArrival delegates pacing to a rate.Limiter (uniform spacing).
type uniformArrival struct {
	limiter *rate.Limiter
}

func (u *uniformArrival) Wait(ctx context.Context) error {
	if u == nil || u.limiter == nil {
		return nil
	}
	return u.limiter.Wait(ctx)
}

// poissonArrival samples exponential inter-arrival times to approximate a Poisson process.
type poissonArrival struct {
	rate   float64
	sample func() float64
}

func (p *poissonArrival) Wait(ctx context.Context) error {
	delay := p.nextDelay()
	if delay <= 0 {
		return nil
	}
	return pacer.TimerSleeper.Sleep(ctx, delay)
}

func (p *poissonArrival) nextDelay() time.Duration {
	if p == nil || p.rate <= 0 || p.sample == nil {
		return 0
	}
	delay := float64(time.Second) * p.sample() / p.rate
	if delay > math.MaxInt64 {
		delay = math.MaxInt64
	}
	return time.Duration(delay)
}
