package pacer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torosent/swarmpace/internal/pattern"
)

const (
	// MinWait is the shortest sleep between polls.
	MinWait = time.Millisecond

	minCapacity  = 10.0
	capacitySecs = 60.0
	minWarp      = 1e-9
)

// ErrNilTimeline is returned by New when no timeline is supplied.
var ErrNilTimeline = errors.New("pacer: timeline is required")

// Options configure a Pacer.
type Options struct {
	Jitter  JitterConfig
	Seeds   pattern.SeedsConfig
	Clock   Clock
	Sleeper Sleeper
	Logger  logrus.FieldLogger
	// MaxWait caps a single poll sleep so that rate changes in the profile
	// are picked up promptly. Zero leaves waits uncapped.
	MaxWait time.Duration
}

// Result describes one admission.
type Result struct {
	Sample         pattern.Sample
	TargetRPS      float64
	BucketLevel    float64
	WaitDuration   time.Duration
	JitterDuration time.Duration
	ReadyAt        time.Time
}

// Pacer admits units of work at baseRate scaled by the timeline multiplier.
//
// AwaitReady must be called sequentially by a single goroutine. Independent
// streams need their own Pacer; a Timeline may be shared between them.
type Pacer struct {
	timeline *pattern.Timeline
	baseRate float64
	capacity float64
	maxWait  time.Duration

	clock   Clock
	sleeper Sleeper
	logger  logrus.FieldLogger
	jitter  *jitterSource

	tokens      float64
	last        pattern.Sample
	lastElapsed time.Duration
}

// New builds a Pacer whose bucket starts empty at the timeline's run start.
func New(timeline *pattern.Timeline, baseRate float64, opts Options) (*Pacer, error) {
	if timeline == nil {
		return nil, ErrNilTimeline
	}
	if math.IsNaN(baseRate) || math.IsInf(baseRate, 0) || baseRate < 0 {
		return nil, fmt.Errorf("pacer: base rate must be a finite value >= 0, got %v", baseRate)
	}
	if opts.MaxWait < 0 {
		return nil, fmt.Errorf("pacer: max wait must be >= 0, got %s", opts.MaxWait)
	}
	jitter, err := newJitterSource(opts.Jitter, pattern.NewSeedResolver(opts.Seeds))
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Sleeper == nil {
		opts.Sleeper = TimerSleeper
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	start := timeline.RunStart()
	return &Pacer{
		timeline:    timeline,
		baseRate:    baseRate,
		capacity:    math.Max(baseRate*capacitySecs, minCapacity),
		maxWait:     opts.MaxWait,
		clock:       opts.Clock,
		sleeper:     opts.Sleeper,
		logger:      opts.Logger,
		jitter:      jitter,
		last:        timeline.Sample(start),
		lastElapsed: timeline.ProfileElapsed(start),
	}, nil
}

// AwaitReady blocks until a token is available, consumes it, applies jitter
// and reports the admission. A cancelled ctx aborts the wait with ctx.Err().
func (p *Pacer) AwaitReady(ctx context.Context) (Result, error) {
	var waited time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		now := p.clock.Now()
		sample := p.advance(now)
		target := p.baseRate * sample.Multiplier

		if p.tokens >= 1 {
			p.tokens--
			jitter := p.jitter.delay(now.Sub(p.timeline.RunStart()))
			if jitter > 0 {
				if err := p.sleeper.Sleep(ctx, jitter); err != nil {
					return Result{}, err
				}
			}
			return Result{
				Sample:         sample,
				TargetRPS:      target,
				BucketLevel:    p.tokens,
				WaitDuration:   waited,
				JitterDuration: jitter,
				ReadyAt:        p.clock.Now(),
			}, nil
		}

		wait := p.waitFor(target)
		p.logger.WithFields(logrus.Fields{
			"targetRps": target,
			"tokens":    p.tokens,
			"wait":      wait,
			"step":      sample.StepID,
		}).Trace("pacer waiting for token")
		if err := p.sleeper.Sleep(ctx, wait); err != nil {
			return Result{}, err
		}
		waited += wait
	}
}

// advance integrates the fill rate trapezoidally from the previous poll to now.
func (p *Pacer) advance(now time.Time) pattern.Sample {
	elapsed := p.timeline.ProfileElapsed(now)
	sample := p.timeline.SampleElapsed(elapsed)
	if dt := elapsed - p.lastElapsed; dt > 0 {
		avg := p.baseRate * (p.last.Multiplier + sample.Multiplier) / 2
		p.tokens += avg * dt.Seconds()
		p.tokens = math.Min(math.Max(p.tokens, 0), p.capacity)
		p.lastElapsed = elapsed
	}
	p.last = sample
	return sample
}

// waitFor converts the profile time needed to fill one token at target into
// real time.
func (p *Pacer) waitFor(target float64) time.Duration {
	if !(target > 0) {
		return MinWait
	}
	warp := p.timeline.WarpFactor()
	if warp < minWarp {
		return MinWait
	}
	seconds := (1 - p.tokens) / target / warp
	wait := MinWait
	if secs := seconds * float64(time.Second); secs > float64(MinWait) {
		if secs >= math.MaxInt64 {
			wait = time.Duration(math.MaxInt64)
		} else {
			wait = time.Duration(secs)
		}
	}
	if p.maxWait > 0 && wait > p.maxWait {
		wait = p.maxWait
	}
	return wait
}

func (p *Pacer) Capacity() float64 { return p.capacity }

func (p *Pacer) Tokens() float64 { return p.tokens }

func (p *Pacer) BaseRate() float64 { return p.baseRate }

func (p *Pacer) Timeline() *pattern.Timeline { return p.timeline }
