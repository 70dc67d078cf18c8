package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/torosent/swarmpace/internal/pacer"
)

func TestPoissonArrivalNextDelayUsesSampler(t *testing.T) {
	ctrl := &poissonArrival{rate: 200, sample: func() float64 { return 1 }}
	expected := time.Second / 200
	if delay := ctrl.nextDelay(); delay != expected {
		t.Fatalf("expected delay %s, got %s", expected, delay)
	}
}

func TestPoissonArrivalWaitCancelledContext(t *testing.T) {
	ctrl := &poissonArrival{rate: 0.000001, sample: func() float64 { return 1 }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ctrl.Wait(ctx); err == nil {
		t.Fatalf("expected context error when cancelled")
	}
}

func TestPoissonDefaultSamplerIsSeeded(t *testing.T) {
	build := func() *poissonArrival {
		opt := Options{ArrivalModel: ArrivalModelPoisson, RatePerSecond: 10, RandomSeed: 99}
		opt.normalize()
		ctrl, err := newArrivalController(opt)
		if err != nil {
			t.Fatalf("newArrivalController: %v", err)
		}
		return ctrl.(*poissonArrival)
	}
	a, b := build(), build()
	for i := 0; i < 5; i++ {
		if da, db := a.nextDelay(), b.nextDelay(); da != db {
			t.Fatalf("draw %d differs: %s vs %s", i, da, db)
		}
	}
}

type errPacer struct{ err error }

func (e errPacer) AwaitReady(context.Context) (pacer.Result, error) { return pacer.Result{}, e.err }

func TestPatternArrivalPropagatesPacerError(t *testing.T) {
	called := false
	ctrl := &patternArrival{pacer: errPacer{err: context.Canceled}, onAdmit: func(pacer.Result) { called = true }}
	if err := ctrl.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatalf("onAdmit must not run for a failed wait")
	}
}
