package runner

import (
	"testing"

	"golang.org/x/time/rate"
)

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name        string
		in          Options
		concurrency int
		total       int
		rps         int
		model       ArrivalModel
	}{
		{name: "zero value", in: Options{}, concurrency: 1, model: ArrivalModelUniform},
		{name: "pacer implies pattern", in: Options{Pacer: errPacer{}}, concurrency: 1, model: ArrivalModelPattern},
		{
			name:        "explicit model wins over pacer",
			in:          Options{Pacer: errPacer{}, ArrivalModel: ArrivalModelPoisson, RatePerSecond: 5},
			concurrency: 1,
			rps:         5,
			model:       ArrivalModelPoisson,
		},
		{
			name:        "negatives clamp",
			in:          Options{Concurrency: -3, TotalRequests: -1, RatePerSecond: -9},
			concurrency: 1,
			model:       ArrivalModelUniform,
		},
		{
			name:        "valid values kept",
			in:          Options{Concurrency: 8, TotalRequests: 40, RatePerSecond: 20},
			concurrency: 8,
			total:       40,
			rps:         20,
			model:       ArrivalModelUniform,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.in
			o.normalize()
			if o.Concurrency != tt.concurrency {
				t.Errorf("Concurrency = %d, want %d", o.Concurrency, tt.concurrency)
			}
			if o.TotalRequests != tt.total {
				t.Errorf("TotalRequests = %d, want %d", o.TotalRequests, tt.total)
			}
			if o.RatePerSecond != tt.rps {
				t.Errorf("RatePerSecond = %d, want %d", o.RatePerSecond, tt.rps)
			}
			if o.ArrivalModel != tt.model {
				t.Errorf("ArrivalModel = %q, want %q", o.ArrivalModel, tt.model)
			}
			if o.RandomSeed == 0 {
				t.Error("RandomSeed was not filled in")
			}
			if o.LimiterFactory == nil {
				t.Error("LimiterFactory was not filled in")
			}
		})
	}
}

func TestOptionsNormalizeKeepsSeed(t *testing.T) {
	o := Options{RandomSeed: 99}
	o.normalize()
	if o.RandomSeed != 99 {
		t.Errorf("RandomSeed = %d, want 99", o.RandomSeed)
	}
}

func TestLimiterFactory(t *testing.T) {
	o := Options{}
	o.normalize()

	if l := o.LimiterFactory(0); l.Limit() != rate.Inf {
		t.Errorf("Limit(0) = %v, want Inf", l.Limit())
	}
	l := o.LimiterFactory(25)
	if l.Limit() != rate.Limit(25) || l.Burst() != 25 {
		t.Errorf("LimiterFactory(25) = limit %v burst %d, want 25/25", l.Limit(), l.Burst())
	}
}
