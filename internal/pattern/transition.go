package pattern

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// transition is the blend window occupying the tail of a step.
type transition struct {
	kind   TransitionType
	millis float64
}

func newTransition(cfg TransitionConfig, stepMillis float64) (transition, error) {
	kind := TransitionType(strings.ToLower(string(cfg.Type)))
	switch kind {
	case "", TransitionNone:
		return transition{kind: TransitionNone}, nil
	case TransitionLinear, TransitionSmooth:
	default:
		return transition{}, fmt.Errorf("%w %q", ErrUnknownTransition, cfg.Type)
	}
	var ms float64
	if cfg.Duration > 0 {
		ms = float64(cfg.Duration) / float64(time.Millisecond)
	} else {
		ms = stepMillis * math.Max(0, cfg.Percent) / 100
	}
	return transition{kind: kind, millis: math.Min(ms, math.Max(0, stepMillis))}, nil
}

func (t transition) blend(u float64) float64 {
	u = clamp(u, 0, 1)
	switch t.kind {
	case TransitionLinear:
		return u
	case TransitionSmooth:
		return u * u * (3 - 2*u)
	default:
		return 0
	}
}

// apply blends value towards next inside the window that ends at stepMillis.
func (t transition) apply(value, next, offsetMillis, stepMillis float64) float64 {
	if t.millis <= 0 {
		return value
	}
	start := stepMillis - t.millis
	if offsetMillis < start {
		return value
	}
	alpha := t.blend((offsetMillis - start) / t.millis)
	return value*(1-alpha) + next*alpha
}
