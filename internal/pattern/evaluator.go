package pattern

import (
	"fmt"
	"math"
	"strings"
)

// evaluator maps progress within a step (0..1) to a raw multiplier.
type evaluator interface {
	valueAt(progress float64) float64
}

type flatEvaluator struct{ factor float64 }

func (e flatEvaluator) valueAt(float64) float64 { return e.factor }

type rampEvaluator struct{ from, to float64 }

func (e rampEvaluator) valueAt(progress float64) float64 {
	p := clamp(progress, 0, 1)
	return e.from + (e.to-e.from)*p
}

type sinusEvaluator struct{ center, amplitude, cycles, phase float64 }

func (e sinusEvaluator) valueAt(progress float64) float64 {
	return e.center + e.amplitude*math.Sin(e.phase+2*math.Pi*e.cycles*progress)
}

// dutyEvaluator is a square wave in step-relative milliseconds.
type dutyEvaluator struct {
	onMs, offMs float64
	high, low   float64
	stepMillis  float64
}

func (e dutyEvaluator) valueAt(progress float64) float64 {
	if e.stepMillis <= 0 {
		return e.high
	}
	cycle := e.onMs + e.offMs
	if cycle <= 0 {
		return e.high
	}
	pos := math.Mod(clamp(progress, 0, 1)*e.stepMillis, cycle)
	if pos < e.onMs {
		return e.high
	}
	return e.low
}

func newEvaluator(mode StepMode, params map[string]float64, stepMillis float64) (evaluator, error) {
	switch StepMode(strings.ToLower(string(mode))) {
	case StepModeFlat:
		return flatEvaluator{factor: param(params, "factor", 1)}, nil
	case StepModeRamp:
		return rampEvaluator{
			from: param(params, "from", 1),
			to:   param(params, "to", 1),
		}, nil
	case StepModeSinus:
		return sinusEvaluator{
			center:    param(params, "center", 1),
			amplitude: param(params, "amplitude", 0),
			cycles:    param(params, "cycles", 1),
			phase:     param(params, "phase", 0),
		}, nil
	case StepModeDuty:
		return dutyEvaluator{
			onMs:       math.Max(0, param(params, "onMs", 1000)),
			offMs:      math.Max(0, param(params, "offMs", 1000)),
			high:       param(params, "high", 1),
			low:        param(params, "low", 0),
			stepMillis: stepMillis,
		}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownStepMode, mode)
	}
}

// param looks a key up as written and lower-cased, since loosely-typed
// config sources normalise map keys.
func param(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	if v, ok := params[strings.ToLower(key)]; ok {
		return v
	}
	return def
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
