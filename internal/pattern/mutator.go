package pattern

import (
	"fmt"
	"math"
	"math/rand/v2"
	"reflect"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// mutator transforms a step value at a step-relative offset in milliseconds.
type mutator interface {
	apply(value, offsetMillis float64) float64
}

type capSettings struct {
	Min *float64 `mapstructure:"min"`
	Max *float64 `mapstructure:"max"`
}

type noiseSettings struct {
	Pct      float64 `mapstructure:"pct"`
	BucketMs float64 `mapstructure:"bucketMs"`
}

type burstSettings struct {
	LiftPct    float64 `mapstructure:"liftPct"`
	DurationMs msRange `mapstructure:"durationMs"`
	EveryMs    msRange `mapstructure:"everyMs"`
	JitterMs   float64 `mapstructure:"jitterMs"`
}

// msRange accepts a scalar, a [min, max] pair or a {min, max} map.
type msRange struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

func (r msRange) draw(rng *rand.Rand) float64 {
	lo, hi := r.Min, r.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

type capMutator struct {
	min, max *float64
}

func (m capMutator) apply(value, _ float64) float64 {
	if m.min != nil && value < *m.min {
		value = *m.min
	}
	if m.max != nil && value > *m.max {
		value = *m.max
	}
	return value
}

// noiseMutator holds one factor per bucket, drawn once at construction.
type noiseMutator struct {
	bucketMs float64
	factors  []float64
}

func newNoiseMutator(s noiseSettings, stepMillis float64, rng *rand.Rand) noiseMutator {
	bucket := s.BucketMs
	if bucket <= 0 {
		bucket = 1000
	}
	n := int(math.Ceil(stepMillis / bucket))
	if n < 1 {
		n = 1
	}
	spread := math.Abs(s.Pct) / 100
	factors := make([]float64, n)
	for i := range factors {
		factors[i] = 1 + (rng.Float64()*2-1)*spread
	}
	return noiseMutator{bucketMs: bucket, factors: factors}
}

func (m noiseMutator) apply(value, offsetMillis float64) float64 {
	idx := int(math.Floor(offsetMillis / m.bucketMs))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.factors) {
		idx = len(m.factors) - 1
	}
	return value * m.factors[idx]
}

type interval struct{ start, end float64 }

// burstMutator lifts the value inside precomputed, disjoint intervals.
type burstMutator struct {
	lift      float64
	intervals []interval
}

func newBurstMutator(s burstSettings, stepMillis float64, rng *rand.Rand) burstMutator {
	m := burstMutator{lift: 1 + s.LiftPct/100}
	cursor := 0.0
	for cursor < stepMillis {
		gap := math.Max(0, s.EveryMs.draw(rng))
		start := cursor + gap
		if s.JitterMs > 0 {
			start += rng.Float64() * s.JitterMs
		}
		if start >= stepMillis {
			break
		}
		length := math.Max(0, s.DurationMs.draw(rng))
		if gap == 0 && length == 0 {
			break
		}
		end := math.Min(start+length, stepMillis)
		if end > start {
			m.intervals = append(m.intervals, interval{start: start, end: end})
		}
		cursor = end
	}
	return m
}

func (m burstMutator) apply(value, offsetMillis float64) float64 {
	i := sort.Search(len(m.intervals), func(i int) bool { return m.intervals[i].end > offsetMillis })
	if i < len(m.intervals) && offsetMillis >= m.intervals[i].start {
		return value * m.lift
	}
	return value
}

func newMutator(cfg StepMutatorConfig, stepID string, stepMillis float64, seeds SeedResolver) (mutator, error) {
	kind := MutatorType(strings.ToLower(string(cfg.Type)))
	fallback := stepID + ":" + string(kind)
	switch kind {
	case MutatorCap:
		var s capSettings
		if err := decodeSettings(cfg.Settings, &s); err != nil {
			return nil, err
		}
		return capMutator{min: s.Min, max: s.Max}, nil
	case MutatorNoise:
		var s noiseSettings
		if err := decodeSettings(cfg.Settings, &s); err != nil {
			return nil, err
		}
		return newNoiseMutator(s, stepMillis, seeds.Rand(cfg.Seed, string(kind), fallback)), nil
	case MutatorBurst:
		var s burstSettings
		if err := decodeSettings(cfg.Settings, &s); err != nil {
			return nil, err
		}
		return newBurstMutator(s, stepMillis, seeds.Rand(cfg.Seed, string(kind), fallback)), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMutator, cfg.Type)
	}
}

func decodeSettings(settings map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			msRangeHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("settings decoder: %w", err)
	}
	if err := dec.Decode(settings); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	return nil
}

func msRangeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(msRange{}) {
		return data, nil
	}
	switch v := data.(type) {
	case []any:
		if len(v) != 2 {
			return nil, fmt.Errorf("range needs exactly two values, got %d", len(v))
		}
		return map[string]any{"min": v[0], "max": v[1]}, nil
	case []float64:
		if len(v) != 2 {
			return nil, fmt.Errorf("range needs exactly two values, got %d", len(v))
		}
		return msRange{Min: v[0], Max: v[1]}, nil
	case map[string]any, map[any]any:
		return data, nil
	default:
		return map[string]any{"min": v, "max": v}, nil
	}
}
