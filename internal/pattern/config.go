package pattern

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeMode selects how wall-clock time maps onto profile time.
type TimeMode string

const (
	TimeModeRealtime TimeMode = "realtime"
	TimeModeWarp     TimeMode = "warp"
)

// TimeConfig configures the profile clock.
type TimeConfig struct {
	Mode       TimeMode
	WarpFactor decimal.Decimal // only used in TimeModeWarp
	Location   *time.Location  // calendar alignment; nil means UTC
}

func (t TimeConfig) location() *time.Location {
	if t.Location == nil {
		return time.UTC
	}
	return t.Location
}

// StepMode identifies a step evaluator.
type StepMode string

const (
	StepModeFlat  StepMode = "flat"
	StepModeRamp  StepMode = "ramp"
	StepModeSinus StepMode = "sinus"
	StepModeDuty  StepMode = "duty"
)

// MutatorType identifies a per-step mutator.
type MutatorType string

const (
	MutatorCap   MutatorType = "cap"
	MutatorNoise MutatorType = "noise"
	MutatorBurst MutatorType = "burst"
)

// GlobalMutatorType identifies a pattern-wide mutator.
type GlobalMutatorType string

const GlobalMutatorSpike GlobalMutatorType = "spike"

// TransitionType selects the blend curve used at the end of a step.
type TransitionType string

const (
	TransitionNone   TransitionType = "none"
	TransitionLinear TransitionType = "linear"
	TransitionSmooth TransitionType = "smooth"
)

// RepeatAlignment selects how a repeating pattern is anchored.
type RepeatAlignment string

const (
	AlignFromStart RepeatAlignment = "from_start"
	AlignCalendar  RepeatAlignment = "calendar"
)

// RepeatUntil bounds the number of repetitions.
type RepeatUntil string

const (
	UntilForever     RepeatUntil = "forever"
	UntilOccurrences RepeatUntil = "occurrences"
)

// Config describes a complete rate profile.
type Config struct {
	Duration       time.Duration
	Steps          []StepConfig
	Repeat         RepeatConfig
	Time           TimeConfig
	Normalization  NormalizationConfig
	Seeds          SeedsConfig
	GlobalMutators []GlobalMutatorConfig
}

// StepConfig describes one step of the pattern.
type StepConfig struct {
	ID         string
	Start      Offset
	End        Offset
	Mode       StepMode
	Params     map[string]float64
	Mutators   []StepMutatorConfig
	Transition TransitionConfig
}

// StepMutatorConfig configures a per-step mutator. Settings are decoded
// according to Type when the timeline is built.
type StepMutatorConfig struct {
	Type     MutatorType
	Settings map[string]any
	Seed     string
}

// TransitionConfig sizes the blend window either as a percentage of the step
// length or as an absolute duration. Duration wins when both are set.
type TransitionConfig struct {
	Type     TransitionType
	Percent  float64
	Duration time.Duration
}

type RepeatConfig struct {
	Enabled     bool
	Align       RepeatAlignment
	Until       RepeatUntil
	Occurrences int // ignored unless Until is UntilOccurrences; <= 0 means unlimited
}

// NormalizationConfig controls scaling the profile to a unit mean.
// TolerancePct only drives a warning.
type NormalizationConfig struct {
	Enabled      bool
	TolerancePct float64
}

type SeedsConfig struct {
	Default   string
	Overrides map[string]string
}

type GlobalMutatorConfig struct {
	Type     GlobalMutatorType
	Settings map[string]any
}

// Offset is a step boundary expressed either as a fraction of the pattern
// duration or as an absolute offset from the pattern start.
type Offset struct {
	Fraction float64
	At       time.Duration
	Absolute bool
}

// Fraction returns an Offset at f of the pattern duration.
func Fraction(f float64) Offset { return Offset{Fraction: f} }

// At returns an absolute Offset.
func At(d time.Duration) Offset { return Offset{At: d, Absolute: true} }

func (o Offset) millis(durationMillis float64) float64 {
	var v float64
	if o.Absolute {
		v = float64(o.At) / float64(time.Millisecond)
	} else {
		v = o.Fraction * durationMillis
	}
	return clamp(v, 0, durationMillis)
}

func (o Offset) String() string {
	if o.Absolute {
		return o.At.String()
	}
	return strconv.FormatFloat(o.Fraction*100, 'f', -1, 64) + "%"
}

// ParseOffset parses "25%", "0.25" or a Go duration such as "15m".
func ParseOffset(s string) (Offset, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Offset{}, fmt.Errorf("empty offset")
	}
	if strings.HasSuffix(s, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil {
			return Offset{}, fmt.Errorf("offset %q: %w", s, err)
		}
		return Fraction(pct / 100), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Fraction(f), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Offset{}, fmt.Errorf("offset %q: expected percent, fraction or duration", s)
	}
	return At(d), nil
}

// ParseWarpFactor parses a decimal warp factor, rejecting negatives.
func ParseWarpFactor(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("warp factor %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("warp factor %q must be >= 0", s)
	}
	return d, nil
}
