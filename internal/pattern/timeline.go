package pattern

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Sample is the timeline value at one instant.
type Sample struct {
	Multiplier            float64
	NormalizationConstant float64
	Offset                time.Duration // position within the pattern cycle
	StepID                string
}

// Options configure a Timeline beyond its pattern config.
type Options struct {
	RunStart time.Time
	Logger   logrus.FieldLogger
}

// Timeline maps elapsed time onto the rate multiplier described by a
// pattern. It is immutable after New and safe for concurrent readers.
type Timeline struct {
	cfg            Config
	runStart       time.Time
	durationMillis float64
	lastMillis     float64
	segments       []segment
	globals        []globalMutator
	constant       float64
}

// New compiles cfg. Unknown step modes, mutators and global mutators, a spike
// without 'at' and a profile whose mean is not positive are rejected here so
// that sampling never fails.
func New(cfg Config, opts Options) (*Timeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Duration <= 0 {
		return nil, configErr("duration", ErrInvalidDuration)
	}
	if len(cfg.Steps) == 0 {
		return nil, configErr("steps", ErrNoSteps)
	}
	if cfg.Time.Mode == "" {
		cfg.Time.Mode = TimeModeRealtime
	}
	switch TimeMode(strings.ToLower(string(cfg.Time.Mode))) {
	case TimeModeRealtime:
		cfg.Time.Mode = TimeModeRealtime
	case TimeModeWarp:
		cfg.Time.Mode = TimeModeWarp
		if cfg.Time.WarpFactor.IsNegative() {
			return nil, configErr("time.warpFactor", fmt.Errorf("must be >= 0, got %s", cfg.Time.WarpFactor))
		}
	default:
		return nil, configErr("time.mode", fmt.Errorf("unsupported mode %q", cfg.Time.Mode))
	}

	cfg.Repeat.Align = RepeatAlignment(strings.ToLower(string(cfg.Repeat.Align)))
	cfg.Repeat.Until = RepeatUntil(strings.ToLower(string(cfg.Repeat.Until)))

	durationMillis := toMillis(cfg.Duration)
	tl := &Timeline{
		cfg:            cfg,
		runStart:       opts.RunStart,
		durationMillis: durationMillis,
		lastMillis:     math.Nextafter(durationMillis, math.Inf(-1)),
		constant:       1,
	}

	segments, err := compileSegments(cfg, durationMillis, NewSeedResolver(cfg.Seeds))
	if err != nil {
		return nil, err
	}
	tl.segments = segments

	for i, gc := range cfg.GlobalMutators {
		g, err := newGlobalMutator(gc, durationMillis)
		if err != nil {
			return nil, configErr(fmt.Sprintf("globalMutators[%d]", i), err)
		}
		tl.globals = append(tl.globals, g)
	}

	if cfg.Normalization.Enabled {
		c, err := computeConstant(segments, durationMillis)
		if err != nil {
			return nil, configErr("normalization", err)
		}
		tl.constant = c
		if deviation := math.Abs(c-1) * 100; deviation > cfg.Normalization.TolerancePct {
			logger.WithFields(logrus.Fields{
				"constant":     c,
				"deviationPct": deviation,
				"tolerancePct": cfg.Normalization.TolerancePct,
			}).Warn("pattern normalization constant outside tolerance")
		}
	}
	return tl, nil
}

// Sample evaluates the timeline at now.
func (t *Timeline) Sample(now time.Time) Sample {
	return t.SampleElapsed(t.ProfileElapsed(now))
}

// SampleElapsed evaluates the timeline at an already computed profile
// elapsed time, as returned by ProfileElapsed.
func (t *Timeline) SampleElapsed(elapsed time.Duration) Sample {
	at := t.resolve(elapsed)
	raw := 0.0
	id := ""
	if s := lookup(t.segments, at); s != nil {
		raw = s.valueAt(at)
		id = s.id
	}
	v := raw * t.constant
	for _, g := range t.globals {
		v = g.apply(v, at, t.durationMillis)
	}
	return Sample{
		Multiplier:            v,
		NormalizationConstant: t.constant,
		Offset:                time.Duration(at * float64(time.Millisecond)),
		StepID:                id,
	}
}

// ProfileElapsed converts now into elapsed profile time, applying warp.
// Clock skew before the run start yields zero.
func (t *Timeline) ProfileElapsed(now time.Time) time.Duration {
	wall := now.Sub(t.runStart)
	if wall < 0 {
		return 0
	}
	if t.cfg.Time.Mode == TimeModeWarp {
		return warp(wall, t.cfg.Time.WarpFactor)
	}
	return wall
}

// resolve maps profile elapsed time to milliseconds within the cycle.
func (t *Timeline) resolve(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	rep := t.cfg.Repeat
	if !rep.Enabled {
		if elapsed >= t.cfg.Duration {
			return t.lastMillis
		}
		return toMillis(elapsed)
	}
	if rep.Until == UntilOccurrences && rep.Occurrences > 0 &&
		int64(elapsed/t.cfg.Duration) >= int64(rep.Occurrences) {
		return t.lastMillis
	}

	var wrapped time.Duration
	aligned := false
	if rep.Align == AlignCalendar {
		wrapped, aligned = calendarOffset(t.runStart.Add(elapsed), t.cfg.Time.location(), t.cfg.Duration)
		if aligned && wrapped >= t.cfg.Duration {
			wrapped %= t.cfg.Duration
		}
	}
	if !aligned {
		wrapped = elapsed % t.cfg.Duration
	}
	return math.Min(toMillis(wrapped), t.lastMillis)
}

func (t *Timeline) NormalizationConstant() float64 { return t.constant }

func (t *Timeline) Duration() time.Duration { return t.cfg.Duration }

func (t *Timeline) RunStart() time.Time { return t.runStart }

func (t *Timeline) Time() TimeConfig { return t.cfg.Time }

// WarpFactor is the profile-to-real speed ratio: the configured factor in
// warp mode, 1 otherwise.
func (t *Timeline) WarpFactor() float64 {
	if t.cfg.Time.Mode != TimeModeWarp {
		return 1
	}
	return t.cfg.Time.WarpFactor.InexactFloat64()
}

// StepIDs lists the compiled steps in cycle order.
func (t *Timeline) StepIDs() []string {
	ids := make([]string, len(t.segments))
	for i, s := range t.segments {
		ids[i] = s.id
	}
	return ids
}
