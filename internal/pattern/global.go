package pattern

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const dayMillis = float64(24 * time.Hour / time.Millisecond)

type globalMutator interface {
	apply(value, patternMillis, durationMillis float64) float64
}

type spikeSettings struct {
	At      string        `mapstructure:"at"`
	Width   time.Duration `mapstructure:"width"`
	LiftPct float64       `mapstructure:"liftPct"`
}

// spikeMutator lifts the multiplier around a clock-of-day target, measuring
// distance around the cycle so spikes near the edges wrap.
type spikeMutator struct {
	targetMillis float64
	halfWidth    float64
	lift         float64
}

func newSpikeMutator(settings map[string]any, durationMillis float64) (spikeMutator, error) {
	var s spikeSettings
	if err := decodeSettings(normalizeWidth(settings), &s); err != nil {
		return spikeMutator{}, err
	}
	if strings.TrimSpace(s.At) == "" {
		return spikeMutator{}, ErrMissingSpikeAt
	}
	at, err := parseClock(s.At)
	if err != nil {
		return spikeMutator{}, err
	}
	return spikeMutator{
		targetMillis: math.Mod(at, durationMillis),
		halfWidth:    float64(s.Width) / float64(time.Millisecond) / 2,
		lift:         1 + s.LiftPct/100,
	}, nil
}

func (m spikeMutator) apply(value, patternMillis, durationMillis float64) float64 {
	d := math.Abs(patternMillis - m.targetMillis)
	if wrap := durationMillis - d; wrap < d {
		d = wrap
	}
	if d <= m.halfWidth {
		return value * m.lift
	}
	return value
}

func newGlobalMutator(cfg GlobalMutatorConfig, durationMillis float64) (globalMutator, error) {
	switch GlobalMutatorType(strings.ToLower(string(cfg.Type))) {
	case GlobalMutatorSpike:
		return newSpikeMutator(cfg.Settings, durationMillis)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownGlobalMutator, cfg.Type)
	}
}

// normalizeWidth lets width be given as bare milliseconds as well as a
// duration string.
func normalizeWidth(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		if strings.EqualFold(k, "width") {
			switch n := v.(type) {
			case int:
				v = time.Duration(n) * time.Millisecond
			case int64:
				v = time.Duration(n) * time.Millisecond
			case float64:
				v = time.Duration(n * float64(time.Millisecond))
			}
		}
		out[k] = v
	}
	return out
}

// parseClock parses "HH:MM" or "HH:MM:SS" into milliseconds since midnight.
// "24:00" is accepted as the end of the day.
func parseClock(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("clock %q: expected HH:MM or HH:MM:SS", s)
	}
	fields := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("clock %q: invalid field %q", s, p)
		}
		fields[i] = n
	}
	h, m, sec := fields[0], fields[1], fields[2]
	if h == 24 && m == 0 && sec == 0 {
		return dayMillis, nil
	}
	if h > 23 || m > 59 || sec > 59 {
		return 0, fmt.Errorf("clock %q: out of range", s)
	}
	return float64((h*3600+m*60+sec)*1000), nil
}
