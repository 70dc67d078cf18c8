package pacer

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/torosent/swarmpace/internal/pattern"
)

// JitterType selects how post-admission jitter is shaped.
type JitterType string

const (
	JitterNone     JitterType = "none"
	JitterSequence JitterType = "sequence"
	JitterPeriodic JitterType = "periodic"
)

// JitterConfig bounds the random delay applied after a token is granted.
type JitterConfig struct {
	Type   JitterType
	Max    time.Duration
	Period time.Duration // periodic only; zero behaves like sequence
	Seed   string
}

const jitterSeedKind = "jitter"

type jitterSource struct {
	kind   JitterType
	max    time.Duration
	period time.Duration
	rng    *rand.Rand
}

func newJitterSource(cfg JitterConfig, seeds pattern.SeedResolver) (*jitterSource, error) {
	kind := JitterType(strings.ToLower(strings.TrimSpace(string(cfg.Type))))
	switch kind {
	case "", JitterNone:
		kind = JitterNone
	case JitterSequence, JitterPeriodic:
	default:
		return nil, fmt.Errorf("jitter: unsupported type %q", cfg.Type)
	}
	if cfg.Max < 0 {
		return nil, fmt.Errorf("jitter: max must be >= 0, got %s", cfg.Max)
	}
	if cfg.Period < 0 {
		return nil, fmt.Errorf("jitter: period must be >= 0, got %s", cfg.Period)
	}
	return &jitterSource{
		kind:   kind,
		max:    cfg.Max,
		period: cfg.Period,
		rng:    seeds.Rand(cfg.Seed, jitterSeedKind, jitterSeedKind),
	}, nil
}

// delay draws the next jitter. sinceStart positions a periodic envelope.
func (j *jitterSource) delay(sinceStart time.Duration) time.Duration {
	if j == nil || j.kind == JitterNone || j.max <= 0 {
		return 0
	}
	draw := j.rng.Float64()
	scale := draw
	if j.kind == JitterPeriodic && j.period > 0 {
		if sinceStart < 0 {
			sinceStart = 0
		}
		fraction := float64(sinceStart%j.period) / float64(j.period)
		scale *= 0.5 + 0.5*math.Sin(2*math.Pi*fraction)
	}
	d := time.Duration(float64(j.max) * scale)
	if d < 0 {
		return 0
	}
	if d > j.max {
		return j.max
	}
	return d
}
