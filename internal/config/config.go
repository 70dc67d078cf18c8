package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torosent/swarmpace/internal/pacer"
	"github.com/torosent/swarmpace/internal/pattern"
	"github.com/torosent/swarmpace/internal/threshold"
)

// DefaultMaxWait bounds one pacer sleep so a profile climbing out of a near
// zero rate is re-sampled at least once a second.
const DefaultMaxWait = time.Second

type ArrivalModel string

const (
	ArrivalModelPattern ArrivalModel = "pattern"
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Config is a loaded scenario: the rate profile, how it is paced and,
// for the run command, what traffic is sent.
type Config struct {
	ConfigFile string

	Rate    float64 // base admissions per second
	Pattern pattern.Config
	Jitter  pacer.JitterConfig
	MaxWait time.Duration

	TargetURL   string
	Method      string
	Headers     map[string]string
	Body        string
	Concurrency int
	Duration    time.Duration
	Total       int
	Timeout     time.Duration
	Retries     int
	Arrival     ArrivalModel

	Thresholds []string

	JSONOutput  bool
	LogErrors   bool
	Progress    bool
	MetricsAddr string

	Log     LogConfig
	Tracing TracingConfig
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

type TracingConfig struct {
	Endpoint    string
	Protocol    string // grpc or http
	Insecure    bool
	SampleRate  float64
	ServiceName string
	Propagate   bool
}

// Enabled reports whether an exporter endpoint is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether outgoing requests carry trace context.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Enabled() && t.Propagate
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks everything the sample and simulate commands need.
// Step modes and mutator settings are checked later by pattern.New.
func (c Config) Validate() error {
	if issues := c.validate(); len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// ValidateRun additionally checks the settings used to send traffic.
func (c Config) ValidateRun() error {
	issues := c.validate()

	if strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "target is required")
	} else if u, err := url.Parse(c.TargetURL); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("target %q is not an absolute URL", c.TargetURL))
	}
	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Total < 0 {
		issues = append(issues, "total must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	switch c.Arrival {
	case "", ArrivalModelPattern, ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival model %q is not supported", c.Arrival))
	}
	if c.Arrival != "" && c.Arrival != ArrivalModelPattern && c.Rate != float64(int(c.Rate)) {
		issues = append(issues, "rate must be a whole number for uniform and poisson arrival")
	}
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func (c Config) validate() []string {
	var issues []string
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.MaxWait < 0 {
		issues = append(issues, "pacer.maxWait must be >= 0")
	}
	issues = append(issues, validatePattern(c.Pattern)...)
	issues = append(issues, validateJitter(c.Jitter)...)
	issues = append(issues, validateLog(c.Log)...)
	if _, err := threshold.ParseAll(c.Thresholds); err != nil {
		issues = append(issues, err.Error())
	}
	return issues
}

func validatePattern(p pattern.Config) []string {
	var issues []string
	if p.Duration <= 0 {
		issues = append(issues, "pattern.duration must be > 0")
	}
	if len(p.Steps) == 0 {
		issues = append(issues, "pattern.steps must contain at least one step")
	}
	seen := map[string]bool{}
	for i, step := range p.Steps {
		if step.ID != "" {
			if seen[step.ID] {
				issues = append(issues, fmt.Sprintf("pattern.steps[%d]: duplicate id %q", i, step.ID))
			}
			seen[step.ID] = true
		}
		if p.Duration > 0 {
			if start, end := offsetAt(step.Start, p.Duration), offsetAt(step.End, p.Duration); end < start {
				issues = append(issues, fmt.Sprintf("pattern.steps[%d]: end %s must not be before start %s", i, step.End, step.Start))
			}
		}
		if step.Transition.Percent < 0 || step.Transition.Percent > 100 {
			issues = append(issues, fmt.Sprintf("pattern.steps[%d].transition.percent must be between 0 and 100", i))
		}
	}
	switch p.Repeat.Align {
	case "", pattern.AlignFromStart, pattern.AlignCalendar:
	default:
		issues = append(issues, fmt.Sprintf("pattern.repeat.align %q is not supported", p.Repeat.Align))
	}
	switch p.Repeat.Until {
	case "", pattern.UntilForever:
	case pattern.UntilOccurrences:
		if p.Repeat.Occurrences < 1 {
			issues = append(issues, "pattern.repeat.occurrences must be >= 1 when until is occurrences")
		}
	default:
		issues = append(issues, fmt.Sprintf("pattern.repeat.until %q is not supported", p.Repeat.Until))
	}
	if p.Normalization.TolerancePct < 0 {
		issues = append(issues, "pattern.normalization.tolerancePct must be >= 0")
	}
	return issues
}

func offsetAt(o pattern.Offset, d time.Duration) time.Duration {
	v := o.At
	if !o.Absolute {
		v = time.Duration(o.Fraction * float64(d))
	}
	if v > d {
		v = d
	}
	if v < 0 {
		v = 0
	}
	return v
}

func validateJitter(j pacer.JitterConfig) []string {
	var issues []string
	switch j.Type {
	case "", pacer.JitterNone, pacer.JitterSequence, pacer.JitterPeriodic:
	default:
		issues = append(issues, fmt.Sprintf("jitter.type %q is not supported", j.Type))
	}
	if j.Max < 0 {
		issues = append(issues, "jitter.max must be >= 0")
	}
	if j.Period < 0 {
		issues = append(issues, "jitter.period must be >= 0")
	}
	return issues
}

func validateLog(l LogConfig) []string {
	var issues []string
	if l.Level != "" {
		if _, err := logrus.ParseLevel(l.Level); err != nil {
			issues = append(issues, fmt.Sprintf("log.level: %v", err))
		}
	}
	switch strings.ToLower(l.Format) {
	case "", "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("log.format %q is not supported (want text or json)", l.Format))
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing.sampleRate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol %q is not supported (want grpc or http)", t.Protocol))
	}
	return issues
}
