package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/torosent/swarmpace/internal/config"
	"github.com/torosent/swarmpace/internal/pacer"
	"github.com/torosent/swarmpace/internal/pattern"
)

func newCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	config.RegisterFlags(cmd)
	config.RegisterRunFlags(cmd)
	config.RegisterLogFlags(cmd.Flags())
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return cmd
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load(newCommand(t).Flags())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Rate != 1 {
		t.Errorf("Rate = %v, want 1", cfg.Rate)
	}
	if cfg.Method != "GET" {
		t.Errorf("Method = %q, want GET", cfg.Method)
	}
	if cfg.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", cfg.Concurrency)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
	if cfg.Arrival != config.ArrivalModelPattern {
		t.Errorf("Arrival = %q, want pattern", cfg.Arrival)
	}
	if cfg.Pattern.Time.Mode != pattern.TimeModeRealtime {
		t.Errorf("Time.Mode = %q, want realtime", cfg.Pattern.Time.Mode)
	}
	if cfg.Tracing.Enabled() {
		t.Error("tracing enabled without endpoint")
	}
	if len(cfg.Headers) != 0 {
		t.Errorf("Headers len = %d, want 0", len(cfg.Headers))
	}
	if cfg.MaxWait != config.DefaultMaxWait {
		t.Errorf("MaxWait = %s, want %s", cfg.MaxWait, config.DefaultMaxWait)
	}
}

const scenarioYAML = `
rate: 20
time:
  mode: warp
  warpFactor: 3600
  timezone: UTC
seeds:
  default: office
  overrides:
    noise: quiet
jitter:
  type: sequence
  max: 25ms
pattern:
  duration: 24h
  repeat:
    enabled: true
    align: calendar
  normalization:
    enabled: true
    tolerancePct: 10
  steps:
    - id: night
      range: {start: 0, end: 7h}
      mode: flat
      params: {factor: 0.2}
    - id: morning
      start: 7h
      end: 50%
      mode: ramp
      params: {from: 0.2, to: 1.5}
      transition: {type: linear, percent: 20}
    - id: afternoon
      start: 0.5
      end: 1
      mode: sinus
      params: {center: 1, amplitude: 0.3, cycles: 2}
      mutators:
        - type: noise
          settings: {pct: 5, bucketMs: 60000}
  globalMutators:
    - type: spike
      settings: {at: "12:00", width: 30m, liftPct: 50}
target: https://api.example.com/orders
concurrency: 4
headers:
  accept: application/json
`

func TestLoadScenarioYAML(t *testing.T) {
	path := writeFile(t, "scenario.yaml", scenarioYAML)
	cmd := newCommand(t, "--config", path, "--concurrency", "9", "--jitter-max", "5ms")

	cfg, err := config.NewLoader().Load(cmd.Flags())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
	if cfg.Rate != 20 {
		t.Errorf("Rate = %v, want 20", cfg.Rate)
	}
	if cfg.Pattern.Time.Mode != pattern.TimeModeWarp || cfg.Pattern.Time.WarpFactor.IntPart() != 3600 {
		t.Errorf("Time = %+v", cfg.Pattern.Time)
	}
	if cfg.Pattern.Seeds.Default != "office" || cfg.Pattern.Seeds.Overrides["noise"] != "quiet" {
		t.Errorf("Seeds = %+v", cfg.Pattern.Seeds)
	}
	if cfg.Jitter.Type != pacer.JitterSequence || cfg.Jitter.Max != 5*time.Millisecond {
		t.Errorf("Jitter = %+v, want sequence with flag override 5ms", cfg.Jitter)
	}
	if got := len(cfg.Pattern.Steps); got != 3 {
		t.Fatalf("Steps = %d, want 3", got)
	}
	morning := cfg.Pattern.Steps[1]
	if morning.Start != pattern.At(7*time.Hour) || morning.End != pattern.Fraction(0.5) {
		t.Errorf("morning range = %+v..%+v", morning.Start, morning.End)
	}
	if morning.Transition.Type != pattern.TransitionLinear || morning.Transition.Percent != 20 {
		t.Errorf("morning transition = %+v", morning.Transition)
	}
	if cfg.Concurrency != 9 {
		t.Errorf("Concurrency = %d, want flag value 9", cfg.Concurrency)
	}
	if cfg.Headers["Accept"] != "application/json" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
	if err := cfg.ValidateRun(); err != nil {
		t.Fatalf("ValidateRun() error = %v", err)
	}

	tl, err := pattern.New(cfg.Pattern, pattern.Options{RunStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("pattern.New() error = %v", err)
	}
	if ids := tl.StepIDs(); len(ids) != 3 || ids[0] != "night" {
		t.Errorf("StepIDs() = %v", ids)
	}
}

func TestLoadScenarioJSON(t *testing.T) {
	path := writeFile(t, "scenario.json", `{
		"rate": 5,
		"pattern": {"duration": "10m", "steps": [{"mode": "duty", "params": {"onMs": 1000, "offMs": 4000}}]},
		"arrivalModel": "Poisson",
		"jsonOutput": true
	}`)
	cfg, err := config.NewLoader().Load(newCommand(t, "--config", path, "--method", "post").Flags())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Method != "POST" {
		t.Errorf("Method = %q, want POST", cfg.Method)
	}
	if cfg.Arrival != config.ArrivalModelPoisson {
		t.Errorf("Arrival = %q, want poisson", cfg.Arrival)
	}
	if !cfg.JSONOutput {
		t.Error("JSONOutput = false, want true")
	}
	if cfg.Pattern.Steps[0].Params["onms"] != 1000 {
		t.Errorf("Params = %v", cfg.Pattern.Steps[0].Params)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.NewLoader().Load(newCommand(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")).Flags())
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
}

func TestLoadInvalidWarpFlag(t *testing.T) {
	_, err := config.NewLoader().Load(newCommand(t, "--warp", "-3").Flags())
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
}

func validScenario() config.Config {
	return config.Config{
		Rate: 10,
		Pattern: pattern.Config{
			Duration: time.Minute,
			Steps:    []pattern.StepConfig{{ID: "a", Start: pattern.Fraction(0), End: pattern.Fraction(1), Mode: pattern.StepModeFlat}},
		},
		TargetURL:   "https://example.com",
		Concurrency: 1,
	}
}

func TestConfigValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		run    bool
		want   []string
	}{
		{
			name:   "empty pattern",
			mutate: func(c *config.Config) { c.Pattern = pattern.Config{} },
			want:   []string{"pattern.duration", "pattern.steps"},
		},
		{
			name: "negative values",
			mutate: func(c *config.Config) {
				c.Rate = -1
				c.MaxWait = -time.Second
				c.Jitter = pacer.JitterConfig{Type: "gaussian", Max: -1, Period: -1}
			},
			want: []string{"rate", "maxWait", "jitter.type", "jitter.max", "jitter.period"},
		},
		{
			name: "step issues",
			mutate: func(c *config.Config) {
				c.Pattern.Steps = append(c.Pattern.Steps, pattern.StepConfig{
					ID:         "a",
					Start:      pattern.Fraction(0.8),
					End:        pattern.At(time.Second),
					Transition: pattern.TransitionConfig{Percent: 150},
				})
			},
			want: []string{"duplicate id", "must not be before start", "transition.percent"},
		},
		{
			name: "repeat issues",
			mutate: func(c *config.Config) {
				c.Pattern.Repeat = pattern.RepeatConfig{Enabled: true, Align: "weekly", Until: pattern.UntilOccurrences}
			},
			want: []string{"repeat.align", "repeat.occurrences"},
		},
		{
			name:   "threshold",
			mutate: func(c *config.Config) { c.Thresholds = []string{"admission:rate >= 1", "latency < 5"} },
			want:   []string{"threshold[1]"},
		},
		{
			name:   "log",
			mutate: func(c *config.Config) { c.Log = config.LogConfig{Level: "loud", Format: "xml"} },
			want:   []string{"log.level", "log.format"},
		},
		{
			name: "run settings",
			run:  true,
			mutate: func(c *config.Config) {
				c.TargetURL = "example.com"
				c.Concurrency = 0
				c.Total = -10
				c.Timeout = -1
				c.Retries = -1
				c.Arrival = "bursty"
				c.Tracing = config.TracingConfig{SampleRate: 2, Protocol: "udp"}
			},
			want: []string{"absolute URL", "concurrency", "total", "timeout", "retries", "arrival model", "sampleRate", "tracing.protocol"},
		},
		{
			name:   "missing target",
			run:    true,
			mutate: func(c *config.Config) { c.TargetURL = "" },
			want:   []string{"target is required"},
		},
		{
			name: "fractional rate with uniform arrival",
			run:  true,
			mutate: func(c *config.Config) {
				c.Rate = 2.5
				c.Arrival = config.ArrivalModelUniform
			},
			want: []string{"whole number"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validScenario()
			tc.mutate(&cfg)
			var err error
			if tc.run {
				err = cfg.ValidateRun()
			} else {
				err = cfg.Validate()
			}
			if err == nil {
				t.Fatalf("validation error = nil, want error")
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T, want ValidationError", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q missing %q", err.Error(), want)
				}
			}
		})
	}
}

func TestZeroLengthStepIsValid(t *testing.T) {
	cfg := validScenario()
	cfg.Pattern.Steps = append(cfg.Pattern.Steps, pattern.StepConfig{
		ID:     "blip",
		Start:  pattern.Fraction(0.5),
		End:    pattern.Fraction(0.5),
		Mode:   pattern.StepModeDuty,
		Params: map[string]float64{"high": 3},
	})
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, err := pattern.New(cfg.Pattern, pattern.Options{}); err != nil {
		t.Fatalf("pattern.New() error = %v", err)
	}
}

func TestValidScenarioPasses(t *testing.T) {
	cfg := validScenario()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := cfg.ValidateRun(); err != nil {
		t.Fatalf("ValidateRun() error = %v", err)
	}
	cfg.TargetURL = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() should not require a target: %v", err)
	}
}
