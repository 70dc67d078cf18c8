package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/torosent/swarmpace/internal/pacer"
	"github.com/torosent/swarmpace/internal/pattern"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}
	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsFloat64(t *testing.T) {
	tests := []struct {
		input interface{}
		want  float64
	}{
		{2.5, 2.5},
		{7, 7},
		{uint64(3), 3},
		{" 0.25 ", 0.25},
		{nil, 0},
	}
	for _, tt := range tests {
		got, err := asFloat64(tt.input)
		if err != nil {
			t.Errorf("asFloat64(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asFloat64(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
	if _, err := asFloat64([]int{1}); err == nil {
		t.Error("asFloat64([]int) expected error")
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second},
		{1.5, 1500 * time.Millisecond},
		{nil, 0},
	}
	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsOffset(t *testing.T) {
	tests := []struct {
		input interface{}
		want  pattern.Offset
	}{
		{nil, pattern.Fraction(0)},
		{0.5, pattern.Fraction(0.5)},
		{1, pattern.Fraction(1)},
		{"25%", pattern.Fraction(0.25)},
		{"90m", pattern.At(90 * time.Minute)},
	}
	for _, tt := range tests {
		got, err := asOffset(tt.input)
		if err != nil {
			t.Errorf("asOffset(%v) error = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("asOffset(%v) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
	if _, err := asOffset("soon"); err == nil {
		t.Error("asOffset(soon) expected error")
	}
}

func TestParseStep(t *testing.T) {
	step, err := parseStep(map[string]interface{}{
		"id":     "peak",
		"mode":   "sinus",
		"range":  map[string]interface{}{"start": "50%", "end": "2h"},
		"params": map[string]interface{}{"center": 1, "amplitude": "0.4", "cycles": 2},
		"mutators": []interface{}{
			map[string]interface{}{"type": "noise", "seed": "n1", "settings": map[string]interface{}{"pct": 5, "bucketMs": 1000}},
			map[string]interface{}{"type": "cap"},
		},
		"transition": map[string]interface{}{"type": "smooth", "percent": 10, "duration": "30s"},
	})
	if err != nil {
		t.Fatalf("parseStep() error = %v", err)
	}
	if step.ID != "peak" || step.Mode != pattern.StepModeSinus {
		t.Errorf("id/mode = %q/%q", step.ID, step.Mode)
	}
	if step.Start != pattern.Fraction(0.5) || step.End != pattern.At(2*time.Hour) {
		t.Errorf("range = %+v..%+v", step.Start, step.End)
	}
	if step.Params["amplitude"] != 0.4 || step.Params["cycles"] != 2 {
		t.Errorf("params = %v", step.Params)
	}
	if len(step.Mutators) != 2 {
		t.Fatalf("mutators = %d, want 2", len(step.Mutators))
	}
	if step.Mutators[0].Seed != "n1" || step.Mutators[0].Settings["bucketms"] != 1000 {
		t.Errorf("noise mutator = %+v", step.Mutators[0])
	}
	if step.Mutators[1].Settings == nil {
		t.Error("missing settings should decode to an empty map")
	}
	if step.Transition.Type != pattern.TransitionSmooth || step.Transition.Percent != 10 || step.Transition.Duration != 30*time.Second {
		t.Errorf("transition = %+v", step.Transition)
	}
}

func TestParseStepDefaultsToWholeCycle(t *testing.T) {
	step, err := parseStep(map[string]interface{}{"mode": "flat"})
	if err != nil {
		t.Fatalf("parseStep() error = %v", err)
	}
	if step.Start != pattern.Fraction(0) || step.End != pattern.Fraction(1) {
		t.Errorf("range = %+v..%+v, want 0..1", step.Start, step.End)
	}
}

func TestParseTime(t *testing.T) {
	tc, err := parseTime(map[string]interface{}{"mode": "WARP", "warpfactor": "12.5", "timezone": "UTC"})
	if err != nil {
		t.Fatalf("parseTime() error = %v", err)
	}
	if tc.Mode != pattern.TimeModeWarp || tc.WarpFactor.String() != "12.5" || tc.Location != time.UTC {
		t.Errorf("parseTime() = %+v", tc)
	}

	if _, err := parseTime(map[string]interface{}{"warpfactor": -2}); err == nil {
		t.Error("negative warp factor expected error")
	}
	if _, err := parseTime(map[string]interface{}{"timezone": "Mars/Olympus"}); err == nil {
		t.Error("unknown timezone expected error")
	}
}

func TestApplySettingsNestedBlocks(t *testing.T) {
	cfg := defaults()
	err := applySettings(cfg, map[string]interface{}{
		"rate":   12.5,
		"seeds":  map[string]interface{}{"default": "base", "overrides": map[string]interface{}{"burst": "b"}},
		"jitter": map[string]interface{}{"type": "periodic", "max": "40ms", "period": "5s", "seed": "j"},
		"pacer":  map[string]interface{}{"maxwait": "250ms"},
		"log":    map[string]interface{}{"level": "debug", "format": "json"},
		"tracing": map[string]interface{}{
			"endpoint": "localhost:4317", "samplerate": 0.5, "insecure": true,
		},
		"pattern": map[string]interface{}{
			"duration":       "1h",
			"repeat":         map[string]interface{}{"enabled": true, "align": "Calendar", "until": "occurrences", "occurrences": 3},
			"normalization":  map[string]interface{}{"enabled": true, "tolerancepct": 5},
			"globalmutators": []interface{}{map[string]interface{}{"type": "spike", "settings": map[string]interface{}{"at": "12:00"}}},
			"steps":          []interface{}{map[string]interface{}{"mode": "flat"}},
		},
	})
	if err != nil {
		t.Fatalf("applySettings() error = %v", err)
	}
	if cfg.Rate != 12.5 {
		t.Errorf("Rate = %v, want 12.5", cfg.Rate)
	}
	if cfg.Pattern.Seeds.Default != "base" || cfg.Pattern.Seeds.Overrides["burst"] != "b" {
		t.Errorf("Seeds = %+v", cfg.Pattern.Seeds)
	}
	want := pacer.JitterConfig{Type: pacer.JitterPeriodic, Max: 40 * time.Millisecond, Period: 5 * time.Second, Seed: "j"}
	if cfg.Jitter != want {
		t.Errorf("Jitter = %+v, want %+v", cfg.Jitter, want)
	}
	if cfg.MaxWait != 250*time.Millisecond {
		t.Errorf("MaxWait = %s", cfg.MaxWait)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if !cfg.Tracing.Enabled() || cfg.Tracing.SampleRate != 0.5 || !cfg.Tracing.Insecure {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	p := cfg.Pattern
	if p.Duration != time.Hour || len(p.Steps) != 1 || len(p.GlobalMutators) != 1 {
		t.Errorf("Pattern = %+v", p)
	}
	if !p.Repeat.Enabled || p.Repeat.Align != pattern.AlignCalendar || p.Repeat.Occurrences != 3 {
		t.Errorf("Repeat = %+v", p.Repeat)
	}
	if !p.Normalization.Enabled || p.Normalization.TolerancePct != 5 {
		t.Errorf("Normalization = %+v", p.Normalization)
	}
}

func TestApplySettingsReportsPath(t *testing.T) {
	err := applySettings(defaults(), map[string]interface{}{
		"pattern": map[string]interface{}{
			"steps": []interface{}{map[string]interface{}{"params": map[string]interface{}{"factor": "lots"}}},
		},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.HasPrefix(got, "pattern: steps[0]: params.factor") {
		t.Errorf("error = %q", got)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Float64("rate", 1, "")
	fs.String("warp", "", "")
	fs.String("seed", "", "")
	fs.Duration("jitter-max", 0, "")
	fs.StringSlice("header", nil, "")
	fs.Int("concurrency", 1, "")

	if err := fs.Parse([]string{"--rate", "40", "--warp", "60", "--seed", "cli", "--jitter-max", "15ms", "--header", "x-trace=on"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg := defaults()
	cfg.Concurrency = 8
	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}
	if cfg.Rate != 40 {
		t.Errorf("Rate = %v, want 40", cfg.Rate)
	}
	if cfg.Pattern.Time.Mode != pattern.TimeModeWarp || cfg.Pattern.Time.WarpFactor.String() != "60" {
		t.Errorf("Time = %+v", cfg.Pattern.Time)
	}
	if cfg.Pattern.Seeds.Default != "cli" {
		t.Errorf("Seeds.Default = %q", cfg.Pattern.Seeds.Default)
	}
	if cfg.Jitter.Max != 15*time.Millisecond {
		t.Errorf("Jitter.Max = %s", cfg.Jitter.Max)
	}
	if cfg.Headers["X-Trace"] != "on" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("unchanged flag overwrote Concurrency: %d", cfg.Concurrency)
	}
}

func TestApplyFlagOverridesRejectsBadHeader(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringSlice("header", nil, "")
	if err := fs.Parse([]string{"--header", "novalue"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := applyFlagOverrides(defaults(), fs); err == nil {
		t.Error("expected error for header without '='")
	}
}
