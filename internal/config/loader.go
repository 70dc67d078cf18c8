package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/torosent/swarmpace/internal/pacer"
	"github.com/torosent/swarmpace/internal/pattern"
)

// Loader reads a scenario file and applies command-line overrides.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the file named by the "config" flag, if any, then applies every
// flag the user changed on fs. The result is not validated.
func (Loader) Load(fs *pflag.FlagSet) (*Config, error) {
	var configPath string
	if f := fs.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", configPath, err)
		}
	}

	cfg := defaults()
	cfg.ConfigFile = configPath
	if err := applySettings(cfg, v.AllSettings()); err != nil {
		if configPath != "" {
			return nil, fmt.Errorf("%s: %w", configPath, err)
		}
		return nil, err
	}
	if err := applyFlagOverrides(cfg, fs); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.Arrival = ArrivalModel(strings.ToLower(string(cfg.Arrival)))
	cfg.Jitter.Type = pacer.JitterType(strings.ToLower(string(cfg.Jitter.Type)))
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Rate:        1,
		Method:      http.MethodGet,
		Headers:     map[string]string{},
		Concurrency: 1,
		Timeout:     30 * time.Second,
		Arrival:     ArrivalModelPattern,
		Progress:    true,
		MaxWait:     DefaultMaxWait,
		Pattern: pattern.Config{
			Time: pattern.TimeConfig{Mode: pattern.TimeModeRealtime},
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{Protocol: "grpc", SampleRate: 1, ServiceName: "swarmpace"},
	}
}

func applySettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}
	if raw, ok := lookupSetting(settings, "pattern"); ok {
		if err := applyPattern(&cfg.Pattern, raw); err != nil {
			return fmt.Errorf("pattern: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "time"); ok {
		tc, err := parseTime(raw)
		if err != nil {
			return fmt.Errorf("time: %w", err)
		}
		cfg.Pattern.Time = tc
	}
	if raw, ok := lookupSetting(settings, "seeds"); ok {
		seeds, err := parseSeeds(raw)
		if err != nil {
			return fmt.Errorf("seeds: %w", err)
		}
		cfg.Pattern.Seeds = seeds
	}
	if raw, ok := lookupSetting(settings, "jitter"); ok {
		j, err := parseJitter(raw)
		if err != nil {
			return fmt.Errorf("jitter: %w", err)
		}
		cfg.Jitter = j
	}
	if raw, ok := lookupSetting(settings, "pacer"); ok {
		m, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("pacer: %w", err)
		}
		if raw, ok := m["maxwait"]; ok {
			d, err := asDuration(raw)
			if err != nil {
				return fmt.Errorf("pacer.maxWait: %w", err)
			}
			cfg.MaxWait = d
		}
	}

	if err := applyRunSettings(cfg, settings); err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "log"); ok {
		m, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("log: %w", err)
		}
		if raw, ok := m["level"]; ok {
			cfg.Log.Level, _ = asString(raw)
		}
		if raw, ok := m["format"]; ok {
			cfg.Log.Format, _ = asString(raw)
		}
	}
	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracing(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}
	return nil
}

func applyRunSettings(cfg *Config, settings map[string]interface{}) error {
	if raw, ok := lookupSetting(settings, "target"); ok {
		val, _ := asString(raw)
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "method"); ok {
		if val, _ := asString(raw); val != "" {
			cfg.Method = val
		}
	}
	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}
	if raw, ok := lookupSetting(settings, "body"); ok {
		cfg.Body, _ = asString(raw)
	}

	ints := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"concurrency"}, &cfg.Concurrency},
		{[]string{"total"}, &cfg.Total},
		{[]string{"retries"}, &cfg.Retries},
	}
	for _, f := range ints {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"duration", &cfg.Duration},
		{"timeout", &cfg.Timeout},
	}
	for _, f := range durations {
		if raw, ok := lookupSetting(settings, f.key); ok {
			d, err := asDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = d
		}
	}

	bools := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"jsonOutput", "json_output", "json-output"}, &cfg.JSONOutput},
		{[]string{"logErrors", "log_errors", "log-errors"}, &cfg.LogErrors},
		{[]string{"progress"}, &cfg.Progress},
	}
	for _, f := range bools {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		items, err := toInterfaceSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = cfg.Thresholds[:0]
		for _, item := range items {
			s, _ := asString(item)
			cfg.Thresholds = append(cfg.Thresholds, s)
		}
	}
	if raw, ok := lookupSetting(settings, "arrivalModel", "arrival_model", "arrival-model"); ok {
		val, _ := asString(raw)
		cfg.Arrival = ArrivalModel(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "metricsAddr", "metrics_addr", "metrics-addr"); ok {
		cfg.MetricsAddr, _ = asString(raw)
	}
	return nil
}

func applyPattern(p *pattern.Config, raw interface{}) error {
	m, err := toStringKeyMap(raw)
	if err != nil {
		return err
	}
	if raw, ok := m["duration"]; ok {
		d, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		p.Duration = d
	}
	if raw, ok := m["steps"]; ok {
		items, err := toInterfaceSlice(raw)
		if err != nil {
			return fmt.Errorf("steps: %w", err)
		}
		p.Steps = p.Steps[:0]
		for i, item := range items {
			step, err := parseStep(item)
			if err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
			p.Steps = append(p.Steps, step)
		}
	}
	if raw, ok := m["repeat"]; ok {
		rep, err := parseRepeat(raw)
		if err != nil {
			return fmt.Errorf("repeat: %w", err)
		}
		p.Repeat = rep
	}
	if raw, ok := m["normalization"]; ok {
		nm, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("normalization: %w", err)
		}
		if p.Normalization.Enabled, err = asBool(nm["enabled"]); err != nil {
			return fmt.Errorf("normalization.enabled: %w", err)
		}
		if p.Normalization.TolerancePct, err = asFloat64(nm["tolerancepct"]); err != nil {
			return fmt.Errorf("normalization.tolerancePct: %w", err)
		}
	}
	if raw, ok := m["globalmutators"]; ok {
		items, err := toInterfaceSlice(raw)
		if err != nil {
			return fmt.Errorf("globalMutators: %w", err)
		}
		p.GlobalMutators = nil
		for i, item := range items {
			gm, err := toStringKeyMap(item)
			if err != nil {
				return fmt.Errorf("globalMutators[%d]: %w", i, err)
			}
			kind, _ := asString(gm["type"])
			settings, err := optionalMap(gm["settings"])
			if err != nil {
				return fmt.Errorf("globalMutators[%d].settings: %w", i, err)
			}
			p.GlobalMutators = append(p.GlobalMutators, pattern.GlobalMutatorConfig{
				Type:     pattern.GlobalMutatorType(strings.TrimSpace(kind)),
				Settings: settings,
			})
		}
	}
	return nil
}

func parseStep(raw interface{}) (pattern.StepConfig, error) {
	m, err := toStringKeyMap(raw)
	if err != nil {
		return pattern.StepConfig{}, err
	}
	var step pattern.StepConfig
	step.ID, _ = asString(m["id"])
	mode, _ := asString(m["mode"])
	step.Mode = pattern.StepMode(strings.TrimSpace(mode))

	bounds := m
	if raw, ok := m["range"]; ok {
		if bounds, err = toStringKeyMap(raw); err != nil {
			return step, fmt.Errorf("range: %w", err)
		}
	}
	if step.Start, err = asOffset(bounds["start"]); err != nil {
		return step, fmt.Errorf("start: %w", err)
	}
	if raw, ok := bounds["end"]; ok {
		if step.End, err = asOffset(raw); err != nil {
			return step, fmt.Errorf("end: %w", err)
		}
	} else {
		step.End = pattern.Fraction(1)
	}

	if raw, ok := m["params"]; ok && raw != nil {
		pm, err := toStringKeyMap(raw)
		if err != nil {
			return step, fmt.Errorf("params: %w", err)
		}
		step.Params = make(map[string]float64, len(pm))
		for k, v := range pm {
			f, err := asFloat64(v)
			if err != nil {
				return step, fmt.Errorf("params.%s: %w", k, err)
			}
			step.Params[k] = f
		}
	}

	if raw, ok := m["mutators"]; ok {
		items, err := toInterfaceSlice(raw)
		if err != nil {
			return step, fmt.Errorf("mutators: %w", err)
		}
		for i, item := range items {
			mm, err := toStringKeyMap(item)
			if err != nil {
				return step, fmt.Errorf("mutators[%d]: %w", i, err)
			}
			kind, _ := asString(mm["type"])
			seed, _ := asString(mm["seed"])
			settings, err := optionalMap(mm["settings"])
			if err != nil {
				return step, fmt.Errorf("mutators[%d].settings: %w", i, err)
			}
			step.Mutators = append(step.Mutators, pattern.StepMutatorConfig{
				Type:     pattern.MutatorType(strings.TrimSpace(kind)),
				Settings: settings,
				Seed:     seed,
			})
		}
	}

	if raw, ok := m["transition"]; ok && raw != nil {
		tm, err := toStringKeyMap(raw)
		if err != nil {
			return step, fmt.Errorf("transition: %w", err)
		}
		kind, _ := asString(tm["type"])
		step.Transition.Type = pattern.TransitionType(strings.TrimSpace(kind))
		if step.Transition.Percent, err = asFloat64(tm["percent"]); err != nil {
			return step, fmt.Errorf("transition.percent: %w", err)
		}
		if step.Transition.Duration, err = asDuration(tm["duration"]); err != nil {
			return step, fmt.Errorf("transition.duration: %w", err)
		}
	}
	return step, nil
}

// asOffset accepts a numeric fraction or anything pattern.ParseOffset reads.
func asOffset(value interface{}) (pattern.Offset, error) {
	switch v := value.(type) {
	case nil:
		return pattern.Fraction(0), nil
	case string:
		return pattern.ParseOffset(v)
	case time.Duration:
		return pattern.At(v), nil
	default:
		f, err := asFloat64(v)
		if err != nil {
			return pattern.Offset{}, err
		}
		return pattern.Fraction(f), nil
	}
}

func parseRepeat(raw interface{}) (pattern.RepeatConfig, error) {
	var rep pattern.RepeatConfig
	m, err := toStringKeyMap(raw)
	if err != nil {
		return rep, err
	}
	if rep.Enabled, err = asBool(m["enabled"]); err != nil {
		return rep, fmt.Errorf("enabled: %w", err)
	}
	align, _ := asString(m["align"])
	rep.Align = pattern.RepeatAlignment(strings.ToLower(strings.TrimSpace(align)))
	until, _ := asString(m["until"])
	rep.Until = pattern.RepeatUntil(strings.ToLower(strings.TrimSpace(until)))
	if rep.Occurrences, err = asInt(m["occurrences"]); err != nil {
		return rep, fmt.Errorf("occurrences: %w", err)
	}
	return rep, nil
}

func parseTime(raw interface{}) (pattern.TimeConfig, error) {
	tc := pattern.TimeConfig{Mode: pattern.TimeModeRealtime}
	m, err := toStringKeyMap(raw)
	if err != nil {
		return tc, err
	}
	if mode, _ := asString(m["mode"]); strings.TrimSpace(mode) != "" {
		tc.Mode = pattern.TimeMode(strings.ToLower(strings.TrimSpace(mode)))
	}
	if raw, ok := m["warpfactor"]; ok && raw != nil {
		s, _ := asString(raw)
		if tc.WarpFactor, err = pattern.ParseWarpFactor(s); err != nil {
			return tc, err
		}
	}
	if zone, _ := asString(m["timezone"]); strings.TrimSpace(zone) != "" {
		if tc.Location, err = time.LoadLocation(strings.TrimSpace(zone)); err != nil {
			return tc, fmt.Errorf("timezone: %w", err)
		}
	}
	return tc, nil
}

func parseSeeds(raw interface{}) (pattern.SeedsConfig, error) {
	var seeds pattern.SeedsConfig
	m, err := toStringKeyMap(raw)
	if err != nil {
		return seeds, err
	}
	if v, ok := m["default"]; ok {
		seeds.Default, _ = asString(v)
	} else {
		seeds.Default, _ = asString(m["defaultseed"])
	}
	if raw, ok := m["overrides"]; ok && raw != nil {
		if seeds.Overrides, err = asStringMap(raw); err != nil {
			return seeds, fmt.Errorf("overrides: %w", err)
		}
	}
	return seeds, nil
}

func parseJitter(raw interface{}) (pacer.JitterConfig, error) {
	var j pacer.JitterConfig
	m, err := toStringKeyMap(raw)
	if err != nil {
		return j, err
	}
	kind, _ := asString(m["type"])
	j.Type = pacer.JitterType(strings.TrimSpace(kind))
	if j.Max, err = asDuration(m["max"]); err != nil {
		return j, fmt.Errorf("max: %w", err)
	}
	if j.Period, err = asDuration(m["period"]); err != nil {
		return j, fmt.Errorf("period: %w", err)
	}
	j.Seed, _ = asString(m["seed"])
	return j, nil
}

func applyTracing(t *TracingConfig, raw interface{}) error {
	m, err := toStringKeyMap(raw)
	if err != nil {
		return err
	}
	if v, ok := m["endpoint"]; ok {
		t.Endpoint, _ = asString(v)
	}
	if v, ok := m["protocol"]; ok {
		t.Protocol, _ = asString(v)
	}
	if v, ok := m["servicename"]; ok {
		t.ServiceName, _ = asString(v)
	}
	if v, ok := m["insecure"]; ok {
		if t.Insecure, err = asBool(v); err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
	}
	if v, ok := m["propagate"]; ok {
		if t.Propagate, err = asBool(v); err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
	}
	if v, ok := m["samplerate"]; ok {
		if t.SampleRate, err = asFloat64(v); err != nil {
			return fmt.Errorf("sampleRate: %w", err)
		}
	}
	return nil
}

func optionalMap(raw interface{}) (map[string]interface{}, error) {
	if raw == nil {
		return map[string]interface{}{}, nil
	}
	return toStringKeyMap(raw)
}
