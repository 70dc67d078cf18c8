package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/torosent/swarmpace/internal/pacer"
	"github.com/torosent/swarmpace/internal/pattern"
)

// RegisterFlags adds the scenario flags shared by every command.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("config", "", "Path to scenario file (YAML or JSON)")
	flags.Float64P("rate", "r", 1, "Base admissions per second before the pattern multiplier")
	flags.Duration("pattern-duration", 0, "Override the pattern cycle length")
	flags.String("warp", "", "Run the profile clock this many times faster than real time")
	flags.String("timezone", "", "IANA zone used for calendar alignment")
	flags.String("seed", "", "Default seed for mutators and jitter")
	flags.String("jitter", "", "Jitter type: none, sequence or periodic")
	flags.Duration("jitter-max", 0, "Upper bound of the post-admission jitter delay")
	flags.Duration("jitter-period", 0, "Envelope period for periodic jitter")
	flags.Duration("max-wait", DefaultMaxWait, "Cap a single pacer sleep; the wait is sized at the current rate, so 0 (uncapped) can stall for minutes on a ramp that starts near zero")
}

// RegisterRunFlags adds the flags used when sending traffic.
func RegisterRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("target", "", "Target URL")
	flags.String("method", http.MethodGet, "HTTP method to use")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body payload")
	flags.IntP("concurrency", "c", 1, "Number of concurrent workers")
	flags.DurationP("duration", "d", 0, "How long to run (e.g. 30s, 1m; 0 means until total or interrupted)")
	flags.IntP("total", "t", 0, "Total number of requests to send (0 means unlimited)")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")
	flags.Int("retries", 0, "Number of retries per request")
	flags.String("arrival-model", string(ArrivalModelPattern), "Arrival model: pattern, uniform or poisson")
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("log-errors", false, "Log each failed request")
	flags.Bool("progress", true, "Print periodic progress lines")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("tracing-endpoint", "", "OTLP collector endpoint; tracing is off when empty")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1, "Fraction of admissions traced (0.0 to 1.0)")
	flags.Bool("tracing-propagate", false, "Inject trace context into outgoing requests")
}

// RegisterThresholdFlags adds the assertions checked after a run.
func RegisterThresholdFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("threshold", nil, "Assertion such as 'admission:rate >= 9.5' (repeatable)")
}

// RegisterLogFlags adds logging flags, typically as persistent root flags.
func RegisterLogFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "info", "Log level: trace, debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
}

// applyFlagOverrides copies every changed flag onto cfg. Flags that were not
// registered on fs are skipped.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	changed := func(name string) bool {
		return fs.Lookup(name) != nil && fs.Changed(name)
	}

	if changed("rate") {
		val, err := fs.GetFloat64("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if changed("pattern-duration") {
		val, err := fs.GetDuration("pattern-duration")
		if err != nil {
			return err
		}
		cfg.Pattern.Duration = val
	}
	if changed("warp") {
		val, err := fs.GetString("warp")
		if err != nil {
			return err
		}
		factor, err := pattern.ParseWarpFactor(val)
		if err != nil {
			return err
		}
		cfg.Pattern.Time.Mode = pattern.TimeModeWarp
		cfg.Pattern.Time.WarpFactor = factor
	}
	if changed("timezone") {
		val, err := fs.GetString("timezone")
		if err != nil {
			return err
		}
		loc, err := time.LoadLocation(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
		cfg.Pattern.Time.Location = loc
	}
	if changed("seed") {
		val, err := fs.GetString("seed")
		if err != nil {
			return err
		}
		cfg.Pattern.Seeds.Default = val
	}
	if changed("jitter") {
		val, err := fs.GetString("jitter")
		if err != nil {
			return err
		}
		cfg.Jitter.Type = pacer.JitterType(strings.TrimSpace(val))
	}
	for name, dst := range map[string]*time.Duration{
		"jitter-max":    &cfg.Jitter.Max,
		"jitter-period": &cfg.Jitter.Period,
		"max-wait":      &cfg.MaxWait,
		"duration":      &cfg.Duration,
		"timeout":       &cfg.Timeout,
	} {
		if !changed(name) {
			continue
		}
		val, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = val
	}
	for name, dst := range map[string]*string{
		"target":           &cfg.TargetURL,
		"method":           &cfg.Method,
		"body":             &cfg.Body,
		"metrics-addr":     &cfg.MetricsAddr,
		"log-level":        &cfg.Log.Level,
		"log-format":       &cfg.Log.Format,
		"tracing-endpoint": &cfg.Tracing.Endpoint,
		"tracing-protocol": &cfg.Tracing.Protocol,
	} {
		if !changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(val)
	}
	for name, dst := range map[string]*int{
		"concurrency": &cfg.Concurrency,
		"total":       &cfg.Total,
		"retries":     &cfg.Retries,
	} {
		if !changed(name) {
			continue
		}
		val, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = val
	}
	for name, dst := range map[string]*bool{
		"json-output":       &cfg.JSONOutput,
		"log-errors":        &cfg.LogErrors,
		"progress":          &cfg.Progress,
		"tracing-insecure":  &cfg.Tracing.Insecure,
		"tracing-propagate": &cfg.Tracing.Propagate,
	} {
		if !changed(name) {
			continue
		}
		val, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = val
	}
	if changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival = ArrivalModel(strings.TrimSpace(val))
	}
	if changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	if changed("threshold") {
		vals, err := fs.GetStringArray("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, vals...)
	}

	if changed("header") {
		vals, err := fs.GetStringSlice("header")
		if err != nil {
			return err
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}
	return nil
}
