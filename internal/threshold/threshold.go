// Package threshold asserts on the stats of a paced run, for example
// "admission:rate >= 9.5" or "admission_wait:p99 < 250".
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/torosent/swarmpace/internal/metrics"
)

// Threshold is one parsed assertion.
type Threshold struct {
	Metric    string
	Aggregate string
	Operator  string
	Value     float64
	Raw       string
}

// Result is the outcome of evaluating a Threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

type extractor func(metrics.Stats) float64

// catalog maps metric -> aggregate -> value. Latencies, waits and jitter are
// in milliseconds; rates are per second except request_failed:rate, which is
// a fraction.
var catalog = map[string]map[string]extractor{
	"admission": {
		"count":  func(s metrics.Stats) float64 { return float64(s.Admission.Count) },
		"rate":   func(s metrics.Stats) float64 { return s.Admission.EffectiveRPS },
		"target": func(s metrics.Stats) float64 { return s.Admission.MeanTargetRPS },
	},
	"admission_wait": {
		"p50": func(s metrics.Stats) float64 { return s.Admission.WaitP50Ms },
		"p99": func(s metrics.Stats) float64 { return s.Admission.WaitP99Ms },
		"max": func(s metrics.Stats) float64 { return s.Admission.WaitMaxMs },
	},
	"admission_jitter": {
		"p50": func(s metrics.Stats) float64 { return s.Admission.JitterP50Ms },
		"max": func(s metrics.Stats) float64 { return s.Admission.JitterMaxMs },
	},
	"request_duration": {
		"p50": func(s metrics.Stats) float64 { return s.P50LatencyMs },
		"p90": func(s metrics.Stats) float64 { return s.P90LatencyMs },
		"p99": func(s metrics.Stats) float64 { return s.P99LatencyMs },
		"avg": func(s metrics.Stats) float64 { return s.MeanLatencyMs },
		"min": func(s metrics.Stats) float64 { return s.MinLatencyMs },
		"max": func(s metrics.Stats) float64 { return s.MaxLatencyMs },
	},
	"request_failed": {
		"count": func(s metrics.Stats) float64 { return float64(s.Failures) },
		"rate": func(s metrics.Stats) float64 {
			if s.Total == 0 {
				return 0
			}
			return float64(s.Failures) / float64(s.Total)
		},
	},
	"requests": {
		"count": func(s metrics.Stats) float64 { return float64(s.Total) },
		"rate":  func(s metrics.Stats) float64 { return s.RequestsPerSec },
	},
}

var expr = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*(<=|>=|==|<|>)\s*([0-9]+(?:\.[0-9]+)?)$`)

// Parse reads "metric:aggregate operator value".
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold")
	}
	m := expr.FindStringSubmatch(s)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q (expected metric:aggregate operator value, e.g. 'admission:rate >= 9.5')", s)
	}
	aggregates, ok := catalog[m[1]]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric %q (supported: %s)", m[1], strings.Join(keys(catalog), ", "))
	}
	if _, ok := aggregates[m[2]]; !ok {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", m[2], m[1], strings.Join(keys(aggregates), ", "))
	}
	value, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %w", m[4], err)
	}
	return Threshold{Metric: m[1], Aggregate: m[2], Operator: m[3], Value: value, Raw: s}, nil
}

// ParseAll parses every entry and reports all failures together.
func ParseAll(raw []string) ([]Threshold, error) {
	var (
		out  []Threshold
		errs []string
	)
	for i, s := range raw {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		out = append(out, t)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return out, nil
}

// Evaluate checks every threshold against stats.
func Evaluate(thresholds []Threshold, stats metrics.Stats) []Result {
	results := make([]Result, 0, len(thresholds))
	for _, t := range thresholds {
		actual := catalog[t.Metric][t.Aggregate](stats)
		pass := compare(actual, t.Operator, t.Value)
		mark := "PASS"
		if !pass {
			mark = "FAIL"
		}
		results = append(results, Result{
			Threshold: t,
			Actual:    actual,
			Pass:      pass,
			Message:   fmt.Sprintf("%s %s (actual %.2f)", mark, t.Raw, actual),
		})
	}
	return results
}

// Failed counts the results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Pass {
			n++
		}
	}
	return n
}

func compare(actual float64, op string, expected float64) bool {
	const epsilon = 1e-9
	switch op {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected+epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected-epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
