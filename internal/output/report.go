package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/torosent/swarmpace/internal/metrics"
	"github.com/torosent/swarmpace/internal/threshold"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Paced Run Results ---")
	fmt.Fprintf(w, "Total Requests:    %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	if stats.Total > 0 {
		fmt.Fprintln(w, "\nLatency:")
		fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
		fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
		fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
		fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
		fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
		fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)
	}
	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, row := range sortedErrors(stats.Errors) {
			fmt.Fprintf(w, "  %s: %d\n", row.label, row.count)
		}
	}
	printAdmissions(w, stats.Admission)
}

func printAdmissions(w io.Writer, a metrics.AdmissionStats) {
	if a.Count == 0 {
		return
	}
	fmt.Fprintln(w, "\nAdmissions:")
	fmt.Fprintf(w, "  Granted:         %d\n", a.Count)
	fmt.Fprintf(w, "  Effective RPS:   %.2f\n", a.EffectiveRPS)
	fmt.Fprintf(w, "  Mean target RPS: %.2f\n", a.MeanTargetRPS)
	fmt.Fprintf(w, "  Last target RPS: %.2f (multiplier %.4f)\n", a.LastTargetRPS, a.LastMultiplier)
	fmt.Fprintf(w, "  Bucket level:    %.3f\n", a.LastBucketLevel)
	fmt.Fprintf(w, "  Wait P50/P99/Max: %.2fms / %.2fms / %.2fms\n", a.WaitP50Ms, a.WaitP99Ms, a.WaitMaxMs)
	fmt.Fprintf(w, "  Jitter P50/Max:  %.2fms / %.2fms\n", a.JitterP50Ms, a.JitterMaxMs)
	if len(a.Steps) > 0 {
		fmt.Fprintln(w, "  By step:")
		for _, s := range a.Steps {
			share := float64(s.Count) / float64(a.Count) * 100
			fmt.Fprintf(w, "    - %s: %d (%.1f%%)\n", s.Step, s.Count, share)
		}
	}
}

// PrintThresholds lists assertion outcomes in evaluation order.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
	if failed := threshold.Failed(results); failed > 0 {
		fmt.Fprintf(w, "  %d of %d failed\n", failed, len(results))
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, stats metrics.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

type errorRow struct {
	label string
	count int
}

func sortedErrors(errs map[string]int) []errorRow {
	rows := make([]errorRow, 0, len(errs))
	for label, n := range errs {
		rows = append(rows, errorRow{label, n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count == rows[j].count {
			return rows[i].label < rows[j].label
		}
		return rows[i].count > rows[j].count
	})
	return rows
}
