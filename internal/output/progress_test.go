package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/torosent/swarmpace/internal/metrics"
	"github.com/torosent/swarmpace/internal/pacer"
	"github.com/torosent/swarmpace/internal/pattern"
)

func TestProgressReporterStopWithoutStart(t *testing.T) {
	reporter := NewProgressReporter(metrics.NewCollector(), 100*time.Millisecond, &bytes.Buffer{})
	if reporter == nil {
		t.Fatal("Expected non-nil reporter")
	}
	reporter.Stop()
}

func TestProgressReporterFormatting(t *testing.T) {
	collector := metrics.NewCollector()
	collector.RecordRequest(50*time.Millisecond, nil)

	var buf syncBuffer
	reporter := NewProgressReporter(collector, 20*time.Millisecond, &buf)
	reporter.Start()
	time.Sleep(100 * time.Millisecond)
	reporter.Stop()

	if !strings.Contains(buf.String(), "Requests: 1") {
		t.Errorf("Expected 'Requests: 1' in progress output, got %q", buf.String())
	}
}

func TestProgressLineIncludesAdmissions(t *testing.T) {
	collector := metrics.NewCollector()
	collector.RecordAdmission(pacer.Result{
		Sample:      pattern.Sample{Multiplier: 1.5, StepID: "peak"},
		TargetRPS:   15,
		BucketLevel: 2.25,
	})
	line := progressLine(collector.Stats(time.Second))
	for _, want := range []string{"Admitted: 1", "Target: 15.0 rps", "Bucket: 2.25", "Step: peak"} {
		if !strings.Contains(line, want) {
			t.Errorf("progress line %q missing %q", line, want)
		}
	}
}
