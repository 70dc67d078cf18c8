package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/torosent/swarmpace/internal/metrics"
)

// ProgressReporter redraws a single status line on a fixed interval until
// stopped.
type ProgressReporter struct {
	collector *metrics.Collector
	interval  time.Duration
	w         io.Writer

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stop      chan struct{}
	done      chan struct{}
	begin     time.Time
}

func NewProgressReporter(collector *metrics.Collector, interval time.Duration, w io.Writer) *ProgressReporter {
	if w == nil {
		w = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		collector: collector,
		interval:  interval,
		w:         w,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start is idempotent.
func (p *ProgressReporter) Start() {
	p.startOnce.Do(func() {
		p.started = true
		p.begin = time.Now()
		go p.loop()
	})
}

// Stop waits for the redraw goroutine to exit. Stop without Start is a no-op.
func (p *ProgressReporter) Stop() {
	p.startOnce.Do(func() {})
	p.stopOnce.Do(func() {
		close(p.stop)
		if p.started {
			<-p.done
		}
	})
}

func (p *ProgressReporter) loop() {
	defer close(p.done)
	tick := time.NewTicker(p.interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			fmt.Fprint(p.w, "\r"+progressLine(p.collector.Stats(time.Since(p.begin))))
		case <-p.stop:
			return
		}
	}
}

func progressLine(stats metrics.Stats) string {
	parts := []string{
		fmt.Sprintf("Requests: %d", stats.Total),
		fmt.Sprintf("Failures: %d", stats.Failures),
		fmt.Sprintf("RPS: %.1f", stats.RequestsPerSec),
	}
	if a := stats.Admission; a.Count > 0 {
		parts = append(parts,
			fmt.Sprintf("Admitted: %d", a.Count),
			fmt.Sprintf("Target: %.1f rps", a.LastTargetRPS),
			fmt.Sprintf("Bucket: %.2f", a.LastBucketLevel),
		)
		if n := len(a.Steps); n > 0 {
			parts = append(parts, "Step: "+a.Steps[n-1].Step)
		}
	}
	return strings.Join(parts, " | ")
}
