package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/swarmpace/internal/pacer"
)

// Collector aggregates request outcomes and pacer admissions. It is safe
// for concurrent use.
type Collector struct {
	mu sync.Mutex

	latency      *hdrhistogram.Histogram
	successes    int64
	failures     int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByType map[string]int64

	wait         *hdrhistogram.Histogram
	jitter       *hdrhistogram.Histogram
	admissions   int64
	sumTarget    float64
	lastTarget   float64
	lastBucket   float64
	lastMult     float64
	byStep       map[string]int64
	stepSequence []string
}

// Stats represents aggregated metrics.
type Stats struct {
	Total          int64         `json:"total"`
	Successes      int64         `json:"successes"`
	Failures       int64         `json:"failures"`
	MinLatency     time.Duration `json:"-"`
	MaxLatency     time.Duration `json:"-"`
	MeanLatency    time.Duration `json:"-"`
	P50Latency     time.Duration `json:"-"`
	P90Latency     time.Duration `json:"-"`
	P99Latency     time.Duration `json:"-"`
	Duration       time.Duration `json:"-"`
	RequestsPerSec float64       `json:"requests_per_sec"`

	MinLatencyMs  float64        `json:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms"`
	P90LatencyMs  float64        `json:"p90_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms"`
	DurationMs    float64        `json:"duration_ms"`
	Errors        map[string]int `json:"errors,omitempty"`

	Admission AdmissionStats `json:"admission"`
}

// AdmissionStats summarises pacer decisions.
type AdmissionStats struct {
	Count           int64       `json:"count"`
	EffectiveRPS    float64     `json:"effective_rps"`
	MeanTargetRPS   float64     `json:"mean_target_rps"`
	LastTargetRPS   float64     `json:"last_target_rps"`
	LastBucketLevel float64     `json:"last_bucket_level"`
	LastMultiplier  float64     `json:"last_multiplier"`
	WaitP50Ms       float64     `json:"wait_p50_ms"`
	WaitP99Ms       float64     `json:"wait_p99_ms"`
	WaitMaxMs       float64     `json:"wait_max_ms"`
	JitterP50Ms     float64     `json:"jitter_p50_ms"`
	JitterMaxMs     float64     `json:"jitter_max_ms"`
	Steps           []StepCount `json:"steps,omitempty"`
}

// StepCount is the number of admissions granted while a step was active.
type StepCount struct {
	Step  string `json:"step"`
	Count int64  `json:"count"`
}

func newHistogram() *hdrhistogram.Histogram {
	// 0 up to 1h in microseconds, 3 significant figures.
	return hdrhistogram.New(1, int64(time.Hour/time.Microsecond), 3)
}

func NewCollector() *Collector {
	return &Collector{
		latency:      newHistogram(),
		wait:         newHistogram(),
		jitter:       newHistogram(),
		errorsByType: make(map[string]int64),
		byStep:       make(map[string]int64),
	}
}

// record stores d in whole microseconds. Zero is a real observation: a
// warm bucket admits without waiting.
func record(h *hdrhistogram.Histogram, d time.Duration) {
	us := d.Microseconds()
	if us < 0 {
		us = 0
	}
	if us > h.HighestTrackableValue() {
		us = h.HighestTrackableValue()
	}
	_ = h.RecordValue(us)
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	if h.TotalCount() == 0 {
		return 0
	}
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

func millis(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// RecordRequest records a single request's latency and error state.
func (c *Collector) RecordRequest(latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record(c.latency, latency)
	c.sumLatency += latency
	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	if err == nil {
		c.successes++
		return
	}
	c.failures++
	c.errorsByType[ErrorLabel(err)]++
}

// RecordAdmission records one pacer decision.
func (c *Collector) RecordAdmission(res pacer.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.admissions++
	record(c.wait, res.WaitDuration)
	record(c.jitter, res.JitterDuration)
	c.sumTarget += res.TargetRPS
	c.lastTarget = res.TargetRPS
	c.lastBucket = res.BucketLevel
	c.lastMult = res.Sample.Multiplier
	if _, seen := c.byStep[res.Sample.StepID]; !seen {
		c.stepSequence = append(c.stepSequence, res.Sample.StepID)
	}
	c.byStep[res.Sample.StepID]++
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:      total,
		Successes:  c.successes,
		Failures:   c.failures,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
		P50Latency: quantile(c.latency, 50),
		P90Latency: quantile(c.latency, 90),
		P99Latency: quantile(c.latency, 99),
		Duration:   elapsed,
	}
	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
	}

	stats.MinLatencyMs = millis(stats.MinLatency)
	stats.MaxLatencyMs = millis(stats.MaxLatency)
	stats.MeanLatencyMs = millis(stats.MeanLatency)
	stats.P50LatencyMs = millis(stats.P50Latency)
	stats.P90LatencyMs = millis(stats.P90Latency)
	stats.P99LatencyMs = millis(stats.P99Latency)
	stats.DurationMs = millis(elapsed)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}

	stats.Admission = c.admissionStats(elapsed)
	return stats
}

func (c *Collector) admissionStats(elapsed time.Duration) AdmissionStats {
	a := AdmissionStats{
		Count:           c.admissions,
		LastTargetRPS:   c.lastTarget,
		LastBucketLevel: c.lastBucket,
		LastMultiplier:  c.lastMult,
		WaitP50Ms:       millis(quantile(c.wait, 50)),
		WaitP99Ms:       millis(quantile(c.wait, 99)),
		JitterP50Ms:     millis(quantile(c.jitter, 50)),
	}
	if c.wait.TotalCount() > 0 {
		a.WaitMaxMs = millis(time.Duration(c.wait.Max()) * time.Microsecond)
	}
	if c.jitter.TotalCount() > 0 {
		a.JitterMaxMs = millis(time.Duration(c.jitter.Max()) * time.Microsecond)
	}
	if c.admissions > 0 {
		a.MeanTargetRPS = c.sumTarget / float64(c.admissions)
		if elapsed > 0 {
			a.EffectiveRPS = float64(c.admissions) / elapsed.Seconds()
		}
	}
	for _, step := range c.stepSequence {
		a.Steps = append(a.Steps, StepCount{Step: step, Count: c.byStep[step]})
	}
	return a
}

// ErrorBreakdown returns error labels ordered by descending count.
func (c *Collector) ErrorBreakdown() []ErrorCount {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := make([]ErrorCount, 0, len(c.errorsByType))
	for label, n := range c.errorsByType {
		rows = append(rows, ErrorCount{Label: label, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Label < rows[j].Label
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

type ErrorCount struct {
	Label string
	Count int64
}
