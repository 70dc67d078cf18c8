package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torosent/swarmpace/internal/pacer"
)

const MetricPrefix = "swarmpace_"

// Exporter mirrors Collector events as Prometheus series on its own registry.
type Exporter struct {
	registry *prometheus.Registry

	admissions     *prometheus.CounterVec
	waitSeconds    prometheus.Histogram
	jitterSeconds  prometheus.Histogram
	targetRPS      prometheus.Gauge
	bucketLevel    prometheus.Gauge
	multiplier     prometheus.Gauge
	requests       *prometheus.CounterVec
	latencySeconds prometheus.Histogram
}

func NewExporter(runID string) *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"run_id": runID}, reg))
	return &Exporter{
		registry: reg,
		admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPrefix + "admissions_total",
			Help: "Admissions granted by the pacer, by active step",
		}, []string{"step"}),
		waitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricPrefix + "admission_wait_seconds",
			Help:    "Time spent waiting for a token before an admission",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		jitterSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricPrefix + "admission_jitter_seconds",
			Help:    "Jitter applied after a token was granted",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		targetRPS: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricPrefix + "target_rps",
			Help: "Instantaneous target rate at the last admission",
		}),
		bucketLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricPrefix + "bucket_level",
			Help: "Tokens left in the bucket after the last admission",
		}),
		multiplier: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricPrefix + "pattern_multiplier",
			Help: "Timeline multiplier at the last admission",
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPrefix + "requests_total",
			Help: "Completed requests by outcome",
		}, []string{"outcome"}),
		latencySeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricPrefix + "request_duration_seconds",
			Help:    "Request latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (e *Exporter) RecordAdmission(res pacer.Result) {
	e.admissions.WithLabelValues(res.Sample.StepID).Inc()
	e.waitSeconds.Observe(res.WaitDuration.Seconds())
	e.jitterSeconds.Observe(res.JitterDuration.Seconds())
	e.targetRPS.Set(res.TargetRPS)
	e.bucketLevel.Set(res.BucketLevel)
	e.multiplier.Set(res.Sample.Multiplier)
}

func (e *Exporter) RecordRequest(latency time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	e.requests.WithLabelValues(outcome).Inc()
	e.latencySeconds.Observe(latency.Seconds())
}

// Handler serves the exporter registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func (e *Exporter) Registry() *prometheus.Registry { return e.registry }
