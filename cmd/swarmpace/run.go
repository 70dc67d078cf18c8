package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/torosent/swarmpace/internal/config"
	"github.com/torosent/swarmpace/internal/httpclient"
	"github.com/torosent/swarmpace/internal/metrics"
	"github.com/torosent/swarmpace/internal/output"
	"github.com/torosent/swarmpace/internal/pacer"
	"github.com/torosent/swarmpace/internal/pattern"
	"github.com/torosent/swarmpace/internal/runner"
	"github.com/torosent/swarmpace/internal/tracing"
)

const (
	progressInterval = time.Second
	baseRetryDelay   = 100 * time.Millisecond
	maxRetryDelay    = 5 * time.Second
	shutdownTimeout  = 5 * time.Second
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send HTTP requests to a target at the paced rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateRun(); err != nil {
				return err
			}
			return runLoad(cmd, cfg, logger)
		},
	}
	config.RegisterFlags(cmd)
	config.RegisterRunFlags(cmd)
	config.RegisterThresholdFlags(cmd)
	return cmd
}

func runLoad(cmd *cobra.Command, cfg *config.Config, logger *logrus.Logger) error {
	ctx := cmd.Context()
	runID := ulid.Make().String()
	log := logger.WithField("runId", runID)

	provider, err := tracing.Init(ctx, cfg.Tracing, tracing.AttrRunID.String(runID))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	builder, err := httpclient.NewRequestBuilder(cfg)
	if err != nil {
		return err
	}
	var requester runner.Requester = httpclient.NewRequester(
		httpclient.NewClient(cfg.Timeout, cfg.Concurrency),
		builder,
		httpclient.WithTracer(provider.Tracer(), provider.ShouldPropagate()),
	)
	if cfg.LogErrors {
		requester = runner.WithLogging(requester, runner.LogrusFailures{Logger: log})
	}
	if cfg.Retries > 0 {
		requester = runner.WithRetry(requester, runner.RetryPolicy{
			MaxAttempts: cfg.Retries + 1,
			ShouldRetry: runner.Retryable,
			Backoff:     runner.ExponentialBackoff(baseRetryDelay, maxRetryDelay),
		})
	}

	collector := metrics.NewCollector()
	exporter := metrics.NewExporter(runID)
	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, exporter.Handler(), log)
		if err != nil {
			return err
		}
		defer stop()
	}

	opts := runner.Options{
		Concurrency:   cfg.Concurrency,
		TotalRequests: cfg.Total,
		Duration:      cfg.Duration,
		Requester:     requester,
		OnComplete: func(latency time.Duration, err error) {
			collector.RecordRequest(latency, err)
			exporter.RecordRequest(latency, err)
		},
	}
	switch cfg.Arrival {
	case config.ArrivalModelUniform, config.ArrivalModelPoisson:
		opts.ArrivalModel = runner.ArrivalModel(cfg.Arrival)
		opts.RatePerSecond = int(cfg.Rate)
	default:
		tl, err := pattern.New(cfg.Pattern, pattern.Options{RunStart: time.Now(), Logger: log})
		if err != nil {
			return err
		}
		p, err := pacer.New(tl, cfg.Rate, pacer.Options{
			Jitter:  cfg.Jitter,
			Seeds:   cfg.Pattern.Seeds,
			Logger:  log,
			MaxWait: cfg.MaxWait,
		})
		if err != nil {
			return err
		}
		tracer := provider.Tracer()
		opts.ArrivalModel = runner.ArrivalModelPattern
		opts.Pacer = p
		opts.OnAdmit = func(res pacer.Result) {
			collector.RecordAdmission(res)
			exporter.RecordAdmission(res)
			tracing.RecordAdmission(ctx, tracer, runID, res)
		}
	}

	r, err := runner.New(opts)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"target":      cfg.TargetURL,
		"arrival":     opts.ArrivalModel,
		"baseRps":     cfg.Rate,
		"concurrency": cfg.Concurrency,
	}).Info("run started")

	out := cmd.OutOrStdout()
	var progress *output.ProgressReporter
	if cfg.Progress && !cfg.JSONOutput {
		progress = output.NewProgressReporter(collector, progressInterval, out)
		progress.Start()
	}

	result := r.Run(ctx)
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(out)
	}
	stats := collector.Stats(result.Duration)
	log.WithFields(logrus.Fields{
		"admitted":  result.Total,
		"completed": result.Completed,
		"errors":    result.Errors,
		"duration":  result.Duration,
	}).Info("run finished")

	if err := report(out, log, cfg, stats, cfg.JSONOutput); err != nil {
		return err
	}
	if result.Errors > 0 {
		return fmt.Errorf("%d requests failed", result.Errors)
	}
	return nil
}

// serveMetrics exposes handler on addr under /metrics until stop is called.
func serveMetrics(addr string, handler http.Handler, log logrus.FieldLogger) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", ln.Addr().String()).Info("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
