package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/torosent/swarmpace/internal/config"
	"github.com/torosent/swarmpace/internal/metrics"
	"github.com/torosent/swarmpace/internal/pacer"
	"github.com/torosent/swarmpace/internal/pattern"
)

var errWindowElapsed = errors.New("simulation window elapsed")

// virtualClock never blocks: sleeping advances it. Once a non-zero deadline
// has passed, Sleep fails with errWindowElapsed.
type virtualClock struct {
	mu       sync.Mutex
	now      time.Time
	deadline time.Time
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *virtualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.deadline.IsZero() && c.now.After(c.deadline) {
		return errWindowElapsed
	}
	c.now = c.now.Add(d)
	return nil
}

func newSimulateCommand() *cobra.Command {
	var (
		count  int
		window time.Duration
		start  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the pacer on a virtual clock and report its admissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 && window <= 0 {
				return fmt.Errorf("one of --count or --window must be positive")
			}
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			runStart, err := parseStart(start)
			if err != nil {
				return err
			}

			tl, err := pattern.New(cfg.Pattern, pattern.Options{RunStart: runStart, Logger: logger})
			if err != nil {
				return err
			}
			clock := &virtualClock{now: runStart}
			if window > 0 {
				clock.deadline = runStart.Add(window)
			}
			p, err := pacer.New(tl, cfg.Rate, pacer.Options{
				Jitter:  cfg.Jitter,
				Seeds:   cfg.Pattern.Seeds,
				Clock:   clock,
				Sleeper: clock,
				Logger:  logger,
				MaxWait: cfg.MaxWait,
			})
			if err != nil {
				return err
			}

			runID := ulid.Make().String()
			logger.WithField("runId", runID).WithField("baseRps", cfg.Rate).Info("simulation started")

			collector, err := simulate(cmd.Context(), p, clock, count)
			if err != nil {
				return err
			}
			stats := collector.Stats(clock.Now().Sub(runStart))
			return report(cmd.OutOrStdout(), logger, cfg, stats, asJSON)
		},
	}
	config.RegisterFlags(cmd)
	config.RegisterThresholdFlags(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many admissions")
	cmd.Flags().DurationVar(&window, "window", 0, "Stop once this much virtual time has passed")
	cmd.Flags().StringVar(&start, "start", "", "Virtual run start as RFC 3339 (default: now)")
	cmd.Flags().BoolVar(&asJSON, "json-output", false, "Emit JSON formatted output")
	return cmd
}

// simulate drives p until count admissions were granted or the clock's
// deadline passed, whichever comes first. A zero count is unlimited.
func simulate(ctx context.Context, p *pacer.Pacer, clock *virtualClock, count int) (*metrics.Collector, error) {
	collector := metrics.NewCollector()
	for granted := 0; count <= 0 || granted < count; granted++ {
		res, err := p.AwaitReady(ctx)
		if errors.Is(err, errWindowElapsed) {
			break
		}
		if err != nil {
			return nil, err
		}
		if !clock.deadline.IsZero() && res.ReadyAt.After(clock.deadline) {
			break
		}
		collector.RecordAdmission(res)
	}
	return collector, nil
}
