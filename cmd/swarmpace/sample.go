package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/torosent/swarmpace/internal/config"
	"github.com/torosent/swarmpace/internal/output"
	"github.com/torosent/swarmpace/internal/pattern"
)

func newSampleCommand() *cobra.Command {
	var (
		step   time.Duration
		format string
		start  string
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print the rate multiplier over one pattern cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			f, err := output.ParseFormat(format)
			if err != nil {
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
			return output.PrintSamples(cmd.OutOrStdout(), output.SampleTimeline(tl, cfg.Rate, step), f)
		},
	}
	config.RegisterFlags(cmd)
	cmd.Flags().DurationVar(&step, "step", 0, "Sampling interval (default: 1/20 of the cycle)")
	cmd.Flags().StringVar(&format, "format", string(output.FormatText), "Output format: text, json or yaml")
	cmd.Flags().StringVar(&start, "start", "", "Run start as RFC 3339 (default: now)")
	return cmd
}

func parseStart(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	return time.Parse(time.RFC3339, s)
}
