package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/torosent/swarmpace/internal/config"
	"github.com/torosent/swarmpace/internal/metrics"
	"github.com/torosent/swarmpace/internal/output"
	"github.com/torosent/swarmpace/internal/threshold"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "swarmpace",
		Short:         "Shape request rates with deterministic load patterns",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	config.RegisterLogFlags(root.PersistentFlags())

	root.AddCommand(
		newSampleCommand(),
		newSimulateCommand(),
		newRunCommand(),
	)
	return root
}

// loadConfig reads the scenario for cmd and builds its logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.NewLoader().Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(w)
	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}
	return logger, nil
}

// report writes stats and threshold outcomes to w. It fails when any
// threshold does not hold.
func report(w io.Writer, logger logrus.FieldLogger, cfg *config.Config, stats metrics.Stats, asJSON bool) error {
	ths, err := threshold.ParseAll(cfg.Thresholds)
	if err != nil {
		return err
	}
	results := threshold.Evaluate(ths, stats)

	if asJSON {
		if err := output.PrintJSONReport(w, stats); err != nil {
			return err
		}
		for _, r := range results {
			logger.WithField("actual", r.Actual).WithField("pass", r.Pass).Info(r.Threshold.Raw)
		}
	} else {
		output.PrintReport(w, stats)
		output.PrintThresholds(w, results)
	}

	if failed := threshold.Failed(results); failed > 0 {
		return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
	}
	return nil
}
