package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sunlightlinux/svcengine/pkg/logging"
)

var (
	flagWorkers          int
	flagStabilityTimeout time.Duration
	flagVerbose          bool
)

var rootCmd = &cobra.Command{
	Use:   "svcdemo",
	Short: "Install and drive a small illustrative service graph",
	Long: `svcdemo builds a handful of interdependent services on top of the
container engine and reports how they settle. It exists to exercise the
engine end to end, not as an example of a real deployment.`,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 8, "worker pool size")
	rootCmd.PersistentFlags().DurationVar(&flagStabilityTimeout, "stability-timeout", 5*time.Second,
		"how long to wait for the graph to settle before giving up")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
}

func newLogger() *logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.AsText = true
	if flagVerbose {
		cfg.Level = logging.LevelDebug
	}
	return logging.New(cfg)
}
