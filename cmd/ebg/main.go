// Package main provides the ebg binary entry point.
// ebg prepares the training data of the Educated Bootstrap Guesser and trains
// its quantile regressors and support threshold classifiers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wiegertj/EBG-train/pkg/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "ebg"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	dataDir    string
	logLevel   string
	workers    int
	seed       int64
}

func rootCmd() *cobra.Command {
	return newRootCmd(&globalFlags{})
}

func newRootCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Educated Bootstrap Guesser training pipeline",
		Long: `ebg builds the training set of the Educated Bootstrap Guesser and trains
its models:

  extract   decompress the raw dataset archives
  assemble  join per-dataset branch features with bootstrap support targets
  regress   train the median and lower bound quantile regressors
  classify  train the support threshold classifiers
  bench     summarize runtime comparisons`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&g.dataDir, "data-dir", "", "Data directory (overrides config)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.IntVar(&g.workers, "workers", 0, "Parallel workers, 0 uses all CPUs (overrides config)")
	pf.Int64Var(&g.seed, "seed", 0, "Random seed, 0 is time based (overrides config)")

	cmd.AddCommand(
		extractCmd(g),
		assembleCmd(g),
		regressCmd(g),
		classifyCmd(g),
		benchCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

// setup loads the configuration, applies flag overrides and installs the
// default logger.
func (g *globalFlags) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = g.dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("workers") {
		cfg.Workers = g.workers
	}
	if flags.Changed("seed") {
		cfg.Seed = g.seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
