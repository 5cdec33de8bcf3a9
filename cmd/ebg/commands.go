package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wiegertj/EBG-train/pkg/archive"
	"github.com/wiegertj/EBG-train/pkg/assemble"
	"github.com/wiegertj/EBG-train/pkg/bench"
	"github.com/wiegertj/EBG-train/pkg/train"
)

func extractCmd(g *globalFlags) *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Decompress the raw dataset archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("pattern") {
				cfg.Extract.Pattern = pattern
			}
			res, err := archive.ExtractAll(cmd.Context(), cfg.DataDir, cfg.Extract.Pattern, cfg.Workers)
			if err != nil {
				return err
			}
			files := 0
			for _, r := range res {
				files += r.Files
			}
			logger.Info("extraction done", "archives", len(res), "files", files)
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "Archive glob relative to the data directory")
	return cmd
}

func assembleCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "assemble",
		Short: "Join branch features with support targets into the training set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(cfg.DataDir, cfg.FinalDataset())
			if err != nil {
				return err
			}
			_, sum, err := assemble.Assemble(cmd.Context(), assemble.Options{
				Root:            cfg.DataDir,
				FeaturesPattern: cfg.Assemble.FeaturesPattern,
				Targets:         cfg.Assemble.Targets,
				Output:          rel,
				Workers:         cfg.Workers,
				Logger:          logger,
			})
			if err != nil {
				return err
			}
			logger.Info("assembly done", "files", sum.Files, "datasets", sum.Datasets,
				"feature_rows", sum.FeatureRows, "target_rows", sum.TargetRows,
				"rows", sum.JoinedRows, "unlabelled", sum.Unlabelled)
			return nil
		},
	}
}

func regressCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "regress",
		Short: "Train the quantile regressors used as classifier features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd)
			if err != nil {
				return err
			}
			start := time.Now()
			if err := train.New(cfg, logger).TrainRegressors(cmd.Context()); err != nil {
				return err
			}
			logger.Info("regressors trained", "elapsed", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func classifyCmd(g *globalFlags) *cobra.Command {
	var (
		thresholds []float64
		useRFE     bool
		trials     int
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Train and evaluate the support threshold classifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("threshold") {
				cfg.Classifier.Thresholds = thresholds
			}
			if flags.Changed("rfe") {
				cfg.Classifier.RFE.Enabled = useRFE
			}
			if flags.Changed("trials") {
				cfg.Classifier.NTrials = trials
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			tr := train.New(cfg, logger)
			logger.Info("training classifiers", "thresholds", cfg.Classifier.Thresholds, "seed", tr.Seed())
			results, err := tr.TrainClassifiers(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-9s %8s %9s %6s %6s %7s\n", "threshold", "accuracy", "precision", "recall", "f1", "roc_auc")
			for _, r := range results {
				m := r.Metrics
				fmt.Fprintf(out, "%-9g %8.2f %9.2f %6.2f %6.2f %7.2f\n",
					r.Threshold, m.Accuracy, m.Precision, m.Recall, m.F1, m.ROCAUC)
			}
			return nil
		},
	}
	cmd.Flags().Float64SliceVar(&thresholds, "threshold", nil, "Support thresholds (repeatable)")
	cmd.Flags().BoolVar(&useRFE, "rfe", false, "Run recursive feature elimination first")
	cmd.Flags().IntVar(&trials, "trials", 0, "Hyperparameter search trials")
	return cmd
}

func benchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Summarize runtime comparison tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd)
			if err != nil {
				return err
			}
			logger.Info("host", "cpu", bench.Host())
			for _, rel := range []string{cfg.Bench.CPU, cfg.Bench.Elapsed} {
				if _, err := bench.Run(cfg.Path(rel), cfg.Bench.Reference, logger); err != nil {
					return fmt.Errorf("bench %s: %w", rel, err)
				}
			}
			return nil
		},
	}
}
