// Package assemble builds the final training table by joining the per-dataset
// branch feature files with the bootstrap support targets.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/wiegertj/EBG-train/pkg/archive"
	"github.com/wiegertj/EBG-train/pkg/data"
	"github.com/wiegertj/EBG-train/pkg/pipeline"
)

var ErrNoFeatures = errors.New("assemble: no feature files")

// Options locates the inputs and output relative to Root.
type Options struct {
	Root            string
	FeaturesPattern string // doublestar pattern relative to Root
	Targets         string // relative to Root
	Output          string // relative to Root; empty skips writing
	Workers         int
	Logger          *slog.Logger
}

// Summary reports row counts of an assembly.
type Summary struct {
	Files       int
	FeatureRows int
	TargetRows  int
	JoinedRows  int
	Unlabelled  int // feature rows without a target
	Datasets    int
}

// Assemble reads all feature files, attaches targets and writes the result.
func Assemble(ctx context.Context, opts Options) (*data.Frame, Summary, error) {
	var sum Summary
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	files, err := archive.Match(opts.Root, opts.FeaturesPattern)
	if err != nil {
		return nil, sum, err
	}
	if len(files) == 0 {
		return nil, sum, fmt.Errorf("%w: %s", ErrNoFeatures, opts.FeaturesPattern)
	}
	sum.Files = len(files)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	frames := make([]*data.Frame, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := readFeatures(path)
			if err != nil {
				return err
			}
			frames[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, sum, err
	}

	features, err := data.Concat(frames...)
	if err != nil {
		return nil, sum, err
	}
	sum.FeatureRows = features.Len()

	targets, err := data.ReadCSVFile(filepath.Join(opts.Root, opts.Targets))
	if err != nil {
		return nil, sum, fmt.Errorf("assemble: targets: %w", err)
	}
	if _, err := targets.Float(pipeline.Support); err != nil {
		return nil, sum, fmt.Errorf("assemble: targets: %w", err)
	}
	targets, err = targets.Select(pipeline.Dataset, pipeline.BranchID, pipeline.Support)
	if err != nil {
		return nil, sum, fmt.Errorf("assemble: targets: %w", err)
	}
	sum.TargetRows = targets.Len()

	joined, err := data.JoinInner(features, targets, pipeline.Dataset, pipeline.BranchID)
	if err != nil {
		return nil, sum, err
	}
	sum.JoinedRows = joined.Len()
	sum.Unlabelled = sum.FeatureRows - sum.JoinedRows
	if codes, err := joined.Codes(pipeline.Dataset); err == nil {
		seen := map[int]bool{}
		for _, c := range codes {
			seen[c] = true
		}
		sum.Datasets = len(seen)
	}

	if opts.Output != "" {
		out := filepath.Join(opts.Root, opts.Output)
		if err := joined.WriteCSVFile(out); err != nil {
			return nil, sum, err
		}
		logger.Info("wrote training set", "path", out, "rows", joined.Len(), "columns", len(joined.Names()))
	}
	if sum.Unlabelled > 0 {
		logger.Warn("feature rows without target", "rows", sum.Unlabelled)
	}
	return joined, sum, nil
}

// readFeatures reads one feature file. A file without a dataset column takes
// the dataset name from its parent directory.
func readFeatures(path string) (*data.Frame, error) {
	f, err := data.ReadCSVFile(path)
	if err != nil {
		return nil, err
	}
	if !f.Has(pipeline.Dataset) {
		name := filepath.Base(filepath.Dir(path))
		col := make([]string, f.Len())
		for i := range col {
			col[i] = name
		}
		if err := f.SetText(pipeline.Dataset, col); err != nil {
			return nil, err
		}
	}
	if !f.Has(pipeline.BranchID) {
		return nil, &data.ColumnError{Name: pipeline.BranchID, Msg: "missing in " + path}
	}
	return f, nil
}
