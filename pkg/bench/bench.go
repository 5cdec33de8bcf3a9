// Package bench summarizes per-dataset runtime comparisons between EBG and
// other bootstrap support tools.
package bench

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/wiegertj/EBG-train/pkg/data"
	"github.com/wiegertj/EBG-train/pkg/pipeline"
	"github.com/wiegertj/EBG-train/pkg/stats"
)

// ToolSummary describes the runtimes of one tool.
type ToolSummary struct {
	Tool    string
	N       int
	Mean    float64
	Median  float64
	StdDev  float64
	Speedup float64 // median over datasets of tool / reference time
	values  []float64
}

// Summarize reads a wide table with one row per dataset and one column of
// seconds per tool. Non-finite and non-positive times are ignored, as are
// unnamed index columns.
func Summarize(f *data.Frame, reference string) ([]ToolSummary, error) {
	ref, err := f.Float(reference)
	if err != nil {
		return nil, err
	}
	var out []ToolSummary
	for _, name := range f.Names() {
		if name == pipeline.Dataset || data.IsIndexColumn(name) || !f.IsNumeric(name) {
			continue
		}
		col, _ := f.Float(name)
		s := ToolSummary{Tool: name}
		var ratios []float64
		for i, v := range col {
			if !valid(v) {
				continue
			}
			s.values = append(s.values, v)
			if valid(ref[i]) {
				ratios = append(ratios, v/ref[i])
			}
		}
		s.N = len(s.values)
		if s.N > 0 {
			s.Mean = stats.Mean(s.values)
			s.Median = stats.Median(s.values)
			s.StdDev = stats.Std(s.values)
		}
		s.Speedup = math.NaN()
		if len(ratios) > 0 {
			s.Speedup = stats.Median(ratios)
		}
		out = append(out, s)
	}
	return out, nil
}

func valid(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// WriteSummary writes one row per tool.
func WriteSummary(summaries []ToolSummary, path string) error {
	n := len(summaries)
	f := data.NewFrame(n)
	tools := make([]string, n)
	cols := map[string][]float64{}
	order := []string{"n", "mean", "median", "std", "speedup"}
	for _, c := range order {
		cols[c] = make([]float64, n)
	}
	for i, s := range summaries {
		tools[i] = s.Tool
		cols["n"][i] = float64(s.N)
		cols["mean"][i] = s.Mean
		cols["median"][i] = s.Median
		cols["std"][i] = s.StdDev
		cols["speedup"][i] = s.Speedup
	}
	if err := f.SetText("tool", tools); err != nil {
		return err
	}
	for _, c := range order {
		if err := f.SetFloat(c, cols[c]); err != nil {
			return err
		}
	}
	return f.WriteCSVFile(path)
}

// Host describes the machine the summaries are produced on.
func Host() string {
	return fmt.Sprintf("%s (%d cores, %d threads)",
		strings.TrimSpace(cpuid.CPU.BrandName), cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores)
}

// Plot draws one box of runtimes per tool on a log scale.
func Plot(summaries []ToolSummary, title, path string) error {
	p := plot.New()
	p.Title.Text = title + "\n" + Host()
	p.Y.Label.Text = "seconds"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	var names []string
	for _, s := range summaries {
		if s.N == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(len(names)), plotter.Values(s.values))
		if err != nil {
			return fmt.Errorf("box plot %s: %w", s.Tool, err)
		}
		p.Add(box)
		names = append(names, s.Tool)
	}
	if len(names) == 0 {
		return fmt.Errorf("box plot: no runtimes")
	}
	p.NominalX(names...)
	return p.Save(vg.Length(len(names))*vg.Inch+2*vg.Inch, 5*vg.Inch, path)
}

// Run summarizes the timing table at path and writes <stem>_summary.csv and
// <stem>.png next to it.
func Run(path, reference string, logger *slog.Logger) ([]ToolSummary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := data.ReadCSVFile(path)
	if err != nil {
		return nil, err
	}
	summaries, err := Summarize(f, reference)
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if err := WriteSummary(summaries, stem+"_summary.csv"); err != nil {
		return nil, err
	}
	if err := Plot(summaries, filepath.Base(stem), stem+".png"); err != nil {
		return nil, err
	}
	for _, s := range summaries {
		logger.Info("runtime summary", "table", filepath.Base(path), "tool", s.Tool, "n", s.N,
			"median", s.Median, "mean", s.Mean, "speedup", s.Speedup)
	}
	return summaries, nil
}
