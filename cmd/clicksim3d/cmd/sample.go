package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"clicksim3d/internal/metrics"
	"clicksim3d/internal/models"
	"clicksim3d/pkg/clicks"
	"clicksim3d/pkg/config"
	"clicksim3d/pkg/distance"
	"clicksim3d/pkg/loader"
	"clicksim3d/pkg/random"
	"clicksim3d/pkg/visualization"
)

// report is what sample prints in JSON format.
type report struct {
	Method  string          `json:"method"`
	Seed    uint64          `json:"seed"`
	Entries int             `json:"entries"`
	Omitted []int           `json:"omitted"`
	Clicks  models.ClickSet `json:"clicks"`
}

type sampleFlags struct {
	pred  []string
	ref   []string
	image []string
}

func newSampleCommand(a *app) *cobra.Command {
	var f sampleFlags

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Simulate one click per volume of a batch",
		Long: `Simulate one corrective click per volume of a batch.

Each --pred, --ref and --image value is a directory of slices; pass several
(comma separated or repeated) to build a batch. Predictions are grey levels
scaled to [0, 1] and thresholded at 0.5, references are integer labels where
anything above 0 is foreground, and images are raw grey levels.

Examples:
  clicksim3d sample --pred pred/ --ref labels/ --seed 7
  clicksim3d sample --method largest_component --pred p1/,p2/ --ref l1/,l2/
  clicksim3d sample --method threshold_only --pred pred/ --image scan/ --format text`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSample(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&f.pred, "pred", nil, "prediction slice directories, one per batch entry")
	flags.StringSliceVar(&f.ref, "ref", nil, "reference label slice directories")
	flags.StringSliceVar(&f.image, "image", nil, "raw intensity slice directories (threshold_only)")
	flags.StringP("method", "m", string(clicks.DefaultMethod), "sampling method (see 'clicksim3d methods')")
	flags.Uint64("seed", 0, "random seed")
	flags.Int("workers", 0, "batch entries sampled concurrently (0 = all CPUs)")
	flags.Float64("threshold", clicks.DefaultIntensityThreshold, "intensity threshold for threshold_only")
	flags.String("engine", distance.EngineExact, "distance transform engine (exact, kdtree)")
	flags.StringP("format", "f", config.FormatJSON, "output format (json, text)")
	flags.String("overlay-dir", "", "write PNG overlays of the clicks to this directory")
	flags.String("metrics-file", "", "write Prometheus metrics to this file")
	_ = cmd.MarkFlagRequired("pred")

	a.bind("sampler.method", cmd, "method")
	a.bind("sampler.seed", cmd, "seed")
	a.bind("sampler.workers", cmd, "workers")
	a.bind("sampler.intensityThreshold", cmd, "threshold")
	a.bind("distance.engine", cmd, "engine")
	a.bind("output.format", cmd, "format")
	a.bind("output.overlayDir", cmd, "overlay-dir")
	a.bind("output.metricsFile", cmd, "metrics-file")

	return cmd
}

func (a *app) runSample(cmd *cobra.Command, f sampleFlags) error {
	cfg := a.cfg
	method, err := clicks.ParseMethod(cfg.Sampler.Method)
	if err != nil {
		return err
	}
	rec := metrics.NewRecorder()
	opts, err := cfg.SamplerOptions(rec)
	if err != nil {
		return err
	}
	sampler, err := clicks.New(method, opts)
	if err != nil {
		return err
	}

	in, err := loadInputs(f)
	if err != nil {
		return err
	}
	slog.Debug("Loaded batch", "entries", in.Predicted.N, "shape", in.Predicted.Shape.String())

	src := random.New(cfg.Sampler.Seed)
	start := time.Now()
	set, err := sampler.Sample(in, src)
	if err != nil {
		return err
	}
	slog.Info("Sampled clicks",
		"method", method,
		"entries", in.Predicted.N,
		"clicks", len(set),
		"duration", time.Since(start))

	rep := report{
		Method:  string(method),
		Seed:    src.Seed(),
		Entries: in.Predicted.N,
		Omitted: omitted(in.Predicted.N, set),
		Clicks:  set,
	}
	if err := writeReport(cmd.OutOrStdout(), cfg.Output.Format, rep); err != nil {
		return err
	}

	if cfg.Output.OverlayDir != "" {
		if err := saveOverlays(in, set, cfg.Output.OverlayDir, cfg.Output.OverlayScale); err != nil {
			return fmt.Errorf("failed to save overlays: %w", err)
		}
	}
	if cfg.Output.MetricsFile != "" {
		if err := rec.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		slog.Debug("Wrote metrics", "file", cfg.Output.MetricsFile)
	}
	return nil
}

func loadInputs(f sampleFlags) (clicks.Inputs, error) {
	var in clicks.Inputs
	if len(f.pred) == 0 {
		return in, errors.New("no prediction directories provided")
	}

	var err error
	if in.Predicted, err = loader.ProbabilityStack(f.pred); err != nil {
		return in, fmt.Errorf("loading predictions: %w", err)
	}
	if len(f.ref) > 0 {
		if in.Reference, err = loader.LabelStack(f.ref); err != nil {
			return in, fmt.Errorf("loading references: %w", err)
		}
	}
	if len(f.image) > 0 {
		if in.Intensity, err = loader.IntensityStack(f.image); err != nil {
			return in, fmt.Errorf("loading images: %w", err)
		}
	}
	return in, nil
}

// omitted lists the entries of an n-entry batch without a click.
func omitted(n int, set models.ClickSet) []int {
	out := []int{}
	have := make([]bool, n)
	for _, c := range set {
		have[c.Entry] = true
	}
	for i, ok := range have {
		if !ok {
			out = append(out, i)
		}
	}
	return out
}

func writeReport(w io.Writer, format string, rep report) error {
	if format == config.FormatText {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ENTRY\tZ\tY\tX\tLABEL")
		for _, c := range rep.Clicks {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\n", c.Entry, c.Point.Z, c.Point.Y, c.Point.X, c.Label)
		}
		for _, e := range rep.Omitted {
			fmt.Fprintf(tw, "%d\t-\t-\t-\tomitted\n", e)
		}
		return tw.Flush()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// saveOverlays draws each entry's clicks on the raw image when one was
// given and on the prediction otherwise.
func saveOverlays(in clicks.Inputs, set models.ClickSet, dir string, scale int) error {
	for entry := 0; entry < in.Predicted.N; entry++ {
		data, maxValue := in.Predicted.Entry(entry), 1.0
		if in.Intensity != nil {
			data, maxValue = in.Intensity.Entry(entry), loader.MaxGrey
		}
		viewer, err := visualization.NewViewer(data, in.Predicted.Shape, maxValue)
		if err != nil {
			return err
		}
		paths, err := viewer.SaveOverlays(entry, set, dir, scale)
		if err != nil {
			return err
		}
		for _, p := range paths {
			slog.Debug("Saved overlay", "entry", entry, "file", p)
		}
	}
	return nil
}
