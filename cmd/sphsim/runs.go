package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/sphsim/internal/analysis"
	"github.com/san-kum/sphsim/internal/export"
	"github.com/san-kum/sphsim/internal/gui"
	"github.com/san-kum/sphsim/internal/metrics"
	"github.com/san-kum/sphsim/internal/sim"
	"github.com/san-kum/sphsim/internal/storage"
	"github.com/san-kum/sphsim/internal/viz"
)

// resolveRun loads the named run, or the latest one when no name is given.
func resolveRun(st *storage.Store, args []string) (*storage.RunMetadata, error) {
	if len(args) == 0 {
		return st.Latest()
	}
	return st.Load(args[0])
}

func openOutput() (io.Writer, func() error, error) {
	if outFile == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tPARTICLES\tLENGTH\tDT\tSTEPS\tFRAMES\tELAPSED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3fs\t%.0es\t%d\t%d\t%.1fs\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Particles,
			run.Length,
			run.Dt,
			run.Steps,
			run.Frames,
			run.ElapsedSeconds,
		)
	}

	return w.Flush()
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	stats, err := st.LoadStats(meta.ID)
	if err != nil {
		return err
	}

	w, closeFn, err := openOutput()
	if err != nil {
		return err
	}
	if err := storage.ExportJSON(w, *meta, stats); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	frames, err := st.LoadFrames(meta.ID)
	if err != nil {
		return err
	}

	w, closeFn, err := openOutput()
	if err != nil {
		return err
	}
	if err := storage.ExportPositionsCSV(w, frames); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	stats, err := st.LoadStats(meta.ID)
	if err != nil {
		return err
	}
	if len(stats) < 2 {
		return fmt.Errorf("run %s has %d frames, need at least 2 to plot", meta.ID, len(stats))
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("frames: %d\n\n", len(stats))

	plots := []struct {
		caption string
		field   analysis.Field
	}{
		{"kinetic energy", analysis.KineticEnergy},
		{"max density", analysis.MaxDensity},
		{"mean height", analysis.MeanHeight},
		{"max speed", analysis.MaxSpeed},
	}
	for _, p := range plots {
		graph := asciigraph.Plot(analysis.Series(stats, p.field),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(p.caption+" vs frame"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	if svgFile != "" {
		svg := export.SeriesToSVG(analysis.Series(stats, analysis.KineticEnergy), 800, 300, "#00ff88")
		if err := os.WriteFile(svgFile, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgFile)
	}
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}

	index := frameNum
	if index < 0 {
		index = meta.Frames - 1
	}
	positions, err := st.LoadFrame(meta.ID, index)
	if err != nil {
		return err
	}

	start, end := domain(meta)
	svg := export.FrameToSVG(viz.Scene{
		DomainStart: start,
		DomainEnd:   end,
		Positions:   positions,
	}, viz.NewCamera(start, end), 800, 600, 3)

	w, closeFn, err := openOutput()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, svg); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	f, ok := analysis.Fields[field]
	if !ok {
		names := make([]string, 0, len(analysis.Fields))
		for name := range analysis.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown field %q (one of %s)", field, strings.Join(names, ", "))
	}

	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	stats, err := st.LoadStats(meta.ID)
	if err != nil {
		return err
	}
	if len(stats) < 4 {
		return fmt.Errorf("run %s has %d frames, need at least 4 to analyze", meta.ID, len(stats))
	}

	series := analysis.Series(stats, f)
	freq, power := analysis.DominantFrequency(series, meta.FrameRate)

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("field: %s (%d samples at %.0f Hz)\n\n", field, len(series), meta.FrameRate)
	fmt.Printf("dominant frequency: %.3f Hz (period %.4fs, power %.3g)\n", freq, safePeriod(freq), power)
	if t, ok := analysis.SettleTime(stats, 0.05); ok {
		fmt.Printf("settled below 5%% of peak kinetic energy at t=%.4fs\n", t)
	} else {
		fmt.Println("kinetic energy had not settled by the end of the run")
	}
	for _, name := range sortedKeys(meta.Metrics) {
		fmt.Printf("%-22s %.4g\n", name+":", meta.Metrics[name])
	}

	ps := analysis.PowerSpectrum(series)
	if len(ps) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(ps[1:], asciigraph.Height(8), asciigraph.Width(60), asciigraph.Caption("power spectrum")))
	}

	fmt.Printf("\n%s vs kinetic energy:\n", field)
	fmt.Print(analysis.NewPortrait(stats, f, analysis.KineticEnergy).ASCII(60, 16))
	return nil
}

func safePeriod(freq float64) float64 {
	if freq == 0 {
		return 0
	}
	return 1 / freq
}

// replayFrames joins a run's saved positions with its per-frame stats.
func replayFrames(st *storage.Store, meta *storage.RunMetadata) ([]sim.Frame, error) {
	positions, err := st.LoadFrames(meta.ID)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("run %s has no saved frames", meta.ID)
	}
	stats, err := st.LoadStats(meta.ID)
	if err != nil {
		return nil, err
	}

	frames := make([]sim.Frame, len(positions))
	for i, pos := range positions {
		var s metrics.Stats
		if i < len(stats) {
			s = stats[i]
		}
		frames[i] = sim.Frame{Index: i, Step: s.Step, Time: s.Time, Positions: pos, Stats: s}
	}
	return frames, nil
}

func domain(meta *storage.RunMetadata) (start, end mgl32.Vec3) {
	for a := 0; a < 3; a++ {
		start[a] = float32(meta.DomainStart[a])
		end[a] = float32(meta.DomainEnd[a])
	}
	return start, end
}

func viewRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	frames, err := replayFrames(st, meta)
	if err != nil {
		return err
	}

	start, end := domain(meta)
	return viz.Run(viz.NewReplay(viz.Options{
		Title:       meta.Scene,
		DomainStart: start,
		DomainEnd:   end,
		FrameRate:   meta.FrameRate,
		GIFPath:     meta.ID + ".gif",
	}, frames))
}

func guiRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	frames, err := replayFrames(st, meta)
	if err != nil {
		return err
	}

	start, end := domain(meta)
	gui.RunReplay(gui.Options{
		Title:          "sphsim: " + meta.ID,
		DomainStart:    start,
		DomainEnd:      end,
		ParticleRadius: float32(meta.ParticleRadius),
		FrameRate:      meta.FrameRate,
	}, frames)
	return nil
}
