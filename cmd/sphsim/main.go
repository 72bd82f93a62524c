package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string
	logger   *slog.Logger

	scenePath    string
	preset       string
	length       float64
	timeStep     float64
	frameRate    float64
	enableOutput bool
	outputDir    string
	backendName  string
	workers      int
	preview      bool
	previewGUI   bool
	validate     bool
	speedLimit   float64

	outFile   string
	field     string
	frameNum  int
	svgFile   string
	benchStep int

	sweepParams   []string
	sweepMetric   string
	sweepMaximize bool
	sweepParallel int
	sweepLength   float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "sphsim",
		Short:         "3D SPH fluid simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".sphsim", "run store directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&scenePath, "scene", "", "scene file (yaml or json)")
	runCmd.Flags().StringVar(&preset, "preset", "cube_drop", "preset scene, used when --scene is empty")
	runCmd.Flags().Float64Var(&length, "length", 0.3, "simulated time in seconds")
	runCmd.Flags().Float64Var(&timeStep, "dt", 0, "override the scene time step")
	runCmd.Flags().Float64Var(&frameRate, "frame-rate", 0, "override the scene frame rate")
	runCmd.Flags().BoolVar(&enableOutput, "enable-output", false, "write res_NNNN.json frame files")
	runCmd.Flags().StringVar(&outputDir, "output", "", "frame directory (default: inside the run directory)")
	runCmd.Flags().StringVar(&backendName, "backend", "cpu", "cpu or serial")
	runCmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines for the cpu backend (0 = all CPUs)")
	runCmd.Flags().BoolVar(&preview, "preview", false, "show a live terminal preview")
	runCmd.Flags().BoolVar(&previewGUI, "gui", false, "show a live raylib preview")
	runCmd.Flags().BoolVar(&validate, "validate", true, "stop when a frame holds non-finite positions")
	runCmd.Flags().Float64Var(&speedLimit, "speed-limit", 100, "max speed counted as stable by the stability metric")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and frame statistics as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export saved particle positions as CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: stdout)")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot frame statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}

	plotCmd.Flags().StringVar(&svgFile, "svg", "", "also write the kinetic energy curve as SVG")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render one saved frame as SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().IntVar(&frameNum, "frame", -1, "frame index (default: last)")
	exportSVGCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: stdout)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency and settling analysis",
		Args:  cobra.MaximumNArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&field, "field", "mean_height", "statistic to analyze")

	viewCmd := &cobra.Command{
		Use:   "view [run_id]",
		Short: "replay saved frames in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  viewRun,
	}

	guiCmd := &cobra.Command{
		Use:   "gui [run_id]",
		Short: "replay saved frames in a 3D window",
		Args:  cobra.MaximumNArgs(1),
		RunE:  guiRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list preset scenes",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	initSceneCmd := &cobra.Command{
		Use:   "init-scene [path]",
		Short: "write a scene file to edit",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initScene,
	}
	initSceneCmd.Flags().StringVar(&preset, "preset", "cube_drop", "preset to start from")

	benchCmd := &cobra.Command{
		Use:   "bench [preset]",
		Short: "measure step throughput per backend",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchPreset,
	}
	benchCmd.Flags().IntVar(&benchStep, "steps", 200, "steps per measurement")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run short simulations over a parameter grid and rank them",
		Args:  cobra.NoArgs,
		RunE:  sweepScene,
	}
	sweepCmd.Flags().StringVar(&scenePath, "scene", "", "scene file (yaml or json)")
	sweepCmd.Flags().StringVar(&preset, "preset", "cube_drop", "preset scene, used when --scene is empty")
	sweepCmd.Flags().Float64Var(&sweepLength, "length", 0.05, "simulated time per trial in seconds")
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "name=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "peak_compression", "metric to rank by")
	sweepCmd.Flags().BoolVar(&sweepMaximize, "maximize", false, "rank larger values first")
	sweepCmd.Flags().IntVar(&sweepParallel, "parallel", 0, "trials at once (0 = all CPUs)")
	sweepCmd.Flags().Float64Var(&speedLimit, "speed-limit", 100, "max speed counted as stable by the stability metric")

	rootCmd.AddCommand(runCmd, listCmd, exportCmd, exportCSVCmd, exportSVGCmd, plotCmd, analyzeCmd,
		viewCmd, guiCmd, presetsCmd, initSceneCmd, benchCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
