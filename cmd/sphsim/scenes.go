package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/sphsim/internal/compute"
	"github.com/san-kum/sphsim/internal/optim"
	"github.com/san-kum/sphsim/internal/scene"
)

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARTICLES\tRADIUS\tDT\tFRAME RATE\tVISCOSITY")
	for _, name := range scene.ListPresets() {
		sc := scene.GetPreset(name)
		p := sc.Parameters
		fmt.Fprintf(w, "%s\t%d\t%g\t%g\t%g\t%g\n",
			name, sc.ParticleCount(), p.ParticleRadius, p.TimeStep, p.FrameRate, p.ViscosityCoefficient)
	}
	return w.Flush()
}

func initScene(cmd *cobra.Command, args []string) error {
	sc := scene.GetPreset(preset)
	if sc == nil {
		return fmt.Errorf("unknown preset %q", preset)
	}
	path := sc.Name + ".yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := scene.Save(path, sc); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d particles)\n", path, sc.ParticleCount())
	return nil
}

func benchPreset(cmd *cobra.Command, args []string) error {
	name := "dam_break"
	if len(args) == 1 {
		name = args[0]
	}
	sc := scene.GetPreset(name)
	if sc == nil {
		return fmt.Errorf("unknown preset %q", name)
	}

	backends := []compute.Backend{compute.NewSerialBackend()}
	for _, n := range []int{2, 4, 0} {
		backends = append(backends, compute.NewCPUBackend(n))
	}

	fmt.Printf("benchmarking %s (%d particles, %d steps)\n\n", name, sc.ParticleCount(), benchStep)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tWORKERS\tTIME\tSTEPS/SEC\tPARTICLE-STEPS/SEC")

	for _, b := range backends {
		solver, err := sc.Build(b)
		if err != nil {
			return err
		}

		start := time.Now()
		for i := 0; i < benchStep; i++ {
			solver.Step()
		}
		elapsed := time.Since(start)

		stepsPerSec := float64(benchStep) / elapsed.Seconds()
		fmt.Fprintf(w, "%s\t%d\t%v\t%.0f\t%.3g\n",
			b.Name(), b.Workers(), elapsed.Round(time.Millisecond), stepsPerSec, stepsPerSec*float64(sc.ParticleCount()))
	}

	return w.Flush()
}

func sweepScene(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd)
	if err != nil {
		return err
	}
	if len(sweepParams) == 0 {
		return fmt.Errorf("at least one --param is required, e.g. --param viscosity=0,0.01,0.05")
	}

	params := make([]optim.Param, 0, len(sweepParams))
	names := make([]string, 0, len(sweepParams))
	for _, s := range sweepParams {
		p, err := optim.ParseParam(s)
		if err != nil {
			return err
		}
		params = append(params, p)
		names = append(names, p.Name)
	}

	g := optim.NewGridSearch(params, sweepLength)
	g.SpeedLimit = speedLimit
	g.Parallel = sweepParallel
	if g.Parallel <= 0 {
		g.Parallel = runtime.NumCPU()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("sweep starting", "scene", sc.Name, "trials", len(g.Combinations()), "length", sweepLength)
	start := time.Now()
	trials, err := g.Run(ctx, sc)
	if err != nil {
		return err
	}
	logger.Info("sweep finished", "elapsed", time.Since(start).Round(time.Millisecond))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\t%s\t%s\tSTEPS\tSTATUS\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(sweepMetric))
	for i, t := range optim.Rank(trials, sweepMetric, !sweepMaximize) {
		cols := make([]string, len(names))
		for j, n := range names {
			cols[j] = fmt.Sprintf("%g", t.Params[n])
		}
		status := "ok"
		if t.Err != nil {
			status = t.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%.4g\t%d\t%s\n", i+1, strings.Join(cols, "\t"), t.Metrics[sweepMetric], t.Steps, status)
	}
	return w.Flush()
}
