package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/sphsim/internal/compute"
	"github.com/san-kum/sphsim/internal/gui"
	"github.com/san-kum/sphsim/internal/metrics"
	"github.com/san-kum/sphsim/internal/scene"
	"github.com/san-kum/sphsim/internal/sim"
	"github.com/san-kum/sphsim/internal/storage"
	"github.com/san-kum/sphsim/internal/viz"
)

// loadScene reads --scene, falling back to --preset, and applies the flags
// the user actually set on top of it.
func loadScene(cmd *cobra.Command) (*scene.Scene, error) {
	var sc *scene.Scene
	if scenePath != "" {
		var err error
		sc, err = scene.Load(scenePath)
		if err != nil {
			return nil, err
		}
	} else {
		sc = scene.GetPreset(preset)
		if sc == nil {
			return nil, fmt.Errorf("unknown preset %q (see 'sphsim presets')", preset)
		}
	}

	if cmd.Flags().Changed("dt") {
		sc.Parameters.TimeStep = float32(timeStep)
	}
	if cmd.Flags().Changed("frame-rate") {
		sc.Parameters.FrameRate = float32(frameRate)
	}
	return sc, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd)
	if err != nil {
		logger.Error("failed to load scene", "scene", scenePath, "error", err)
		return err
	}

	b, err := compute.New(backendName, workers)
	if err != nil {
		return err
	}
	compute.SetBackend(b)
	backend := compute.GetBackend()

	solver, err := sc.Build(backend)
	if err != nil {
		return err
	}

	log := logger
	if preview {
		// The terminal belongs to the preview.
		log = slog.New(slog.DiscardHandler)
	}
	log.Info("scene loaded",
		"scene", sc.Name,
		"particles", sc.ParticleCount(),
		"kernel_radius", sc.KernelRadius(),
		"particle_mass", sc.ParticleMass(),
		"grid_cells", solver.Grid().CellCount(),
		"backend", backend.Name(),
		"workers", backend.Workers(),
	)

	cfg := sim.Config{
		TimeStep:      float64(sc.Parameters.TimeStep),
		FrameRate:     float64(sc.Parameters.FrameRate),
		Length:        length,
		ValidateState: validate,
		FrameBuffer:   8,
	}
	sched, err := sim.New(solver, cfg, log)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	run, err := st.Create(sc.Name)
	if err != nil {
		return err
	}
	if enableOutput {
		if err := st.SaveFrames(run, outputDir); err != nil {
			return errors.Join(err, st.Discard(run))
		}
	}
	sched.AddSink(run)
	for _, m := range metrics.Default(float64(sc.Parameters.Density), speedLimit) {
		sched.AddMetric(m)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var result *sim.Result
	var runErr error
	switch {
	case preview || previewGUI:
		result, runErr = runWithPreview(ctx, sc, sched)
	default:
		result, runErr = sched.Run(ctx)
	}

	p := sc.Parameters
	meta := storage.RunMetadata{
		Scene:          sc.Name,
		Timestamp:      time.Now(),
		Particles:      sc.ParticleCount(),
		ParticleRadius: float64(p.ParticleRadius),
		KernelRadius:   float64(sc.KernelRadius()),
		ParticleMass:   float64(sc.ParticleMass()),
		RestDensity:    float64(p.Density),
		Viscosity:      float64(p.ViscosityCoefficient),
		Dt:             float64(p.TimeStep),
		FrameRate:      float64(p.FrameRate),
		Length:         length,
		DomainStart:    [3]float64{float64(p.DomainStart[0]), float64(p.DomainStart[1]), float64(p.DomainStart[2])},
		DomainEnd:      [3]float64{float64(p.DomainEnd[0]), float64(p.DomainEnd[1]), float64(p.DomainEnd[2])},
		Backend:        backend.Name(),
		Workers:        backend.Workers(),
		Steps:          result.StepsTaken,
		Frames:         result.FramesEmitted,
		StepsPerFrame:  sched.StepsPerFrame(),
		ElapsedSeconds: result.Elapsed.Seconds(),
		Metrics:        result.Metrics,
	}
	if err := st.Finish(run, meta); err != nil {
		return errors.Join(runErr, fmt.Errorf("saving run: %w", err))
	}
	if errors.Is(runErr, context.Canceled) {
		fmt.Printf("run %s stopped after %d of %d steps\n", run.ID, result.StepsTaken, sched.TotalSteps())
		return nil
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", run.ID, runErr)
	}

	fmt.Printf("run saved: %s\n", run.ID)
	fmt.Printf("steps: %d  frames: %d  elapsed: %v\n", result.StepsTaken, result.FramesEmitted, result.Elapsed.Round(time.Millisecond))
	if dir := run.FramesDir(); dir != "" {
		fmt.Printf("frames: %s\n", dir)
	}
	for _, name := range sortedKeys(result.Metrics) {
		fmt.Printf("  %-22s %.4g\n", name, result.Metrics[name])
	}
	return nil
}

// runWithPreview steps on a background goroutine while the preview owns
// the main one. Closing the preview cancels the run.
func runWithPreview(ctx context.Context, sc *scene.Scene, sched *sim.Scheduler) (*sim.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed := viz.NewFeed(32)
	sched.AddObserver(feed)

	var result *sim.Result
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, runErr = sched.Run(ctx)
		feed.Close()
	}()

	p := sc.Parameters
	if previewGUI {
		gui.RunLive(gui.Options{
			Title:          "sphsim: " + sc.Name,
			DomainStart:    p.DomainStart,
			DomainEnd:      p.DomainEnd,
			ParticleRadius: p.ParticleRadius,
			FrameRate:      float64(p.FrameRate),
		}, feed.Frames())
	} else {
		err := viz.Run(viz.NewLive(viz.Options{
			Title:       sc.Name,
			DomainStart: p.DomainStart,
			DomainEnd:   p.DomainEnd,
			TotalFrames: sched.TotalFrames(),
			FrameRate:   float64(p.FrameRate),
		}, feed.Frames()))
		if err != nil {
			logger.Warn("preview failed", "error", err)
		}
	}

	cancel()
	<-done

	if dropped := feed.Dropped(); dropped > 0 {
		logger.Debug("preview skipped frames", "dropped", dropped)
	}
	return result, runErr
}
