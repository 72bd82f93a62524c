// Package sim drives a stepper through a fixed number of steps and emits
// position snapshots at frame boundaries.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/sphsim/internal/metrics"
	"github.com/san-kum/sphsim/internal/simerr"
)

// roundingSlack absorbs float error when dividing lengths by time steps,
// so 0.3 / 1e-4 is 3000 steps and not 2999.
const roundingSlack = 1e-6

type Scheduler struct {
	stepper   Stepper
	cfg       Config
	logger    *slog.Logger
	sinks     []FrameSink
	observers []Observer
	metrics   []metrics.Metric

	state         State
	totalSteps    int
	stepsPerFrame int
}

func New(stepper Stepper, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	spf := int(math.Ceil(1/(cfg.FrameRate*cfg.TimeStep) - roundingSlack))
	if spf < 1 {
		spf = 1
	}

	return &Scheduler{
		stepper:       stepper,
		cfg:           cfg,
		logger:        logger,
		totalSteps:    int(math.Floor(cfg.Length/cfg.TimeStep + roundingSlack)),
		stepsPerFrame: spf,
	}, nil
}

func validateConfig(cfg Config) error {
	if !(cfg.TimeStep > 0) {
		return fmt.Errorf("time step must be positive, got %f", cfg.TimeStep)
	}
	if !(cfg.FrameRate > 0) {
		return fmt.Errorf("frame rate must be positive, got %f", cfg.FrameRate)
	}
	if cfg.Length < 0 || math.IsNaN(cfg.Length) {
		return fmt.Errorf("length must be non-negative, got %f", cfg.Length)
	}
	return nil
}

func (s *Scheduler) AddSink(sink FrameSink)     { s.sinks = append(s.sinks, sink) }
func (s *Scheduler) AddObserver(o Observer)     { s.observers = append(s.observers, o) }
func (s *Scheduler) AddMetric(m metrics.Metric) { s.metrics = append(s.metrics, m) }

func (s *Scheduler) State() State       { return s.state }
func (s *Scheduler) TotalSteps() int    { return s.totalSteps }
func (s *Scheduler) StepsPerFrame() int { return s.stepsPerFrame }

// TotalFrames is the number of frame boundaries in [0, TotalSteps).
func (s *Scheduler) TotalFrames() int {
	return (s.totalSteps + s.stepsPerFrame - 1) / s.stepsPerFrame
}

// Run steps until TotalSteps have been taken, the context is canceled, or a
// sink fails. Frames are written by a separate goroutine; Run returns after
// every emitted frame has reached the sinks.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	result := &Result{Metrics: make(map[string]float64)}
	for _, m := range s.metrics {
		m.Reset()
	}

	s.logger.Info("simulation starting",
		"length", s.cfg.Length,
		"total_steps", s.totalSteps,
		"total_frames", s.TotalFrames(),
		"steps_per_frame", s.stepsPerFrame,
	)

	start := time.Now()
	s.state = Stepping

	buffer := s.cfg.FrameBuffer
	if buffer < 1 {
		buffer = 1
	}
	frames := make(chan Frame, buffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for f := range frames {
			for _, sink := range s.sinks {
				if err := sink.WriteFrame(f); err != nil {
					return fmt.Errorf("frame %d: %w", f.Index, err)
				}
			}
		}
		return nil
	})
	g.Go(func() error {
		defer close(frames)
		return s.loop(gctx, frames, result)
	})

	err := g.Wait()
	result.Elapsed = time.Since(start)
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	if err != nil {
		s.logger.Warn("simulation stopped", "step", result.StepsTaken, "error", err)
		return result, err
	}

	s.state = Finished
	result.Final = s.stepper.Stats()
	s.logger.Info("simulation finished",
		"steps", result.StepsTaken,
		"frames", result.FramesEmitted,
		"elapsed", result.Elapsed.Round(time.Millisecond),
	)
	return result, nil
}

func (s *Scheduler) loop(ctx context.Context, frames chan<- Frame, result *Result) error {
	for step := 0; step < s.totalSteps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if step%s.stepsPerFrame == 0 {
			f := s.snapshot(result.FramesEmitted, step)
			if s.cfg.ValidateState && !finite(f.Positions) {
				return &simerr.SimulationError{Step: step, Time: f.Time, Wrapped: simerr.ErrUnstable}
			}

			for _, o := range s.observers {
				o.OnFrame(f)
			}
			for _, m := range s.metrics {
				m.Observe(f.Stats)
			}
			s.logger.Debug("frame", "stats", f.Stats)

			select {
			case frames <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
			result.FramesEmitted++
		}

		s.stepper.Step()
		result.StepsTaken++
	}
	return nil
}

func (s *Scheduler) snapshot(index, step int) Frame {
	t := float64(step) * s.cfg.TimeStep
	stats := s.stepper.Stats()
	stats.Frame = index
	stats.Step = step
	stats.Time = t
	return Frame{
		Index:     index,
		Step:      step,
		Time:      t,
		Positions: s.stepper.ExportPositions(),
		Stats:     stats,
	}
}

func finite(positions []mgl32.Vec3) bool {
	for _, p := range positions {
		for _, c := range p {
			if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
				return false
			}
		}
	}
	return true
}
