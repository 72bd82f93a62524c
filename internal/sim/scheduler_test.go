package sim

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/sphsim/internal/metrics"
	"github.com/san-kum/sphsim/internal/simerr"
)

// countingStepper moves a single particle up by one unit per step.
type countingStepper struct {
	steps  int
	pos    []mgl32.Vec3
	nanAt  int
	cancel context.CancelFunc
	stopAt int
}

func newCountingStepper() *countingStepper {
	return &countingStepper{pos: make([]mgl32.Vec3, 1), nanAt: -1, stopAt: -1}
}

func (c *countingStepper) Step() {
	c.steps++
	c.pos[0][1] = float32(c.steps)
	if c.steps == c.nanAt {
		c.pos[0][0] = float32(math.NaN())
	}
	if c.steps == c.stopAt && c.cancel != nil {
		c.cancel()
	}
}

func (c *countingStepper) ExportPositions() []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(c.pos))
	copy(out, c.pos)
	return out
}

func (c *countingStepper) Stats() metrics.Stats {
	return metrics.Stats{KineticEnergy: float64(c.steps)}
}

type recordingSink struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *recordingSink) WriteFrame(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

func TestSchedulerCounts(t *testing.T) {
	tests := []struct {
		name          string
		cfg           Config
		totalSteps    int
		stepsPerFrame int
		totalFrames   int
	}{
		{"ceil frames", Config{TimeStep: 0.01, FrameRate: 30, Length: 1}, 100, 4, 25},
		{"one step per frame", Config{TimeStep: 0.1, FrameRate: 10, Length: 1}, 10, 1, 10},
		{"frame rate above step rate", Config{TimeStep: 0.01, FrameRate: 1000, Length: 0.05}, 5, 1, 5},
		{"float32 time step", Config{TimeStep: float64(float32(1e-4)), FrameRate: 30, Length: 0.3}, 3000, 334, 9},
		{"exact float64 time step", Config{TimeStep: 1e-4, FrameRate: 100, Length: 0.3}, 3000, 100, 30},
		{"zero length", Config{TimeStep: 0.01, FrameRate: 30, Length: 0}, 0, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(newCountingStepper(), tt.cfg, nil)
			if err != nil {
				t.Fatalf("new failed: %v", err)
			}
			if s.TotalSteps() != tt.totalSteps {
				t.Errorf("expected %d steps, got %d", tt.totalSteps, s.TotalSteps())
			}
			if s.StepsPerFrame() != tt.stepsPerFrame {
				t.Errorf("expected %d steps per frame, got %d", tt.stepsPerFrame, s.StepsPerFrame())
			}
			if s.TotalFrames() != tt.totalFrames {
				t.Errorf("expected %d frames, got %d", tt.totalFrames, s.TotalFrames())
			}
		})
	}
}

func TestSchedulerInvalidConfig(t *testing.T) {
	tests := []Config{
		{TimeStep: 0, FrameRate: 30, Length: 1},
		{TimeStep: 0.01, FrameRate: 0, Length: 1},
		{TimeStep: 0.01, FrameRate: 30, Length: -1},
	}
	for _, cfg := range tests {
		if _, err := New(newCountingStepper(), cfg, nil); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}

func TestSchedulerRun(t *testing.T) {
	stepper := newCountingStepper()
	s, _ := New(stepper, Config{TimeStep: 0.01, FrameRate: 30, Length: 1, FrameBuffer: 4}, nil)
	sink := &recordingSink{}
	s.AddSink(sink)
	s.AddMetric(metrics.NewMeanKineticEnergy())

	if s.State() != Stepping {
		t.Errorf("expected initial state stepping, got %s", s.State())
	}

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if s.State() != Finished {
		t.Errorf("expected state finished, got %s", s.State())
	}
	if result.StepsTaken != 100 || stepper.steps != 100 {
		t.Errorf("expected 100 steps, got %d (stepper %d)", result.StepsTaken, stepper.steps)
	}
	if result.FramesEmitted != 25 || len(sink.frames) != 25 {
		t.Fatalf("expected 25 frames, got %d (sink %d)", result.FramesEmitted, len(sink.frames))
	}

	for k, f := range sink.frames {
		if f.Index != k || f.Step != 4*k {
			t.Errorf("frame %d: index %d step %d", k, f.Index, f.Step)
		}
		// Frames are taken before the step runs.
		if f.Positions[0].Y() != float32(4*k) {
			t.Errorf("frame %d: expected y=%d, got %f", k, 4*k, f.Positions[0].Y())
		}
		if math.Abs(f.Time-0.04*float64(k)) > 1e-9 {
			t.Errorf("frame %d: expected time %f, got %f", k, 0.04*float64(k), f.Time)
		}
		if f.Stats.Frame != k {
			t.Errorf("frame %d: stats frame %d", k, f.Stats.Frame)
		}
	}

	// mean of 0, 4, ..., 96
	if math.Abs(result.Metrics["mean_kinetic_energy"]-48) > 1e-9 {
		t.Errorf("expected mean kinetic energy 48, got %f", result.Metrics["mean_kinetic_energy"])
	}
	if result.Final.KineticEnergy != 100 {
		t.Errorf("expected final stats after last step, got %f", result.Final.KineticEnergy)
	}
}

func TestSchedulerObserver(t *testing.T) {
	s, _ := New(newCountingStepper(), Config{TimeStep: 0.1, FrameRate: 5, Length: 1}, nil)
	var seen []int
	s.AddObserver(observerFunc(func(f Frame) { seen = append(seen, f.Step) }))

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := []int{0, 2, 4, 6, 8}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("expected %v, got %v", want, seen)
			break
		}
	}
}

type observerFunc func(f Frame)

func (fn observerFunc) OnFrame(f Frame) { fn(f) }

func TestSchedulerSinkError(t *testing.T) {
	stepper := newCountingStepper()
	s, _ := New(stepper, Config{TimeStep: 0.01, FrameRate: 100, Length: 10}, nil)
	boom := errors.New("disk full")
	s.AddSink(FrameSinkFunc(func(f Frame) error {
		if f.Index == 3 {
			return boom
		}
		return nil
	}))

	result, err := s.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if s.State() == Finished {
		t.Error("expected run not to finish")
	}
	if result.StepsTaken >= 1000 {
		t.Errorf("expected early stop, took %d steps", result.StepsTaken)
	}
}

func TestSchedulerCancel(t *testing.T) {
	stepper := newCountingStepper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stepper.cancel = cancel
	stepper.stopAt = 50

	s, _ := New(stepper, Config{TimeStep: 0.01, FrameRate: 30, Length: 10}, nil)
	result, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.StepsTaken != 50 {
		t.Errorf("expected 50 steps before cancel, got %d", result.StepsTaken)
	}
}

func TestSchedulerValidateState(t *testing.T) {
	stepper := newCountingStepper()
	stepper.nanAt = 5
	s, _ := New(stepper, Config{TimeStep: 0.01, FrameRate: 50, Length: 1, ValidateState: true}, nil)

	_, err := s.Run(context.Background())
	if !errors.Is(err, simerr.ErrUnstable) {
		t.Fatalf("expected ErrUnstable, got %v", err)
	}
	var simErr *simerr.SimulationError
	if !errors.As(err, &simErr) {
		t.Fatal("expected SimulationError")
	}
	if simErr.Step != 6 {
		t.Errorf("expected failure at first frame after NaN (step 6), got %d", simErr.Step)
	}
}

func TestSchedulerWithoutValidation(t *testing.T) {
	stepper := newCountingStepper()
	stepper.nanAt = 5
	s, _ := New(stepper, Config{TimeStep: 0.01, FrameRate: 50, Length: 0.2}, nil)
	if _, err := s.Run(context.Background()); err != nil {
		t.Errorf("expected run to ignore NaN without validation, got %v", err)
	}
}
