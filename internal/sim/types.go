package sim

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/sphsim/internal/metrics"
)

// Stepper is the simulation being driven, usually an *sph.Solver.
type Stepper interface {
	Step()
	ExportPositions() []mgl32.Vec3
	Stats() metrics.Stats
}

// Frame is a snapshot emitted at a frame boundary. Positions is a private
// copy and is never written after the frame is emitted.
type Frame struct {
	Index     int
	Step      int
	Time      float64
	Positions []mgl32.Vec3
	Stats     metrics.Stats
}

// FrameSink consumes frames on the writer goroutine, in frame order.
type FrameSink interface {
	WriteFrame(f Frame) error
}

type FrameSinkFunc func(f Frame) error

func (fn FrameSinkFunc) WriteFrame(f Frame) error { return fn(f) }

// Observer sees every frame on the stepping goroutine before it is handed
// to the sinks.
type Observer interface {
	OnFrame(f Frame)
}

type Config struct {
	TimeStep  float64
	FrameRate float64
	Length    float64
	// ValidateState aborts the run when a frame holds a non-finite position.
	ValidateState bool
	// FrameBuffer is how many frames may wait for the sinks.
	FrameBuffer int
}

type State int

const (
	Stepping State = iota
	Finished
)

func (s State) String() string {
	switch s {
	case Stepping:
		return "stepping"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

type Result struct {
	StepsTaken    int
	FramesEmitted int
	Elapsed       time.Duration
	Metrics       map[string]float64
	Final         metrics.Stats
}
