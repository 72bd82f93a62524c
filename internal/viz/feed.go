package viz

import "github.com/san-kum/sphsim/internal/sim"

// Feed forwards scheduler frames to a live viewer. Frames are dropped
// when the viewer falls behind so the simulation never waits on the
// terminal.
type Feed struct {
	ch      chan sim.Frame
	dropped int
}

func NewFeed(buffer int) *Feed {
	return &Feed{ch: make(chan sim.Frame, max(1, buffer))}
}

func (f *Feed) OnFrame(frame sim.Frame) {
	select {
	case f.ch <- frame:
	default:
		f.dropped++
	}
}

func (f *Feed) Frames() <-chan sim.Frame { return f.ch }

// Dropped is only meaningful once the run has returned.
func (f *Feed) Dropped() int { return f.dropped }

// Close must be called after the scheduler has returned.
func (f *Feed) Close() { close(f.ch) }
