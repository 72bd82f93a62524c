package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/sphsim/internal/sim"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
)

type (
	frameMsg sim.Frame
	doneMsg  struct{}
	tickMsg  time.Time
)

type Options struct {
	Title                  string
	DomainStart, DomainEnd mgl32.Vec3
	// TotalFrames drives the progress bar; zero hides it.
	TotalFrames int
	// FrameRate is the replay speed in frames per second.
	FrameRate float64
	// GIFPath is where the G key saves a recording.
	GIFPath string
}

// Model shows particle frames either as they arrive from a running
// simulation or from a stored run.
type Model struct {
	opts     Options
	canvas   *Canvas
	camera   *Camera
	frames   []sim.Frame
	energy   []float64
	live     <-chan sim.Frame
	done     bool
	running  bool
	playHead int
	recorder *Recorder
	status   string
	showHelp bool
}

func newModel(opts Options) Model {
	if opts.Title == "" {
		opts.Title = "sphsim"
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	if opts.GIFPath == "" {
		opts.GIFPath = "simulation.gif"
	}
	return Model{
		opts:     opts,
		canvas:   NewCanvas(width, height),
		camera:   NewCamera(opts.DomainStart, opts.DomainEnd),
		frames:   make([]sim.Frame, 0, historyCapacity),
		energy:   make([]float64, 0, historyCapacity),
		running:  true,
		playHead: -1,
	}
}

// NewLive follows frames from a running simulation until ch is closed.
func NewLive(opts Options, ch <-chan sim.Frame) Model {
	m := newModel(opts)
	m.live = ch
	return m
}

// NewReplay plays back stored frames at opts.FrameRate.
func NewReplay(opts Options, frames []sim.Frame) Model {
	m := newModel(opts)
	m.frames = frames
	m.done = true
	m.playHead = 0
	for _, f := range frames {
		m.energy = append(m.energy, f.Stats.KineticEnergy)
	}
	if opts.TotalFrames == 0 {
		m.opts.TotalFrames = len(frames)
	}
	return m
}

func waitForFrame(ch <-chan sim.Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			return doneMsg{}
		}
		return frameMsg(f)
	}
}

func (m Model) tick() tea.Cmd {
	interval := time.Duration(float64(time.Second) / m.opts.FrameRate)
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	if m.live != nil {
		return waitForFrame(m.live)
	}
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case frameMsg:
		m.push(sim.Frame(msg))
		if m.recorder != nil && m.playHead == -1 {
			m.draw()
			m.recorder.Capture(m.canvas)
		}
		return m, waitForFrame(m.live)
	case doneMsg:
		m.done = true
		return m, nil
	case tickMsg:
		if m.running && m.live == nil && len(m.frames) > 0 {
			m.playHead = (m.playHead + 1) % len(m.frames)
			if m.recorder != nil {
				m.draw()
				m.recorder.Capture(m.canvas)
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.recorder != nil {
			m.stopRecording()
		}
		return m, tea.Quit
	case " ":
		m.running = !m.running
		if m.live != nil {
			m.playHead = -1
			if !m.running && len(m.frames) > 0 {
				m.playHead = len(m.frames) - 1
			}
		}
	case "[":
		m.scrub(-1)
	case "]":
		m.scrub(1)
	case "left", "h":
		m.camera.Orbit(-0.1, 0)
	case "right", "l":
		m.camera.Orbit(0.1, 0)
	case "up", "k":
		m.camera.Orbit(0, 0.1)
	case "down", "j":
		m.camera.Orbit(0, -0.1)
	case "+", "=":
		m.camera.ZoomIn()
	case "-", "_":
		m.camera.ZoomOut()
	case "g":
		if m.recorder != nil {
			m.stopRecording()
		} else {
			m.recorder = NewRecorder()
			m.status = ""
		}
	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m *Model) push(f sim.Frame) {
	m.frames = append(m.frames, f)
	m.energy = append(m.energy, f.Stats.KineticEnergy)
	if len(m.frames) > historyCapacity {
		m.frames = m.frames[1:]
		m.energy = m.energy[1:]
		if m.playHead > 0 {
			m.playHead--
		}
	}
}

// scrub moves the play head; stepping past the newest live frame resumes
// following the simulation.
func (m *Model) scrub(dir int) {
	if len(m.frames) == 0 {
		return
	}
	if m.playHead == -1 {
		m.playHead = len(m.frames) - 1
	}
	m.running = false
	m.playHead += dir
	if m.playHead < 0 {
		m.playHead = 0
	}
	if m.playHead >= len(m.frames) {
		if m.live != nil {
			m.playHead = -1
			m.running = true
		} else {
			m.playHead = len(m.frames) - 1
		}
	}
}

func (m *Model) stopRecording() {
	if err := m.recorder.Save(m.opts.GIFPath); err != nil {
		m.status = "record failed: " + err.Error()
	} else {
		m.status = fmt.Sprintf("saved %d frames to %s", m.recorder.Len(), m.opts.GIFPath)
	}
	m.recorder = nil
}

// current returns the frame on screen, if any.
func (m Model) current() (sim.Frame, bool) {
	if len(m.frames) == 0 {
		return sim.Frame{}, false
	}
	if m.playHead >= 0 && m.playHead < len(m.frames) {
		return m.frames[m.playHead], true
	}
	return m.frames[len(m.frames)-1], true
}

func (m Model) draw() {
	m.canvas.Clear()
	f, _ := m.current()
	Render(m.canvas, Scene{
		DomainStart: m.opts.DomainStart,
		DomainEnd:   m.opts.DomainEnd,
		Positions:   f.Positions,
	}, m.camera)
}

func (m Model) statusLine() string {
	switch {
	case m.recorder != nil:
		return statusRecord.Render(fmt.Sprintf("● REC %d", m.recorder.Len()))
	case m.live != nil && !m.done && m.running:
		return statusRunning.Render("RUNNING")
	case m.live != nil && !m.done:
		return statusPaused.Render("PAUSED")
	case m.live != nil:
		return statusRunning.Render("FINISHED")
	case m.running:
		return statusRunning.Render("REPLAY")
	default:
		return statusPaused.Render("REPLAY PAUSED")
	}
}

func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.opts.Title)) + "\n")
	s.WriteString(m.statusLine() + "\n\n")

	f, ok := m.current()
	if m.opts.TotalFrames > 0 && ok {
		frac := float64(f.Index+1) / float64(m.opts.TotalFrames)
		s.WriteString(ProgressBar(frac, 30) + "\n\n")
	}
	if len(m.energy) > 1 {
		chart := asciigraph.Plot(m.energy, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	if ok {
		row("Frame", fmt.Sprintf("%d / %d", f.Index, max(m.opts.TotalFrames-1, f.Index)))
		row("Step", fmt.Sprintf("%d", f.Step))
		row("Time", fmt.Sprintf("%.4fs", f.Time))
		row("Particles", fmt.Sprintf("%d", len(f.Positions)))
		row("Max density", fmt.Sprintf("%.1f", f.Stats.MaxDensity))
		row("Max speed", fmt.Sprintf("%.3f", f.Stats.MaxSpeed))
		row("Mean height", fmt.Sprintf("%.4f", f.Stats.MeanHeight))
	} else {
		row("Frame", "waiting")
	}
	if m.status != "" {
		s.WriteString("\n" + m.status + "\n")
	}
	s.WriteString(helpStyle.Render("─────────────────────\nSP:Pause Q:Quit ?:Help\n[ ]:Scrub ←→↑↓:Orbit"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  [ ]      - Step back/forward        ║
║  ←/→      - Orbit around Y axis      ║
║  ↑/↓      - Tilt camera              ║
║  + / -    - Zoom in/out              ║
║  G        - Toggle GIF recording     ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

// Run starts the viewer on the alternate screen and blocks until the user
// quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
