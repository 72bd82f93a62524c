package gui

import (
	"fmt"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/sphsim/internal/sim"
)

var (
	ColBg      = rl.NewColor(10, 10, 10, 255)
	ColAccent  = rl.NewColor(180, 180, 180, 255)
	ColSelect  = rl.NewColor(255, 255, 255, 255)
	ColText    = rl.NewColor(140, 140, 140, 255)
	ColTextDim = rl.NewColor(60, 60, 60, 255)
	ColGrid    = rl.NewColor(30, 30, 30, 255)
)

const maxTelemetry = 400

type Options struct {
	Title                  string
	DomainStart, DomainEnd mgl32.Vec3
	ParticleRadius         float32
	// FrameRate is the replay speed in frames per second.
	FrameRate float64
}

// App draws particle frames with raylib. Frames come either from a live
// channel fed by the scheduler or from a stored run.
type App struct {
	opts      Options
	Camera    rl.Camera3D
	camPos    rl.Vector3
	camTarget rl.Vector3
	frames    []sim.Frame
	live      <-chan sim.Frame
	done      bool
	Running   bool
	playHead  int
	elapsed   float64
	Telemetry []float64
}

func initWindow(title string) {
	rl.InitWindow(1280, 720, title)
	rl.SetTargetFPS(60)
	rl.SetExitKey(0)
}

func newApp(opts Options) *App {
	if opts.Title == "" {
		opts.Title = "sphsim"
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	if opts.ParticleRadius <= 0 {
		opts.ParticleRadius = 0.01
	}

	center := opts.DomainStart.Add(opts.DomainEnd).Mul(0.5)
	size := opts.DomainEnd.Sub(opts.DomainStart).Len()
	target := rl.NewVector3(center.X(), center.Y(), center.Z())
	pos := rl.NewVector3(center.X()+size, center.Y()+size*0.6, center.Z()+size)

	return &App{
		opts:      opts,
		Camera:    rl.NewCamera3D(pos, target, rl.NewVector3(0, 1, 0), 45.0, rl.CameraPerspective),
		camPos:    pos,
		camTarget: target,
		Running:   true,
		Telemetry: make([]float64, 0, maxTelemetry),
	}
}

// RunLive opens a window and follows frames until the window is closed.
// A closed channel leaves the last frame on screen.
func RunLive(opts Options, ch <-chan sim.Frame) {
	initWindow(opts.Title)
	defer rl.CloseWindow()
	app := newApp(opts)
	app.live = ch
	app.playHead = -1
	app.RunLoop()
}

// RunReplay opens a window and loops over stored frames.
func RunReplay(opts Options, frames []sim.Frame) {
	initWindow(opts.Title)
	defer rl.CloseWindow()
	app := newApp(opts)
	app.frames = frames
	app.done = true
	for _, f := range frames {
		app.pushTelemetry(f.Stats.KineticEnergy)
	}
	app.RunLoop()
}

func (a *App) RunLoop() {
	for !rl.WindowShouldClose() {
		if rl.IsKeyPressed(rl.KeyQ) {
			return
		}
		a.Update()
		a.Draw()
	}
}

func (a *App) pushTelemetry(v float64) {
	a.Telemetry = append(a.Telemetry, v)
	if len(a.Telemetry) > maxTelemetry {
		a.Telemetry = a.Telemetry[1:]
	}
}

// drain takes every frame waiting on the live channel without blocking
// the render loop.
func (a *App) drain() {
	for {
		select {
		case f, ok := <-a.live:
			if !ok {
				a.live = nil
				a.done = true
				return
			}
			a.frames = append(a.frames, f)
			a.pushTelemetry(f.Stats.KineticEnergy)
		default:
			return
		}
	}
}

func (a *App) Update() {
	dt := float64(rl.GetFrameTime())
	if a.live != nil {
		a.drain()
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		a.Running = !a.Running
		if !a.Running && a.playHead == -1 && len(a.frames) > 0 {
			a.playHead = len(a.frames) - 1
		}
	}
	if rl.IsKeyPressed(rl.KeyLeft) {
		a.step(-1)
	}
	if rl.IsKeyPressed(rl.KeyRight) {
		a.step(1)
	}
	if rl.IsKeyPressed(rl.KeyR) {
		a.playHead = 0
		a.elapsed = 0
	}

	if a.Running && len(a.frames) > 0 {
		if a.isReplay() {
			a.elapsed += dt
			interval := 1 / a.opts.FrameRate
			for a.elapsed >= interval {
				a.elapsed -= interval
				a.playHead = (a.playHead + 1) % len(a.frames)
			}
		} else {
			a.playHead = -1
		}
	}

	a.updateCamera(float32(dt))
}

func (a *App) isReplay() bool { return a.done && a.live == nil && a.playHead >= 0 }

func (a *App) step(dir int) {
	if len(a.frames) == 0 {
		return
	}
	a.Running = false
	if a.playHead == -1 {
		a.playHead = len(a.frames) - 1
	}
	a.playHead = max(0, min(len(a.frames)-1, a.playHead+dir))
}

// updateCamera moves the target positions from input, then eases the
// camera toward them.
func (a *App) updateCamera(dt float32) {
	diff := rl.Vector3Subtract(a.camPos, a.camTarget)

	if rl.IsMouseButtonDown(rl.MouseRightButton) {
		delta := rl.GetMouseDelta()
		yaw := float64(-delta.X) * 0.005
		c, s := float32(math.Cos(yaw)), float32(math.Sin(yaw))
		diff = rl.NewVector3(diff.X*c-diff.Z*s, diff.Y+delta.Y*0.01, diff.X*s+diff.Z*c)
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		scale := float32(1 - 0.1*wheel)
		if rl.Vector3Length(diff)*scale > a.opts.ParticleRadius*4 {
			diff = rl.Vector3Scale(diff, scale)
		}
	}
	a.camPos = rl.Vector3Add(a.camTarget, diff)

	lerp := min(5*dt, 1)
	a.Camera.Position = rl.Vector3Lerp(a.Camera.Position, a.camPos, lerp)
	a.Camera.Target = rl.Vector3Lerp(a.Camera.Target, a.camTarget, lerp)
}

func (a *App) current() (sim.Frame, bool) {
	if len(a.frames) == 0 {
		return sim.Frame{}, false
	}
	if a.playHead >= 0 && a.playHead < len(a.frames) {
		return a.frames[a.playHead], true
	}
	return a.frames[len(a.frames)-1], true
}

func (a *App) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(ColBg)
	a.drawSim()
	a.DrawHUD()
	rl.EndDrawing()
}

func (a *App) DrawHUD() {
	rl.DrawText(a.opts.Title, 30, 30, 24, ColSelect)

	status := "RUNNING"
	col := ColSelect
	switch {
	case !a.Running:
		status, col = "PAUSED", ColTextDim
	case a.isReplay():
		status = "REPLAY"
	case a.done:
		status = "FINISHED"
	}
	rl.DrawText(status, 1150, 30, 16, col)

	if f, ok := a.current(); ok {
		info := fmt.Sprintf("frame %d  step %d  t=%.4fs  n=%d", f.Index, f.Step, f.Time, len(f.Positions))
		rl.DrawText(info, 30, 64, 16, ColText)
		info = fmt.Sprintf("max density %.1f  max speed %.3f", f.Stats.MaxDensity, f.Stats.MaxSpeed)
		rl.DrawText(info, 30, 86, 16, ColText)
	}

	a.DrawTelemetry()
	rl.DrawText("[SPACE] PAUSE  [<-/->] STEP  [R] RESTART  [RMB] ORBIT  [Q] QUIT", 640, 680, 14, ColTextDim)
	rl.DrawFPS(30, 680)
}

func (a *App) drawSim() {
	rl.BeginMode3D(a.Camera)

	start, end := a.opts.DomainStart, a.opts.DomainEnd
	center := start.Add(end).Mul(0.5)
	size := end.Sub(start)
	rl.DrawCubeWiresV(
		rl.NewVector3(center.X(), center.Y(), center.Z()),
		rl.NewVector3(size.X(), size.Y(), size.Z()),
		ColGrid,
	)

	if f, ok := a.current(); ok {
		height := size.Y()
		for _, p := range f.Positions {
			col := heightColor(p.Y()-start.Y(), height)
			rl.DrawSphereEx(rl.NewVector3(p.X(), p.Y(), p.Z()), a.opts.ParticleRadius, 4, 6, col)
		}
	}

	rl.EndMode3D()
}

// heightColor shades particles from deep blue at the floor to near white
// at the ceiling.
func heightColor(h, domainHeight float32) rl.Color {
	t := float32(0)
	if domainHeight > 0 {
		t = max(0, min(1, h/domainHeight))
	}
	return rl.NewColor(uint8(40+t*200), uint8(90+t*160), 255, 230)
}

func (a *App) DrawTelemetry() {
	if len(a.Telemetry) < 2 {
		return
	}

	rectX, rectY := 30, 600
	width, height := 400, 60

	minVal, maxVal := a.Telemetry[0], a.Telemetry[0]
	for _, v := range a.Telemetry {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if maxVal == minVal {
		maxVal = minVal + 1
	}

	points := make([]rl.Vector2, len(a.Telemetry))
	for i, val := range a.Telemetry {
		px := float32(rectX) + (float32(i)/float32(len(a.Telemetry)))*float32(width)
		norm := (val - minVal) / (maxVal - minVal)
		py := float32(rectY+height) - float32(norm)*float32(height)
		points[i] = rl.NewVector2(px, py)
	}

	rl.DrawLineStrip(points, ColAccent)
	rl.DrawText(fmt.Sprintf("KE: %.2e", a.Telemetry[len(a.Telemetry)-1]), int32(rectX+width+10), int32(rectY+height-10), 14, ColText)
}
