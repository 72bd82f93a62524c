// Package optim sweeps scene parameters over a grid and ranks the runs by
// one of their summary metrics.
package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/sphsim/internal/compute"
	"github.com/san-kum/sphsim/internal/metrics"
	"github.com/san-kum/sphsim/internal/scene"
	"github.com/san-kum/sphsim/internal/sim"
)

// Param is one axis of the grid.
type Param struct {
	Name   string
	Values []float64
}

// ParseParam reads "name=v1,v2,...".
func ParseParam(s string) (Param, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return Param{}, fmt.Errorf("parameter %q: want name=v1,v2,...", s)
	}
	if _, err := setter(name); err != nil {
		return Param{}, err
	}

	p := Param{Name: name}
	for _, field := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return Param{}, fmt.Errorf("parameter %s: %w", name, err)
		}
		p.Values = append(p.Values, v)
	}
	return p, nil
}

func setter(name string) (func(p *scene.Parameters, v float32), error) {
	switch name {
	case "viscosity":
		return func(p *scene.Parameters, v float32) { p.ViscosityCoefficient = v }, nil
	case "time_step":
		return func(p *scene.Parameters, v float32) { p.TimeStep = v }, nil
	case "restitution":
		return func(p *scene.Parameters, v float32) { p.Restitution = &v }, nil
	case "sound_speed":
		return func(p *scene.Parameters, v float32) { p.SoundSpeed = v }, nil
	case "eos_exponent":
		return func(p *scene.Parameters, v float32) { p.EOSExponent = v }, nil
	case "density":
		return func(p *scene.Parameters, v float32) { p.Density = v }, nil
	default:
		return nil, fmt.Errorf("unknown sweep parameter %q", name)
	}
}

// Apply sets named parameters on a copy of base.
func Apply(base *scene.Scene, values map[string]float64) (*scene.Scene, error) {
	sc := base.Clone()
	for name, v := range values {
		set, err := setter(name)
		if err != nil {
			return nil, err
		}
		set(&sc.Parameters, float32(v))
	}
	return sc, nil
}

// Trial is the outcome of one grid point. A trial that blew up keeps its
// error and whatever metrics it gathered before stopping.
type Trial struct {
	Params  map[string]float64
	Metrics map[string]float64
	Steps   int
	Err     error
}

type GridSearch struct {
	params []Param
	// Length is the simulated time of each trial.
	Length float64
	// Parallel bounds how many trials run at once.
	Parallel   int
	SpeedLimit float64
}

func NewGridSearch(params []Param, length float64) *GridSearch {
	return &GridSearch{params: params, Length: length, Parallel: 1, SpeedLimit: 100}
}

// Combinations lists every grid point, the last parameter varying fastest.
func (g *GridSearch) Combinations() []map[string]float64 {
	var out []map[string]float64
	g.combine(0, map[string]float64{}, &out)
	return out
}

func (g *GridSearch) combine(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.params) {
		point := make(map[string]float64, len(current))
		for k, v := range current {
			point[k] = v
		}
		*out = append(*out, point)
		return
	}

	p := g.params[depth]
	for _, v := range p.Values {
		current[p.Name] = v
		g.combine(depth+1, current, out)
	}
	delete(current, p.Name)
}

// Run simulates every grid point from base. Trials run serially inside and
// Parallel at a time across the grid. Only scene errors and cancellation
// fail the sweep; instability is recorded on the trial.
func (g *GridSearch) Run(ctx context.Context, base *scene.Scene) ([]Trial, error) {
	points := g.Combinations()
	trials := make([]Trial, len(points))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, g.Parallel))
	for i, point := range points {
		eg.Go(func() error {
			trial, err := g.runTrial(ctx, base, point)
			if err != nil {
				return err
			}
			trials[i] = trial
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return trials, nil
}

func (g *GridSearch) runTrial(ctx context.Context, base *scene.Scene, point map[string]float64) (Trial, error) {
	sc, err := Apply(base, point)
	if err != nil {
		return Trial{}, err
	}
	solver, err := sc.Build(compute.NewSerialBackend())
	if err != nil {
		return Trial{}, fmt.Errorf("grid point %v: %w", point, err)
	}

	sched, err := sim.New(solver, sim.Config{
		TimeStep:      float64(sc.Parameters.TimeStep),
		FrameRate:     float64(sc.Parameters.FrameRate),
		Length:        g.Length,
		ValidateState: true,
		FrameBuffer:   1,
	}, nil)
	if err != nil {
		return Trial{}, err
	}
	for _, m := range metrics.Default(float64(sc.Parameters.Density), g.SpeedLimit) {
		sched.AddMetric(m)
	}

	result, runErr := sched.Run(ctx)
	if ctx.Err() != nil {
		return Trial{}, ctx.Err()
	}
	return Trial{Params: point, Metrics: result.Metrics, Steps: result.StepsTaken, Err: runErr}, nil
}

// Rank orders trials by metric, failed trials last.
func Rank(trials []Trial, metric string, minimize bool) []Trial {
	ranked := append([]Trial(nil), trials...)
	score := func(t Trial) float64 {
		v, ok := t.Metrics[metric]
		if t.Err != nil || !ok || math.IsNaN(v) {
			return math.Inf(1)
		}
		if !minimize {
			return -v
		}
		return v
	}
	sort.SliceStable(ranked, func(i, j int) bool { return score(ranked[i]) < score(ranked[j]) })
	return ranked
}
