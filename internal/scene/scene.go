// Package scene loads and validates simulation scenes.
//
// A scene is a YAML (or JSON) document with the physical parameters and the
// fluid blocks to fill with particles:
//
//	name: cube_drop
//	parameters:
//	  domain_start: [0, 0, 0]
//	  domain_end: [1, 1, 1]
//	  particle_radius: 0.05
//	  density: 1000
//	  gravitation: [0, -9.8, 0]
//	  time_step: 0.0001
//	  frame_rate: 30
//	fluid_blocks:
//	  - domain_start: [0.3, 0.1, 0.3]
//	    domain_end: [0.7, 0.5, 0.7]
package scene

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/sphsim/internal/compute"
	"github.com/san-kum/sphsim/internal/particles"
	"github.com/san-kum/sphsim/internal/simerr"
	"github.com/san-kum/sphsim/internal/sph"
)

const (
	DefaultParticleRadius = 0.05
	DefaultDensity        = 1000.0
	DefaultTimeStep       = 1e-4
	DefaultFrameRate      = 30.0
	DefaultLength         = 0.3
)

type Scene struct {
	Name        string       `yaml:"name"`
	Parameters  Parameters   `yaml:"parameters"`
	FluidBlocks []FluidBlock `yaml:"fluid_blocks"`
}

type Parameters struct {
	DomainStart          mgl32.Vec3 `yaml:"domain_start"`
	DomainEnd            mgl32.Vec3 `yaml:"domain_end"`
	ParticleRadius       float32    `yaml:"particle_radius"`
	Density              float32    `yaml:"density"`
	Gravitation          mgl32.Vec3 `yaml:"gravitation"`
	ViscosityCoefficient float32    `yaml:"viscosity_coefficient"`
	TimeStep             float32    `yaml:"time_step"`
	FrameRate            float32    `yaml:"frame_rate"`
	PerAxisRestitution   bool       `yaml:"per_axis_restitution,omitempty"`
	Restitution          *float32   `yaml:"restitution,omitempty"`
	SoundSpeed           float32    `yaml:"sound_speed,omitempty"`
	EOSExponent          float32    `yaml:"eos_exponent,omitempty"`
}

// FluidBlock is a box to fill with particles on a 2*radius lattice.
type FluidBlock struct {
	DomainStart mgl32.Vec3 `yaml:"domain_start"`
	DomainEnd   mgl32.Vec3 `yaml:"domain_end"`
}

func DefaultParameters() Parameters {
	return Parameters{
		DomainStart:    mgl32.Vec3{0, 0, 0},
		DomainEnd:      mgl32.Vec3{1, 1, 1},
		ParticleRadius: DefaultParticleRadius,
		Density:        DefaultDensity,
		Gravitation:    mgl32.Vec3{0, -9.8, 0},
		TimeStep:       DefaultTimeStep,
		FrameRate:      DefaultFrameRate,
	}
}

func Default() *Scene {
	return GetPreset("cube_drop")
}

// Load reads a scene file. Parameters missing from the file keep their
// default values.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Scene, error) {
	s := &Scene{Parameters: DefaultParameters()}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %v", simerr.ErrInvalidScene, err)
	}
	return s, nil
}

func Save(path string, s *Scene) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// KernelRadius is four particle radii.
func (s *Scene) KernelRadius() float32 {
	return 4 * s.Parameters.ParticleRadius
}

func (s *Scene) ParticleMass() float32 {
	return sph.ParticleMass(s.Parameters.ParticleRadius, s.Parameters.Density)
}

func (s *Scene) Blocks() []particles.Block {
	blocks := make([]particles.Block, 0, len(s.FluidBlocks))
	for _, fb := range s.FluidBlocks {
		blocks = append(blocks, particles.BlockFromExtent(fb.DomainStart, fb.DomainEnd, s.Parameters.ParticleRadius))
	}
	return blocks
}

func (s *Scene) ParticleCount() int {
	n := 0
	for _, b := range s.Blocks() {
		n += b.Count()
	}
	return n
}

func (s *Scene) Validate() error {
	p := s.Parameters
	for a := 0; a < 3; a++ {
		if !(p.DomainEnd[a] > p.DomainStart[a]) {
			return fmt.Errorf("%w: axis %d spans [%g, %g]", simerr.ErrInvalidDomain, a, p.DomainStart[a], p.DomainEnd[a])
		}
	}
	if !(p.ParticleRadius > 0) {
		return fmt.Errorf("%w: particle_radius must be positive, got %g", simerr.ErrInvalidScene, p.ParticleRadius)
	}
	if !(p.Density > 0) {
		return fmt.Errorf("%w: density must be positive, got %g", simerr.ErrInvalidScene, p.Density)
	}
	if !(p.TimeStep > 0) {
		return fmt.Errorf("%w: time_step must be positive, got %g", simerr.ErrInvalidScene, p.TimeStep)
	}
	if !(p.FrameRate > 0) {
		return fmt.Errorf("%w: frame_rate must be positive, got %g", simerr.ErrInvalidScene, p.FrameRate)
	}
	if p.ViscosityCoefficient < 0 {
		return fmt.Errorf("%w: viscosity_coefficient must be non-negative, got %g", simerr.ErrInvalidScene, p.ViscosityCoefficient)
	}
	if len(s.FluidBlocks) == 0 {
		return fmt.Errorf("%w: no fluid blocks", simerr.ErrNoParticles)
	}
	for i, b := range s.Blocks() {
		if b.Count() == 0 {
			return fmt.Errorf("%w: fluid block %d holds no particles", simerr.ErrNoParticles, i)
		}
	}
	return nil
}

// SolverParams converts the scene into solver parameters.
func (s *Scene) SolverParams() sph.Params {
	p := s.Parameters
	params := sph.DefaultParams(p.DomainStart, p.DomainEnd, p.ParticleRadius, p.Density)
	params.Gravity = p.Gravitation
	params.Viscosity = p.ViscosityCoefficient
	params.TimeStep = p.TimeStep
	params.PerAxisRestitution = p.PerAxisRestitution
	if p.Restitution != nil {
		params.Restitution = *p.Restitution
	}
	if p.SoundSpeed > 0 {
		params.SoundSpeed = p.SoundSpeed
	}
	if p.EOSExponent > 0 {
		params.EOSExponent = p.EOSExponent
	}
	return params
}

// Build validates the scene, fills the particle store from its fluid
// blocks and returns a solver ready to step.
func (s *Scene) Build(backend compute.Backend) (*sph.Solver, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	store, err := particles.Allocate(s.ParticleCount())
	if err != nil {
		return nil, err
	}
	if err := store.InitializeFromFluidBlocks(s.Blocks(), s.Parameters.ParticleRadius); err != nil {
		return nil, err
	}
	return sph.NewSolver(s.SolverParams(), store, backend)
}

func (s *Scene) Clone() *Scene {
	c := *s
	c.FluidBlocks = append([]FluidBlock(nil), s.FluidBlocks...)
	return &c
}
