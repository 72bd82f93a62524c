package scene

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

var Presets = map[string]*Scene{
	"cube_drop": {
		Name:       "cube_drop",
		Parameters: DefaultParameters(),
		FluidBlocks: []FluidBlock{
			{DomainStart: mgl32.Vec3{0.3, 0.1, 0.3}, DomainEnd: mgl32.Vec3{0.7, 0.5, 0.7}},
		},
	},
	"dam_break": {
		Name: "dam_break",
		Parameters: Parameters{
			DomainStart: mgl32.Vec3{0, 0, 0}, DomainEnd: mgl32.Vec3{1.6, 1, 0.6},
			ParticleRadius: 0.025, Density: 1000, Gravitation: mgl32.Vec3{0, -9.8, 0},
			TimeStep: 5e-5, FrameRate: 30,
		},
		FluidBlocks: []FluidBlock{
			{DomainStart: mgl32.Vec3{0, 0, 0}, DomainEnd: mgl32.Vec3{0.5, 0.8, 0.6}},
		},
	},
	"double_block": {
		Name: "double_block",
		Parameters: Parameters{
			DomainStart: mgl32.Vec3{0, 0, 0}, DomainEnd: mgl32.Vec3{1, 1, 1},
			ParticleRadius: 0.04, Density: 1000, Gravitation: mgl32.Vec3{0, -9.8, 0},
			ViscosityCoefficient: 0.01, TimeStep: 1e-4, FrameRate: 30,
		},
		FluidBlocks: []FluidBlock{
			{DomainStart: mgl32.Vec3{0.05, 0.05, 0.05}, DomainEnd: mgl32.Vec3{0.37, 0.53, 0.37}},
			{DomainStart: mgl32.Vec3{0.6, 0.4, 0.6}, DomainEnd: mgl32.Vec3{0.92, 0.72, 0.92}},
		},
	},
	"droplet": {
		Name: "droplet",
		Parameters: Parameters{
			DomainStart: mgl32.Vec3{0, 0, 0}, DomainEnd: mgl32.Vec3{0.5, 1, 0.5},
			ParticleRadius: 0.02, Density: 1000, Gravitation: mgl32.Vec3{0, -9.8, 0},
			TimeStep: 5e-5, FrameRate: 60, PerAxisRestitution: true,
		},
		FluidBlocks: []FluidBlock{
			{DomainStart: mgl32.Vec3{0.17, 0.6, 0.17}, DomainEnd: mgl32.Vec3{0.33, 0.76, 0.33}},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Scene {
	s, ok := Presets[name]
	if !ok {
		return nil
	}
	return s.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
