// Package gui is a raylib window for watching a simulation or replaying a
// stored run in 3D. Particles are drawn as small spheres shaded by height
// inside a wireframe of the domain.
package gui
