// Package viz draws particle frames in the terminal.
//
// Frames are projected through an orbiting [Camera] onto a braille
// [Canvas], which gives 2x4 dots per character cell. [Model] is a Bubble
// Tea program that either follows a running simulation through a [Feed]
// or replays frames loaded from a stored run.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	[ ]   - Step back/forward through frames
//	←→↑↓  - Orbit the camera
//	+ -   - Zoom
//	G     - Toggle GIF recording
//	?     - Show help overlay
package viz
