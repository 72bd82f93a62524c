package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/sphsim/internal/sim"
)

// FrameFile is the on-disk layout of one frame, read by external renderers.
type FrameFile struct {
	Particles []mgl32.Vec3 `json:"particles"`
}

func FramePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("res_%04d.json", index))
}

// FrameWriter writes each frame to dir/res_NNNN.json.
type FrameWriter struct {
	dir string
}

func NewFrameWriter(dir string) (*FrameWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &FrameWriter{dir: abs}, nil
}

func (w *FrameWriter) Dir() string { return w.dir }

func (w *FrameWriter) WriteFrame(f sim.Frame) error {
	return WriteFrameFile(FramePath(w.dir, f.Index), f.Positions)
}

func WriteFrameFile(path string, positions []mgl32.Vec3) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewEncoder(file).Encode(FrameFile{Particles: positions})
}

func ReadFrameFile(path string) ([]mgl32.Vec3, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ff FrameFile
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ff.Particles, nil
}
