package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gocarina/gocsv"

	"github.com/san-kum/sphsim/internal/metrics"
	"github.com/san-kum/sphsim/internal/sim"
	"github.com/san-kum/sphsim/internal/simerr"
)

const (
	metadataFile = "metadata.json"
	statsFile    = "stats.csv"
	framesDir    = "frames"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID             string             `json:"id"`
	Scene          string             `json:"scene"`
	Timestamp      time.Time          `json:"timestamp"`
	Particles      int                `json:"particles"`
	ParticleRadius float64            `json:"particle_radius"`
	KernelRadius   float64            `json:"kernel_radius"`
	ParticleMass   float64            `json:"particle_mass"`
	RestDensity    float64            `json:"rest_density"`
	Viscosity      float64            `json:"viscosity"`
	Dt             float64            `json:"dt"`
	FrameRate      float64            `json:"frame_rate"`
	Length         float64            `json:"length"`
	DomainStart    [3]float64         `json:"domain_start"`
	DomainEnd      [3]float64         `json:"domain_end"`
	Backend        string             `json:"backend"`
	Workers        int                `json:"workers"`
	Steps          int                `json:"steps"`
	Frames         int                `json:"frames"`
	StepsPerFrame  int                `json:"steps_per_frame"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	FramesDir      string             `json:"frames_dir,omitempty"`
	Metrics        map[string]float64 `json:"metrics"`
}

// Run is an open run directory. It receives frames from the scheduler,
// appending one row per frame to stats.csv and, when a frame directory is
// set, one res_NNNN.json file per frame.
type Run struct {
	ID     string
	dir    string
	frames *FrameWriter

	statsFile     *os.File
	headerWritten bool
}

// Create opens a new run directory named after the scene.
func (s *Store) Create(scene string) (*Run, error) {
	runID := fmt.Sprintf("%s_%d", scene, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(runDir, statsFile))
	if err != nil {
		os.RemoveAll(runDir)
		return nil, err
	}

	return &Run{ID: runID, dir: runID, statsFile: f}, nil
}

func (r *Run) Dir() string { return r.dir }

// SaveFrames enables per-frame position files. An empty dir stores them
// inside the run directory.
func (s *Store) SaveFrames(r *Run, dir string) error {
	if dir == "" {
		dir = filepath.Join(s.baseDir, r.dir, framesDir)
	}
	fw, err := NewFrameWriter(dir)
	if err != nil {
		return err
	}
	r.frames = fw
	return nil
}

func (r *Run) FramesDir() string {
	if r.frames == nil {
		return ""
	}
	return r.frames.Dir()
}

func (r *Run) WriteFrame(f sim.Frame) error {
	if r.frames != nil {
		if err := r.frames.WriteFrame(f); err != nil {
			return err
		}
	}

	records := []metrics.Stats{f.Stats}
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.statsFile); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, r.statsFile); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	return nil
}

// Finish writes the run metadata and closes the stats file.
func (s *Store) Finish(r *Run, meta RunMetadata) error {
	defer r.statsFile.Close()

	meta.ID = r.ID
	meta.FramesDir = r.FramesDir()
	// JSON has no NaN; an unstable run still gets its metadata written.
	for name, v := range meta.Metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			delete(meta.Metrics, name)
		}
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	metaFile, err := os.Create(filepath.Join(s.baseDir, r.dir, metadataFile))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// Discard closes a run that will never be finished and removes its directory.
func (s *Store) Discard(r *Run) error {
	r.statsFile.Close()
	return os.RemoveAll(filepath.Join(s.baseDir, r.dir))
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}

		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", simerr.ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// Latest returns the most recent run.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs in %s", simerr.ErrRunNotFound, s.baseDir)
	}
	return &runs[len(runs)-1], nil
}

func (s *Store) LoadStats(runID string) ([]metrics.Stats, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statsFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var stats []metrics.Stats
	if err := gocsv.UnmarshalFile(file, &stats); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return []metrics.Stats{}, nil
		}
		return nil, err
	}
	return stats, nil
}

func (s *Store) framesDir(runID string) (string, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return "", err
	}
	if meta.FramesDir == "" {
		return "", fmt.Errorf("run %s was recorded without frame output", runID)
	}
	return meta.FramesDir, nil
}

func (s *Store) LoadFrame(runID string, index int) ([]mgl32.Vec3, error) {
	dir, err := s.framesDir(runID)
	if err != nil {
		return nil, err
	}
	return ReadFrameFile(FramePath(dir, index))
}

// LoadFrames reads every saved frame of a run in order.
func (s *Store) LoadFrames(runID string) ([][]mgl32.Vec3, error) {
	dir, err := s.framesDir(runID)
	if err != nil {
		return nil, err
	}
	paths, err := filepath.Glob(filepath.Join(dir, "res_*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	frames := make([][]mgl32.Vec3, 0, len(paths))
	for _, p := range paths {
		pos, err := ReadFrameFile(p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, pos)
	}
	return frames, nil
}
