package storage

import (
	"encoding/json"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gocarina/gocsv"

	"github.com/san-kum/sphsim/internal/metrics"
)

type ExportData struct {
	Run   RunMetadata     `json:"run"`
	Stats []metrics.Stats `json:"stats"`
}

func ExportJSON(w io.Writer, meta RunMetadata, stats []metrics.Stats) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Run: meta, Stats: stats})
}

// PositionRecord is one particle of one frame in long CSV form.
type PositionRecord struct {
	Frame    int     `csv:"frame"`
	Particle int     `csv:"particle"`
	X        float32 `csv:"x"`
	Y        float32 `csv:"y"`
	Z        float32 `csv:"z"`
}

func ExportPositionsCSV(w io.Writer, frames [][]mgl32.Vec3) error {
	n := 0
	for _, f := range frames {
		n += len(f)
	}
	records := make([]PositionRecord, 0, n)
	for fi, f := range frames {
		for pi, p := range f {
			records = append(records, PositionRecord{Frame: fi, Particle: pi, X: p[0], Y: p[1], Z: p[2]})
		}
	}
	return gocsv.Marshal(records, w)
}
