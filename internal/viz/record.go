package viz

import (
	"image"
	"image/color"
	"image/gif"
	"io"
	"os"
)

var recordPalette = color.Palette{color.Black, color.RGBA{0x66, 0xcc, 0xff, 0xff}}

// Recorder collects canvas snapshots into an animated GIF.
type Recorder struct {
	DotSize int
	// Delay between frames in hundredths of a second.
	Delay  int
	frames []*image.Paletted
}

func NewRecorder() *Recorder {
	return &Recorder{DotSize: 3, Delay: 4}
}

func (r *Recorder) Capture(c *Canvas) {
	r.frames = append(r.frames, c.Image(r.DotSize, recordPalette))
}

func (r *Recorder) Len() int { return len(r.frames) }

func (r *Recorder) Encode(w io.Writer) error {
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range r.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, r.Delay)
	}
	return gif.EncodeAll(w, &anim)
}

func (r *Recorder) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
