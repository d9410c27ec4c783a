package framewatch

import (
	"fmt"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
	"os"
	"path/filepath"
)

// DebugSink writes pipeline frames to numbered PNG files for offline
// inspection.  A nil *DebugSink is valid and discards everything.
type DebugSink struct {
	dir string
	log zerolog.Logger
}

// NewDebugSink returns a sink writing into dir, creating it if needed
func NewDebugSink(dir string, log zerolog.Logger) (*DebugSink, error) {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating debug directory: %w", err)
	}

	return &DebugSink{
		dir: dir,
		log: log.With().Str("component", "debug").Logger(),
	}, nil
}

// Dir returns the output directory
func (d *DebugSink) Dir() string {

	if d == nil {
		return ""
	}

	return d.dir
}

// SaveInput writes an ingested frame as input_image_<seq>.png
func (d *DebugSink) SaveInput(mat gocv.Mat, seq uint64) {
	d.save(fmt.Sprintf("input_image_%d.png", seq), mat)
}

// SaveRendered writes an annotated frame as image_<seq>.png
func (d *DebugSink) SaveRendered(mat gocv.Mat, seq uint64) {
	d.save(fmt.Sprintf("image_%d.png", seq), mat)
}

// SaveEmitted writes an outbound frame as output_image_<pts>.png
func (d *DebugSink) SaveEmitted(mat gocv.Mat, pts int64) {
	d.save(fmt.Sprintf("output_image_%d.png", pts), mat)
}

func (d *DebugSink) save(name string, mat gocv.Mat) {

	if d == nil || mat.Empty() {
		return
	}

	file := filepath.Join(d.dir, name)

	if !gocv.IMWrite(file, mat) {
		d.log.Warn().Str("file", file).Msg("Failed to write debug image")
	}
}
