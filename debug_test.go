package framewatch

import (
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"path/filepath"
	"testing"
)

func TestDebugSinkFiles(t *testing.T) {

	dir := filepath.Join(t.TempDir(), "debug")
	sink, err := NewDebugSink(dir, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, dir, sink.Dir())

	mat := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	defer mat.Close()

	sink.SaveInput(mat, 3)
	sink.SaveRendered(mat, 3)
	sink.SaveEmitted(mat, 6000)

	for _, name := range []string{
		"input_image_3.png", "image_3.png", "output_image_6000.png",
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestDebugSinkNil(t *testing.T) {

	var sink *DebugSink

	mat := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
	defer mat.Close()

	assert.NotPanics(t, func() {
		sink.SaveInput(mat, 1)
		sink.SaveRendered(mat, 1)
		sink.SaveEmitted(mat, 1)
	})
	assert.Equal(t, "", sink.Dir())
}
