/*
Package source provides frame sources feeding a pipeline session.
*/
package source

import (
	"context"
	"fmt"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
	"io"
	"strconv"
	"time"
)

// Capture reads frames from a video file, camera device or network stream
// using OpenCV VideoCapture
type Capture struct {
	vc       *gocv.VideoCapture
	interval time.Duration
	next     time.Time
	log      zerolog.Logger
}

// OpenCapture opens device, which is a camera index such as "0" or a file
// path or stream URL.  When pace is set frames are delivered no faster than
// the stream frame rate, used for files which otherwise read as fast as
// they decode.
func OpenCapture(device string, pace bool, log zerolog.Logger) (*Capture, error) {

	var dev interface{} = device

	if id, err := strconv.Atoi(device); err == nil {
		dev = id
	}

	vc, err := gocv.OpenVideoCapture(dev)

	if err != nil {
		return nil, fmt.Errorf("error opening capture device %s: %w", device, err)
	}

	c := &Capture{
		vc:  vc,
		log: log.With().Str("component", "capture").Str("device", device).Logger(),
	}

	if pace {
		if fps := vc.Get(gocv.VideoCaptureFPS); fps > 0 {
			c.interval = time.Duration(float64(time.Second) / fps)
		}
	}

	c.log.Info().Float64("fps", vc.Get(gocv.VideoCaptureFPS)).
		Float64("width", vc.Get(gocv.VideoCaptureFrameWidth)).
		Float64("height", vc.Get(gocv.VideoCaptureFrameHeight)).
		Msg("Capture opened")

	return c, nil
}

// NextFrame reads the next frame, io.EOF is returned once the stream ends
func (c *Capture) NextFrame(ctx context.Context) (gocv.Mat, error) {

	if c.interval > 0 {
		if err := c.wait(ctx); err != nil {
			return gocv.Mat{}, err
		}
	}

	mat := gocv.NewMat()

	if ok := c.vc.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return gocv.Mat{}, io.EOF
	}

	return mat, nil
}

// wait sleeps until the next frame is due
func (c *Capture) wait(ctx context.Context) error {

	now := time.Now()

	if c.next.IsZero() || c.next.Before(now) {
		c.next = now
	}

	delay := c.next.Sub(now)
	c.next = c.next.Add(c.interval)

	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the capture device
func (c *Capture) Close() error {
	return c.vc.Close()
}
