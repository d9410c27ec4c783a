package detector

import (
	"errors"
	"fmt"
	"github.com/swdee/go-framewatch/postprocess"
	"gocv.io/x/gocv"
	"image"
	"math"
	"sort"
)

// SliceConfig enables sliced inference, running the model over overlapping
// tiles of the frame so small objects keep enough pixels after the letterbox
// downscale
type SliceConfig struct {
	// Width and Height are the nominal tile size in source pixels
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// OverlapWidth and OverlapHeight are the minimum overlap between
	// neighbouring tiles as a ratio of the tile size
	OverlapWidth  float32 `yaml:"overlap_width"`
	OverlapHeight float32 `yaml:"overlap_height"`
	// SmallBoxOverlap is the fraction of a box's area that must be covered
	// by a larger box of the same class for the two to be merged.  It
	// catches objects cut in half on a tile boundary.
	SmallBoxOverlap float32 `yaml:"small_box_overlap"`
	// FullFrame also runs the model on the whole frame
	FullFrame bool `yaml:"full_frame"`
}

// Validate fills in defaults and checks the configuration
func (c *SliceConfig) Validate() error {

	if c.Width <= 0 || c.Height <= 0 {
		return errors.New("slice width and height must be positive")
	}

	if c.OverlapWidth < 0 || c.OverlapWidth >= 1 || c.OverlapHeight < 0 || c.OverlapHeight >= 1 {
		return errors.New("slice overlap must be in the range [0, 1)")
	}

	if c.SmallBoxOverlap <= 0 {
		c.SmallBoxOverlap = 0.7
	}

	return nil
}

// Sliced runs a Detector over tiles of the frame and merges the results
// back into frame coordinates
type Sliced struct {
	base Detector
	cfg  SliceConfig
}

// NewSliced wraps base.  The Sliced detector owns base and closes it.
func NewSliced(base Detector, cfg SliceConfig) (*Sliced, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Sliced{
		base: base,
		cfg:  cfg,
	}, nil
}

// Tiles returns the tile rectangles covering a frame of the given size
func (s *Sliced) Tiles(width, height int) []image.Rectangle {

	xs, tileW := tilePositions(width, s.cfg.Width, s.cfg.OverlapWidth)
	ys, tileH := tilePositions(height, s.cfg.Height, s.cfg.OverlapHeight)

	tiles := make([]image.Rectangle, 0, len(xs)*len(ys))

	for _, y := range ys {
		for _, x := range xs {
			tiles = append(tiles, image.Rect(x, y, x+tileW, y+tileH))
		}
	}

	return tiles
}

// tilePositions returns the start offsets and the length of the tiles along
// one axis.  Tiles are sliceLen plus the minimum overlap long and the fewest
// tiles covering srcLen are spread evenly.
func tilePositions(srcLen, sliceLen int, overlap float32) ([]int, int) {

	minOv := int(math.Ceil(float64(sliceLen) * float64(overlap)))
	tileLen := sliceLen + minOv

	if tileLen >= srcLen {
		return []int{0}, srcLen
	}

	n := int(math.Ceil(float64(srcLen-tileLen)/float64(sliceLen))) + 1
	step := float64(srcLen-tileLen) / float64(n-1)

	pos := make([]int, n)

	for i := range pos {
		p := int(math.Round(step * float64(i)))

		if p > srcLen-tileLen {
			p = srcLen - tileLen
		}

		pos[i] = p
	}

	return pos, tileLen
}

// Detect runs the base detector on every tile
func (s *Sliced) Detect(img gocv.Mat, conf, iou float32) ([]postprocess.Detection, error) {

	if img.Empty() {
		return nil, errors.New("empty image")
	}

	var all []postprocess.Detection

	for _, r := range s.Tiles(img.Cols(), img.Rows()) {

		tile := img.Region(r)
		dets, err := s.base.Detect(tile, conf, iou)
		tile.Close()

		if err != nil {
			return nil, fmt.Errorf("tile %v: %w", r, err)
		}

		for _, d := range dets {
			all = append(all, offsetDetection(d, r.Min))
		}
	}

	if s.cfg.FullFrame {
		dets, err := s.base.Detect(img, conf, iou)

		if err != nil {
			return nil, fmt.Errorf("full frame: %w", err)
		}

		all = append(all, dets...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Probability > all[j].Probability
	})

	return mergeClusters(all, iou, s.cfg.SmallBoxOverlap), nil
}

// Close closes the base detector
func (s *Sliced) Close() error {
	return s.base.Close()
}

// offsetDetection moves a tile local detection into frame coordinates
func offsetDetection(d postprocess.Detection, off image.Point) postprocess.Detection {

	d.Box.Left += off.X
	d.Box.Right += off.X
	d.Box.Top += off.Y
	d.Box.Bottom += off.Y

	if len(d.KeyPoints) > 0 {
		kps := make([]postprocess.KeyPoint, len(d.KeyPoints))

		for i, kp := range d.KeyPoints {
			kp.X += off.X
			kp.Y += off.Y
			kps[i] = kp
		}

		d.KeyPoints = kps
	}

	return d
}

// mergeClusters groups detections of the same class that overlap by IoU, or
// where one box mostly covers the other, and keeps the largest box of each
// group with ties going to the higher probability.  dets must be sorted by
// descending probability.
func mergeClusters(dets []postprocess.Detection, iouThresh,
	smallBoxOverlap float32) []postprocess.Detection {

	suppressed := make([]bool, len(dets))
	keep := make([]postprocess.Detection, 0, len(dets))

	for i, base := range dets {

		if suppressed[i] {
			continue
		}

		suppressed[i] = true
		best := base
		bestArea := boxArea(base.Box)

		for j := i + 1; j < len(dets); j++ {

			other := dets[j]

			if suppressed[j] || other.Class != base.Class {
				continue
			}

			inter := intersectionArea(base.Box, other.Box)
			area := boxArea(other.Box)
			union := boxArea(base.Box) + area - inter

			overlaps := union > 0 && float32(inter)/float32(union) > iouThresh
			covered := area > 0 && float32(inter)/float32(area) > smallBoxOverlap

			if !overlaps && !covered {
				continue
			}

			suppressed[j] = true

			if area > bestArea || (area == bestArea && other.Probability > best.Probability) {
				best = other
				bestArea = area
			}
		}

		keep = append(keep, best)
	}

	return keep
}

// intersectionArea returns the pixel area shared by two boxes
func intersectionArea(a, b postprocess.BoxRect) int {

	x1 := max(a.Left, b.Left)
	y1 := max(a.Top, b.Top)
	x2 := min(a.Right, b.Right)
	y2 := min(a.Bottom, b.Bottom)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	return (x2 - x1) * (y2 - y1)
}

func boxArea(b postprocess.BoxRect) int {
	return max(0, b.Width()) * max(0, b.Height())
}
