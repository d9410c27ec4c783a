package postprocess

import (
	"errors"
	"fmt"
	clipper "github.com/ctessum/go.clipper"
	"gocv.io/x/gocv"
	"image"
)

// PolygonZone is a region of interest that counts the detections whose
// bottom center anchor falls inside it
type PolygonZone struct {
	polygon []image.Point
	points  gocv.PointVector
	// CurrentCount is the number of detections inside the zone at the last
	// Trigger call
	CurrentCount int
}

// NewPolygonZone returns a zone for the given polygon.  A positive margin
// grows the polygon outwards by that many pixels, a negative margin shrinks
// it.
func NewPolygonZone(polygon []image.Point, margin int) (*PolygonZone, error) {

	if len(polygon) < 3 {
		return nil, errors.New("zone polygon needs at least 3 points")
	}

	poly := polygon

	if margin != 0 {
		var err error
		poly, err = offsetPolygon(polygon, margin)

		if err != nil {
			return nil, err
		}
	}

	return &PolygonZone{
		polygon: poly,
		points:  gocv.NewPointVectorFromPoints(poly),
	}, nil
}

// offsetPolygon applies the margin using clipper's polygon offsetting
func offsetPolygon(polygon []image.Point, margin int) ([]image.Point, error) {

	path := make(clipper.Path, 0, len(polygon))

	for _, p := range polygon {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(p.X),
			Y: clipper.CInt(p.Y),
		})
	}

	co := clipper.NewClipperOffset()
	co.AddPath(path, clipper.JtMiter, clipper.EtClosedPolygon)
	paths := co.Execute(float64(margin))

	if len(paths) == 0 || len(paths[0]) < 3 {
		return nil, fmt.Errorf("zone polygon collapsed with margin %d", margin)
	}

	res := make([]image.Point, 0, len(paths[0]))

	for _, p := range paths[0] {
		res = append(res, image.Pt(int(p.X), int(p.Y)))
	}

	return res, nil
}

// Polygon returns the zone outline
func (z *PolygonZone) Polygon() []image.Point {
	return z.polygon
}

// Contains reports whether pt lies inside or on the edge of the zone
func (z *PolygonZone) Contains(pt image.Point) bool {
	return gocv.PointPolygonTest(z.points, pt, false) >= 0
}

// Trigger tests each detection's bottom center against the zone, updates
// CurrentCount and returns the per detection result
func (z *PolygonZone) Trigger(dets []Detection) []bool {

	inside := make([]bool, len(dets))
	count := 0

	for i, d := range dets {
		if z.Contains(d.Box.BottomCenter()) {
			inside[i] = true
			count++
		}
	}

	z.CurrentCount = count
	return inside
}

// Center returns the centroid of the zone outline vertices
func (z *PolygonZone) Center() image.Point {

	var sx, sy int

	for _, p := range z.polygon {
		sx += p.X
		sy += p.Y
	}

	n := len(z.polygon)
	return image.Pt(sx/n, sy/n)
}

// Close frees the native point vector
func (z *PolygonZone) Close() {
	z.points.Close()
}
