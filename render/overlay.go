package render

import (
	"fmt"
	"github.com/swdee/go-framewatch/postprocess"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// ZoneStyle defines how a polygon zone is drawn
type ZoneStyle struct {
	Color     color.RGBA
	Thickness int
	// TextScale and TextThickness size the detection count drawn at the
	// zone center
	TextScale     float64
	TextThickness int
	TextColor     color.RGBA
}

// DefaultZoneStyle returns a white outline of thickness 4 with a count text
// at scale 2
func DefaultZoneStyle() ZoneStyle {
	return ZoneStyle{
		Color:         White,
		Thickness:     4,
		TextScale:     2,
		TextThickness: 4,
		TextColor:     Black,
	}
}

// Zone draws the zone outline and its current detection count
func Zone(img *gocv.Mat, zone *postprocess.PolygonZone, style ZoneStyle) {

	pts := gocv.NewPointsVectorFromPoints([][]image.Point{zone.Polygon()})
	defer pts.Close()

	gocv.Polylines(img, pts, true, style.Color, style.Thickness)

	text := fmt.Sprintf("%d", zone.CurrentCount)
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, style.TextScale,
		style.TextThickness)

	center := zone.Center()
	org := image.Pt(center.X-size.X/2, center.Y+size.Y/2)
	pad := 10

	gocv.Rectangle(img, image.Rect(org.X-pad, org.Y-size.Y-pad,
		org.X+size.X+pad, org.Y+pad), style.Color, -1)

	gocv.PutTextWithParams(img, text, org, gocv.FontHersheySimplex,
		style.TextScale, style.TextColor, style.TextThickness, gocv.LineAA, false)
}

// WarningStyle defines the banner drawn when items go missing
type WarningStyle struct {
	Text     string
	Position image.Point
	Font     Font
}

// DefaultWarningStyle returns the red "Items are missing" banner
func DefaultWarningStyle() WarningStyle {
	return WarningStyle{
		Text:     "Items are missing",
		Position: image.Pt(350, 50),
		Font:     BannerFont(Red),
	}
}

// Warning draws the warning banner text at its position
func Warning(img *gocv.Mat, style WarningStyle) {
	gocv.PutTextWithParams(img, style.Text, style.Position, style.Font.Face,
		style.Font.Scale, style.Font.Color, style.Font.Thickness,
		style.Font.LineType, false)
}
