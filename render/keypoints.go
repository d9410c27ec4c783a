package render

import (
	"github.com/swdee/go-framewatch/postprocess"
	"gocv.io/x/gocv"
	"image"
)

/* skeleton keypoints
0: Nose
1: Left Eye
2: Right Eye
3: Left Ear
4: Right Ear
5: Left Shoulder
6: Right Shoulder
7: Left Elbow
8: Right Elbow
9: Left Wrist
10: Right Wrist
11: Left Hip
12: Right Hip
13: Left Knee
14: Right Knee
15: Left Ankle
16: Right Ankle
*/

var (
	// skeleton defines the pose skeleton points to draw lines between.  The numbers
	// are paired, so (16,14) means draw line from right ankle to right knee.
	skeleton = [38]int{16, 14, 14, 12, 17, 15, 15, 13, 12, 13, 6, 12, 7, 13, 6, 7, 6, 8,
		7, 9, 8, 10, 9, 11, 2, 3, 1, 2, 1, 3, 2, 4, 3, 5, 4, 6, 5, 7}
	// keyPointsTotal is the number of keypoints in a skeleton
	keyPointsTotal = 17
)

// PoseStyle defines how pose skeletons are drawn
type PoseStyle struct {
	LineThickness int
	CircleRadius  int
	// MinScore hides keypoints and limbs below this confidence
	MinScore float32
}

// DefaultPoseStyle returns default pose style settings
func DefaultPoseStyle() PoseStyle {
	return PoseStyle{
		LineThickness: 2,
		CircleRadius:  3,
		MinScore:      0.5,
	}
}

// PoseKeyPoints renders the pose skeleton of every detection carrying a full
// set of keypoints
func PoseKeyPoints(img *gocv.Mat, dets []postprocess.Detection, style PoseStyle) {

	for _, det := range dets {

		kps := det.KeyPoints

		if len(kps) < keyPointsTotal {
			continue
		}

		// draw skeleton lines
		for j := 0; j < len(skeleton)/2; j++ {
			a := kps[skeleton[2*j]-1]
			b := kps[skeleton[2*j+1]-1]

			if a.Score < style.MinScore || b.Score < style.MinScore {
				continue
			}

			gocv.Line(img, a.Point(), b.Point(), limbColors[j], style.LineThickness)
		}

		// draw circles at skeleton joints
		for j := 0; j < keyPointsTotal; j++ {
			if kps[j].Score < style.MinScore {
				continue
			}

			gocv.Circle(img, image.Pt(kps[j].X, kps[j].Y),
				style.CircleRadius, keyPointColors[j], -1)
		}
	}
}
