package render

import (
	"fmt"
	"github.com/swdee/go-framewatch/postprocess"
)

// Label returns the overlay text of a detection in the form
// "#<class> <track> <name> <confidence>".  When the class name is absent the
// name is left out.
func Label(det postprocess.Detection) string {

	if det.HasClassName() {
		return fmt.Sprintf("#%d %d %s %.2f", det.Class, det.TrackID,
			det.ClassName, det.Probability)
	}

	return fmt.Sprintf("#%d %d %.2f", det.Class, det.TrackID, det.Probability)
}

// Labels returns the Label of each detection
func Labels(dets []postprocess.Detection) []string {

	labels := make([]string, len(dets))

	for i, d := range dets {
		labels[i] = Label(d)
	}

	return labels
}
