package postprocess

// ClassSet is a set of class identifiers
type ClassSet map[int]struct{}

// NewClassSet returns a set holding the given class ids
func NewClassSet(classes ...int) ClassSet {

	set := make(ClassSet, len(classes))

	for _, c := range classes {
		set[c] = struct{}{}
	}

	return set
}

// Contains reports whether class is in the set
func (s ClassSet) Contains(class int) bool {
	_, ok := s[class]
	return ok
}

// ExcludeClasses returns the detections whose class is not in excluded.  The
// input slice is left untouched.
func ExcludeClasses(dets []Detection, excluded ClassSet) []Detection {

	if len(excluded) == 0 {
		return dets
	}

	res := make([]Detection, 0, len(dets))

	for _, d := range dets {
		if excluded.Contains(d.Class) {
			continue
		}

		res = append(res, d)
	}

	return res
}

// FilterConfidence returns the detections scoring at least minProb
func FilterConfidence(dets []Detection, minProb float32) []Detection {

	res := make([]Detection, 0, len(dets))

	for _, d := range dets {
		if d.Probability >= minProb {
			res = append(res, d)
		}
	}

	return res
}
