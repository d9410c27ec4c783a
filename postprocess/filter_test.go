package postprocess

import (
	"strings"
	"testing"
)

func TestExcludeClasses(t *testing.T) {

	dets := []Detection{{Class: 0}, {Class: 4}, {Class: 12}, {Class: 39}}
	excluded := NewClassSet(4, 5, 12, 20, 21, 24, 25, 31, 36)

	res := ExcludeClasses(dets, excluded)

	if len(res) != 2 || res[0].Class != 0 || res[1].Class != 39 {
		t.Errorf("unexpected filter result: %+v", res)
	}

	if len(dets) != 4 {
		t.Error("input slice was modified")
	}

	if got := ExcludeClasses(dets, nil); len(got) != 4 {
		t.Errorf("empty exclusion set should keep all detections, got %d", len(got))
	}
}

func TestFilterConfidence(t *testing.T) {

	dets := []Detection{{Probability: 0.69}, {Probability: 0.7}, {Probability: 0.95}}

	if res := FilterConfidence(dets, 0.7); len(res) != 2 {
		t.Errorf("expected 2 detections, got %d", len(res))
	}
}

func TestWithClassNames(t *testing.T) {

	dets := WithClassNames([]Detection{{Class: 1}, {Class: 7}, {Class: -1}},
		[]string{"person", "bicycle"})

	if !dets[0].HasClassName() || dets[0].ClassName != "bicycle" {
		t.Errorf("expected bicycle, got %q", dets[0].ClassName)
	}

	if dets[1].HasClassName() || dets[2].HasClassName() {
		t.Error("out of range classes should have no name")
	}
}

func TestTrackIDs(t *testing.T) {

	ids := TrackIDs([]Detection{{TrackID: 3}, {}, {TrackID: 1}})

	if len(ids) != 2 || ids[0] != 3 || ids[1] != 1 {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestReadLabels(t *testing.T) {

	labels, err := ReadLabels(strings.NewReader("person\n bicycle \n\ncar\n\n"))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"person", "bicycle", "", "car"}

	if len(labels) != len(expected) {
		t.Fatalf("expected %d labels, got %d: %q", len(expected), len(labels), labels)
	}

	for i := range expected {
		if labels[i] != expected[i] {
			t.Errorf("label %d: expected %q, got %q", i, expected[i], labels[i])
		}
	}
}
