package postprocess

import (
	"testing"
)

func TestFilterCandidates(t *testing.T) {

	boxes := [][]float32{
		{0, 0, 10, 10},
		{20, 20, 30, 30},
		{40, 40, 50, 50},
	}

	classProbs := [][]float32{
		{0.1, 0.6, 0.2},
		{0.9, 0.1, 0.1},
		{0.2, 0.1, 0.1},
	}

	confidences := []float32{0.5, 1.0, 1.0}

	cands := FilterCandidates(boxes, classProbs, confidences, 0.25)

	if len(cands) != 2 {
		t.Fatalf("Got %d candidates, expected 2", len(cands))
	}

	if cands[0].Class != 1 || cands[0].Score != 0.3 {
		t.Errorf("Candidate 0 is class %d score %f, expected class 1 score 0.3",
			cands[0].Class, cands[0].Score)
	}

	if cands[1].Class != 0 || cands[1].Score != 0.9 {
		t.Errorf("Candidate 1 is class %d score %f, expected class 0 score 0.9",
			cands[1].Class, cands[1].Score)
	}

	if cands[1].Box.X1 != 20 || cands[1].Box.Y2 != 30 {
		t.Errorf("Candidate 1 box is %+v, expected (20,20,30,30)", cands[1].Box)
	}
}

// TestFilterCandidatesTieBreak checks equal class scores resolve to the
// lowest class number.
func TestFilterCandidatesTieBreak(t *testing.T) {

	boxes := [][]float32{{0, 0, 10, 10}}
	classProbs := [][]float32{{0.5, 0.5, 0.5}}
	confidences := []float32{1.0}

	cands := FilterCandidates(boxes, classProbs, confidences, 0.25)

	if len(cands) != 1 {
		t.Fatalf("Got %d candidates, expected 1", len(cands))
	}

	if cands[0].Class != 0 {
		t.Errorf("Tie resolved to class %d, expected class 0", cands[0].Class)
	}
}

// TestFilterCandidatesBoundary checks a score exactly on the threshold is
// kept.
func TestFilterCandidatesBoundary(t *testing.T) {

	boxes := [][]float32{{0, 0, 10, 10}}
	classProbs := [][]float32{{0.25}}
	confidences := []float32{1.0}

	cands := FilterCandidates(boxes, classProbs, confidences, 0.25)

	if len(cands) != 1 {
		t.Errorf("Got %d candidates, expected threshold score to be kept", len(cands))
	}
}
