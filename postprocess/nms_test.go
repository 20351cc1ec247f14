package postprocess

import (
	"math"
	"testing"

	"github.com/edgevision/go-falldetect/postprocess/result"
)

func TestCalculateIoU(t *testing.T) {

	a := result.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}

	// identical boxes
	if iou := calculateIoU(a, a); math.Abs(float64(iou-1)) > 1e-3 {
		t.Errorf("Identical boxes IoU is %f, expected 1", iou)
	}

	// disjoint boxes
	b := result.Box{X1: 20, Y1: 20, X2: 30, Y2: 30}

	if iou := calculateIoU(a, b); iou != 0 {
		t.Errorf("Disjoint boxes IoU is %f, expected 0", iou)
	}

	// half overlap, intersection 50, union 150
	c := result.Box{X1: 5, Y1: 0, X2: 15, Y2: 10}

	if iou := calculateIoU(a, c); math.Abs(float64(iou-1.0/3.0)) > 1e-3 {
		t.Errorf("Half overlap IoU is %f, expected 0.333", iou)
	}
}

// TestCalculateIoUZeroArea checks degenerate zero area boxes produce a
// finite result rather than NaN.
func TestCalculateIoUZeroArea(t *testing.T) {

	a := result.Box{X1: 5, Y1: 5, X2: 5, Y2: 5}

	iou := calculateIoU(a, a)

	if math.IsNaN(float64(iou)) || math.IsInf(float64(iou), 0) {
		t.Fatalf("Zero area IoU is %f, expected finite", iou)
	}

	if iou < 0 || iou > 1 {
		t.Errorf("Zero area IoU is %f, expected within [0,1]", iou)
	}
}

func TestQuickSortIndiceInverse(t *testing.T) {

	scores := []float32{0.1, 0.9, 0.5, 0.7}
	indices := []int{0, 1, 2, 3}

	quickSortIndiceInverse(scores, 0, len(scores)-1, indices)

	expectedScores := []float32{0.9, 0.7, 0.5, 0.1}
	expectedIndices := []int{1, 3, 2, 0}

	for i := range expectedScores {
		if scores[i] != expectedScores[i] || indices[i] != expectedIndices[i] {
			t.Errorf("Position %d is score %f index %d, expected score %f index %d",
				i, scores[i], indices[i], expectedScores[i], expectedIndices[i])
		}
	}
}

func TestSuppressOverlapping(t *testing.T) {

	// boxes overlap with IoU 0.9, only the highest score survives
	cands := []Candidate{
		{Box: result.Box{X1: 320, Y1: 320, X2: 960, Y2: 896}, Class: 0, Score: 0.85},
		{Box: result.Box{X1: 320, Y1: 320, X2: 960, Y2: 960}, Class: 0, Score: 0.9},
	}

	kept := Suppress(cands, 0.5, 0)

	if len(kept) != 1 || kept[0] != 1 {
		t.Fatalf("Kept %v, expected only index 1", kept)
	}
}

// TestSuppressZeroThreshold checks a zero IoU threshold keeps exactly one
// box per class when all boxes share any positive overlap.
func TestSuppressZeroThreshold(t *testing.T) {

	cands := []Candidate{
		{Box: result.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}, Class: 0, Score: 0.5},
		{Box: result.Box{X1: 8, Y1: 8, X2: 18, Y2: 18}, Class: 0, Score: 0.9},
		{Box: result.Box{X1: 9, Y1: 9, X2: 19, Y2: 19}, Class: 0, Score: 0.7},
	}

	kept := Suppress(cands, 0, 0)

	if len(kept) != 1 || kept[0] != 1 {
		t.Fatalf("Kept %v, expected only the highest scoring index 1", kept)
	}
}

// TestSuppressPerClass checks suppression is independent per class, the same
// overlapping boxes survive when they belong to different classes.
func TestSuppressPerClass(t *testing.T) {

	cands := []Candidate{
		{Box: result.Box{X1: 320, Y1: 320, X2: 960, Y2: 896}, Class: 1, Score: 0.85},
		{Box: result.Box{X1: 320, Y1: 320, X2: 960, Y2: 960}, Class: 0, Score: 0.9},
	}

	kept := Suppress(cands, 0.45, 0)

	if len(kept) != 2 {
		t.Fatalf("Kept %v, expected both candidates", kept)
	}

	// grouped by ascending class
	if kept[0] != 1 || kept[1] != 0 {
		t.Errorf("Kept order is %v, expected [1 0]", kept)
	}
}

func TestSuppressDisjoint(t *testing.T) {

	cands := []Candidate{
		{Box: result.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}, Class: 0, Score: 0.5},
		{Box: result.Box{X1: 100, Y1: 100, X2: 110, Y2: 110}, Class: 0, Score: 0.9},
		{Box: result.Box{X1: 200, Y1: 200, X2: 210, Y2: 210}, Class: 0, Score: 0.7},
	}

	kept := Suppress(cands, 0.45, 0)

	if len(kept) != 3 {
		t.Fatalf("Kept %v, expected all candidates", kept)
	}

	// input order within the class regardless of score order
	for i, idx := range kept {
		if idx != i {
			t.Errorf("Kept order is %v, expected input order", kept)
			break
		}
	}
}

func TestSuppressMaxObjects(t *testing.T) {

	cands := []Candidate{
		{Box: result.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}, Class: 0, Score: 0.5},
		{Box: result.Box{X1: 100, Y1: 100, X2: 110, Y2: 110}, Class: 0, Score: 0.9},
		{Box: result.Box{X1: 200, Y1: 200, X2: 210, Y2: 210}, Class: 0, Score: 0.7},
	}

	kept := Suppress(cands, 0.45, 2)

	if len(kept) != 2 {
		t.Errorf("Kept %d candidates, expected cap of 2", len(kept))
	}
}
