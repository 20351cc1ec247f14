package postprocess

import (
	"sort"

	"github.com/chewxy/math32"

	"github.com/edgevision/go-falldetect/postprocess/result"
)

// iouEpsilon is added to the intersection side lengths so degenerate zero
// area boxes cannot produce a division by zero.
const iouEpsilon = 1e-5

// calculateIoU works out the Intersection over Union value of two boxes.
func calculateIoU(a, b result.Box) float32 {

	w := math32.Max(0, math32.Min(a.X2, b.X2)-math32.Max(a.X1, b.X1)+iouEpsilon)
	h := math32.Max(0, math32.Min(a.Y2, b.Y2)-math32.Max(a.Y1, b.Y1)+iouEpsilon)
	intersection := w * h

	areaA := (a.X2 - a.X1) * (a.Y2 - a.Y1)
	areaB := (b.X2 - b.X1) * (b.Y2 - b.Y1)

	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// quickSortIndiceInverse sorts the scores vector in descending order and
// synchronously updates the indices vector to track the reordering of
// elements.
func quickSortIndiceInverse(input []float32, left, right int, indices []int) {

	var key float32
	var keyIndex int

	low := left
	high := right

	if left < right {
		keyIndex = indices[left]
		key = input[left]

		for low < high {
			for low < high && input[high] <= key {
				high--
			}

			input[low] = input[high]
			indices[low] = indices[high]

			for low < high && input[low] >= key {
				low++
			}

			input[high] = input[low]
			indices[high] = indices[low]
		}

		input[low] = key
		indices[low] = keyIndex

		quickSortIndiceInverse(input, left, low-1, indices)
		quickSortIndiceInverse(input, low+1, right, indices)
	}
}

// Suppress runs greedy non-maximum suppression independently per class over
// the filtered candidates and returns the indices of the survivors.  The
// survivors are grouped by class in ascending class order and appear in
// input order within each class, giving a reproducible result order.  A
// positive maxObjects caps the total number of survivors.
func Suppress(cands []Candidate, iouThreshold float32, maxObjects int) []int {

	// unique set of classes present, iterated in ascending order
	classSet := make(map[int]bool)

	for _, c := range cands {
		classSet[c.Class] = true
	}

	classes := make([]int, 0, len(classSet))

	for c := range classSet {
		classes = append(classes, c)
	}

	sort.Ints(classes)

	kept := make([]int, 0, len(cands))

	for _, class := range classes {

		// candidates of this class in input order
		var order []int
		var scores []float32

		for i, c := range cands {
			if c.Class == class {
				order = append(order, i)
				scores = append(scores, c.Score)
			}
		}

		quickSortIndiceInverse(scores, 0, len(scores)-1, order)

		// greedily keep the highest scoring remaining candidate and discard
		// every other one overlapping it beyond the threshold
		for i := 0; i < len(order); i++ {

			if order[i] == -1 {
				continue
			}

			for j := i + 1; j < len(order); j++ {

				if order[j] == -1 {
					continue
				}

				iou := calculateIoU(cands[order[i]].Box, cands[order[j]].Box)

				if iou > iouThreshold {
					order[j] = -1
				}
			}
		}

		survivors := make([]int, 0, len(order))

		for _, idx := range order {
			if idx != -1 {
				survivors = append(survivors, idx)
			}
		}

		// restore input order within the class
		sort.Ints(survivors)

		kept = append(kept, survivors...)
	}

	if maxObjects > 0 && len(kept) > maxObjects {
		kept = kept[:maxObjects]
	}

	return kept
}
