package postprocess

import (
	"github.com/edgevision/go-falldetect/postprocess/result"
)

// Candidate is a detection box that passed confidence filtering and awaits
// non-maximum suppression.
type Candidate struct {
	Box   result.Box
	Class int
	Score float32
}

// FilterCandidates thresholds the flattened detection candidates by class
// confidence.  Each row of classProbs is reduced to its best class, ties
// resolved in favour of the lowest class number, and the candidate score is
// the class probability multiplied by the box confidence.  Candidates
// scoring below boxThreshold are dropped.
func FilterCandidates(boxes [][]float32, classProbs [][]float32,
	confidences []float32, boxThreshold float32) []Candidate {

	cands := make([]Candidate, 0)

	for i := range boxes {

		maxClassID := 0
		maxScore := classProbs[i][0]

		// strict greater-than keeps the first index on equal scores
		for c := 1; c < len(classProbs[i]); c++ {
			if classProbs[i][c] > maxScore {
				maxScore = classProbs[i][c]
				maxClassID = c
			}
		}

		score := maxScore * confidences[i]

		if score < boxThreshold {
			continue
		}

		cands = append(cands, Candidate{
			Box: result.Box{
				X1: boxes[i][0],
				Y1: boxes[i][1],
				X2: boxes[i][2],
				Y2: boxes[i][3],
			},
			Class: maxClassID,
			Score: score,
		})
	}

	return cands
}
