// Package postprocess implements the numeric decode of raw YOLOv8 model
// outputs into detection results: distribution focal loss box decoding,
// confidence filtering and per class non-maximum suppression.
package postprocess

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	falldetect "github.com/edgevision/go-falldetect"
)

// dflExpectation decodes one cell's distribution focal loss encoding.  The
// vals slice holds 4*bins values, bins discretized offset buckets for each
// box side.  A numerically stable softmax is applied across the buckets of
// each side and the expected offset is the probability weighted sum over
// the bucket indices.
func dflExpectation(vals []float32, bins int) [4]float32 {

	var box [4]float32
	expT := make([]float64, bins)

	for side := 0; side < 4; side++ {

		// subtract the per side max before exponentiating
		maxVal := vals[side*bins]

		for i := 1; i < bins; i++ {
			if vals[side*bins+i] > maxVal {
				maxVal = vals[side*bins+i]
			}
		}

		for i := 0; i < bins; i++ {
			expT[i] = math.Exp(float64(vals[side*bins+i] - maxVal))
		}

		expSum := floats.Sum(expT)
		accSum := 0.0

		for i := 0; i < bins; i++ {
			accSum += expT[i] / expSum * float64(i)
		}

		box[side] = float32(accSum)
	}

	return box
}

// DecodeBoxes converts one scale level's raw box distribution tensor of
// shape [batch, 4*bins, gridH, gridW] into absolute box corner coordinates
// in input canvas space, returned as a [batch, 4, gridH, gridW] tensor with
// channels x1, y1, x2, y2.
//
// The stride is computed independently per axis from the canvas and grid
// dimensions, truncating to integer.  All batch elements are decoded, the
// algorithm does not assume a batch of one.
func DecodeBoxes(t falldetect.Tensor, inputW, inputH, bins int) (falldetect.Tensor, error) {

	if err := t.Check(); err != nil {
		return falldetect.Tensor{}, fmt.Errorf("invalid box tensor: %w", err)
	}

	if len(t.Dims) != 4 {
		return falldetect.Tensor{}, fmt.Errorf("box tensor must have 4 dimensions, got %v", t.Dims)
	}

	batch, ch, gridH, gridW := t.Dims[0], t.Dims[1], t.Dims[2], t.Dims[3]

	if bins <= 0 || ch != 4*bins {
		return falldetect.Tensor{}, fmt.Errorf("box tensor channels %d do not match 4*%d dfl bins", ch, bins)
	}

	strideX := inputW / gridW
	strideY := inputH / gridH
	gridLen := gridH * gridW

	out := make([]float32, batch*4*gridLen)
	cellVals := make([]float32, ch)

	for n := 0; n < batch; n++ {

		inBase := n * ch * gridLen
		outBase := n * 4 * gridLen

		for i := 0; i < gridH; i++ {
			for j := 0; j < gridW; j++ {

				cell := i*gridW + j

				// gather the cell's channel values contiguously
				for c := 0; c < ch; c++ {
					cellVals[c] = t.Data[inBase+c*gridLen+cell]
				}

				offset := dflExpectation(cellVals, bins)

				// cell center is grid position + 0.5, offsets grow the box
				// left/up for the first pair and right/down for the second
				out[outBase+0*gridLen+cell] = (float32(j) + 0.5 - offset[0]) * float32(strideX)
				out[outBase+1*gridLen+cell] = (float32(i) + 0.5 - offset[1]) * float32(strideY)
				out[outBase+2*gridLen+cell] = (float32(j) + 0.5 + offset[2]) * float32(strideX)
				out[outBase+3*gridLen+cell] = (float32(i) + 0.5 + offset[3]) * float32(strideY)
			}
		}
	}

	return falldetect.Tensor{
		Data: out,
		Dims: []int{batch, 4, gridH, gridW},
	}, nil
}

// FlattenChannelLast reshapes a [batch, C, H, W] tensor into batch*H*W rows
// of C values each.  Channel last ordering, the rows enumerate batch then
// grid cells in row-major order.
func FlattenChannelLast(t falldetect.Tensor) ([][]float32, error) {

	if err := t.Check(); err != nil {
		return nil, fmt.Errorf("invalid tensor: %w", err)
	}

	if len(t.Dims) != 4 {
		return nil, fmt.Errorf("tensor must have 4 dimensions, got %v", t.Dims)
	}

	batch, ch, h, w := t.Dims[0], t.Dims[1], t.Dims[2], t.Dims[3]
	gridLen := h * w

	rows := make([][]float32, 0, batch*gridLen)

	for n := 0; n < batch; n++ {

		base := n * ch * gridLen

		for cell := 0; cell < gridLen; cell++ {

			row := make([]float32, ch)

			for c := 0; c < ch; c++ {
				row[c] = t.Data[base+c*gridLen+cell]
			}

			rows = append(rows, row)
		}
	}

	return rows, nil
}
