package render

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/edgevision/go-falldetect/postprocess/result"
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

// skeleton defines the pose skeleton points to draw lines between.  The
// numbers are paired, so (16,14) means draw a line from right ankle to
// right knee.  One based indexing.
var skeleton = [38]int{16, 14, 14, 12, 17, 15, 15, 13, 12, 13, 6, 12, 7, 13,
	6, 7, 6, 8, 7, 9, 8, 10, 9, 11, 2, 3, 1, 2, 1, 3, 2, 4, 3, 5, 4, 6, 5, 7}

// minKeyPointScore is the visibility score below which a keypoint is not
// drawn.
const minKeyPointScore = 0.5

// PoseKeyPoints renders the pose estimation skeletons for all detected
// objects.
func PoseKeyPoints(img *gocv.Mat, keyPoints [][]result.KeyPoint,
	lineThickness int) {

	for i := 0; i < len(keyPoints); i++ {

		keyPoint := keyPoints[i]
		useClr := classColors[i%len(classColors)]

		// draw skeleton lines
		for j := 0; j < len(skeleton)/2; j++ {

			a := keyPoint[skeleton[2*j]-1]
			b := keyPoint[skeleton[2*j+1]-1]

			if a.Score < minKeyPointScore || b.Score < minKeyPointScore {
				continue
			}

			gocv.Line(img, image.Pt(int(a.X), int(a.Y)),
				image.Pt(int(b.X), int(b.Y)), useClr, lineThickness)
		}

		// draw keypoint markers
		for _, kp := range keyPoint {

			if kp.Score < minKeyPointScore {
				continue
			}

			gocv.Circle(img, image.Pt(int(kp.X), int(kp.Y)),
				lineThickness+2, useClr, -1)
		}
	}
}
