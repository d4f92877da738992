package nn

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
)

// MergeDetections drops detections below the probability threshold, and then performs
// non-maximum suppression: of any two detections with the same label and an IoU at or above
// the NMS threshold, only the more confident one survives.
// The order of the surviving detections is by descending confidence.
func MergeDetections(input []ObjectDetection, params *DetectionParams) []ObjectDetection {
	if len(input) == 0 {
		return nil
	}
	minProb := params.probabilityThreshold()
	minIoU := params.nmsIouThreshold()

	order := make([]int, 0, len(input))
	for i := range input {
		if input[i].Confidence >= minProb {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return input[order[i]].Confidence > input[order[j]].Confidence
	})

	// Create spatial index to avoid O(N^2) comparisons
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(input))
	for _, d := range input {
		fb.Add(int32(d.Box.X), int32(d.Box.Y), int32(d.Box.X2()), int32(d.Box.Y2()))
	}
	fb.Finish()

	deleted := make([]bool, len(input))
	retain := make([]ObjectDetection, 0, len(order))
	nearby := []int{}
	for _, i := range order {
		if deleted[i] {
			continue
		}
		in := input[i]
		retain = append(retain, in)
		nearby = fb.SearchFast(int32(in.Box.X), int32(in.Box.Y), int32(in.Box.X2()), int32(in.Box.Y2()), nearby)
		for _, j := range nearby {
			if j == i || deleted[j] || input[j].Label != in.Label {
				continue
			}
			if in.Box.IOU(input[j].Box) >= minIoU {
				deleted[j] = true
			}
		}
	}
	return retain
}
