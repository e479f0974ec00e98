package pose

import "errors"

// ErrKeypointCount is returned when a keypoint array is not in the 17-point COCO layout.
var ErrKeypointCount = errors.New("keypoint array is not COCO-17")
