package facegeom

import (
	"sort"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

// NMS keeps the highest scoring faces, dropping any face whose box overlaps
// a kept one by more than iouThreshold. The result is sorted by score.
func NMS(faces []domain.FaceRecord, iouThreshold float32) []domain.FaceRecord {
	if len(faces) == 0 {
		return faces
	}

	sorted := make([]domain.FaceRecord, len(faces))
	copy(sorted, faces)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	suppressed := make([]bool, len(sorted))
	kept := make([]domain.FaceRecord, 0, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && sorted[i].BoundingBox.IoU(sorted[j].BoundingBox) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}
