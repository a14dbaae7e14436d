package vision

import (
	"fmt"
	"sort"

	"vision-qc/internal/domain/entity"
)

// parseYOLOOutput разбирает выход YOLOv8/11 формы [1, 4+nc, N]: на каждый якорь
// cx, cy, w, h во входных пикселях сети и оценки классов. scaleX/scaleY переводят
// координаты обратно в пиксели исходного кадра.
func parseYOLOOutput(data []float32, shape []int, classes []string, minScore float64, scaleX, scaleY float64) ([]entity.Detection, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	rows, anchors := shape[1], shape[2]
	numClasses := rows - 4
	if numClasses <= 0 {
		return nil, fmt.Errorf("output has no class rows: %v", shape)
	}
	if len(data) < rows*anchors {
		return nil, fmt.Errorf("output too short: %d < %d", len(data), rows*anchors)
	}

	at := func(row, i int) float64 { return float64(data[row*anchors+i]) }

	var dets []entity.Detection
	for i := 0; i < anchors; i++ {
		best, bestScore := 0, 0.0
		for c := 0; c < numClasses; c++ {
			if s := at(4+c, i); s > bestScore {
				best, bestScore = c, s
			}
		}
		if bestScore < minScore {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		dets = append(dets, entity.Detection{
			Label:      className(classes, best),
			Confidence: bestScore,
			Box: entity.BoundingBox{
				X1: (cx - w/2) * scaleX,
				Y1: (cy - h/2) * scaleY,
				X2: (cx + w/2) * scaleX,
				Y2: (cy + h/2) * scaleY,
			},
		})
	}
	return dets, nil
}

// nonMaxSuppression оставляет самые уверенные рамки каждого класса, отбрасывая
// пересекающиеся с ними сильнее iouThreshold. Результат отсортирован по уверенности.
func nonMaxSuppression(dets []entity.Detection, iouThreshold float64) []entity.Detection {
	sorted := make([]entity.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	kept := make([]entity.Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Label == d.Label && iou(k.Box, d.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

func iou(a, b entity.BoundingBox) float64 {
	ix1, iy1 := max(a.X1, b.X1), max(a.Y1, b.Y1)
	ix2, iy2 := min(a.X2, b.X2), min(a.Y2, b.Y2)
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Width()*a.Height() + b.Width()*b.Height() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func className(classes []string, idx int) string {
	if idx >= 0 && idx < len(classes) {
		return classes[idx]
	}
	return fmt.Sprintf("class_%d", idx)
}
