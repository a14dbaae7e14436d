package vision

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vision-qc/internal/domain/entity"
)

func TestParseYOLOOutput(t *testing.T) {
	// 2 класса, 3 якоря. Построчно: cx, cy, w, h, score0, score1.
	data := []float32{
		100, 200, 300, // cx
		100, 200, 300, // cy
		20, 40, 60, // w
		20, 40, 60, // h
		0.9, 0.1, 0.2, // class 0
		0.05, 0.7, 0.1, // class 1
	}
	dets, err := parseYOLOOutput(data, []int{1, 6, 3}, []string{"crack", "stain"}, 0.25, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, dets, 2)

	require.Equal(t, "crack", dets[0].Label)
	require.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
	require.Equal(t, entity.BoundingBox{X1: 180, Y1: 45, X2: 220, Y2: 55}, dets[0].Box)

	require.Equal(t, "stain", dets[1].Label)
	require.InDelta(t, 0.7, dets[1].Confidence, 1e-6)
}

func TestParseYOLOOutput_BadShape(t *testing.T) {
	_, err := parseYOLOOutput(nil, []int{1, 4, 10}, nil, 0.25, 1, 1)
	require.Error(t, err)

	_, err = parseYOLOOutput(make([]float32, 5), []int{1, 6, 3}, nil, 0.25, 1, 1)
	require.Error(t, err)

	_, err = parseYOLOOutput(nil, []int{6, 3}, nil, 0.25, 1, 1)
	require.Error(t, err)
}

func TestNonMaxSuppression(t *testing.T) {
	box := func(x1, y1, x2, y2 float64) entity.BoundingBox {
		return entity.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
	}
	dets := []entity.Detection{
		{Label: "crack", Confidence: 0.6, Box: box(0, 0, 10, 10)},
		{Label: "crack", Confidence: 0.9, Box: box(1, 1, 11, 11)},
		{Label: "stain", Confidence: 0.5, Box: box(1, 1, 11, 11)},
		{Label: "crack", Confidence: 0.4, Box: box(50, 50, 60, 60)},
	}

	kept := nonMaxSuppression(dets, 0.45)
	require.Len(t, kept, 3)
	require.Equal(t, 0.9, kept[0].Confidence)
	require.Equal(t, "stain", kept[1].Label)
	require.Equal(t, 0.4, kept[2].Confidence)
}

func TestIoU(t *testing.T) {
	a := entity.BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	require.InDelta(t, 1.0, iou(a, a), 1e-9)
	require.Zero(t, iou(a, entity.BoundingBox{X1: 20, Y1: 20, X2: 30, Y2: 30}))
	require.InDelta(t, 25.0/175.0, iou(a, entity.BoundingBox{X1: 5, Y1: 5, X2: 15, Y2: 15}), 1e-9)
}

func TestClassName(t *testing.T) {
	require.Equal(t, "stain", className([]string{"crack", "stain"}, 1))
	require.Equal(t, "class_5", className([]string{"crack"}, 5))
}
