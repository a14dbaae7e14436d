package entity

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDegenerateBox возвращается, когда рамка после обрезки по границам кадра имеет нулевую площадь.
var ErrDegenerateBox = errors.New("degenerate bounding box")

// BoundingBox рамка дефекта в пикселях исходного изображения (x1,y1 левый верхний угол).
type BoundingBox struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// Width возвращает ширину рамки
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height возвращает высоту рамки
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Center возвращает координаты центра дефекта
func (b BoundingBox) Center() (x, y float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Clamp обрезает рамку по границам изображения width x height.
func (b BoundingBox) Clamp(width, height int) BoundingBox {
	w, h := float64(width), float64(height)
	return BoundingBox{
		X1: clamp(b.X1, 0, w),
		Y1: clamp(b.Y1, 0, h),
		X2: clamp(b.X2, 0, w),
		Y2: clamp(b.Y2, 0, h),
	}
}

// Normalize переводит рамку в формат YOLO: центр и размер в долях от размеров кадра.
func (b BoundingBox) Normalize(width, height int) (NormalizedBox, error) {
	if width <= 0 || height <= 0 {
		return NormalizedBox{}, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	c := b.Clamp(width, height)
	if c.Width() <= 0 || c.Height() <= 0 {
		return NormalizedBox{}, ErrDegenerateBox
	}
	w, h := float64(width), float64(height)
	cx, cy := c.Center()
	return NormalizedBox{
		CX: cx / w,
		CY: cy / h,
		W:  c.Width() / w,
		H:  c.Height() / h,
	}, nil
}

// MarshalJSON сохраняет рамку массивом [x1, y1, x2, y2], как её отдаёт детектор.
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X1, b.Y1, b.X2, b.Y2})
}

// UnmarshalJSON читает рамку из массива [x1, y1, x2, y2].
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var xyxy []float64
	if err := json.Unmarshal(data, &xyxy); err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	if len(xyxy) != 4 {
		return fmt.Errorf("bbox: expected 4 coordinates, got %d", len(xyxy))
	}
	*b = BoundingBox{X1: xyxy[0], Y1: xyxy[1], X2: xyxy[2], Y2: xyxy[3]}
	return nil
}

// NormalizedBox рамка в долях кадра: центр (CX, CY) и размер (W, H), все значения в [0,1].
type NormalizedBox struct {
	CX float64
	CY float64
	W  float64
	H  float64
}

// Detection один объект, найденный детектором.
type Detection struct {
	Label      string      `json:"class"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bbox"`
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
