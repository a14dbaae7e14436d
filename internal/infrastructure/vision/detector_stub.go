//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"vision-qc/internal/domain/entity"
)

// ErrGoCVDisabled сборка без тега gocv.
var ErrGoCVDisabled = errors.New("gocv build tag is not enabled")

// GoCVDetector заглушка детектора для сборки без OpenCV.
type GoCVDetector struct {
	Classes []string
}

// NewGoCVDetector без OpenCV детектор не создаётся: сервис работает без инференса.
func NewGoCVDetector(modelPath string, classes []string) (*GoCVDetector, error) {
	_ = modelPath
	_ = classes
	return nil, ErrGoCVDisabled
}

// Detect возвращает ошибку, если сборка без тега gocv.
func (d *GoCVDetector) Detect(ctx context.Context, imageData []byte) ([]entity.Detection, error) {
	_ = ctx
	_ = imageData
	return nil, ErrGoCVDisabled
}

// HighlightDefects возвращает ошибку, если сборка без тега gocv.
func (d *GoCVDetector) HighlightDefects(imageData []byte, detections []entity.Detection) ([]byte, error) {
	_ = imageData
	_ = detections
	return nil, ErrGoCVDisabled
}

// Close ничего не делает
func (d *GoCVDetector) Close() error { return nil }
