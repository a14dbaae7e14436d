package app

import (
	"errors"
	"fmt"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

var (
	// ErrNotFound неизвестный ID инспекции или ключ настройки.
	ErrNotFound = entity.ErrNotFound
	// ErrInvalidThreshold порог вне [0,1] или не число.
	ErrInvalidThreshold = errors.New("confidence threshold must be a number in [0,1]")
	// ErrDetectorNotConfigured детектор не подключён.
	ErrDetectorNotConfigured = errors.New("detector is not configured")
	// ErrImageRejected снимок не прошёл проверку качества.
	ErrImageRejected = port.ErrImageRejected
)

// GeometryError не удалось пересчитать разметку одной инспекции. Пример пропускается.
type GeometryError struct {
	InspectionID uint
	ImageRef     string
	Err          error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry conversion for inspection %d (%s): %v", e.InspectionID, e.ImageRef, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }

// TrainingError сбой внешней процедуры обучения.
type TrainingError struct {
	Err error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed: %v", e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }
