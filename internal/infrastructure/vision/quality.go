package vision

import (
	"fmt"

	"vision-qc/internal/domain/port"
)

// QualityLimits пороги, при которых снимок не отдаётся детектору.
type QualityLimits struct {
	MinSide         int     // минимальная сторона в пикселях
	MinEdgeRatio    float64 // ниже этой доли пикселей-границ снимок считается размытым
	MaxOverexposed  float64
	MaxUnderexposed float64
	MaxGlare        float64 // доля светлых ненасыщенных пикселей
}

func DefaultQualityLimits() QualityLimits {
	return QualityLimits{
		MinSide:         400,
		MinEdgeRatio:    0.008,
		MaxOverexposed:  0.35,
		MaxUnderexposed: 0.45,
		MaxGlare:        0.08,
	}
}

// QualityMetrics измерения одного снимка.
type QualityMetrics struct {
	Width             int
	Height            int
	EdgeRatio         float64
	OverexposedRatio  float64
	UnderexposedRatio float64
	GlareRatio        float64
}

// Check возвращает первую найденную проблему, обёрнутую в port.ErrImageRejected.
func (l QualityLimits) Check(m QualityMetrics) error {
	switch {
	case m.Width == 0 || m.Height == 0:
		return fmt.Errorf("%w: empty image", port.ErrImageRejected)
	case m.Width < l.MinSide || m.Height < l.MinSide:
		return fmt.Errorf("%w: image is too small (%dx%d)", port.ErrImageRejected, m.Width, m.Height)
	case m.EdgeRatio < l.MinEdgeRatio:
		return fmt.Errorf("%w: image is blurry (edge_ratio=%.4f)", port.ErrImageRejected, m.EdgeRatio)
	case m.OverexposedRatio > l.MaxOverexposed:
		return fmt.Errorf("%w: overexposed image (ratio=%.4f)", port.ErrImageRejected, m.OverexposedRatio)
	case m.UnderexposedRatio > l.MaxUnderexposed:
		return fmt.Errorf("%w: underexposed image (ratio=%.4f)", port.ErrImageRejected, m.UnderexposedRatio)
	case m.GlareRatio > l.MaxGlare:
		return fmt.Errorf("%w: too much glare (ratio=%.4f)", port.ErrImageRejected, m.GlareRatio)
	}
	return nil
}
