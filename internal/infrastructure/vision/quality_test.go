package vision

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vision-qc/internal/domain/port"
)

func TestQualityLimits_Check(t *testing.T) {
	good := QualityMetrics{Width: 640, Height: 480, EdgeRatio: 0.05, OverexposedRatio: 0.01, UnderexposedRatio: 0.02, GlareRatio: 0.01}
	limits := DefaultQualityLimits()

	require.NoError(t, limits.Check(good))

	tests := []struct {
		name   string
		mutate func(m *QualityMetrics)
		want   string
	}{
		{"empty", func(m *QualityMetrics) { m.Width = 0 }, "empty image"},
		{"small", func(m *QualityMetrics) { m.Height = 300 }, "too small (640x300)"},
		{"blurry", func(m *QualityMetrics) { m.EdgeRatio = 0.001 }, "blurry"},
		{"overexposed", func(m *QualityMetrics) { m.OverexposedRatio = 0.5 }, "overexposed"},
		{"underexposed", func(m *QualityMetrics) { m.UnderexposedRatio = 0.5 }, "underexposed"},
		{"glare", func(m *QualityMetrics) { m.GlareRatio = 0.1 }, "glare"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := good
			tt.mutate(&m)
			err := limits.Check(m)
			require.ErrorIs(t, err, port.ErrImageRejected)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}
