//go:build !gocv

package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"vision-qc/internal/domain/port"
)

func TestStubDetector(t *testing.T) {
	_, err := NewGoCVDetector("model.onnx", []string{"defect"})
	require.ErrorIs(t, err, ErrGoCVDisabled)

	d := &GoCVDetector{}
	var _ port.DefectDetector = d

	_, err = d.Detect(context.Background(), []byte("img"))
	require.ErrorIs(t, err, ErrGoCVDisabled)

	_, err = d.HighlightDefects([]byte("img"), nil)
	require.ErrorIs(t, err, ErrGoCVDisabled)
	require.NoError(t, d.Close())
}
