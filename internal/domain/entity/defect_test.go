package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoundingBoxCenter(t *testing.T) {
	b := BoundingBox{X1: 10, Y1: 20, X2: 18, Y2: 26}
	x, y := b.Center()
	require.Equal(t, 14.0, x)
	require.Equal(t, 23.0, y)
}

func TestBoundingBoxNormalize(t *testing.T) {
	b := BoundingBox{X1: 100, Y1: 50, X2: 300, Y2: 150}
	n, err := b.Normalize(400, 200)
	require.NoError(t, err)
	require.InDelta(t, 0.5, n.CX, 1e-9)
	require.InDelta(t, 0.5, n.CY, 1e-9)
	require.InDelta(t, 0.5, n.W, 1e-9)
	require.InDelta(t, 0.5, n.H, 1e-9)
}

func TestBoundingBoxNormalize_ClampsToImage(t *testing.T) {
	b := BoundingBox{X1: -20, Y1: -10, X2: 120, Y2: 60}
	n, err := b.Normalize(100, 50)
	require.NoError(t, err)
	require.InDelta(t, 0.5, n.CX, 1e-9)
	require.InDelta(t, 0.5, n.CY, 1e-9)
	require.InDelta(t, 1.0, n.W, 1e-9)
	require.InDelta(t, 1.0, n.H, 1e-9)
}

func TestBoundingBoxNormalize_Errors(t *testing.T) {
	_, err := BoundingBox{X1: 10, Y1: 10, X2: 10, Y2: 20}.Normalize(100, 100)
	require.ErrorIs(t, err, ErrDegenerateBox)

	_, err = BoundingBox{X1: 200, Y1: 200, X2: 300, Y2: 300}.Normalize(100, 100)
	require.ErrorIs(t, err, ErrDegenerateBox)

	_, err = BoundingBox{X2: 1, Y2: 1}.Normalize(0, 100)
	require.Error(t, err)
}

func TestDetectionJSON(t *testing.T) {
	raw := []byte(`{"class":"crack","confidence":0.55,"bbox":[1,2,3,4]}`)

	var d Detection
	require.NoError(t, json.Unmarshal(raw, &d))
	require.Equal(t, "crack", d.Label)
	require.Equal(t, BoundingBox{X1: 1, Y1: 2, X2: 3, Y2: 4}, d.Box)

	var bad Detection
	require.Error(t, json.Unmarshal([]byte(`{"bbox":[1,2,3]}`), &bad))
}
