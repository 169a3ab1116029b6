package onnx

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

func TestDecodeOutput(t *testing.T) {
	// две предсказанных рамки, формат [cx..., cy..., w..., h..., score...]
	preds := []float32{
		320, 100, // cx
		320, 100, // cy
		128, 20, // w
		64, 20, // h
		0.9, 0.1, // score
	}

	got, err := decodeOutput(preds, 640, 0.3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.InDelta(t, 0.9, got[0].Score, 1e-6)
	require.InDeltaSlice(t, []float64{0.4, 0.45, 0.6, 0.55}, got[0].Box[:], 1e-6)
}

func TestDecodeOutput_ClampsAndValidates(t *testing.T) {
	got, err := decodeOutput([]float32{0, 0, 100, 100, 0.8}, 100, 0.3)
	require.NoError(t, err)
	require.Equal(t, [4]float64{0, 0, 0.5, 0.5}, got[0].Box)

	_, err = decodeOutput([]float32{1, 2, 3}, 100, 0.3)
	require.Error(t, err)
}

func TestSuppress(t *testing.T) {
	dets := []models.Detection{
		{Score: 0.6, Box: [4]float64{0.1, 0.1, 0.5, 0.5}},
		{Score: 0.9, Box: [4]float64{0.12, 0.12, 0.5, 0.5}},
		{Score: 0.7, Box: [4]float64{0.6, 0.6, 0.9, 0.9}},
	}

	kept := suppress(dets, 0.5)
	require.Len(t, kept, 2)
	require.Equal(t, 0.9, kept[0].Score)
	require.Equal(t, 0.7, kept[1].Score)
}

func TestIOU(t *testing.T) {
	require.Equal(t, 1.0, iou([4]float64{0, 0, 1, 1}, [4]float64{0, 0, 1, 1}))
	require.Equal(t, 0.0, iou([4]float64{0, 0, 0.5, 0.5}, [4]float64{0.5, 0.5, 1, 1}))
	require.InDelta(t, 1.0/7.0, iou([4]float64{0, 0, 2, 2}, [4]float64{1, 1, 3, 3}), 1e-9)
}

func TestPreprocess(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	decoded, err := decodeImage(buf.Bytes())
	require.NoError(t, err)

	data := preprocess(decoded, 4)
	require.Len(t, data, 3*4*4)
	require.InDelta(t, 1.0, data[0], 1e-6)  // R
	require.InDelta(t, 0.0, data[16], 1e-6) // G
	require.InDelta(t, 0.0, data[32], 1e-6) // B

	_, err = decodeImage([]byte("not an image"))
	require.Error(t, err)
}
