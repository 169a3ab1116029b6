package onnx

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/samber/lo"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

// Выход модели [1, 5, N]: cx, cy, w, h в пикселях входа и score
const outputChannels = 5

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// preprocess приводит изображение к size x size и раскладывает в CHW float32 [0,1]
func preprocess(img image.Image, size int) []float32 {
	resized := imaging.Resize(img, size, size, imaging.Linear)

	channelSize := size * size
	buffer := make([]float32, channelSize*3)
	for y := 0; y < size; y++ {
		offset := y * size
		for x := 0; x < size; x++ {
			i := offset + x
			r, g, b, _ := resized.At(x, y).RGBA()
			buffer[i] = float32(r>>8) / 255.0
			buffer[channelSize+i] = float32(g>>8) / 255.0
			buffer[channelSize*2+i] = float32(b>>8) / 255.0
		}
	}
	return buffer
}

// decodeOutput переводит сырые предсказания в нормированные рамки
// и отбрасывает всё, что ниже порога уверенности
func decodeOutput(predictions []float32, size int, confidence float64) ([]models.Detection, error) {
	if len(predictions)%outputChannels != 0 {
		return nil, fmt.Errorf("unexpected predictions length %d", len(predictions))
	}
	n := len(predictions) / outputChannels
	scale := float64(size)

	detections := make([]models.Detection, 0, 16)
	for i := 0; i < n; i++ {
		score := float64(predictions[4*n+i])
		if score < confidence {
			continue
		}

		cx := float64(predictions[i])
		cy := float64(predictions[n+i])
		w := float64(predictions[2*n+i])
		h := float64(predictions[3*n+i])

		detections = append(detections, models.Detection{
			Score: score,
			Box: [4]float64{
				clamp01((cx - w/2) / scale),
				clamp01((cy - h/2) / scale),
				clamp01((cx + w/2) / scale),
				clamp01((cy + h/2) / scale),
			},
		})
	}
	return detections, nil
}

// suppress жадный NMS: рамки по убыванию score, пересекающиеся сильнее порога выкидываются
func suppress(detections []models.Detection, iouThreshold float64) []models.Detection {
	sorted := make([]models.Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	kept := make([]models.Detection, 0, len(sorted))
	for _, d := range sorted {
		overlaps := lo.ContainsBy(kept, func(k models.Detection) bool {
			return iou(k.Box, d.Box) > iouThreshold
		})
		if !overlaps {
			kept = append(kept, d)
		}
	}
	return kept
}

func iou(a, b [4]float64) float64 {
	x1 := math.Max(a[0], b[0])
	y1 := math.Max(a[1], b[1])
	x2 := math.Min(a[2], b[2])
	y2 := math.Min(a[3], b[3])

	if x2 <= x1 || y2 <= y1 {
		return 0.0
	}

	intersection := (x2 - x1) * (y2 - y1)
	area1 := (a[2] - a[0]) * (a[3] - a[1])
	area2 := (b[2] - b[0]) * (b[3] - b[1])
	union := area1 + area2 - intersection
	if union <= 0 {
		return 0.0
	}

	return intersection / union
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
