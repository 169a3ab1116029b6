package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

const (
	DefaultIOUThreshold        = 0.5
	DefaultConfidenceThreshold = 0.3
)

var ErrEmptyImage = errors.New("empty image")

// Engine обёртка над моделью поиска дефектов
type Engine interface {
	Run(ctx context.Context, image []byte, iouThreshold, confidenceThreshold float64) ([]models.Detection, error)
}

type Pipeline struct {
	engine     Engine
	iou        float64
	confidence float64
}

func NewPipeline(engine Engine) *Pipeline {
	return &Pipeline{
		engine:     engine,
		iou:        DefaultIOUThreshold,
		confidence: DefaultConfidenceThreshold,
	}
}

// WithThresholds переопределяет пороги модели
func (p *Pipeline) WithThresholds(iou, confidence float64) *Pipeline {
	p.iou = iou
	p.confidence = confidence
	return p
}

// Infer прогоняет изображение через модель. В вердикт попадают только
// детекции со score строго выше порога, порядок модели сохраняется.
// BoardID заполняет вызывающий.
func (p *Pipeline) Infer(ctx context.Context, image []byte) (models.Verdict, error) {
	if len(image) == 0 {
		return models.Verdict{}, ErrEmptyImage
	}

	raw, err := p.engine.Run(ctx, image, p.iou, p.confidence)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("run model: %w", err)
	}

	detections := lo.Filter(raw, func(d models.Detection, _ int) bool {
		return d.Score > p.confidence
	})

	return models.Verdict{
		HasDefect:  len(detections) > 0,
		Detections: detections,
		Image:      image,
	}, nil
}
