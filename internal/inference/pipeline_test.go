package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

type stubEngine struct {
	detections []models.Detection
	err        error

	gotIOU, gotConfidence float64
}

func (s *stubEngine) Run(_ context.Context, _ []byte, iou, confidence float64) ([]models.Detection, error) {
	s.gotIOU, s.gotConfidence = iou, confidence
	return s.detections, s.err
}

func TestPipeline_Defect(t *testing.T) {
	engine := &stubEngine{detections: []models.Detection{
		{Score: 0.91, Box: [4]float64{0.1, 0.1, 0.4, 0.4}},
	}}
	p := NewPipeline(engine)

	v, err := p.Infer(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	require.True(t, v.HasDefect)
	require.Len(t, v.Detections, 1)
	require.Equal(t, []byte("jpeg"), v.Image)
	require.Equal(t, 0.5, engine.gotIOU)
	require.Equal(t, 0.3, engine.gotConfidence)
}

func TestPipeline_BelowThreshold(t *testing.T) {
	p := NewPipeline(&stubEngine{detections: []models.Detection{
		{Score: 0.2, Box: [4]float64{0.5, 0.5, 0.6, 0.6}},
		{Score: 0.3, Box: [4]float64{0.1, 0.2, 0.3, 0.4}},
	}})

	v, err := p.Infer(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	require.False(t, v.HasDefect)
	require.Empty(t, v.Detections)
}

func TestPipeline_KeepsEngineOrder(t *testing.T) {
	p := NewPipeline(&stubEngine{detections: []models.Detection{
		{Score: 0.4}, {Score: 0.1}, {Score: 0.95}, {Score: 0.31},
	}})

	v, err := p.Infer(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	require.Equal(t, []models.Detection{{Score: 0.4}, {Score: 0.95}, {Score: 0.31}}, v.Detections)
}

func TestPipeline_HasDefectMatchesScores(t *testing.T) {
	lists := [][]models.Detection{
		nil,
		{{Score: 0.30000001}},
		{{Score: 0.29}, {Score: 0.05}},
		{{Score: 1}, {Score: 0}},
	}

	for _, list := range lists {
		v, err := NewPipeline(&stubEngine{detections: list}).Infer(context.Background(), []byte{1})
		require.NoError(t, err)

		want := false
		for _, d := range list {
			if d.Score > 0.3 {
				want = true
			}
		}
		require.Equal(t, want, v.HasDefect)
	}
}

func TestPipeline_Errors(t *testing.T) {
	p := NewPipeline(&stubEngine{err: errors.New("model crashed")})

	_, err := p.Infer(context.Background(), []byte("jpeg"))
	require.ErrorContains(t, err, "model crashed")

	_, err = p.Infer(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyImage)
}
