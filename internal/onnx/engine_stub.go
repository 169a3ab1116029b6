//go:build !onnx
// +build !onnx

package onnx

import (
	"context"
	"errors"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/inference"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

var errNotEnabled = errors.New("onnx build tag is not enabled")

// Engine заглушка для сборки без onnxruntime
type Engine struct{}

func NewEngine(libPath, modelPath string, size, numPredictions int) (*Engine, error) {
	return nil, errNotEnabled
}

func (e *Engine) Run(ctx context.Context, image []byte, iouThreshold, confidenceThreshold float64) ([]models.Detection, error) {
	return nil, errNotEnabled
}

func (e *Engine) Close() error {
	return nil
}

var _ inference.Engine = (*Engine)(nil)
