//go:build onnx
// +build onnx

package onnx

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/inference"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

// Engine локальная модель через onnxruntime. Сессия одна, вызовы сериализуются.
type Engine struct {
	mu      sync.Mutex
	size    int
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewEngine поднимает окружение onnxruntime и создаёт сессию.
// numPredictions - размер последней оси выхода модели.
func NewEngine(libPath, modelPath string, size, numPredictions int) (*Engine, error) {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("error initializing onnx environment: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())
	options.SetInterOpNumThreads(runtime.NumCPU())

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(size), int64(size)))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, outputChannels, int64(numPredictions)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &Engine{
		size:    size,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

func (e *Engine) Run(ctx context.Context, image []byte, iouThreshold, confidenceThreshold float64) ([]models.Detection, error) {
	img, err := decodeImage(image)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.input.GetData(), preprocess(img, e.size))
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	detections, err := decodeOutput(e.output.GetData(), e.size, confidenceThreshold)
	if err != nil {
		return nil, err
	}
	return suppress(detections, iouThreshold), nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Destroy()
	e.input.Destroy()
	e.output.Destroy()
	return ort.DestroyEnvironment()
}

var _ inference.Engine = (*Engine)(nil)
