package camera

import (
	"context"
	"errors"
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/clock"
)

var ErrNoImage = errors.New("no image captured")

// Source источник снимков
type Source interface {
	Capture(ctx context.Context) ([]byte, error)
}

// AutoTrigger делает снимок через фиксированную задержку после команды,
// как автоспуск камеры на станции.
type AutoTrigger struct {
	source Source
	clock  clock.Clock
	delay  time.Duration
}

func NewAutoTrigger(source Source, clk clock.Clock, delay time.Duration) *AutoTrigger {
	return &AutoTrigger{source: source, clock: clk, delay: delay}
}

func (a *AutoTrigger) Capture(ctx context.Context) ([]byte, error) {
	if a.delay > 0 {
		fired := make(chan struct{})
		timer := a.clock.AfterFunc(a.delay, func() { close(fired) })

		select {
		case <-fired:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	image, err := a.source.Capture(ctx)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, ErrNoImage
	}
	return image, nil
}
