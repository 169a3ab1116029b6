package watchdog

import (
	"context"
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/clock"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/logsink"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/runner"
)

const watchInterval = 5 * time.Second

type snapshotter interface {
	Snapshot() runner.Snapshot
}

// Watchdog следит за зависшими циклами. Отменить снимок нельзя,
// поэтому только предупреждает в лог, один раз на цикл.
type Watchdog struct {
	runner     snapshotter
	stuckAfter time.Duration
	clock      clock.Clock
	log        *logsink.Logger

	reported string
}

func New(r snapshotter, stuckAfter time.Duration, clk clock.Clock, log *logsink.Logger) *Watchdog {
	if clk == nil {
		clk = clock.Real()
	}
	return &Watchdog{
		runner:     r,
		stuckAfter: stuckAfter,
		clock:      clk,
		log:        log,
	}
}

func (w *Watchdog) Start(ctx context.Context) {
	if w.stuckAfter <= 0 {
		return
	}

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Printf("Watchdog stopped")
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check возвращает true, если найден новый зависший цикл
func (w *Watchdog) check() bool {
	snap := w.runner.Snapshot()
	if snap.State == runner.StateIdle {
		w.reported = ""
		return false
	}

	stuckFor := w.clock.Now().Sub(snap.Since)
	if stuckFor < w.stuckAfter || w.reported == snap.CycleID {
		return false
	}

	w.reported = snap.CycleID
	w.log.Printf("Watchdog: board %s stuck in %s for %s (cycle %s)",
		snap.BoardID, snap.State, stuckFor.Round(time.Second), snap.CycleID)
	return true
}
