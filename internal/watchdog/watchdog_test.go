package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/clock"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/logsink"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/runner"
)

type staticRunner struct {
	snap runner.Snapshot
}

func (s *staticRunner) Snapshot() runner.Snapshot { return s.snap }

func TestCheck(t *testing.T) {
	start := time.Unix(1700000000, 0)
	clk := clock.NewFake(start)
	ring := logsink.NewRing(10)
	r := &staticRunner{snap: runner.Snapshot{
		State:   runner.StateAwaitingCapture,
		CycleID: "cycle-1",
		BoardID: "BOARD-1",
		Since:   start,
	}}
	w := New(r, 30*time.Second, clk, logsink.New(ring))

	require.False(t, w.check())

	clk.Advance(31 * time.Second)
	require.True(t, w.check())
	require.False(t, w.check(), "one warning per cycle")

	entries := ring.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "Watchdog: board BOARD-1 stuck in awaiting_capture for 31s (cycle cycle-1)", entries[0].Message)

	r.snap = runner.Snapshot{State: runner.StateIdle, Since: clk.Now()}
	require.False(t, w.check())

	r.snap = runner.Snapshot{State: runner.StateInferring, CycleID: "cycle-2", BoardID: "BOARD-2", Since: start}
	require.True(t, w.check())
}
