package camera

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/clock"
)

type staticSource struct {
	data  []byte
	calls int
}

func (s *staticSource) Capture(context.Context) ([]byte, error) {
	s.calls++
	return s.data, nil
}

func TestAutoTrigger_WaitsForDelay(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	src := &staticSource{data: []byte("frame")}
	trigger := NewAutoTrigger(src, clk, time.Second)

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := trigger.Capture(context.Background())
		done <- result{data, err}
	}()

	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, 5*time.Millisecond)
	select {
	case <-done:
		t.Fatal("captured before delay")
	default:
	}

	clk.Advance(time.Second)
	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, []byte("frame"), res.data)
	require.Equal(t, 1, src.calls)
}

func TestAutoTrigger_EmptyFrame(t *testing.T) {
	trigger := NewAutoTrigger(&staticSource{}, clock.Real(), 0)
	_, err := trigger.Capture(context.Background())
	require.ErrorIs(t, err, ErrNoImage)
}

func TestAutoTrigger_Cancelled(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	trigger := NewAutoTrigger(&staticSource{data: []byte("x")}, clk, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := trigger.Capture(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, clk.Pending())
}

func TestDir_CyclesImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jpg"), []byte("B"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.PNG"), []byte("A"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))

	src := NewDir(dir)
	var got []string
	for i := 0; i < 3; i++ {
		data, err := src.Capture(context.Background())
		require.NoError(t, err)
		got = append(got, string(data))
	}
	require.Equal(t, []string{"A", "B", "A"}, got)
}

func TestDir_Empty(t *testing.T) {
	_, err := NewDir(t.TempDir()).Capture(context.Background())
	require.ErrorIs(t, err, ErrNoImage)

	_, err = NewDir(filepath.Join(t.TempDir(), "missing")).Capture(context.Background())
	require.Error(t, err)
}
