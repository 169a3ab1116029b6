package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFake_AdvanceFiresDueTimers(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	var fired []string

	c.AfterFunc(2*time.Second, func() { fired = append(fired, "late") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "early") })
	require.Equal(t, 2, c.Pending())

	c.Advance(time.Second)
	require.Equal(t, []string{"early"}, fired)

	c.Advance(time.Second)
	require.Equal(t, []string{"early", "late"}, fired)
	require.Zero(t, c.Pending())
}

func TestFake_Stop(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	called := false

	timer := c.AfterFunc(time.Second, func() { called = true })
	require.True(t, timer.Stop())
	require.False(t, timer.Stop())

	c.Advance(time.Minute)
	require.False(t, called)
}
