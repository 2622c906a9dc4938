package workflow

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownTicksDownAndExpires(t *testing.T) {
	var mu sync.Mutex
	var ticks []int
	warned := 0
	expired := make(chan struct{})

	c := NewCountdown(3, 2, time.Millisecond, CountdownCallbacks{
		OnTick: func(remaining int) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
		},
		OnWarn:   func() { mu.Lock(); warned++; mu.Unlock() },
		OnExpire: func() { close(expired) },
	}, testLogger())

	c.Start()

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not expire")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 1, 0}, ticks)
	assert.Equal(t, 1, warned, "warning fires exactly once")
}

func TestCountdownStopPreventsExpiry(t *testing.T) {
	expired := make(chan struct{})

	c := NewCountdown(60, 10, time.Millisecond, CountdownCallbacks{
		OnExpire: func() { close(expired) },
	}, testLogger())

	c.Start()
	require.True(t, c.Stop(), "first stop wins")

	select {
	case <-expired:
		t.Fatal("expiry fired after a winning Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCountdownStopAfterExpiryLoses(t *testing.T) {
	expired := make(chan struct{})

	c := NewCountdown(1, 0, time.Millisecond, CountdownCallbacks{
		OnExpire: func() { close(expired) },
	}, testLogger())

	c.Start()

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not expire")
	}

	assert.False(t, c.Stop(), "stop after expiry reports the loss")
}

func TestCountdownStopTwice(t *testing.T) {
	c := NewCountdown(60, 0, time.Millisecond, CountdownCallbacks{}, testLogger())
	c.Start()

	assert.True(t, c.Stop())
	assert.False(t, c.Stop())
}

func TestCountdownStartTwiceIsNoop(t *testing.T) {
	var mu sync.Mutex
	ticks := 0

	c := NewCountdown(2, 0, 10*time.Millisecond, CountdownCallbacks{
		OnTick: func(int) { mu.Lock(); ticks++; mu.Unlock() },
	}, testLogger())

	c.Start()
	c.Start()

	time.Sleep(50 * time.Millisecond)
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, ticks, 2, "a second Start must not double the tick rate")
}
