package wake

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitOne_TimesOutWithoutSignal(t *testing.T) {
	e := New()

	start := time.Now()
	ok := e.WaitOne(50 * time.Millisecond)

	assert.False(t, ok, "wait without signal should time out")
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitOne_SignalBeforeWaitIsKept(t *testing.T) {
	e := New()
	e.Signal()

	assert.True(t, e.Pending())
	assert.True(t, e.WaitOne(time.Second))
	assert.False(t, e.Pending(), "wake should be consumed")
}

func TestSignal_BurstCollapsesToOneWake(t *testing.T) {
	e := New()
	for i := 0; i < 5; i++ {
		e.Signal()
	}

	assert.True(t, e.WaitOne(time.Second), "first wait consumes the burst")
	assert.False(t, e.WaitOne(20*time.Millisecond), "second wait sees nothing")
}

func TestSignal_WakesBlockedWaiter(t *testing.T) {
	e := New()

	done := make(chan bool, 1)
	go func() {
		done <- e.WaitOne(5 * time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	e.Signal()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestSignal_ConcurrentProducers(t *testing.T) {
	e := New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e.Signal()
			}
		}()
	}
	wg.Wait()

	assert.True(t, e.WaitOne(time.Second))
	assert.False(t, e.Pending())
}
