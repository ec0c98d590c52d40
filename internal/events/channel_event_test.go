package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannelEvent_Delivery(t *testing.T) {
	event := NewChannelEvent[float64](false)

	ch1 := make(chan float64, 4)
	ch2 := make(chan float64, 4)
	unregister1 := event.Listen(ch1)
	event.Listen(ch2)
	assert.Equal(t, 2, event.ListenerCount())

	assert.Equal(t, 2, event.Notify(3.2))

	for _, ch := range []chan float64{ch1, ch2} {
		select {
		case v := <-ch:
			assert.Equal(t, 3.2, v)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("Timeout waiting for event")
		}
	}

	unregister1()
	assert.Equal(t, 1, event.Notify(4))
	select {
	case v := <-ch1:
		t.Errorf("Unexpected value received after unregister: %v", v)
	default:
	}
}

func TestChannelEvent_FullChannelDrops(t *testing.T) {
	event := NewChannelEvent[int](false)
	ch := make(chan int, 1)
	event.Listen(ch)

	assert.Equal(t, 1, event.Notify(1))
	assert.Equal(t, 0, event.Notify(2))
	assert.Equal(t, uint64(1), event.Dropped())
	assert.Equal(t, 1, <-ch)
}

func TestChannelEvent_Replay(t *testing.T) {
	event := NewChannelEvent[string](true)

	early := make(chan string, 2)
	event.Listen(early)
	select {
	case v := <-early:
		t.Errorf("Unexpected value received before Notify: %s", v)
	default:
	}

	event.Notify("connected")
	late := make(chan string, 2)
	event.Listen(late)

	assert.Equal(t, "connected", <-early)
	assert.Equal(t, "connected", <-late)

	latest, ok := event.Latest()
	assert.True(t, ok)
	assert.Equal(t, "connected", latest)
}

func TestChannelEvent_NilPanics(t *testing.T) {
	event := NewChannelEvent[int](false)
	assert.Panics(t, func() { event.Listen(nil) })
}
