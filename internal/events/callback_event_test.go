package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackEvent_OrderedDelivery(t *testing.T) {
	event := NewCallbackEvent[float64](false)

	var order []string
	unregisterA := event.Listen(func(v float64) { order = append(order, "a") })
	event.Listen(func(v float64) { order = append(order, "b") })
	event.Listen(func(v float64) { order = append(order, "c") })
	require.Equal(t, 3, event.ListenerCount())

	event.Notify(4.5)
	assert.Equal(t, []string{"a", "b", "c"}, order)

	unregisterA()
	order = nil
	event.Notify(5)
	assert.Equal(t, []string{"b", "c"}, order)
}

func TestCallbackEvent_Replay(t *testing.T) {
	event := NewCallbackEvent[string](true)

	var got []string
	event.Listen(func(v string) { got = append(got, "early:"+v) })
	_, ok := event.Latest()
	assert.False(t, ok)

	event.Notify("ready")
	event.Listen(func(v string) { got = append(got, "late:"+v) })

	assert.Equal(t, []string{"early:ready", "late:ready"}, got)
	latest, ok := event.Latest()
	assert.True(t, ok)
	assert.Equal(t, "ready", latest)
}

func TestCallbackEvent_NoReplay(t *testing.T) {
	event := NewCallbackEvent[int](false)
	event.Notify(1)

	var got []int
	event.Listen(func(v int) { got = append(got, v) })
	assert.Empty(t, got)

	event.Notify(2)
	assert.Equal(t, []int{2}, got)
}

func TestCallbackEvent_ListenerMayUnregisterItself(t *testing.T) {
	event := NewCallbackEvent[int](false)

	calls := 0
	var unregister func()
	unregister = event.Listen(func(int) {
		calls++
		unregister()
	})

	event.Notify(1)
	event.Notify(2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, event.ListenerCount())
}

func TestCallbackEvent_NilPanics(t *testing.T) {
	event := NewCallbackEvent[int](false)
	assert.Panics(t, func() { event.Listen(nil) })
}
