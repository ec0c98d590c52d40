package events

import "sync/atomic"

// ChannelEvent delivers values to listener channels without blocking the
// notifier. A value is dropped for a listener whose channel is full.
type ChannelEvent[T any] struct {
	reg     *registry[T, chan<- T]
	dropped atomic.Uint64
}

// NewChannelEvent creates a ChannelEvent. With replayLast set, a channel
// registered after the first Notify receives the latest value at once.
func NewChannelEvent[T any](replayLast bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{reg: newRegistry[T, chan<- T](replayLast)}
}

// Listen registers ch and returns its deregistration function
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("events: channel cannot be nil")
	}
	id, last, replay := e.reg.add(ch)
	if replay {
		e.offer(ch, last)
	}
	return func() { e.reg.remove(id) }
}

// Notify offers value to every listener and returns how many accepted it
func (e *ChannelEvent[T]) Notify(value T) int {
	delivered := 0
	for _, ch := range e.reg.snapshot(value) {
		if e.offer(ch, value) {
			delivered++
		}
	}
	return delivered
}

func (e *ChannelEvent[T]) offer(ch chan<- T, value T) bool {
	select {
	case ch <- value:
		return true
	default:
		e.dropped.Add(1)
		return false
	}
}

// Dropped counts values not delivered because a channel was full
func (e *ChannelEvent[T]) Dropped() uint64 {
	return e.dropped.Load()
}

func (e *ChannelEvent[T]) Latest() (T, bool) {
	return e.reg.latest()
}

func (e *ChannelEvent[T]) ListenerCount() int {
	return e.reg.count()
}
