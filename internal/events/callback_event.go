package events

// CallbackEvent calls listeners synchronously, in registration order, on the
// goroutine that calls Notify.
type CallbackEvent[T any] struct {
	reg *registry[T, func(T)]
}

// NewCallbackEvent creates a CallbackEvent. With replayLast set, a listener
// registered after the first Notify is called at once with the latest value.
func NewCallbackEvent[T any](replayLast bool) *CallbackEvent[T] {
	return &CallbackEvent[T]{reg: newRegistry[T, func(T)](replayLast)}
}

// Listen registers callback and returns its deregistration function
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("events: callback cannot be nil")
	}
	id, last, replay := e.reg.add(callback)
	if replay {
		callback(last)
	}
	return func() { e.reg.remove(id) }
}

// Notify calls every listener with value. Listeners may deregister
// themselves; the change applies from the next Notify.
func (e *CallbackEvent[T]) Notify(value T) {
	for _, cb := range e.reg.snapshot(value) {
		cb(value)
	}
}

// Latest returns the last notified value
func (e *CallbackEvent[T]) Latest() (T, bool) {
	return e.reg.latest()
}

func (e *CallbackEvent[T]) ListenerCount() int {
	return e.reg.count()
}
