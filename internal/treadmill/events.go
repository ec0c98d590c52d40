package treadmill

import (
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/events"
)

// InclineChange carries the previous and new incline percentages
type InclineChange struct {
	Old float64
	New float64
}

// Events are the notifications a driver emits. Callback events run on the
// driver loop in emission order; listeners must return quickly.
type Events struct {
	SpeedChanged    *events.CallbackEvent[float64]
	InclineChanged  *events.CallbackEvent[InclineChange]
	DistanceUpdated *events.CallbackEvent[float64]

	// ConnectedAndDiscovered and Disconnected carry the session id
	ConnectedAndDiscovered *events.CallbackEvent[string]
	Disconnected           *events.CallbackEvent[string]

	TapeStarted *events.CallbackEvent[struct{}]
	TapeStopped *events.CallbackEvent[struct{}]

	Debug  *events.CallbackEvent[string]
	Errors *events.CallbackEvent[error]

	// Status is published with every display refresh, for other goroutines
	Status *events.ChannelEvent[Status]
}

func newEvents() *Events {
	return &Events{
		SpeedChanged:           events.NewCallbackEvent[float64](false),
		InclineChanged:         events.NewCallbackEvent[InclineChange](false),
		DistanceUpdated:        events.NewCallbackEvent[float64](false),
		ConnectedAndDiscovered: events.NewCallbackEvent[string](false),
		Disconnected:           events.NewCallbackEvent[string](false),
		TapeStarted:            events.NewCallbackEvent[struct{}](false),
		TapeStopped:            events.NewCallbackEvent[struct{}](false),
		Debug:                  events.NewCallbackEvent[string](false),
		Errors:                 events.NewCallbackEvent[error](false),
		Status:                 events.NewChannelEvent[Status](true),
	}
}
