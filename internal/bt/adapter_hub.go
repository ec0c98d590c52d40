package bt

import (
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/safe_map"
)

// adapterHub lets several Centrals and a peripheral share one adapter. The
// adapter has a single connect handler and a single scan, so the hub fans
// the former out and serializes the latter.
type adapterHub struct {
	adapter *bluetooth.Adapter

	enableOnce sync.Once
	enableErr  error
	scanMu     sync.Mutex

	nextID   int
	idMu     sync.Mutex
	handlers *safe_map.SafeMap[int, func(bluetooth.Device, bool)]
}

var (
	hubsMu sync.Mutex
	hubs   = map[*bluetooth.Adapter]*adapterHub{}
)

func hubFor(adapter *bluetooth.Adapter) *adapterHub {
	hubsMu.Lock()
	defer hubsMu.Unlock()
	if h, ok := hubs[adapter]; ok {
		return h
	}
	h := &adapterHub{
		adapter:  adapter,
		handlers: safe_map.NewSafeMap[int, func(bluetooth.Device, bool)](),
	}
	hubs[adapter] = h
	return h
}

// EnableAdapter powers the adapter once for every user of it
func EnableAdapter(adapter *bluetooth.Adapter) error {
	return hubFor(adapter).enable()
}

func (h *adapterHub) enable() error {
	h.enableOnce.Do(func() {
		h.adapter.SetConnectHandler(h.dispatch)
		h.enableErr = h.adapter.Enable()
	})
	return h.enableErr
}

func (h *adapterHub) dispatch(device bluetooth.Device, connected bool) {
	for _, id := range h.handlers.Keys() {
		if fn, ok := h.handlers.Load(id); ok {
			fn(device, connected)
		}
	}
}

// onConnect registers a connect handler and returns its removal
func (h *adapterHub) onConnect(fn func(bluetooth.Device, bool)) func() {
	h.idMu.Lock()
	h.nextID++
	id := h.nextID
	h.idMu.Unlock()

	h.handlers.Store(id, fn)
	return func() { h.handlers.Delete(id) }
}

// scan runs one scan at a time across every Central on the adapter
func (h *adapterHub) scan(fn func() error) error {
	h.scanMu.Lock()
	defer h.scanMu.Unlock()
	return fn()
}
