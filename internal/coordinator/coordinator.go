// Package coordinator serializes writes to the equipment so that at most one
// acknowledgment-awaiting request is in flight at any time.
//
// Every queued request is written in submission order. A request that waits
// for an acknowledgment holds the line until the next complete inbound frame
// (Resolve) or its timeout; fire-and-forget requests complete as soon as they
// are written. Nothing here blocks the caller: completion is reported through
// the request's Done channel and its optional callback.
package coordinator

import (
	"errors"
	"log"
	"sync"
	"time"
)

// DefaultTimeout bounds the wait for an acknowledgment
const DefaultTimeout = 300 * time.Millisecond

// ErrNotConnected is the error attached to requests dropped because the link was down
var ErrNotConnected = errors.New("coordinator: not connected")

// Sink is the write side of the transport
type Sink interface {
	Connected() bool
	WriteFrames(frames [][]byte) error
}

// Coordinator is the single-flight request queue of one driver.
type Coordinator struct {
	logger  *log.Logger
	sink    Sink
	timeout time.Duration
	post    func(func())

	mu       sync.Mutex
	queue    []*Request
	inflight *Request
	timer    *time.Timer
	nextID   uint64
	token    uint64
}

type completion struct {
	req     *Request
	outcome Outcome
	err     error
}

// NewCoordinator creates a coordinator writing to sink.
// post schedules timeout handling; pass the session loop's post function to
// keep all completions on that goroutine, or nil to handle them on the timer goroutine.
func NewCoordinator(logger *log.Logger, sink Sink, timeout time.Duration, post func(func())) *Coordinator {
	if logger == nil {
		panic("Coordinator: logger cannot be nil")
	}
	if sink == nil {
		panic("Coordinator: sink cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if post == nil {
		post = func(f func()) { f() }
	}
	return &Coordinator{
		logger:  logger,
		sink:    sink,
		timeout: timeout,
		post:    post,
	}
}

// Send queues frames that wait for an acknowledgment
func (c *Coordinator) Send(label string, frames [][]byte, onDone func(Outcome)) *Request {
	return c.submit(label, frames, true, onDone)
}

// SendNoAck queues frames that complete once written
func (c *Coordinator) SendNoAck(label string, frames [][]byte, onDone func(Outcome)) *Request {
	return c.submit(label, frames, false, onDone)
}

func (c *Coordinator) submit(label string, frames [][]byte, waitForAck bool, onDone func(Outcome)) *Request {
	c.mu.Lock()
	c.nextID++
	req := newRequest(c.nextID, label, frames, waitForAck, onDone)
	c.queue = append(c.queue, req)
	done := c.pumpLocked(nil)
	c.mu.Unlock()

	c.finish(done)
	return req
}

// Resolve completes the in-flight request as Acknowledged. It reports false
// when nothing was waiting.
func (c *Coordinator) Resolve() bool {
	c.mu.Lock()
	if c.inflight == nil {
		c.mu.Unlock()
		return false
	}
	done := []completion{{req: c.inflight, outcome: Acknowledged}}
	c.clearInflightLocked()
	done = c.pumpLocked(done)
	c.mu.Unlock()

	c.finish(done)
	return true
}

// CancelAll completes the in-flight request and everything queued as Cancelled
func (c *Coordinator) CancelAll() int {
	c.mu.Lock()
	var done []completion
	if c.inflight != nil {
		done = append(done, completion{req: c.inflight, outcome: Cancelled})
		c.clearInflightLocked()
	}
	for _, req := range c.queue {
		done = append(done, completion{req: req, outcome: Cancelled})
	}
	c.queue = nil
	c.mu.Unlock()

	c.finish(done)
	return len(done)
}

// Busy reports whether a request is awaiting its acknowledgment
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// Pending returns the number of queued requests, excluding the in-flight one
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Coordinator) expire(token uint64) {
	c.mu.Lock()
	if c.inflight == nil || c.inflight.token != token {
		c.mu.Unlock()
		return
	}
	req := c.inflight
	c.clearInflightLocked()
	done := c.pumpLocked([]completion{{req: req, outcome: TimedOut}})
	c.mu.Unlock()

	c.logger.Printf("Coordinator: request %d (%s) timed out after %v", req.id, req.label, c.timeout)
	c.finish(done)
}

// pumpLocked writes queued requests until one needs to wait for an acknowledgment
func (c *Coordinator) pumpLocked(done []completion) []completion {
	for c.inflight == nil && len(c.queue) > 0 {
		req := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]

		if !c.sink.Connected() {
			done = append(done, completion{req: req, outcome: NotConnected, err: ErrNotConnected})
			continue
		}
		if err := c.sink.WriteFrames(req.frames); err != nil {
			c.logger.Printf("Coordinator: write of request %d (%s) failed: %v", req.id, req.label, err)
			done = append(done, completion{req: req, outcome: WriteFailed, err: err})
			continue
		}
		if !req.waitForAck {
			done = append(done, completion{req: req, outcome: Sent})
			continue
		}

		c.token++
		req.token = c.token
		c.inflight = req
		token := c.token
		c.timer = time.AfterFunc(c.timeout, func() {
			c.post(func() { c.expire(token) })
		})
	}
	return done
}

func (c *Coordinator) clearInflightLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.inflight = nil
}

func (c *Coordinator) finish(done []completion) {
	for _, d := range done {
		d.req.complete(d.outcome, d.err)
	}
}
