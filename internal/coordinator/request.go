package coordinator

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Outcome is the terminal state of a Request
type Outcome int32

const (
	Pending Outcome = iota
	// Acknowledged: the equipment answered while the request was in flight
	Acknowledged
	// Sent: fire-and-forget request was written
	Sent
	TimedOut
	// Cancelled: the session was torn down before completion
	Cancelled
	// NotConnected: nothing was written because the link was down
	NotConnected
	WriteFailed
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Acknowledged:
		return "acknowledged"
	case Sent:
		return "sent"
	case TimedOut:
		return "timed out"
	case Cancelled:
		return "cancelled"
	case NotConnected:
		return "not connected"
	case WriteFailed:
		return "write failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int32(o))
	}
}

// Delivered reports whether the frames reached the equipment
func (o Outcome) Delivered() bool {
	return o == Acknowledged || o == Sent || o == TimedOut
}

// Request is one queued write. It completes exactly once.
type Request struct {
	id         uint64
	label      string
	frames     [][]byte
	waitForAck bool
	onDone     func(Outcome)

	token   uint64
	outcome atomic.Int32
	done    chan struct{}
	err     error
}

func newRequest(id uint64, label string, frames [][]byte, waitForAck bool, onDone func(Outcome)) *Request {
	return &Request{
		id:         id,
		label:      label,
		frames:     frames,
		waitForAck: waitForAck,
		onDone:     onDone,
		done:       make(chan struct{}),
	}
}

func (r *Request) ID() uint64       { return r.id }
func (r *Request) Label() string    { return r.label }
func (r *Request) WaitForAck() bool { return r.waitForAck }

// Done is closed once the request has an outcome
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Outcome returns Pending until the request completes
func (r *Request) Outcome() Outcome {
	return Outcome(r.outcome.Load())
}

// Err returns the transport error of a WriteFailed request
func (r *Request) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the request completes or ctx is done.
// Never call Wait from the goroutine that drives the coordinator.
func (r *Request) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		return r.Outcome(), nil
	case <-ctx.Done():
		return Pending, ctx.Err()
	}
}

func (r *Request) complete(outcome Outcome, err error) {
	r.err = err
	r.outcome.Store(int32(outcome))
	close(r.done)
	if r.onDone != nil {
		r.onDone(outcome)
	}
}
