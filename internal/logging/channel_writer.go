package logging

import (
	"strings"
	"sync/atomic"
)

// ChannelWriter hands log lines to a consumer without ever blocking the
// writer. Lines are dropped while the channel is full.
type ChannelWriter struct {
	lines   chan string
	dropped atomic.Int64
}

func NewChannelWriter(size int) *ChannelWriter {
	if size <= 0 {
		size = 256
	}
	return &ChannelWriter{lines: make(chan string, size)}
}

func (w *ChannelWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	select {
	case w.lines <- line:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

// Lines is the channel of written lines, without trailing newline
func (w *ChannelWriter) Lines() <-chan string {
	return w.lines
}

// Dropped counts lines lost to a full channel
func (w *ChannelWriter) Dropped() int64 {
	return w.dropped.Load()
}
