package go_func_utils

import (
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeGoWG_Waits(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	var wg sync.WaitGroup
	var n atomic.Int32

	for i := 0; i < 5; i++ {
		SafeGoWG(logger, &wg, func() {
			time.Sleep(5 * time.Millisecond)
			n.Add(1)
		})
	}
	wg.Wait()
	assert.Equal(t, int32(5), n.Load())
}

func TestSafeGo_Runs(t *testing.T) {
	done := make(chan struct{})
	SafeGo(log.New(io.Discard, "", 0), func() { close(done) })

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for goroutine")
	}
}
