// Package uithread runs functions one at a time on a single goroutine.
//
// Window-system callbacks and RPC requests arrive on many goroutines. They
// are pushed here so the PiP controller only ever sees one caller at a time
// and needs no locking of its own.
package uithread

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sunbird89629/pip-plugin/internal/logger"
)

// ErrStopped is returned by Call once the thread is no longer running.
var ErrStopped = errors.New("uithread: stopped")

// Thread is a FIFO of functions serviced by Run.
type Thread struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
	log  *zerolog.Logger
}

// New returns a Thread that does nothing until Run is called.
func New() *Thread {
	return &Thread{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  logger.WithComponent("uithread"),
	}
}

// Run services queued functions until ctx is cancelled. Functions still
// queued at that point are dropped. Run must be called once.
func (t *Thread) Run(ctx context.Context) {
	defer func() {
		t.mu.Lock()
		t.stopped = true
		dropped := len(t.queue)
		t.queue = nil
		t.mu.Unlock()
		close(t.done)

		if dropped > 0 {
			t.log.Debug().Int("dropped", dropped).Msg("UI thread stopped with pending work")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.wake:
		}

		for {
			f, ok := t.next()
			if !ok {
				break
			}
			t.service(f)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// Done is closed when Run has returned.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// Post queues f without waiting for it. It never blocks and reports false
// when the thread has stopped.
func (t *Thread) Post(f func()) bool {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return false
	}
	t.queue = append(t.queue, f)
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs f on the thread and returns its error. A panic in f is returned
// as an error. Call must not be used from the thread itself.
func (t *Thread) Call(f func() error) error {
	result := make(chan error, 1)
	queued := t.Post(func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("uithread: panic: %v", r)
			}
		}()
		result <- f()
	})
	if !queued {
		return ErrStopped
	}

	select {
	case err := <-result:
		return err
	case <-t.done:
		// the function may have completed just before the thread stopped
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}

func (t *Thread) next() (func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return nil, false
	}
	f := t.queue[0]
	t.queue[0] = nil
	t.queue = t.queue[1:]
	return f, true
}

// service runs one posted function. Panics from Post-ed functions are
// logged; Call-ed functions recover their own.
func (t *Thread) service(f func()) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error().Interface("panic", r).Msg("Recovered panic on UI thread")
		}
	}()
	f()
}
