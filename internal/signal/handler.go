// Package signal turns SIGINT and SIGTERM into context cancellation so a
// running tool is killed and reaped before newton exits.
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Handler cancels a context on the first SIGINT or SIGTERM and remembers
// that it did, so the caller can exit with the Interrupted code.
type Handler struct {
	ch       chan os.Signal
	received atomic.Value // os.Signal
}

// Setup registers SIGINT and SIGTERM handlers. On the first signal it
// calls onInterrupt (if non-nil) and then cancel. The listening goroutine
// ends when a signal arrives or ctx is done.
func Setup(ctx context.Context, cancel context.CancelFunc, onInterrupt func(os.Signal)) *Handler {
	h := &Handler{ch: make(chan os.Signal, 1)}
	signal.Notify(h.ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-h.ch:
			h.received.Store(sig)
			if onInterrupt != nil {
				onInterrupt(sig)
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return h
}

// Interrupted reports whether a signal was received.
func (h *Handler) Interrupted() bool {
	return h.Signal() != nil
}

// Signal returns the received signal, or nil.
func (h *Handler) Signal() os.Signal {
	if s, ok := h.received.Load().(os.Signal); ok {
		return s
	}
	return nil
}

// Stop restores default signal behavior.
func (h *Handler) Stop() {
	signal.Stop(h.ch)
}
