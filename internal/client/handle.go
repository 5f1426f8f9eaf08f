// Per-connection Send Handle

// Package client holds the registry of attached TCP connections and
// the nickname each is bound to, and provides the broadcast/unicast
// primitives the game controller sends events through.
package client

import (
	"io"
	"sync"

	"racearena/internal/logging"
)

// outboxSize bounds how many pending messages a single slow
// connection may accumulate before it is considered stalled and torn
// down, per the backpressure requirement in the spec's Design Notes.
const outboxSize = 64

// Handle is the send side of one attached connection. Messages are
// enqueued by Send and written out by a dedicated goroutine, so a
// broadcast never blocks on a single slow reader.
type Handle struct {
	id     string
	rwc    io.WriteCloser
	outbox chan string
	closed chan struct{}
	once   sync.Once
}

func newHandle(id string, rwc io.WriteCloser) *Handle {
	h := &Handle{
		id:     id,
		rwc:    rwc,
		outbox: make(chan string, outboxSize),
		closed: make(chan struct{}),
	}
	go h.drain()
	return h
}

func (h *Handle) drain() {
	for {
		select {
		case msg := <-h.outbox:
			if _, err := io.WriteString(h.rwc, msg+"\n"); err != nil {
				logging.Debug.Printf("client %s: write error: %s", h.id, err)
				h.Close()
				return
			}
		case <-h.closed:
			return
		}
	}
}

// Send enqueues msg for delivery. If the connection is closed, or its
// outbox is full, the message is dropped and the connection is
// closed (an overflowing outbox means a stalled client, which must
// not be allowed to stall the round loop).
func (h *Handle) Send(msg string) {
	select {
	case <-h.closed:
		return
	default:
	}

	select {
	case h.outbox <- msg:
	case <-h.closed:
	default:
		logging.Debug.Printf("client %s: outbox full, closing", h.id)
		h.Close()
	}
}

// Close tears down the handle. Safe to call more than once and from
// more than one goroutine.
func (h *Handle) Close() {
	h.once.Do(func() {
		close(h.closed)
		h.rwc.Close()
	})
}
