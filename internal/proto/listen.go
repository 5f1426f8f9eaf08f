// TCP Listener

package proto

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"racearena/internal/client"
	"racearena/internal/game"
	"racearena/internal/logging"
)

var connCounter int64

func nextConnID() string {
	return fmt.Sprintf("c%d", atomic.AddInt64(&connCounter, 1))
}

// Listen binds addr and accepts connections until ctx is cancelled,
// attaching each to clients and spawning a Conn.Handle goroutine for
// it. A bind failure is returned immediately; an accept failure
// during a graceful shutdown (ctx already cancelled) is not
// propagated as an error.
func Listen(ctx context.Context, addr string, g *game.Game, clients *client.Registry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	logging.Log.Printf("listening on %s", addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				logging.Log.Printf("accept: %s", err)
				continue
			}
		}

		id := nextConnID()
		handle := clients.Attach(id, conn)
		c := NewConn(id, conn, g, clients, handle)
		go c.Handle()
	}
}
