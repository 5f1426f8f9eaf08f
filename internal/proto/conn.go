// Connection Handling

// Package proto implements the newline-delimited, semicolon-separated
// line protocol clients speak over TCP, and the listener that accepts
// connections and spawns a handler goroutine for each.
package proto

import (
	"bufio"
	"net"
	"strings"

	"racearena/internal/client"
	"racearena/internal/game"
	"racearena/internal/logging"
)

// Conn is one accepted connection. It is attached to the client
// registry before Handle is called. Whether it has completed
// REGISTER is asked of the client registry on every frame rather than
// cached locally, so a connection that survives a match reset (the
// client registry unbinds every nickname, but the TCP connection
// itself stays open) is correctly treated as unregistered again.
type Conn struct {
	id      string
	rwc     net.Conn
	game    *game.Game
	clients *client.Registry
	handle  *client.Handle
}

// NewConn wraps an accepted connection, already attached to clients
// under id with send side handle.
func NewConn(id string, rwc net.Conn, g *game.Game, clients *client.Registry, handle *client.Handle) *Conn {
	return &Conn{id: id, rwc: rwc, game: g, clients: clients, handle: handle}
}

// Handle reads newline-delimited frames until EOF or error,
// dispatching each to the game controller, then tears the connection
// down. It never holds the game controller's lock across a read.
func (c *Conn) Handle() {
	defer c.teardown()

	logging.Debug.Printf("conn %s: accepted from %s", c.id, c.rwc.RemoteAddr())

	scanner := bufio.NewScanner(c.rwc)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !c.dispatch(line) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logging.Debug.Printf("conn %s: read error: %s", c.id, err)
	}
}

func (c *Conn) teardown() {
	nickname, _ := c.clients.Detach(c.id)
	if nickname != "" {
		c.game.HandleDisconnect(nickname)
	}
	logging.Debug.Printf("conn %s: closed", c.id)
}

// dispatch parses and handles one frame, and reports whether the
// connection should keep reading. Unrecognized commands are ignored,
// per the reference server's switch statement having no default
// case. A command that requires a registration this connection never
// completed is treated like the reference implementation's unhandled
// KeyError on an unregistered writer: the connection is torn down.
func (c *Conn) dispatch(line string) bool {
	fields := strings.Split(line, ";")
	cmd := strings.ToUpper(fields[0])
	args := fields[1:]

	switch cmd {
	case "REGISTER":
		return c.handleRegister(args)
	case "READY":
		return c.handleReady(args)
	case "UNREADY":
		return c.handleUnready(args)
	case "ANSWER":
		return c.handleAnswer(args)
	default:
		return true
	}
}

func (c *Conn) handleRegister(args []string) bool {
	if len(args) != 1 {
		c.handle.Send("REGISTRATION_FAILURE;Invalid arguments.")
		return true
	}
	if nickname, _ := c.clients.BoundNickname(c.id); nickname != "" {
		c.handle.Send("REGISTRATION_FAILURE;You have already registered.")
		return true
	}

	nickname := strings.TrimSpace(args[0])
	if err := c.game.HandleRegister(c.id, nickname); err != nil {
		c.handle.Send("REGISTRATION_FAILURE;" + err.Error())
		return true
	}
	return true
}

func (c *Conn) handleReady(args []string) bool {
	if len(args) != 0 {
		c.handle.Send("READY_FAILURE;Invalid arguments.")
		return true
	}
	nickname, _ := c.clients.BoundNickname(c.id)
	if nickname == "" {
		return false
	}
	if err := c.game.HandleReady(nickname); err != nil {
		c.handle.Send("READY_FAILURE;" + err.Error())
	}
	return true
}

func (c *Conn) handleUnready(args []string) bool {
	if len(args) != 0 {
		c.handle.Send("UNREADY_FAILURE;Invalid arguments.")
		return true
	}
	nickname, _ := c.clients.BoundNickname(c.id)
	if nickname == "" {
		return false
	}
	if err := c.game.HandleUnready(nickname); err != nil {
		c.handle.Send("UNREADY_FAILURE;" + err.Error())
	}
	return true
}

func (c *Conn) handleAnswer(args []string) bool {
	if len(args) != 1 {
		c.handle.Send("ANSWER_FAILURE;Invalid arguments.")
		return true
	}
	nickname, _ := c.clients.BoundNickname(c.id)
	if nickname == "" {
		return false
	}

	value, err := game.ParseAnswer(args[0])
	if err != nil {
		c.handle.Send("ANSWER_FAILURE;Invalid arguments.")
		return true
	}
	if err := c.game.HandleAnswer(nickname, value); err != nil {
		c.handle.Send("ANSWER_FAILURE;" + err.Error())
	}
	return true
}
