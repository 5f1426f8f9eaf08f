package proto

import (
	"bufio"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"racearena/internal/client"
	"racearena/internal/game"
)

func dial(t *testing.T, g *game.Game, clients *client.Registry) (net.Conn, *bufio.Scanner) {
	t.Helper()
	server, peer := net.Pipe()
	id := nextConnID()
	handle := clients.Attach(id, server)
	c := NewConn(id, server, g, clients, handle)
	go c.Handle()
	return peer, bufio.NewScanner(peer)
}

func send(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func readLine(t *testing.T, scanner *bufio.Scanner) string {
	t.Helper()
	done := make(chan bool, 1)
	go func() { done <- scanner.Scan() }()
	select {
	case ok := <-done:
		require.True(t, ok, scanner.Err())
	case <-time.After(2 * time.Second):
		require.Fail(t, "timed out waiting for a line")
	}
	return scanner.Text()
}

func newTestGame(clients *client.Registry) *game.Game {
	conf := game.Config{
		MaxPlayers:  4,
		RaceLength:  10,
		AnswerTime:  50 * time.Millisecond,
		PrepareTime: time.Millisecond,
		OperandMin:  1,
		OperandMax:  5,
	}
	return game.New(conf, clients, rand.New(rand.NewSource(1)))
}

func TestRegisterRejectsSecondAttemptOnSameConnection(t *testing.T) {
	clients := client.NewRegistry()
	g := newTestGame(clients)
	conn, scanner := dial(t, g, clients)
	defer conn.Close()

	send(t, conn, "REGISTER;alice")
	require.Contains(t, readLine(t, scanner), "REGISTRATION_SUCCESS;")

	send(t, conn, "REGISTER;alice")
	require.Equal(t, "REGISTRATION_FAILURE;You have already registered.", readLine(t, scanner))
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	clients := client.NewRegistry()
	g := newTestGame(clients)
	alice, aliceScanner := dial(t, g, clients)
	defer alice.Close()
	bob, bobScanner := dial(t, g, clients)
	defer bob.Close()

	send(t, alice, "REGISTER;alice")
	require.Contains(t, readLine(t, aliceScanner), "REGISTRATION_SUCCESS;")
	// bob is attached, though not yet registered, so the broadcast reaches him.
	require.Contains(t, readLine(t, bobScanner), "PLAYER_JOINED;alice")

	send(t, bob, "REGISTER;bob")
	require.Contains(t, readLine(t, bobScanner), "REGISTRATION_SUCCESS;")
	require.Contains(t, readLine(t, aliceScanner), "PLAYER_JOINED;bob")

	send(t, alice, "FROBNICATE;whatever")
	send(t, alice, "READY") // if FROBNICATE had wedged the reader, this never arrives
	require.Contains(t, readLine(t, bobScanner), "PLAYER_READY;alice")
}

func TestCommandBeforeRegisterClosesConnection(t *testing.T) {
	clients := client.NewRegistry()
	g := newTestGame(clients)
	conn, scanner := dial(t, g, clients)
	defer conn.Close()

	send(t, conn, "READY")
	require.False(t, scanner.Scan(), "connection should have been closed")
}

func TestMalformedAnswerGetsFailureReply(t *testing.T) {
	clients := client.NewRegistry()
	g := newTestGame(clients)
	conn, scanner := dial(t, g, clients)
	defer conn.Close()

	send(t, conn, "REGISTER;alice")
	require.Contains(t, readLine(t, scanner), "REGISTRATION_SUCCESS;")

	send(t, conn, "ANSWER;not-a-number")
	require.Equal(t, "ANSWER_FAILURE;Invalid arguments.", readLine(t, scanner))
}
