package client

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memConn is an io.WriteCloser backed by a buffer, safe for the
// handle's drain goroutine to write to while a test reads it.
type memConn struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
	failOn int // writes from this count onward fail, 0 = never
	writes int
	block  chan struct{} // if non-nil, every Write waits on it first
}

func (m *memConn) Write(p []byte) (int, error) {
	if m.block != nil {
		<-m.block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failOn != 0 && m.writes >= m.failOn {
		return 0, errors.New("broken pipe")
	}
	return m.buf.Write(p)
}

func (m *memConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memConn) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.String()
}

func (m *memConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "condition was never satisfied")
}

func TestBroadcastExcludesNickname(t *testing.T) {
	r := NewRegistry()
	alice := &memConn{}
	bob := &memConn{}
	r.Attach("a", alice)
	r.Attach("b", bob)
	r.Bind("a", "alice")
	r.Bind("b", "bob")

	r.Broadcast("PLAYER_JOINED;alice", "alice")

	waitFor(t, func() bool { return bob.String() == "PLAYER_JOINED;alice\n" })
	assert.Equal(t, "", alice.String())
}

func TestUnicastDropsUnknownNickname(t *testing.T) {
	r := NewRegistry()
	r.Unicast("nobody", "ANSWER;1") // must not panic or block
}

func TestDetachReturnsBoundNickname(t *testing.T) {
	r := NewRegistry()
	conn := &memConn{}
	r.Attach("a", conn)
	r.Bind("a", "alice")

	nickname, ok := r.Detach("a")
	assert.True(t, ok)
	assert.Equal(t, "alice", nickname)
	assert.True(t, conn.isClosed())

	_, ok = r.BoundNickname("a")
	assert.False(t, ok)
}

func TestResetBindingsKeepsConnectionsAttached(t *testing.T) {
	r := NewRegistry()
	conn := &memConn{}
	r.Attach("a", conn)
	r.Bind("a", "alice")

	r.ResetBindings()

	nickname, ok := r.BoundNickname("a")
	assert.True(t, ok)
	assert.Equal(t, "", nickname)
	assert.False(t, conn.isClosed())
}

func TestWriteErrorClosesConnection(t *testing.T) {
	r := NewRegistry()
	conn := &memConn{failOn: 1}
	r.Attach("a", conn)

	h, ok := r.handles["a"]
	require.True(t, ok)
	h.Send("hello")

	waitFor(t, func() bool { return conn.isClosed() })
}

func TestOverflowingOutboxClosesConnection(t *testing.T) {
	r := NewRegistry()
	// block gates every Write; leaving it unclosed stalls the drain
	// goroutine indefinitely, so the outbox is guaranteed to fill.
	conn := &memConn{block: make(chan struct{})}
	r.Attach("a", conn)

	h, ok := r.handles["a"]
	require.True(t, ok)

	// The first Send is picked up by drain() and blocks there; the
	// remaining outboxSize sends fill the channel to capacity. One
	// more must overflow and tear the connection down rather than
	// block the caller.
	for i := 0; i < outboxSize+2; i++ {
		h.Send("hello")
	}

	waitFor(t, func() bool { return conn.isClosed() })
}
