// Client Registry

package client

import (
	"io"
	"sync"
)

// Registry tracks every attached connection, identified by an opaque
// id rather than a pointer, and the nickname (if any) bound to it.
// Keeping the cross-reference by id rather than by Go pointer is what
// keeps Player and connection state from forming a reference cycle.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
	nickOf  map[string]string // connection id -> nickname ("" if unbound)
	idOf    map[string]string // nickname -> connection id
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
		nickOf:  make(map[string]string),
		idOf:    make(map[string]string),
	}
}

// Attach registers a new connection under id with an empty nickname
// and starts its send goroutine.
func (r *Registry) Attach(id string, rwc io.WriteCloser) *Handle {
	h := newHandle(id, rwc)

	r.mu.Lock()
	r.handles[id] = h
	r.nickOf[id] = ""
	r.mu.Unlock()

	return h
}

// Bind associates id with nickname, after a successful REGISTER.
func (r *Registry) Bind(id, nickname string) {
	r.mu.Lock()
	r.nickOf[id] = nickname
	r.idOf[nickname] = id
	r.mu.Unlock()
}

// BoundNickname returns the nickname bound to id (possibly empty)
// and whether id is a known connection.
func (r *Registry) BoundNickname(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nickname, ok := r.nickOf[id]
	return nickname, ok
}

// Detach removes id from the registry and closes its handle,
// returning the nickname it was bound to, if any.
func (r *Registry) Detach(id string) (nickname string, wasBound bool) {
	r.mu.Lock()
	h, ok := r.handles[id]
	if !ok {
		r.mu.Unlock()
		return "", false
	}
	nickname = r.nickOf[id]
	delete(r.handles, id)
	delete(r.nickOf, id)
	if nickname != "" {
		delete(r.idOf, nickname)
	}
	r.mu.Unlock()

	h.Close()
	return nickname, nickname != ""
}

// Broadcast sends message to every attached connection whose bound
// nickname is not in except. Recipients are snapshotted under the
// registry lock, then sent to outside of it, so a slow writer never
// blocks the broadcaster or any other recipient.
func (r *Registry) Broadcast(message string, except ...string) {
	excluded := make(map[string]struct{}, len(except))
	for _, n := range except {
		excluded[n] = struct{}{}
	}

	r.mu.Lock()
	recipients := make([]*Handle, 0, len(r.handles))
	for id, h := range r.handles {
		if _, skip := excluded[r.nickOf[id]]; skip {
			continue
		}
		recipients = append(recipients, h)
	}
	r.mu.Unlock()

	for _, h := range recipients {
		h.Send(message)
	}
}

// Unicast sends message to the connection bound to nickname, if any
// such connection is currently attached.
func (r *Registry) Unicast(nickname, message string) {
	r.mu.Lock()
	id, ok := r.idOf[nickname]
	var h *Handle
	if ok {
		h = r.handles[id]
	}
	r.mu.Unlock()

	if h != nil {
		h.Send(message)
	}
}

// ResetBindings clears every nickname binding, leaving connections
// attached but unregistered. Used when a match ends and the lobby
// resets: clients must REGISTER again to rejoin.
func (r *Registry) ResetBindings() {
	r.mu.Lock()
	for id := range r.nickOf {
		r.nickOf[id] = ""
	}
	r.idOf = make(map[string]string)
	r.mu.Unlock()
}
