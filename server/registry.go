package server

import (
	"log"
	"sync"

	"mychat/protocol"
)

// Registry is the process-wide table of live connections and the subset
// bound to authenticated users. It is the single shared mutable structure
// in the server; the lock protects map access only and is never held
// across a send or a database call.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn // connection id -> conn
	users map[string]*Conn // user id -> conn, authenticated only
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
		users: make(map[string]*Conn),
	}
}

func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
}

// Remove drops the connection and, if it is still the one bound to its
// user, the user mapping too. A newer login may already own the user slot.
func (r *Registry) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c.ID)
	if uid := c.UserID(); uid != "" {
		if cur, ok := r.users[uid]; ok && cur.ID == c.ID {
			delete(r.users, uid)
		}
	}
}

// RegisterUser binds userID to c. If another connection already holds the
// identity it is sent an eviction notice and disconnected first: last
// login wins. Registering the same connection twice is a no-op.
func (r *Registry) RegisterUser(userID string, c *Conn) {
	r.mu.Lock()
	old, ok := r.users[userID]
	if ok && old.ID == c.ID {
		r.mu.Unlock()
		return
	}
	r.users[userID] = c
	count := len(r.users)
	r.mu.Unlock()

	c.bindUser(userID)

	if ok {
		// Evicted off this goroutine: the victim may not be draining its
		// socket, and the new login's response must not wait on it.
		go func() {
			if pkt, err := protocol.NewPacket(protocol.TypeKickNotice, &protocol.KickNotice{
				Reason: "account logged in elsewhere",
			}); err == nil {
				old.send(pkt)
			}
			old.Close()
		}()
	}

	log.Printf("user %s online, %d users registered", userID, count)
}

// RemoveUser unbinds and disconnects by identity (admin kick).
func (r *Registry) RemoveUser(userID string) *Conn {
	r.mu.Lock()
	c, ok := r.users[userID]
	if ok {
		delete(r.users, userID)
		delete(r.conns, c.ID)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return c
}

// Lookup answers "is this user currently reachable" for presence checks,
// routing and offline-reply delivery.
func (r *Registry) Lookup(userID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.users[userID]
	return c, ok
}

// Connections snapshots every registered connection, for broadcast.
func (r *Registry) Connections() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// Counts reports connection and authenticated-user totals.
func (r *Registry) Counts() (conns, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.users)
}
