// Package presence tracks which live real-time connections belong to which user.
package presence

import (
	"context"
	"sync"
)

// Conn is a live connection handle supplied by the transport layer.
type Conn interface {
	// ID is unique per connection for the life of the process.
	ID() string
	// Push hands payload to the connection, giving up when ctx is done.
	Push(ctx context.Context, payload []byte) error
}

type Stats struct {
	Users       int `json:"online_users"`
	Connections int `json:"connections"`
}

// Registry maps user ids to their connection sets and keeps the reverse
// mapping so that Unregister never has to scan. It is process-local and starts
// empty; clients re-register after a restart.
type Registry struct {
	mu     sync.RWMutex
	users  map[int64]map[string]Conn
	owners map[string]int64
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[int64]map[string]Conn),
		owners: make(map[string]int64),
	}
}

// Register adds conn to userID's set. Registering the same pair again is a
// no-op; registering a connection under a different user moves it, since a
// handle belongs to at most one user.
func (r *Registry) Register(userID int64, conn Conn) {
	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[id]; ok {
		if owner == userID {
			r.users[userID][id] = conn
			return
		}
		r.removeLocked(owner, id)
	}

	conns, ok := r.users[userID]
	if !ok {
		conns = make(map[string]Conn)
		r.users[userID] = conns
	}
	conns[id] = conn
	r.owners[id] = userID
}

// Unregister removes conn from whichever user owns it and reports whether it
// was registered. Unknown connections are ignored.
func (r *Registry) Unregister(conn Conn) bool {
	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[id]
	if !ok {
		return false
	}
	r.removeLocked(owner, id)
	return true
}

func (r *Registry) removeLocked(userID int64, connID string) {
	delete(r.owners, connID)

	conns := r.users[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.users, userID)
	}
}

// ConnectionsOf returns a snapshot of userID's connections. The slice is owned
// by the caller and is never nil.
func (r *Registry) ConnectionsOf(userID int64) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	out := make([]Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.owners))
	for _, conns := range r.users {
		for _, c := range conns {
			out = append(out, c)
		}
	}
	return out
}

// OwnerOf returns the user a connection is registered under.
func (r *Registry) OwnerOf(conn Conn) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[conn.ID()]
	return owner, ok
}

func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[userID]
	return ok
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Users:       len(r.users),
		Connections: len(r.owners),
	}
}
