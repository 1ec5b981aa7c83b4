package core

import (
	"maps"
	"slices"
)

// Registry is the set of open connections of one server. It is owned by the
// server loop goroutine and must only be used from Handler callbacks, Post
// functions or Every jobs.
type Registry struct {
	conns map[uint64]*Connection
}

func newRegistry() *Registry {
	return &Registry{conns: make(map[uint64]*Connection)}
}

func (r *Registry) add(c *Connection) {
	r.conns[c.ID()] = c
}

// remove reports whether the id was registered
func (r *Registry) remove(id uint64) (*Connection, bool) {
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return c, ok
}

// Get returns an open connection by id
func (r *Registry) Get(id uint64) (*Connection, bool) {
	c, ok := r.conns[id]
	if !ok || c.State() != StateOpen {
		return nil, false
	}
	return c, true
}

// Len counts open connections
func (r *Registry) Len() int {
	n := 0
	for _, c := range r.conns {
		if c.State() == StateOpen {
			n++
		}
	}
	return n
}

// Each calls fn for every open connection in id order until fn returns false.
// Connections closed by the application but not yet reaped are skipped.
func (r *Registry) Each(fn func(c *Connection) bool) {
	for _, id := range slices.Sorted(maps.Keys(r.conns)) {
		c := r.conns[id]
		if c.State() != StateOpen {
			continue
		}
		if !fn(c) {
			return
		}
	}
}

// Filter returns the open connections matching pred
func (r *Registry) Filter(pred func(c *Connection) bool) []*Connection {
	var out []*Connection
	r.Each(func(c *Connection) bool {
		if pred(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// ByIdentity returns every open connection logged in as identity
func (r *Registry) ByIdentity(identity string) []*Connection {
	return r.Filter(func(c *Connection) bool { return c.Identity() == identity })
}

// Identities returns the distinct identities of open connections, sorted
func (r *Registry) Identities() []string {
	seen := map[string]struct{}{}
	r.Each(func(c *Connection) bool {
		if id := c.Identity(); id != "" {
			seen[id] = struct{}{}
		}
		return true
	})
	return slices.Sorted(maps.Keys(seen))
}
