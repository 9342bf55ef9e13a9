package server

import (
	"sort"

	"nickchat/internal/protocol"
)

// registry maps every admitted client to its display name and owns the
// identity pool.  Like the pool it is confined to the Hub goroutine: the Hub
// is the single serialization point for both structures.
type registry struct {
	clients map[string]*Client // client id → client
	names   map[string]*Client // display name → client
	pool    *identityPool
}

func newRegistry() *registry {
	return &registry{
		clients: make(map[string]*Client),
		names:   make(map[string]*Client),
		pool:    newIdentityPool(),
	}
}

// register records c under name.  It reports false when c is already
// registered or name is held by another client.
func (r *registry) register(c *Client, name string) bool {
	if _, ok := r.clients[c.id]; ok {
		return false
	}
	if r.containsName(name) {
		return false
	}
	c.setName(name)
	r.clients[c.id] = c
	r.names[name] = c
	return true
}

// unregister removes c and returns the name it held.  Generated names give
// their number back to the pool.  Removing an unknown client is a no-op that
// returns ok=false.
func (r *registry) unregister(c *Client) (name string, ok bool) {
	if _, ok = r.clients[c.id]; !ok {
		return "", false
	}
	name = c.getName()
	delete(r.clients, c.id)
	delete(r.names, name)
	if n, generated := protocol.ParseGeneratedName(name); generated {
		r.releaseIdentity(n)
	}
	return name, true
}

func (r *registry) containsName(name string) bool {
	_, ok := r.names[name]
	return ok
}

// allExcept returns every registered client other than skip.
func (r *registry) allExcept(skip *Client) []*Client {
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if c != skip {
			out = append(out, c)
		}
	}
	return out
}

// acquireIdentity returns a number whose generated name is currently free.
// A client may have picked a name like "User #3" by hand; such numbers are
// skipped and come back through unregister once that client leaves.
func (r *registry) acquireIdentity() int {
	for {
		n := r.pool.acquire()
		if !r.containsName(protocol.GeneratedName(n)) {
			return n
		}
	}
}

func (r *registry) releaseIdentity(n int) {
	r.pool.release(n)
}

// sortedNames returns the display names of all registered clients.
func (r *registry) sortedNames() []string {
	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *registry) len() int { return len(r.clients) }
