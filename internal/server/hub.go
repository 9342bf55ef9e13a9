package server

import (
	"log"
	"strings"

	"nickchat/internal/protocol"
)

// Hub is the single owner of the registry and the identity pool.
//
// Concurrency model
// -----------------
//   - The Hub runs in one dedicated goroutine (Hub.Run).  Every read or write
//     of the registry, the pool and every broadcast enumeration happens inside
//     that goroutine, so they are totally ordered and no mutex is needed.
//   - Workers talk to the Hub through request channels and wait for the
//     reply, which makes each operation atomic from the caller's view.
//   - Delivery to a recipient is a non-blocking enqueue on its buffered send
//     channel.  A full buffer drops that frame for that recipient only.
//   - The Hub is the only sender on a client's send channel, so it closes the
//     channel on leave and, for clients still registered, when it stops.
type Hub struct {
	reg *registry
	log *log.Logger

	claims     chan claimRequest
	leaves     chan leaveRequest
	broadcasts chan broadcastRequest
	queries    chan chan []string
	done       chan struct{} // closed by Stop
	stopped    chan struct{} // closed when Run has returned
}

type claimRequest struct {
	client   *Client
	proposal string // already trimmed
	reply    chan claimResult
}

type claimResult struct {
	verdict protocol.Verdict
	name    string
}

type leaveRequest struct {
	client *Client
	reply  chan leaveResult
}

type leaveResult struct {
	name string
	ok   bool
}

type broadcastRequest struct {
	data   []byte
	except *Client
	done   chan struct{}
}

func newHub(logger *log.Logger) *Hub {
	return &Hub{
		reg:        newRegistry(),
		log:        logger,
		claims:     make(chan claimRequest),
		leaves:     make(chan leaveRequest),
		broadcasts: make(chan broadcastRequest),
		queries:    make(chan chan []string),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run processes hub requests.  It must be launched as a goroutine.
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case req := <-h.claims:
			req.reply <- h.handleClaim(req.client, req.proposal)

		case req := <-h.leaves:
			name, ok := h.reg.unregister(req.client)
			if ok {
				h.log.Printf("[hub] -client %q (%s)  total=%d  free ids=%d",
					name, req.client.id, h.reg.len(), h.reg.pool.available())
			}
			req.client.closeSend()
			req.reply <- leaveResult{name: name, ok: ok}

		case req := <-h.broadcasts:
			for _, c := range h.reg.allExcept(req.except) {
				h.deliver(c, req.data)
			}
			close(req.done)

		case reply := <-h.queries:
			reply <- h.reg.sortedNames()

		case <-h.done:
			for _, c := range h.reg.clients {
				c.closeSend()
			}
			return
		}
	}
}

// Stop signals the hub to shut down.  Pending and later requests fail fast.
func (h *Hub) Stop() { close(h.done) }

func (h *Hub) handleClaim(c *Client, proposal string) claimResult {
	var name string
	switch {
	case proposal == "":
		name = protocol.GeneratedName(h.reg.acquireIdentity())
	case len(proposal) > protocol.MaxNameLength, strings.ContainsAny(proposal, "\r\n"):
		h.deliver(c, protocol.Encode(protocol.TokenTaken))
		return claimResult{verdict: protocol.Taken}
	default:
		name = proposal
	}

	if !h.reg.register(c, name) {
		if n, generated := protocol.ParseGeneratedName(name); generated && proposal == "" {
			h.reg.releaseIdentity(n)
		}
		h.deliver(c, protocol.Encode(protocol.TokenTaken))
		return claimResult{verdict: protocol.Taken}
	}
	// Queued inside the hub so the token precedes any broadcast to c.
	h.deliver(c, protocol.Encode(protocol.TokenAccepted))
	h.log.Printf("[hub] +client %q (%s)  total=%d", name, c.id, h.reg.len())
	return claimResult{verdict: protocol.Accepted, name: name}
}

func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Printf("[hub] send buffer full for %s, frame dropped", c)
	}
}

// claim runs one negotiation step for c.  ok is false once the hub stopped.
func (h *Hub) claim(c *Client, proposal string) (res claimResult, ok bool) {
	req := claimRequest{client: c, proposal: proposal, reply: make(chan claimResult, 1)}
	select {
	case h.claims <- req:
		return <-req.reply, true
	case <-h.done:
		return claimResult{}, false
	}
}

// leave unregisters c and closes its send channel.  ok is false if c was not
// registered, which makes a repeated leave harmless.
func (h *Hub) leave(c *Client) (name string, ok bool) {
	req := leaveRequest{client: c, reply: make(chan leaveResult, 1)}
	select {
	case h.leaves <- req:
		res := <-req.reply
		return res.name, res.ok
	case <-h.done:
		// Wait out any broadcast still being enumerated.
		<-h.stopped
		c.closeSend()
		return "", false
	}
}

// broadcast queues msg for every registered client except the sender and
// returns once every recipient has been handed the frame.
func (h *Hub) broadcast(msg string, except *Client) {
	req := broadcastRequest{data: protocol.Encode(msg), except: except, done: make(chan struct{})}
	select {
	case h.broadcasts <- req:
		<-req.done
	case <-h.done:
	}
}

// names returns the sorted display names of all admitted clients.
func (h *Hub) names() []string {
	reply := make(chan []string, 1)
	select {
	case h.queries <- reply:
		return <-reply
	case <-h.done:
		return nil
	}
}
