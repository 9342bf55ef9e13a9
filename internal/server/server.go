// Package server implements the TCP chat relay.
//
// Concurrency overview
// --------------------
//
//	┌─────────────────────────────────────────────────────────┐
//	│  Acceptor goroutine                                      │
//	│  Accepts TCP connections; spawns one worker goroutine   │
//	│  per connection and never waits for it.                 │
//	└───────────────────┬─────────────────────────────────────┘
//	                    │  claim / leave / broadcast requests
//	                    ▼
//	┌─────────────────────────────────────────────────────────┐
//	│  Hub goroutine                                           │
//	│  Owns the registry and identity pool; fans out frames.  │
//	└─────────────────────────────────────────────────────────┘
//
//	┌─────────────────────────────────────────────────────────┐
//	│  Per connection: worker (negotiate, read, clean up)     │
//	│  and writePump (drains the client's send channel).      │
//	└─────────────────────────────────────────────────────────┘
package server

import (
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"nickchat/internal/config"
	"nickchat/internal/protocol"
)

// Server ties together the acceptor, the Hub and the connection workers.
type Server struct {
	cfg *config.Server
	log *log.Logger
	hub *Hub

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]*Client // every accepted connection, admitted or not
	closing  bool
	stopHub  sync.Once
}

// New creates a Server and starts its Hub.  A nil logger selects log.Default.
func New(cfg *config.Server, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		cfg:   cfg,
		log:   logger,
		hub:   newHub(logger),
		conns: make(map[string]*Client),
	}
	go s.hub.Run()
	return s
}

// ListenAndServe binds cfg's port and serves it until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.  Accept errors are logged and retried;
// Serve returns nil after Shutdown, or the error if ln was closed elsewhere.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()
	s.log.Printf("[server] listening on %s", ln.Addr())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			// Typically EMFILE or a reset in the backlog; back off like
			// net/http does and keep going.
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			s.log.Printf("[server] accept error: %v; retrying in %v", err, backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		go s.serveConn(conn)
	}
}

// Shutdown closes the listener and every open connection and stops the Hub.
// Workers finish on their own as their reads fail.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closing = true
	if s.listener != nil {
		s.listener.Close()
	}
	clients := make([]*Client, 0, len(s.conns))
	for _, c := range s.conns {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	s.stopHub.Do(s.hub.Stop)
}

// OnlineUsers returns the sorted names of all admitted clients.
func (s *Server) OnlineUsers() []string {
	return s.hub.names()
}

// serveConn is the connection worker: it negotiates a name, relays the
// client's lines and cleans up when the connection ends.
func (s *Server) serveConn(conn net.Conn) {
	c := newClient(uuid.NewString(), conn, s)
	if !s.track(c) {
		conn.Close()
		return
	}
	s.log.Printf("[conn] accepted %s", c)

	go c.writePump()
	defer s.finish(c)

	r := protocol.NewReader(conn, s.cfg.MaxFrameSize)
	name, err := c.negotiate(r)
	if err != nil {
		s.log.Printf("[conn] %s left before choosing a name: %v", c, err)
		return
	}
	s.hub.broadcast(protocol.JoinNotice(name), c)

	err = c.relay(r, name)
	if isDisconnect(err) {
		s.log.Printf("[conn] %s disconnected", c)
	} else {
		s.log.Printf("[conn] %s read error: %v", c, err)
	}
}

// finish removes c from the registry, announces the departure to everyone
// still connected, then closes the connection once queued frames are out.
func (s *Server) finish(c *Client) {
	if name, ok := s.hub.leave(c); ok {
		s.hub.broadcast(protocol.LeaveNotice(name), c)
	}

	// leave closed c.send; wait for the queued frames to go out.
	<-c.written
	c.close()

	s.untrack(c)
}

func (s *Server) track(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c.id] = c
	return true
}

func (s *Server) untrack(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c.id)
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}
