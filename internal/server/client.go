package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"nickchat/internal/protocol"
)

// Client represents one TCP connection.
//
// Two goroutines serve each client:
//
//	worker    – the goroutine running Server.serveConn: negotiates the name,
//	            reads newline-delimited frames and hands them to the Hub.
//	writePump – drains the send channel and writes frames to the connection.
//
// This decouples reading from writing so a slow peer never blocks the Hub or
// any other worker.
type Client struct {
	id     string // unique connection identifier
	server *Server
	conn   net.Conn
	send   chan []byte // outbound newline-terminated frames

	// Display name.  Protected by mu because the Hub sets it on admission
	// and the worker and log lines read it.
	mu   sync.RWMutex
	name string

	closeOnce sync.Once
	sendOnce  sync.Once
	written   chan struct{} // closed when writePump returns
}

func newClient(id string, conn net.Conn, srv *Server) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		server:  srv,
		send:    make(chan []byte, srv.cfg.SendBuffer),
		written: make(chan struct{}),
	}
}

func (c *Client) getName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Client) setName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

func (c *Client) String() string {
	if name := c.getName(); name != "" {
		return fmt.Sprintf("%s [%s] %q", c.id, c.conn.RemoteAddr(), name)
	}
	return fmt.Sprintf("%s [%s]", c.id, c.conn.RemoteAddr())
}

// close releases the connection.  Safe to call from either goroutine; the
// socket is closed exactly once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

// closeSend ends the writePump once queued frames are written.  Only the Hub
// calls it while running; after the Hub exits nothing else sends on c.send.
func (c *Client) closeSend() {
	c.sendOnce.Do(func() { close(c.send) })
}

// writePump drains the send channel and writes each frame to the connection.
// A write deadline is set for every write so a stuck peer cannot hold the
// goroutine forever.  After a write error the connection is closed, which
// also unblocks the worker's read, and remaining frames are discarded.
func (c *Client) writePump() {
	defer close(c.written)

	failed := false
	for data := range c.send {
		if failed {
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteTimeout))
		if _, err := c.conn.Write(data); err != nil {
			c.server.log.Printf("[conn] write to %s failed: %v", c, err)
			failed = true
			c.close()
		}
	}
}

// readFrame blocks for the next frame, honouring the idle timeout.
func (c *Client) readFrame(r *protocol.Reader) (protocol.Frame, error) {
	if t := c.server.cfg.IdleTimeout; t > 0 {
		c.conn.SetReadDeadline(time.Now().Add(t))
	}
	return r.ReadFrame()
}

// negotiate runs the nickname handshake until the Hub admits the client.
// It returns the admitted name, or an error when the peer went away first;
// in that case no registry record exists for c.
func (c *Client) negotiate(r *protocol.Reader) (string, error) {
	for {
		f, err := c.readFrame(r)
		if err != nil {
			return "", fmt.Errorf("negotiation aborted: %w", err)
		}
		proposal := strings.TrimSpace(f.Text)
		if f.Truncated {
			// Untrimmed it is MaxFrameSize bytes, above MaxNameLength, so
			// the Hub rejects it as too long.
			proposal = f.Text
		}

		res, ok := c.server.hub.claim(c, proposal)
		if !ok {
			return "", errServerClosed
		}
		if res.verdict == protocol.Accepted {
			return res.name, nil
		}
		c.server.log.Printf("[conn] %s proposed %q: %s", c, proposal, res.verdict)
	}
}

// relay reads frames until the connection fails and broadcasts each
// non-blank one to every other client.
func (c *Client) relay(r *protocol.Reader, name string) error {
	for {
		f, err := c.readFrame(r)
		if err != nil {
			return err
		}
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		c.server.hub.broadcast(protocol.ChatLine(name, text, f.Truncated), c)
	}
}

var errServerClosed = errors.New("server closed")

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
