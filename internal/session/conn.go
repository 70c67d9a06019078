package session

import (
	"net"
	"sync/atomic"
	"time"

	"cattleherd/internal/protocol"

	"go.uber.org/zap"
)

// Conn wraps a stream connection with message framing and state tracking.
// Safe for one concurrent reader and one concurrent writer.
type Conn struct {
	raw    net.Conn
	state  atomic.Int32
	logger *zap.Logger
}

// Wrap adopts an established network connection
func Wrap(nc net.Conn, logger *zap.Logger) *Conn {
	c := &Conn{
		raw:    nc,
		logger: logger,
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// Send frames and writes one message
func (c *Conn) Send(m *protocol.Message) error {
	return protocol.WriteMessage(c.raw, m)
}

// Receive reads one framed message. Wire errors keep their sentinel type so
// callers can separate connection loss from per-message schema problems.
func (c *Conn) Receive() (*protocol.Message, error) {
	return protocol.ReadMessage(c.raw)
}

// SetState records and logs a state transition
func (c *Conn) SetState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.logger.Debug("Session state transition",
			zap.String("from", prev.String()),
			zap.String("to", s.String()),
			zap.String("peer", c.RemoteAddr()))
	}
}

// State returns the current session state
func (c *Conn) State() State {
	return State(c.state.Load())
}

// SetDeadline bounds all pending and future I/O on the connection
func (c *Conn) SetDeadline(t time.Time) error {
	return c.raw.SetDeadline(t)
}

// RemoteAddr returns the peer address
func (c *Conn) RemoteAddr() string {
	if addr := c.raw.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// Close tears the connection down
func (c *Conn) Close() error {
	c.SetState(StateClosing)
	return c.raw.Close()
}
