package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oleksiy-v/wsbridge/pkg/interfaces"
)

// Handlers holds the user callbacks for inbound events. Every field is
// optional. A nil OnBinary or OnMessage logs a warning when data
// arrives; the remaining callbacks default to no-ops. The transport
// answers inbound pings with pongs on its own, so OnPing is purely
// informational.
type Handlers struct {
	OnBinary  func(data []byte)
	OnMessage func(msg string)
	OnClose   func(code int, reason string)
	OnPing    func(payload string)
	OnPong    func(payload string)
}

// Conn wraps a single transport and dispatches its events to the
// registered Handlers. It owns at most one transport: once the
// transport is cleared, by Close or by the transport's own close
// event, it is never reassigned. Construct a new Conn for a new
// connection attempt.
//
// All outbound operations are serialized behind one mutex. Handlers
// are always invoked off that mutex, so a handler may freely call
// Send, Ping, Pong or Close without deadlocking.
type Conn struct {
	id       string
	handlers Handlers
	logger   *slog.Logger

	mu        sync.Mutex
	transport interfaces.Transport
	open      atomic.Bool
}

// NewConn wraps the given transport and registers its event handlers.
// The transport should already be connected; call Run afterwards to
// start dispatching.
func NewConn(transport interfaces.Transport, handlers Handlers, log *slog.Logger) (*Conn, error) {
	if transport == nil {
		return nil, errors.New("transport cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}

	c := &Conn{
		id:        uuid.NewString(),
		handlers:  handlers,
		transport: transport,
	}
	c.logger = log.With("conn_id", c.id)
	c.open.Store(true)

	transport.SetBinaryHandler(c.handleBinary)
	transport.SetMessageHandler(c.handleMessage)
	transport.SetCloseHandler(c.handleClose)
	transport.SetPingHandler(c.handlePing)
	transport.SetPongHandler(c.handlePong)

	return c, nil
}

// ID returns the unique identifier of this connection.
func (c *Conn) ID() string {
	return c.id
}

// IsOpen reports whether a transport is currently attached. It is a
// lock-free snapshot; the answer may be stale by the time it is used,
// which is safe because operations on a closed Conn are no-ops.
func (c *Conn) IsOpen() bool {
	return c.open.Load()
}

// SendText forwards a text frame to the transport. Sending on a closed
// Conn is silently dropped: during shutdown another goroutine may
// close the connection at any moment and that should not surface as a
// failure.
func (c *Conn) SendText(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport == nil {
		c.logger.Debug("text send dropped, connection closed")
		return nil
	}
	return c.transport.SendText(msg)
}

// SendBinary forwards a binary frame to the transport. Like SendText
// it is a silent no-op once the Conn is closed.
func (c *Conn) SendBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport == nil {
		c.logger.Debug("binary send dropped, connection closed", "size", len(data))
		return nil
	}
	return c.transport.SendBinary(data)
}

// Ping sends a ping control frame, or does nothing if closed.
func (c *Conn) Ping(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport == nil {
		return nil
	}
	return c.transport.Ping(payload)
}

// Pong sends an unsolicited pong control frame, or does nothing if
// closed. Solicited pongs are handled by the transport itself.
func (c *Conn) Pong(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport == nil {
		return nil
	}
	return c.transport.Pong(payload)
}

// Close instructs the transport to close with the given code and
// reason, then clears it. Closing an already-closed Conn is a no-op.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport == nil {
		return nil
	}

	c.logger.Info("closing connection", "code", code, "reason", reason)
	err := c.transport.Close(code, reason)
	c.transport = nil
	c.open.Store(false)
	return err
}

// GracefulShutdown closes the connection with a going-away code. It is
// the call to make when the local side is shutting down, either for a
// single connection or from a Group taking down many at once.
func (c *Conn) GracefulShutdown(reason string) {
	if err := c.Close(websocket.CloseGoingAway, reason); err != nil {
		c.logger.Error("graceful shutdown failed", "error", err)
	}
}

// Run blocks driving the transport's read loop until the connection is
// closed. Cancelling the context triggers a graceful shutdown, which
// in turn unblocks Run. Use RunDetached for background mode.
func (c *Conn) Run(ctx context.Context) error {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()

	if transport == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- transport.Run()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		c.GracefulShutdown("shutting down")
		return <-done
	}
}

// RunDetached runs the read loop on its own goroutine and returns
// immediately. Errors from the loop are logged rather than returned.
func (c *Conn) RunDetached(ctx context.Context) {
	go func() {
		if err := c.Run(ctx); err != nil {
			c.logger.Error("connection terminated", "error", err)
		}
	}()
}

func (c *Conn) handleBinary(data []byte) {
	if c.handlers.OnBinary == nil {
		c.logger.Warn("binary message received but no handler registered", "size", len(data))
		return
	}
	c.handlers.OnBinary(data)
}

func (c *Conn) handleMessage(msg string) {
	h := c.handlers.OnMessage
	if h == nil {
		c.logger.Warn("text message received but no handler registered", "size", len(msg))
		return
	}
	h(msg)
}

// handleClose runs on the transport's dispatch path. The transport is
// cleared before the user callback fires, so a send from within
// OnClose is a guaranteed no-op rather than a write on a half-torn-down
// connection.
func (c *Conn) handleClose(code int, reason string) {
	c.mu.Lock()
	c.transport = nil
	c.open.Store(false)
	c.mu.Unlock()

	c.logger.Info("connection closed", "code", code, "reason", reason)

	if c.handlers.OnClose != nil {
		c.handlers.OnClose(code, reason)
	}
}

func (c *Conn) handlePing(payload string) {
	if c.handlers.OnPing != nil {
		c.handlers.OnPing(payload)
	}
}

func (c *Conn) handlePong(payload string) {
	if c.handlers.OnPong != nil {
		c.handlers.OnPong(payload)
	}
}
