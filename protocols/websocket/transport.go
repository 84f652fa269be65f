// protocols/websocket/transport.go
package websocket

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oleksiy-v/wsbridge/pkg/interfaces"
	"github.com/oleksiy-v/wsbridge/utils"
)

var _ interfaces.Transport = (*WSTransport)(nil)

// Config carries the websocket-specific connection settings.
type Config struct {
	URL              string
	Headers          http.Header
	TLSConfig        *tls.Config
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	ReadLimit        int64
	DialAttempts     int
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: missing URL", interfaces.ErrConnectionFailed)
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.DialAttempts <= 0 {
		c.DialAttempts = 1
	}
	return nil
}

// WSTransport adapts a gorilla/websocket connection to the
// interfaces.Transport contract. Frame parsing, masking and the
// handshake all live in the gorilla library; this type only dispatches
// inbound frames to the registered handlers and serializes writes.
type WSTransport struct {
	config Config
	conn   *websocket.Conn

	// gorilla permits a single concurrent writer
	writeMu sync.Mutex
	closed  bool

	// recorded close frame, read by the dispatch path on loop exit
	closeMu     sync.Mutex
	closeCode   int
	closeReason string
	closeSeen   bool
	closeOnce   sync.Once

	onBinary  func([]byte)
	onMessage func(string)
	onClose   func(int, string)
	onPing    func(string)
	onPong    func(string)
}

func NewWSTransport(config Config) (*WSTransport, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &WSTransport{config: config}, nil
}

func (t *WSTransport) SetBinaryHandler(h func(data []byte)) { t.onBinary = h }
func (t *WSTransport) SetMessageHandler(h func(msg string)) { t.onMessage = h }
func (t *WSTransport) SetCloseHandler(h func(code int, reason string)) { t.onClose = h }
func (t *WSTransport) SetPingHandler(h func(payload string)) { t.onPing = h }
func (t *WSTransport) SetPongHandler(h func(payload string)) { t.onPong = h }

// Connect dials the configured endpoint, retrying with exponential
// backoff up to DialAttempts times. Retries only ever happen here,
// before a connection exists; a closed transport is never redialed.
func (t *WSTransport) Connect(ctx context.Context) error {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.config.HandshakeTimeout,
		TLSClientConfig:  t.config.TLSConfig,
	}

	backoff := utils.NewExponentialBackoff()

	var lastErr error
	for attempt := 1; attempt <= t.config.DialAttempts; attempt++ {
		conn, _, err := dialer.DialContext(ctx, t.config.URL, t.config.Headers)
		if err == nil {
			t.attach(conn)
			return nil
		}
		lastErr = err

		if attempt < t.config.DialAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff.NextDelay()):
			}
		}
	}

	return fmt.Errorf("%w: %v", interfaces.ErrConnectionFailed, lastErr)
}

func (t *WSTransport) attach(conn *websocket.Conn) {
	if t.config.ReadLimit > 0 {
		conn.SetReadLimit(t.config.ReadLimit)
	}

	// Answer every inbound ping with a pong before forwarding to the
	// user handler. Registering a handler does not disable the answer.
	conn.SetPingHandler(func(payload string) error {
		deadline := time.Now().Add(t.config.WriteWait)
		err := conn.WriteControl(websocket.PongMessage, []byte(payload), deadline)
		if err == websocket.ErrCloseSent {
			err = nil
		}
		if t.onPing != nil {
			t.onPing(payload)
		}
		return err
	})

	conn.SetPongHandler(func(payload string) error {
		if t.onPong != nil {
			t.onPong(payload)
		}
		return nil
	})

	// Record the peer's close frame and echo it, as the gorilla default
	// handler would. The close event itself is dispatched by Run once
	// the read loop unwinds.
	conn.SetCloseHandler(func(code int, text string) error {
		t.recordClose(code, text)
		deadline := time.Now().Add(t.config.WriteWait)
		message := websocket.FormatCloseMessage(code, "")
		err := conn.WriteControl(websocket.CloseMessage, message, deadline)
		if err == websocket.ErrCloseSent {
			err = nil
		}
		return err
	})

	t.conn = conn
}

func (t *WSTransport) recordClose(code int, reason string) {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if !t.closeSeen {
		t.closeSeen = true
		t.closeCode = code
		t.closeReason = reason
	}
}

// dispatchClose invokes the registered close handler exactly once. It
// only ever runs on the read-loop goroutine so that a handler is free
// to call back into outbound operations without deadlocking.
func (t *WSTransport) dispatchClose(err error) {
	t.closeOnce.Do(func() {
		t.closeMu.Lock()
		if !t.closeSeen {
			// No close frame was exchanged: a reset, TLS failure or
			// similar. Surface it as an abnormal closure.
			t.closeSeen = true
			t.closeCode = websocket.CloseAbnormalClosure
			if err != nil {
				t.closeReason = err.Error()
			}
		}
		code, reason := t.closeCode, t.closeReason
		t.closeMu.Unlock()

		if t.onClose != nil {
			t.onClose(code, reason)
		}
	})
}

// Run reads frames until the connection closes and dispatches them to
// the registered handlers. It returns nil when the connection ended
// with a close frame (local or remote) and the read error otherwise.
func (t *WSTransport) Run() error {
	if t.conn == nil {
		return interfaces.ErrNotConnected
	}

	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			t.dispatchClose(err)

			t.closeMu.Lock()
			code := t.closeCode
			t.closeMu.Unlock()
			if code != websocket.CloseAbnormalClosure {
				return nil
			}
			if _, ok := err.(*websocket.CloseError); ok {
				return nil
			}
			t.writeMu.Lock()
			wasClosed := t.closed
			t.writeMu.Unlock()
			if wasClosed {
				return nil
			}
			return err
		}

		switch msgType {
		case websocket.TextMessage:
			if t.onMessage != nil {
				t.onMessage(string(data))
			}
		case websocket.BinaryMessage:
			if t.onBinary != nil {
				t.onBinary(data)
			}
		}
	}
}

func (t *WSTransport) SendText(msg string) error {
	return t.write(websocket.TextMessage, []byte(msg))
}

func (t *WSTransport) SendBinary(data []byte) error {
	return t.write(websocket.BinaryMessage, data)
}

func (t *WSTransport) write(msgType int, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.conn == nil || t.closed {
		return interfaces.ErrNotConnected
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.config.WriteWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(msgType, data)
}

func (t *WSTransport) Ping(payload string) error {
	return t.writeControl(websocket.PingMessage, []byte(payload))
}

func (t *WSTransport) Pong(payload string) error {
	return t.writeControl(websocket.PongMessage, []byte(payload))
}

func (t *WSTransport) writeControl(msgType int, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.conn == nil || t.closed {
		return interfaces.ErrNotConnected
	}
	return t.conn.WriteControl(msgType, data, time.Now().Add(t.config.WriteWait))
}

// Close sends a close frame with the given code and reason, then tears
// down the underlying connection. The blocked Run call unwinds and
// dispatches the close event. Closing twice is a no-op.
func (t *WSTransport) Close(code int, reason string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.conn == nil || t.closed {
		return nil
	}
	t.closed = true
	t.recordClose(code, reason)

	deadline := time.Now().Add(t.config.WriteWait)
	message := websocket.FormatCloseMessage(code, reason)
	if err := t.conn.WriteControl(websocket.CloseMessage, message, deadline); err != nil && err != websocket.ErrCloseSent {
		t.conn.Close()
		return err
	}
	return t.conn.Close()
}
