// pkg/interfaces/transport.go
package interfaces

import (
	"context"
	"errors"
)

var (
	ErrConnectionFailed    = errors.New("connection failed")
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	ErrNotConnected        = errors.New("not connected")
)

// Transport is the contract the underlying socket library has to fulfil.
// It performs the actual handshake, framing and frame parsing; the core
// package only wires handlers to it and serializes outbound calls.
//
// All Set*Handler calls must happen before Run. The transport answers every
// inbound ping with a pong on its own, whether or not a ping handler is
// registered. The close handler fires exactly once per connection, no matter
// whether closure was initiated locally, by the peer or by a transport
// failure.
type Transport interface {
	// Connect establishes the connection. It does not start reading.
	Connect(ctx context.Context) error

	// Run drives the read loop, dispatching inbound frames to the
	// registered handlers, and returns once the connection is closed.
	Run() error

	SendText(msg string) error
	SendBinary(data []byte) error
	Ping(payload string) error
	Pong(payload string) error

	// Close sends a close frame with the given code and reason and tears
	// the connection down. Closing an already-closed transport is a no-op.
	Close(code int, reason string) error

	SetBinaryHandler(h func(data []byte))
	SetMessageHandler(h func(msg string))
	SetCloseHandler(h func(code int, reason string))
	SetPingHandler(h func(payload string))
	SetPongHandler(h func(payload string))
}
