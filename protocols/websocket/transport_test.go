package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleksiy-v/wsbridge/pkg/interfaces"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newTestServer starts a websocket server driving the given session
// function and returns its ws:// URL.
func newTestServer(t *testing.T, session func(conn *websocket.Conn)) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close() // nolint:errcheck
		session(conn)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func echoSession(conn *websocket.Conn) {
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(messageType, message); err != nil {
			return
		}
	}
}

func connectedTransport(t *testing.T, url string) *WSTransport {
	t.Helper()

	transport, err := NewWSTransport(Config{URL: url, HandshakeTimeout: 5 * time.Second})
	require.NoError(t, err)
	require.NoError(t, transport.Connect(context.Background()))
	return transport
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.Validate())

	cfg = Config{URL: "ws://localhost/ws"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteWait)
	assert.Equal(t, 1, cfg.DialAttempts)
}

func TestEchoRoundTrip(t *testing.T) {
	url := newTestServer(t, echoSession)
	transport := connectedTransport(t, url)

	texts := make(chan string, 1)
	binaries := make(chan []byte, 1)
	closes := make(chan int, 1)

	transport.SetMessageHandler(func(msg string) { texts <- msg })
	transport.SetBinaryHandler(func(data []byte) { binaries <- data })
	transport.SetCloseHandler(func(code int, reason string) { closes <- code })

	runDone := make(chan error, 1)
	go func() { runDone <- transport.Run() }()

	require.NoError(t, transport.SendText("Hello, WebSocket!"))
	select {
	case msg := <-texts:
		assert.Equal(t, "Hello, WebSocket!", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for echoed text message")
	}

	require.NoError(t, transport.SendBinary([]byte{0x01, 0x02, 0x03}))
	select {
	case data := <-binaries:
		assert.Equal(t, []byte{0x01, 0x02, 0x03}, data)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for echoed binary message")
	}

	require.NoError(t, transport.Close(websocket.CloseNormalClosure, "done"))

	select {
	case code := <-closes:
		assert.Equal(t, websocket.CloseNormalClosure, code)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for close event")
	}

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to return")
	}
}

func TestPeerInitiatedClose(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		deadline := time.Now().Add(5 * time.Second)
		message := websocket.FormatCloseMessage(4001, "going down")
		if err := conn.WriteControl(websocket.CloseMessage, message, deadline); err != nil {
			return
		}
		// wait for the client's close ack
		conn.ReadMessage() // nolint:errcheck
	})

	transport := connectedTransport(t, url)

	type closeEvent struct {
		code   int
		reason string
	}
	closes := make(chan closeEvent, 2)
	transport.SetCloseHandler(func(code int, reason string) {
		closes <- closeEvent{code, reason}
	})

	runDone := make(chan error, 1)
	go func() { runDone <- transport.Run() }()

	select {
	case event := <-closes:
		assert.Equal(t, 4001, event.code)
		assert.Equal(t, "going down", event.reason)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for peer close event")
	}

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to return")
	}

	// the close handler fires exactly once
	select {
	case extra := <-closes:
		t.Fatalf("close handler fired twice: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInboundPingIsAutoAnswered(t *testing.T) {
	pongs := make(chan string, 1)

	url := newTestServer(t, func(conn *websocket.Conn) {
		conn.SetPongHandler(func(payload string) error {
			pongs <- payload
			return nil
		})

		deadline := time.Now().Add(5 * time.Second)
		if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
			return
		}

		// keep reading so the pong handler runs
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	transport := connectedTransport(t, url)

	pings := make(chan string, 1)
	transport.SetPingHandler(func(payload string) { pings <- payload })

	go transport.Run() // nolint:errcheck

	// the transport answers with a pong whether or not a handler is set
	select {
	case payload := <-pongs:
		assert.Equal(t, "keepalive", payload)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for automatic pong")
	}

	// and the user handler still sees the ping
	select {
	case payload := <-pings:
		assert.Equal(t, "keepalive", payload)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for forwarded ping")
	}

	require.NoError(t, transport.Close(websocket.CloseNormalClosure, ""))
}

func TestOutboundPingPong(t *testing.T) {
	pings := make(chan string, 1)

	url := newTestServer(t, func(conn *websocket.Conn) {
		conn.SetPingHandler(func(payload string) error {
			pings <- payload
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	transport := connectedTransport(t, url)
	go transport.Run() // nolint:errcheck

	require.NoError(t, transport.Ping("are-you-there"))

	select {
	case payload := <-pings:
		assert.Equal(t, "are-you-there", payload)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for ping on the server side")
	}

	require.NoError(t, transport.Close(websocket.CloseNormalClosure, ""))
}

func TestConnectFailure(t *testing.T) {
	transport, err := NewWSTransport(Config{
		URL:              "ws://127.0.0.1:1",
		HandshakeTimeout: 500 * time.Millisecond,
	})
	require.NoError(t, err)

	err = transport.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrConnectionFailed)
}

func TestOperationsBeforeConnect(t *testing.T) {
	transport, err := NewWSTransport(Config{URL: "ws://localhost/ws"})
	require.NoError(t, err)

	assert.ErrorIs(t, transport.Run(), interfaces.ErrNotConnected)
	assert.ErrorIs(t, transport.SendText("hi"), interfaces.ErrNotConnected)
	assert.ErrorIs(t, transport.SendBinary([]byte{1}), interfaces.ErrNotConnected)
	assert.ErrorIs(t, transport.Ping(""), interfaces.ErrNotConnected)
	assert.NoError(t, transport.Close(websocket.CloseNormalClosure, ""))
}

func TestCloseIsIdempotent(t *testing.T) {
	url := newTestServer(t, echoSession)
	transport := connectedTransport(t, url)

	require.NoError(t, transport.Close(websocket.CloseNormalClosure, "first"))
	require.NoError(t, transport.Close(websocket.CloseNormalClosure, "second"))
	assert.ErrorIs(t, transport.SendText("late"), interfaces.ErrNotConnected)
}
